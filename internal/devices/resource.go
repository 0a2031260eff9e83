package devices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-mfa/internal/audit"
	"github.com/nerrad567/gray-logic-mfa/internal/identity"
	"github.com/nerrad567/gray-logic-mfa/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-mfa/internal/rest"
)

// deleteAttempts bounds conflict retries of a versioned delete.
const deleteAttempts = 3

// auditEntityType tags audit entries written by Resource.
const auditEntityType = "oath_device"

// Deps are the collaborators of a Resource. Store, Resolver and Services
// are required; the rest may be nil.
type Deps struct {
	Store    Store
	Resolver identity.Resolver
	Services ServiceFactory
	Events   EventPublisher
	Metrics  MetricsRecorder
	Audit    Auditor
	Logger   *logging.Logger
}

// Resource serves the OATH device collection of one user.
//
// Each call resolves the target user from the SecurityContext, so one
// Resource serves every user and realm. Events, metrics and audit entries
// are emitted only for changes that were committed.
//
// All methods are safe for concurrent use.
type Resource struct {
	store    Store
	resolver identity.Resolver
	services ServiceFactory
	events   EventPublisher
	metrics  MetricsRecorder
	audit    Auditor
	logger   *logging.Logger
}

// NewResource creates a Resource.
// Returns an error if Store, Resolver or Services is nil. A nil Logger
// discards output.
func NewResource(deps Deps) (*Resource, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("devices: store is required")
	case deps.Resolver == nil:
		return nil, errors.New("devices: resolver is required")
	case deps.Services == nil:
		return nil, errors.New("devices: service factory is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Resource{
		store:    deps.Store,
		resolver: deps.Resolver,
		services: deps.Services,
		events:   deps.Events,
		metrics:  deps.Metrics,
		audit:    deps.Audit,
		logger:   logger.Component("oath-devices"),
	}, nil
}

// QueryCollection delivers every stored profile to h in storage order
// and returns the number delivered. Filtering, sorting and paging
// parameters in req are accepted and ignored.
//
// Delivery stops early when h returns false. h is not called after
// QueryCollection returns. Resolver errors (Forbidden, NotFound) pass
// through; a failed read is Internal.
func (r *Resource) QueryCollection(ctx context.Context, sc identity.SecurityContext, req rest.QueryRequest, h rest.QueryHandler) (resp rest.QueryResponse, err error) {
	defer r.observe(OpQuery, sc, time.Now(), &err)

	if req.QueryFilter != "" || len(req.SortKeys) > 0 || req.PageSize > 0 {
		r.logger.Debug("query parameters ignored",
			"filter", req.QueryFilter,
			"sort_keys", req.SortKeys,
			"page_size", req.PageSize,
		)
	}

	userID, realmPath, err := r.resolve(ctx, sc)
	if err != nil {
		return rest.QueryResponse{}, err
	}

	profiles, err := r.store.Fetch(ctx, userID, realmPath)
	if err != nil {
		return rest.QueryResponse{}, rest.NewInternal("failed to read devices", err)
	}

	count := 0
	for _, p := range profiles {
		count++
		if !h.HandleResource(profileResponse(p)) {
			break
		}
	}
	return rest.NewQueryResponse(count), nil
}

// DeleteInstance removes the profile whose uuid is id and returns it.
// When no profile matches nothing is written and NotFound is returned.
//
// Steps:
//  1. Resolve the target user and realm.
//  2. Fetch the list, drop the first profile whose uuid is id.
//  3. Write the rest back. A VersionedStore write is conditional and is
//     retried on conflict; after deleteAttempts it fails with Conflict.
//  4. Log, audit and publish EventDeviceRemoved.
func (r *Resource) DeleteInstance(ctx context.Context, sc identity.SecurityContext, id string, _ rest.DeleteRequest) (resp rest.ResourceResponse, err error) {
	defer r.observe(OpDelete, sc, time.Now(), &err)

	userID, realmPath, err := r.resolve(ctx, sc)
	if err != nil {
		return rest.ResourceResponse{}, err
	}

	var removed Profile
	if vs, ok := r.store.(VersionedStore); ok {
		removed, err = r.deleteVersioned(ctx, vs, userID, realmPath, id)
	} else {
		removed, err = r.deletePlain(ctx, userID, realmPath, id)
	}
	if err != nil {
		return rest.ResourceResponse{}, err
	}

	r.logger.Info("oath device removed", "user_id", userID, "realm", realmPath, "device_uuid", id)
	details := map[string]any{"name": removed.Name()}
	if last, ok := removed.LastSelectedDate(); ok {
		details["last_selected"] = last.UTC().Format(time.RFC3339)
	}
	r.record(&audit.AuditLog{
		Action:     audit.ActionDelete,
		EntityType: auditEntityType,
		EntityID:   id,
		UserID:     userID,
		Realm:      realmPath,
		Details:    details,
	})
	r.publish(ctx, Event{
		Type:       EventDeviceRemoved,
		UserID:     userID,
		Realm:      realmPath,
		DeviceUUID: id,
		DeviceName: removed.Name(),
	})
	return profileResponse(removed), nil
}

func (r *Resource) deletePlain(ctx context.Context, userID, realmPath, id string) (Profile, error) {
	profiles, err := r.store.Fetch(ctx, userID, realmPath)
	if err != nil {
		return Profile{}, rest.NewInternal("failed to read devices", err)
	}
	removed, remaining, found := removeByUUID(profiles, id)
	if !found {
		return Profile{}, rest.NewNotFound(fmt.Sprintf("no device with uuid %q", id))
	}
	if err := r.store.Save(ctx, userID, realmPath, remaining); err != nil {
		return Profile{}, rest.NewInternal("failed to save devices", err)
	}
	return removed, nil
}

func (r *Resource) deleteVersioned(ctx context.Context, vs VersionedStore, userID, realmPath, id string) (Profile, error) {
	var lastErr error
	for attempt := 1; attempt <= deleteAttempts; attempt++ {
		profiles, version, err := vs.FetchVersioned(ctx, userID, realmPath)
		if err != nil {
			return Profile{}, rest.NewInternal("failed to read devices", err)
		}
		removed, remaining, found := removeByUUID(profiles, id)
		if !found {
			return Profile{}, rest.NewNotFound(fmt.Sprintf("no device with uuid %q", id))
		}

		err = vs.SaveIfVersion(ctx, userID, realmPath, remaining, version)
		if err == nil {
			return removed, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return Profile{}, rest.NewInternal("failed to save devices", err)
		}
		lastErr = err
		r.logger.Debug("device list changed during delete, retrying",
			"user_id", userID, "realm", realmPath, "attempt", attempt)
	}
	return Profile{}, rest.NewConflict("device list is being modified, try again", lastErr)
}

// ActionCollection runs a collection action. Unknown verbs fail with
// NotSupported before anything is resolved or read.
//
//   - skip: sets the realm's skippable attribute, see skipValue
//   - check: returns {"result": bool}
func (r *Resource) ActionCollection(ctx context.Context, sc identity.SecurityContext, req rest.ActionRequest) (resp rest.ActionResponse, err error) {
	defer r.observe(OpActionCollection, sc, time.Now(), &err)

	action, ok := ParseCollectionAction(req.Action)
	if !ok {
		return rest.ActionResponse{}, rest.NewNotSupported(fmt.Sprintf("action %q is not supported", req.Action))
	}

	switch action {
	case ActionSkip:
		return r.skip(ctx, sc, req)
	case ActionCheck:
		return r.check(ctx, sc)
	}
	return rest.ActionResponse{}, rest.NewNotSupported(fmt.Sprintf("action %q is not supported", req.Action))
}

// ActionInstance always fails: device instances define no actions.
func (r *Resource) ActionInstance(_ context.Context, sc identity.SecurityContext, _ string, req rest.ActionRequest) (resp rest.ActionResponse, err error) {
	defer r.observe(OpActionInstance, sc, time.Now(), &err)
	return rest.ActionResponse{}, rest.NewNotSupported(fmt.Sprintf("action %q is not supported on a device", req.Action))
}

type skipRequest struct {
	Value json.RawMessage `json:"value"`
}

// skipValue reads {"value": bool}. The value may also be a string such as
// "false". Anything that does not yield a boolean counts as absent, and an
// absent value means true.
func skipValue(req rest.ActionRequest) bool {
	var body skipRequest
	if err := req.DecodeContent(&body); err != nil || len(body.Value) == 0 || string(body.Value) == "null" {
		return true
	}

	var v bool
	if err := json.Unmarshal(body.Value, &v); err == nil {
		return v
	}
	var s string
	if err := json.Unmarshal(body.Value, &s); err == nil {
		if v, err := strconv.ParseBool(s); err == nil {
			return v
		}
	}
	return true
}

func (r *Resource) skip(ctx context.Context, sc identity.SecurityContext, req rest.ActionRequest) (rest.ActionResponse, error) {
	skippable := skipValue(req)

	id, svc, err := r.identityAndService(ctx, sc)
	if err != nil {
		return rest.ActionResponse{}, err
	}

	state := NotSkippable
	if skippable {
		state = Skippable
	}
	if err := id.SetAttribute(ctx, svc.SkippableAttribute, state.String()); err != nil {
		return rest.ActionResponse{}, rest.NewInternal("failed to update skip state", err)
	}

	realmPath := id.Realm().String()
	r.logger.Info("oath skip state updated", "user_id", id.UserID(), "realm", realmPath, "skippable", skippable)
	r.record(&audit.AuditLog{
		Action:     audit.ActionSkip,
		EntityType: auditEntityType,
		UserID:     id.UserID(),
		Realm:      realmPath,
		Details:    map[string]any{"skippable": skippable},
	})
	r.publish(ctx, Event{
		Type:      EventSkipUpdated,
		UserID:    id.UserID(),
		Realm:     realmPath,
		Skippable: &skippable,
	})
	return rest.ActionResponse{Content: map[string]any{}}, nil
}

func (r *Resource) check(ctx context.Context, sc identity.SecurityContext) (rest.ActionResponse, error) {
	id, svc, err := r.identityAndService(ctx, sc)
	if err != nil {
		return rest.ActionResponse{}, err
	}
	values, err := id.GetAttribute(ctx, svc.SkippableAttribute)
	if err != nil {
		return rest.ActionResponse{}, rest.NewInternal("failed to read skip state", err)
	}
	return rest.ActionResponse{Content: map[string]any{"result": svc.IsSkippable(values)}}, nil
}

// identityAndService resolves the target identity and its realm settings.
func (r *Resource) identityAndService(ctx context.Context, sc identity.SecurityContext) (identity.Identity, *OathService, error) {
	id, err := r.resolver.Identity(ctx, sc)
	if err != nil {
		return nil, nil, asRestError("failed to resolve identity", err)
	}
	svc, err := r.services.OathService(ctx, id.Realm())
	if err != nil {
		return nil, nil, rest.NewInternal("failed to load realm settings", err)
	}
	return id, svc, nil
}

// resolve returns the target user id and realm path of sc.
func (r *Resource) resolve(ctx context.Context, sc identity.SecurityContext) (string, string, error) {
	rlm, err := sc.Realm()
	if err != nil {
		return "", "", rest.NewInternal("failed to resolve realm", err)
	}
	userID, err := r.resolver.ResolveUserID(ctx, sc)
	if err != nil {
		return "", "", asRestError("failed to resolve user", err)
	}
	return userID, rlm.String(), nil
}

// asRestError keeps a *rest.Error from the resolver and wraps anything
// else as internal.
func asRestError(message string, err error) error {
	var re *rest.Error
	if errors.As(err, &re) {
		return re
	}
	return rest.NewInternal(message, err)
}

// profileResponse wraps p; the uuid doubles as the resource id.
func profileResponse(p Profile) rest.ResourceResponse {
	return rest.ResourceResponse{ID: p.UUID(), Content: p}
}

func (r *Resource) record(entry *audit.AuditLog) {
	if r.audit != nil {
		r.audit.Record(entry)
	}
}

// publish sends ev and logs failures. The change it reports is already
// committed, so a failed publish does not fail the operation.
func (r *Resource) publish(ctx context.Context, ev Event) {
	if r.events == nil {
		return
	}
	ev.Timestamp = time.Now().UTC()
	if err := r.events.PublishDeviceEvent(ctx, ev); err != nil {
		r.logger.Warn("publishing device event failed", "event", ev.Type, "user_id", ev.UserID, "error", err)
	}
}

// observe records metrics and logs failures of an operation. errp points
// at the operation's named error result.
func (r *Resource) observe(op Operation, sc identity.SecurityContext, start time.Time, errp *error) {
	realmPath := "unknown"
	if rlm, err := sc.Realm(); err == nil {
		realmPath = rlm.String()
	}

	outcome := "ok"
	if *errp != nil {
		re := rest.AsError(*errp)
		outcome = re.Reason
		switch {
		case rest.IsInternal(re):
			r.logger.Error("oath device operation failed", "operation", op, "realm", realmPath, "error", *errp)
		case rest.IsNotFound(re), rest.IsNotSupported(re):
			r.logger.Debug("oath device operation rejected", "operation", op, "realm", realmPath, "reason", re.Reason)
		default:
			// Denied or malformed requests.
			r.logger.Info("oath device operation refused", "operation", op, "realm", realmPath, "reason", re.Reason, "status", re.Code)
		}
	}

	if r.metrics != nil {
		r.metrics.RecordOperation(op, realmPath, outcome, time.Since(start))
	}
}
