package devices

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-mfa/internal/audit"
	"github.com/nerrad567/gray-logic-mfa/internal/identity"
	"github.com/nerrad567/gray-logic-mfa/internal/realm"
	"github.com/nerrad567/gray-logic-mfa/internal/rest"
)

// plainStore is a Store without versioning that records calls.
type plainStore struct {
	mu        sync.Mutex
	profiles  []Profile
	fetchErr  error
	saveErr   error
	fetches   int
	saves     int
	lastSaved []Profile
	lastUser  string
	lastRealm string
}

func (s *plainStore) Fetch(_ context.Context, userID, realmPath string) ([]Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	s.lastUser, s.lastRealm = userID, realmPath
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return cloneProfiles(s.profiles), nil
}

func (s *plainStore) Save(_ context.Context, _, _ string, profiles []Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.lastSaved = cloneProfiles(profiles)
	s.profiles = cloneProfiles(profiles)
	return nil
}

// conflictingStore wraps a MemoryStore and reports a version conflict on
// the first n conditional saves.
type conflictingStore struct {
	*MemoryStore
	conflicts int
	attempts  int
}

func (s *conflictingStore) SaveIfVersion(ctx context.Context, userID, realmPath string, profiles []Profile, version int64) error {
	s.attempts++
	if s.attempts <= s.conflicts {
		return ErrVersionConflict
	}
	return s.MemoryStore.SaveIfVersion(ctx, userID, realmPath, profiles, version)
}

// fakeIdentity keeps attributes in memory.
type fakeIdentity struct {
	mu     sync.Mutex
	userID string
	realm  realm.Realm
	attrs  map[string]identity.AttributeSet
	getErr error
	setErr error
}

func (i *fakeIdentity) UserID() string     { return i.userID }
func (i *fakeIdentity) Realm() realm.Realm { return i.realm }

func (i *fakeIdentity) GetAttribute(_ context.Context, name string) (identity.AttributeSet, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.getErr != nil {
		return nil, i.getErr
	}
	return i.attrs[name], nil
}

func (i *fakeIdentity) SetAttribute(_ context.Context, name string, values ...string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.setErr != nil {
		return i.setErr
	}
	if i.attrs == nil {
		i.attrs = make(map[string]identity.AttributeSet)
	}
	i.attrs[name] = values
	return nil
}

// fakeResolver resolves every context to one identity.
type fakeResolver struct {
	id    *fakeIdentity
	err   error
	calls int
}

func (r *fakeResolver) ResolveUserID(context.Context, identity.SecurityContext) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return r.id.userID, nil
}

func (r *fakeResolver) Identity(context.Context, identity.SecurityContext) (identity.Identity, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.id, nil
}

type staticServices struct {
	attr string
	err  error
}

func (s staticServices) OathService(_ context.Context, r realm.Realm) (*OathService, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &OathService{Realm: r, SkippableAttribute: s.attr}, nil
}

type recordedOp struct {
	op      Operation
	realm   string
	outcome string
}

type fakeMetrics struct {
	mu  sync.Mutex
	ops []recordedOp
}

func (m *fakeMetrics) RecordOperation(op Operation, realmPath, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, recordedOp{op, realmPath, outcome})
}

type fakeEvents struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (e *fakeEvents) PublishDeviceEvent(_ context.Context, ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return e.err
}

type fakeAuditor struct {
	entries []*audit.AuditLog
}

func (a *fakeAuditor) Record(entry *audit.AuditLog) {
	a.entries = append(a.entries, entry)
}

var errBoom = errors.New("boom")

const testAttr = "oath2faEnabled"

// fixture wires a Resource to fakes for user "demo" in the root realm.
type fixture struct {
	store    Store
	resolver *fakeResolver
	identity *fakeIdentity
	metrics  *fakeMetrics
	events   *fakeEvents
	audit    *fakeAuditor
	resource *Resource
	sc       identity.SecurityContext
}

func newFixture(store Store) *fixture {
	id := &fakeIdentity{userID: "demo", realm: realm.Root()}
	f := &fixture{
		store:    store,
		identity: id,
		resolver: &fakeResolver{id: id},
		metrics:  &fakeMetrics{},
		events:   &fakeEvents{},
		audit:    &fakeAuditor{},
		sc:       identity.NewContext("demo", "demo", realm.Root()),
	}
	r, err := NewResource(Deps{
		Store:    store,
		Resolver: f.resolver,
		Services: staticServices{attr: testAttr},
		Events:   f.events,
		Metrics:  f.metrics,
		Audit:    f.audit,
	})
	if err != nil {
		panic(err)
	}
	f.resource = r
	return f
}

// newProfile builds a profile with the well-known fields set.
func newProfile(name, id string, lastSelected time.Time) Profile {
	p := Profile{}
	p.setString(FieldName, name)
	if id != "" {
		p.setString(FieldUUID, id)
	}
	if !lastSelected.IsZero() {
		p.fields[FieldLastSelectedDate] = json.RawMessage(strconv.FormatInt(lastSelected.UnixMilli(), 10))
	}
	return p
}

func sampleProfiles() []Profile {
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return []Profile{
		newProfile("phone", "uuid-a", t0),
		newProfile("tablet", "uuid-b", t0.Add(time.Hour)),
		newProfile("laptop", "uuid-c", time.Time{}),
	}
}

func uuids(profiles []Profile) []string {
	out := make([]string, len(profiles))
	for i, p := range profiles {
		out[i] = p.UUID()
	}
	return out
}

// unresolvableRealm is a security context whose realm cannot be resolved.
type unresolvableRealm struct{ *identity.Context }

func (unresolvableRealm) Realm() (realm.Realm, error) { return realm.Realm{}, errBoom }

func mustRealm(t *testing.T, path string) realm.Realm {
	t.Helper()
	r, err := realm.Parse(path)
	if err != nil {
		t.Fatalf("realm.Parse(%q) error = %v", path, err)
	}
	return r
}

// handlerFunc adapts a function to rest.QueryHandler.
type handlerFunc func(rest.ResourceResponse) bool

func (f handlerFunc) HandleResource(r rest.ResourceResponse) bool { return f(r) }
