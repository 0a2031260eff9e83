package devices

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-mfa/internal/audit"
	"github.com/nerrad567/gray-logic-mfa/internal/identity"
	"github.com/nerrad567/gray-logic-mfa/internal/realm"
	"github.com/nerrad567/gray-logic-mfa/internal/rest"
)

func TestNewResource_RequiresDeps(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
	}{
		{"no store", Deps{Resolver: &fakeResolver{}, Services: staticServices{}}},
		{"no resolver", Deps{Store: NewMemoryStore(), Services: staticServices{}}},
		{"no services", Deps{Store: NewMemoryStore(), Resolver: &fakeResolver{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewResource(tt.deps); err == nil {
				t.Error("NewResource() should fail")
			}
		})
	}
}

func TestQueryCollection(t *testing.T) {
	t.Run("delivers profiles in storage order", func(t *testing.T) {
		store := &plainStore{profiles: sampleProfiles()}
		f := newFixture(store)

		var got rest.Collector
		resp, err := f.resource.QueryCollection(context.Background(), f.sc, rest.QueryRequest{}, &got)
		if err != nil {
			t.Fatalf("QueryCollection() error = %v", err)
		}
		if resp.ResultCount != 3 || resp.TotalPagedResults != -1 {
			t.Errorf("response = %+v", resp)
		}

		var ids []string
		for _, r := range got.Results {
			ids = append(ids, r.Content.(Profile).UUID())
		}
		if want := []string{"uuid-a", "uuid-b", "uuid-c"}; !reflect.DeepEqual(ids, want) {
			t.Errorf("delivered %v, want %v", ids, want)
		}
		if got.Results[0].ID != "uuid-a" {
			t.Errorf("ResourceResponse.ID = %q", got.Results[0].ID)
		}
		if store.lastUser != "demo" || store.lastRealm != "/" {
			t.Errorf("fetched (%s, %s), want (demo, /)", store.lastUser, store.lastRealm)
		}
	})

	t.Run("empty list succeeds with no callbacks", func(t *testing.T) {
		f := newFixture(&plainStore{})
		calls := 0
		h := handlerFunc(func(rest.ResourceResponse) bool { calls++; return true })

		resp, err := f.resource.QueryCollection(context.Background(), f.sc, rest.QueryRequest{}, h)
		if err != nil {
			t.Fatalf("QueryCollection() error = %v", err)
		}
		if calls != 0 || resp.ResultCount != 0 {
			t.Errorf("calls = %d, ResultCount = %d", calls, resp.ResultCount)
		}
	})

	t.Run("ignores filter sort and paging", func(t *testing.T) {
		f := newFixture(&plainStore{profiles: sampleProfiles()})
		req := rest.QueryRequest{QueryFilter: `name eq "phone"`, SortKeys: []string{"-name"}, PageSize: 1}

		var got rest.Collector
		if _, err := f.resource.QueryCollection(context.Background(), f.sc, req, &got); err != nil {
			t.Fatalf("QueryCollection() error = %v", err)
		}
		if len(got.Results) != 3 || got.Results[0].Content.(Profile).Name() != "phone" {
			t.Errorf("filtered results: %+v", got.Results)
		}
	})

	t.Run("repeated queries are identical", func(t *testing.T) {
		f := newFixture(&plainStore{profiles: sampleProfiles()})
		var first, second rest.Collector
		f.resource.QueryCollection(context.Background(), f.sc, rest.QueryRequest{}, &first)  //nolint:errcheck // compared below
		f.resource.QueryCollection(context.Background(), f.sc, rest.QueryRequest{}, &second) //nolint:errcheck // compared below

		a, _ := json.Marshal(first.Results)
		b, _ := json.Marshal(second.Results)
		if string(a) != string(b) {
			t.Errorf("queries differ:\n%s\n%s", a, b)
		}
	})

	t.Run("handler may stop early", func(t *testing.T) {
		f := newFixture(&plainStore{profiles: sampleProfiles()})
		h := handlerFunc(func(rest.ResourceResponse) bool { return false })
		resp, err := f.resource.QueryCollection(context.Background(), f.sc, rest.QueryRequest{}, h)
		if err != nil {
			t.Fatalf("QueryCollection() error = %v", err)
		}
		if resp.ResultCount != 1 {
			t.Errorf("ResultCount = %d, want 1", resp.ResultCount)
		}
	})

	t.Run("store failure is internal", func(t *testing.T) {
		f := newFixture(&plainStore{fetchErr: errBoom})
		_, err := f.resource.QueryCollection(context.Background(), f.sc, rest.QueryRequest{}, &rest.Collector{})
		if !rest.IsInternal(err) {
			t.Errorf("error = %v, want internal", err)
		}
	})

	t.Run("resolution failure is internal and skips the store", func(t *testing.T) {
		store := &plainStore{profiles: sampleProfiles()}
		f := newFixture(store)
		f.resolver.err = errBoom

		_, err := f.resource.QueryCollection(context.Background(), f.sc, rest.QueryRequest{}, &rest.Collector{})
		if !rest.IsInternal(err) {
			t.Errorf("error = %v, want internal", err)
		}
		if store.fetches != 0 {
			t.Errorf("store fetched %d times", store.fetches)
		}
	})

	t.Run("resolver rest errors pass through", func(t *testing.T) {
		f := newFixture(&plainStore{})
		f.resolver.err = rest.NewForbidden("nope")

		_, err := f.resource.QueryCollection(context.Background(), f.sc, rest.QueryRequest{}, &rest.Collector{})
		if re := rest.AsError(err); re.Code != http.StatusForbidden {
			t.Errorf("error = %v, want 403", err)
		}
	})
}

func TestDeleteInstance(t *testing.T) {
	stores := map[string]func() Store{
		"plain":     func() Store { return &plainStore{profiles: sampleProfiles()} },
		"versioned": func() Store { return seededMemoryStore(t) },
	}

	for name, newStore := range stores {
		t.Run(name+"/removes exactly one", func(t *testing.T) {
			store := newStore()
			f := newFixture(store)

			resp, err := f.resource.DeleteInstance(context.Background(), f.sc, "uuid-b", rest.DeleteRequest{})
			if err != nil {
				t.Fatalf("DeleteInstance() error = %v", err)
			}
			removed := resp.Content.(Profile)
			if removed.UUID() != "uuid-b" || removed.Name() != "tablet" {
				t.Errorf("removed = %s/%s", removed.UUID(), removed.Name())
			}

			left, err := store.Fetch(context.Background(), "demo", "/")
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if got, want := uuids(left), []string{"uuid-a", "uuid-c"}; !reflect.DeepEqual(got, want) {
				t.Errorf("remaining = %v, want %v", got, want)
			}

			if len(f.events.events) != 1 || f.events.events[0].Type != EventDeviceRemoved || f.events.events[0].DeviceUUID != "uuid-b" {
				t.Errorf("events = %+v", f.events.events)
			}
			if len(f.audit.entries) != 1 || f.audit.entries[0].Action != audit.ActionDelete {
				t.Fatalf("audit = %+v", f.audit.entries)
			}
			details := f.audit.entries[0].Details
			if details["name"] != "tablet" || details["last_selected"] != "2026-01-02T04:04:05Z" {
				t.Errorf("audit details = %v", details)
			}
		})

		t.Run(name+"/missing id fails closed", func(t *testing.T) {
			store := newStore()
			f := newFixture(store)

			_, err := f.resource.DeleteInstance(context.Background(), f.sc, "uuid-zzz", rest.DeleteRequest{})
			if !rest.IsNotFound(err) {
				t.Fatalf("error = %v, want not found", err)
			}
			if ps, ok := store.(*plainStore); ok && ps.saves != 0 {
				t.Errorf("Save called %d times", ps.saves)
			}
			left, _ := store.Fetch(context.Background(), "demo", "/")
			if len(left) != 3 {
				t.Errorf("remaining = %d, want 3", len(left))
			}
			if len(f.events.events) != 0 || len(f.audit.entries) != 0 {
				t.Error("failed delete published an event or audit entry")
			}
		})
	}

	t.Run("empty id never matches a profile without uuid", func(t *testing.T) {
		store := &plainStore{profiles: []Profile{newProfile("legacy", "", time.Time{})}}
		f := newFixture(store)
		if _, err := f.resource.DeleteInstance(context.Background(), f.sc, "", rest.DeleteRequest{}); !rest.IsNotFound(err) {
			t.Errorf("error = %v, want not found", err)
		}
	})

	t.Run("save failure is internal", func(t *testing.T) {
		f := newFixture(&plainStore{profiles: sampleProfiles(), saveErr: errBoom})
		if _, err := f.resource.DeleteInstance(context.Background(), f.sc, "uuid-a", rest.DeleteRequest{}); !rest.IsInternal(err) {
			t.Errorf("error = %v, want internal", err)
		}
	})

	t.Run("retries version conflicts", func(t *testing.T) {
		store := &conflictingStore{MemoryStore: seededMemoryStore(t), conflicts: deleteAttempts - 1}
		f := newFixture(store)
		if _, err := f.resource.DeleteInstance(context.Background(), f.sc, "uuid-a", rest.DeleteRequest{}); err != nil {
			t.Fatalf("DeleteInstance() error = %v", err)
		}
		if store.attempts != deleteAttempts {
			t.Errorf("attempts = %d, want %d", store.attempts, deleteAttempts)
		}
	})

	t.Run("persistent conflict is 409", func(t *testing.T) {
		store := &conflictingStore{MemoryStore: seededMemoryStore(t), conflicts: deleteAttempts}
		f := newFixture(store)
		_, err := f.resource.DeleteInstance(context.Background(), f.sc, "uuid-a", rest.DeleteRequest{})
		if re := rest.AsError(err); re == nil || re.Code != http.StatusConflict {
			t.Errorf("error = %v, want 409", err)
		}
	})

	t.Run("publish failure does not fail the delete", func(t *testing.T) {
		f := newFixture(&plainStore{profiles: sampleProfiles()})
		f.events.err = errBoom
		if _, err := f.resource.DeleteInstance(context.Background(), f.sc, "uuid-a", rest.DeleteRequest{}); err != nil {
			t.Errorf("DeleteInstance() error = %v", err)
		}
	})
}

func TestDeleteInstance_ConcurrentVersioned(t *testing.T) {
	store := seededMemoryStore(t)
	f := newFixture(store)

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for _, id := range []string{"uuid-a", "uuid-b", "uuid-c"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.resource.DeleteInstance(context.Background(), f.sc, id, rest.DeleteRequest{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else if re := rest.AsError(err); re.Code != http.StatusConflict {
			t.Errorf("unexpected error %v", err)
		}
	}

	left, _ := store.Fetch(context.Background(), "demo", "/")
	if len(left) != 3-succeeded {
		t.Errorf("remaining = %d after %d successful deletes; an update was lost", len(left), succeeded)
	}
}

func TestActionCollection(t *testing.T) {
	t.Run("unknown verb is not supported and touches nothing", func(t *testing.T) {
		for _, verb := range []string{"", "reset", "SKIP", "Check"} {
			store := &plainStore{}
			f := newFixture(store)
			_, err := f.resource.ActionCollection(context.Background(), f.sc, rest.ActionRequest{Action: verb})
			if !rest.IsNotSupported(err) {
				t.Errorf("action %q error = %v, want not supported", verb, err)
			}
			if f.resolver.calls != 0 || store.fetches != 0 {
				t.Errorf("action %q resolved or read the store", verb)
			}
		}
	})

	t.Run("skip returns empty object and marks skippable", func(t *testing.T) {
		f := newFixture(&plainStore{})
		resp, err := f.resource.ActionCollection(context.Background(), f.sc, rest.ActionRequest{
			Action:  "skip",
			Content: json.RawMessage(`{"value": true}`),
		})
		if err != nil {
			t.Fatalf("skip error = %v", err)
		}
		if resp.Content == nil || len(resp.Content) != 0 {
			t.Errorf("skip content = %v, want {}", resp.Content)
		}
		if got := f.identity.attrs[testAttr]; !reflect.DeepEqual([]string(got), []string{"2"}) {
			t.Errorf("attribute = %v, want [2]", got)
		}
		if len(f.events.events) != 1 || *f.events.events[0].Skippable != true {
			t.Errorf("events = %+v", f.events.events)
		}
		if len(f.audit.entries) != 1 || f.audit.entries[0].Action != audit.ActionSkip {
			t.Errorf("audit = %+v", f.audit.entries)
		}
	})

	// Bodies that do not yield a boolean leave the default of true.
	skipBodies := []struct {
		name    string
		content string
		want    string
	}{
		{"no body", "", "2"},
		{"empty object", `{}`, "2"},
		{"null value", `{"value": null}`, "2"},
		{"false", `{"value": false}`, "1"},
		{"true", `{"value": true}`, "2"},
		{"string false", `{"value": "false"}`, "1"},
		{"string true", `{"value": "TRUE"}`, "2"},
		{"unparseable string", `{"value": "yes"}`, "2"},
		{"number", `{"value": 0}`, "2"},
		{"not an object", `[false]`, "2"},
		{"malformed", `{"value":`, "2"},
	}
	for _, tt := range skipBodies {
		t.Run("skip body "+tt.name, func(t *testing.T) {
			f := newFixture(&plainStore{})
			resp, err := f.resource.ActionCollection(context.Background(), f.sc, rest.ActionRequest{
				Action:  "skip",
				Content: json.RawMessage(tt.content),
			})
			if err != nil {
				t.Fatalf("skip error = %v", err)
			}
			if len(resp.Content) != 0 {
				t.Errorf("content = %v, want empty object", resp.Content)
			}
			if got := f.identity.attrs[testAttr]; len(got) != 1 || got[0] != tt.want {
				t.Errorf("attribute = %v, want [%s]", got, tt.want)
			}
		})
	}

	checks := []struct {
		name  string
		attrs []string
		want  bool
	}{
		{"unset", nil, false},
		{"skippable", []string{"2"}, true},
		{"not skippable", []string{"1"}, false},
		{"not set marker", []string{"0"}, false},
		{"contains skippable", []string{"1", "2"}, true},
	}
	for _, tt := range checks {
		t.Run("check "+tt.name, func(t *testing.T) {
			f := newFixture(&plainStore{})
			if tt.attrs != nil {
				f.identity.attrs = map[string]identity.AttributeSet{testAttr: tt.attrs}
			}
			resp, err := f.resource.ActionCollection(context.Background(), f.sc, rest.ActionRequest{Action: "check"})
			if err != nil {
				t.Fatalf("check error = %v", err)
			}
			if got := resp.Content["result"]; got != tt.want {
				t.Errorf("result = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("skip then check", func(t *testing.T) {
		f := newFixture(&plainStore{})
		ctx := context.Background()
		if _, err := f.resource.ActionCollection(ctx, f.sc, rest.ActionRequest{Action: "skip"}); err != nil {
			t.Fatalf("skip error = %v", err)
		}
		resp, err := f.resource.ActionCollection(ctx, f.sc, rest.ActionRequest{Action: "check"})
		if err != nil {
			t.Fatalf("check error = %v", err)
		}
		if resp.Content["result"] != true {
			t.Errorf("check after skip = %v", resp.Content)
		}
	})

	t.Run("attribute failures are internal", func(t *testing.T) {
		f := newFixture(&plainStore{})
		f.identity.getErr = errBoom
		f.identity.setErr = errBoom

		if _, err := f.resource.ActionCollection(context.Background(), f.sc, rest.ActionRequest{Action: "check"}); !rest.IsInternal(err) {
			t.Errorf("check error = %v, want internal", err)
		}
		if _, err := f.resource.ActionCollection(context.Background(), f.sc, rest.ActionRequest{Action: "skip"}); !rest.IsInternal(err) {
			t.Errorf("skip error = %v, want internal", err)
		}
	})

	t.Run("identity failure is internal", func(t *testing.T) {
		f := newFixture(&plainStore{})
		f.resolver.err = errBoom
		if _, err := f.resource.ActionCollection(context.Background(), f.sc, rest.ActionRequest{Action: "check"}); !rest.IsInternal(err) {
			t.Errorf("error = %v, want internal", err)
		}
	})
}

func TestActionInstance_AlwaysNotSupported(t *testing.T) {
	f := newFixture(&plainStore{profiles: sampleProfiles()})
	for _, verb := range []string{"skip", "check", "rename", ""} {
		_, err := f.resource.ActionInstance(context.Background(), f.sc, "uuid-a", rest.ActionRequest{Action: verb})
		if !rest.IsNotSupported(err) {
			t.Errorf("ActionInstance(%q) error = %v, want not supported", verb, err)
		}
	}
	if f.resolver.calls != 0 {
		t.Error("ActionInstance resolved the identity")
	}
}

func TestResource_UnresolvableRealmIsInternal(t *testing.T) {
	store := &plainStore{profiles: sampleProfiles()}
	f := newFixture(store)
	sc := unresolvableRealm{identity.NewContext("demo", "demo", realm.Root())}
	ctx := context.Background()

	_, qErr := f.resource.QueryCollection(ctx, sc, rest.QueryRequest{}, &rest.Collector{})
	_, dErr := f.resource.DeleteInstance(ctx, sc, "uuid-a", rest.DeleteRequest{})

	for name, err := range map[string]error{"query": qErr, "delete": dErr} {
		if !rest.IsInternal(err) {
			t.Errorf("%s error = %v, want internal", name, err)
		}
	}
	if store.fetches != 0 || store.saves != 0 {
		t.Errorf("store touched: fetches=%d saves=%d", store.fetches, store.saves)
	}
}

func TestResource_RecordsMetrics(t *testing.T) {
	f := newFixture(&plainStore{profiles: sampleProfiles()})
	ctx := context.Background()

	f.resource.QueryCollection(ctx, f.sc, rest.QueryRequest{}, &rest.Collector{})        //nolint:errcheck // metrics only
	f.resource.DeleteInstance(ctx, f.sc, "missing", rest.DeleteRequest{})                //nolint:errcheck // metrics only
	f.resource.ActionCollection(ctx, f.sc, rest.ActionRequest{Action: "nope"})           //nolint:errcheck // metrics only
	f.resource.ActionInstance(ctx, f.sc, "uuid-a", rest.ActionRequest{Action: "check"}) //nolint:errcheck // metrics only

	want := []recordedOp{
		{OpQuery, "/", "ok"},
		{OpDelete, "/", rest.ReasonNotFound},
		{OpActionCollection, "/", rest.ReasonNotSupported},
		{OpActionInstance, "/", rest.ReasonNotSupported},
	}
	if !reflect.DeepEqual(f.metrics.ops, want) {
		t.Errorf("metrics = %+v, want %+v", f.metrics.ops, want)
	}
}

func seededMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	if err := s.Save(context.Background(), "demo", "/", sampleProfiles()); err != nil {
		t.Fatalf("seeding memory store: %v", err)
	}
	return s
}
