package audit

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestSQLiteRepository_Create(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	entry := &AuditLog{
		Action:     ActionDelete,
		EntityType: "oath_device",
		EntityID:   "dev-1",
		UserID:     "usr-1",
		Realm:      "/",
		Source:     "api",
		Details:    map[string]any{"name": "phone"},
	}
	if err := repo.Create(ctx, entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !strings.HasPrefix(entry.ID, "aud-") {
		t.Errorf("ID = %q, want aud- prefix", entry.ID)
	}
	if entry.CreatedAt.IsZero() {
		t.Error("CreatedAt was not set")
	}

	got, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got.Total != 1 || len(got.Logs) != 1 {
		t.Fatalf("List() total = %d, logs = %d, want 1", got.Total, len(got.Logs))
	}
	log := got.Logs[0]
	if log.EntityID != "dev-1" || log.UserID != "usr-1" || log.Realm != "/" {
		t.Errorf("List() = %+v, fields not round-tripped", log)
	}
	if log.Details["name"] != "phone" {
		t.Errorf("Details = %v, want name=phone", log.Details)
	}
}

func TestSQLiteRepository_ListFilters(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seed := []AuditLog{
		{Action: ActionDelete, EntityType: "oath_device", UserID: "usr-1", Realm: "/"},
		{Action: ActionSkip, EntityType: "oath_device", UserID: "usr-1", Realm: "/"},
		{Action: ActionSkip, EntityType: "oath_device", UserID: "usr-2", Realm: "/customers"},
		{Action: ActionLogin, EntityType: "user", UserID: "usr-2", Realm: "/customers"},
	}
	for i := range seed {
		seed[i].Source = "api"
		seed[i].CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("Create(%d) error = %v", i, err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"no filter", Filter{}, 4},
		{"by action", Filter{Action: ActionSkip}, 2},
		{"by entity type", Filter{EntityType: "user"}, 1},
		{"by user", Filter{UserID: "usr-1"}, 2},
		{"by realm", Filter{Realm: "/customers"}, 2},
		{"combined", Filter{Action: ActionSkip, Realm: "/customers"}, 1},
		{"no match", Filter{Action: "rename"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if got.Total != tt.want || len(got.Logs) != tt.want {
				t.Errorf("List() total = %d, logs = %d, want %d", got.Total, len(got.Logs), tt.want)
			}
		})
	}

	t.Run("newest first", func(t *testing.T) {
		got, err := repo.List(ctx, Filter{})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if got.Logs[0].Action != ActionLogin {
			t.Errorf("first action = %q, want %q", got.Logs[0].Action, ActionLogin)
		}
	})

	t.Run("pagination", func(t *testing.T) {
		got, err := repo.List(ctx, Filter{Limit: 2, Offset: 3})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if got.Total != 4 || len(got.Logs) != 1 {
			t.Errorf("List() total = %d, logs = %d, want 4 and 1", got.Total, len(got.Logs))
		}
	})
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		name       string
		in         Filter
		wantLimit  int
		wantOffset int
	}{
		{"defaults", Filter{}, defaultLimit, 0},
		{"caps limit", Filter{Limit: 1000}, maxLimit, 0},
		{"negative offset", Filter{Limit: 10, Offset: -5}, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clampPage(tt.in)
			if got.Limit != tt.wantLimit || got.Offset != tt.wantOffset {
				t.Errorf("clampPage() = (%d, %d), want (%d, %d)", got.Limit, got.Offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}
