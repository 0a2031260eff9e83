package devices

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-mfa/internal/audit"
)

// Event types published after a successful change.
const (
	EventDeviceRemoved = "device_removed"
	EventSkipUpdated   = "skip_updated"
)

// Event describes a change to a user's OATH state.
type Event struct {
	Type       string    `json:"event"`
	UserID     string    `json:"user_id"`
	Realm      string    `json:"realm"`
	DeviceUUID string    `json:"device_uuid,omitempty"`
	DeviceName string    `json:"device_name,omitempty"`
	Skippable  *bool     `json:"skippable,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// EventPublisher delivers events to other services.
type EventPublisher interface {
	PublishDeviceEvent(ctx context.Context, ev Event) error
}

// Operation names a Resource operation for metrics.
type Operation string

const (
	OpQuery            Operation = "query"
	OpDelete           Operation = "delete"
	OpActionCollection Operation = "action_collection"
	OpActionInstance   Operation = "action_instance"
)

// MetricsRecorder records the outcome of each Resource operation.
// outcome is "ok" or the reason code of the returned error.
type MetricsRecorder interface {
	RecordOperation(op Operation, realmPath, outcome string, d time.Duration)
}

// Auditor accepts audit entries. *audit.Recorder implements it.
type Auditor interface {
	Record(entry *audit.AuditLog)
}
