package influxdb

import (
	"time"

	"github.com/nerrad567/gray-logic-mfa/internal/devices"
)

// MeasurementOperations is the measurement written for each device
// resource call.
const MeasurementOperations = "mfa_operations"

// PointWriter queues a single point. *Client implements it.
type PointWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time)
}

// MetricsRecorder implements devices.MetricsRecorder on top of a PointWriter.
type MetricsRecorder struct {
	w   PointWriter
	now func() time.Time
}

// NewMetricsRecorder returns a recorder writing to w.
func NewMetricsRecorder(w PointWriter) *MetricsRecorder {
	return &MetricsRecorder{w: w, now: time.Now}
}

// RecordOperation writes one mfa_operations point.
func (m *MetricsRecorder) RecordOperation(op devices.Operation, realmPath, outcome string, d time.Duration) {
	m.w.WritePoint(MeasurementOperations,
		map[string]string{
			"operation": string(op),
			"realm":     realmPath,
			"outcome":   outcome,
		},
		map[string]any{
			"count":       1,
			"duration_ms": float64(d) / float64(time.Millisecond),
		},
		m.now(),
	)
}

var _ devices.MetricsRecorder = (*MetricsRecorder)(nil)
