package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-mfa/internal/devices"
)

type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.msgs = append(f.msgs, published{topic, payload, qos, retained})
	return f.err
}

func TestEventPublisher_PublishDeviceEvent(t *testing.T) {
	fp := &fakePublisher{}
	p := NewEventPublisher(fp, 1)
	ev := devices.Event{
		Type:       devices.EventDeviceRemoved,
		UserID:     "u-1",
		Realm:      "/customers",
		DeviceUUID: "uuid-a",
		DeviceName: "phone",
		Timestamp:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	if err := p.PublishDeviceEvent(context.Background(), ev); err != nil {
		t.Fatalf("PublishDeviceEvent() error = %v", err)
	}
	if len(fp.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(fp.msgs))
	}
	msg := fp.msgs[0]
	if msg.topic != "graylogic/mfa/oath/customers/u-1/device_removed" {
		t.Errorf("topic = %q", msg.topic)
	}
	if msg.qos != 1 || msg.retained {
		t.Errorf("qos = %d, retained = %v; want 1, false", msg.qos, msg.retained)
	}
	var got devices.Event
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.DeviceUUID != "uuid-a" || got.Type != devices.EventDeviceRemoved || !got.Timestamp.Equal(ev.Timestamp) {
		t.Errorf("payload = %+v", got)
	}
}

func TestEventPublisher_Errors(t *testing.T) {
	fp := &fakePublisher{err: ErrNotConnected}
	p := NewEventPublisher(fp, 0)

	err := p.PublishDeviceEvent(context.Background(), devices.Event{Type: devices.EventSkipUpdated, UserID: "u", Realm: "/"})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	before := len(fp.msgs)
	if err := p.PublishDeviceEvent(ctx, devices.Event{}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled error = %v", err)
	}
	if len(fp.msgs) != before {
		t.Error("published after cancellation")
	}
}
