package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-mfa/internal/devices"
)

// Publisher is the subset of *Client used by EventPublisher.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// EventPublisher sends device events as JSON. It implements
// devices.EventPublisher.
type EventPublisher struct {
	pub Publisher
	qos byte
}

// NewEventPublisher returns an EventPublisher sending at the given QoS.
func NewEventPublisher(pub Publisher, qos byte) *EventPublisher {
	return &EventPublisher{pub: pub, qos: qos}
}

// PublishDeviceEvent publishes ev on Topics{}.OathEvent. Events are never retained.
func (p *EventPublisher) PublishDeviceEvent(ctx context.Context, ev devices.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", ev.Type, err)
	}
	return p.pub.Publish(Topics{}.OathEvent(ev.Realm, ev.UserID, ev.Type), payload, p.qos, false)
}

var _ devices.EventPublisher = (*EventPublisher)(nil)
