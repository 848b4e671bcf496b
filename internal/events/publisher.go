package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher publishes typed events to JetStream.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishExchange publishes a completed exchange.
func (p *Publisher) PublishExchange(ctx context.Context, ev ExchangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling exchange event: %w", err)
	}
	if _, err := p.js.Publish(ctx, SubjectExchange, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", SubjectExchange, err)
	}
	return nil
}
