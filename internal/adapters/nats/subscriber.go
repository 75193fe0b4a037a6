package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sztanko/madeira-pass/internal/core/domain"
)

// Subscriber implements ports.LocationSource over the raw fix subject.
// Fixes published by external producers (the feeder, a phone bridge)
// land here and get handed to the engine session one at a time.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// Subscribe starts durable delivery of raw fixes to the handler. The
// handler's sequence numbering is its own; whatever seq the producer
// set is overwritten at ingest.
func (s *Subscriber) Subscribe(ctx context.Context, handler func(ctx context.Context, f domain.Fix) error) error {
	sub, err := s.js.Subscribe(SubjectFixRaw, func(msg *nats.Msg) {
		var f domain.Fix
		if err := json.Unmarshal(msg.Data, &f); err != nil {
			_ = msg.Nak()
			return
		}
		if err := handler(ctx, f); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("fix-ingest"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
