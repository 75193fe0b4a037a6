package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sztanko/madeira-pass/internal/core/domain"
)

// Subjects carried by JetStream. Raw fixes come in from producers,
// accepted fixes and decisions go out from the engine session.
const (
	SubjectFixRaw       = "trail.fix.raw"
	SubjectFixAccepted  = "trail.fix.accepted"
	subjectDecisionBase = "trail.decision."
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS, enables JetStream and ensures the
// trail streams exist.
func NewPublisher(url string) (*Publisher, error) {
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

	// Fixes are consumed once by the engine ingest; decisions fan out
	// to whoever is listening and age out quickly.
	streams := []nats.StreamConfig{
		{
			Name:      "TRAIL_FIXES",
			Subjects:  []string{"trail.fix.>"},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "TRAIL_DECISIONS",
			Subjects:  []string{"trail.decision.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist — try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishDecision emits a decision on trail.decision.<route id>, or
// trail.decision.none when no route is involved.
func (p *Publisher) PublishDecision(ctx context.Context, d *domain.ProximityDecision) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	subject := subjectDecisionBase + "none"
	if d.NearestRouteID != "" {
		subject = subjectDecisionBase + d.NearestRouteID
	}
	_, err = p.js.Publish(subject, data)
	return err
}

// PublishFix emits an accepted, sequence-stamped fix.
func (p *Publisher) PublishFix(ctx context.Context, f *domain.Fix) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectFixAccepted, data)
	return err
}

// PublishRawFix emits an unstamped fix for the engine ingest to pick
// up. Used by the feeder, never by the engine session itself.
func (p *Publisher) PublishRawFix(ctx context.Context, f *domain.Fix) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectFixRaw, data)
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
