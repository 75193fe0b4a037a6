package ports

import (
	"context"

	"github.com/sztanko/madeira-pass/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishDecision(ctx context.Context, d *domain.ProximityDecision) error
	PublishFix(ctx context.Context, f *domain.Fix) error
}

// LocationSource delivers device fixes from an external producer.
// Subscribe starts delivery until Close; source failures are returned
// to the caller, never injected into the stream as fixes.
type LocationSource interface {
	Subscribe(ctx context.Context, handler func(ctx context.Context, f domain.Fix) error) error
	Close()
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
