package valkey

import (
	"context"
	"fmt"
	"sort"

	"github.com/sztanko/madeira-pass/internal/core/domain"
)

// marksKey holds the pass marks as a hash of route id to paid date.
const marksKey = "madeirapass:marks"

// PassStore implements ports.PassStore on Valkey, for deployments where
// the pass file's host filesystem is ephemeral. It shares the cache's
// client; expiry still happens at read time in the ledger, so marks are
// stored without TTLs.
type PassStore struct {
	cache *Cache
}

// NewPassStore creates a pass store over an existing cache connection.
func NewPassStore(cache *Cache) *PassStore {
	return &PassStore{cache: cache}
}

// Load reads all persisted marks, sorted by route id.
func (s *PassStore) Load(ctx context.Context) ([]domain.PaidMark, error) {
	cmd := s.cache.client.Do(ctx, s.cache.client.B().Hgetall().Key(marksKey).Build())
	if cmd.Error() != nil {
		return nil, fmt.Errorf("load pass marks: %w", cmd.Error())
	}
	fields, err := cmd.AsStrMap()
	if err != nil {
		return nil, fmt.Errorf("load pass marks: %w", err)
	}

	marks := make([]domain.PaidMark, 0, len(fields))
	for id, day := range fields {
		marks = append(marks, domain.PaidMark{RouteID: id, PaidDate: day})
	}
	sort.Slice(marks, func(i, j int) bool { return marks[i].RouteID < marks[j].RouteID })
	return marks, nil
}

// Save replaces the whole hash with the given marks.
func (s *PassStore) Save(ctx context.Context, marks []domain.PaidMark) error {
	cli := s.cache.client

	del := cli.B().Del().Key(marksKey).Build()
	if len(marks) == 0 {
		if err := cli.Do(ctx, del).Error(); err != nil {
			return fmt.Errorf("clear pass marks: %w", err)
		}
		return nil
	}

	hset := cli.B().Hset().Key(marksKey).FieldValue()
	for _, m := range marks {
		hset = hset.FieldValue(m.RouteID, m.PaidDate)
	}

	for _, resp := range cli.DoMulti(ctx, del, hset.Build()) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("save pass marks: %w", err)
		}
	}
	return nil
}
