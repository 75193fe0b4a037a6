package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sztanko/madeira-pass/internal/core/domain"
	"github.com/sztanko/madeira-pass/internal/core/ports"
)

// PassLedger is the day-scoped record of paid trail fees. A mark is
// valid only on the calendar date it was created, evaluated in the
// ledger's timezone at read time; there is no sliding window and no
// expiry timer. A mark made at 23:59 is gone at midnight.
//
// Marks live in memory and are written through to the PassStore so they
// survive restarts within the same day. An unreadable or corrupt store
// is treated as empty: the safe failure mode is re-prompting for
// payment, not skipping a warning.
type PassLedger struct {
	store ports.PassStore
	loc   *time.Location
	now   func() time.Time

	mu     sync.Mutex
	marks  map[string]string // route id -> paid date
	loaded bool
}

// NewPassLedger creates a ledger over the given store. A nil location
// means the system's local timezone.
func NewPassLedger(store ports.PassStore, loc *time.Location) *PassLedger {
	if loc == nil {
		loc = time.Local
	}
	return &PassLedger{
		store: store,
		loc:   loc,
		now:   time.Now,
		marks: map[string]string{},
	}
}

// Today returns the current calendar date in the ledger's timezone.
func (l *PassLedger) Today() string {
	return l.now().In(l.loc).Format(domain.DateLayout)
}

// IsPaid reports whether routeID has an active mark for today.
func (l *PassLedger) IsPaid(ctx context.Context, routeID string) bool {
	return l.IsPaidOn(ctx, routeID, l.Today())
}

// IsPaidOn reports whether routeID has a mark for the given Y-M-D day.
// A stored mark for any other day counts as absent, whether or not it
// has been physically purged yet.
func (l *PassLedger) IsPaidOn(ctx context.Context, routeID, day string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLoaded(ctx)

	return l.marks[routeID] == day
}

// MarkPaid records that routeID is paid for today. Idempotent; any
// prior mark for the route, whatever its date, is superseded.
func (l *PassLedger) MarkPaid(ctx context.Context, routeID string) error {
	return l.MarkPaidOn(ctx, routeID, l.Today())
}

// MarkPaidOn records a mark for an explicit day. Outside tests, day
// should be the ledger's Today.
func (l *PassLedger) MarkPaidOn(ctx context.Context, routeID, day string) error {
	if routeID == "" {
		return fmt.Errorf("mark paid: empty route id")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLoaded(ctx)

	l.marks[routeID] = day
	return l.persist(ctx)
}

// UnmarkPaid removes any mark for routeID regardless of its date.
// Removing a mark that does not exist is a silent no-op.
func (l *PassLedger) UnmarkPaid(ctx context.Context, routeID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLoaded(ctx)

	if _, ok := l.marks[routeID]; !ok {
		return nil
	}
	delete(l.marks, routeID)
	return l.persist(ctx)
}

// Clear removes all marks. It never fails: a store write problem is
// logged and the in-memory state is cleared regardless.
func (l *PassLedger) Clear(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loaded = true
	l.marks = map[string]string{}

	if err := l.store.Save(ctx, nil); err != nil {
		slog.Warn("pass store clear failed", "error", err)
	}
}

// Active returns today's marks sorted by route id. Expired marks are
// filtered out.
func (l *PassLedger) Active(ctx context.Context) []domain.PaidMark {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLoaded(ctx)

	today := l.Today()
	out := make([]domain.PaidMark, 0, len(l.marks))
	for id, day := range l.marks {
		if day == today {
			out = append(out, domain.PaidMark{RouteID: id, PaidDate: day})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RouteID < out[j].RouteID })
	return out
}

// ensureLoaded pulls the persisted marks on first use. Callers hold mu.
func (l *PassLedger) ensureLoaded(ctx context.Context) {
	if l.loaded {
		return
	}
	l.loaded = true

	marks, err := l.store.Load(ctx)
	if err != nil {
		slog.Warn("pass store unreadable, starting with an empty ledger", "error", err)
		return
	}
	for _, m := range marks {
		if m.RouteID == "" {
			continue
		}
		l.marks[m.RouteID] = m.PaidDate
	}
}

// persist writes the current marks through to the store, dropping
// expired entries on the way out. Callers hold mu.
func (l *PassLedger) persist(ctx context.Context) error {
	today := l.Today()
	out := make([]domain.PaidMark, 0, len(l.marks))
	for id, day := range l.marks {
		if day != today {
			continue
		}
		out = append(out, domain.PaidMark{RouteID: id, PaidDate: day})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RouteID < out[j].RouteID })

	if err := l.store.Save(ctx, out); err != nil {
		return fmt.Errorf("save pass marks: %w", err)
	}
	return nil
}
