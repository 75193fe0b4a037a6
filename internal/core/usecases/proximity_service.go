package usecases

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sztanko/madeira-pass/internal/core/domain"
	"github.com/sztanko/madeira-pass/internal/core/ports"
	"github.com/sztanko/madeira-pass/internal/pkg/metrics"
)

// ProximityService owns the live engine session: it serializes fixes
// and user actions, keeps the current decision, and publishes updates.
// One instance per process; the model is a single device.
//
// Every fix gets a sequence number at arrival. If two fixes race, the
// one with the higher number wins the presentation no matter which
// finishes computing first; the loser's decision is returned to its
// caller but never stored or published.
type ProximityService struct {
	engine    *Engine
	ledger    *PassLedger
	index     *RouteIndex
	publisher ports.EventPublisher // optional

	seq atomic.Uint64

	mu      sync.Mutex
	state   EngineState
	current domain.ProximityDecision
}

// NewProximityService wires the engine session. publisher may be nil.
func NewProximityService(engine *Engine, ledger *PassLedger, index *RouteIndex, publisher ports.EventPublisher) *ProximityService {
	return &ProximityService{
		engine:    engine,
		ledger:    ledger,
		index:     index,
		publisher: publisher,
		current: domain.ProximityDecision{
			DistanceMeters: math.Inf(1),
			Action:         domain.ActionNone,
		},
	}
}

// OnFix evaluates one location fix and returns the resulting decision.
func (s *ProximityService) OnFix(ctx context.Context, fix domain.Fix) (domain.ProximityDecision, error) {
	fix.Seq = s.seq.Add(1)

	if s.publisher != nil {
		_ = s.publisher.PublishFix(ctx, &fix)
	}

	start := time.Now()

	s.mu.Lock()
	state, d := s.engine.Evaluate(ctx, s.state, fix)
	d.Seq = fix.Seq
	d.At = time.Now()

	metrics.EvaluateDuration.Observe(time.Since(start).Seconds())
	metrics.FixesProcessed.Inc()

	if d.Seq < s.current.Seq {
		// A later fix has already been applied; this result is stale.
		s.mu.Unlock()
		metrics.StaleFixesDropped.Inc()
		return d, nil
	}
	s.state = state
	s.current = d
	s.mu.Unlock()

	s.publish(ctx, d)
	return d, nil
}

// Current returns the latest decision. When the location source goes
// quiet the value simply stays stale-but-valid; it never resets.
func (s *ProximityService) Current() domain.ProximityDecision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Select applies an explicit route selection. The decision is
// show-info for that route regardless of distance, and automatic
// proximity decisions stop reaching the presentation until
// ClearSelection.
func (s *ProximityService) Select(ctx context.Context, routeID string) (domain.ProximityDecision, error) {
	seq := s.seq.Add(1)

	s.mu.Lock()
	state, d, err := s.engine.Select(ctx, s.state, routeID)
	if err != nil {
		s.mu.Unlock()
		return domain.ProximityDecision{}, err
	}
	d.Seq = seq
	d.At = time.Now()
	s.state = state
	s.current = d
	s.mu.Unlock()

	s.publish(ctx, d)
	return d, nil
}

// ClearSelection drops the explicit selection; the automatic decision
// for the last known fix takes over.
func (s *ProximityService) ClearSelection(ctx context.Context) (domain.ProximityDecision, error) {
	seq := s.seq.Add(1)

	s.mu.Lock()
	state, d := s.engine.ClearSelection(ctx, s.state)
	d.Seq = seq
	d.At = time.Now()
	s.state = state
	s.current = d
	s.mu.Unlock()

	s.publish(ctx, d)
	return d, nil
}

// MarkPaid records today's payment for a route and re-derives the
// current decision so an active warning downgrades immediately.
func (s *ProximityService) MarkPaid(ctx context.Context, routeID string) (domain.ProximityDecision, error) {
	if _, ok := s.index.Get(routeID); !ok {
		return domain.ProximityDecision{}, domain.ErrRouteNotFound
	}
	if err := s.ledger.MarkPaid(ctx, routeID); err != nil {
		return domain.ProximityDecision{}, err
	}
	return s.refresh(ctx), nil
}

// UnmarkPaid removes a route's mark and re-derives the decision.
func (s *ProximityService) UnmarkPaid(ctx context.Context, routeID string) (domain.ProximityDecision, error) {
	if _, ok := s.index.Get(routeID); !ok {
		return domain.ProximityDecision{}, domain.ErrRouteNotFound
	}
	if err := s.ledger.UnmarkPaid(ctx, routeID); err != nil {
		return domain.ProximityDecision{}, err
	}
	return s.refresh(ctx), nil
}

// ClearPasses wipes the ledger and re-derives the decision.
func (s *ProximityService) ClearPasses(ctx context.Context) domain.ProximityDecision {
	s.ledger.Clear(ctx)
	return s.refresh(ctx)
}

// refresh recomputes the presentation state after a ledger change.
// Ledger writes happen only on explicit user actions, so this runs at
// human cadence.
func (s *ProximityService) refresh(ctx context.Context) domain.ProximityDecision {
	seq := s.seq.Add(1)

	s.mu.Lock()
	state, d := s.engine.Refresh(ctx, s.state)
	d.Seq = seq
	d.At = time.Now()
	s.state = state
	s.current = d
	s.mu.Unlock()

	metrics.PassMarksActive.Set(float64(len(s.ledger.Active(ctx))))

	s.publish(ctx, d)
	return d
}

func (s *ProximityService) publish(ctx context.Context, d domain.ProximityDecision) {
	metrics.DecisionsTotal.WithLabelValues(string(d.Action)).Inc()
	if s.publisher != nil {
		_ = s.publisher.PublishDecision(ctx, &d)
	}
}
