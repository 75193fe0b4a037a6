package usecases

import (
	"context"
	"math"

	"github.com/sztanko/madeira-pass/internal/core/domain"
	"github.com/sztanko/madeira-pass/internal/pkg/geospatial"
)

// ProximityThresholdMeters is the distance below which the user counts
// as standing on a route. Domain constant, not configuration.
const ProximityThresholdMeters = 50.0

// PaidChecker answers whether a route's fee is recorded for today.
// Satisfied by *PassLedger.
type PaidChecker interface {
	IsPaid(ctx context.Context, routeID string) bool
}

// EngineState is the engine's whole memory between invocations. It is
// passed in and returned rather than held globally so evaluations stay
// deterministic and testable.
type EngineState struct {
	// SelectedRouteID is set by an explicit user tap. While non-empty,
	// automatic proximity decisions do not reach the presentation.
	SelectedRouteID string
	// LastFix is the most recent fix, kept so user actions (select,
	// mark, unmark) can re-derive a current decision without waiting
	// for the next fix.
	LastFix *domain.Fix
}

// Engine derives presentation decisions from fixes, the catalogue and
// the ledger. Evaluations are pure reads: nothing here ever writes a
// mark or mutates the catalogue.
type Engine struct {
	index *RouteIndex
	paid  PaidChecker
}

// NewEngine creates an engine over a loaded index and a ledger.
func NewEngine(index *RouteIndex, paid PaidChecker) *Engine {
	return &Engine{index: index, paid: paid}
}

// Evaluate processes one fix. With no active selection the result is
// the automatic proximity decision: warning when standing on an unpaid
// paying route, info when standing on a free or paid one, none when off
// every route. With an active selection the selection's informational
// decision is returned instead; proximity never overrides a tap.
func (e *Engine) Evaluate(ctx context.Context, state EngineState, fix domain.Fix) (EngineState, domain.ProximityDecision) {
	state.LastFix = &fix

	if state.SelectedRouteID != "" {
		if d, ok := e.selectionDecision(ctx, state); ok {
			return state, d
		}
		// Selected id no longer resolvable; fall back to automatic.
		state.SelectedRouteID = ""
	}

	return state, e.automaticDecision(ctx, fix)
}

// Select records an explicit user selection. The decision is always
// show-info for the chosen route, whatever the distance.
func (e *Engine) Select(ctx context.Context, state EngineState, routeID string) (EngineState, domain.ProximityDecision, error) {
	if _, ok := e.index.Get(routeID); !ok {
		return state, domain.ProximityDecision{}, domain.ErrRouteNotFound
	}
	state.SelectedRouteID = routeID
	d, _ := e.selectionDecision(ctx, state)
	return state, d, nil
}

// ClearSelection drops the explicit selection and re-derives the
// automatic decision from the last known fix.
func (e *Engine) ClearSelection(ctx context.Context, state EngineState) (EngineState, domain.ProximityDecision) {
	state.SelectedRouteID = ""
	return e.Refresh(ctx, state)
}

// Refresh recomputes the current decision without new input, used after
// ledger changes so paid state is reflected immediately. No fix seen
// yet means an empty none-decision.
func (e *Engine) Refresh(ctx context.Context, state EngineState) (EngineState, domain.ProximityDecision) {
	if state.SelectedRouteID != "" {
		if d, ok := e.selectionDecision(ctx, state); ok {
			return state, d
		}
		state.SelectedRouteID = ""
	}
	if state.LastFix != nil {
		return state, e.automaticDecision(ctx, *state.LastFix)
	}
	return state, domain.ProximityDecision{
		DistanceMeters: math.Inf(1),
		Action:         domain.ActionNone,
	}
}

func (e *Engine) automaticDecision(ctx context.Context, fix domain.Fix) domain.ProximityDecision {
	route, dist := e.index.Nearest(fix.Point())
	within := route != nil && dist <= ProximityThresholdMeters

	d := domain.ProximityDecision{
		DistanceMeters:  dist,
		WithinThreshold: within,
		Action:          domain.ActionNone,
	}
	if route == nil {
		return d
	}

	d.NearestRouteID = route.ID
	d.NearestRoute = route
	d.Paid = e.paid.IsPaid(ctx, route.ID)

	switch {
	case !within:
		d.Action = domain.ActionNone
	case route.RequiresPayment && !d.Paid:
		d.Action = domain.ActionShowWarning
	default:
		d.Action = domain.ActionShowInfo
	}
	return d
}

func (e *Engine) selectionDecision(ctx context.Context, state EngineState) (domain.ProximityDecision, bool) {
	route, ok := e.index.Get(state.SelectedRouteID)
	if !ok {
		return domain.ProximityDecision{}, false
	}

	dist := math.Inf(1)
	if state.LastFix != nil {
		dist = geospatial.DistanceToGeometry(state.LastFix.Point(), route.Geometry)
	}

	return domain.ProximityDecision{
		NearestRouteID:  route.ID,
		NearestRoute:    route,
		DistanceMeters:  dist,
		WithinThreshold: dist <= ProximityThresholdMeters,
		Paid:            e.paid.IsPaid(ctx, route.ID),
		Action:          domain.ActionShowInfo,
		Selected:        true,
	}, true
}
