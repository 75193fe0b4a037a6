package usecases_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/sztanko/madeira-pass/internal/core/domain"
	"github.com/sztanko/madeira-pass/internal/core/ports"
	"github.com/sztanko/madeira-pass/internal/core/usecases"
)

type mockPublisher struct {
	decisions []domain.ProximityDecision
	fixes     []domain.Fix
}

func (m *mockPublisher) PublishDecision(ctx context.Context, d *domain.ProximityDecision) error {
	m.decisions = append(m.decisions, *d)
	return nil
}

func (m *mockPublisher) PublishFix(ctx context.Context, f *domain.Fix) error {
	m.fixes = append(m.fixes, *f)
	return nil
}

func newTestService(t *testing.T, pub ports.EventPublisher) *usecases.ProximityService {
	t.Helper()
	idx := usecases.NewRouteIndex()
	if err := idx.Load([]domain.Route{prEight(), freeLevada()}); err != nil {
		t.Fatalf("load catalogue: %v", err)
	}
	ledger := usecases.NewPassLedger(&memStore{}, nil)
	engine := usecases.NewEngine(idx, ledger)
	return usecases.NewProximityService(engine, ledger, idx, pub)
}

func TestProximityService_InitialCurrent(t *testing.T) {
	svc := newTestService(t, nil)

	d := svc.Current()
	if d.Action != domain.ActionNone {
		t.Errorf("expected none before any fix, got %s", d.Action)
	}
	if !math.IsInf(d.DistanceMeters, 1) {
		t.Errorf("expected +Inf distance, got %f", d.DistanceMeters)
	}
}

func TestProximityService_OnFixUpdatesCurrent(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	d, err := svc.OnFix(ctx, onPR8())
	if err != nil {
		t.Fatalf("on fix: %v", err)
	}
	if d.Action != domain.ActionShowWarning {
		t.Errorf("expected warning on unpaid PR8, got %s", d.Action)
	}
	if got := svc.Current(); got.Seq != d.Seq || got.Action != d.Action {
		t.Errorf("Current must reflect the applied decision, got %+v", got)
	}
}

func TestProximityService_SeqMonotonic(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	var last uint64
	for i := 0; i < 5; i++ {
		d, err := svc.OnFix(ctx, onPR8())
		if err != nil {
			t.Fatalf("on fix: %v", err)
		}
		if d.Seq <= last {
			t.Fatalf("sequence must increase, got %d after %d", d.Seq, last)
		}
		last = d.Seq
	}
	if got := svc.Current(); got.Seq != last {
		t.Errorf("expected latest seq %d current, got %d", last, got.Seq)
	}
}

func TestProximityService_MarkPaidDowngradesWarning(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	if d, _ := svc.OnFix(ctx, onPR8()); d.Action != domain.ActionShowWarning {
		t.Fatalf("expected warning first, got %s", d.Action)
	}

	d, err := svc.MarkPaid(ctx, "PR8")
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if d.Action != domain.ActionShowInfo {
		t.Errorf("payment must downgrade the warning in place, got %s", d.Action)
	}
	if got := svc.Current(); got.Action != domain.ActionShowInfo {
		t.Errorf("expected current show-info, got %s", got.Action)
	}

	d, err = svc.UnmarkPaid(ctx, "PR8")
	if err != nil {
		t.Fatalf("unmark paid: %v", err)
	}
	if d.Action != domain.ActionShowWarning {
		t.Errorf("removing the mark must restore the warning, got %s", d.Action)
	}
}

func TestProximityService_MarkPaidUnknownRoute(t *testing.T) {
	svc := newTestService(t, nil)

	if _, err := svc.MarkPaid(context.Background(), "PR404"); !errors.Is(err, domain.ErrRouteNotFound) {
		t.Fatalf("expected ErrRouteNotFound, got %v", err)
	}
	if _, err := svc.UnmarkPaid(context.Background(), "PR404"); !errors.Is(err, domain.ErrRouteNotFound) {
		t.Fatalf("expected ErrRouteNotFound, got %v", err)
	}
}

func TestProximityService_ClearPasses(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.OnFix(ctx, onPR8()); err != nil {
		t.Fatalf("on fix: %v", err)
	}
	if _, err := svc.MarkPaid(ctx, "PR8"); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	d := svc.ClearPasses(ctx)
	if d.Action != domain.ActionShowWarning {
		t.Errorf("wiping the ledger must bring the warning back, got %s", d.Action)
	}
}

func TestProximityService_SelectAndClear(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.OnFix(ctx, onPR8()); err != nil {
		t.Fatalf("on fix: %v", err)
	}

	d, err := svc.Select(ctx, "LEVADA-1")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !d.Selected || d.NearestRouteID != "LEVADA-1" || d.Action != domain.ActionShowInfo {
		t.Fatalf("expected selected levada info, got %+v", d)
	}

	// Fixes keep flowing but the selection holds the screen.
	if d, _ := svc.OnFix(ctx, onPR8()); !d.Selected || d.NearestRouteID != "LEVADA-1" {
		t.Fatalf("selection must survive fixes, got %+v", d)
	}

	d, err = svc.ClearSelection(ctx)
	if err != nil {
		t.Fatalf("clear selection: %v", err)
	}
	if d.Selected {
		t.Error("expected selection gone")
	}
	if d.NearestRouteID != "PR8" || d.Action != domain.ActionShowWarning {
		t.Errorf("expected automatic PR8 warning, got %+v", d)
	}
}

func TestProximityService_SelectUnknownRoute(t *testing.T) {
	svc := newTestService(t, nil)

	if _, err := svc.Select(context.Background(), "PR404"); !errors.Is(err, domain.ErrRouteNotFound) {
		t.Fatalf("expected ErrRouteNotFound, got %v", err)
	}
}

func TestProximityService_PublishesDecisionsAndFixes(t *testing.T) {
	pub := &mockPublisher{}
	svc := newTestService(t, pub)
	ctx := context.Background()

	if _, err := svc.OnFix(ctx, onPR8()); err != nil {
		t.Fatalf("on fix: %v", err)
	}
	if len(pub.fixes) != 1 {
		t.Errorf("expected 1 fix published, got %d", len(pub.fixes))
	}
	if len(pub.decisions) != 1 {
		t.Fatalf("expected 1 decision published, got %d", len(pub.decisions))
	}
	if pub.decisions[0].Action != domain.ActionShowWarning {
		t.Errorf("expected published warning, got %s", pub.decisions[0].Action)
	}

	if _, err := svc.Select(ctx, "PR8"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(pub.decisions) != 2 {
		t.Errorf("expected selection published too, got %d", len(pub.decisions))
	}
}
