package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sztanko/madeira-pass/internal/adapters/catalog"
	"github.com/sztanko/madeira-pass/internal/core/domain"
)

const statusFixture = `{
  "last_updated": "2026-04-12T06:30:00+00:00",
  "source_url": "https://ifcn.madeira.gov.pt/...",
  "routes": {
    "PR8": {"id": "PR8", "name": "Vereda da Ponta de Sao Lourenco", "status": "open", "status_text": "Aberto", "island": "Madeira"},
    "PR1": {"id": "PR1", "name": "Vereda do Areeiro", "status": "partially_open", "status_text": "Parcialmente aberto", "island": "Madeira"},
    "PR13": {"id": "PR13", "name": "Vereda do Fanal", "status": "closed", "status_text": "Encerrado", "island": "Madeira"},
    "PR2": {"id": "PR2", "name": "Vereda do Urzal", "status": "under_review", "status_text": "?", "island": "Madeira"}
  }
}`

func TestParseStatusDocument(t *testing.T) {
	doc, err := catalog.ParseStatusDocument([]byte(statusFixture))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if doc.LastUpdated != "2026-04-12T06:30:00+00:00" {
		t.Errorf("unexpected last_updated: %q", doc.LastUpdated)
	}
	if len(doc.Routes) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(doc.Routes))
	}
	if doc.Routes["PR13"].StatusText != "Encerrado" {
		t.Errorf("unexpected PR13 entry: %+v", doc.Routes["PR13"])
	}
}

func TestParseStatusDocument_EmptyRoutes(t *testing.T) {
	doc, err := catalog.ParseStatusDocument([]byte(`{"last_updated": "2026-04-12T06:30:00+00:00"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Routes == nil {
		t.Error("expected an empty map, not nil")
	}
}

func TestStatusFile_LoadStatuses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	if err := os.WriteFile(path, []byte(statusFixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	statuses, err := catalog.NewStatusFile(path).LoadStatuses(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := map[string]domain.RouteStatus{
		"PR8":  domain.StatusOpen,
		"PR1":  domain.StatusPartiallyOpen,
		"PR13": domain.StatusClosed,
		"PR2":  domain.StatusUnknown, // feed value this build does not know
	}
	for id, expected := range want {
		if statuses[id] != expected {
			t.Errorf("%s: expected %s, got %s", id, expected, statuses[id])
		}
	}
}

func TestStatusFile_MissingFile(t *testing.T) {
	_, err := catalog.NewStatusFile(filepath.Join(t.TempDir(), "nope.json")).LoadStatuses(context.Background())
	if err == nil {
		t.Fatal("expected error for a missing feed file")
	}
}
