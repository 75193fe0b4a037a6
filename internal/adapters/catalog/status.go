package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sztanko/madeira-pass/internal/core/domain"
)

// StatusDocument is the operational status feed as published by the
// upstream scraper: a timestamped snapshot of per-route open/closed
// state. last_updated stays a string; this service republishes it, it
// does not interpret it.
type StatusDocument struct {
	LastUpdated string                 `json:"last_updated"`
	SourceURL   string                 `json:"source_url"`
	Routes      map[string]StatusEntry `json:"routes"`
}

// StatusEntry is one route's row in the status feed.
type StatusEntry struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	StatusText string `json:"status_text"`
	Island     string `json:"island"`
}

// StatusFile reads the status feed from a JSON file that an external
// job refreshes during the day.
type StatusFile struct {
	path string
}

// NewStatusFile creates a status source over a feed file.
func NewStatusFile(path string) *StatusFile {
	return &StatusFile{path: path}
}

// Document returns the full parsed feed, metadata included.
func (s *StatusFile) Document(ctx context.Context) (*StatusDocument, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read status feed %s: %w", s.path, err)
	}
	doc, err := ParseStatusDocument(data)
	if err != nil {
		return nil, fmt.Errorf("parse status feed %s: %w", s.path, err)
	}
	return doc, nil
}

// LoadStatuses returns the per-route status map. Status strings the
// feed uses but this build does not know map to unknown rather than
// failing the whole read.
func (s *StatusFile) LoadStatuses(ctx context.Context) (map[string]domain.RouteStatus, error) {
	doc, err := s.Document(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]domain.RouteStatus, len(doc.Routes))
	for id, entry := range doc.Routes {
		out[id] = domain.ParseRouteStatus(entry.Status)
	}
	return out, nil
}

// ParseStatusDocument decodes the status feed JSON.
func ParseStatusDocument(data []byte) (*StatusDocument, error) {
	var doc StatusDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode status feed: %w", err)
	}
	if doc.Routes == nil {
		doc.Routes = map[string]StatusEntry{}
	}
	return &doc, nil
}
