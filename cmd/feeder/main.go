// The feeder replays recorded walks into the raw fix subject so the
// engine session in the API processes them exactly as it would live
// device fixes. Tracks come from a manifest of encoded polylines or
// NDJSON fix files; fixes are published at a walking cadence.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sztanko/madeira-pass/internal/adapters/catalog"
	natsadapter "github.com/sztanko/madeira-pass/internal/adapters/nats"
	"github.com/sztanko/madeira-pass/internal/core/domain"
	"github.com/sztanko/madeira-pass/internal/pkg/config"
)

// ---------------------------------------------------------------------------
// Manifest types
// ---------------------------------------------------------------------------

type Manifest struct {
	Source string       `json:"source"`
	Tracks []TrackEntry `json:"tracks"`
}

type TrackEntry struct {
	Name       string  `json:"name"`
	Slug       string  `json:"slug"`
	Polyline   string  `json:"polyline,omitempty"` // Google encoded polyline
	NDJSONPath string  `json:"ndjson,omitempty"`   // one fix JSON per line
	IntervalMS int     `json:"interval_ms,omitempty"`
	Accuracy   float64 `json:"accuracy,omitempty"`
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("madeirapass-feeder")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	// Load manifest
	manifestPath := "tracks.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}

	// Filter tracks (optional CLI arg: slug list)
	slugFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			slugFilter[strings.TrimSpace(s)] = true
		}
	}

	log.Printf("Madeira Pass feeder — %d tracks from %s", len(manifest.Tracks), manifest.Source)

	// Signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		log.Printf("received signal %v, stopping feeder", sig)
		cancel()
	}()

	// The engine models a single device, so tracks play one after
	// another, never interleaved.
	for _, track := range manifest.Tracks {
		if len(slugFilter) > 0 && !slugFilter[track.Slug] {
			continue
		}
		if err := replayTrack(ctx, pub, track); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("ERROR [%s]: %v", track.Slug, err)
		}
	}

	log.Println("all tracks replayed")
}

// ---------------------------------------------------------------------------
// Track replay
// ---------------------------------------------------------------------------

func replayTrack(ctx context.Context, pub *natsadapter.Publisher, track TrackEntry) error {
	fixes, err := trackFixes(track)
	if err != nil {
		return err
	}

	interval := time.Duration(track.IntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 2 * time.Second // typical phone fix cadence
	}

	log.Printf("[%s] replaying %d fixes at %s", track.Slug, len(fixes), interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i, fix := range fixes {
		if err := pub.PublishRawFix(ctx, &fix); err != nil {
			return fmt.Errorf("publish fix %d: %w", i, err)
		}

		if i == len(fixes)-1 {
			break
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	log.Printf("[%s] done", track.Slug)
	return nil
}

// trackFixes expands a manifest entry into the fix sequence.
func trackFixes(track TrackEntry) ([]domain.Fix, error) {
	switch {
	case track.Polyline != "":
		points, err := catalog.DecodeTrack([]byte(track.Polyline))
		if err != nil {
			return nil, fmt.Errorf("decode track: %w", err)
		}
		fixes := make([]domain.Fix, 0, len(points))
		for _, p := range points {
			fixes = append(fixes, domain.Fix{Lat: p.Lat, Lon: p.Lon, Accuracy: track.Accuracy})
		}
		return fixes, nil

	case track.NDJSONPath != "":
		f, err := os.Open(track.NDJSONPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		var fixes []domain.Fix
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var fix domain.Fix
			if err := json.Unmarshal([]byte(line), &fix); err != nil {
				return nil, fmt.Errorf("line %q: %w", line, err)
			}
			fixes = append(fixes, fix)
		}
		return fixes, scanner.Err()

	default:
		return nil, fmt.Errorf("track %s has neither polyline nor ndjson", track.Slug)
	}
}
