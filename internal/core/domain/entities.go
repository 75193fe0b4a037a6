package domain

import (
	"encoding/json"
	"math"
	"time"
)

// Route is a named trail with a geometry and a payment requirement.
// Routes are loaded once per process and never mutated afterwards.
type Route struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Island          string            `json:"island,omitempty"`
	Geometry        Geometry          `json:"geometry"`
	RequiresPayment bool              `json:"requires_payment"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// RouteStatus is the operational state of a trail as published by the
// regional walking-conditions feed. Informational only; the proximity
// decision never consults it.
type RouteStatus string

const (
	StatusOpen          RouteStatus = "open"
	StatusClosed        RouteStatus = "closed"
	StatusPartiallyOpen RouteStatus = "partially_open"
	StatusUnknown       RouteStatus = "unknown"
)

// ParseRouteStatus maps a feed string onto the known vocabulary,
// falling back to StatusUnknown for anything unrecognized.
func ParseRouteStatus(s string) RouteStatus {
	switch RouteStatus(s) {
	case StatusOpen, StatusClosed, StatusPartiallyOpen:
		return RouteStatus(s)
	default:
		return StatusUnknown
	}
}

// DateLayout is the calendar-date format used by PaidMark. Dates are
// compared as strings; two marks are the same day iff the strings match.
const DateLayout = "2006-01-02"

// PaidMark records that a route's daily fee was paid on a calendar date.
// A mark is active only on the exact date it names, evaluated in the
// ledger's timezone; any other date means the mark is expired.
type PaidMark struct {
	RouteID  string `json:"route_id"`
	PaidDate string `json:"paid_date"`
}

// ActiveOn reports whether the mark covers the given day.
func (m PaidMark) ActiveOn(day time.Time) bool {
	return m.PaidDate == day.Format(DateLayout)
}

// Fix is one sampled device location reading. Accuracy is meters and
// informational only; it never enters distance math. Seq is stamped by
// the transport so that a decision from an older fix can be recognized
// and discarded.
type Fix struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Accuracy float64 `json:"accuracy,omitempty"`
	Seq      uint64  `json:"seq,omitempty"`
}

// Point returns the fix's coordinate.
func (f Fix) Point() Point {
	return Point{Lat: f.Lat, Lon: f.Lon}
}

// Action is the presentation state derived from a fix.
type Action string

const (
	ActionNone        Action = "none"
	ActionShowInfo    Action = "show-info"
	ActionShowWarning Action = "show-warning"
)

// ProximityDecision is the output of one engine evaluation. It carries
// no side effects and is held only transiently; every new fix replaces
// it.
type ProximityDecision struct {
	NearestRouteID  string    `json:"nearest_route_id,omitempty"`
	NearestRoute    *Route    `json:"nearest_route,omitempty"`
	DistanceMeters  float64   `json:"distance_meters"`
	WithinThreshold bool      `json:"within_threshold"`
	Paid            bool      `json:"paid"`
	Action          Action    `json:"action"`
	Selected        bool      `json:"selected,omitempty"`
	Seq             uint64    `json:"seq,omitempty"`
	At              time.Time `json:"at,omitempty"`
}

// decisionJSON mirrors ProximityDecision on the wire. DistanceMeters is
// a pointer there because the in-memory value may be +Inf (no catalogue,
// nothing but unsupported shapes), which encoding/json refuses; null
// stands in for "infinitely far".
type decisionJSON struct {
	NearestRouteID  string    `json:"nearest_route_id,omitempty"`
	NearestRoute    *Route    `json:"nearest_route,omitempty"`
	DistanceMeters  *float64  `json:"distance_meters"`
	WithinThreshold bool      `json:"within_threshold"`
	Paid            bool      `json:"paid"`
	Action          Action    `json:"action"`
	Selected        bool      `json:"selected,omitempty"`
	Seq             uint64    `json:"seq,omitempty"`
	At              time.Time `json:"at,omitempty"`
}

func (d ProximityDecision) MarshalJSON() ([]byte, error) {
	out := decisionJSON{
		NearestRouteID:  d.NearestRouteID,
		NearestRoute:    d.NearestRoute,
		WithinThreshold: d.WithinThreshold,
		Paid:            d.Paid,
		Action:          d.Action,
		Selected:        d.Selected,
		Seq:             d.Seq,
		At:              d.At,
	}
	if !math.IsInf(d.DistanceMeters, 1) {
		v := d.DistanceMeters
		out.DistanceMeters = &v
	}
	return json.Marshal(out)
}

func (d *ProximityDecision) UnmarshalJSON(data []byte) error {
	var in decisionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	d.NearestRouteID = in.NearestRouteID
	d.NearestRoute = in.NearestRoute
	d.WithinThreshold = in.WithinThreshold
	d.Paid = in.Paid
	d.Action = in.Action
	d.Selected = in.Selected
	d.Seq = in.Seq
	d.At = in.At
	if in.DistanceMeters != nil {
		d.DistanceMeters = *in.DistanceMeters
	} else {
		d.DistanceMeters = math.Inf(1)
	}
	return nil
}
