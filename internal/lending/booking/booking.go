// Package booking decides whether a proposed time window clashes with
// existing commitments. It is a pure predicate; stores run the matching
// SQL overlap query and services re-check through here at approval time.
package booking

import (
	"time"

	"gkiportal-backend/internal/lending/status"
)

// Window is a half-open [Start, End) time range.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Valid() bool { return w.Start.Before(w.End) }

// Overlaps reports whether two half-open windows intersect. A window
// ending exactly when another begins does not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Blocking-status sets per resource family. Pending room requests do not
// block each other; contention is resolved at approval time. Pending
// transport requests do block, first come first considered.
var (
	RoomBlocking      = []status.Status{status.Approved}
	TransportBlocking = []status.Status{status.Pending, status.Approved}
)

// Commitment is an existing row the detector checks a proposal against.
type Commitment struct {
	ID     int64
	Status status.Status
	Window Window
}

// FindConflict returns the first commitment whose status is in blocking
// and whose window overlaps the proposal, or nil.
func FindConflict(proposal Window, existing []Commitment, blocking []status.Status) *Commitment {
	for i := range existing {
		if !statusIn(existing[i].Status, blocking) {
			continue
		}
		if proposal.Overlaps(existing[i].Window) {
			return &existing[i]
		}
	}
	return nil
}

func statusIn(s status.Status, set []status.Status) bool {
	for _, b := range set {
		if s == b {
			return true
		}
	}
	return false
}
