// Package status holds the closed status vocabulary shared by asset
// loans, room reservations and transport loans, and the one transition
// table every service consults. The wire values are the Indonesian labels
// the portal has always stored.
package status

// Status is one of the five lifecycle states.
type Status string

const (
	Pending  Status = "Menunggu Persetujuan"
	Approved Status = "Disetujui"
	Active   Status = "Dipinjam"
	Rejected Status = "Ditolak"
	Returned Status = "Dikembalikan"
)

// Valid reports whether s is part of the vocabulary.
func (s Status) Valid() bool {
	switch s {
	case Pending, Approved, Active, Rejected, Returned:
		return true
	}
	return false
}

// Terminal states admit no further transitions.
func (s Status) Terminal() bool { return s == Rejected || s == Returned }

// transitions is the single source of truth for lifecycle legality.
// Approved may go straight to Returned because asset and vehicle flows
// are allowed to skip the Active hand-over step.
var transitions = map[Status][]Status{
	Pending:  {Approved, Rejected},
	Approved: {Active, Rejected, Returned},
	Active:   {Returned},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
