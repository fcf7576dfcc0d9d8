package rooms

import (
	"time"

	"gkiportal-backend/internal/lending/booking"
	"gkiportal-backend/internal/lending/status"
)

type Room struct {
	RoomID    int64
	Name      string
	Capacity  int
	Location  string
	CreatedAt time.Time
}

// Reservation is a time-boxed commitment on one room. Ownership is keyed
// by the requester's uuid; RequesterName is display-only, joined from
// profiles at read time.
type Reservation struct {
	ReservationID   int64
	ReservationULID string
	RoomID          int64
	RequesterID     string
	RequesterName   string
	EventName       string
	StartTime       time.Time
	EndTime         time.Time
	Status          status.Status
	CreatedAt       time.Time
}

func (r *Reservation) Window() booking.Window {
	return booking.Window{Start: r.StartTime, End: r.EndTime}
}

type ReservationFilter struct {
	RoomID      *int64
	RequesterID *string
	Statuses    []status.Status
	// After keeps only reservations ending after the given instant.
	After *time.Time
}
