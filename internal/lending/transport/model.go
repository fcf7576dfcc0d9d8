package transport

import (
	"database/sql"
	"time"

	"gkiportal-backend/internal/lending/booking"
	"gkiportal-backend/internal/lending/status"
)

type Vehicle struct {
	VehicleID        int64
	Name             string
	PlateNumber      sql.NullString
	Capacity         int
	PersonInChargeID sql.NullString
	CreatedAt        time.Time
}

// TransportLoan is a time-boxed commitment on one vehicle. Vehicles have
// no per-unit sub-entities, so transitions touch nothing but the status.
type TransportLoan struct {
	LoanID          int64
	LoanULID        string
	VehicleID       int64
	BorrowerID      string
	BorrowerName    string
	BorrowStart     time.Time
	BorrowEnd       time.Time
	Purpose         sql.NullString
	Origin          sql.NullString
	Destination     sql.NullString
	PassengersCount sql.NullInt64
	Status          status.Status
	CreatedAt       time.Time
}

func (l *TransportLoan) Window() booking.Window {
	return booking.Window{Start: l.BorrowStart, End: l.BorrowEnd}
}

type LoanFilter struct {
	VehicleID  *int64
	BorrowerID *string
	Statuses   []status.Status
	After      *time.Time
}
