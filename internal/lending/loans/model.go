package loans

import (
	"database/sql"
	"time"

	"gkiportal-backend/internal/inventory/products"
	"gkiportal-backend/internal/lending/status"
)

// Loan targets exactly one of a serialized unit or a bulk template with
// a quantity. The two reference columns are the tag of the variant.
type Loan struct {
	LoanID     int64
	LoanULID   string
	UnitID     sql.NullInt64
	TemplateID sql.NullInt64
	Quantity   int
	BorrowerID string
	LoanDate   time.Time
	DueDate    time.Time
	ReturnDate sql.NullTime
	Status     status.Status
	Note       sql.NullString
	CreatedAt  time.Time
}

func (l *Loan) Serialized() bool { return l.UnitID.Valid }

// TransitionEffects is the side-effect plan a legal transition applies
// atomically with the status update.
type TransitionEffects struct {
	// SetUnitStatus, when non-nil, moves the referenced unit to the given
	// status inside the same transaction.
	SetUnitStatus *products.UnitStatus
	// RequireUnitStatus guards SetUnitStatus: the write only applies when
	// the unit currently has this status, otherwise the transition lost a
	// race and must fail.
	RequireUnitStatus *products.UnitStatus
	// StampReturn records the return instant on the loan row. It is the
	// only path that ever writes return_date.
	StampReturn bool
}

// LoanFilter narrows loan listings.
type LoanFilter struct {
	BorrowerID *string
	Statuses   []status.Status
	UnreturnedOnly bool
}
