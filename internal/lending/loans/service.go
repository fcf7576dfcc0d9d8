package loans

import (
	"context"
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"gkiportal-backend/internal/inventory/products"
	"gkiportal-backend/internal/lending/status"
	"gkiportal-backend/internal/platform/apierr"
	"gkiportal-backend/internal/platform/auth"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type IDGen interface {
	New() (string, error)
}

type ulidGen struct{}

func (ulidGen) New() (string, error) {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Store is the persistence surface of the loan lifecycle. *SQLStore
// implements it; tests use an in-memory fake.
type Store interface {
	GetLoan(ctx context.Context, id int64) (*Loan, error)
	ListLoans(ctx context.Context, f LoanFilter) ([]Loan, error)
	InsertLoan(ctx context.Context, l *Loan) error
	// ExecTransition atomically moves the loan from -> to and applies fx.
	// It fails with a conflict when the loan no longer has status from or
	// when a unit guard in fx does not hold.
	ExecTransition(ctx context.Context, loanID int64, from, to status.Status, fx TransitionEffects, now time.Time) error
	// DeletePendingOwned removes the loan only while it is still pending
	// and owned by borrowerID; reports whether a row was removed.
	DeletePendingOwned(ctx context.Context, loanID int64, borrowerID string) (bool, error)
	TemplateStock(ctx context.Context, templateID int64) (serialized bool, onHand int, borrowed int, err error)
	UnitState(ctx context.Context, unitID int64) (products.UnitStatus, error)
}

type Service struct {
	store Store
	clock Clock
	id    IDGen
}

func NewService(db *sql.DB) *Service {
	return &Service{store: NewStore(db), clock: realClock{}, id: ulidGen{}}
}

func NewServiceWithStore(store Store, clock Clock, id IDGen) *Service {
	return &Service{store: store, clock: clock, id: id}
}

// CreateLoan validates availability and inserts a pending request. The
// unit is not marked borrowed here; that happens at approval.
func (s *Service) CreateLoan(ctx context.Context, p auth.Principal, req CreateLoanRequest) (*LoanResponse, error) {
	if (req.UnitID == nil) == (req.TemplateID == nil) {
		return nil, apierr.Invalid("exactly one of unit_id or template_id is required")
	}

	loanDate, err := time.Parse("2006-01-02", req.LoanDate)
	if err != nil {
		return nil, apierr.Invalid("invalid loan_date format, expected YYYY-MM-DD")
	}
	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		return nil, apierr.Invalid("invalid due_date format, expected YYYY-MM-DD")
	}
	if dueDate.Before(loanDate) {
		return nil, apierr.Invalid("due_date must not precede loan_date")
	}

	l := &Loan{
		BorrowerID: p.ID.String(),
		LoanDate:   loanDate,
		DueDate:    dueDate,
		Status:     status.Pending,
	}
	if req.Note != nil && *req.Note != "" {
		l.Note.String = *req.Note
		l.Note.Valid = true
	}

	if req.UnitID != nil {
		st, err := s.store.UnitState(ctx, *req.UnitID)
		if err != nil {
			return nil, err
		}
		if st != products.UnitAvailable {
			return nil, apierr.Conflict("unit is not available")
		}
		l.UnitID.Int64 = *req.UnitID
		l.UnitID.Valid = true
		l.Quantity = 1
	} else {
		if req.Quantity < 1 {
			return nil, apierr.Invalid("quantity must be >= 1")
		}
		serialized, onHand, borrowed, err := s.store.TemplateStock(ctx, *req.TemplateID)
		if err != nil {
			return nil, err
		}
		if serialized {
			return nil, apierr.Invalid("serialized templates are borrowed per unit")
		}
		available := onHand - borrowed
		if available < 0 {
			available = 0
		}
		if req.Quantity > available {
			return nil, apierr.Conflict("insufficient stock")
		}
		l.TemplateID.Int64 = *req.TemplateID
		l.TemplateID.Valid = true
		l.Quantity = req.Quantity
	}

	idStr, err := s.id.New()
	if err != nil {
		return nil, apierr.Internal("failed to generate id", err)
	}
	l.LoanULID = idStr
	l.CreatedAt = s.clock.Now()

	if err := s.store.InsertLoan(ctx, l); err != nil {
		return nil, apierr.FromStore("failed to create loan", err)
	}
	resp := buildLoanResponse(l)
	return &resp, nil
}

// Transition moves a loan through the lifecycle and applies the unit
// side effects in the same transaction.
func (s *Service) Transition(ctx context.Context, p auth.Principal, loanID int64, req TransitionRequest) (*LoanResponse, error) {
	if !p.IsManagement() || !p.Allowed(auth.PrivInventory) {
		return nil, apierr.Forbidden("inventory privilege required")
	}

	to := status.Status(req.NewStatus)
	if !to.Valid() {
		return nil, apierr.Invalid("unknown status: " + req.NewStatus)
	}

	l, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !status.CanTransition(l.Status, to) {
		return nil, apierr.Conflict("illegal transition from " + string(l.Status) + " to " + string(to))
	}

	fx := planEffects(l, to)
	now := s.clock.Now()
	if err := s.store.ExecTransition(ctx, l.LoanID, l.Status, to, fx, now); err != nil {
		return nil, err
	}

	l.Status = to
	if fx.StampReturn {
		l.ReturnDate.Time = now
		l.ReturnDate.Valid = true
	}
	resp := buildLoanResponse(l)
	return &resp, nil
}

// planEffects decides what a legal transition does beyond the status
// column. Bulk quantity is freed implicitly: once return_date is set the
// loan drops out of the borrowed-quantity sum.
func planEffects(l *Loan, to status.Status) TransitionEffects {
	var fx TransitionEffects
	if to == status.Returned {
		fx.StampReturn = true
	}
	if !l.Serialized() {
		return fx
	}

	borrowed := products.UnitBorrowed
	available := products.UnitAvailable
	switch to {
	case status.Approved:
		// losing the race against another approval on the same unit must
		// surface as a conflict, hence the guard
		fx.SetUnitStatus = &borrowed
		fx.RequireUnitStatus = &available
	case status.Active:
		if l.Status == status.Approved {
			// unit is already borrowed since approval
			break
		}
		fx.SetUnitStatus = &borrowed
		fx.RequireUnitStatus = &available
	case status.Returned:
		fx.SetUnitStatus = &available
	case status.Rejected:
		if l.Status == status.Approved || l.Status == status.Active {
			// release a unit that was taken at approval time
			fx.SetUnitStatus = &available
		}
	}
	return fx
}

// Cancel is the borrower's own early withdrawal of a still-pending
// request.
func (s *Service) Cancel(ctx context.Context, p auth.Principal, loanID int64) error {
	l, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		return err
	}
	if l.BorrowerID != p.ID.String() {
		return apierr.Forbidden("only the requester may cancel")
	}
	if l.Status != status.Pending {
		return apierr.Conflict("only pending requests can be cancelled")
	}
	removed, err := s.store.DeletePendingOwned(ctx, loanID, p.ID.String())
	if err != nil {
		return apierr.Internal("failed to cancel loan", err)
	}
	if !removed {
		return apierr.Conflict("request was already decided")
	}
	return nil
}

func (s *Service) GetLoan(ctx context.Context, loanID int64) (*LoanResponse, error) {
	l, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	resp := buildLoanResponse(l)
	return &resp, nil
}

func (s *Service) ListLoans(ctx context.Context, f LoanFilter) ([]LoanResponse, error) {
	items, err := s.store.ListLoans(ctx, f)
	if err != nil {
		return nil, apierr.Internal("failed to list loans", err)
	}
	out := make([]LoanResponse, 0, len(items))
	for i := range items {
		out = append(out, buildLoanResponse(&items[i]))
	}
	return out, nil
}

// MyLoans lists the requests owned by the principal.
func (s *Service) MyLoans(ctx context.Context, p auth.Principal) ([]LoanResponse, error) {
	borrower := p.ID.String()
	return s.ListLoans(ctx, LoanFilter{BorrowerID: &borrower})
}

// PendingLoans is the management approval queue.
func (s *Service) PendingLoans(ctx context.Context) ([]LoanResponse, error) {
	return s.ListLoans(ctx, LoanFilter{Statuses: []status.Status{status.Pending}})
}
