package transport

import (
	"context"
	"crypto/rand"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"gkiportal-backend/internal/lending/booking"
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

type Store interface {
	GetVehicle(ctx context.Context, id int64) (*Vehicle, error)
	ListVehicles(ctx context.Context) ([]Vehicle, error)
	InsertVehicle(ctx context.Context, v *Vehicle) error
	UpdateVehicle(ctx context.Context, v *Vehicle) error
	DeleteVehicle(ctx context.Context, id int64) error
	GetLoan(ctx context.Context, id int64) (*TransportLoan, error)
	ListLoans(ctx context.Context, f LoanFilter) ([]TransportLoan, error)
	InsertLoan(ctx context.Context, l *TransportLoan) error
	BlockingCommitments(ctx context.Context, vehicleID int64) ([]booking.Commitment, error)
	// UpdateStatus is conditioned on the expected current status and
	// fails with a conflict when a concurrent decision got there first.
	UpdateStatus(ctx context.Context, loanID int64, from, to status.Status) error
	DeletePendingOwned(ctx context.Context, loanID int64, borrowerID string) (bool, error)
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

func requireTransportPrivilege(p auth.Principal) error {
	if !p.IsManagement() || !p.Allowed(auth.PrivTransport) {
		return apierr.Forbidden("transport privilege required")
	}
	return nil
}

// ===== Vehicles =====

func (s *Service) CreateVehicle(ctx context.Context, p auth.Principal, req CreateVehicleRequest) (*VehicleResponse, error) {
	if err := requireTransportPrivilege(p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, apierr.Invalid("name is required")
	}
	v := &Vehicle{Name: strings.TrimSpace(req.Name), Capacity: req.Capacity}
	if req.PlateNumber != nil && *req.PlateNumber != "" {
		v.PlateNumber.String = *req.PlateNumber
		v.PlateNumber.Valid = true
	}
	if req.PersonInChargeID != nil && *req.PersonInChargeID != "" {
		if _, err := uuid.Parse(*req.PersonInChargeID); err != nil {
			return nil, apierr.Invalid("person_in_charge_id must be a uuid")
		}
		v.PersonInChargeID.String = *req.PersonInChargeID
		v.PersonInChargeID.Valid = true
	}
	if err := s.store.InsertVehicle(ctx, v); err != nil {
		return nil, apierr.FromStore("plate number already exists or unknown person in charge", err)
	}
	resp := buildVehicleResponse(v)
	return &resp, nil
}

func (s *Service) UpdateVehicle(ctx context.Context, p auth.Principal, id int64, req UpdateVehicleRequest) (*VehicleResponse, error) {
	if err := requireTransportPrivilege(p); err != nil {
		return nil, err
	}
	v, err := s.store.GetVehicle(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, apierr.Invalid("name must not be empty")
		}
		v.Name = strings.TrimSpace(*req.Name)
	}
	if req.PlateNumber != nil {
		v.PlateNumber.String = *req.PlateNumber
		v.PlateNumber.Valid = *req.PlateNumber != ""
	}
	if req.Capacity != nil {
		v.Capacity = *req.Capacity
	}
	if req.PersonInChargeID != nil {
		if *req.PersonInChargeID == "" {
			v.PersonInChargeID = sql.NullString{}
		} else {
			if _, err := uuid.Parse(*req.PersonInChargeID); err != nil {
				return nil, apierr.Invalid("person_in_charge_id must be a uuid")
			}
			v.PersonInChargeID.String = *req.PersonInChargeID
			v.PersonInChargeID.Valid = true
		}
	}
	if err := s.store.UpdateVehicle(ctx, v); err != nil {
		return nil, apierr.FromStore("plate number already exists or unknown person in charge", err)
	}
	resp := buildVehicleResponse(v)
	return &resp, nil
}

func (s *Service) DeleteVehicle(ctx context.Context, p auth.Principal, id int64) error {
	if err := requireTransportPrivilege(p); err != nil {
		return err
	}
	if _, err := s.store.GetVehicle(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteVehicle(ctx, id); err != nil {
		return apierr.FromStore("vehicle still has loans", err)
	}
	return nil
}

func (s *Service) ListVehicles(ctx context.Context) ([]VehicleResponse, error) {
	items, err := s.store.ListVehicles(ctx)
	if err != nil {
		return nil, apierr.Internal("failed to list vehicles", err)
	}
	out := make([]VehicleResponse, 0, len(items))
	for i := range items {
		out = append(out, buildVehicleResponse(&items[i]))
	}
	return out, nil
}

// VehicleSchedule lists the vehicle's upcoming blocking commitments so
// members can pick a free window.
func (s *Service) VehicleSchedule(ctx context.Context, vehicleID int64) ([]LoanResponse, error) {
	if _, err := s.store.GetVehicle(ctx, vehicleID); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	items, err := s.store.ListLoans(ctx, LoanFilter{
		VehicleID: &vehicleID,
		Statuses:  booking.TransportBlocking,
		After:     &now,
	})
	if err != nil {
		return nil, apierr.Internal("failed to load schedule", err)
	}
	out := make([]LoanResponse, 0, len(items))
	for i := range items {
		out = append(out, buildLoanResponse(&items[i]))
	}
	return out, nil
}

// ===== Loans =====

// CreateLoan checks the window against pending and approved loans of the
// vehicle: pending requests block later ones, first come first
// considered.
func (s *Service) CreateLoan(ctx context.Context, p auth.Principal, req CreateLoanRequest) (*LoanResponse, error) {
	w := booking.Window{Start: req.BorrowStart, End: req.BorrowEnd}
	if !w.Valid() {
		return nil, apierr.Invalid("borrow_start must precede borrow_end")
	}
	if req.PassengersCount != nil && *req.PassengersCount < 1 {
		return nil, apierr.Invalid("passengers_count must be >= 1")
	}
	if _, err := s.store.GetVehicle(ctx, req.VehicleID); err != nil {
		return nil, err
	}

	existing, err := s.store.BlockingCommitments(ctx, req.VehicleID)
	if err != nil {
		return nil, apierr.Internal("failed to load commitments", err)
	}
	if c := booking.FindConflict(w, existing, booking.TransportBlocking); c != nil {
		return nil, apierr.Conflict("vehicle is already requested in that window")
	}

	idStr, err := s.id.New()
	if err != nil {
		return nil, apierr.Internal("failed to generate id", err)
	}
	l := &TransportLoan{
		LoanULID:    idStr,
		VehicleID:   req.VehicleID,
		BorrowerID:  p.ID.String(),
		BorrowStart: req.BorrowStart,
		BorrowEnd:   req.BorrowEnd,
		Status:      status.Pending,
		CreatedAt:   s.clock.Now(),
	}
	setNullString(&l.Purpose, req.Purpose)
	setNullString(&l.Origin, req.Origin)
	setNullString(&l.Destination, req.Destination)
	if req.PassengersCount != nil {
		l.PassengersCount.Int64 = *req.PassengersCount
		l.PassengersCount.Valid = true
	}

	if err := s.store.InsertLoan(ctx, l); err != nil {
		return nil, apierr.FromStore("failed to create transport loan", err)
	}
	resp := buildLoanResponse(l)
	return &resp, nil
}

// Transition is a status-only update; vehicles have no per-unit records
// to keep in sync.
func (s *Service) Transition(ctx context.Context, p auth.Principal, loanID int64, req TransitionRequest) (*LoanResponse, error) {
	if err := requireTransportPrivilege(p); err != nil {
		return nil, err
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

	if err := s.store.UpdateStatus(ctx, l.LoanID, l.Status, to); err != nil {
		return nil, err
	}
	l.Status = to
	resp := buildLoanResponse(l)
	return &resp, nil
}

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
		return apierr.Internal("failed to cancel transport loan", err)
	}
	if !removed {
		return apierr.Conflict("request was already decided")
	}
	return nil
}

func (s *Service) ListLoans(ctx context.Context, f LoanFilter) ([]LoanResponse, error) {
	items, err := s.store.ListLoans(ctx, f)
	if err != nil {
		return nil, apierr.Internal("failed to list transport loans", err)
	}
	out := make([]LoanResponse, 0, len(items))
	for i := range items {
		out = append(out, buildLoanResponse(&items[i]))
	}
	return out, nil
}

func (s *Service) MyLoans(ctx context.Context, p auth.Principal) ([]LoanResponse, error) {
	borrower := p.ID.String()
	return s.ListLoans(ctx, LoanFilter{BorrowerID: &borrower})
}

func (s *Service) PendingLoans(ctx context.Context) ([]LoanResponse, error) {
	return s.ListLoans(ctx, LoanFilter{Statuses: []status.Status{status.Pending}})
}

func setNullString(dst *sql.NullString, v *string) {
	if v != nil && *v != "" {
		dst.String = *v
		dst.Valid = true
	}
}
