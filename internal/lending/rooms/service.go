package rooms

import (
	"context"
	"crypto/rand"
	"database/sql"
	"strings"
	"time"

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
	GetRoom(ctx context.Context, id int64) (*Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	InsertRoom(ctx context.Context, r *Room) error
	UpdateRoom(ctx context.Context, r *Room) error
	DeleteRoom(ctx context.Context, id int64) error
	GetReservation(ctx context.Context, id int64) (*Reservation, error)
	ListReservations(ctx context.Context, f ReservationFilter) ([]Reservation, error)
	InsertReservation(ctx context.Context, r *Reservation) error
	// BlockingCommitments returns the room's existing commitments for the
	// conflict detector, excluding excludeID when > 0.
	BlockingCommitments(ctx context.Context, roomID int64, excludeID int64) ([]booking.Commitment, error)
	// ExecTransition atomically updates the status; when guard is non-nil
	// it re-verifies, under lock, that no other approved reservation of
	// the room overlaps the window, failing with a conflict otherwise.
	ExecTransition(ctx context.Context, resID int64, roomID int64, from, to status.Status, guard *booking.Window) error
	DeletePendingOwned(ctx context.Context, resID int64, requesterID string) (bool, error)
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

func requireRoomPrivilege(p auth.Principal) error {
	if !p.IsManagement() || !p.Allowed(auth.PrivRoom) {
		return apierr.Forbidden("room privilege required")
	}
	return nil
}

// ===== Rooms =====

func (s *Service) CreateRoom(ctx context.Context, p auth.Principal, req CreateRoomRequest) (*RoomResponse, error) {
	if err := requireRoomPrivilege(p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, apierr.Invalid("name is required")
	}
	r := &Room{Name: strings.TrimSpace(req.Name), Capacity: req.Capacity, Location: req.Location}
	if err := s.store.InsertRoom(ctx, r); err != nil {
		return nil, apierr.FromStore("room name already exists", err)
	}
	resp := buildRoomResponse(r)
	return &resp, nil
}

func (s *Service) UpdateRoom(ctx context.Context, p auth.Principal, id int64, req UpdateRoomRequest) (*RoomResponse, error) {
	if err := requireRoomPrivilege(p); err != nil {
		return nil, err
	}
	r, err := s.store.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, apierr.Invalid("name must not be empty")
		}
		r.Name = strings.TrimSpace(*req.Name)
	}
	if req.Capacity != nil {
		r.Capacity = *req.Capacity
	}
	if req.Location != nil {
		r.Location = *req.Location
	}
	if err := s.store.UpdateRoom(ctx, r); err != nil {
		return nil, apierr.FromStore("room name already exists", err)
	}
	resp := buildRoomResponse(r)
	return &resp, nil
}

func (s *Service) DeleteRoom(ctx context.Context, p auth.Principal, id int64) error {
	if err := requireRoomPrivilege(p); err != nil {
		return err
	}
	if _, err := s.store.GetRoom(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteRoom(ctx, id); err != nil {
		return apierr.FromStore("room still has reservations", err)
	}
	return nil
}

func (s *Service) ListRooms(ctx context.Context) ([]RoomResponse, error) {
	items, err := s.store.ListRooms(ctx)
	if err != nil {
		return nil, apierr.Internal("failed to list rooms", err)
	}
	out := make([]RoomResponse, 0, len(items))
	for i := range items {
		out = append(out, buildRoomResponse(&items[i]))
	}
	return out, nil
}

// RoomSchedule lists the room's approved upcoming reservations.
func (s *Service) RoomSchedule(ctx context.Context, roomID int64) ([]ReservationResponse, error) {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	items, err := s.store.ListReservations(ctx, ReservationFilter{
		RoomID:   &roomID,
		Statuses: []status.Status{status.Approved},
		After:    &now,
	})
	if err != nil {
		return nil, apierr.Internal("failed to load schedule", err)
	}
	out := make([]ReservationResponse, 0, len(items))
	for i := range items {
		out = append(out, buildReservationResponse(&items[i]))
	}
	return out, nil
}

// ===== Reservations =====

// CreateReservation runs the conflict detector against the approved
// commitments of the room before inserting a pending request. Pending
// requests do not block each other; clashes among them are settled at
// approval time.
func (s *Service) CreateReservation(ctx context.Context, p auth.Principal, req CreateReservationRequest) (*ReservationResponse, error) {
	if strings.TrimSpace(req.EventName) == "" {
		return nil, apierr.Invalid("event_name is required")
	}
	w := booking.Window{Start: req.StartTime, End: req.EndTime}
	if !w.Valid() {
		return nil, apierr.Invalid("start_time must precede end_time")
	}
	if _, err := s.store.GetRoom(ctx, req.RoomID); err != nil {
		return nil, err
	}

	existing, err := s.store.BlockingCommitments(ctx, req.RoomID, 0)
	if err != nil {
		return nil, apierr.Internal("failed to load commitments", err)
	}
	if c := booking.FindConflict(w, existing, booking.RoomBlocking); c != nil {
		return nil, apierr.Conflict("room is already booked in that window")
	}

	idStr, err := s.id.New()
	if err != nil {
		return nil, apierr.Internal("failed to generate id", err)
	}
	r := &Reservation{
		ReservationULID: idStr,
		RoomID:          req.RoomID,
		RequesterID:     p.ID.String(),
		EventName:       strings.TrimSpace(req.EventName),
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Status:          status.Pending,
		CreatedAt:       s.clock.Now(),
	}
	if err := s.store.InsertReservation(ctx, r); err != nil {
		return nil, apierr.FromStore("failed to create reservation", err)
	}
	resp := buildReservationResponse(r)
	return &resp, nil
}

// Transition moves a reservation through the lifecycle. Rooms have no
// hand-over step, so Dipinjam is not part of their vocabulary. Approval
// re-runs the conflict check under lock: two overlapping pending requests
// may coexist, but only the first approval wins.
func (s *Service) Transition(ctx context.Context, p auth.Principal, resID int64, req TransitionRequest) (*ReservationResponse, error) {
	if err := requireRoomPrivilege(p); err != nil {
		return nil, err
	}

	to := status.Status(req.NewStatus)
	if !to.Valid() || to == status.Active {
		return nil, apierr.Invalid("unknown reservation status: " + req.NewStatus)
	}

	r, err := s.store.GetReservation(ctx, resID)
	if err != nil {
		return nil, err
	}
	if !status.CanTransition(r.Status, to) {
		return nil, apierr.Conflict("illegal transition from " + string(r.Status) + " to " + string(to))
	}

	var guard *booking.Window
	if to == status.Approved {
		// optimistic pre-check; the store re-verifies under lock
		existing, err := s.store.BlockingCommitments(ctx, r.RoomID, r.ReservationID)
		if err != nil {
			return nil, apierr.Internal("failed to load commitments", err)
		}
		w := r.Window()
		if c := booking.FindConflict(w, existing, booking.RoomBlocking); c != nil {
			return nil, apierr.Conflict("an overlapping reservation was already approved")
		}
		guard = &w
	}

	if err := s.store.ExecTransition(ctx, r.ReservationID, r.RoomID, r.Status, to, guard); err != nil {
		return nil, err
	}
	r.Status = to
	resp := buildReservationResponse(r)
	return &resp, nil
}

func (s *Service) Cancel(ctx context.Context, p auth.Principal, resID int64) error {
	r, err := s.store.GetReservation(ctx, resID)
	if err != nil {
		return err
	}
	if r.RequesterID != p.ID.String() {
		return apierr.Forbidden("only the requester may cancel")
	}
	if r.Status != status.Pending {
		return apierr.Conflict("only pending requests can be cancelled")
	}
	removed, err := s.store.DeletePendingOwned(ctx, resID, p.ID.String())
	if err != nil {
		return apierr.Internal("failed to cancel reservation", err)
	}
	if !removed {
		return apierr.Conflict("request was already decided")
	}
	return nil
}

func (s *Service) ListReservations(ctx context.Context, f ReservationFilter) ([]ReservationResponse, error) {
	items, err := s.store.ListReservations(ctx, f)
	if err != nil {
		return nil, apierr.Internal("failed to list reservations", err)
	}
	out := make([]ReservationResponse, 0, len(items))
	for i := range items {
		out = append(out, buildReservationResponse(&items[i]))
	}
	return out, nil
}

func (s *Service) MyReservations(ctx context.Context, p auth.Principal) ([]ReservationResponse, error) {
	requester := p.ID.String()
	return s.ListReservations(ctx, ReservationFilter{RequesterID: &requester})
}

func (s *Service) PendingReservations(ctx context.Context) ([]ReservationResponse, error) {
	return s.ListReservations(ctx, ReservationFilter{Statuses: []status.Status{status.Pending}})
}
