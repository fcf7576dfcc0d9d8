package rooms

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"gkiportal-backend/internal/lending/booking"
	"gkiportal-backend/internal/lending/status"
	"gkiportal-backend/internal/platform/apierr"
	"gkiportal-backend/internal/platform/auth"
)

type fakeClock struct{ now time.Time }

func (f fakeClock) Now() time.Time { return f.now }

type seqGen struct{ n int }

func (g *seqGen) New() (string, error) {
	g.n++
	return fmt.Sprintf("01TEST%020d", g.n), nil
}

type fakeRoomStore struct {
	rooms        map[int64]*Room
	reservations map[int64]*Reservation
	nextID       int64
}

func newFakeRoomStore() *fakeRoomStore {
	return &fakeRoomStore{
		rooms:        map[int64]*Room{},
		reservations: map[int64]*Reservation{},
		nextID:       1,
	}
}

func (f *fakeRoomStore) addRoom(name string) int64 {
	id := f.nextID
	f.nextID++
	f.rooms[id] = &Room{RoomID: id, Name: name}
	return id
}

func (f *fakeRoomStore) GetRoom(_ context.Context, id int64) (*Room, error) {
	r, ok := f.rooms[id]
	if !ok {
		return nil, apierr.NotFound("room not found")
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRoomStore) ListRooms(_ context.Context) ([]Room, error) {
	var out []Room
	for _, r := range f.rooms {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeRoomStore) InsertRoom(_ context.Context, r *Room) error {
	r.RoomID = f.nextID
	f.nextID++
	cp := *r
	f.rooms[r.RoomID] = &cp
	return nil
}

func (f *fakeRoomStore) UpdateRoom(_ context.Context, r *Room) error {
	cp := *r
	f.rooms[r.RoomID] = &cp
	return nil
}

func (f *fakeRoomStore) DeleteRoom(_ context.Context, id int64) error {
	if _, ok := f.rooms[id]; !ok {
		return apierr.NotFound("room not found")
	}
	delete(f.rooms, id)
	return nil
}

func (f *fakeRoomStore) GetReservation(_ context.Context, id int64) (*Reservation, error) {
	r, ok := f.reservations[id]
	if !ok {
		return nil, apierr.NotFound("reservation not found")
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRoomStore) ListReservations(_ context.Context, filter ReservationFilter) ([]Reservation, error) {
	var out []Reservation
	for _, r := range f.reservations {
		if filter.RoomID != nil && r.RoomID != *filter.RoomID {
			continue
		}
		if filter.RequesterID != nil && r.RequesterID != *filter.RequesterID {
			continue
		}
		if len(filter.Statuses) > 0 {
			match := false
			for _, st := range filter.Statuses {
				if r.Status == st {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		if filter.After != nil && !r.EndTime.After(*filter.After) {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeRoomStore) InsertReservation(_ context.Context, r *Reservation) error {
	r.ReservationID = f.nextID
	f.nextID++
	cp := *r
	f.reservations[r.ReservationID] = &cp
	return nil
}

func (f *fakeRoomStore) BlockingCommitments(_ context.Context, roomID int64, excludeID int64) ([]booking.Commitment, error) {
	var out []booking.Commitment
	for _, r := range f.reservations {
		if r.RoomID != roomID || r.ReservationID == excludeID {
			continue
		}
		out = append(out, booking.Commitment{ID: r.ReservationID, Status: r.Status, Window: r.Window()})
	}
	return out, nil
}

func (f *fakeRoomStore) ExecTransition(_ context.Context, resID int64, roomID int64, from, to status.Status, guard *booking.Window) error {
	if guard != nil {
		for _, r := range f.reservations {
			if r.RoomID == roomID && r.ReservationID != resID &&
				r.Status == status.Approved && r.Window().Overlaps(*guard) {
				return apierr.Conflict("an overlapping reservation was already approved")
			}
		}
	}
	r, ok := f.reservations[resID]
	if !ok || r.Status != from {
		return apierr.Conflict("reservation status changed concurrently")
	}
	r.Status = to
	return nil
}

func (f *fakeRoomStore) DeletePendingOwned(_ context.Context, resID int64, requesterID string) (bool, error) {
	r, ok := f.reservations[resID]
	if !ok || r.Status != status.Pending || r.RequesterID != requesterID {
		return false, nil
	}
	delete(f.reservations, resID)
	return true, nil
}

var testNow = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func newTestService(f *fakeRoomStore) *Service {
	return NewServiceWithStore(f, fakeClock{now: testNow}, &seqGen{})
}

func roomManager() auth.Principal {
	return auth.Principal{ID: uuid.New(), Role: auth.RoleManagement, Privileges: []string{auth.PrivRoom}}
}

func member() auth.Principal {
	return auth.Principal{ID: uuid.New(), Role: auth.RoleMember}
}

func codeOf(t *testing.T, err error) apierr.Code {
	t.Helper()
	var ae *apierr.APIError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *apierr.APIError, got %v", err)
	}
	return ae.Code
}

func window(startHour, endHour int) (time.Time, time.Time) {
	day := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	return day.Add(time.Duration(startHour) * time.Hour), day.Add(time.Duration(endHour) * time.Hour)
}

func mkReservation(t *testing.T, svc *Service, p auth.Principal, roomID int64, startHour, endHour int) *ReservationResponse {
	t.Helper()
	start, end := window(startHour, endHour)
	resp, err := svc.CreateReservation(context.Background(), p, CreateReservationRequest{
		RoomID: roomID, EventName: "Latihan", StartTime: start, EndTime: end,
	})
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}
	return resp
}

func TestCreateReservationRejectsApprovedOverlap(t *testing.T) {
	f := newFakeRoomStore()
	roomID := f.addRoom("Aula")
	svc := newTestService(f)
	mgr := roomManager()

	first := mkReservation(t, svc, member(), roomID, 9, 11)
	if _, err := svc.Transition(context.Background(), mgr, first.ReservationID, TransitionRequest{NewStatus: string(status.Approved)}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	start, end := window(10, 12)
	_, err := svc.CreateReservation(context.Background(), member(), CreateReservationRequest{
		RoomID: roomID, EventName: "Rapat", StartTime: start, EndTime: end,
	})
	if got := codeOf(t, err); got != apierr.CodeConflict {
		t.Errorf("overlapping create: code = %s, want CONFLICT", got)
	}

	// a back-to-back window is admissible under half-open semantics
	start, end = window(11, 13)
	if _, err := svc.CreateReservation(context.Background(), member(), CreateReservationRequest{
		RoomID: roomID, EventName: "Rapat", StartTime: start, EndTime: end,
	}); err != nil {
		t.Errorf("back-to-back create: %v", err)
	}
}

func TestPendingDoesNotBlockCreate(t *testing.T) {
	f := newFakeRoomStore()
	roomID := f.addRoom("Aula")
	svc := newTestService(f)

	mkReservation(t, svc, member(), roomID, 9, 11)
	// the same window is still open while the first request awaits a decision
	mkReservation(t, svc, member(), roomID, 9, 11)
}

func TestApprovalSettlesCompetingRequests(t *testing.T) {
	f := newFakeRoomStore()
	roomID := f.addRoom("Aula")
	svc := newTestService(f)
	mgr := roomManager()

	first := mkReservation(t, svc, member(), roomID, 9, 11)
	second := mkReservation(t, svc, member(), roomID, 10, 12)

	if _, err := svc.Transition(context.Background(), mgr, first.ReservationID, TransitionRequest{NewStatus: string(status.Approved)}); err != nil {
		t.Fatalf("first approval: %v", err)
	}
	_, err := svc.Transition(context.Background(), mgr, second.ReservationID, TransitionRequest{NewStatus: string(status.Approved)})
	if got := codeOf(t, err); got != apierr.CodeConflict {
		t.Errorf("second approval: code = %s, want CONFLICT", got)
	}

	// the losing request can still be rejected
	if _, err := svc.Transition(context.Background(), mgr, second.ReservationID, TransitionRequest{NewStatus: string(status.Rejected)}); err != nil {
		t.Errorf("reject loser: %v", err)
	}
}

func TestApprovalGuardIsRecheckedInStore(t *testing.T) {
	f := newFakeRoomStore()
	roomID := f.addRoom("Aula")
	svc := newTestService(f)
	mgr := roomManager()

	first := mkReservation(t, svc, member(), roomID, 9, 11)
	second := mkReservation(t, svc, member(), roomID, 10, 12)

	// simulate a concurrent approval landing between pre-check and commit
	f.reservations[first.ReservationID].Status = status.Approved
	_, err := svc.Transition(context.Background(), mgr, second.ReservationID, TransitionRequest{NewStatus: string(status.Approved)})
	if got := codeOf(t, err); got != apierr.CodeConflict {
		t.Errorf("code = %s, want CONFLICT", got)
	}
}

func TestReservationRejectsActiveStatus(t *testing.T) {
	f := newFakeRoomStore()
	roomID := f.addRoom("Aula")
	svc := newTestService(f)

	r := mkReservation(t, svc, member(), roomID, 9, 11)
	_, err := svc.Transition(context.Background(), roomManager(), r.ReservationID, TransitionRequest{NewStatus: string(status.Active)})
	if got := codeOf(t, err); got != apierr.CodeInvalidArgument {
		t.Errorf("code = %s, want INVALID_ARGUMENT", got)
	}
}

func TestReservationWindowValidation(t *testing.T) {
	f := newFakeRoomStore()
	roomID := f.addRoom("Aula")
	svc := newTestService(f)

	start, end := window(11, 9)
	_, err := svc.CreateReservation(context.Background(), member(), CreateReservationRequest{
		RoomID: roomID, EventName: "Rapat", StartTime: start, EndTime: end,
	})
	if got := codeOf(t, err); got != apierr.CodeInvalidArgument {
		t.Errorf("inverted window: code = %s, want INVALID_ARGUMENT", got)
	}

	// zero-length windows reserve nothing
	start, end = window(9, 9)
	_, err = svc.CreateReservation(context.Background(), member(), CreateReservationRequest{
		RoomID: roomID, EventName: "Rapat", StartTime: start, EndTime: end,
	})
	if got := codeOf(t, err); got != apierr.CodeInvalidArgument {
		t.Errorf("empty window: code = %s, want INVALID_ARGUMENT", got)
	}
}

func TestReservationCancel(t *testing.T) {
	f := newFakeRoomStore()
	roomID := f.addRoom("Aula")
	svc := newTestService(f)
	owner := member()

	r := mkReservation(t, svc, owner, roomID, 9, 11)

	err := svc.Cancel(context.Background(), member(), r.ReservationID)
	if got := codeOf(t, err); got != apierr.CodeForbidden {
		t.Errorf("stranger: code = %s, want FORBIDDEN", got)
	}

	if err := svc.Cancel(context.Background(), owner, r.ReservationID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	r = mkReservation(t, svc, owner, roomID, 9, 11)
	if _, err := svc.Transition(context.Background(), roomManager(), r.ReservationID, TransitionRequest{NewStatus: string(status.Approved)}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	err = svc.Cancel(context.Background(), owner, r.ReservationID)
	if got := codeOf(t, err); got != apierr.CodeConflict {
		t.Errorf("approved: code = %s, want CONFLICT", got)
	}
}

func TestRoomScheduleFiltersApprovedUpcoming(t *testing.T) {
	f := newFakeRoomStore()
	roomID := f.addRoom("Aula")
	svc := newTestService(f)
	mgr := roomManager()

	approved := mkReservation(t, svc, member(), roomID, 9, 11)
	if _, err := svc.Transition(context.Background(), mgr, approved.ReservationID, TransitionRequest{NewStatus: string(status.Approved)}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	mkReservation(t, svc, member(), roomID, 13, 15) // still pending

	got, err := svc.RoomSchedule(context.Background(), roomID)
	if err != nil {
		t.Fatalf("RoomSchedule: %v", err)
	}
	if len(got) != 1 || got[0].ReservationID != approved.ReservationID {
		t.Errorf("schedule = %+v, want only the approved reservation", got)
	}
}

func TestRoomCRUDRequiresPrivilege(t *testing.T) {
	f := newFakeRoomStore()
	svc := newTestService(f)

	_, err := svc.CreateRoom(context.Background(), member(), CreateRoomRequest{Name: "Aula"})
	if got := codeOf(t, err); got != apierr.CodeForbidden {
		t.Errorf("member create: code = %s, want FORBIDDEN", got)
	}

	wrongTag := auth.Principal{ID: uuid.New(), Role: auth.RoleManagement, Privileges: []string{auth.PrivTransport}}
	_, err = svc.CreateRoom(context.Background(), wrongTag, CreateRoomRequest{Name: "Aula"})
	if got := codeOf(t, err); got != apierr.CodeForbidden {
		t.Errorf("wrong tag: code = %s, want FORBIDDEN", got)
	}

	if _, err := svc.CreateRoom(context.Background(), roomManager(), CreateRoomRequest{Name: "Aula"}); err != nil {
		t.Errorf("manager create: %v", err)
	}
}
