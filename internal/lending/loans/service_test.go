package loans

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"gkiportal-backend/internal/inventory/products"
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

type templateStock struct {
	serialized bool
	onHand     int
}

// fakeLoanStore keeps loans and unit states in memory and applies
// transition effects the way the SQL store does.
type fakeLoanStore struct {
	loans     map[int64]*Loan
	units     map[int64]products.UnitStatus
	templates map[int64]templateStock
	nextID    int64
}

func newFakeLoanStore() *fakeLoanStore {
	return &fakeLoanStore{
		loans:     map[int64]*Loan{},
		units:     map[int64]products.UnitStatus{},
		templates: map[int64]templateStock{},
		nextID:    1,
	}
}

func (f *fakeLoanStore) GetLoan(_ context.Context, id int64) (*Loan, error) {
	l, ok := f.loans[id]
	if !ok {
		return nil, apierr.NotFound("loan not found")
	}
	cp := *l
	return &cp, nil
}

func (f *fakeLoanStore) ListLoans(_ context.Context, filter LoanFilter) ([]Loan, error) {
	var out []Loan
	for _, l := range f.loans {
		if filter.BorrowerID != nil && l.BorrowerID != *filter.BorrowerID {
			continue
		}
		if filter.UnreturnedOnly && l.ReturnDate.Valid {
			continue
		}
		if len(filter.Statuses) > 0 {
			match := false
			for _, st := range filter.Statuses {
				if l.Status == st {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, *l)
	}
	return out, nil
}

func (f *fakeLoanStore) InsertLoan(_ context.Context, l *Loan) error {
	l.LoanID = f.nextID
	f.nextID++
	cp := *l
	f.loans[l.LoanID] = &cp
	return nil
}

func (f *fakeLoanStore) ExecTransition(_ context.Context, loanID int64, from, to status.Status, fx TransitionEffects, now time.Time) error {
	l, ok := f.loans[loanID]
	if !ok || l.Status != from {
		return apierr.Conflict("loan status changed concurrently")
	}
	if fx.SetUnitStatus != nil {
		st, ok := f.units[l.UnitID.Int64]
		if !ok {
			return apierr.NotFound("unit not found")
		}
		if fx.RequireUnitStatus != nil && st != *fx.RequireUnitStatus {
			return apierr.Conflict("unit is no longer available")
		}
		f.units[l.UnitID.Int64] = *fx.SetUnitStatus
	}
	l.Status = to
	if fx.StampReturn && !l.ReturnDate.Valid {
		l.ReturnDate.Time = now
		l.ReturnDate.Valid = true
	}
	return nil
}

func (f *fakeLoanStore) DeletePendingOwned(_ context.Context, loanID int64, borrowerID string) (bool, error) {
	l, ok := f.loans[loanID]
	if !ok || l.Status != status.Pending || l.BorrowerID != borrowerID {
		return false, nil
	}
	delete(f.loans, loanID)
	return true, nil
}

func (f *fakeLoanStore) TemplateStock(_ context.Context, templateID int64) (bool, int, int, error) {
	t, ok := f.templates[templateID]
	if !ok {
		return false, 0, 0, apierr.NotFound("template not found")
	}
	borrowed := 0
	for _, l := range f.loans {
		if l.TemplateID.Valid && l.TemplateID.Int64 == templateID &&
			(l.Status == status.Approved || l.Status == status.Active) &&
			!l.ReturnDate.Valid {
			borrowed += l.Quantity
		}
	}
	return t.serialized, t.onHand, borrowed, nil
}

func (f *fakeLoanStore) UnitState(_ context.Context, unitID int64) (products.UnitStatus, error) {
	st, ok := f.units[unitID]
	if !ok {
		return "", apierr.NotFound("unit not found")
	}
	return st, nil
}

func newTestService(f *fakeLoanStore) *Service {
	return NewServiceWithStore(f, fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}, &seqGen{})
}

func manager() auth.Principal {
	return auth.Principal{ID: uuid.New(), Role: auth.RoleManagement, Privileges: []string{auth.PrivInventory}}
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

func ptr[T any](v T) *T { return &v }

func TestCreateLoanValidation(t *testing.T) {
	f := newFakeLoanStore()
	f.units[1] = products.UnitAvailable
	svc := newTestService(f)
	p := member()

	tests := []struct {
		name string
		req  CreateLoanRequest
		want apierr.Code
	}{
		{"neither reference", CreateLoanRequest{LoanDate: "2025-03-01", DueDate: "2025-03-05"}, apierr.CodeInvalidArgument},
		{"both references", CreateLoanRequest{UnitID: ptr(int64(1)), TemplateID: ptr(int64(2)), LoanDate: "2025-03-01", DueDate: "2025-03-05"}, apierr.CodeInvalidArgument},
		{"bad loan date", CreateLoanRequest{UnitID: ptr(int64(1)), LoanDate: "01-03-2025", DueDate: "2025-03-05"}, apierr.CodeInvalidArgument},
		{"due before loan", CreateLoanRequest{UnitID: ptr(int64(1)), LoanDate: "2025-03-05", DueDate: "2025-03-01"}, apierr.CodeInvalidArgument},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateLoan(context.Background(), p, tc.req)
			if got := codeOf(t, err); got != tc.want {
				t.Errorf("code = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestCreateLoanSerialized(t *testing.T) {
	f := newFakeLoanStore()
	f.units[1] = products.UnitAvailable
	f.units[2] = products.UnitBorrowed
	svc := newTestService(f)

	resp, err := svc.CreateLoan(context.Background(), member(), CreateLoanRequest{
		UnitID: ptr(int64(1)), LoanDate: "2025-03-01", DueDate: "2025-03-05",
	})
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	if resp.Status != status.Pending {
		t.Errorf("Status = %s, want pending", resp.Status)
	}
	// the unit is not taken until approval
	if f.units[1] != products.UnitAvailable {
		t.Errorf("unit taken at request time: %s", f.units[1])
	}

	_, err = svc.CreateLoan(context.Background(), member(), CreateLoanRequest{
		UnitID: ptr(int64(2)), LoanDate: "2025-03-01", DueDate: "2025-03-05",
	})
	if got := codeOf(t, err); got != apierr.CodeConflict {
		t.Errorf("borrowed unit: code = %s, want CONFLICT", got)
	}
}

func TestCreateLoanBulk(t *testing.T) {
	f := newFakeLoanStore()
	f.templates[10] = templateStock{onHand: 5}
	f.templates[11] = templateStock{serialized: true}
	svc := newTestService(f)

	_, err := svc.CreateLoan(context.Background(), member(), CreateLoanRequest{
		TemplateID: ptr(int64(11)), Quantity: 1, LoanDate: "2025-03-01", DueDate: "2025-03-05",
	})
	if got := codeOf(t, err); got != apierr.CodeInvalidArgument {
		t.Errorf("serialized via template: code = %s, want INVALID_ARGUMENT", got)
	}

	_, err = svc.CreateLoan(context.Background(), member(), CreateLoanRequest{
		TemplateID: ptr(int64(10)), Quantity: 6, LoanDate: "2025-03-01", DueDate: "2025-03-05",
	})
	if got := codeOf(t, err); got != apierr.CodeConflict {
		t.Errorf("oversubscribed: code = %s, want CONFLICT", got)
	}

	if _, err := svc.CreateLoan(context.Background(), member(), CreateLoanRequest{
		TemplateID: ptr(int64(10)), Quantity: 5, LoanDate: "2025-03-01", DueDate: "2025-03-05",
	}); err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
}

// Approving a bulk loan consumes stock; returning it frees the quantity
// through the return stamp alone.
func TestBulkQuantityFreedOnReturn(t *testing.T) {
	f := newFakeLoanStore()
	f.templates[10] = templateStock{onHand: 5}
	svc := newTestService(f)
	mgr := manager()

	first, err := svc.CreateLoan(context.Background(), member(), CreateLoanRequest{
		TemplateID: ptr(int64(10)), Quantity: 5, LoanDate: "2025-03-01", DueDate: "2025-03-05",
	})
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	if _, err := svc.Transition(context.Background(), mgr, first.LoanID, TransitionRequest{NewStatus: string(status.Approved)}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// stock is exhausted while the first loan is out
	_, err = svc.CreateLoan(context.Background(), member(), CreateLoanRequest{
		TemplateID: ptr(int64(10)), Quantity: 1, LoanDate: "2025-03-02", DueDate: "2025-03-06",
	})
	if got := codeOf(t, err); got != apierr.CodeConflict {
		t.Fatalf("exhausted stock: code = %s, want CONFLICT", got)
	}

	if _, err := svc.Transition(context.Background(), mgr, first.LoanID, TransitionRequest{NewStatus: string(status.Returned)}); err != nil {
		t.Fatalf("return: %v", err)
	}

	if _, err := svc.CreateLoan(context.Background(), member(), CreateLoanRequest{
		TemplateID: ptr(int64(10)), Quantity: 5, LoanDate: "2025-03-02", DueDate: "2025-03-06",
	}); err != nil {
		t.Errorf("stock not freed after return: %v", err)
	}
}

func TestTransitionLifecycleSerialized(t *testing.T) {
	f := newFakeLoanStore()
	f.units[1] = products.UnitAvailable
	svc := newTestService(f)
	mgr := manager()

	resp, err := svc.CreateLoan(context.Background(), member(), CreateLoanRequest{
		UnitID: ptr(int64(1)), LoanDate: "2025-03-01", DueDate: "2025-03-05",
	})
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}

	if _, err := svc.Transition(context.Background(), mgr, resp.LoanID, TransitionRequest{NewStatus: string(status.Approved)}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if f.units[1] != products.UnitBorrowed {
		t.Errorf("unit after approval = %s, want borrowed", f.units[1])
	}

	if _, err := svc.Transition(context.Background(), mgr, resp.LoanID, TransitionRequest{NewStatus: string(status.Active)}); err != nil {
		t.Fatalf("hand over: %v", err)
	}

	got, err := svc.Transition(context.Background(), mgr, resp.LoanID, TransitionRequest{NewStatus: string(status.Returned)})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if got.ReturnDate == nil {
		t.Error("return date not stamped")
	}
	if f.units[1] != products.UnitAvailable {
		t.Errorf("unit after return = %s, want available", f.units[1])
	}

	// a second return is a conflict, not a silent overwrite
	_, err = svc.Transition(context.Background(), mgr, resp.LoanID, TransitionRequest{NewStatus: string(status.Returned)})
	if got := codeOf(t, err); got != apierr.CodeConflict {
		t.Errorf("re-return: code = %s, want CONFLICT", got)
	}
}

func TestTransitionRejectedAfterApprovalReleasesUnit(t *testing.T) {
	f := newFakeLoanStore()
	f.units[1] = products.UnitAvailable
	svc := newTestService(f)
	mgr := manager()

	resp, err := svc.CreateLoan(context.Background(), member(), CreateLoanRequest{
		UnitID: ptr(int64(1)), LoanDate: "2025-03-01", DueDate: "2025-03-05",
	})
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	if _, err := svc.Transition(context.Background(), mgr, resp.LoanID, TransitionRequest{NewStatus: string(status.Approved)}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.Transition(context.Background(), mgr, resp.LoanID, TransitionRequest{NewStatus: string(status.Rejected)}); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if f.units[1] != products.UnitAvailable {
		t.Errorf("unit after rejection = %s, want available", f.units[1])
	}
}

func TestTransitionApprovalRace(t *testing.T) {
	f := newFakeLoanStore()
	f.units[1] = products.UnitAvailable
	svc := newTestService(f)
	mgr := manager()
	p := member()

	mk := func() int64 {
		resp, err := svc.CreateLoan(context.Background(), p, CreateLoanRequest{
			UnitID: ptr(int64(1)), LoanDate: "2025-03-01", DueDate: "2025-03-05",
		})
		if err != nil {
			t.Fatalf("CreateLoan: %v", err)
		}
		return resp.LoanID
	}
	first, second := mk(), mk()

	if _, err := svc.Transition(context.Background(), mgr, first, TransitionRequest{NewStatus: string(status.Approved)}); err != nil {
		t.Fatalf("first approval: %v", err)
	}
	// the unit guard rejects the second approval of the same unit
	_, err := svc.Transition(context.Background(), mgr, second, TransitionRequest{NewStatus: string(status.Approved)})
	if got := codeOf(t, err); got != apierr.CodeConflict {
		t.Errorf("second approval: code = %s, want CONFLICT", got)
	}
}

func TestTransitionAuthorization(t *testing.T) {
	f := newFakeLoanStore()
	f.units[1] = products.UnitAvailable
	svc := newTestService(f)

	resp, err := svc.CreateLoan(context.Background(), member(), CreateLoanRequest{
		UnitID: ptr(int64(1)), LoanDate: "2025-03-01", DueDate: "2025-03-05",
	})
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}

	_, err = svc.Transition(context.Background(), member(), resp.LoanID, TransitionRequest{NewStatus: string(status.Approved)})
	if got := codeOf(t, err); got != apierr.CodeForbidden {
		t.Errorf("member: code = %s, want FORBIDDEN", got)
	}

	// management without the inventory tag is still forbidden
	wrongTag := auth.Principal{ID: uuid.New(), Role: auth.RoleManagement, Privileges: []string{auth.PrivRoom}}
	_, err = svc.Transition(context.Background(), wrongTag, resp.LoanID, TransitionRequest{NewStatus: string(status.Approved)})
	if got := codeOf(t, err); got != apierr.CodeForbidden {
		t.Errorf("wrong tag: code = %s, want FORBIDDEN", got)
	}
}

func TestTransitionUnknownStatus(t *testing.T) {
	f := newFakeLoanStore()
	f.units[1] = products.UnitAvailable
	svc := newTestService(f)

	resp, err := svc.CreateLoan(context.Background(), member(), CreateLoanRequest{
		UnitID: ptr(int64(1)), LoanDate: "2025-03-01", DueDate: "2025-03-05",
	})
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	_, err = svc.Transition(context.Background(), manager(), resp.LoanID, TransitionRequest{NewStatus: "Hilang"})
	if got := codeOf(t, err); got != apierr.CodeInvalidArgument {
		t.Errorf("code = %s, want INVALID_ARGUMENT", got)
	}
}

func TestCancel(t *testing.T) {
	f := newFakeLoanStore()
	f.units[1] = products.UnitAvailable
	svc := newTestService(f)
	owner := member()

	resp, err := svc.CreateLoan(context.Background(), owner, CreateLoanRequest{
		UnitID: ptr(int64(1)), LoanDate: "2025-03-01", DueDate: "2025-03-05",
	})
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}

	if err := svc.Cancel(context.Background(), member(), resp.LoanID); err == nil {
		t.Error("stranger cancel should fail")
	} else if got := codeOf(t, err); got != apierr.CodeForbidden {
		t.Errorf("stranger: code = %s, want FORBIDDEN", got)
	}

	if err := svc.Cancel(context.Background(), owner, resp.LoanID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := svc.GetLoan(context.Background(), resp.LoanID); err == nil {
		t.Error("cancelled loan still readable")
	}
}

func TestCancelAfterDecision(t *testing.T) {
	f := newFakeLoanStore()
	f.units[1] = products.UnitAvailable
	svc := newTestService(f)
	owner := member()

	resp, err := svc.CreateLoan(context.Background(), owner, CreateLoanRequest{
		UnitID: ptr(int64(1)), LoanDate: "2025-03-01", DueDate: "2025-03-05",
	})
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	if _, err := svc.Transition(context.Background(), manager(), resp.LoanID, TransitionRequest{NewStatus: string(status.Approved)}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	err = svc.Cancel(context.Background(), owner, resp.LoanID)
	if got := codeOf(t, err); got != apierr.CodeConflict {
		t.Errorf("code = %s, want CONFLICT", got)
	}
}

func TestPlanEffects(t *testing.T) {
	borrowed := products.UnitBorrowed
	available := products.UnitAvailable
	serial := func(st status.Status) *Loan {
		l := &Loan{Status: st}
		l.UnitID.Int64, l.UnitID.Valid = 1, true
		return l
	}
	bulk := func(st status.Status) *Loan {
		l := &Loan{Status: st, Quantity: 2}
		l.TemplateID.Int64, l.TemplateID.Valid = 1, true
		return l
	}

	tests := []struct {
		name string
		loan *Loan
		to   status.Status
		want TransitionEffects
	}{
		{"serial approve", serial(status.Pending), status.Approved,
			TransitionEffects{SetUnitStatus: &borrowed, RequireUnitStatus: &available}},
		{"serial hand over after approval", serial(status.Approved), status.Active,
			TransitionEffects{}},
		{"serial return", serial(status.Active), status.Returned,
			TransitionEffects{SetUnitStatus: &available, StampReturn: true}},
		{"serial reject while pending", serial(status.Pending), status.Rejected,
			TransitionEffects{}},
		{"serial reject after approval", serial(status.Approved), status.Rejected,
			TransitionEffects{SetUnitStatus: &available}},
		{"bulk return stamps only", bulk(status.Active), status.Returned,
			TransitionEffects{StampReturn: true}},
		{"bulk approve touches nothing", bulk(status.Pending), status.Approved,
			TransitionEffects{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := planEffects(tc.loan, tc.to)
			if got.StampReturn != tc.want.StampReturn {
				t.Errorf("StampReturn = %v, want %v", got.StampReturn, tc.want.StampReturn)
			}
			if (got.SetUnitStatus == nil) != (tc.want.SetUnitStatus == nil) {
				t.Fatalf("SetUnitStatus = %v, want %v", got.SetUnitStatus, tc.want.SetUnitStatus)
			}
			if got.SetUnitStatus != nil && *got.SetUnitStatus != *tc.want.SetUnitStatus {
				t.Errorf("SetUnitStatus = %s, want %s", *got.SetUnitStatus, *tc.want.SetUnitStatus)
			}
			if (got.RequireUnitStatus == nil) != (tc.want.RequireUnitStatus == nil) {
				t.Fatalf("RequireUnitStatus = %v, want %v", got.RequireUnitStatus, tc.want.RequireUnitStatus)
			}
		})
	}
}
