package products

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"

	"gkiportal-backend/internal/platform/apierr"
	"gkiportal-backend/internal/platform/auth"
)

// fakeStore is an in-memory Store for service tests.
type fakeStore struct {
	templates map[int64]*Template
	units     map[int64]*Unit
	// borrowed bulk quantity per template
	borrowed map[int64]int
	// units with an unreturned loan
	activeLoans map[int64]bool
	nextID      int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		templates:   map[int64]*Template{},
		units:       map[int64]*Unit{},
		borrowed:    map[int64]int{},
		activeLoans: map[int64]bool{},
		nextID:      1,
	}
}

func (f *fakeStore) id() int64 {
	id := f.nextID
	f.nextID++
	return id
}

func (f *fakeStore) GetTemplate(_ context.Context, id int64) (*Template, error) {
	t, ok := f.templates[id]
	if !ok {
		return nil, apierr.NotFound("template not found")
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) ListTemplates(_ context.Context) ([]Template, error) {
	var out []Template
	for _, t := range f.templates {
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeStore) InsertTemplate(_ context.Context, t *Template) error {
	t.TemplateID = f.id()
	cp := *t
	f.templates[t.TemplateID] = &cp
	return nil
}

func (f *fakeStore) UpdateTemplate(_ context.Context, t *Template) error {
	cp := *t
	f.templates[t.TemplateID] = &cp
	return nil
}

func (f *fakeStore) DeleteTemplate(_ context.Context, id int64) error {
	if _, ok := f.templates[id]; !ok {
		return apierr.NotFound("template not found")
	}
	delete(f.templates, id)
	return nil
}

func (f *fakeStore) CountUnits(_ context.Context, templateID int64) (int, error) {
	n := 0
	for _, u := range f.units {
		if u.TemplateID == templateID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) UnitStatusCounts(_ context.Context, templateID int64) (map[UnitStatus]int, error) {
	counts := map[UnitStatus]int{}
	for _, u := range f.units {
		if u.TemplateID == templateID {
			counts[u.Status]++
		}
	}
	return counts, nil
}

func (f *fakeStore) BorrowedQuantity(_ context.Context, templateID int64) (int, error) {
	return f.borrowed[templateID], nil
}

func (f *fakeStore) AdjustQuantity(_ context.Context, templateID int64, delta int) (int, error) {
	t, ok := f.templates[templateID]
	if !ok {
		return 0, apierr.NotFound("template not found")
	}
	t.QuantityOnHand += delta
	if t.QuantityOnHand < 0 {
		t.QuantityOnHand = 0
	}
	return t.QuantityOnHand, nil
}

func (f *fakeStore) GetUnit(_ context.Context, id int64) (*Unit, error) {
	u, ok := f.units[id]
	if !ok {
		return nil, apierr.NotFound("unit not found")
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) ListUnits(_ context.Context, templateID int64) ([]Unit, error) {
	var out []Unit
	for _, u := range f.units {
		if u.TemplateID == templateID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeStore) FindUnitsByCode(_ context.Context, code string) ([]Unit, error) {
	var out []Unit
	for _, u := range f.units {
		if (u.AssetCode.Valid && u.AssetCode.String == code) ||
			(u.SerialNumber.Valid && u.SerialNumber.String == code) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertUnit(_ context.Context, u *Unit) error {
	u.UnitID = f.id()
	cp := *u
	f.units[u.UnitID] = &cp
	return nil
}

func (f *fakeStore) UpdateUnit(_ context.Context, u *Unit) error {
	cp := *u
	f.units[u.UnitID] = &cp
	return nil
}

func (f *fakeStore) DeleteUnit(_ context.Context, id int64) error {
	if _, ok := f.units[id]; !ok {
		return apierr.NotFound("unit not found")
	}
	delete(f.units, id)
	return nil
}

func (f *fakeStore) UnitHasActiveLoan(_ context.Context, unitID int64) (bool, error) {
	return f.activeLoans[unitID], nil
}

func (f *fakeStore) addTemplate(t Template) int64 {
	t.TemplateID = f.id()
	f.templates[t.TemplateID] = &t
	return t.TemplateID
}

func (f *fakeStore) addUnit(u Unit) int64 {
	u.UnitID = f.id()
	f.units[u.UnitID] = &u
	return u.UnitID
}

func manager() auth.Principal {
	return auth.Principal{ID: uuid.New(), Role: auth.RoleManagement, Privileges: []string{auth.PrivInventory}}
}

func member() auth.Principal {
	return auth.Principal{ID: uuid.New(), Role: auth.RoleMember}
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func codeOf(t *testing.T, err error) apierr.Code {
	t.Helper()
	var ae *apierr.APIError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *apierr.APIError, got %v", err)
	}
	return ae.Code
}

func TestTemplateAvailabilitySerialized(t *testing.T) {
	f := newFakeStore()
	id := f.addTemplate(Template{Name: "Proyektor", IsSerialized: true})
	f.addUnit(Unit{TemplateID: id, Status: UnitAvailable})
	f.addUnit(Unit{TemplateID: id, Status: UnitAvailable})
	f.addUnit(Unit{TemplateID: id, Status: UnitBorrowed})
	f.addUnit(Unit{TemplateID: id, Status: UnitMaintenance})
	f.addUnit(Unit{TemplateID: id, Status: UnitLost})

	svc := NewServiceWithStore(f)
	av, err := svc.TemplateAvailability(context.Background(), id)
	if err != nil {
		t.Fatalf("TemplateAvailability: %v", err)
	}
	if av.Available != 2 || av.Borrowed != 1 || av.Maintenance != 1 || av.Lost != 1 {
		t.Errorf("partition = %+v", av)
	}
	if av.Total != 5 {
		t.Errorf("Total = %d, want 5", av.Total)
	}
	if av.Available+av.Borrowed+av.Maintenance+av.Scrapped+av.Lost != av.Total {
		t.Errorf("partition does not sum to total: %+v", av)
	}
}

func TestTemplateAvailabilityBulk(t *testing.T) {
	tests := []struct {
		name     string
		onHand   int
		borrowed int
		want     int
	}{
		{"plenty", 10, 3, 7},
		{"exhausted", 5, 5, 0},
		{"oversubscribed clamps at zero", 3, 5, 0},
		{"nothing borrowed", 4, 0, 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeStore()
			id := f.addTemplate(Template{Name: "Kursi", QuantityOnHand: tc.onHand})
			f.borrowed[id] = tc.borrowed

			svc := NewServiceWithStore(f)
			av, err := svc.TemplateAvailability(context.Background(), id)
			if err != nil {
				t.Fatalf("TemplateAvailability: %v", err)
			}
			if av.Available != tc.want {
				t.Errorf("Available = %d, want %d", av.Available, tc.want)
			}
			if av.QuantityOnHand != tc.onHand || av.BorrowedQty != tc.borrowed {
				t.Errorf("snapshot = %+v", av)
			}
		})
	}
}

func TestAdjustQuantity(t *testing.T) {
	f := newFakeStore()
	id := f.addTemplate(Template{Name: "Kursi", QuantityOnHand: 10})
	svc := NewServiceWithStore(f)

	resp, err := svc.AdjustQuantity(context.Background(), manager(), id, AdjustQuantityRequest{Delta: -4})
	if err != nil {
		t.Fatalf("AdjustQuantity: %v", err)
	}
	if resp.QuantityOnHand != 6 {
		t.Errorf("QuantityOnHand = %d, want 6", resp.QuantityOnHand)
	}

	// a delta past zero clamps instead of going negative
	resp, err = svc.AdjustQuantity(context.Background(), manager(), id, AdjustQuantityRequest{Delta: -100})
	if err != nil {
		t.Fatalf("AdjustQuantity: %v", err)
	}
	if resp.QuantityOnHand != 0 {
		t.Errorf("QuantityOnHand = %d, want 0", resp.QuantityOnHand)
	}
}

func TestAdjustQuantitySerializedRejected(t *testing.T) {
	f := newFakeStore()
	id := f.addTemplate(Template{Name: "Proyektor", IsSerialized: true})
	svc := NewServiceWithStore(f)

	_, err := svc.AdjustQuantity(context.Background(), manager(), id, AdjustQuantityRequest{Delta: 1})
	if got := codeOf(t, err); got != apierr.CodeInvalidArgument {
		t.Errorf("code = %s, want INVALID_ARGUMENT", got)
	}
}

func TestAdjustQuantityRequiresPrivilege(t *testing.T) {
	f := newFakeStore()
	id := f.addTemplate(Template{Name: "Kursi", QuantityOnHand: 10})
	svc := NewServiceWithStore(f)

	_, err := svc.AdjustQuantity(context.Background(), member(), id, AdjustQuantityRequest{Delta: 1})
	if got := codeOf(t, err); got != apierr.CodeForbidden {
		t.Errorf("code = %s, want FORBIDDEN", got)
	}

	// unrestricted principals pass without an explicit tag
	unrestricted := auth.Principal{ID: uuid.New(), Role: auth.RoleManagement, Unrestricted: true}
	if _, err := svc.AdjustQuantity(context.Background(), unrestricted, id, AdjustQuantityRequest{Delta: 1}); err != nil {
		t.Errorf("unrestricted principal rejected: %v", err)
	}
}

func TestFindUnitByCode(t *testing.T) {
	f := newFakeStore()
	id := f.addTemplate(Template{Name: "Proyektor", IsSerialized: true})
	f.addUnit(Unit{TemplateID: id, Status: UnitAvailable,
		AssetCode: nullStr("AST-001"), SerialNumber: nullStr("SN-9")})
	f.addUnit(Unit{TemplateID: id, Status: UnitAvailable, SerialNumber: nullStr("DUP")})
	f.addUnit(Unit{TemplateID: id, Status: UnitAvailable, AssetCode: nullStr("DUP")})

	svc := NewServiceWithStore(f)

	got, err := svc.FindUnitByCode(context.Background(), "AST-001")
	if err != nil {
		t.Fatalf("FindUnitByCode: %v", err)
	}
	if got.AssetCode == nil || *got.AssetCode != "AST-001" {
		t.Errorf("resolved wrong unit: %+v", got)
	}

	// full-width scanner input folds to the stored code
	if _, err := svc.FindUnitByCode(context.Background(), "ＡＳＴ－００１"); err != nil {
		t.Errorf("full-width code not folded: %v", err)
	}

	if _, err := svc.FindUnitByCode(context.Background(), "NOPE"); err == nil {
		t.Error("zero matches should fail")
	} else if got := codeOf(t, err); got != apierr.CodeNotFound {
		t.Errorf("code = %s, want NOT_FOUND", got)
	}

	if _, err := svc.FindUnitByCode(context.Background(), "DUP"); err == nil {
		t.Error("ambiguous matches should fail")
	} else if got := codeOf(t, err); got != apierr.CodeNotFound {
		t.Errorf("code = %s, want NOT_FOUND", got)
	}
}

func TestDeleteTemplateWithUnits(t *testing.T) {
	f := newFakeStore()
	id := f.addTemplate(Template{Name: "Proyektor", IsSerialized: true})
	f.addUnit(Unit{TemplateID: id, Status: UnitAvailable})
	svc := NewServiceWithStore(f)

	err := svc.DeleteTemplate(context.Background(), manager(), id)
	if got := codeOf(t, err); got != apierr.CodeConflict {
		t.Errorf("code = %s, want CONFLICT", got)
	}
}

func TestDeleteUnitWithActiveLoan(t *testing.T) {
	f := newFakeStore()
	tid := f.addTemplate(Template{Name: "Proyektor", IsSerialized: true})
	uid := f.addUnit(Unit{TemplateID: tid, Status: UnitBorrowed})
	f.activeLoans[uid] = true
	svc := NewServiceWithStore(f)

	err := svc.DeleteUnit(context.Background(), manager(), uid)
	if got := codeOf(t, err); got != apierr.CodeConflict {
		t.Errorf("code = %s, want CONFLICT", got)
	}

	f.activeLoans[uid] = false
	if err := svc.DeleteUnit(context.Background(), manager(), uid); err != nil {
		t.Errorf("DeleteUnit after return: %v", err)
	}
}

func TestCreateUnitOnBulkTemplate(t *testing.T) {
	f := newFakeStore()
	id := f.addTemplate(Template{Name: "Kursi", QuantityOnHand: 10})
	svc := NewServiceWithStore(f)

	_, err := svc.CreateUnit(context.Background(), manager(), CreateUnitRequest{TemplateID: id})
	if got := codeOf(t, err); got != apierr.CodeInvalidArgument {
		t.Errorf("code = %s, want INVALID_ARGUMENT", got)
	}
}
