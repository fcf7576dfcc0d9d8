package products

import (
	"context"
	"database/sql"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/text/width"

	"gkiportal-backend/internal/platform/apierr"
	"gkiportal-backend/internal/platform/auth"
)

// Store is what the service needs from persistence. *SQLStore implements
// it; tests substitute an in-memory fake.
type Store interface {
	GetTemplate(ctx context.Context, id int64) (*Template, error)
	ListTemplates(ctx context.Context) ([]Template, error)
	InsertTemplate(ctx context.Context, t *Template) error
	UpdateTemplate(ctx context.Context, t *Template) error
	DeleteTemplate(ctx context.Context, id int64) error
	CountUnits(ctx context.Context, templateID int64) (int, error)
	UnitStatusCounts(ctx context.Context, templateID int64) (map[UnitStatus]int, error)
	BorrowedQuantity(ctx context.Context, templateID int64) (int, error)
	AdjustQuantity(ctx context.Context, templateID int64, delta int) (int, error)
	GetUnit(ctx context.Context, id int64) (*Unit, error)
	ListUnits(ctx context.Context, templateID int64) ([]Unit, error)
	FindUnitsByCode(ctx context.Context, code string) ([]Unit, error)
	InsertUnit(ctx context.Context, u *Unit) error
	UpdateUnit(ctx context.Context, u *Unit) error
	DeleteUnit(ctx context.Context, id int64) error
	UnitHasActiveLoan(ctx context.Context, unitID int64) (bool, error)
}

type Service struct {
	store Store
}

func NewService(db *sql.DB) *Service { return &Service{store: NewStore(db)} }

func NewServiceWithStore(store Store) *Service { return &Service{store: store} }

func requireInventory(p auth.Principal) error {
	if !p.IsManagement() || !p.Allowed(auth.PrivInventory) {
		return apierr.Forbidden("inventory privilege required")
	}
	return nil
}

// ===== Availability =====

// TemplateAvailability answers "how many of template T are available
// right now" for either stock mode.
func (s *Service) TemplateAvailability(ctx context.Context, templateID int64) (*Availability, error) {
	t, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	av := &Availability{
		TemplateID:   t.TemplateID,
		Name:         t.Name,
		IsSerialized: t.IsSerialized,
	}

	if t.IsSerialized {
		counts, err := s.store.UnitStatusCounts(ctx, templateID)
		if err != nil {
			return nil, apierr.Internal("failed to count units", err)
		}
		av.Available = counts[UnitAvailable]
		av.Borrowed = counts[UnitBorrowed]
		av.Maintenance = counts[UnitMaintenance]
		av.Scrapped = counts[UnitScrapped]
		av.Lost = counts[UnitLost]
		av.Total = av.Available + av.Borrowed + av.Maintenance + av.Scrapped + av.Lost
		return av, nil
	}

	borrowed, err := s.store.BorrowedQuantity(ctx, templateID)
	if err != nil {
		return nil, apierr.Internal("failed to sum borrowed quantity", err)
	}
	av.QuantityOnHand = t.QuantityOnHand
	av.BorrowedQty = borrowed
	av.Available = t.QuantityOnHand - borrowed
	if av.Available < 0 {
		av.Available = 0
	}
	av.Borrowed = borrowed
	av.Total = t.QuantityOnHand
	return av, nil
}

// AdjustQuantity shifts a bulk template's on-hand count. Serialized
// templates derive stock from their units and cannot be adjusted here.
func (s *Service) AdjustQuantity(ctx context.Context, p auth.Principal, templateID int64, req AdjustQuantityRequest) (*TemplateResponse, error) {
	if err := requireInventory(p); err != nil {
		return nil, err
	}
	t, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if t.IsSerialized {
		return nil, apierr.Invalid("quantity of a serialized template is derived from its units")
	}
	newQty, err := s.store.AdjustQuantity(ctx, templateID, req.Delta)
	if err != nil {
		return nil, err
	}
	t.QuantityOnHand = newQty
	resp := buildTemplateResponse(t)
	return &resp, nil
}

// FindUnitByCode resolves a scanned code to exactly one unit. Scanner and
// mobile IME input may arrive full-width, so the code is width-folded
// before lookup. Zero or multiple matches are both lookup failures.
func (s *Service) FindUnitByCode(ctx context.Context, code string) (*UnitResponse, error) {
	folded := strings.TrimSpace(width.Fold.String(code))
	if folded == "" {
		return nil, apierr.Invalid("code is required")
	}
	units, err := s.store.FindUnitsByCode(ctx, folded)
	if err != nil {
		return nil, apierr.Internal("failed to look up unit", err)
	}
	if len(units) != 1 {
		return nil, apierr.NotFound("no single unit matches the code")
	}
	resp := buildUnitResponse(&units[0])
	return &resp, nil
}

// ===== Template CRUD =====

func (s *Service) CreateTemplate(ctx context.Context, p auth.Principal, req CreateTemplateRequest) (*TemplateResponse, error) {
	if err := requireInventory(p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Unit) == "" {
		return nil, apierr.Invalid("name and unit are required")
	}
	if req.QuantityOnHand < 0 || req.MinQuantity < 0 {
		return nil, apierr.Invalid("quantities must not be negative")
	}

	t := &Template{
		Name:         strings.TrimSpace(req.Name),
		CategoryID:   req.CategoryID,
		Location:     req.Location,
		Unit:         req.Unit,
		IsSerialized: req.IsSerialized,
		MinQuantity:  req.MinQuantity,
	}
	if !t.IsSerialized {
		t.QuantityOnHand = req.QuantityOnHand
	}
	if err := s.store.InsertTemplate(ctx, t); err != nil {
		return nil, apierr.FromStore("invalid category or duplicate template", err)
	}
	resp := buildTemplateResponse(t)
	return &resp, nil
}

func (s *Service) UpdateTemplate(ctx context.Context, p auth.Principal, id int64, req UpdateTemplateRequest) (*TemplateResponse, error) {
	if err := requireInventory(p); err != nil {
		return nil, err
	}
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, apierr.Invalid("name must not be empty")
		}
		t.Name = strings.TrimSpace(*req.Name)
	}
	if req.CategoryID != nil {
		t.CategoryID = *req.CategoryID
	}
	if req.Location != nil {
		t.Location = *req.Location
	}
	if req.Unit != nil {
		t.Unit = *req.Unit
	}
	if req.MinQuantity != nil {
		if *req.MinQuantity < 0 {
			return nil, apierr.Invalid("min_quantity must not be negative")
		}
		t.MinQuantity = *req.MinQuantity
	}
	if err := s.store.UpdateTemplate(ctx, t); err != nil {
		return nil, apierr.FromStore("failed to update template", err)
	}
	resp := buildTemplateResponse(t)
	return &resp, nil
}

// DeleteTemplate refuses while unit rows still reference the template.
func (s *Service) DeleteTemplate(ctx context.Context, p auth.Principal, id int64) error {
	if err := requireInventory(p); err != nil {
		return err
	}
	if _, err := s.store.GetTemplate(ctx, id); err != nil {
		return err
	}
	n, err := s.store.CountUnits(ctx, id)
	if err != nil {
		return apierr.Internal("failed to count units", err)
	}
	if n > 0 {
		return apierr.Conflict("template still has units")
	}
	if err := s.store.DeleteTemplate(ctx, id); err != nil {
		return apierr.FromStore("template is still referenced", err)
	}
	return nil
}

func (s *Service) GetTemplate(ctx context.Context, id int64) (*TemplateResponse, error) {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := buildTemplateResponse(t)
	return &resp, nil
}

func (s *Service) ListTemplates(ctx context.Context) ([]TemplateResponse, error) {
	templates, err := s.store.ListTemplates(ctx)
	if err != nil {
		return nil, apierr.Internal("failed to list templates", err)
	}
	out := make([]TemplateResponse, 0, len(templates))
	for i := range templates {
		out = append(out, buildTemplateResponse(&templates[i]))
	}
	return out, nil
}

// ===== Unit CRUD =====

func (s *Service) CreateUnit(ctx context.Context, p auth.Principal, req CreateUnitRequest) (*UnitResponse, error) {
	if err := requireInventory(p); err != nil {
		return nil, err
	}
	t, err := s.store.GetTemplate(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if !t.IsSerialized {
		return nil, apierr.Invalid("units belong to serialized templates only")
	}

	u := &Unit{TemplateID: t.TemplateID, Status: UnitAvailable}
	setNullString(&u.SerialNumber, req.SerialNumber)
	setNullString(&u.AssetCode, req.AssetCode)
	setNullString(&u.Location, req.Location)
	if req.PurchasedAt != nil {
		u.PurchasedAt.Time = *req.PurchasedAt
		u.PurchasedAt.Valid = true
	}
	if req.PurchasePrice != nil {
		u.PurchasePrice.Decimal = *req.PurchasePrice
		u.PurchasePrice.Valid = true
	}
	if err := s.store.InsertUnit(ctx, u); err != nil {
		return nil, apierr.FromStore("serial number or asset code already exists", err)
	}
	resp := buildUnitResponse(u)
	return &resp, nil
}

func (s *Service) UpdateUnit(ctx context.Context, p auth.Principal, id int64, req UpdateUnitRequest) (*UnitResponse, error) {
	if err := requireInventory(p); err != nil {
		return nil, err
	}
	u, err := s.store.GetUnit(ctx, id)
	if err != nil {
		return nil, err
	}
	setNullString(&u.SerialNumber, req.SerialNumber)
	setNullString(&u.AssetCode, req.AssetCode)
	setNullString(&u.Location, req.Location)
	if req.Status != nil {
		st := UnitStatus(*req.Status)
		if !st.Valid() {
			return nil, apierr.Invalid("unknown unit status: " + *req.Status)
		}
		u.Status = st
	}
	if req.PurchasedAt != nil {
		u.PurchasedAt.Time = *req.PurchasedAt
		u.PurchasedAt.Valid = true
	}
	if req.PurchasePrice != nil {
		u.PurchasePrice.Decimal = *req.PurchasePrice
		u.PurchasePrice.Valid = true
	}
	if err := s.store.UpdateUnit(ctx, u); err != nil {
		return nil, apierr.FromStore("serial number or asset code already exists", err)
	}
	resp := buildUnitResponse(u)
	return &resp, nil
}

// DeleteUnit refuses while an unreturned loan references the unit.
func (s *Service) DeleteUnit(ctx context.Context, p auth.Principal, id int64) error {
	if err := requireInventory(p); err != nil {
		return err
	}
	if _, err := s.store.GetUnit(ctx, id); err != nil {
		return err
	}
	active, err := s.store.UnitHasActiveLoan(ctx, id)
	if err != nil {
		return apierr.Internal("failed to check loans", err)
	}
	if active {
		return apierr.Conflict("unit has an active loan")
	}
	if err := s.store.DeleteUnit(ctx, id); err != nil {
		return apierr.FromStore("unit is still referenced", err)
	}
	return nil
}

func (s *Service) GetUnit(ctx context.Context, id int64) (*UnitResponse, error) {
	u, err := s.store.GetUnit(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := buildUnitResponse(u)
	return &resp, nil
}

func (s *Service) ListUnits(ctx context.Context, templateID int64) ([]UnitResponse, error) {
	units, err := s.store.ListUnits(ctx, templateID)
	if err != nil {
		return nil, apierr.Internal("failed to list units", err)
	}
	out := make([]UnitResponse, 0, len(units))
	for i := range units {
		out = append(out, buildUnitResponse(&units[i]))
	}
	return out, nil
}

// UnitQRLabel renders the unit's scannable code as a PNG.
func (s *Service) UnitQRLabel(ctx context.Context, id int64) ([]byte, error) {
	u, err := s.store.GetUnit(ctx, id)
	if err != nil {
		return nil, err
	}
	code := u.Code()
	if code == "" {
		return nil, apierr.Invalid("unit has neither asset code nor serial number")
	}
	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		return nil, apierr.Internal("failed to render QR code", err)
	}
	return png, nil
}

func setNullString(dst *sql.NullString, v *string) {
	if v == nil {
		return
	}
	if *v == "" {
		dst.String, dst.Valid = "", false
		return
	}
	dst.String, dst.Valid = *v, true
}
