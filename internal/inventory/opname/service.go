package opname

import (
	"context"
	"database/sql"
	"time"

	"gkiportal-backend/internal/platform/apierr"
	"gkiportal-backend/internal/platform/auth"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Store is the persistence surface of the reconciliation workflow.
// *SQLStore implements it; tests use an in-memory fake.
type Store interface {
	// Ongoing returns the ongoing session, or nil when none exists.
	Ongoing(ctx context.Context) (*Session, error)
	InsertSession(ctx context.Context, sess *Session) error
	GetSession(ctx context.Context, id int64) (*Session, error)
	// CompleteSession fails with a conflict unless the session is ongoing.
	CompleteSession(ctx context.Context, id int64, at time.Time) error
	ListSessions(ctx context.Context) ([]Session, error)
	SessionItems(ctx context.Context, opnameID int64) ([]ItemDetail, error)
	TemplateSnapshot(ctx context.Context, templateID int64) (serialized bool, onHand int, err error)
	UnitTemplate(ctx context.Context, unitID int64) (int64, error)
	// UpsertItem writes one counted line per (opname, template, unit) key.
	// With increment set the counted quantity is added to the stored one,
	// otherwise it replaces it.
	UpsertItem(ctx context.Context, it *Item, increment bool) (*Item, error)
}

type Service struct {
	store Store
	clock Clock
}

func NewService(db *sql.DB) *Service {
	return &Service{store: NewStore(db), clock: realClock{}}
}

func NewServiceWithStore(store Store, clock Clock) *Service {
	return &Service{store: store, clock: clock}
}

func requireInventory(p auth.Principal) error {
	if !p.IsManagement() || !p.Allowed(auth.PrivInventory) {
		return apierr.Forbidden("inventory privilege required")
	}
	return nil
}

// Start opens a new audit session. The pre-check below is an optimization;
// the unique index on ongoing sessions is the real guard, so a lost race
// still comes back as a conflict.
func (s *Service) Start(ctx context.Context, p auth.Principal, req StartRequest) (*SessionResponse, error) {
	if err := requireInventory(p); err != nil {
		return nil, err
	}
	ongoing, err := s.store.Ongoing(ctx)
	if err != nil {
		return nil, apierr.Internal("failed to look up ongoing opname", err)
	}
	if ongoing != nil {
		return nil, apierr.Conflict("an opname session is already ongoing")
	}

	sess := &Session{
		Title:     req.Title,
		Status:    SessionOngoing,
		CreatedBy: p.ID.String(),
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.InsertSession(ctx, sess); err != nil {
		if apierr.IsDuplicate(err) {
			return nil, apierr.Conflict("an opname session is already ongoing")
		}
		return nil, apierr.FromStore("failed to start opname", err)
	}
	resp := buildSessionResponse(sess)
	return &resp, nil
}

// SubmitCount records one scan. The system quantity is snapshotted fresh
// at every submission so adjustments made during a long audit show up as
// live discrepancies. A serialized scan always counts exactly one unit;
// repeated bulk scans of the same template accumulate.
func (s *Service) SubmitCount(ctx context.Context, p auth.Principal, opnameID int64, req SubmitCountRequest) (*ItemResponse, error) {
	if err := requireInventory(p); err != nil {
		return nil, err
	}
	sess, err := s.store.GetSession(ctx, opnameID)
	if err != nil {
		return nil, err
	}
	if sess.Status != SessionOngoing {
		return nil, apierr.Conflict("session is not ongoing")
	}

	serialized, onHand, err := s.store.TemplateSnapshot(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}

	it := &Item{
		OpnameID:   opnameID,
		TemplateID: req.TemplateID,
		CheckedBy:  p.ID.String(),
		CheckedAt:  s.clock.Now(),
	}
	var increment bool
	if req.UnitID != nil {
		if !serialized {
			return nil, apierr.Invalid("template is not serialized")
		}
		templateID, err := s.store.UnitTemplate(ctx, *req.UnitID)
		if err != nil {
			return nil, err
		}
		if templateID != req.TemplateID {
			return nil, apierr.Invalid("unit does not belong to template")
		}
		it.UnitID.Int64 = *req.UnitID
		it.UnitID.Valid = true
		it.SystemQty = 1
		it.ActualQty = 1
	} else {
		if serialized {
			return nil, apierr.Invalid("serialized templates are counted per unit")
		}
		qty := req.Quantity
		if qty == 0 {
			qty = 1
		}
		if qty < 0 {
			return nil, apierr.Invalid("quantity must be positive")
		}
		it.SystemQty = onHand
		it.ActualQty = qty
		increment = true
	}

	final, err := s.store.UpsertItem(ctx, it, increment)
	if err != nil {
		return nil, apierr.FromStore("failed to record count", err)
	}
	resp := buildItemResponse(final)
	return &resp, nil
}

// Complete closes the session. Completing twice is a caller error.
func (s *Service) Complete(ctx context.Context, p auth.Principal, opnameID int64) (*SessionResponse, error) {
	if err := requireInventory(p); err != nil {
		return nil, err
	}
	sess, err := s.store.GetSession(ctx, opnameID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err := s.store.CompleteSession(ctx, opnameID, now); err != nil {
		return nil, err
	}
	sess.Status = SessionCompleted
	sess.CompletedAt.Time = now
	sess.CompletedAt.Valid = true
	resp := buildSessionResponse(sess)
	return &resp, nil
}

func (s *Service) History(ctx context.Context) ([]SessionResponse, error) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, apierr.Internal("failed to list opname sessions", err)
	}
	out := make([]SessionResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, buildSessionResponse(&sessions[i]))
	}
	return out, nil
}

// Ongoing exposes the current session so scanners can resume after a
// reload. Absence is reported as not found.
func (s *Service) Ongoing(ctx context.Context) (*SessionResponse, error) {
	sess, err := s.store.Ongoing(ctx)
	if err != nil {
		return nil, apierr.Internal("failed to look up ongoing opname", err)
	}
	if sess == nil {
		return nil, apierr.NotFound("no ongoing opname session")
	}
	resp := buildSessionResponse(sess)
	return &resp, nil
}

func (s *Service) Detail(ctx context.Context, opnameID int64) (*SessionDetailResponse, error) {
	sess, err := s.store.GetSession(ctx, opnameID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.SessionItems(ctx, opnameID)
	if err != nil {
		return nil, apierr.Internal("failed to list opname items", err)
	}
	resp := &SessionDetailResponse{
		SessionResponse: buildSessionResponse(sess),
		Items:           make([]ItemDetailResponse, 0, len(items)),
	}
	for i := range items {
		resp.Items = append(resp.Items, buildItemDetailResponse(&items[i]))
	}
	return resp, nil
}
