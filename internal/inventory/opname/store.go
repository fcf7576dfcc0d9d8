package opname

import (
	"context"
	"database/sql"
	"time"

	"gkiportal-backend/internal/platform/apierr"
	platformdb "gkiportal-backend/internal/platform/db"
)

type SQLStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

const sessionColumns = `opname_id, title, status, created_by, created_at, completed_at`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var s Session
	err := row.Scan(&s.OpnameID, &s.Title, &s.Status, &s.CreatedBy, &s.CreatedAt, &s.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Ongoing returns the single ongoing session, or nil when none exists.
func (s *SQLStore) Ongoing(ctx context.Context) (*Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM stock_opnames WHERE status = 'ongoing'`
	sess, err := scanSession(s.db.QueryRowContext(ctx, q))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return sess, nil
}

// InsertSession creates an ongoing session. The ongoing_flag unique index
// makes a concurrent second start fail with a duplicate-key error.
func (s *SQLStore) InsertSession(ctx context.Context, sess *Session) error {
	const q = `
	INSERT INTO stock_opnames (title, status, created_by, created_at)
	VALUES (?, 'ongoing', ?, ?)`
	res, err := s.db.ExecContext(ctx, q, sess.Title, sess.CreatedBy, sess.CreatedAt)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	sess.OpnameID = id
	return nil
}

func (s *SQLStore) GetSession(ctx context.Context, id int64) (*Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM stock_opnames WHERE opname_id = ?`
	sess, err := scanSession(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierr.NotFound("opname session not found")
		}
		return nil, err
	}
	return sess, nil
}

// CompleteSession moves ongoing -> completed. Zero rows affected means the
// session was already completed or never existed.
func (s *SQLStore) CompleteSession(ctx context.Context, id int64, at time.Time) error {
	const q = `
	UPDATE stock_opnames
	SET status = 'completed', completed_at = ?
	WHERE opname_id = ? AND status = 'ongoing'`
	res, err := s.db.ExecContext(ctx, q, at, id)
	if err != nil {
		return apierr.Internal("failed to complete opname", err)
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return apierr.Conflict("session is not ongoing")
	}
	return nil
}

func (s *SQLStore) ListSessions(ctx context.Context) ([]Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM stock_opnames ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

func (s *SQLStore) SessionItems(ctx context.Context, opnameID int64) ([]ItemDetail, error) {
	const q = `
	SELECT i.item_id, i.opname_id, i.template_id, i.unit_id,
	       i.system_qty, i.actual_qty, i.checked_by, i.checked_at,
	       t.name, c.name,
	       COALESCE(u.asset_code, u.serial_number),
	       p.full_name
	FROM stock_opname_items i
	JOIN product_templates t ON t.template_id = i.template_id
	JOIN categories c ON c.category_id = t.category_id
	LEFT JOIN product_units u ON u.unit_id = i.unit_id
	LEFT JOIN profiles p ON p.id = i.checked_by
	WHERE i.opname_id = ?
	ORDER BY i.checked_at ASC, i.item_id ASC`
	rows, err := s.db.QueryContext(ctx, q, opnameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ItemDetail
	for rows.Next() {
		var d ItemDetail
		err := rows.Scan(&d.ItemID, &d.OpnameID, &d.TemplateID, &d.UnitID,
			&d.SystemQty, &d.ActualQty, &d.CheckedBy, &d.CheckedAt,
			&d.TemplateName, &d.CategoryName, &d.UnitCode, &d.CheckerName)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLStore) TemplateSnapshot(ctx context.Context, templateID int64) (bool, int, error) {
	const q = `SELECT is_serialized, quantity_on_hand FROM product_templates WHERE template_id = ?`
	var serialized bool
	var onHand int
	if err := s.db.QueryRowContext(ctx, q, templateID).Scan(&serialized, &onHand); err != nil {
		if err == sql.ErrNoRows {
			return false, 0, apierr.NotFound("template not found")
		}
		return false, 0, err
	}
	return serialized, onHand, nil
}

func (s *SQLStore) UnitTemplate(ctx context.Context, unitID int64) (int64, error) {
	const q = `SELECT template_id FROM product_units WHERE unit_id = ?`
	var templateID int64
	if err := s.db.QueryRowContext(ctx, q, unitID).Scan(&templateID); err != nil {
		if err == sql.ErrNoRows {
			return 0, apierr.NotFound("unit not found")
		}
		return 0, err
	}
	return templateID, nil
}

// UpsertItem writes one counted line under a row lock. A re-scan updates
// the existing (opname, template, unit) row: increment adds the counted
// quantity, otherwise the count is overwritten. An insert that loses a
// duplicate-key race against a concurrent first scan retries as an update.
func (s *SQLStore) UpsertItem(ctx context.Context, it *Item, increment bool) (*Item, error) {
	final := *it
	err := platformdb.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx platformdb.DBTX) error {
		for attempt := 0; attempt < 2; attempt++ {
			const lockQ = `
			SELECT item_id, actual_qty
			FROM stock_opname_items
			WHERE opname_id = ? AND template_id = ? AND unit_key = COALESCE(?, 0)
			FOR UPDATE`
			var existingID int64
			var existingQty int
			err := tx.QueryRowContext(ctx, lockQ, it.OpnameID, it.TemplateID, it.UnitID).
				Scan(&existingID, &existingQty)
			switch {
			case err == nil:
				final.ItemID = existingID
				final.ActualQty = it.ActualQty
				if increment {
					final.ActualQty = existingQty + it.ActualQty
				}
				const updQ = `
				UPDATE stock_opname_items
				SET system_qty = ?, actual_qty = ?, checked_by = ?, checked_at = ?
				WHERE item_id = ?`
				_, err = tx.ExecContext(ctx, updQ,
					it.SystemQty, final.ActualQty, it.CheckedBy, it.CheckedAt, existingID)
				return err
			case err == sql.ErrNoRows:
				const insQ = `
				INSERT INTO stock_opname_items
				(opname_id, template_id, unit_id, system_qty, actual_qty, checked_by, checked_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`
				res, err := tx.ExecContext(ctx, insQ,
					it.OpnameID, it.TemplateID, it.UnitID, it.SystemQty, it.ActualQty,
					it.CheckedBy, it.CheckedAt)
				if err != nil {
					if apierr.IsDuplicate(err) {
						continue
					}
					return err
				}
				id, _ := res.LastInsertId()
				final.ItemID = id
				return nil
			default:
				return err
			}
		}
		return apierr.Conflict("concurrent submissions for the same item")
	})
	if err != nil {
		return nil, err
	}
	return &final, nil
}
