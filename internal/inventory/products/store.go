package products

import (
	"context"
	"database/sql"

	"gkiportal-backend/internal/platform/apierr"
	platformdb "gkiportal-backend/internal/platform/db"
)

type SQLStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

// ===== Templates =====

const templateColumns = `template_id, name, category_id, location, unit, is_serialized, quantity_on_hand, min_quantity, created_at`

func scanTemplate(row interface{ Scan(...any) error }) (*Template, error) {
	var t Template
	err := row.Scan(&t.TemplateID, &t.Name, &t.CategoryID, &t.Location, &t.Unit,
		&t.IsSerialized, &t.QuantityOnHand, &t.MinQuantity, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *SQLStore) GetTemplate(ctx context.Context, id int64) (*Template, error) {
	const q = `SELECT ` + templateColumns + ` FROM product_templates WHERE template_id = ?`
	t, err := scanTemplate(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierr.NotFound("template not found")
		}
		return nil, err
	}
	return t, nil
}

func (s *SQLStore) ListTemplates(ctx context.Context) ([]Template, error) {
	const q = `SELECT ` + templateColumns + ` FROM product_templates ORDER BY name ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *SQLStore) InsertTemplate(ctx context.Context, t *Template) error {
	const q = `
	INSERT INTO product_templates
	(name, category_id, location, unit, is_serialized, quantity_on_hand, min_quantity, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`
	res, err := s.db.ExecContext(ctx, q,
		t.Name, t.CategoryID, t.Location, t.Unit, t.IsSerialized, t.QuantityOnHand, t.MinQuantity)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	t.TemplateID = id
	return nil
}

func (s *SQLStore) UpdateTemplate(ctx context.Context, t *Template) error {
	const q = `
	UPDATE product_templates
	SET name = ?, category_id = ?, location = ?, unit = ?, min_quantity = ?
	WHERE template_id = ?`
	_, err := s.db.ExecContext(ctx, q, t.Name, t.CategoryID, t.Location, t.Unit, t.MinQuantity, t.TemplateID)
	return err
}

func (s *SQLStore) DeleteTemplate(ctx context.Context, id int64) error {
	const q = `DELETE FROM product_templates WHERE template_id = ?`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return apierr.NotFound("template not found")
	}
	return nil
}

func (s *SQLStore) CountUnits(ctx context.Context, templateID int64) (int, error) {
	const q = `SELECT COUNT(*) FROM product_units WHERE template_id = ?`
	var n int
	if err := s.db.QueryRowContext(ctx, q, templateID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// UnitStatusCounts partitions a template's units by status.
func (s *SQLStore) UnitStatusCounts(ctx context.Context, templateID int64) (map[UnitStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM product_units WHERE template_id = ? GROUP BY status`
	rows, err := s.db.QueryContext(ctx, q, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[UnitStatus]int{}
	for rows.Next() {
		var st UnitStatus
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		counts[st] = n
	}
	return counts, rows.Err()
}

// BorrowedQuantity sums unreturned approved/active bulk loans of the
// template. Returned rows fall out of the sum via return_date.
func (s *SQLStore) BorrowedQuantity(ctx context.Context, templateID int64) (int, error) {
	const q = `
	SELECT COALESCE(SUM(quantity), 0)
	FROM asset_loans
	WHERE template_id = ?
	  AND status IN ('Disetujui', 'Dipinjam')
	  AND return_date IS NULL`
	var sum int
	if err := s.db.QueryRowContext(ctx, q, templateID).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

// AdjustQuantity applies delta under a row lock and clamps at zero.
func (s *SQLStore) AdjustQuantity(ctx context.Context, templateID int64, delta int) (int, error) {
	var newQty int
	err := platformdb.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx platformdb.DBTX) error {
		const lockQ = `SELECT quantity_on_hand FROM product_templates WHERE template_id = ? FOR UPDATE`
		var current int
		if err := tx.QueryRowContext(ctx, lockQ, templateID).Scan(&current); err != nil {
			if err == sql.ErrNoRows {
				return apierr.NotFound("template not found")
			}
			return err
		}
		newQty = current + delta
		if newQty < 0 {
			newQty = 0
		}
		const updQ = `UPDATE product_templates SET quantity_on_hand = ? WHERE template_id = ?`
		_, err := tx.ExecContext(ctx, updQ, newQty, templateID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return newQty, nil
}

// ===== Units =====

const unitColumns = `unit_id, template_id, serial_number, asset_code, status, location, purchased_at, purchase_price, created_at`

func scanUnit(row interface{ Scan(...any) error }) (*Unit, error) {
	var u Unit
	err := row.Scan(&u.UnitID, &u.TemplateID, &u.SerialNumber, &u.AssetCode, &u.Status,
		&u.Location, &u.PurchasedAt, &u.PurchasePrice, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLStore) GetUnit(ctx context.Context, id int64) (*Unit, error) {
	const q = `SELECT ` + unitColumns + ` FROM product_units WHERE unit_id = ?`
	u, err := scanUnit(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierr.NotFound("unit not found")
		}
		return nil, err
	}
	return u, nil
}

func (s *SQLStore) ListUnits(ctx context.Context, templateID int64) ([]Unit, error) {
	const q = `SELECT ` + unitColumns + ` FROM product_units WHERE template_id = ? ORDER BY unit_id ASC`
	rows, err := s.db.QueryContext(ctx, q, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// FindUnitsByCode matches either the asset code or the serial number.
// The caller decides what zero or multiple matches mean.
func (s *SQLStore) FindUnitsByCode(ctx context.Context, code string) ([]Unit, error) {
	const q = `SELECT ` + unitColumns + ` FROM product_units WHERE asset_code = ? OR serial_number = ?`
	rows, err := s.db.QueryContext(ctx, q, code, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *SQLStore) InsertUnit(ctx context.Context, u *Unit) error {
	const q = `
	INSERT INTO product_units
	(template_id, serial_number, asset_code, status, location, purchased_at, purchase_price, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`
	res, err := s.db.ExecContext(ctx, q,
		u.TemplateID, u.SerialNumber, u.AssetCode, u.Status, u.Location, u.PurchasedAt, u.PurchasePrice)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	u.UnitID = id
	return nil
}

func (s *SQLStore) UpdateUnit(ctx context.Context, u *Unit) error {
	const q = `
	UPDATE product_units
	SET serial_number = ?, asset_code = ?, status = ?, location = ?, purchased_at = ?, purchase_price = ?
	WHERE unit_id = ?`
	_, err := s.db.ExecContext(ctx, q,
		u.SerialNumber, u.AssetCode, u.Status, u.Location, u.PurchasedAt, u.PurchasePrice, u.UnitID)
	return err
}

func (s *SQLStore) DeleteUnit(ctx context.Context, id int64) error {
	const q = `DELETE FROM product_units WHERE unit_id = ?`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return apierr.NotFound("unit not found")
	}
	return nil
}

// UnitHasActiveLoan reports whether an unreturned approved/active loan
// still references the unit.
func (s *SQLStore) UnitHasActiveLoan(ctx context.Context, unitID int64) (bool, error) {
	const q = `
	SELECT EXISTS (
		SELECT 1 FROM asset_loans
		WHERE unit_id = ?
		  AND status IN ('Disetujui', 'Dipinjam')
		  AND return_date IS NULL
	)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, q, unitID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
