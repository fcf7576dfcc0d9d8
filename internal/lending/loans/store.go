package loans

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"gkiportal-backend/internal/inventory/products"
	"gkiportal-backend/internal/lending/status"
	"gkiportal-backend/internal/platform/apierr"
	platformdb "gkiportal-backend/internal/platform/db"
)

type SQLStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

const loanColumns = `loan_id, loan_ulid, unit_id, template_id, quantity, borrower_id, loan_date, due_date, return_date, status, note, created_at`

func scanLoan(row interface{ Scan(...any) error }) (*Loan, error) {
	var l Loan
	err := row.Scan(&l.LoanID, &l.LoanULID, &l.UnitID, &l.TemplateID, &l.Quantity,
		&l.BorrowerID, &l.LoanDate, &l.DueDate, &l.ReturnDate, &l.Status, &l.Note, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *SQLStore) GetLoan(ctx context.Context, id int64) (*Loan, error) {
	const q = `SELECT ` + loanColumns + ` FROM asset_loans WHERE loan_id = ?`
	l, err := scanLoan(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierr.NotFound("loan not found")
		}
		return nil, err
	}
	return l, nil
}

func (s *SQLStore) ListLoans(ctx context.Context, f LoanFilter) ([]Loan, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + loanColumns + ` FROM asset_loans WHERE 1=1`)

	args := []any{}
	if f.BorrowerID != nil {
		sb.WriteString(` AND borrower_id = ?`)
		args = append(args, *f.BorrowerID)
	}
	if len(f.Statuses) > 0 {
		sb.WriteString(` AND status IN (?` + strings.Repeat(",?", len(f.Statuses)-1) + `)`)
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	if f.UnreturnedOnly {
		sb.WriteString(` AND return_date IS NULL`)
	}
	sb.WriteString(` ORDER BY created_at DESC`)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (s *SQLStore) InsertLoan(ctx context.Context, l *Loan) error {
	const q = `
	INSERT INTO asset_loans
	(loan_ulid, unit_id, template_id, quantity, borrower_id, loan_date, due_date, status, note, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`
	res, err := s.db.ExecContext(ctx, q,
		l.LoanULID, l.UnitID, l.TemplateID, l.Quantity, l.BorrowerID,
		l.LoanDate, l.DueDate, string(l.Status), l.Note)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	l.LoanID = id
	return nil
}

// ExecTransition performs the status move and the unit side effect as one
// transaction. The status UPDATE is conditioned on the expected current
// status, so a caller that lost a race against a concurrent decision gets
// a conflict instead of silently overwriting it.
func (s *SQLStore) ExecTransition(ctx context.Context, loanID int64, from, to status.Status, fx TransitionEffects, now time.Time) error {
	return platformdb.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx platformdb.DBTX) error {
		var (
			res sql.Result
			err error
		)
		if fx.StampReturn {
			const q = `UPDATE asset_loans SET status = ?, return_date = ? WHERE loan_id = ? AND status = ? AND return_date IS NULL`
			res, err = tx.ExecContext(ctx, q, string(to), now, loanID, string(from))
		} else {
			const q = `UPDATE asset_loans SET status = ? WHERE loan_id = ? AND status = ?`
			res, err = tx.ExecContext(ctx, q, string(to), loanID, string(from))
		}
		if err != nil {
			return err
		}
		if aff, _ := res.RowsAffected(); aff == 0 {
			return apierr.Conflict("loan status changed concurrently")
		}

		if fx.SetUnitStatus == nil {
			return nil
		}

		var unitID sql.NullInt64
		const unitQ = `SELECT unit_id FROM asset_loans WHERE loan_id = ?`
		if err := tx.QueryRowContext(ctx, unitQ, loanID).Scan(&unitID); err != nil {
			return err
		}
		if !unitID.Valid {
			return nil
		}

		if fx.RequireUnitStatus != nil {
			const q = `UPDATE product_units SET status = ? WHERE unit_id = ? AND status = ?`
			res, err = tx.ExecContext(ctx, q, string(*fx.SetUnitStatus), unitID.Int64, string(*fx.RequireUnitStatus))
			if err != nil {
				return err
			}
			if aff, _ := res.RowsAffected(); aff == 0 {
				return apierr.Conflict("unit is no longer available")
			}
			return nil
		}

		const q = `UPDATE product_units SET status = ? WHERE unit_id = ?`
		_, err = tx.ExecContext(ctx, q, string(*fx.SetUnitStatus), unitID.Int64)
		return err
	})
}

// DeletePendingOwned is the conditional delete behind borrower
// cancellation. The WHERE clause repeats the ownership and pending
// checks so a race with an approval cannot remove a decided row.
func (s *SQLStore) DeletePendingOwned(ctx context.Context, loanID int64, borrowerID string) (bool, error) {
	const q = `DELETE FROM asset_loans WHERE loan_id = ? AND borrower_id = ? AND status = ?`
	res, err := s.db.ExecContext(ctx, q, loanID, borrowerID, string(status.Pending))
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff == 1, nil
}

func (s *SQLStore) TemplateStock(ctx context.Context, templateID int64) (bool, int, int, error) {
	const q = `SELECT is_serialized, quantity_on_hand FROM product_templates WHERE template_id = ?`
	var serialized bool
	var onHand int
	if err := s.db.QueryRowContext(ctx, q, templateID).Scan(&serialized, &onHand); err != nil {
		if err == sql.ErrNoRows {
			return false, 0, 0, apierr.NotFound("template not found")
		}
		return false, 0, 0, err
	}

	const sumQ = `
	SELECT COALESCE(SUM(quantity), 0)
	FROM asset_loans
	WHERE template_id = ?
	  AND status IN ('Disetujui', 'Dipinjam')
	  AND return_date IS NULL`
	var borrowed int
	if err := s.db.QueryRowContext(ctx, sumQ, templateID).Scan(&borrowed); err != nil {
		return false, 0, 0, err
	}
	return serialized, onHand, borrowed, nil
}

func (s *SQLStore) UnitState(ctx context.Context, unitID int64) (products.UnitStatus, error) {
	const q = `SELECT status FROM product_units WHERE unit_id = ?`
	var st products.UnitStatus
	if err := s.db.QueryRowContext(ctx, q, unitID).Scan(&st); err != nil {
		if err == sql.ErrNoRows {
			return "", apierr.NotFound("unit not found")
		}
		return "", err
	}
	return st, nil
}
