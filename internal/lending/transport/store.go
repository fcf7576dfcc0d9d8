package transport

import (
	"context"
	"database/sql"
	"strings"

	"gkiportal-backend/internal/lending/booking"
	"gkiportal-backend/internal/lending/status"
	"gkiportal-backend/internal/platform/apierr"
)

type SQLStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

// ===== Vehicles =====

const vehicleColumns = `vehicle_id, name, plate_number, capacity, person_in_charge_id, created_at`

func scanVehicle(row interface{ Scan(...any) error }) (*Vehicle, error) {
	var v Vehicle
	err := row.Scan(&v.VehicleID, &v.Name, &v.PlateNumber, &v.Capacity, &v.PersonInChargeID, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *SQLStore) GetVehicle(ctx context.Context, id int64) (*Vehicle, error) {
	const q = `SELECT ` + vehicleColumns + ` FROM transportations WHERE vehicle_id = ?`
	v, err := scanVehicle(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierr.NotFound("vehicle not found")
		}
		return nil, err
	}
	return v, nil
}

func (s *SQLStore) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	const q = `SELECT ` + vehicleColumns + ` FROM transportations ORDER BY name ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func (s *SQLStore) InsertVehicle(ctx context.Context, v *Vehicle) error {
	const q = `
	INSERT INTO transportations (name, plate_number, capacity, person_in_charge_id, created_at)
	VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`
	res, err := s.db.ExecContext(ctx, q, v.Name, v.PlateNumber, v.Capacity, v.PersonInChargeID)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	v.VehicleID = id
	return nil
}

func (s *SQLStore) UpdateVehicle(ctx context.Context, v *Vehicle) error {
	const q = `
	UPDATE transportations
	SET name = ?, plate_number = ?, capacity = ?, person_in_charge_id = ?
	WHERE vehicle_id = ?`
	_, err := s.db.ExecContext(ctx, q, v.Name, v.PlateNumber, v.Capacity, v.PersonInChargeID, v.VehicleID)
	return err
}

func (s *SQLStore) DeleteVehicle(ctx context.Context, id int64) error {
	const q = `DELETE FROM transportations WHERE vehicle_id = ?`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return apierr.NotFound("vehicle not found")
	}
	return nil
}

// ===== Loans =====

const loanColumns = `l.transport_loan_id, l.loan_ulid, l.vehicle_id, l.borrower_id, COALESCE(p.full_name, ''), l.borrow_start, l.borrow_end, l.purpose, l.origin, l.destination, l.passengers_count, l.status, l.created_at`

func scanLoan(row interface{ Scan(...any) error }) (*TransportLoan, error) {
	var l TransportLoan
	err := row.Scan(&l.LoanID, &l.LoanULID, &l.VehicleID, &l.BorrowerID, &l.BorrowerName,
		&l.BorrowStart, &l.BorrowEnd, &l.Purpose, &l.Origin, &l.Destination,
		&l.PassengersCount, &l.Status, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *SQLStore) GetLoan(ctx context.Context, id int64) (*TransportLoan, error) {
	const q = `
	SELECT ` + loanColumns + `
	FROM transport_loans l
	LEFT JOIN profiles p ON p.id = l.borrower_id
	WHERE l.transport_loan_id = ?`
	l, err := scanLoan(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierr.NotFound("transport loan not found")
		}
		return nil, err
	}
	return l, nil
}

func (s *SQLStore) ListLoans(ctx context.Context, f LoanFilter) ([]TransportLoan, error) {
	sb := strings.Builder{}
	sb.WriteString(`
	SELECT ` + loanColumns + `
	FROM transport_loans l
	LEFT JOIN profiles p ON p.id = l.borrower_id
	WHERE 1=1`)

	args := []any{}
	if f.VehicleID != nil {
		sb.WriteString(` AND l.vehicle_id = ?`)
		args = append(args, *f.VehicleID)
	}
	if f.BorrowerID != nil {
		sb.WriteString(` AND l.borrower_id = ?`)
		args = append(args, *f.BorrowerID)
	}
	if len(f.Statuses) > 0 {
		sb.WriteString(` AND l.status IN (?` + strings.Repeat(",?", len(f.Statuses)-1) + `)`)
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	if f.After != nil {
		sb.WriteString(` AND l.borrow_end > ?`)
		args = append(args, *f.After)
	}
	sb.WriteString(` ORDER BY l.borrow_start ASC`)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TransportLoan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (s *SQLStore) InsertLoan(ctx context.Context, l *TransportLoan) error {
	const q = `
	INSERT INTO transport_loans
	(loan_ulid, vehicle_id, borrower_id, borrow_start, borrow_end, purpose, origin, destination, passengers_count, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`
	res, err := s.db.ExecContext(ctx, q,
		l.LoanULID, l.VehicleID, l.BorrowerID, l.BorrowStart, l.BorrowEnd,
		l.Purpose, l.Origin, l.Destination, l.PassengersCount, string(l.Status))
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	l.LoanID = id
	return nil
}

func (s *SQLStore) BlockingCommitments(ctx context.Context, vehicleID int64) ([]booking.Commitment, error) {
	const q = `SELECT transport_loan_id, status, borrow_start, borrow_end FROM transport_loans WHERE vehicle_id = ?`
	rows, err := s.db.QueryContext(ctx, q, vehicleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []booking.Commitment
	for rows.Next() {
		var c booking.Commitment
		if err := rows.Scan(&c.ID, &c.Status, &c.Window.Start, &c.Window.End); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateStatus(ctx context.Context, loanID int64, from, to status.Status) error {
	const q = `UPDATE transport_loans SET status = ? WHERE transport_loan_id = ? AND status = ?`
	res, err := s.db.ExecContext(ctx, q, string(to), loanID, string(from))
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return apierr.Conflict("transport loan status changed concurrently")
	}
	return nil
}

func (s *SQLStore) DeletePendingOwned(ctx context.Context, loanID int64, borrowerID string) (bool, error) {
	const q = `DELETE FROM transport_loans WHERE transport_loan_id = ? AND borrower_id = ? AND status = ?`
	res, err := s.db.ExecContext(ctx, q, loanID, borrowerID, string(status.Pending))
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff == 1, nil
}
