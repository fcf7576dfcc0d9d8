package rooms

import (
	"context"
	"database/sql"
	"strings"

	"gkiportal-backend/internal/lending/booking"
	"gkiportal-backend/internal/lending/status"
	"gkiportal-backend/internal/platform/apierr"
	platformdb "gkiportal-backend/internal/platform/db"
)

type SQLStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

// ===== Rooms =====

func scanRoom(row interface{ Scan(...any) error }) (*Room, error) {
	var r Room
	if err := row.Scan(&r.RoomID, &r.Name, &r.Capacity, &r.Location, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLStore) GetRoom(ctx context.Context, id int64) (*Room, error) {
	const q = `SELECT room_id, name, capacity, location, created_at FROM rooms WHERE room_id = ?`
	r, err := scanRoom(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierr.NotFound("room not found")
		}
		return nil, err
	}
	return r, nil
}

func (s *SQLStore) ListRooms(ctx context.Context) ([]Room, error) {
	const q = `SELECT room_id, name, capacity, location, created_at FROM rooms ORDER BY name ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *SQLStore) InsertRoom(ctx context.Context, r *Room) error {
	const q = `INSERT INTO rooms (name, capacity, location, created_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`
	res, err := s.db.ExecContext(ctx, q, r.Name, r.Capacity, r.Location)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	r.RoomID = id
	return nil
}

func (s *SQLStore) UpdateRoom(ctx context.Context, r *Room) error {
	const q = `UPDATE rooms SET name = ?, capacity = ?, location = ? WHERE room_id = ?`
	_, err := s.db.ExecContext(ctx, q, r.Name, r.Capacity, r.Location, r.RoomID)
	return err
}

func (s *SQLStore) DeleteRoom(ctx context.Context, id int64) error {
	const q = `DELETE FROM rooms WHERE room_id = ?`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return apierr.NotFound("room not found")
	}
	return nil
}

// ===== Reservations =====

const reservationColumns = `r.reservation_id, r.reservation_ulid, r.room_id, r.requester_id, COALESCE(p.full_name, ''), r.event_name, r.start_time, r.end_time, r.status, r.created_at`

func scanReservation(row interface{ Scan(...any) error }) (*Reservation, error) {
	var r Reservation
	err := row.Scan(&r.ReservationID, &r.ReservationULID, &r.RoomID, &r.RequesterID,
		&r.RequesterName, &r.EventName, &r.StartTime, &r.EndTime, &r.Status, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLStore) GetReservation(ctx context.Context, id int64) (*Reservation, error) {
	const q = `
	SELECT ` + reservationColumns + `
	FROM room_reservations r
	LEFT JOIN profiles p ON p.id = r.requester_id
	WHERE r.reservation_id = ?`
	r, err := scanReservation(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierr.NotFound("reservation not found")
		}
		return nil, err
	}
	return r, nil
}

func (s *SQLStore) ListReservations(ctx context.Context, f ReservationFilter) ([]Reservation, error) {
	sb := strings.Builder{}
	sb.WriteString(`
	SELECT ` + reservationColumns + `
	FROM room_reservations r
	LEFT JOIN profiles p ON p.id = r.requester_id
	WHERE 1=1`)

	args := []any{}
	if f.RoomID != nil {
		sb.WriteString(` AND r.room_id = ?`)
		args = append(args, *f.RoomID)
	}
	if f.RequesterID != nil {
		sb.WriteString(` AND r.requester_id = ?`)
		args = append(args, *f.RequesterID)
	}
	if len(f.Statuses) > 0 {
		sb.WriteString(` AND r.status IN (?` + strings.Repeat(",?", len(f.Statuses)-1) + `)`)
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	if f.After != nil {
		sb.WriteString(` AND r.end_time > ?`)
		args = append(args, *f.After)
	}
	sb.WriteString(` ORDER BY r.start_time ASC`)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *SQLStore) InsertReservation(ctx context.Context, r *Reservation) error {
	const q = `
	INSERT INTO room_reservations
	(reservation_ulid, room_id, requester_id, event_name, start_time, end_time, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`
	res, err := s.db.ExecContext(ctx, q,
		r.ReservationULID, r.RoomID, r.RequesterID, r.EventName, r.StartTime, r.EndTime, string(r.Status))
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	r.ReservationID = id
	return nil
}

func (s *SQLStore) BlockingCommitments(ctx context.Context, roomID int64, excludeID int64) ([]booking.Commitment, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT reservation_id, status, start_time, end_time FROM room_reservations WHERE room_id = ?`)
	args := []any{roomID}
	if excludeID > 0 {
		sb.WriteString(` AND reservation_id <> ?`)
		args = append(args, excludeID)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
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

// ExecTransition updates the status conditioned on the expected current
// value. The approval guard locks the room's other approved rows and
// re-checks the half-open overlap inside the transaction, so two
// concurrent approvals of clashing requests cannot both land.
func (s *SQLStore) ExecTransition(ctx context.Context, resID int64, roomID int64, from, to status.Status, guard *booking.Window) error {
	return platformdb.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx platformdb.DBTX) error {
		if guard != nil {
			const overlapQ = `
			SELECT COUNT(*)
			FROM room_reservations
			WHERE room_id = ?
			  AND reservation_id <> ?
			  AND status = ?
			  AND start_time < ?
			  AND end_time > ?
			FOR UPDATE`
			var n int
			err := tx.QueryRowContext(ctx, overlapQ,
				roomID, resID, string(status.Approved), guard.End, guard.Start).Scan(&n)
			if err != nil {
				return err
			}
			if n > 0 {
				return apierr.Conflict("an overlapping reservation was already approved")
			}
		}

		const q = `UPDATE room_reservations SET status = ? WHERE reservation_id = ? AND status = ?`
		res, err := tx.ExecContext(ctx, q, string(to), resID, string(from))
		if err != nil {
			return err
		}
		if aff, _ := res.RowsAffected(); aff == 0 {
			return apierr.Conflict("reservation status changed concurrently")
		}
		return nil
	})
}

func (s *SQLStore) DeletePendingOwned(ctx context.Context, resID int64, requesterID string) (bool, error) {
	const q = `DELETE FROM room_reservations WHERE reservation_id = ? AND requester_id = ? AND status = ?`
	res, err := s.db.ExecContext(ctx, q, resID, requesterID, string(status.Pending))
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff == 1, nil
}
