package auth

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"gkiportal-backend/internal/platform/apierr"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

const profileColumns = `id, email, password_hash, full_name, role, privileges, is_disabled, created_at`

func scanProfile(row interface{ Scan(...any) error }) (*Profile, error) {
	var r profileRow
	var id string
	if err := row.Scan(&id, &r.Email, &r.PasswordHash, &r.FullName, &r.Role, &r.privilegesJSON, &r.IsDisabled, &r.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	r.ID = parsed
	if r.privilegesJSON.Valid {
		privs := []string{}
		if err := json.Unmarshal([]byte(r.privilegesJSON.String), &privs); err != nil {
			return nil, err
		}
		r.Privileges = privs
	}
	return &r.Profile, nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	const q = `SELECT ` + profileColumns + ` FROM profiles WHERE email = ?`
	p, err := scanProfile(s.db.QueryRowContext(ctx, q, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	const q = `SELECT ` + profileColumns + ` FROM profiles WHERE id = ?`
	p, err := scanProfile(s.db.QueryRowContext(ctx, q, id.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierr.NotFound("user not found")
		}
		return nil, err
	}
	return p, nil
}

func (s *Store) List(ctx context.Context) ([]Profile, error) {
	const q = `SELECT ` + profileColumns + ` FROM profiles ORDER BY full_name ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func privilegesArg(privs []string) (any, error) {
	if privs == nil {
		return nil, nil
	}
	b, err := json.Marshal(privs)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *Store) Insert(ctx context.Context, p *Profile) error {
	privs, err := privilegesArg(p.Privileges)
	if err != nil {
		return err
	}
	const q = `
	INSERT INTO profiles (id, email, password_hash, full_name, role, privileges, is_disabled, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`
	_, err = s.db.ExecContext(ctx, q,
		p.ID.String(), p.Email, p.PasswordHash, p.FullName, p.Role, privs, p.IsDisabled)
	return err
}

func (s *Store) Update(ctx context.Context, p *Profile) error {
	privs, err := privilegesArg(p.Privileges)
	if err != nil {
		return err
	}
	const q = `
	UPDATE profiles
	SET full_name = ?, role = ?, privileges = ?, is_disabled = ?
	WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, p.FullName, p.Role, privs, p.IsDisabled, p.ID.String())
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		// aff==0 also fires on a no-change update; re-check existence
		if _, err := s.GetByID(ctx, p.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	const q = `UPDATE profiles SET password_hash = ? WHERE id = ?`
	_, err := s.db.ExecContext(ctx, q, hash, id.String())
	return err
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM profiles WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, id.String())
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return apierr.NotFound("user not found")
	}
	return nil
}
