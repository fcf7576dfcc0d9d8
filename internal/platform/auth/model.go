package auth

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Roles and privilege tags carried in profiles and tokens.
const (
	RoleMember     = "member"
	RoleManagement = "management"

	PrivInventory = "inventory"
	PrivRoom      = "room"
	PrivTransport = "transport"
)

// Principal is the verified caller attached to the request context.
// Unrestricted is resolved once, at token issue time, from a profile with
// no privilege list (legacy full-access admins); call sites never test for
// a nil slice themselves.
type Principal struct {
	ID           uuid.UUID
	Role         string
	Privileges   []string
	Unrestricted bool
}

func (p Principal) IsManagement() bool { return p.Role == RoleManagement }

// Allowed reports whether the principal holds the given privilege tag.
func (p Principal) Allowed(tag string) bool {
	if p.Unrestricted {
		return true
	}
	for _, t := range p.Privileges {
		if t == tag {
			return true
		}
	}
	return false
}

// Profile is one row of the profiles table.
type Profile struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	FullName     string
	Role         string
	// Privileges is nil when the column is NULL, which grants everything.
	Privileges []string
	IsDisabled bool
	CreatedAt  time.Time
}

func (p *Profile) Unrestricted() bool { return p.Privileges == nil }

type profileRow struct {
	Profile
	privilegesJSON sql.NullString
}
