package auth

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"gkiportal-backend/internal/platform/apierr"
)

const tokenTTL = 24 * time.Hour

type Service struct {
	store  *Store
	secret []byte
}

func NewService(db *sql.DB, secret []byte) *Service {
	return &Service{store: NewStore(db), secret: secret}
}

func (s *Service) Secret() []byte { return s.secret }

// Login verifies the credentials and issues a bearer token carrying the
// subject, role and privilege tags. A profile without a privilege list
// gets a token without a privileges claim, which the middleware reads as
// unrestricted.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		return nil, apierr.Invalid("email and password are required")
	}

	p, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, apierr.Internal("failed to load profile", err)
	}
	if p == nil || p.IsDisabled {
		return nil, apierr.Unauthorized("invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apierr.Unauthorized("invalid email or password")
	}

	claims := jwt.MapClaims{
		"sub":  p.ID.String(),
		"role": p.Role,
		"exp":  time.Now().Add(tokenTTL).Unix(),
	}
	if p.Privileges != nil {
		claims["privileges"] = p.Privileges
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, apierr.Internal("failed to sign token", err)
	}

	return &LoginResponse{
		Token: signed,
		User:  buildUserResponse(p),
	}, nil
}

func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" || strings.TrimSpace(req.FullName) == "" {
		return nil, apierr.Invalid("email, password and full_name are required")
	}
	if req.Role != RoleMember && req.Role != RoleManagement {
		return nil, apierr.Invalid("role must be member or management")
	}
	if err := validatePrivileges(req.Privileges); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apierr.Internal("failed to hash password", err)
	}

	p := &Profile{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		Privileges:   req.Privileges,
	}
	if err := s.store.Insert(ctx, p); err != nil {
		return nil, apierr.FromStore("email already registered", err)
	}
	resp := buildUserResponse(p)
	return &resp, nil
}

func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, req UpdateUserRequest) (*UserResponse, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		if strings.TrimSpace(*req.FullName) == "" {
			return nil, apierr.Invalid("full_name must not be empty")
		}
		p.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Role != nil {
		if *req.Role != RoleMember && *req.Role != RoleManagement {
			return nil, apierr.Invalid("role must be member or management")
		}
		p.Role = *req.Role
	}
	if req.Privileges != nil {
		if err := validatePrivileges(*req.Privileges); err != nil {
			return nil, err
		}
		p.Privileges = *req.Privileges
	}
	if req.IsDisabled != nil {
		p.IsDisabled = *req.IsDisabled
	}

	if err := s.store.Update(ctx, p); err != nil {
		return nil, apierr.FromStore("failed to update user", err)
	}
	resp := buildUserResponse(p)
	return &resp, nil
}

func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.store.Delete(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context) ([]UserResponse, error) {
	profiles, err := s.store.List(ctx)
	if err != nil {
		return nil, apierr.Internal("failed to list users", err)
	}
	out := make([]UserResponse, 0, len(profiles))
	for i := range profiles {
		out = append(out, buildUserResponse(&profiles[i]))
	}
	return out, nil
}

// ChangePassword is self-service: the principal changes their own password
// after proving the old one.
func (s *Service) ChangePassword(ctx context.Context, principal Principal, req ChangePasswordRequest) error {
	if req.NewPassword == "" {
		return apierr.Invalid("new_password is required")
	}
	p, err := s.store.GetByID(ctx, principal.ID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(req.OldPassword)); err != nil {
		return apierr.Unauthorized("old password does not match")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return apierr.Internal("failed to hash password", err)
	}
	if err := s.store.UpdatePasswordHash(ctx, p.ID, string(hash)); err != nil {
		return apierr.Internal("failed to update password", err)
	}
	return nil
}

func validatePrivileges(privs []string) error {
	for _, t := range privs {
		switch t {
		case PrivInventory, PrivRoom, PrivTransport:
		default:
			return apierr.Invalid("unknown privilege tag: " + t)
		}
	}
	return nil
}

func buildUserResponse(p *Profile) UserResponse {
	return UserResponse{
		ID:           p.ID.String(),
		Email:        p.Email,
		FullName:     p.FullName,
		Role:         p.Role,
		Privileges:   p.Privileges,
		Unrestricted: p.Unrestricted(),
		IsDisabled:   p.IsDisabled,
		CreatedAt:    p.CreatedAt,
	}
}
