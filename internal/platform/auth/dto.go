package auth

import "time"

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type CreateUserRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
	Role     string `json:"role" binding:"required"`
	// nil keeps the legacy full-access behavior, [] grants nothing
	Privileges []string `json:"privileges,omitempty"`
}

type UpdateUserRequest struct {
	FullName   *string   `json:"full_name,omitempty"`
	Role       *string   `json:"role,omitempty"`
	Privileges *[]string `json:"privileges,omitempty"`
	IsDisabled *bool     `json:"is_disabled,omitempty"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type UserResponse struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	Privileges   []string  `json:"privileges,omitempty"`
	Unrestricted bool      `json:"unrestricted"`
	IsDisabled   bool      `json:"is_disabled"`
	CreatedAt    time.Time `json:"created_at"`
}
