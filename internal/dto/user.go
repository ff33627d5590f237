package dto

import (
	"errors"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/Additional-Code/servio/internal/entity"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,50}$`)

var roleRule = validation.By(func(value any) error {
	raw, isNil := validation.Indirect(value)
	if isNil {
		return nil
	}
	s, _ := raw.(string)
	if s == "" {
		return nil
	}
	if _, ok := entity.ParseRole(s); !ok {
		return errors.New("must be one of ADMIN, WAITER, KITCHEN")
	}
	return nil
})

// CreateUserRequest creates a staff account. Password policy is enforced by the user service.
type CreateUserRequest struct {
	Username string  `json:"username"`
	FullName string  `json:"full_name"`
	Role     string  `json:"role"`
	Password string  `json:"password"`
	Pin      *string `json:"pin"`
}

// Validate checks field shapes.
func (r *CreateUserRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Username, validation.Required, validation.Match(usernamePattern)),
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 150)),
		validation.Field(&r.Role, validation.Required, roleRule),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.Pin, validation.NilOrNotEmpty, is.Digit, validation.Length(4, 6)),
	)
}

// UpdateUserRequest patches a staff account.
type UpdateUserRequest struct {
	FullName *string `json:"full_name"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
	Pin      *string `json:"pin"`
}

// Validate checks field shapes. An empty PIN clears it.
func (r *UpdateUserRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.FullName, validation.NilOrNotEmpty, validation.Length(1, 150)),
		validation.Field(&r.Role, validation.NilOrNotEmpty, roleRule),
		validation.Field(&r.Pin, is.Digit, validation.Length(4, 6)),
	)
}

// LoginRequest authenticates with a password.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks presence.
func (r *LoginRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// PinLoginRequest authenticates with a PIN.
type PinLoginRequest struct {
	Pin string `json:"pin"`
}

// Validate checks the PIN shape.
func (r *PinLoginRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Pin, validation.Required, is.Digit, validation.Length(4, 6)),
	)
}

// ChangePasswordRequest replaces the caller's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Validate checks presence.
func (r *ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
	)
}

// UserResponse is a staff account without secrets.
type UserResponse struct {
	ID             int64       `json:"id"`
	Username       string      `json:"username"`
	FullName       string      `json:"full_name"`
	Role           entity.Role `json:"role"`
	IsActive       bool        `json:"is_active"`
	IsOnShift      bool        `json:"is_on_shift"`
	HasPin         bool        `json:"has_pin"`
	CreatedByID    *int64      `json:"created_by_id"`
	ShiftStartedAt *time.Time  `json:"shift_started_at"`
	LastLoginAt    *time.Time  `json:"last_login_at"`
	CreatedAt      time.Time   `json:"created_at"`
}

// NewUserResponse renders a user.
func NewUserResponse(u *entity.User, loc *time.Location) UserResponse {
	return UserResponse{
		ID:             u.ID,
		Username:       u.Username,
		FullName:       u.FullName,
		Role:           u.Role,
		IsActive:       u.IsActive,
		IsOnShift:      u.IsOnShift,
		HasPin:         u.PinHash != nil,
		CreatedByID:    u.CreatedByID,
		ShiftStartedAt: InPtr(u.ShiftStartedAt, loc),
		LastLoginAt:    InPtr(u.LastLoginAt, loc),
		CreatedAt:      In(u.CreatedAt, loc),
	}
}

// NewUserResponses renders a list.
func NewUserResponses(users []*entity.User, loc *time.Location) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, NewUserResponse(u, loc))
	}
	return out
}
