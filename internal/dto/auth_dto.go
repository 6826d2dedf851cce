package dto

import "time"

// RegisterRequest creates a student or tutor account.
type RegisterRequest struct {
	Name        string   `json:"name" validate:"required,min=2,max=255"`
	Email       string   `json:"email" validate:"required,email,max=255"`
	Password    string   `json:"password" validate:"required,min=6,max=128"`
	Role        string   `json:"role" validate:"omitempty,oneof=student tutor admin"`
	Phone       string   `json:"phone" validate:"omitempty,max=32"`
	Location    string   `json:"location" validate:"omitempty,max=255"`
	Grade       string   `json:"grade" validate:"omitempty,max=64"`
	Institution string   `json:"institution" validate:"omitempty,max=255"`
	Subjects    []string `json:"subjects" validate:"omitempty,max=20,dive,required,max=64"`
	Experience  int      `json:"experience" validate:"omitempty,gte=0,lte=60"`
	Bio         string   `json:"bio" validate:"omitempty,max=500"`
	HourlyRate  int64    `json:"hourly_rate" validate:"omitempty,gte=0"`
}

// LoginRequest authenticates an account, optionally pinned to a role.
type LoginRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required"`
	SelectedRole string `json:"selected_role" validate:"omitempty,oneof=student tutor admin"`
}

// ChangePasswordRequest replaces the caller's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6,max=128,nefield=CurrentPassword"`
}

// AuthResponse returns the issued token together with the account.
type AuthResponse struct {
	Token         string       `json:"token"`
	ExpiresAt     time.Time    `json:"expires_at"`
	User          UserResponse `json:"user"`
	StatusWarning string       `json:"status_warning,omitempty"`
}
