package domain

import (
	"time"

	"github.com/google/uuid"
)

// Roles assignable to an account
const (
	RoleUser  = "user"
	RoleStaff = "staff"
)

// User represents an account in the system
type User struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Email         string    `json:"email" db:"email"`
	Username      string    `json:"username" db:"username"`
	PasswordHash  string    `json:"-" db:"password_hash"`
	Role          string    `json:"role" db:"role"`
	IsApproved    bool      `json:"is_approved" db:"is_approved"`
	IsActiveStaff bool      `json:"is_active_staff" db:"is_active_staff"`

	// Optional profile fields
	Phone           string `json:"phone" db:"phone"`
	Nickname        string `json:"nickname" db:"nickname"`
	AddressStreet   string `json:"address_street" db:"address_street"`
	AddressHouse    string `json:"address_house" db:"address_house"`
	AddressDistrict string `json:"address_district" db:"address_district"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProfileEdit records one field change on a user profile
type ProfileEdit struct {
	ID           uuid.UUID `json:"id" db:"id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	FieldChanged string    `json:"field_changed" db:"field_changed"`
	OldValue     string    `json:"old_value" db:"old_value"`
	NewValue     string    `json:"new_value" db:"new_value"`
	EditedAt     time.Time `json:"edited_at" db:"edited_at"`
}

// RefreshToken represents a stored refresh token
type RefreshToken struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Token     string    `json:"token" db:"token"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Revoked   bool      `json:"revoked" db:"revoked"`
}
