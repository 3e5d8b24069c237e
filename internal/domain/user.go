// File: internal/domain/user.go
package domain

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// UserRole identifies which side of the platform an account belongs to.
type UserRole string

const (
	RolePatient UserRole = "patient"
	RoleDoctor  UserRole = "doctor"
)

// IsValid reports whether the role is one the messaging layer knows about.
func (r UserRole) IsValid() bool {
	return r == RolePatient || r == RoleDoctor
}

// Counterpart returns the opposite role. Patient and doctor are the only
// pairing the messaging layer carries; anything else is a modeling error
// upstream of this package.
func (r UserRole) Counterpart() UserRole {
	if r == RolePatient {
		return RoleDoctor
	}
	return RolePatient
}

// User is a platform account. Registration and login live outside this
// subsystem; the messaging core only reads users to confirm that a principal
// still denotes a known account and to denormalize display names.
type User struct {
	ID          uint      `json:"id"`
	Username    string    `gorm:"uniqueIndex;size:64" json:"username"`
	DisplayName string    `gorm:"size:120" json:"display_name"`
	Role        UserRole  `gorm:"size:10;not null" json:"role"`
	Password    string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HashPassword securely hashes the user's password.
func (u *User) HashPassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

// ValidatePassword compares a plain-text password with the user's hashed password.
func (u *User) ValidatePassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
}

func (u *User) IsValid() error {
	if len(u.Username) < 3 {
		return errors.New("username must be at least 3 characters")
	}
	if !u.Role.IsValid() {
		return errors.New("role must be patient or doctor")
	}
	return nil
}

// Principal is the authenticated identity driving one connection. It is
// resolved exactly once, at handshake time, and is immutable afterwards.
type Principal struct {
	ID          uint
	Role        UserRole
	DisplayName string
}
