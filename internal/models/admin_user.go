package models

import (
	"time"

	"github.com/google/uuid"
)

type AdminRole string

const (
	AdminRoleAdmin      AdminRole = "admin"
	AdminRoleSuperAdmin AdminRole = "super_admin"
	AdminRoleViewer     AdminRole = "viewer"
)

func (r AdminRole) Valid() bool {
	switch r {
	case AdminRoleAdmin, AdminRoleSuperAdmin, AdminRoleViewer:
		return true
	}
	return false
}

type AdminUser struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Role         AdminRole  `json:"role" db:"role"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	LastLogin    *time.Time `json:"last_login" db:"last_login"`
}

// Session: серверная сессия администратора (хранится в Redis).
type Session struct {
	AdminID  uuid.UUID `json:"admin_id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Role     AdminRole `json:"role"`
	IssuedAt time.Time `json:"issued_at"`

	// PasswordStamp: отпечаток хэша пароля на момент входа; смена пароля
	// делает сессию недействительной.
	PasswordStamp string `json:"password_stamp,omitempty"`
}
