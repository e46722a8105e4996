package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"           json:"id"`
	Username     string     `gorm:"uniqueIndex;not null"           json:"username"`
	Email        string     `gorm:"uniqueIndex;not null"           json:"email"`
	PasswordHash string     `gorm:"not null"                       json:"-"`
	FirstName    string     `                                      json:"firstName"`
	LastName     string     `                                      json:"lastName"`
	Role         Role       `gorm:"type:varchar(16);not null"     json:"role"`
	Department   string     `                                      json:"department"`
	Position     string     `                                      json:"position"`
	Avatar       *string    `                                      json:"avatar,omitempty"`
	Active       bool       `gorm:"not null"                       json:"active"`
	LastLogin    *time.Time `                                      json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `                                      json:"createdAt"`
	UpdatedAt    time.Time  `                                      json:"updatedAt"`

	RefreshTokens []RefreshToken `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// RefreshToken rows are insert-only; only the sha256 of the bearer value is stored.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TokenHash string    `gorm:"uniqueIndex;not null"     json:"-"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	ExpiresAt time.Time `gorm:"index;not null"           json:"expires_at"`
	CreatedAt time.Time `                                json:"created_at"`
}

// Identity is the caller decoded from a validated access token.
type Identity struct {
	Username string
	Role     Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
