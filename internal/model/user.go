package model

import "gorm.io/gorm"

// UserRole is also the Casbin subject for route permissions.
type UserRole string

const (
	RoleMember UserRole = "MEMBER"
	RoleAdmin  UserRole = "ADMIN"
)

func (r UserRole) Valid() bool {
	return r == RoleMember || r == RoleAdmin
}

// User represents a library member or administrator
type User struct {
	Base
	Email      string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password   string         `gorm:"not null" json:"-"` // bcrypt hash
	FirstName  string         `gorm:"size:100;not null" json:"firstName"`
	LastName   string         `gorm:"size:100;not null" json:"lastName"`
	Role       UserRole       `gorm:"size:16;not null;index" json:"role"`
	IsActive   bool           `gorm:"not null" json:"isActive"`
	IsVerified bool           `gorm:"not null" json:"isVerified"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}
