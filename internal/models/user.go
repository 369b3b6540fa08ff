package models

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleViewer UserRole = "viewer"
)

type User struct {
	gorm.Model
	Username     string   `gorm:"uniqueIndex;size:255;not null"`
	Email        string   `gorm:"size:255"`
	DisplayName  string   `gorm:"size:255"`
	PasswordHash string   `gorm:"not null"`
	Role         UserRole `gorm:"type:varchar(50);not null;index"`
	IsActive     bool     `gorm:"not null;default:true"`

	LastLogin  *time.Time
	LoginCount int    `gorm:"not null;default:0"`
	LastIP     string `gorm:"size:45"`
}

func (u *User) EntityName() string { return "User" }

func (u *User) PrimaryKey() string { return formatID(u.ID) }

// TrackedFields keeps the password hash and login bookkeeping out of audit rows;
// a login still persists them but produces no change record.
func (u *User) TrackedFields() []Field {
	return []Field{
		{Name: "username", Value: u.Username},
		{Name: "email", Value: u.Email},
		{Name: "display_name", Value: u.DisplayName},
		{Name: "role", Value: u.Role},
		{Name: "is_active", Value: u.IsActive},
		{Name: "password_hash", Value: u.PasswordHash, NoAudit: true},
		{Name: "last_login", Value: u.LastLogin, NoAudit: true},
		{Name: "login_count", Value: u.LoginCount, NoAudit: true},
		{Name: "last_ip", Value: u.LastIP, NoAudit: true},
	}
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
