package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleDoctor, RolePatient:
		return true
	}
	return false
}

// Principal is the caller identity resolved from the session. The zero value
// is an anonymous caller.
type Principal struct {
	Username    string
	Role        Role
	DisplayName string
}

func (p Principal) IsAnonymous() bool {
	return p.Username == ""
}

func (p Principal) IsDoctor() bool {
	return p.Role == RoleDoctor
}

func (p Principal) IsPatient() bool {
	return p.Role == RolePatient
}

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	Username     string `gorm:"column:username;type:varchar(150);uniqueIndex;not null"`
	PasswordHash string `gorm:"column:password_hash;type:varchar(255);not null"`
	Role         Role   `gorm:"column:role;type:varchar(30);not null;index"`

	// Doctor profile; empty for patients.
	DisplayName    string `gorm:"column:display_name;type:varchar(150)"`
	Specialization string `gorm:"column:specialization;type:varchar(150)"`
	Email          string `gorm:"column:email;type:varchar(150)"`

	LastLoginAt *time.Time `gorm:"column:last_login_at"`
}

func (User) TableName() string {
	return "auth.users"
}

func (u *User) Principal() Principal {
	return Principal{Username: u.Username, Role: u.Role, DisplayName: u.DisplayName}
}

type AuditAction string

const (
	ActionCreate AuditAction = "create"
	ActionRead   AuditAction = "read"
	ActionUpdate AuditAction = "update"
	ActionDelete AuditAction = "delete"
	ActionLogin  AuditAction = "login"
	ActionLogout AuditAction = "logout"
)

type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	OccurredAt time.Time `gorm:"autoCreateTime;index"`

	// Who
	Username  string `gorm:"column:username;type:varchar(150);index"`
	UserRole  Role   `gorm:"column:user_role;type:varchar(30)"`
	IPAddress string `gorm:"column:ip_address;type:varchar(45)"` // Supports IPv6

	// What
	Action       AuditAction `gorm:"column:action;type:varchar(20);not null;index"`
	ResourceType string      `gorm:"column:resource_type;type:varchar(50);not null;index"`
	ResourceID   string      `gorm:"column:resource_id;type:varchar(50);index"`

	RequestID string `gorm:"column:request_id;type:varchar(50);index"`
	Changes   string `gorm:"column:changes;type:jsonb"`
}

func (AuditLog) TableName() string {
	return "audit.logs"
}

// SessionClaims is the identity carried in the signed session cookie.
type SessionClaims struct {
	Username    string
	Role        Role
	DisplayName string
	ExpiresAt   time.Time
}

func (c *SessionClaims) Principal() Principal {
	return Principal{Username: c.Username, Role: c.Role, DisplayName: c.DisplayName}
}
