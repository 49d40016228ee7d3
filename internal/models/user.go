package models

import (
	"time"

	"gorm.io/datatypes"
)

type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleSupervisor UserRole = "supervisor"
	RoleClinic     UserRole = "clinic"
)

func (r UserRole) IsValid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleClinic:
		return true
	}
	return false
}

// Attribute keys stored in UserProfile.Attributes
const (
	AttrJobRole            = "job_role"
	AttrSecurityQuestion   = "security_question"
	AttrSecurityAnswerHash = "security_answer_hash"
)

// UserProfile is the per-uid record keyed by the Identity Store uid.
// Role and Blocked are authoritative for login decisions.
type UserProfile struct {
	UID        string            `json:"uid" gorm:"primaryKey;size:255"`
	Name       string            `json:"name" gorm:"not null;size:100"`
	Email      string            `json:"email" gorm:"index;size:255"`
	StaffID    string            `json:"staff_id" gorm:"size:64"`
	Role       UserRole          `json:"role" gorm:"not null;size:20;index"`
	Blocked    bool              `json:"blocked" gorm:"not null;default:false"`
	Attributes datatypes.JSONMap `json:"attributes,omitempty" gorm:"type:jsonb"`
	CreatedAt  time.Time         `json:"created_at" gorm:"index"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func (UserProfile) TableName() string {
	return "users"
}

// DisplayName is the sender label used in chat: name, falling back to email
func (u *UserProfile) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

func (u *UserProfile) Attribute(key string) string {
	if u.Attributes == nil {
		return ""
	}
	if v, ok := u.Attributes[key].(string); ok {
		return v
	}
	return ""
}

// PublicProfile strips attributes that must not leave the service
func (u *UserProfile) PublicProfile() *UserProfile {
	cp := *u
	if u.Attributes != nil {
		cp.Attributes = datatypes.JSONMap{}
		for k, v := range u.Attributes {
			if k == AttrSecurityAnswerHash {
				continue
			}
			cp.Attributes[k] = v
		}
	}
	return &cp
}
