package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Profile is the per-user record maintained by the identity provider. This
// service reads it for display data and owns CurrentWorkspaceID, which must
// reference a workspace the user belongs to or be nil.
type Profile struct {
	ID                 string  `gorm:"primaryKey;size:36" json:"id"`
	Email              string  `gorm:"size:320;not null;uniqueIndex" json:"email"`
	FullName           string  `gorm:"size:256" json:"full_name"`
	AvatarURL          string  `gorm:"size:1024" json:"avatar_url"`
	JobTitle           string  `gorm:"size:256" json:"job_title"`
	CurrentWorkspaceID *string `gorm:"size:36;index" json:"current_workspace_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns an identifier when missing and normalises the email.
func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Email = NormalizeEmail(p.Email)
	return nil
}
