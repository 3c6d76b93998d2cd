package models

import (
	"time"

	"gorm.io/gorm"
)

// WorkspaceMember joins a user to a workspace with a role.
//
// OwnerSlot and DefaultSlot are store-level guards: OwnerSlot holds the
// workspace id while the row is the owner and DefaultSlot holds the user id
// while the row is the user's default. Both sit under unique indexes, so the
// database rejects a second owner per workspace or a second default per user.
type WorkspaceMember struct {
	BaseModel

	WorkspaceID string        `gorm:"size:36;not null;uniqueIndex:idx_workspace_members_pair" json:"workspace_id"`
	UserID      string        `gorm:"size:36;not null;uniqueIndex:idx_workspace_members_pair;index" json:"user_id"`
	Role        WorkspaceRole `gorm:"size:16;not null;index" json:"role"`
	IsDefault   bool          `gorm:"not null" json:"is_default"`
	JoinedAt    time.Time     `gorm:"not null" json:"joined_at"`

	OwnerSlot   *string `gorm:"size:36;uniqueIndex" json:"-"`
	DefaultSlot *string `gorm:"size:36;uniqueIndex" json:"-"`

	Workspace *Workspace `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeSave keeps the guard columns aligned with Role and IsDefault.
func (m *WorkspaceMember) BeforeSave(tx *gorm.DB) error {
	m.OwnerSlot, m.DefaultSlot = memberSlots(m.WorkspaceID, m.UserID, m.Role, m.IsDefault)
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	return nil
}

// RoleColumns returns the column updates for moving a member to role.
// Use it with map based updates, which bypass BeforeSave.
func RoleColumns(workspaceID string, role WorkspaceRole) map[string]any {
	owner, _ := memberSlots(workspaceID, "", role, false)
	return map[string]any{
		"role":       role,
		"owner_slot": owner,
	}
}

// DefaultColumns returns the column updates for flagging a membership as the user's default.
func DefaultColumns(userID string, isDefault bool) map[string]any {
	_, def := memberSlots("", userID, "", isDefault)
	return map[string]any{
		"is_default":   isDefault,
		"default_slot": def,
	}
}

func memberSlots(workspaceID, userID string, role WorkspaceRole, isDefault bool) (owner, def *string) {
	if role == RoleOwner && workspaceID != "" {
		value := workspaceID
		owner = &value
	}
	if isDefault && userID != "" {
		value := userID
		def = &value
	}
	return owner, def
}
