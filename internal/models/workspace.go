package models

import "gorm.io/datatypes"

// Column limits for workspace text fields, in characters.
const (
	WorkspaceNameMaxLength        = 128
	WorkspaceDescriptionMaxLength = 512
	WorkspaceLogoURLMaxLength     = 1024
)

// Workspace is a tenant boundary owning campaigns, members and settings.
type Workspace struct {
	BaseModel

	Name        string         `gorm:"size:128;not null" json:"name"`
	Slug        string         `gorm:"size:160;not null;uniqueIndex" json:"slug"`
	Description *string        `gorm:"size:512" json:"description"`
	LogoURL     *string        `gorm:"size:1024" json:"logo_url"`
	Settings    datatypes.JSON `json:"settings"`
	IsPersonal  bool           `gorm:"not null" json:"is_personal"`
}
