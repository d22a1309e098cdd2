package model

import (
	"time"
)

// DefaultWorkspaceID identifies the protected default workspace.
// Retention never removes it, regardless of age.
const DefaultWorkspaceID = "default"

// Workspace represents an isolated organizational unit. Each workspace
// has its own password, URL slug and set of experts.
type Workspace struct {
	ID           string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name         string    `json:"name" gorm:"type:varchar(100);not null"`
	Slug         string    `json:"slug" gorm:"type:varchar(100);uniqueIndex;not null"`
	Password     string    `json:"-" gorm:"type:varchar(255);not null"`
	ContactEmail string    `json:"contact_email,omitempty" gorm:"type:varchar(100)"`
	ContactPhone string    `json:"contact_phone,omitempty" gorm:"type:varchar(50)"`
	Organization string    `json:"organization,omitempty" gorm:"type:varchar(100)"`
	SenderName   string    `json:"sender_name,omitempty" gorm:"type:varchar(100)"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Protected reports whether the workspace is exempt from retention.
func (w *Workspace) Protected() bool {
	return w.ID == DefaultWorkspaceID
}
