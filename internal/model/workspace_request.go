package model

import (
	"time"
)

// RequestStatus is the lifecycle state of a workspace application.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// WorkspaceRequest is a pending application to create a workspace.
// On approval it deterministically produces a Workspace row.
type WorkspaceRequest struct {
	ID           string        `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name         string        `json:"name" gorm:"type:varchar(100);not null"`
	Slug         string        `json:"slug" gorm:"type:varchar(100);index;not null"`
	Password     string        `json:"-" gorm:"type:varchar(255);not null"`
	ContactName  string        `json:"contact_name" gorm:"type:varchar(100);not null"`
	ContactEmail string        `json:"contact_email" gorm:"type:varchar(100);not null"`
	ContactPhone string        `json:"contact_phone,omitempty" gorm:"type:varchar(50)"`
	Organization string        `json:"organization,omitempty" gorm:"type:varchar(100)"`
	SenderName   string        `json:"sender_name,omitempty" gorm:"type:varchar(100)"`
	Message      string        `json:"message,omitempty" gorm:"type:text"`
	Status       RequestStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	CreatedAt    time.Time     `json:"created_at"`
	ProcessedAt  *time.Time    `json:"processed_at,omitempty"`
	ProcessedBy  string        `json:"processed_by,omitempty" gorm:"type:varchar(50)"`
}
