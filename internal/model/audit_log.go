package model

import (
	"time"
)

// Actor types recorded in the audit log.
const (
	ActorMaster    = "master"
	ActorWorkspace = "workspace"
	ActorSystem    = "system"
	ActorAnonymous = "anonymous"
)

// Audit results.
const (
	AuditSuccess = "success"
	AuditFailure = "failure"
)

// AuditLog is an append-only record of a privileged action. Rows are
// never mutated or deleted by normal operation.
type AuditLog struct {
	ID          string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	ActorType   string    `json:"actor_type" gorm:"type:varchar(20);not null"`
	ActorID     string    `json:"actor_id" gorm:"type:varchar(100);not null"`
	WorkspaceID string    `json:"workspace_id,omitempty" gorm:"type:varchar(36);index"`
	Action      string    `json:"action" gorm:"type:varchar(100);not null;index"`
	TargetType  string    `json:"target_type,omitempty" gorm:"type:varchar(50)"`
	TargetID    string    `json:"target_id,omitempty" gorm:"type:varchar(100)"`
	Result      string    `json:"result" gorm:"type:varchar(20);not null"`
	StatusCode  int       `json:"status_code,omitempty"`
	Reason      string    `json:"reason,omitempty" gorm:"type:varchar(255)"`
	IP          string    `json:"ip,omitempty" gorm:"type:varchar(64)"`
	UserAgent   string    `json:"user_agent,omitempty" gorm:"type:varchar(255)"`
	Origin      string    `json:"origin,omitempty" gorm:"type:varchar(255)"`
	Metadata    string    `json:"metadata,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
}
