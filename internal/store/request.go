package store

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"experts-service/internal/apperr"
	"experts-service/internal/model"
)

// CreateRequest inserts a workspace application.
func (s *Store) CreateRequest(req *model.WorkspaceRequest) error {
	if err := s.db.Create(req).Error; err != nil {
		return apperr.Storage("workspace request creation failed", err)
	}
	return nil
}

// ListRequests returns all workspace applications, newest first.
func (s *Store) ListRequests() ([]model.WorkspaceRequest, error) {
	var requests []model.WorkspaceRequest
	if err := s.db.Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, apperr.Storage("workspace request list failed", err)
	}
	return requests, nil
}

// RequestByID resolves a workspace application.
func (s *Store) RequestByID(id string) (*model.WorkspaceRequest, error) {
	var req model.WorkspaceRequest
	err := s.db.Where("id = ?", id).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("workspace request not found")
	}
	if err != nil {
		return nil, apperr.Storage("workspace request lookup failed", err)
	}
	return &req, nil
}

// PendingSlugTaken reports whether a pending application already
// claims the slug.
func (s *Store) PendingSlugTaken(slug string) (bool, error) {
	var count int64
	err := s.db.Model(&model.WorkspaceRequest{}).
		Where("slug = ? AND status = ?", slug, model.RequestPending).
		Count(&count).Error
	if err != nil {
		return false, apperr.Storage("request slug lookup failed", err)
	}
	return count > 0, nil
}

// ApproveRequest creates the workspace and marks the application
// approved in one atomic batch.
func (s *Store) ApproveRequest(req *model.WorkspaceRequest, ws *model.Workspace, processedBy string) error {
	now := time.Now()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ws).Error; err != nil {
			return err
		}
		return tx.Model(&model.WorkspaceRequest{}).Where("id = ?", req.ID).Updates(map[string]interface{}{
			"status":       model.RequestApproved,
			"processed_at": now,
			"processed_by": processedBy,
		}).Error
	})
	if err != nil {
		return apperr.Storage("workspace request approval failed", err)
	}
	return nil
}

// RejectRequest marks the application rejected.
func (s *Store) RejectRequest(id, processedBy string) error {
	now := time.Now()
	err := s.db.Model(&model.WorkspaceRequest{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       model.RequestRejected,
		"processed_at": now,
		"processed_by": processedBy,
	}).Error
	if err != nil {
		return apperr.Storage("workspace request rejection failed", err)
	}
	return nil
}

// DeleteRequest removes the application.
func (s *Store) DeleteRequest(id string) error {
	if err := s.db.Delete(&model.WorkspaceRequest{}, "id = ?", id).Error; err != nil {
		return apperr.Storage("workspace request delete failed", err)
	}
	return nil
}
