package store

import (
	"time"

	"experts-service/internal/apperr"
	"experts-service/internal/model"
)

// RequestsCreatedBefore lists workspace applications older than the
// cutoff.
func (s *Store) RequestsCreatedBefore(cutoff time.Time) ([]model.WorkspaceRequest, error) {
	var requests []model.WorkspaceRequest
	if err := s.db.Where("created_at < ?", cutoff).Find(&requests).Error; err != nil {
		return nil, apperr.Storage("stale request list failed", err)
	}
	return requests, nil
}

// ExpertsCreatedBefore lists experts older than the cutoff.
func (s *Store) ExpertsCreatedBefore(cutoff time.Time) ([]model.Expert, error) {
	var experts []model.Expert
	if err := s.db.Where("created_at < ?", cutoff).Find(&experts).Error; err != nil {
		return nil, apperr.Storage("stale expert list failed", err)
	}
	return experts, nil
}

// WorkspacesCreatedBefore lists workspaces older than the cutoff.
func (s *Store) WorkspacesCreatedBefore(cutoff time.Time) ([]model.Workspace, error) {
	var workspaces []model.Workspace
	if err := s.db.Where("created_at < ?", cutoff).Find(&workspaces).Error; err != nil {
		return nil, apperr.Storage("stale workspace list failed", err)
	}
	return workspaces, nil
}
