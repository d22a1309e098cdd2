// Package store wraps the shared transactional database handle. All
// multi-statement mutations run as single transactions so a crash or
// concurrent read never observes partial state.
package store

import (
	"errors"

	"gorm.io/gorm"

	"experts-service/internal/apperr"
	"experts-service/internal/model"
)

// Store is the explicit store handle injected into every component.
type Store struct {
	db *gorm.DB
}

// New wraps a database handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for components that manage their
// own queries (rate limiter, audit writer).
func (s *Store) DB() *gorm.DB {
	return s.db
}

// WorkspaceSummary is a workspace row with its expert count.
type WorkspaceSummary struct {
	model.Workspace
	ExpertCount int64 `json:"expert_count"`
}

// WorkspaceBySlug resolves a workspace by its URL slug.
func (s *Store) WorkspaceBySlug(slug string) (*model.Workspace, error) {
	var ws model.Workspace
	err := s.db.Where("slug = ?", slug).First(&ws).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("workspace not found")
	}
	if err != nil {
		return nil, apperr.Storage("workspace lookup failed", err)
	}
	return &ws, nil
}

// WorkspaceByID resolves a workspace by id.
func (s *Store) WorkspaceByID(id string) (*model.Workspace, error) {
	var ws model.Workspace
	err := s.db.Where("id = ?", id).First(&ws).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("workspace not found")
	}
	if err != nil {
		return nil, apperr.Storage("workspace lookup failed", err)
	}
	return &ws, nil
}

// SlugTaken reports whether any workspace already uses the slug.
func (s *Store) SlugTaken(slug string) (bool, error) {
	var count int64
	if err := s.db.Model(&model.Workspace{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, apperr.Storage("slug lookup failed", err)
	}
	return count > 0, nil
}

// ListWorkspaces returns every workspace with its expert count.
func (s *Store) ListWorkspaces() ([]WorkspaceSummary, error) {
	var workspaces []model.Workspace
	if err := s.db.Order("created_at").Find(&workspaces).Error; err != nil {
		return nil, apperr.Storage("workspace list failed", err)
	}

	summaries := make([]WorkspaceSummary, 0, len(workspaces))
	for _, ws := range workspaces {
		var count int64
		if err := s.db.Model(&model.Expert{}).Where("workspace_id = ?", ws.ID).Count(&count).Error; err != nil {
			return nil, apperr.Storage("expert count failed", err)
		}
		summaries = append(summaries, WorkspaceSummary{Workspace: ws, ExpertCount: count})
	}
	return summaries, nil
}

// CreateWorkspace inserts a new workspace row.
func (s *Store) CreateWorkspace(ws *model.Workspace) error {
	if err := s.db.Create(ws).Error; err != nil {
		return apperr.Storage("workspace creation failed", err)
	}
	return nil
}

// SaveWorkspace persists updated workspace fields.
func (s *Store) SaveWorkspace(ws *model.Workspace) error {
	if err := s.db.Save(ws).Error; err != nil {
		return apperr.Storage("workspace update failed", err)
	}
	return nil
}

// DeleteWorkspaceCascade removes a workspace and everything it owns:
// experts, their slots, voter responses and voter passwords. All of
// it is one atomic batch.
func (s *Store) DeleteWorkspaceCascade(id string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var expertIDs []string
		if err := tx.Model(&model.Expert{}).Where("workspace_id = ?", id).Pluck("id", &expertIDs).Error; err != nil {
			return err
		}

		if len(expertIDs) > 0 {
			if err := tx.Delete(&model.VoterResponse{}, "expert_id IN ?", expertIDs).Error; err != nil {
				return err
			}
			if err := tx.Delete(&model.VoterPassword{}, "expert_id IN ?", expertIDs).Error; err != nil {
				return err
			}
			if err := tx.Delete(&model.PollingSlot{}, "expert_id IN ?", expertIDs).Error; err != nil {
				return err
			}
		}

		if err := tx.Delete(&model.Expert{}, "workspace_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Workspace{}, "id = ?", id).Error
	})
	if err != nil {
		return apperr.Storage("workspace cascade delete failed", err)
	}
	return nil
}
