package store

import (
	"errors"

	"gorm.io/gorm"

	"experts-service/internal/apperr"
	"experts-service/internal/model"
)

// ExpertByID resolves an expert within a workspace.
func (s *Store) ExpertByID(workspaceID, id string) (*model.Expert, error) {
	var expert model.Expert
	err := s.db.Where("id = ? AND workspace_id = ?", id, workspaceID).First(&expert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("expert not found")
	}
	if err != nil {
		return nil, apperr.Storage("expert lookup failed", err)
	}
	return &expert, nil
}

// ListExperts returns all experts owned by a workspace.
func (s *Store) ListExperts(workspaceID string) ([]model.Expert, error) {
	var experts []model.Expert
	if err := s.db.Where("workspace_id = ?", workspaceID).Order("created_at").Find(&experts).Error; err != nil {
		return nil, apperr.Storage("expert list failed", err)
	}
	return experts, nil
}

// UpsertExpert creates the expert or updates its profile fields if a
// row with the same id already exists.
func (s *Store) UpsertExpert(expert *model.Expert) error {
	var existing model.Expert
	err := s.db.Where("id = ?", expert.ID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if createErr := s.db.Create(expert).Error; createErr != nil {
			return apperr.Storage("expert creation failed", createErr)
		}
		return nil
	}
	if err != nil {
		return apperr.Storage("expert lookup failed", err)
	}

	if existing.WorkspaceID != expert.WorkspaceID {
		return apperr.Authorization("expert belongs to another workspace")
	}

	updates := map[string]interface{}{
		"name":         expert.Name,
		"organization": expert.Organization,
		"position":     expert.Position,
		"email":        expert.Email,
		"phone":        expert.Phone,
		"fee":          expert.Fee,
	}
	if expert.Password != "" {
		updates["password"] = expert.Password
	}
	if err := s.db.Model(&model.Expert{}).Where("id = ?", expert.ID).Updates(updates).Error; err != nil {
		return apperr.Storage("expert update failed", err)
	}
	return nil
}

// SaveExpert persists status and snapshot changes made by the
// scheduling state machine.
func (s *Store) SaveExpert(expert *model.Expert) error {
	updates := map[string]interface{}{
		"status":          expert.Status,
		"selected_slot":   expert.SelectedSlot,
		"confirmed_slots": expert.ConfirmedSlots,
	}
	if err := s.db.Model(&model.Expert{}).Where("id = ?", expert.ID).Updates(updates).Error; err != nil {
		return apperr.Storage("expert update failed", err)
	}
	return nil
}

// UpdateExpertPassword rewrites the expert's stored credential, used
// to migrate legacy plaintext rows on successful login.
func (s *Store) UpdateExpertPassword(expertID, hashed string) error {
	if err := s.db.Model(&model.Expert{}).Where("id = ?", expertID).Update("password", hashed).Error; err != nil {
		return apperr.Storage("expert password update failed", err)
	}
	return nil
}

// DeleteExpertCascade removes an expert together with its slots,
// voter responses and voter passwords in one atomic batch.
func (s *Store) DeleteExpertCascade(workspaceID, expertID string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&model.VoterResponse{}, "expert_id = ?", expertID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.VoterPassword{}, "expert_id = ?", expertID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.PollingSlot{}, "expert_id = ?", expertID).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Expert{}, "id = ? AND workspace_id = ?", expertID, workspaceID).Error
	})
	if err != nil {
		return apperr.Storage("expert cascade delete failed", err)
	}
	return nil
}

// SlotsForExpert lists the expert's candidate slots.
func (s *Store) SlotsForExpert(expertID string) ([]model.PollingSlot, error) {
	var slots []model.PollingSlot
	if err := s.db.Where("expert_id = ?", expertID).Order("date, time").Find(&slots).Error; err != nil {
		return nil, apperr.Storage("slot list failed", err)
	}
	return slots, nil
}

// CountSlots counts the expert's candidate slots.
func (s *Store) CountSlots(expertID string) (int64, error) {
	var count int64
	if err := s.db.Model(&model.PollingSlot{}).Where("expert_id = ?", expertID).Count(&count).Error; err != nil {
		return 0, apperr.Storage("slot count failed", err)
	}
	return count, nil
}

// SlotsByIDs returns the expert's slots matching the given id set.
func (s *Store) SlotsByIDs(expertID string, ids []string) ([]model.PollingSlot, error) {
	var slots []model.PollingSlot
	if len(ids) == 0 {
		return slots, nil
	}
	if err := s.db.Where("expert_id = ? AND id IN ?", expertID, ids).Find(&slots).Error; err != nil {
		return nil, apperr.Storage("slot lookup failed", err)
	}
	return slots, nil
}

// AddSlot inserts a candidate slot.
func (s *Store) AddSlot(slot *model.PollingSlot) error {
	if err := s.db.Create(slot).Error; err != nil {
		return apperr.Storage("slot creation failed", err)
	}
	return nil
}

// DeleteSlotCascade removes a slot and any votes referencing it.
func (s *Store) DeleteSlotCascade(expertID, slotID string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&model.VoterResponse{}, "slot_id = ?", slotID).Error; err != nil {
			return err
		}
		return tx.Delete(&model.PollingSlot{}, "id = ? AND expert_id = ?", slotID, expertID).Error
	})
	if err != nil {
		return apperr.Storage("slot delete failed", err)
	}
	return nil
}

// ResponsesForExpert returns all voter responses for the expert.
func (s *Store) ResponsesForExpert(expertID string) ([]model.VoterResponse, error) {
	var responses []model.VoterResponse
	if err := s.db.Where("expert_id = ?", expertID).Find(&responses).Error; err != nil {
		return nil, apperr.Storage("response list failed", err)
	}
	return responses, nil
}

// ReplaceVotes atomically replaces a voter's full response set for an
// expert: existing rows are deleted and the new ones inserted in one
// transaction, so no reader ever sees a partial set.
func (s *Store) ReplaceVotes(expertID, voterName string, slotIDs []string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&model.VoterResponse{}, "expert_id = ? AND voter_name = ?", expertID, voterName).Error; err != nil {
			return err
		}
		for _, slotID := range slotIDs {
			response := model.VoterResponse{ExpertID: expertID, VoterName: voterName, SlotID: slotID}
			if err := tx.Create(&response).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperr.Storage("vote replacement failed", err)
	}
	return nil
}

// VoterPassword fetches the stored credential for an (expert, voter)
// pair, or nil when the voter has none yet.
func (s *Store) VoterPassword(expertID, voterName string) (*model.VoterPassword, error) {
	var vp model.VoterPassword
	err := s.db.Where("expert_id = ? AND voter_name = ?", expertID, voterName).First(&vp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage("voter password lookup failed", err)
	}
	return &vp, nil
}

// SetVoterPassword establishes or rewrites a voter's credential.
func (s *Store) SetVoterPassword(vp *model.VoterPassword) error {
	if err := s.db.Save(vp).Error; err != nil {
		return apperr.Storage("voter password save failed", err)
	}
	return nil
}

// VoterNamesForExpert returns the voters that have set a password for
// the expert.
func (s *Store) VoterNamesForExpert(expertID string) ([]string, error) {
	var names []string
	if err := s.db.Model(&model.VoterPassword{}).Where("expert_id = ?", expertID).Pluck("voter_name", &names).Error; err != nil {
		return nil, apperr.Storage("voter list failed", err)
	}
	return names, nil
}
