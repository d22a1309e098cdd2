// Package scheduling governs the expert lifecycle:
//
//	none -> polling -> confirmed -> registered
//	                   confirmed -> unavailable
//	{confirmed, registered, unavailable} -> polling (reset)
//
// All transitions go through this package; no handler writes a
// confirmed or registered status directly.
package scheduling

import (
	"fmt"

	"experts-service/internal/apperr"
	"experts-service/internal/model"
)

// StartPolling moves a freshly registered expert into polling.
// At least one candidate slot must already exist.
func StartPolling(e *model.Expert, slotCount int) error {
	if e.Status != model.StatusNone {
		return apperr.InvalidTransition(fmt.Sprintf("cannot start polling from status %q", e.Status))
	}
	if slotCount < 1 {
		return apperr.InvalidTransition("no candidate slots")
	}
	e.Status = model.StatusPolling
	return nil
}

// Confirm shortlists slots for the expert. The selected slots are
// snapshotted by value (id, date, time) so later edits or deletions
// of the live rows cannot change what was confirmed.
func Confirm(e *model.Expert, owned []model.PollingSlot, slotIDs []string) error {
	if e.Status != model.StatusPolling {
		return apperr.InvalidTransition(fmt.Sprintf("cannot confirm slots from status %q", e.Status))
	}
	if len(slotIDs) == 0 {
		return apperr.Validation("no slots selected")
	}

	byID := make(map[string]model.PollingSlot, len(owned))
	for _, slot := range owned {
		byID[slot.ID] = slot
	}

	snapshot := make([]model.SlotSnapshot, 0, len(slotIDs))
	for _, id := range slotIDs {
		slot, ok := byID[id]
		if !ok {
			return apperr.Validation("selected slot does not belong to this expert")
		}
		snapshot = append(snapshot, model.SlotSnapshot{ID: slot.ID, Date: slot.Date, Time: slot.Time})
	}

	if err := e.SetConfirmedSnapshot(snapshot); err != nil {
		return apperr.Storage("failed to serialize confirmed slots", err)
	}
	e.Status = model.StatusConfirmed
	return nil
}

// SelectSlot registers the expert into one of the confirmed slots.
// The chosen id must be part of the confirm-time snapshot.
func SelectSlot(e *model.Expert, slotID string) error {
	if e.Status != model.StatusConfirmed {
		return apperr.InvalidTransition(fmt.Sprintf("cannot select a slot from status %q", e.Status))
	}

	for _, slot := range e.ConfirmedSnapshot() {
		if slot.ID == slotID {
			if err := e.SetSelectedSnapshot(slot); err != nil {
				return apperr.Storage("failed to serialize selected slot", err)
			}
			e.Status = model.StatusRegistered
			return nil
		}
	}
	return apperr.Validation("selected slot is not among the confirmed slots")
}

// Decline marks the expert unavailable for all confirmed slots. Slot
// fields are left untouched so a reset can reopen polling.
func Decline(e *model.Expert) error {
	if e.Status != model.StatusConfirmed {
		return apperr.InvalidTransition(fmt.Sprintf("cannot decline from status %q", e.Status))
	}
	e.Status = model.StatusUnavailable
	return nil
}

// Reset reopens polling. The confirmation snapshot and selection are
// cleared; existing slots and voter responses are kept.
func Reset(e *model.Expert) error {
	switch e.Status {
	case model.StatusConfirmed, model.StatusRegistered, model.StatusUnavailable:
		e.Status = model.StatusPolling
		e.ConfirmedSlots = nil
		e.SelectedSlot = nil
		return nil
	default:
		return apperr.InvalidTransition(fmt.Sprintf("cannot reset from status %q", e.Status))
	}
}

// CanMutateSlots reports whether candidate slots may still be added
// or deleted. The candidate set freezes once slots are confirmed.
func CanMutateSlots(status model.ExpertStatus) bool {
	switch status {
	case model.StatusConfirmed, model.StatusRegistered, model.StatusUnavailable:
		return false
	default:
		return true
	}
}

// VotingClosed reports whether member voting has ended. Voting stays
// open while the expert is unavailable: that status means the expert
// declined the shortlist and the workspace has not yet decided, so
// member input keeps flowing until a reset or a new confirmation.
func VotingClosed(status model.ExpertStatus) bool {
	return status == model.StatusConfirmed || status == model.StatusRegistered
}
