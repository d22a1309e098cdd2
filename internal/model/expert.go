package model

import (
	"encoding/json"
	"time"
)

// ExpertStatus is the expert's position in the scheduling lifecycle.
type ExpertStatus string

const (
	StatusNone        ExpertStatus = "none"
	StatusPolling     ExpertStatus = "polling"
	StatusConfirmed   ExpertStatus = "confirmed"
	StatusRegistered  ExpertStatus = "registered"
	StatusUnavailable ExpertStatus = "unavailable"
)

// Expert represents an external person being scheduled for an
// engagement. An expert belongs to exactly one workspace for its
// lifetime and is cascade-deleted with it.
type Expert struct {
	ID           string       `json:"id" gorm:"type:varchar(36);primaryKey"`
	WorkspaceID  string       `json:"workspace_id" gorm:"type:varchar(36);index;not null"`
	Name         string       `json:"name" gorm:"type:varchar(100);not null"`
	Organization string       `json:"organization,omitempty" gorm:"type:varchar(100)"`
	Position     string       `json:"position,omitempty" gorm:"type:varchar(100)"`
	Email        string       `json:"email,omitempty" gorm:"type:varchar(100)"`
	Phone        string       `json:"phone,omitempty" gorm:"type:varchar(50)"`
	Fee          string       `json:"fee,omitempty" gorm:"type:varchar(100)"`
	Status       ExpertStatus `json:"status" gorm:"type:varchar(20);not null;default:'none'"`
	Password     string       `json:"-" gorm:"type:varchar(255)"`

	// SelectedSlot and ConfirmedSlots hold JSON-serialized slot
	// snapshots taken at confirm time. They are immutable by value:
	// editing or deleting the live slot rows does not touch them.
	SelectedSlot   *string `json:"-" gorm:"type:text"`
	ConfirmedSlots *string `json:"-" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SlotSnapshot is the serialized form of a candidate slot captured
// into selected_slot / confirmed_slots.
type SlotSnapshot struct {
	ID   string `json:"id"`
	Date string `json:"date"`
	Time string `json:"time"`
}

// ConfirmedSnapshot parses the confirmed_slots column. A missing or
// malformed column yields an empty snapshot.
func (e *Expert) ConfirmedSnapshot() []SlotSnapshot {
	if e.ConfirmedSlots == nil {
		return nil
	}
	var slots []SlotSnapshot
	if err := json.Unmarshal([]byte(*e.ConfirmedSlots), &slots); err != nil {
		return nil
	}
	return slots
}

// SelectedSnapshot parses the selected_slot column.
func (e *Expert) SelectedSnapshot() *SlotSnapshot {
	if e.SelectedSlot == nil {
		return nil
	}
	var slot SlotSnapshot
	if err := json.Unmarshal([]byte(*e.SelectedSlot), &slot); err != nil {
		return nil
	}
	return &slot
}

// SetConfirmedSnapshot serializes the snapshot into confirmed_slots.
func (e *Expert) SetConfirmedSnapshot(slots []SlotSnapshot) error {
	raw, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	s := string(raw)
	e.ConfirmedSlots = &s
	return nil
}

// SetSelectedSnapshot serializes the snapshot into selected_slot.
func (e *Expert) SetSelectedSnapshot(slot SlotSnapshot) error {
	raw, err := json.Marshal(slot)
	if err != nil {
		return err
	}
	s := string(raw)
	e.SelectedSlot = &s
	return nil
}

// PollingSlot is a proposed date/time range open to member voting.
// The vote tally is derived from VoterResponse rows, never stored.
type PollingSlot struct {
	ID        string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	ExpertID  string    `json:"expert_id" gorm:"type:varchar(36);index;not null"`
	Date      string    `json:"date" gorm:"type:varchar(20);not null"`
	Time      string    `json:"time" gorm:"type:varchar(50);not null"`
	CreatedAt time.Time `json:"created_at"`
}

// VoterResponse records one voter's vote for one slot. A voter's full
// response set for an expert is replaced atomically on each
// submission.
type VoterResponse struct {
	ExpertID  string `json:"expert_id" gorm:"type:varchar(36);primaryKey"`
	VoterName string `json:"voter_name" gorm:"type:varchar(100);primaryKey"`
	SlotID    string `json:"slot_id" gorm:"type:varchar(36);primaryKey;index"`
}

// VoterPassword stores a voter's per-expert credential. The first
// submission for an (expert, voter) pair establishes the password.
type VoterPassword struct {
	ExpertID  string `json:"expert_id" gorm:"type:varchar(36);primaryKey"`
	VoterName string `json:"voter_name" gorm:"type:varchar(100);primaryKey"`
	Password  string `json:"-" gorm:"type:varchar(255);not null"`
}
