package models

import (
	"time"
)

type VendorSyncStatus string

const (
	VendorSyncStatusPending    VendorSyncStatus = "pending"
	VendorSyncStatusDelivered  VendorSyncStatus = "delivered"
	VendorSyncStatusFailed     VendorSyncStatus = "failed"
	VendorSyncStatusSuperseded VendorSyncStatus = "superseded"
)

// VendorSync is an outbox row: the voice vendor must be told to load a prompt version.
type VendorSync struct {
	ID              string           `json:"id"`
	AgentID         string           `json:"agent_id"`
	PromptVersionID string           `json:"prompt_version_id"`
	Status          VendorSyncStatus `json:"status"`
	Attempts        int              `json:"attempts"`
	LastError       string           `json:"last_error,omitempty"`
	NextAttemptAt   time.Time        `json:"next_attempt_at"`
	CreatedAt       time.Time        `json:"created_at"`
	DeliveredAt     *time.Time       `json:"delivered_at,omitempty"`
}

func NewVendorSync(id, agentID, promptVersionID string) *VendorSync {
	now := time.Now()
	return &VendorSync{
		ID:              id,
		AgentID:         agentID,
		PromptVersionID: promptVersionID,
		Status:          VendorSyncStatusPending,
		NextAttemptAt:   now,
		CreatedAt:       now,
	}
}

func (s *VendorSync) MarkDelivered() {
	now := time.Now()
	s.Attempts++
	s.Status = VendorSyncStatusDelivered
	s.LastError = ""
	s.DeliveredAt = &now
}

// MarkAttemptFailed records a failed delivery. After maxAttempts the row is
// failed for good; otherwise it is rescheduled after delay.
func (s *VendorSync) MarkAttemptFailed(err error, maxAttempts int, delay time.Duration) {
	s.Attempts++
	s.LastError = err.Error()
	if s.Attempts >= maxAttempts {
		s.Status = VendorSyncStatusFailed
		return
	}
	s.NextAttemptAt = time.Now().Add(delay)
}

func (s *VendorSync) IsPending() bool {
	return s.Status == VendorSyncStatusPending
}

// MarkSuperseded retires the row because a newer version became current.
func (s *VendorSync) MarkSuperseded() {
	s.Status = VendorSyncStatusSuperseded
}
