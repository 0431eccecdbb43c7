package dto

import (
	"github.com/voicedesk/voicedesk/internal/domain/models"
)

type CallListResponse struct {
	Success bool           `json:"success"`
	Calls   []*models.Call `json:"calls"`
}

type SyncCallsResponse struct {
	Success bool `json:"success"`
	Synced  int  `json:"synced"`
}

// WebhookResponse acknowledges a vendor webhook. Ignored is set for event
// types that are not recorded.
type WebhookResponse struct {
	Success bool   `json:"success"`
	Ignored bool   `json:"ignored,omitempty"`
	CallID  string `json:"call_id,omitempty"`
}
