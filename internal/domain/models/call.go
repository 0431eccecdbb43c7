package models

import (
	"strings"
	"time"
)

type CallStatus string

const (
	CallStatusQueued     CallStatus = "queued"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
	CallStatusNoAnswer   CallStatus = "no_answer"
	CallStatusUnknown    CallStatus = "unknown"
)

// DefaultMinExchanges is the number of caller turns that makes a call interactive.
const DefaultMinExchanges = 2

// Call is a phone call handled by an agent.
type Call struct {
	ID                  string     `json:"id"`
	AgentID             string     `json:"agent_id"`
	VendorCallID        string     `json:"vendor_call_id"`
	Status              CallStatus `json:"status"`
	Direction           string     `json:"direction,omitempty"`
	FromNumber          string     `json:"from_number,omitempty"`
	ToNumber            string     `json:"to_number,omitempty"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	EndedAt             *time.Time `json:"ended_at,omitempty"`
	DurationSeconds     int        `json:"duration_seconds"`
	Transcript          string     `json:"transcript,omitempty"`
	RecordingURL        string     `json:"recording_url,omitempty"`
	DisconnectionReason string     `json:"disconnection_reason,omitempty"`
	PromptVersionID     string     `json:"prompt_version_id,omitempty"`
	ABTestID            string     `json:"ab_test_id,omitempty"`
	PlannedArm          ABArm      `json:"planned_arm,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// unansweredReasons are vendor disconnection reasons for calls that never connected.
var unansweredReasons = map[string]CallStatus{
	"dial_no_answer":      CallStatusNoAnswer,
	"voicemail_reached":   CallStatusNoAnswer,
	"dial_busy":           CallStatusNoAnswer,
	"dial_failed":         CallStatusFailed,
	"invalid_destination": CallStatusFailed,
	"error_unknown":       CallStatusFailed,
}

// NormalizeCallStatus maps a vendor call status and disconnection reason onto CallStatus.
func NormalizeCallStatus(vendorStatus, disconnectionReason string) CallStatus {
	switch strings.ToLower(strings.TrimSpace(vendorStatus)) {
	case "registered", "queued":
		return CallStatusQueued
	case "ongoing", "in_progress", "in-progress":
		return CallStatusInProgress
	case "ended", "completed":
		reason := strings.ToLower(strings.TrimSpace(disconnectionReason))
		if status, ok := unansweredReasons[reason]; ok {
			return status
		}
		if strings.HasPrefix(reason, "error") {
			return CallStatusFailed
		}
		return CallStatusCompleted
	case "error", "failed":
		return CallStatusFailed
	case "not_connected", "no_answer", "no-answer":
		return CallStatusNoAnswer
	}
	return CallStatusUnknown
}

// UserTurns counts transcript lines spoken by the caller.
func UserTurns(transcript string) int {
	n := 0
	for _, line := range strings.Split(transcript, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "User:") {
			n++
		}
	}
	return n
}

// IsInteractive reports whether the call is completed, has a transcript and
// at least minExchanges caller turns.
func (c *Call) IsInteractive(minExchanges int) bool {
	if c.Status != CallStatusCompleted || strings.TrimSpace(c.Transcript) == "" {
		return false
	}
	if minExchanges < 1 {
		minExchanges = DefaultMinExchanges
	}
	return UserTurns(c.Transcript) >= minExchanges
}
