package models

import (
	"testing"
	"time"
)

func TestNormalizeCallStatus(t *testing.T) {
	tests := []struct {
		status string
		reason string
		want   CallStatus
	}{
		{"registered", "", CallStatusQueued},
		{"ongoing", "", CallStatusInProgress},
		{"ended", "user_hangup", CallStatusCompleted},
		{"ended", "agent_hangup", CallStatusCompleted},
		{"ENDED", "", CallStatusCompleted},
		{"ended", "dial_no_answer", CallStatusNoAnswer},
		{"ended", "voicemail_reached", CallStatusNoAnswer},
		{"ended", "dial_failed", CallStatusFailed},
		{"ended", "error_llm_websocket_open", CallStatusFailed},
		{"error", "", CallStatusFailed},
		{"not_connected", "", CallStatusNoAnswer},
		{"", "", CallStatusUnknown},
		{"transferred", "", CallStatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.status+"/"+tt.reason, func(t *testing.T) {
			if got := NormalizeCallStatus(tt.status, tt.reason); got != tt.want {
				t.Errorf("NormalizeCallStatus(%q, %q) = %s, want %s", tt.status, tt.reason, got, tt.want)
			}
		})
	}
}

func TestCall_IsInteractive(t *testing.T) {
	twoTurns := "Agent: Hi, this is Ava.\nUser: I need an appointment.\nAgent: Sure.\nUser: Tuesday works."

	tests := []struct {
		name         string
		call         Call
		minExchanges int
		want         bool
	}{
		{"completed with two turns", Call{Status: CallStatusCompleted, Transcript: twoTurns}, 2, true},
		{"default threshold", Call{Status: CallStatusCompleted, Transcript: twoTurns}, 0, true},
		{"one turn", Call{Status: CallStatusCompleted, Transcript: "Agent: Hi\nUser: bye"}, 2, false},
		{"empty transcript", Call{Status: CallStatusCompleted}, 1, false},
		{"not completed", Call{Status: CallStatusInProgress, Transcript: twoTurns}, 2, false},
		{"higher threshold", Call{Status: CallStatusCompleted, Transcript: twoTurns}, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.call.IsInteractive(tt.minExchanges); got != tt.want {
				t.Errorf("IsInteractive(%d) = %v, want %v", tt.minExchanges, got, tt.want)
			}
		})
	}
}

func TestVendorCall_ApplyTo(t *testing.T) {
	start := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	call := &Call{ID: "call_1", Transcript: "Agent: earlier"}

	VendorCall{
		CallID:         "v_1",
		CallStatus:     "ended",
		StartTimestamp: start.UnixMilli(),
		EndTimestamp:   start.Add(95 * time.Second).UnixMilli(),
	}.ApplyTo(call)

	if call.Status != CallStatusCompleted {
		t.Errorf("expected completed, got %s", call.Status)
	}
	if call.DurationSeconds != 95 {
		t.Errorf("expected duration 95s, got %d", call.DurationSeconds)
	}
	if call.Transcript != "Agent: earlier" {
		t.Error("empty vendor transcript should not clear the stored one")
	}
	if call.StartedAt == nil || !call.StartedAt.Equal(start) {
		t.Errorf("unexpected start time %v", call.StartedAt)
	}
}
