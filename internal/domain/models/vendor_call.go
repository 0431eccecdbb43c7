package models

import (
	"time"
)

// VendorCall is a call record as reported by the voice vendor.
// Timestamps are Unix milliseconds.
type VendorCall struct {
	CallID              string `json:"call_id"`
	AgentID             string `json:"agent_id"`
	CallStatus          string `json:"call_status"`
	Direction           string `json:"direction,omitempty"`
	FromNumber          string `json:"from_number,omitempty"`
	ToNumber            string `json:"to_number,omitempty"`
	StartTimestamp      int64  `json:"start_timestamp,omitempty"`
	EndTimestamp        int64  `json:"end_timestamp,omitempty"`
	DurationMs          int64  `json:"duration_ms,omitempty"`
	Transcript          string `json:"transcript,omitempty"`
	RecordingURL        string `json:"recording_url,omitempty"`
	DisconnectionReason string `json:"disconnection_reason,omitempty"`
}

// ApplyTo copies the vendor's view of the call onto c. Empty vendor fields
// never clear values recorded by an earlier event.
func (v VendorCall) ApplyTo(c *Call) {
	c.VendorCallID = v.CallID
	c.Status = NormalizeCallStatus(v.CallStatus, v.DisconnectionReason)

	setString := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	setString(&c.Direction, v.Direction)
	setString(&c.FromNumber, v.FromNumber)
	setString(&c.ToNumber, v.ToNumber)
	setString(&c.Transcript, v.Transcript)
	setString(&c.RecordingURL, v.RecordingURL)
	setString(&c.DisconnectionReason, v.DisconnectionReason)

	if v.StartTimestamp > 0 {
		t := time.UnixMilli(v.StartTimestamp).UTC()
		c.StartedAt = &t
	}
	if v.EndTimestamp > 0 {
		t := time.UnixMilli(v.EndTimestamp).UTC()
		c.EndedAt = &t
	}
	switch {
	case v.DurationMs > 0:
		c.DurationSeconds = int(v.DurationMs / 1000)
	case c.StartedAt != nil && c.EndedAt != nil:
		c.DurationSeconds = int(c.EndedAt.Sub(*c.StartedAt).Seconds())
	}
	c.UpdatedAt = time.Now()
}

// Webhook event types sent by the voice vendor.
const (
	WebhookEventCallStarted  = "call_started"
	WebhookEventCallEnded    = "call_ended"
	WebhookEventCallAnalyzed = "call_analyzed"
)

// WebhookEvent is the body of a vendor call webhook.
type WebhookEvent struct {
	Event string     `json:"event"`
	Call  VendorCall `json:"call"`
}

func (e WebhookEvent) IsKnown() bool {
	switch e.Event {
	case WebhookEventCallStarted, WebhookEventCallEnded, WebhookEventCallAnalyzed:
		return true
	}
	return false
}
