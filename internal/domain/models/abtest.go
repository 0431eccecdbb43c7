package models

import (
	"hash/fnv"
	"time"
)

type ABTestStatus string

const (
	ABTestStatusRunning   ABTestStatus = "running"
	ABTestStatusCompleted ABTestStatus = "completed"
	ABTestStatusRejected  ABTestStatus = "rejected"
)

// ABArm names a side of a test. Calls carry the arm they were planned
// into; the vendor serves the agent's current version either way.
type ABArm string

const (
	ABArmControl ABArm = "control"
	ABArmTest    ABArm = "test"
)

func (a ABArm) IsValid() bool {
	return a == ABArmControl || a == ABArmTest
}

const (
	DefaultControlPercent = 75
	DefaultTestPercent    = 25
	DefaultABTestDuration = 7 * 24 * time.Hour
)

// ABTest is a traffic split between an agent's current and proposed prompt versions.
type ABTest struct {
	ID               string       `json:"id"`
	AgentID          string       `json:"agent_id"`
	OptimizationID   string       `json:"optimization_id"`
	ControlVersionID string       `json:"control_version_id"`
	TestVersionID    string       `json:"test_version_id"`
	ControlPercent   int          `json:"control_percent"`
	TestPercent      int          `json:"test_percent"`
	Status           ABTestStatus `json:"status"`
	Winner           ABArm        `json:"winner,omitempty"`
	StartedAt        time.Time    `json:"started_at"`
	ScheduledEndAt   time.Time    `json:"scheduled_end_at"`
	EndedAt          *time.Time   `json:"ended_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func NewABTest(id, agentID, optimizationID, controlVersionID, testVersionID string, controlPercent, testPercent int, duration time.Duration) *ABTest {
	now := time.Now()
	return &ABTest{
		ID:               id,
		AgentID:          agentID,
		OptimizationID:   optimizationID,
		ControlVersionID: controlVersionID,
		TestVersionID:    testVersionID,
		ControlPercent:   controlPercent,
		TestPercent:      testPercent,
		Status:           ABTestStatusRunning,
		StartedAt:        now,
		ScheduledEndAt:   now.Add(duration),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (t *ABTest) IsRunning() bool {
	return t.Status == ABTestStatusRunning
}

// IsExpired reports whether a running test is past its scheduled end.
func (t *ABTest) IsExpired(now time.Time) bool {
	return t.IsRunning() && !now.Before(t.ScheduledEndAt)
}

// Assign deterministically places a call in an arm so retries of the same
// call always see the same prompt version.
func (t *ABTest) Assign(callID string) ABArm {
	h := fnv.New32a()
	h.Write([]byte(t.ID + ":" + callID))
	total := t.ControlPercent + t.TestPercent
	if total <= 0 {
		return ABArmControl
	}
	if int(h.Sum32()%uint32(total)) < t.ControlPercent {
		return ABArmControl
	}
	return ABArmTest
}

// VersionFor returns the prompt version pinned to the given arm.
func (t *ABTest) VersionFor(arm ABArm) string {
	if arm == ABArmTest {
		return t.TestVersionID
	}
	return t.ControlVersionID
}

// Complete closes the test. A test-arm win completes it; a control win rejects it.
func (t *ABTest) Complete(winner ABArm) error {
	if !t.IsRunning() || !winner.IsValid() {
		return &InvalidTransitionError{Entity: "a/b test", From: string(t.Status), To: "closed with winner " + string(winner)}
	}
	now := time.Now()
	t.Winner = winner
	t.EndedAt = &now
	t.UpdatedAt = now
	if winner == ABArmTest {
		t.Status = ABTestStatusCompleted
	} else {
		t.Status = ABTestStatusRejected
	}
	return nil
}

// ABArmStats summarizes the calls planned into one arm of a test, grouped
// by the version that actually served them.
type ABArmStats struct {
	PlannedArm      ABArm    `json:"planned_arm"`
	ServedVersionID string   `json:"served_version_id"`
	CallCount       int      `json:"call_count"`
	EvaluatedCalls  int      `json:"evaluated_calls"`
	AverageQuality  *float64 `json:"average_quality,omitempty"`
}
