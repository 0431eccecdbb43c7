package models

import (
	"fmt"
	"time"

	"github.com/voicedesk/voicedesk/internal/domain"
)

type OptimizationStatus string

const (
	OptimizationStatusPending   OptimizationStatus = "pending"
	OptimizationStatusABTesting OptimizationStatus = "ab_testing"
	OptimizationStatusRejected  OptimizationStatus = "rejected"
	OptimizationStatusPromoted  OptimizationStatus = "promoted"
	OptimizationStatusReverted  OptimizationStatus = "reverted"
)

var optimizationTransitions = map[OptimizationStatus][]OptimizationStatus{
	OptimizationStatusPending:   {OptimizationStatusABTesting, OptimizationStatusRejected},
	OptimizationStatusABTesting: {OptimizationStatusPromoted, OptimizationStatusReverted},
}

// Optimization is a proposed prompt revision awaiting review.
type Optimization struct {
	ID                string             `json:"id"`
	AgentID           string             `json:"agent_id"`
	AnalysisID        string             `json:"analysis_id,omitempty"`
	BaseVersionID     string             `json:"base_version_id"`
	ProposedVersionID string             `json:"proposed_version_id"`
	IssuesAddressed   []Issue            `json:"issues_addressed"`
	ChangeSummary     string             `json:"change_summary,omitempty"`
	Status            OptimizationStatus `json:"status"`
	Feedback          string             `json:"feedback,omitempty"`
	ControlVersionID  string             `json:"control_version_id,omitempty"`
	ABTestID          string             `json:"ab_test_id,omitempty"`
	ABTestStartedAt   *time.Time         `json:"ab_test_started_at,omitempty"`
	ReviewedAt        *time.Time         `json:"reviewed_at,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

func NewOptimization(id, agentID, analysisID, baseVersionID, proposedVersionID string, issues []Issue, summary string) *Optimization {
	now := time.Now()
	return &Optimization{
		ID:                id,
		AgentID:           agentID,
		AnalysisID:        analysisID,
		BaseVersionID:     baseVersionID,
		ProposedVersionID: proposedVersionID,
		IssuesAddressed:   issues,
		ChangeSummary:     summary,
		Status:            OptimizationStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func (o *Optimization) transition(to OptimizationStatus) error {
	for _, allowed := range optimizationTransitions[o.Status] {
		if allowed == to {
			o.Status = to
			o.UpdatedAt = time.Now()
			return nil
		}
	}
	return &InvalidTransitionError{Entity: "optimization", From: string(o.Status), To: string(to)}
}

// StartABTest records acceptance: the optimization moves to ab_testing with
// a snapshot of the version it is tested against.
func (o *Optimization) StartABTest(testID, controlVersionID string) error {
	if err := o.transition(OptimizationStatusABTesting); err != nil {
		return err
	}
	now := o.UpdatedAt
	o.ABTestID = testID
	o.ControlVersionID = controlVersionID
	o.ABTestStartedAt = &now
	o.ReviewedAt = &now
	return nil
}

// Reject records the reviewer's feedback. Nothing else changes.
func (o *Optimization) Reject(feedback string) error {
	if err := o.transition(OptimizationStatusRejected); err != nil {
		return err
	}
	now := o.UpdatedAt
	o.Feedback = feedback
	o.ReviewedAt = &now
	return nil
}

// Promote marks the proposed version as the A/B test winner.
func (o *Optimization) Promote() error {
	return o.transition(OptimizationStatusPromoted)
}

// Revert marks the control version as the A/B test winner.
func (o *Optimization) Revert() error {
	return o.transition(OptimizationStatusReverted)
}

// InvalidTransitionError is returned for a status change the state machine forbids.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move %s from '%s' to '%s'", e.Entity, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return domain.ErrInvalidStatusTransition
}
