package dto

import (
	"github.com/voicedesk/voicedesk/internal/domain/models"
)

type OptimizationResponse struct {
	Success      bool                 `json:"success"`
	Optimization *models.Optimization `json:"optimization"`
	ABTest       *models.ABTest       `json:"ab_test,omitempty"`
}

type OptimizationListResponse struct {
	Success       bool                   `json:"success"`
	Optimizations []*models.Optimization `json:"optimizations"`
}

type RejectOptimizationRequest struct {
	Feedback string `json:"feedback,omitempty"`
}

// ABTestResponse reports calls by planned arm. The vendor serves the
// agent's current version to every call, so Attribution does not measure
// the test version's behavior; AttributionOnly says so to clients.
type ABTestResponse struct {
	Success         bool                 `json:"success"`
	ABTest          *models.ABTest       `json:"ab_test"`
	Attribution     []*models.ABArmStats `json:"attribution,omitempty"`
	AttributionOnly bool                 `json:"attribution_only"`
	Optimization    *models.Optimization `json:"optimization,omitempty"`
}

type CompleteABTestRequest struct {
	Winner models.ABArm `json:"winner"`
}
