package domain

import "errors"

// Common domain errors
var (
	// Agent errors
	ErrAgentNotFound = errors.New("agent not found")

	// Prompt errors
	ErrPromptNotFound          = errors.New("agent has no compiled prompt")
	ErrPromptVersionNotFound   = errors.New("prompt version not found")
	ErrConcurrentUpdate        = errors.New("agent prompt was changed concurrently")
	ErrKnowledgeItemInvalid    = errors.New("knowledge base item requires a name and content")
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// Call and analysis errors
	ErrCallNotFound      = errors.New("call not found")
	ErrAnalysisNotFound  = errors.New("analysis not found")
	ErrNoCompletedCalls  = errors.New("no completed interactive calls found for analysis")
	ErrNoFixableIssues   = errors.New("no fixable issues selected: all issues are platform-level")
	ErrAnalysisMalformed = errors.New("analysis response could not be parsed")

	// Optimization and A/B test errors
	ErrOptimizationNotFound = errors.New("optimization not found")
	ErrABTestNotFound       = errors.New("a/b test not found")
	ErrABTestAlreadyRunning = errors.New("agent already has a running a/b test")

	// Upstream errors
	ErrCreditsExhausted    = errors.New("LLM provider credit balance exhausted")
	ErrLLMRequestFailed    = errors.New("LLM request failed")
	ErrEmptyRewrite        = errors.New("LLM returned an empty prompt revision")
	ErrUpstreamUnavailable = errors.New("voice vendor API unavailable")

	// Validation errors
	ErrInvalidID    = errors.New("invalid ID format")
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("resource not found")
)

// DomainError wraps a domain error with additional context
type DomainError struct {
	Err     error
	Message string
	Code    string
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func NewDomainError(err error, message string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
	}
}

func NewDomainErrorWithCode(err error, message, code string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}

// IsNotFound reports whether err belongs to the not-found class.
func IsNotFound(err error) bool {
	for _, target := range []error{
		ErrNotFound,
		ErrAgentNotFound,
		ErrPromptNotFound,
		ErrPromptVersionNotFound,
		ErrCallNotFound,
		ErrAnalysisNotFound,
		ErrOptimizationNotFound,
		ErrABTestNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
