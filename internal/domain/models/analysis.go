package models

import (
	"sort"
	"strings"
	"time"
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Weight is the ranking weight of a severity. Unknown severities rank as low.
func (s Severity) Weight() int {
	switch Severity(strings.ToLower(string(s))) {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	}
	return 1
}

// TargetSectionNone marks platform-level issues that no prompt change can fix.
const TargetSectionNone = "none"

// Issue is a problem detected in one or more calls.
type Issue struct {
	Issue         string   `json:"issue"`
	Severity      Severity `json:"severity"`
	TargetSection string   `json:"target_section"`
	FixGuidance   string   `json:"fix_guidance,omitempty"`
	Evidence      string   `json:"evidence,omitempty"`
	Frequency     int      `json:"frequency,omitempty"`
	CallIDs       []string `json:"call_ids,omitempty"`
}

// Fixable reports whether a prompt revision can address the issue.
func (i Issue) Fixable() bool {
	section := strings.ToLower(strings.TrimSpace(i.TargetSection))
	return section != "" && section != TargetSectionNone
}

// Score is the ranking key: severity weight times frequency.
func (i Issue) Score() int {
	freq := i.Frequency
	if freq < 1 {
		freq = 1
	}
	return i.Severity.Weight() * freq
}

// Scores are per-dimension quality scores on a 0-10 scale.
type Scores struct {
	Quality         float64 `json:"quality"`
	Empathy         float64 `json:"empathy"`
	Professionalism float64 `json:"professionalism"`
	Efficiency      float64 `json:"efficiency"`
	GoalAchievement float64 `json:"goal_achievement"`
}

// Clamp bounds every score to [0, 10].
func (s Scores) Clamp() Scores {
	clamp := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		if v > 10 {
			return 10
		}
		return v
	}
	return Scores{
		Quality:         clamp(s.Quality),
		Empathy:         clamp(s.Empathy),
		Professionalism: clamp(s.Professionalism),
		Efficiency:      clamp(s.Efficiency),
		GoalAchievement: clamp(s.GoalAchievement),
	}
}

// AverageScores returns the mean of each dimension.
func AverageScores(all []Scores) Scores {
	if len(all) == 0 {
		return Scores{}
	}
	var sum Scores
	for _, s := range all {
		sum.Quality += s.Quality
		sum.Empathy += s.Empathy
		sum.Professionalism += s.Professionalism
		sum.Efficiency += s.Efficiency
		sum.GoalAchievement += s.GoalAchievement
	}
	n := float64(len(all))
	return Scores{
		Quality:         sum.Quality / n,
		Empathy:         sum.Empathy / n,
		Professionalism: sum.Professionalism / n,
		Efficiency:      sum.Efficiency / n,
		GoalAchievement: sum.GoalAchievement / n,
	}
}

// Pattern is a recurring behavior observed across several calls.
type Pattern struct {
	Pattern        string `json:"pattern"`
	Frequency      int    `json:"frequency"`
	Recommendation string `json:"recommendation,omitempty"`
}

// CallEvaluation is the LLM's assessment of a single call.
type CallEvaluation struct {
	ID             string    `json:"id"`
	AnalysisID     string    `json:"analysis_id"`
	CallID         string    `json:"call_id"`
	AgentID        string    `json:"agent_id"`
	Scores         Scores    `json:"scores"`
	IssuesDetected []Issue   `json:"issues_detected"`
	Summary        string    `json:"summary,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// BatchAnalysis is one analysis run over an agent's recent calls.
// Rows are written once and never updated.
type BatchAnalysis struct {
	ID            string            `json:"id"`
	AgentID       string            `json:"agent_id"`
	CallCount     int               `json:"call_count"`
	DaysSince     int               `json:"days_since"`
	Model         string            `json:"model"`
	AverageScores Scores            `json:"average_scores"`
	Issues        []Issue           `json:"issues"`
	Patterns      []Pattern         `json:"patterns,omitempty"`
	Summary       string            `json:"summary,omitempty"`
	Evaluations   []*CallEvaluation `json:"evaluations,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// RankIssues merges issues that describe the same problem for the same
// section and orders them by severity weight times frequency. Ties keep
// first-appearance order.
func RankIssues(issues []Issue) []Issue {
	type key struct{ issue, section string }
	index := make(map[key]int)
	merged := make([]Issue, 0, len(issues))

	for _, is := range issues {
		if strings.TrimSpace(is.Issue) == "" {
			continue
		}
		k := key{strings.ToLower(strings.TrimSpace(is.Issue)), strings.ToLower(strings.TrimSpace(is.TargetSection))}
		freq := is.Frequency
		if freq < 1 {
			freq = 1
		}

		if pos, ok := index[k]; ok {
			m := &merged[pos]
			m.Frequency += freq
			m.CallIDs = appendUnique(m.CallIDs, is.CallIDs...)
			if is.Severity.Weight() > m.Severity.Weight() {
				m.Severity = is.Severity
			}
			if m.FixGuidance == "" {
				m.FixGuidance = is.FixGuidance
			}
			if m.Evidence == "" {
				m.Evidence = is.Evidence
			}
			continue
		}

		is.Frequency = freq
		is.CallIDs = appendUnique(nil, is.CallIDs...)
		index[k] = len(merged)
		merged = append(merged, is)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score() > merged[j].Score()
	})
	return merged
}

// FixableIssues drops platform-level issues.
func FixableIssues(issues []Issue) []Issue {
	fixable := make([]Issue, 0, len(issues))
	for _, is := range issues {
		if is.Fixable() {
			fixable = append(fixable, is)
		}
	}
	return fixable
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, existing := range dst {
			if existing == v {
				found = true
				break
			}
		}
		if !found && v != "" {
			dst = append(dst, v)
		}
	}
	return dst
}
