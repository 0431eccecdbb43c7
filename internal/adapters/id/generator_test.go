package id

import (
	"strings"
	"testing"

	"github.com/voicedesk/voicedesk/internal/ports"
)

var _ ports.IDGenerator = (*Generator)(nil)

func TestGenerator_Prefixes(t *testing.T) {
	g := New()

	tests := []struct {
		name   string
		gen    func() string
		prefix string
	}{
		{"agent", g.GenerateAgentID, "agt_"},
		{"prompt version", g.GeneratePromptVersionID, "pv_"},
		{"call", g.GenerateCallID, "call_"},
		{"analysis", g.GenerateAnalysisID, "ana_"},
		{"evaluation", g.GenerateEvaluationID, "eval_"},
		{"optimization", g.GenerateOptimizationID, "opt_"},
		{"ab test", g.GenerateABTestID, "abt_"},
		{"vendor sync", g.GenerateVendorSyncID, "vs_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := tt.gen()
			if !strings.HasPrefix(id, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, id)
			}
			if len(id) != len(tt.prefix)+21 {
				t.Errorf("expected 21 random characters, got %q", id)
			}
		})
	}
}

func TestGenerator_Unique(t *testing.T) {
	g := New()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := g.GeneratePromptVersionID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
