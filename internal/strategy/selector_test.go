package strategy

import (
	"testing"

	"github.com/forgeai/orchestrator/internal/task"
)

func TestSelectByComplexity(t *testing.T) {
	tests := []struct {
		complexity task.Complexity
		wantName   Name
		wantTier   ModelTier
	}{
		{task.ComplexitySimple, SingleShot, TierSmall},
		{task.ComplexityMedium, Iterative, TierMid},
		{task.ComplexityComplex, MultiAgent, TierLarge},
		{task.ComplexityEpic, MultiAgent, TierLarge},
	}

	for _, tt := range tests {
		t.Run(string(tt.complexity), func(t *testing.T) {
			sel := Select(task.Classification{Complexity: tt.complexity, Source: task.SourceHeuristic}, "")
			if sel.Strategy != tt.wantName {
				t.Errorf("Strategy = %q, want %q", sel.Strategy, tt.wantName)
			}
			if sel.Tier != tt.wantTier {
				t.Errorf("Tier = %q, want %q", sel.Tier, tt.wantTier)
			}
			if sel.Source != task.SourceHeuristic {
				t.Errorf("Source = %q, want heuristic (unchanged by a no-op override)", sel.Source)
			}
		})
	}
}

func TestSelectManualOverride(t *testing.T) {
	sel := Select(task.Classification{Complexity: task.ComplexitySimple, Source: task.SourceML}, "MultiAgent")
	if sel.Strategy != MultiAgent {
		t.Errorf("Strategy = %q, want MultiAgent", sel.Strategy)
	}
	if sel.Source != task.SourceOverride {
		t.Errorf("Source = %q, want override", sel.Source)
	}
}

func TestSelectUnknownOverrideIgnored(t *testing.T) {
	sel := Select(task.Classification{Complexity: task.ComplexitySimple, Source: task.SourceML}, "NotAStrategy")
	if sel.Strategy != SingleShot {
		t.Errorf("Strategy = %q, want SingleShot (unknown override falls back to the table)", sel.Strategy)
	}
	if sel.Source != task.SourceML {
		t.Errorf("Source = %q, want ml (unchanged, override was ignored)", sel.Source)
	}
}
