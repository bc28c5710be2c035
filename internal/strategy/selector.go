package strategy

import "github.com/forgeai/orchestrator/internal/task"

// ModelTier is the per-complexity model tier hint from spec §4.8's table.
type ModelTier string

const (
	TierSmall  ModelTier = "small"
	TierMid    ModelTier = "mid"
	TierLarge  ModelTier = "large"
)

var complexityTable = map[task.Complexity]struct {
	Strategy Name
	Tier     ModelTier
}{
	task.ComplexitySimple:  {SingleShot, TierSmall},
	task.ComplexityMedium:  {Iterative, TierMid},
	task.ComplexityComplex: {MultiAgent, TierLarge},
	task.ComplexityEpic:    {MultiAgent, TierLarge},
}

// knownStrategies is the set a manual override must name to take effect (spec §4.8
// rule 1: "if manual-override is set and names a known strategy").
var knownStrategies = map[string]Name{
	string(SingleShot): SingleShot,
	string(Iterative):  Iterative,
	string(MultiAgent):  MultiAgent,
}

// IsKnownStrategy reports whether name is a strategy an override can legally name.
// Used by Intake to validate submitted override-strategy values (spec §4.12).
func IsKnownStrategy(name string) bool {
	_, ok := knownStrategies[name]
	return ok
}

// Selection is the Strategy Selector's output: the chosen strategy, the model tier
// hint, and the (possibly overridden) classification source to persist.
type Selection struct {
	Strategy Name
	Tier     ModelTier
	Source   task.ClassificationSource
}

// Select is the pure function select(task, classification, manual-override?) ->
// strategy-name of spec §4.8. It performs no I/O and completes in well under the
// spec's 100ms budget — the classifier call dominates that budget, not this.
func Select(classification task.Classification, manualOverride string) Selection {
	if manualOverride != "" {
		if name, ok := knownStrategies[manualOverride]; ok {
			tier := complexityTable[classification.Complexity].Tier
			if tier == "" {
				tier = TierMid
			}
			return Selection{Strategy: name, Tier: tier, Source: task.SourceOverride}
		}
	}

	entry, ok := complexityTable[classification.Complexity]
	if !ok {
		entry = complexityTable[task.ComplexityMedium]
	}
	return Selection{Strategy: entry.Strategy, Tier: entry.Tier, Source: classification.Source}
}

// New builds the concrete Strategy for a selected name.
func New(name Name, deps Deps) Strategy {
	switch name {
	case SingleShot:
		return &SingleShotStrategy{Deps: deps}
	case Iterative:
		return &IterativeStrategy{Deps: deps}
	case MultiAgent:
		return &MultiAgentStrategy{Deps: deps}
	default:
		return &SingleShotStrategy{Deps: deps}
	}
}
