package executor

import (
	"time"

	"github.com/forgeai/orchestrator/internal/task"
)

// Deadlines holds the per-complexity task wall-clock budgets (spec §4.9's deadline
// model), configurable so operators can tune them without a code change.
type Deadlines struct {
	Simple  time.Duration
	Medium  time.Duration
	Complex time.Duration
}

// DefaultDeadlines matches spec §4.9/§6: 90s Simple, 180s Medium, 600s Complex/Epic.
func DefaultDeadlines() Deadlines {
	return Deadlines{
		Simple:  90 * time.Second,
		Medium:  180 * time.Second,
		Complex: 600 * time.Second,
	}
}

// For returns the wall-clock deadline for a complexity band. Epic shares Complex's
// budget (spec §4.9 lists them together).
func (d Deadlines) For(c task.Complexity) time.Duration {
	switch c {
	case task.ComplexitySimple:
		return d.Simple
	case task.ComplexityMedium:
		return d.Medium
	default:
		return d.Complex
	}
}
