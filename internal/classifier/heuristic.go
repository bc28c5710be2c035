package classifier

import (
	"strings"

	"github.com/forgeai/orchestrator/internal/task"
)

// simpleKeywords and complexKeywords are checked in order; the first match wins
// (spec §4.4). Epic is never produced by the heuristic.
var (
	simpleKeywords  = []string{"fix", "typo", "small", "minor", "quick", "simple"}
	complexKeywords = []string{"architecture", "refactor", "rewrite", "migration", "complex"}
)

// Heuristic ports spec §4.4's keyword/word-count rules directly: Simple if a simple
// keyword matches or the description has fewer than 20 words, else Complex if a
// complex keyword matches or it has more than 100 words, else Medium.
func Heuristic(in Input) task.Classification {
	lower := strings.ToLower(in.Title + " " + in.Description)
	words := len(strings.Fields(in.Description))

	complexity := classify(lower, words)

	return task.Classification{
		Type:       task.TypeHint(in.TypeHint),
		Complexity: complexity,
		Confidence: 0.5,
		Source:     task.SourceHeuristic,
	}
}

func classify(lower string, wordCount int) task.Complexity {
	if containsAny(lower, simpleKeywords) || wordCount < 20 {
		return task.ComplexitySimple
	}
	if containsAny(lower, complexKeywords) || wordCount > 100 {
		return task.ComplexityComplex
	}
	return task.ComplexityMedium
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
