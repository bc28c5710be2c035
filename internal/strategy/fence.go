package strategy

import (
	"bufio"
	"strings"
)

// extractFirstFence returns the content of the first fenced code block in text,
// reusing the Change Parser's fence-detection convention (spec §4.1) for the
// Planner/Reviewer's JSON output instead of a FILE:-prefixed block.
func extractFirstFence(text string) string {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var inside bool
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if !inside {
			if strings.HasPrefix(trimmed, "```") {
				inside = true
			}
			continue
		}
		if trimmed == "```" {
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
