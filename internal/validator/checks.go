package validator

import (
	"context"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/forgeai/orchestrator/internal/task"
)

// maxContentBytes mirrors changeparser.MaxContentBytes; kept independent to avoid a
// validator->changeparser import purely for a constant.
const maxContentBytes = 1 << 20

// pathChecker enforces non-empty, normalized paths with no traversal or absolute roots
// outside the project convention (spec §4.2 check 1).
type pathChecker struct{}

func (pathChecker) Check(_ context.Context, change task.FileChange) []string {
	p := change.Path
	if strings.TrimSpace(p) == "" {
		return []string{"empty path"}
	}
	if path.IsAbs(p) {
		return []string{fmt.Sprintf("absolute path not allowed: %s", p)}
	}
	cleaned := path.Clean(p)
	if cleaned != p || strings.HasPrefix(cleaned, "../") || cleaned == ".." {
		return []string{fmt.Sprintf("path not normalized or escapes project root: %s", p)}
	}
	for _, segment := range strings.Split(cleaned, "/") {
		if segment == ".." {
			return []string{fmt.Sprintf("path traversal not allowed: %s", p)}
		}
	}
	return nil
}

// duplicatePathErrors enforces spec §3's ChangeSet invariant that paths within a
// ChangeSet are unique. Checked once over the whole set rather than per-file, since a
// single FileChange can't tell a duplicate path apart from a unique one on its own.
func duplicatePathErrors(changes []task.FileChange) []string {
	seen := make(map[string]bool, len(changes))
	var errs []string
	for _, c := range changes {
		if seen[c.Path] {
			errs = append(errs, fmt.Sprintf("duplicate path in change set: %s", c.Path))
			continue
		}
		seen[c.Path] = true
	}
	return errs
}

// utf8Checker enforces valid UTF-8 content (spec §4.2 check 2).
type utf8Checker struct{}

func (utf8Checker) Check(_ context.Context, change task.FileChange) []string {
	if !utf8.ValidString(change.Content) {
		return []string{fmt.Sprintf("%s: content is not valid UTF-8", change.Path)}
	}
	return nil
}

// sizeChecker enforces the practical per-file content size limit (spec §9 Open
// Questions).
type sizeChecker struct{}

func (sizeChecker) Check(_ context.Context, change task.FileChange) []string {
	n := len(change.Content)
	if n > maxContentBytes {
		return []string{fmt.Sprintf("file-too-large: %s (%d bytes > %d)", change.Path, n, maxContentBytes)}
	}
	return nil
}
