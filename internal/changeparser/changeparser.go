// Package changeparser converts free-form LLM output into a structured list of file
// changes (spec §4.1). It never errors on malformed input — an empty result signals
// "no parseable changes".
package changeparser

import (
	"bufio"
	"log/slog"
	"strings"

	"github.com/forgeai/orchestrator/internal/task"
)

// MaxContentBytes is the practical limit on a single FileChange's content, enforced by
// the Validator Adapter, not here (spec §9 Open Questions).
const MaxContentBytes = 1 << 20

// extensionLanguage maps a file extension to its inferred language tag (spec §4.1 table).
var extensionLanguage = map[string]string{
	".cs":   "csharp",
	".js":   "javascript",
	".ts":   "typescript",
	".py":   "python",
	".java": "java",
	".go":   "go",
	".rs":   "rust",
	".cpp":  "cpp",
	".cc":   "cpp",
	".cxx":  "cpp",
	".c":    "c",
	".rb":   "ruby",
	".php":  "php",
	".swift": "swift",
	".kt":   "kotlin",
	".sql":  "sql",
	".json": "json",
	".xml":  "xml",
	".html": "html",
	".css":  "css",
}

// knownLanguages is the set of language tags extensionLanguage can produce. A fence tag
// outside this set is just as "unknown" as an empty one (spec §4.1: "unknown or empty
// language tags are inferred from path extension").
var knownLanguages = func() map[string]bool {
	m := make(map[string]bool, len(extensionLanguage))
	for _, lang := range extensionLanguage {
		m[lang] = true
	}
	return m
}()

const fileDeclPrefix = "FILE: "

// fileDecl is a FILE: declaration found in document order.
type fileDecl struct {
	path string
	line int
}

// codeBlock is a fenced code block found in document order.
type codeBlock struct {
	language string
	content  string
	line     int
	paired   bool
}

// Parser scans LLM output text for the FILE: + fenced-block grammar.
type Parser struct {
	logger *slog.Logger
}

// New creates a Parser. logger may be nil, in which case a discard logger is used.
func New(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(nopWriter{}, nil))
	}
	return &Parser{logger: logger}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

// Parse extracts an ordered list of FileChange from free-form text. Never returns an
// error; malformed or absent input yields an empty slice.
func (p *Parser) Parse(text string) []task.FileChange {
	decls, blocks := scan(text)

	var changes []task.FileChange
	used := make([]bool, len(blocks))

	for _, d := range decls {
		idx := nearestUnpaired(blocks, used, d.line)
		if idx < 0 {
			p.logger.Info("unpaired FILE declaration dropped", "path", d.path, "line", d.line)
			continue
		}
		used[idx] = true
		b := blocks[idx]

		lang := strings.ToLower(strings.TrimSpace(b.language))
		if !knownLanguages[lang] {
			lang = languageForPath(d.path)
		}

		changes = append(changes, task.FileChange{
			Path:       d.path,
			Language:   lang,
			ChangeType: task.ChangeModify,
			Content:    b.content,
		})
	}

	for i, b := range blocks {
		if !used[i] {
			p.logger.Info("unpaired code block dropped", "line", b.line)
		}
	}

	return changes
}

// nearestUnpaired returns the index of the first unused block at or after afterLine.
func nearestUnpaired(blocks []codeBlock, used []bool, afterLine int) int {
	for i, b := range blocks {
		if used[i] {
			continue
		}
		if b.line >= afterLine {
			return i
		}
	}
	return -1
}

// scan walks the text line by line, collecting FILE: declarations and fenced code blocks
// in document order. A hand-written scanner is used rather than a single regex (spec §9)
// so that nested backtick sequences inside content are handled unambiguously.
func scan(text string) ([]fileDecl, []codeBlock) {
	var decls []fileDecl
	var blocks []codeBlock

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 16*MaxContentBytes)

	lineNo := 0
	for sc.Scan() {
		line := sc.Text()
		lineNo++

		if strings.HasPrefix(line, fileDeclPrefix) {
			path := strings.TrimSpace(strings.TrimPrefix(line, fileDeclPrefix))
			if path != "" {
				decls = append(decls, fileDecl{path: path, line: lineNo})
			}
			continue
		}

		if isFenceOpen(line) {
			lang := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "```"))
			startLine := lineNo
			var contentLines []string
			closed := false
			for sc.Scan() {
				lineNo++
				inner := sc.Text()
				if isFenceClose(inner) {
					closed = true
					break
				}
				contentLines = append(contentLines, inner)
			}
			if closed {
				blocks = append(blocks, codeBlock{
					language: lang,
					content:  strings.Join(contentLines, "\n"),
					line:     startLine,
				})
			}
			// unterminated fence: drop silently, matches "never throws" contract.
		}
	}

	return decls, blocks
}

func isFenceOpen(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "```")
}

func isFenceClose(line string) bool {
	return strings.TrimSpace(line) == "```"
}

func languageForPath(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return ""
	}
	ext := strings.ToLower(path[idx:])
	return extensionLanguage[ext]
}
