package changeparser

import (
	"testing"

	"github.com/forgeai/orchestrator/internal/task"
)

func TestParseBasic(t *testing.T) {
	text := "Here is a fix:\n\nFILE: internal/foo/foo.go\n```go\npackage foo\n\nfunc Foo() {}\n```\n\nDone."

	p := New(nil)
	changes := p.Parse(text)

	if len(changes) != 1 {
		t.Fatalf("got %d changes, want 1", len(changes))
	}
	if changes[0].Path != "internal/foo/foo.go" {
		t.Errorf("path = %q", changes[0].Path)
	}
	if changes[0].Language != "go" {
		t.Errorf("language = %q, want go", changes[0].Language)
	}
	if changes[0].ChangeType != task.ChangeModify {
		t.Errorf("change type = %q, want modify", changes[0].ChangeType)
	}
	if changes[0].Content != "package foo\n\nfunc Foo() {}" {
		t.Errorf("content = %q", changes[0].Content)
	}
}

func TestParseInfersLanguageFromExtension(t *testing.T) {
	text := "FILE: script.py\n```\nprint('hi')\n```\n"
	changes := New(nil).Parse(text)
	if len(changes) != 1 {
		t.Fatalf("got %d changes", len(changes))
	}
	if changes[0].Language != "python" {
		t.Errorf("language = %q, want python", changes[0].Language)
	}
}

func TestParseUnknownExtensionIsNullLanguage(t *testing.T) {
	text := "FILE: README\n```text\nhello\n```\n"
	changes := New(nil).Parse(text)
	if len(changes) != 1 {
		t.Fatalf("got %d changes", len(changes))
	}
	if changes[0].Language != "" {
		t.Errorf("language = %q, want empty", changes[0].Language)
	}
}

func TestParseMultipleFilesNearestPairing(t *testing.T) {
	text := `FILE: a.go
` + "```go\ncontent-a\n```" + `

FILE: b.go
` + "```go\ncontent-b\n```"

	changes := New(nil).Parse(text)
	if len(changes) != 2 {
		t.Fatalf("got %d changes, want 2", len(changes))
	}
	if changes[0].Path != "a.go" || changes[0].Content != "content-a" {
		t.Errorf("first change = %+v", changes[0])
	}
	if changes[1].Path != "b.go" || changes[1].Content != "content-b" {
		t.Errorf("second change = %+v", changes[1])
	}
}

func TestParseUnpairedDeclarationDropped(t *testing.T) {
	text := "FILE: orphan.go\n\nNo code block follows this one.\n"
	changes := New(nil).Parse(text)
	if len(changes) != 0 {
		t.Errorf("got %d changes, want 0", len(changes))
	}
}

func TestParseUnpairedBlockDropped(t *testing.T) {
	text := "```go\norphan content\n```\n"
	changes := New(nil).Parse(text)
	if len(changes) != 0 {
		t.Errorf("got %d changes, want 0", len(changes))
	}
}

func TestParseEmptyInputYieldsEmptyList(t *testing.T) {
	changes := New(nil).Parse("")
	if len(changes) != 0 {
		t.Errorf("got %d changes, want 0", len(changes))
	}
}

func TestParseUnterminatedFenceDropped(t *testing.T) {
	text := "FILE: a.go\n```go\nunterminated content"
	changes := New(nil).Parse(text)
	if len(changes) != 0 {
		t.Errorf("got %d changes, want 0", len(changes))
	}
}

func TestParseBlankLinesBetweenDeclAndFence(t *testing.T) {
	text := "FILE: a.go\n\n\n```go\ncontent\n```"
	changes := New(nil).Parse(text)
	if len(changes) != 1 {
		t.Fatalf("got %d changes, want 1", len(changes))
	}
	if changes[0].Content != "content" {
		t.Errorf("content = %q", changes[0].Content)
	}
}
