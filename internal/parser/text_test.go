package parser

import (
	"strings"
	"testing"
)

func TestTextParser_BasicSectionSplitting(t *testing.T) {
	input := "Identity Matrix\nDefinition: Ones on the diagonal.\n\nOrthogonal Matrix\nRelated: Identity\n\nRing"
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(input), "algebra.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "algebra" {
		t.Errorf("expected title %q, got %q", "algebra", doc.Title)
	}
	if len(doc.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(doc.Blocks))
	}

	want := []struct {
		text string
		line int
	}{
		{"Identity Matrix\nDefinition: Ones on the diagonal.", 1},
		{"Orthogonal Matrix\nRelated: Identity", 4},
		{"Ring", 7},
	}
	for i, w := range want {
		if doc.Blocks[i].Text != w.text {
			t.Errorf("block[%d]: expected %q, got %q", i, w.text, doc.Blocks[i].Text)
		}
		if doc.Blocks[i].Line != w.line {
			t.Errorf("block[%d]: expected line %d, got %d", i, w.line, doc.Blocks[i].Line)
		}
	}
}

func TestTextParser_EmptyInput(t *testing.T) {
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "empty" {
		t.Errorf("expected title %q, got %q", "empty", doc.Title)
	}
	if len(doc.Blocks) != 0 {
		t.Errorf("expected 0 blocks for empty input, got %d", len(doc.Blocks))
	}
}

func TestTextParser_MultipleBlankLines(t *testing.T) {
	// Multiple consecutive blank lines should not produce empty blocks.
	input := "Group\n\n\n\nField"
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(input), "gaps.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(doc.Blocks))
	}
}

func TestTextParser_WhitespaceOnlyLines(t *testing.T) {
	// Lines with only whitespace should be treated as blank.
	input := "Group\n   \nField"
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(input), "ws.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(doc.Blocks))
	}
}

func TestTextParser_CRLF(t *testing.T) {
	input := "Group\r\nDefinition: closed under the operation\r\n\r\nField\r\n"
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(input), "crlf.notes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(doc.Blocks))
	}
	if doc.Blocks[0].Text != "Group\nDefinition: closed under the operation" {
		t.Errorf("expected carriage returns stripped, got %q", doc.Blocks[0].Text)
	}
}

func TestForFile(t *testing.T) {
	tests := []struct {
		filename string
		wantErr  bool
	}{
		{"notes.txt", false},
		{"notes.notes", false},
		{"NOTES.MD", false},
		{"page.htm", false},
		{"scan.pdf", false},
		{"doc.docx", false},
		{"table.csv", true},
		{"noext", true},
	}
	for _, tt := range tests {
		p, err := ForFile(tt.filename, Options{})
		if tt.wantErr {
			if err == nil {
				t.Errorf("filename=%q: expected error, got parser %T", tt.filename, p)
			}
			if IsSupportedExtension(tt.filename) {
				t.Errorf("filename=%q: expected unsupported", tt.filename)
			}
			continue
		}
		if err != nil {
			t.Errorf("filename=%q: unexpected error: %v", tt.filename, err)
		}
		if !IsSupportedExtension(tt.filename) {
			t.Errorf("filename=%q: expected supported", tt.filename)
		}
	}
}
