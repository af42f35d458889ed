package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dgallion1/notegest/internal/block"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx notes. Each non-empty paragraph is one line; an
// empty paragraph or a heading-styled paragraph starts a new section.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*block.Document, error) {
	f, size, err := spool(r, "notegest-docx-*.docx")
	if err != nil {
		return nil, err
	}
	defer os.Remove(f.Name())
	defer f.Close()

	d, err := docx.Parse(f, size)
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	doc := &block.Document{
		Title: trimExt(filename),
	}

	var lines []string
	start := 0
	flush := func() {
		doc.Append(strings.Join(lines, "\n"), start)
		lines = nil
	}

	para := 0
	for _, item := range d.Document.Body.Items {
		p, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		para++
		text := docxParagraphText(p)
		switch {
		case text == "":
			flush()
		case docxIsHeading(p):
			flush()
			lines = []string{text}
			start = para
		default:
			if len(lines) == 0 {
				start = para
			}
			lines = append(lines, text)
		}
	}
	flush()

	return doc, nil
}

func docxIsHeading(para *docx.Paragraph) bool {
	if para.Properties == nil || para.Properties.Style == nil {
		return false
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	return strings.HasPrefix(style, "heading") || style == "title"
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
