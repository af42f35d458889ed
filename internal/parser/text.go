package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/notegest/internal/block"
)

// TextParser handles plain text notes: sections are separated by blank lines.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*block.Document, error) {
	doc := &block.Document{
		Title: trimExt(filename),
	}
	if err := splitParagraphs(r, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// splitParagraphs appends one block per blank-line delimited paragraph.
// Lines are kept verbatim apart from a trailing '\r'.
func splitParagraphs(r io.Reader, doc *block.Document) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var current strings.Builder
	start := 0
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				doc.Append(current.String(), start)
				current.Reset()
			}
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		} else {
			start = lineNo
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		doc.Append(current.String(), start)
	}

	return scanner.Err()
}
