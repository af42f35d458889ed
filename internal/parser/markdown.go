package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/dgallion1/notegest/internal/block"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown notes using goldmark. A heading opens a
// section whose header is the heading text; paragraphs and list items below
// it become its information lines. A paragraph outside any heading is a
// section on its own.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*block.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(src))

	doc := &block.Document{
		Title: trimExt(filename),
	}

	var (
		lines   []string
		start   int
		heading bool
	)
	flush := func() {
		doc.Append(strings.Join(lines, "\n"), start)
		lines = nil
		heading = false
	}

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			flush()
			lines = []string{strings.TrimSpace(string(node.Text(src)))}
			start = lineOf(src, node)
			heading = true

		case *ast.ThematicBreak:
			flush()

		default:
			body := blockLines(n, src)
			if len(body) == 0 {
				continue
			}
			if heading {
				lines = append(lines, body...)
				continue
			}
			// Standalone paragraph: its first line is the header.
			flush()
			lines = body
			start = lineOf(src, n)
			flush()
		}
	}
	flush()

	return doc, nil
}

// blockLines collects the raw source lines of n's leaf blocks.
func blockLines(n ast.Node, src []byte) []string {
	if segs := n.Lines(); segs != nil && segs.Len() > 0 {
		out := make([]string, 0, segs.Len())
		for i := 0; i < segs.Len(); i++ {
			seg := segs.At(i)
			line := strings.TrimRight(string(seg.Value(src)), " \t\r\n")
			if line != "" {
				out = append(out, line)
			}
		}
		return out
	}
	var out []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if c.Type() == ast.TypeBlock {
			out = append(out, blockLines(c, src)...)
		}
	}
	return out
}

// lineOf returns the 1-based source line where n's first segment starts.
func lineOf(src []byte, n ast.Node) int {
	for ; n != nil; n = n.FirstChild() {
		if segs := n.Lines(); segs != nil && segs.Len() > 0 {
			return bytes.Count(src[:segs.At(0).Start], []byte("\n")) + 1
		}
		if n.Type() != ast.TypeBlock {
			break
		}
	}
	return 0
}
