package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/notegest/internal/block"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML notes. Headings open sections; <p> and <li>
// content below them become information lines, split on <br>.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*block.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	doc := &block.Document{
		Title: trimExt(filename),
	}
	if title := findTitle(root); title != "" {
		doc.Title = title
	}

	var (
		lines   []string
		heading bool
	)
	flush := func() {
		doc.Append(strings.Join(lines, "\n"), 0)
		lines = nil
		heading = false
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if headingLevel(n.Data) > 0 {
				flush()
				if title := textContent(n); title != "" {
					lines = []string{title}
					heading = true
				}
				return
			}

			switch n.Data {
			case "script", "style", "nav":
				return
			case "hr":
				flush()
				return
			case "p", "li", "blockquote":
				body := textLines(n)
				if len(body) == 0 {
					return
				}
				if heading {
					lines = append(lines, body...)
					return
				}
				flush()
				lines = body
				flush()
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	if body := findBody(root); body != nil {
		walk(body)
	} else {
		walk(root)
	}
	flush()

	return doc, nil
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

// textLines returns the text of n split at <br> elements and newlines,
// with blank lines dropped.
func textLines(n *html.Node) []string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			buf.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			buf.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)

	var out []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func textContent(n *html.Node) string {
	return strings.Join(textLines(n), " ")
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
