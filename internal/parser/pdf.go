package parser

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion1/notegest/internal/block"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF notes. It tries the Go library first, then falls
// back to pdftotext if enabled. The extracted text is split into sections on
// blank lines, like plain text.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*block.Document, error) {
	f, _, err := spool(r, "notegest-pdf-*.pdf")
	if err != nil {
		return nil, err
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	text, err := readPages(path)
	if err != nil && p.FallbackPdftotext {
		text, err = runPdftotext(path)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	doc := &block.Document{
		Title: trimExt(filename),
	}
	// Page breaks end a section just like a blank line.
	text = strings.ReplaceAll(text, "\f", "\n\n")
	if err := splitParagraphs(strings.NewReader(text), doc); err != nil {
		return nil, fmt.Errorf("split pdf text: %w", err)
	}
	return doc, nil
}

// readPages joins the plain text of every page with form feeds.
func readPages(path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\f"), nil
}

func runPdftotext(path string) (string, error) {
	out, err := exec.Command("pdftotext", "-layout", path, "-").Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}
