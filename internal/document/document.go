// Package document compiles the blocks of one notes file into reconciled
// sections. Parsing runs first for every block; only once all headers are
// known does reconciliation start.
package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgallion1/notegest/internal/block"
	"github.com/dgallion1/notegest/internal/section"
)

const defaultConcurrency = 4

// Options controls compilation.
type Options struct {
	Parser      *section.Parser // nil uses the "Category: text" parser
	Concurrency int             // max blocks processed at once
	Logger      *slog.Logger
}

// Failure is a block that produced no section.
type Failure struct {
	Index int   `json:"index"` // Position of the block in the source document
	Line  int   `json:"line"`  // Source line of the block header, 0 if unknown
	Err   error `json:"-"`
}

func (f Failure) Error() string {
	if f.Line > 0 {
		return fmt.Sprintf("block %d (line %d): %v", f.Index, f.Line, f.Err)
	}
	return fmt.Sprintf("block %d: %v", f.Index, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Document is the compiled form of one notes file.
type Document struct {
	Title    string             `json:"title"`
	Headers  []string           `json:"headers"`
	Sections []*section.Section `json:"sections"`
	Failures []Failure          `json:"-"`
}

// Err joins every failure, or returns nil when all blocks compiled.
func (d *Document) Err() error {
	if len(d.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(d.Failures))
	for i, f := range d.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Lookup returns the section with the given header.
func (d *Document) Lookup(header string) (*section.Section, bool) {
	for _, s := range d.Sections {
		if s.Header() == header {
			return s, true
		}
	}
	return nil, false
}

// Compile parses every block, indexes the headers of the blocks that parsed,
// then reconciles each section against that index. Block failures are
// collected in the result; only context cancellation returns an error.
func Compile(ctx context.Context, src *block.Document, opts Options) (*Document, error) {
	if opts.Parser == nil {
		opts.Parser = section.NewParser(nil)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With("title", src.Title)

	n := len(src.Blocks)
	parsed := make([]*section.Section, n)
	errs := make([]error, n)

	// Phase 1: parse.
	err := forEach(ctx, n, opts.Concurrency, func(i int) {
		parsed[i], errs[i] = opts.Parser.Parse(src.Blocks[i].Text)
	})
	if err != nil {
		return nil, err
	}

	headers := make([]string, 0, n)
	seen := make(map[string]int, n)
	for i, s := range parsed {
		if s == nil {
			continue
		}
		h := s.Header()
		if first, dup := seen[h]; dup {
			log.Warn("duplicate section header", "header", h, "block", i, "first_block", first)
			continue
		}
		seen[h] = i
		headers = append(headers, h)
	}
	idx := section.NewHeaderIndex(headers)

	// Phase 2: reconcile.
	reconciled := make([]*section.Section, n)
	err = forEach(ctx, n, opts.Concurrency, func(i int) {
		if parsed[i] == nil {
			return
		}
		for _, ref := range parsed[i].References() {
			if cands := idx.Ambiguous(ref); cands != nil {
				log.Debug("ambiguous reference", "section", parsed[i].Header(), "reference", ref, "candidates", cands)
			}
		}
		reconciled[i], errs[i] = section.Reconcile(parsed[i], idx)
	})
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Title:   src.Title,
		Headers: headers,
	}
	for i := range n {
		if errs[i] != nil {
			doc.Failures = append(doc.Failures, Failure{Index: i, Line: src.Blocks[i].Line, Err: errs[i]})
			continue
		}
		doc.Sections = append(doc.Sections, reconciled[i])
	}

	log.Debug("compiled document", "blocks", n, "sections", len(doc.Sections), "failures", len(doc.Failures))
	return doc, nil
}

// forEach runs fn for 0..n-1 with at most limit calls in flight. It stops
// scheduling new work once ctx is done.
func forEach(ctx context.Context, n, limit int, fn func(i int)) error {
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i := range n {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(i)
		}(i)
	}
	wg.Wait()
	return ctx.Err()
}
