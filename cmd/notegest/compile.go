package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgallion1/notegest/internal/document"
	"github.com/dgallion1/notegest/internal/parser"
	"github.com/dgallion1/notegest/internal/section"
)

// compileFile splits and compiles one notes file from disk.
func (a *app) compileFile(ctx context.Context, path string, concurrency int) (*document.Document, error) {
	p, err := parser.ForFile(path, parser.Options{PDFFallbackPdftotext: a.cfg.PDFFallbackPdftotext})
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, err := p.Parse(f, path)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", path, err)
	}
	return document.Compile(ctx, src, document.Options{
		Concurrency: concurrency,
		Logger:      a.log.With("file", path),
	})
}

// failureLine points at the offending source line when the failure is a
// classification error, otherwise at the block's first line.
func failureLine(f document.Failure) int {
	var le *section.LineError
	if f.Line > 0 && errors.As(f.Err, &le) {
		return f.Line + le.Line - 1
	}
	return f.Line
}
