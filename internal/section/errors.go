package section

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput indicates a block with no header line.
	ErrEmptyInput = errors.New("empty section: no header line")

	// ErrLineClassification indicates a line the classifier could not split.
	ErrLineClassification = errors.New("line classification failed")

	// ErrMalformedLine is returned by ColonClassifier for lines without a category label.
	ErrMalformedLine = errors.New("malformed line")

	// ErrUnresolvedReference indicates a relation that matches no known header.
	ErrUnresolvedReference = errors.New("unresolved reference")
)

// LineError reports a line inside a block that failed classification.
type LineError struct {
	Line int    // 1-based position within the block; the header is line 1
	Text string // the offending line
	Err  error  // classifier error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *LineError) Is(target error) bool {
	return target == ErrLineClassification
}

// UnresolvedReferenceError reports a related entry that matched no header.
type UnresolvedReferenceError struct {
	Section   string
	Category  string
	Reference string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("section %q: %s reference %q matches no known header", e.Section, e.Category, e.Reference)
}

// Is implements errors.Is support
func (e *UnresolvedReferenceError) Is(target error) bool {
	return target == ErrUnresolvedReference
}
