package section

import (
	"fmt"
	"strings"
)

// Classifier splits one information line into a category label and its text.
type Classifier interface {
	Classify(line string) (category, text string, err error)
}

// ClassifierFunc adapts a plain function to the Classifier interface.
type ClassifierFunc func(line string) (string, string, error)

func (f ClassifierFunc) Classify(line string) (string, string, error) {
	return f(line)
}

// ColonClassifier handles "Category: text" lines. The category is everything
// before the first colon, trimmed; the text is the trimmed remainder.
type ColonClassifier struct{}

func (ColonClassifier) Classify(line string) (string, string, error) {
	category, text, ok := strings.Cut(line, ":")
	if !ok {
		return "", "", fmt.Errorf("%w: missing ':' separator", ErrMalformedLine)
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return "", "", fmt.Errorf("%w: empty category", ErrMalformedLine)
	}
	return category, strings.TrimSpace(text), nil
}
