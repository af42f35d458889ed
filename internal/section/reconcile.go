package section

import (
	"errors"
	"maps"
	"slices"
	"strings"
)

// HeaderIndex holds every known header of a document, both as a set for
// exact matches and as an ordered list for prefix search.
type HeaderIndex struct {
	set     map[string]struct{}
	ordered []string
}

// NewHeaderIndex indexes headers in the given order. Repeated headers keep
// their first position.
func NewHeaderIndex(headers []string) *HeaderIndex {
	idx := &HeaderIndex{
		set:     make(map[string]struct{}, len(headers)),
		ordered: make([]string, 0, len(headers)),
	}
	for _, h := range headers {
		if _, ok := idx.set[h]; ok {
			continue
		}
		idx.set[h] = struct{}{}
		idx.ordered = append(idx.ordered, h)
	}
	return idx
}

// Len returns the number of distinct headers.
func (idx *HeaderIndex) Len() int { return len(idx.ordered) }

// Contains reports whether header is known exactly.
func (idx *HeaderIndex) Contains(header string) bool {
	_, ok := idx.set[header]
	return ok
}

// Resolve maps a reference to a known header. An exact match is returned
// unchanged. Otherwise the shortest header that ref is a prefix of wins, and
// headers of equal length fall back to index order. An empty reference
// never resolves.
func (idx *HeaderIndex) Resolve(ref string) (string, error) {
	if ref == "" {
		return "", ErrUnresolvedReference
	}
	if idx.Contains(ref) {
		return ref, nil
	}
	best := -1
	for i, h := range idx.ordered {
		if !strings.HasPrefix(h, ref) {
			continue
		}
		if best < 0 || len(h) < len(idx.ordered[best]) {
			best = i
		}
	}
	if best < 0 {
		return "", ErrUnresolvedReference
	}
	return idx.ordered[best], nil
}

// Ambiguous returns every header ref is a prefix of when there is more than
// one and ref is not itself a header.
func (idx *HeaderIndex) Ambiguous(ref string) []string {
	if ref == "" || idx.Contains(ref) {
		return nil
	}
	var out []string
	for _, h := range idx.ordered {
		if strings.HasPrefix(h, ref) {
			out = append(out, h)
		}
	}
	if len(out) < 2 {
		return nil
	}
	return out
}

// Reconcile returns a copy of s whose related values are all exact headers.
// Every reference that cannot be resolved is reported; s is left untouched.
func Reconcile(s *Section, idx *HeaderIndex) (*Section, error) {
	related := make(map[string][]string, len(s.related))
	var errs []error
	for _, category := range slices.Sorted(maps.Keys(s.related)) {
		refs := s.related[category]
		resolved := make([]string, 0, len(refs))
		for _, ref := range refs {
			h, err := idx.Resolve(ref)
			if err != nil {
				errs = append(errs, &UnresolvedReferenceError{
					Section:   s.header,
					Category:  category,
					Reference: ref,
				})
				continue
			}
			resolved = append(resolved, h)
		}
		related[category] = resolved
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Section{
		header:      s.header,
		information: cloneCategories(s.information),
		related:     related,
	}, nil
}
