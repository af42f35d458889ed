package pathstore

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/dgallion1/notegest/internal/section"
)

// MaxRetries bounds the attempts for a single pathstore write.
const MaxRetries = 3

// Publisher writes compiled sections to pathstore: one node per section and
// one link per related reference.
type Publisher struct {
	client   *Client
	log      *slog.Logger
	attempts uint
	delay    time.Duration
}

func NewPublisher(client *Client, log *slog.Logger) *Publisher {
	return &Publisher{
		client:   client,
		log:      log,
		attempts: MaxRetries,
		delay:    time.Second,
	}
}

// Client returns the underlying pathstore client.
func (p *Publisher) Client() *Client {
	return p.client
}

// SectionKey is the node path of the section with the given header. The
// slug keeps keys readable; the hash suffix of the exact header keeps
// headers that slug alike apart.
func SectionKey(docPrefix, header string) string {
	return docPrefix + "/sections/" + sectionSlug(header)
}

// PublishSection stores s under docPrefix and links it to every section it
// references. It returns the number of links written.
func (p *Publisher) PublishSection(ctx context.Context, docPrefix, source string, s *section.Section) (int, error) {
	from := SectionKey(docPrefix, s.Header())
	err := p.withRetry(ctx, func() error {
		return p.client.PutNode(ctx, from, NodeRequest{
			Value:      s,
			MemoryType: "semantic",
			Salience:   0.5,
			Source:     source,
		})
	})
	if err != nil {
		return 0, fmt.Errorf("publish section %q: %w", s.Header(), err)
	}

	links := 0
	for _, category := range section.ReservedCategories {
		for _, target := range s.Related()[category] {
			req := LinkRequest{
				From:    from,
				To:      SectionKey(docPrefix, target),
				Weight:  linkWeight(category),
				Summary: category,
			}
			if err := p.withRetry(ctx, func() error { return p.client.PutLink(ctx, req) }); err != nil {
				return links, fmt.Errorf("link %q -> %q: %w", s.Header(), target, err)
			}
			links++
		}
	}
	return links, nil
}

// PublishMeta stores document-level metadata at {docPrefix}/meta.
func (p *Publisher) PublishMeta(ctx context.Context, docPrefix, source string, meta map[string]any) error {
	return p.withRetry(ctx, func() error {
		return p.client.PutNode(ctx, docPrefix+"/meta", NodeRequest{
			Value:      meta,
			MemoryType: "metacognitive",
			Salience:   0.1,
			Source:     source,
		})
	})
}

func (p *Publisher) withRetry(ctx context.Context, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(p.attempts),
		retry.Delay(p.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(IsRetryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			p.log.Warn("retrying pathstore write", "attempt", n+1, "error", err)
		}),
	)
}

func linkWeight(category string) float64 {
	switch category {
	case section.Ancestors, section.Children:
		return 1.0
	}
	return 0.5
}

var (
	slugInvalid = regexp.MustCompile(`[^a-z0-9-]`)
	slugDashes  = regexp.MustCompile(`-+`)
)

// Slugify converts a string to a URL/path-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugInvalid.ReplaceAllString(s, "-")
	s = slugDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 50 {
		s = strings.TrimRight(s[:50], "-")
	}
	return s
}

// sectionSlug is Slugify(header) followed by the first 8 hex digits of the
// header's SHA-256. Headers without slug-safe characters use "section".
func sectionSlug(header string) string {
	slug := Slugify(header)
	if slug == "" {
		slug = "section"
	}
	sum := sha256.Sum256([]byte(header))
	return fmt.Sprintf("%s-%x", slug, sum[:4])
}
