package pathstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgallion1/notegest/internal/section"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	body   map[string]any
}

type fakeStore struct {
	mu       sync.Mutex
	requests []recorded
	failures atomic.Int32 // remaining requests to answer with 503
}

func (f *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer secret" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if f.failures.Load() > 0 {
		f.failures.Add(-1)
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, "busy")
		return
	}
	rec := recorded{method: r.Method, path: r.URL.Path}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func newTestPublisher(t *testing.T, h http.Handler) *Publisher {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	p := NewPublisher(NewClient(srv.URL, "secret"), slog.New(slog.DiscardHandler))
	p.delay = time.Millisecond
	return p
}

func TestPublishSection_NodeAndLinks(t *testing.T) {
	store := &fakeStore{}
	p := newTestPublisher(t, store)

	s, err := section.Parse("Identity Matrix\nDefinition: ones\nRelated: Orthogonal Matrix\nAncestors: Square Matrix")
	require.NoError(t, err)

	links, err := p.PublishSection(context.Background(), "notes/users/u1/documents/d1", "notegest:d1", s)
	require.NoError(t, err)
	assert.Equal(t, 2, links)

	require.Len(t, store.requests, 3)
	node := store.requests[0]
	assert.Equal(t, http.MethodPut, node.method)
	assert.Equal(t, "/kv/"+SectionKey("notes/users/u1/documents/d1", "Identity Matrix"), node.path)
	assert.True(t, strings.HasPrefix(node.path, "/kv/notes/users/u1/documents/d1/sections/identity-matrix-"))
	value := node.body["value"].(map[string]any)
	assert.Equal(t, "Identity Matrix", value["header"])
	assert.Equal(t, "notegest:d1", node.body["source"])

	// Ancestors are linked before Related.
	assert.Equal(t, "/links", store.requests[1].path)
	assert.Equal(t, SectionKey("notes/users/u1/documents/d1", "Square Matrix"), store.requests[1].body["to_key"])
	assert.Equal(t, "Ancestors", store.requests[1].body["summary"])
	assert.Equal(t, SectionKey("notes/users/u1/documents/d1", "Orthogonal Matrix"), store.requests[2].body["to_key"])
}

func TestPublishSection_RetriesTransientFailures(t *testing.T) {
	store := &fakeStore{}
	store.failures.Store(2)
	p := newTestPublisher(t, store)

	s, err := section.Parse("Group")
	require.NoError(t, err)

	_, err = p.PublishSection(context.Background(), "doc", "src", s)
	require.NoError(t, err)
	assert.Len(t, store.requests, 1)
}

func TestPublishSection_GivesUpAfterMaxRetries(t *testing.T) {
	store := &fakeStore{}
	store.failures.Store(10)
	p := newTestPublisher(t, store)

	s, err := section.Parse("Group")
	require.NoError(t, err)

	_, err = p.PublishSection(context.Background(), "doc", "src", s)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, int32(10-MaxRetries), store.failures.Load())
}

func TestPublishSection_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	p := newTestPublisher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))

	s, err := section.Parse("Group")
	require.NoError(t, err)

	_, err = p.PublishSection(context.Background(), "doc", "src", s)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_GetNodeMissing(t *testing.T) {
	p := newTestPublisher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	node, err := p.Client().GetNode(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, node)
}

func TestClient_ListChildren(t *testing.T) {
	p := newTestPublisher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/kv/notes/users/u1/documents/*", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		io.WriteString(w, `{"nodes":[{"key_path":"notes.users.u1.documents.d1.meta","value":{"title":"t"}}]}`)
	}))
	nodes, err := p.Client().ListChildren(context.Background(), "notes/users/u1/documents", 5)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.True(t, strings.HasSuffix(nodes[0].Key, ".meta"))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(&StatusError{StatusCode: 500}))
	assert.True(t, IsRetryable(&StatusError{StatusCode: 429}))
	assert.False(t, IsRetryable(&StatusError{StatusCode: 404}))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Identity Matrix", "identity-matrix"},
		{"  Ring (Algebra)  ", "ring-algebra"},
		{"a--b__c", "a-b-c"},
		{"???", ""},
		{strings.Repeat("ab ", 30), strings.TrimRight(strings.Repeat("ab-", 17)[:50], "-")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), "input %q", tt.in)
	}
	assert.True(t, strings.HasPrefix(sectionSlug("???"), "section-"))
	assert.Len(t, sectionSlug("???"), len("section-")+8)
}

func TestSectionKey_DistinctHeaders(t *testing.T) {
	long := strings.Repeat("Linear Algebra Notes ", 3)
	pairs := [][2]string{
		{"C++", "C#"},
		{"Group", "group"},
		{"Vector Space (linear algebra)", "Vector Space - Linear Algebra"},
		{long + "Chapter One", long + "Chapter Two"},
		{"???", "!!!"},
	}
	for _, p := range pairs {
		a, b := SectionKey("doc", p[0]), SectionKey("doc", p[1])
		assert.NotEqual(t, a, b, "headers %q and %q", p[0], p[1])
		assert.True(t, strings.HasPrefix(a, "doc/sections/"))
	}
	assert.Equal(t, SectionKey("doc", "Group"), SectionKey("doc", "Group"))
}
