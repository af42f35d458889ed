package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/notegest/internal/config"
	"github.com/dgallion1/notegest/internal/pathstore"
	"github.com/dgallion1/notegest/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "test-key"

func newTestServer(t *testing.T, pub *pathstore.Publisher) *httptest.Server {
	t.Helper()
	cfg := config.Config{
		APIKey:               testKey,
		WorkerCount:          1,
		MaxQueueSize:         8,
		ParseConcurrency:     2,
		MaxConcurrentPublish: 2,
		MaxUploadBytes:       1 << 20,
		JobTTL:               time.Hour,
		StatsWindow:          time.Hour,
	}
	log := slog.New(slog.DiscardHandler)
	orch := pipeline.NewOrchestrator(cfg, pub, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	srv := httptest.NewServer(NewServer(orch, log, cfg))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body io.Reader, contentType string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func parseBody(t *testing.T, text string, headers ...string) io.Reader {
	t.Helper()
	data, err := json.Marshal(map[string]any{"text": text, "headers": headers})
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func upload(t *testing.T, field string, files map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("user_id", "u1"))
	for name, content := range files {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealth_NoAuth(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuth(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/stats/parse")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/stats/parse", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestParseSection_Reconciled(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, out := doJSON(t, http.MethodPost, srv.URL+"/api/sections/parse",
		parseBody(t, "Identity Matrix\nDefinition: ones\nRelated: Orthogonal", "Orthogonal Matrix"), "application/json")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sec := out["section"].(map[string]any)
	assert.Equal(t, "Identity Matrix", sec["header"])
	related := sec["related"].(map[string]any)
	assert.Equal(t, []any{"Orthogonal Matrix"}, related["Related"])
	assert.Equal(t, "Identity Matrix\nRelated: [\"Orthogonal Matrix\"]", out["formatted"])
}

func TestParseSection_Errors(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name    string
		text    string
		headers []string
		kind    string
		line    float64
	}{
		{"empty", "", nil, "empty_input", 0},
		{"malformed", "Group\nOperation: binary\nno colon", nil, "line_classification", 3},
		{"unresolved", "Group\nRelated: Ring", []string{"Field"}, "unresolved_reference", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := doJSON(t, http.MethodPost, srv.URL+"/api/sections/parse",
				parseBody(t, tt.text, tt.headers...), "application/json")
			require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
			assert.Equal(t, tt.kind, out["kind"])
			assert.NotEmpty(t, out["error"])
			if tt.line > 0 {
				assert.Equal(t, tt.line, out["line"])
			} else {
				assert.NotContains(t, out, "line")
			}
		})
	}
}

func TestSubmitNotes_Lifecycle(t *testing.T) {
	srv := newTestServer(t, nil)

	body, ct := upload(t, "file", map[string]string{
		"algebra.txt": "Identity Matrix\nRelated: Orthogonal\n\nOrthogonal Matrix\nRelated: Unknown\n",
	})
	resp, out := doJSON(t, http.MethodPost, srv.URL+"/api/notes", body, ct)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	jobID := out["job_id"].(string)
	assert.Equal(t, "/api/notes/"+jobID+"/status", out["poll_url"])

	var status map[string]any
	require.Eventually(t, func() bool {
		_, status = doJSON(t, http.MethodGet, srv.URL+"/api/notes/"+jobID+"/status", nil, "")
		return pipeline.JobStatus(status["status"].(string)).Done()
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, string(pipeline.StatusPartial), status["status"])

	resp, result := doJSON(t, http.MethodGet, srv.URL+"/api/notes/"+jobID+"/result", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := result["document"].(map[string]any)
	assert.Equal(t, "algebra", doc["title"])
	assert.Len(t, doc["sections"], 1)
	failures := result["failures"].([]any)
	require.Len(t, failures, 1)
	f := failures[0].(map[string]any)
	assert.Equal(t, float64(1), f["index"])
	assert.Equal(t, float64(4), f["line"])
	assert.Contains(t, f["error"], "Unknown")

	resp, stats := doJSON(t, http.MethodGet, srv.URL+"/api/stats/parse", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), stats["stats"].(map[string]any)["documents"])
}

func TestSubmitNotes_Validation(t *testing.T) {
	srv := newTestServer(t, nil)

	body, ct := upload(t, "file", map[string]string{"sheet.xlsx": "x"})
	resp, out := doJSON(t, http.MethodPost, srv.URL+"/api/notes", body, ct)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["error"], ".xlsx")

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/notes/missing/status", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/notes/missing/result", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBatchNotes(t *testing.T) {
	srv := newTestServer(t, nil)

	body, ct := upload(t, "files", map[string]string{
		"a.md":   "# Group\n\nOperation: binary\n",
		"b.xlsx": "nope",
	})
	resp, out := doJSON(t, http.MethodPost, srv.URL+"/api/notes/batch", body, ct)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	jobs := out["jobs"].([]any)
	require.Len(t, jobs, 2)
	var accepted, rejected int
	for _, j := range jobs {
		entry := j.(map[string]any)
		if _, ok := entry["job_id"]; ok {
			accepted++
		}
		if _, ok := entry["error"]; ok {
			rejected++
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, rejected)
}

func TestDocuments_NoPathstore(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/documents?user_id=u1", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/documents/d1?user_id=u1", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

type fakePathstore struct {
	mu      sync.Mutex
	deleted []string
}

func (f *fakePathstore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/*"):
		io.WriteString(w, `{"nodes":[
			{"key_path":"notes.users.u1.documents.d1.meta","value":{"title":"Algebra"}},
			{"key_path":"notes.users.u1.documents.d1.sections.group","value":{}}]}`)
	case r.Method == http.MethodGet && r.URL.Path == "/kv/notes/users/u1/documents/d1/meta":
		io.WriteString(w, `{"key_path":"notes.users.u1.documents.d1.meta","value":{}}`)
	case r.Method == http.MethodGet:
		w.WriteHeader(http.StatusNotFound)
	case r.Method == http.MethodDelete:
		f.mu.Lock()
		f.deleted = append(f.deleted, r.URL.String())
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func TestDocuments_ListAndDelete(t *testing.T) {
	store := &fakePathstore{}
	ps := httptest.NewServer(store)
	t.Cleanup(ps.Close)
	pub := pathstore.NewPublisher(pathstore.NewClient(ps.URL, "k"), slog.New(slog.DiscardHandler))
	srv := newTestServer(t, pub)

	resp, out := doJSON(t, http.MethodGet, srv.URL+"/api/documents?user_id=u1", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	docs := out["documents"].([]any)
	require.Len(t, docs, 1)
	assert.Equal(t, "notes.users.u1.documents.d1.meta", docs[0].(map[string]any)["key"])

	resp, out = doJSON(t, http.MethodDelete, srv.URL+"/api/documents/d1?user_id=u1", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["deleted"])
	store.mu.Lock()
	assert.Equal(t, []string{"/kv/notes/users/u1/documents/d1?children=true"}, store.deleted)
	store.mu.Unlock()

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/documents/d2?user_id=u1", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/documents", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
