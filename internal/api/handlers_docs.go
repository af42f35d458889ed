package api

import (
	"net/http"
	"strings"

	"github.com/dgallion1/notegest/internal/pathstore"
	"github.com/dgallion1/notegest/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

// pathstoreClient writes a 503 and returns nil when publishing is disabled.
func (s *Server) pathstoreClient(w http.ResponseWriter) *pathstore.Client {
	pub := s.orchestrator.Publisher()
	if pub == nil {
		jsonError(w, "pathstore is not configured", http.StatusServiceUnavailable)
		return nil
	}
	return pub.Client()
}

// handleListDocuments lists the published documents of a user.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		jsonError(w, "user_id query parameter is required", http.StatusBadRequest)
		return
	}
	ps := s.pathstoreClient(w)
	if ps == nil {
		return
	}

	children, err := ps.ListChildren(r.Context(), "notes/users/"+userID+"/documents", 200)
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusBadGateway)
		return
	}

	docs := make([]map[string]any, 0, len(children))
	for _, child := range children {
		if !strings.HasSuffix(child.Key, ".meta") && !strings.HasSuffix(child.Key, "/meta") {
			continue
		}
		docs = append(docs, map[string]any{
			"key":   child.Key,
			"value": child.Value,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// handleDeleteDocument removes a document's meta node and every section
// under it.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		jsonError(w, "user_id query parameter is required", http.StatusBadRequest)
		return
	}
	ps := s.pathstoreClient(w)
	if ps == nil {
		return
	}

	ctx := r.Context()
	docPrefix := pipeline.DocPrefix(userID, docID)

	meta, err := ps.GetNode(ctx, docPrefix+"/meta")
	if err != nil {
		jsonError(w, "failed to read document: "+err.Error(), http.StatusBadGateway)
		return
	}
	if meta == nil {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}

	if err := ps.DeleteNode(ctx, docPrefix, true); err != nil {
		jsonError(w, "failed to delete document: "+err.Error(), http.StatusBadGateway)
		return
	}
	s.log.Info("deleted document", "user_id", userID, "doc_id", docID)

	writeJSON(w, http.StatusOK, map[string]any{
		"doc_id":  docID,
		"deleted": true,
	})
}
