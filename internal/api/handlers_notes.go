package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/notegest/internal/parser"
	"github.com/dgallion1/notegest/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleSubmitNotes(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	userID := r.FormValue("user_id")
	if userID == "" {
		jsonError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, code, err := s.readUpload(header)
	if err != nil {
		jsonError(w, err.Error(), code)
		return
	}

	job := pipeline.NewJob(userID, r.FormValue("doc_id"), filename, r.FormValue("title"), data)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, submitted(job))
}

func (s *Server) handleBatchNotes(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	userID := r.FormValue("user_id")
	if userID == "" {
		jsonError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	results := make([]map[string]any, 0, len(files))
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		if !parser.IsSupportedExtension(filename) {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)),
			})
			continue
		}

		data, _, err := s.readUpload(fh)
		if err != nil {
			results = append(results, map[string]any{"filename": filename, "error": err.Error()})
			continue
		}

		job := pipeline.NewJob(userID, "", filename, "", data)
		if err := s.orchestrator.Submit(job); err != nil {
			results = append(results, map[string]any{"filename": filename, "error": err.Error()})
			continue
		}
		entry := submitted(job)
		entry["filename"] = filename
		results = append(results, entry)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":   snap.ID,
		"doc_id":   snap.DocID,
		"status":   snap.Status,
		"phase":    snap.Phase,
		"progress": snap.Progress,
	})
}

type failureView struct {
	Index int    `json:"index"`
	Line  int    `json:"line"`
	Error string `json:"error"`
}

// handleJobResult returns the compiled document once the job has finished.
func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	if !snap.Status.Done() {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  "job still running",
			"status": snap.Status,
			"phase":  snap.Phase,
		})
		return
	}

	resp := map[string]any{
		"job_id":   snap.ID,
		"doc_id":   snap.DocID,
		"status":   snap.Status,
		"errors":   snap.Progress.Errors,
		"document": nil,
		"failures": []failureView{},
	}
	if doc := job.Result(); doc != nil {
		failures := make([]failureView, 0, len(doc.Failures))
		for _, f := range doc.Failures {
			failures = append(failures, failureView{Index: f.Index, Line: f.Line, Error: f.Err.Error()})
		}
		resp["document"] = doc
		resp["failures"] = failures
	}
	writeJSON(w, http.StatusOK, resp)
}

// readUpload reads one uploaded file, enforcing MaxUploadBytes. The returned
// status code applies when err is non-nil.
func (s *Server) readUpload(fh *multipart.FileHeader) ([]byte, int, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("failed to open file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("failed to read file")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
	}
	return data, 0, nil
}

func submitted(job *pipeline.Job) map[string]any {
	snap := job.Snapshot()
	return map[string]any{
		"job_id":   snap.ID,
		"doc_id":   snap.DocID,
		"status":   snap.Status,
		"poll_url": fmt.Sprintf("/api/notes/%s/status", snap.ID),
	}
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
