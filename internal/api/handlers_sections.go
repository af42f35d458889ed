package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/notegest/internal/section"
)

type parseRequest struct {
	Text    string   `json:"text"`
	Headers []string `json:"headers"`
}

type parseError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Line  int    `json:"line,omitempty"`
}

// handleParseSection parses one block synchronously. When headers are given
// the section is reconciled against them plus its own header.
func (s *Server) handleParseSection(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}

	sec, err := section.Parse(req.Text)
	if err == nil && len(req.Headers) > 0 {
		headers := append([]string{sec.Header()}, req.Headers...)
		sec, err = section.Reconcile(sec, section.NewHeaderIndex(headers))
	}
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, classifyParseError(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"section":   sec,
		"formatted": sec.String(),
	})
}

func classifyParseError(err error) parseError {
	pe := parseError{Error: err.Error()}
	var le *section.LineError
	switch {
	case errors.Is(err, section.ErrEmptyInput):
		pe.Kind = "empty_input"
	case errors.As(err, &le):
		pe.Kind = "line_classification"
		pe.Line = le.Line
	case errors.Is(err, section.ErrUnresolvedReference):
		pe.Kind = "unresolved_reference"
	default:
		pe.Kind = "unknown"
	}
	return pe
}
