package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"openvpn-webui/internal/audit"
	"openvpn-webui/internal/auth"
	"openvpn-webui/internal/version"
	"openvpn-webui/internal/webview"
)

// workspace returns the workspace of the authenticated session.
func (s *Server) workspace(r *http.Request) *webview.Workspace {
	id, _ := auth.FromContext(r.Context())
	return s.hub.Workspace(id.Session, id.Username)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.workspace(r).Snapshot())
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	s.workspace(r).ServeStream(w, r)
}

func (s *Server) handleSelectTab(w http.ResponseWriter, r *http.Request) {
	ws := s.workspace(r)
	if err := ws.SelectTab(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Snapshot())
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev webview.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid event: %w", err))
		return
	}
	ws := s.workspace(r)
	if err := ws.Dispatch(ev); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Snapshot())
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeJSON(w, http.StatusOK, []audit.Entry{})
		return
	}
	limit := audit.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	entries, err := s.audit.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Current())
}
