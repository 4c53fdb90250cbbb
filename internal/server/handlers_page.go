package server

import (
	"net/http"

	"openvpn-webui/internal/auth"
	"openvpn-webui/internal/i18n"
	"openvpn-webui/internal/version"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := map[string]any{
		"Lang":    i18n.Lang(),
		"Title":   i18n.T("app.title"),
		"Viewer":  id.Username,
		"Logout":  i18n.T("logout"),
		"Version": version.Current().String(),
	}
	if err := s.templates.ExecuteTemplate(w, "layout.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
