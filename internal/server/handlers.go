package server

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(s.cfg.IndexHTML)))
	io.WriteString(w, s.cfg.IndexHTML)
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "pong\n")
}

// handleExtract answers with the tool string and status 200 whatever the
// outcome; only a missing url is a client error.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	raw, err := s.extractInput(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if raw == "" {
		http.Error(w, "missing url", http.StatusBadRequest)
		return
	}
	s.logger.Debug("extract", "id", RequestID(r.Context()), "url", raw)

	out := s.runner.Run(r.Context(), raw)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	io.WriteString(w, out)
}

// extractInput reads the url from the query, a form body or a raw body.
func (s *Server) extractInput(w http.ResponseWriter, r *http.Request) (string, error) {
	if v := r.URL.Query().Get("url"); v != "" || r.Method != http.MethodPost {
		return strings.TrimSpace(v), nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data" {
		if err := r.ParseMultipartForm(s.cfg.MaxBodyBytes); err != nil && err != http.ErrNotMultipart {
			return "", err
		}
		return strings.TrimSpace(r.PostFormValue("url")), nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}
