package server

import "net/http"

// health is the liveness probe.
func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ready is the readiness probe. The server is ready once it can serve
// search requests; the vector index itself warms lazily on first search,
// so readiness reports the keyword index that backs the fallback path.
func (s *Server) ready(w http.ResponseWriter, _ *http.Request) {
	if s.keywordIndex == nil || s.keywordIndex.Size() == 0 {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "document index empty")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
