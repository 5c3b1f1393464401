package api

import (
	"net/http"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"outline":     s.orchestrator.Stats().Snapshot(),
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}

// handleModel reports the loaded bundle. Having no model is a normal state,
// not an error.
func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	b := s.models.Current()
	if b == nil {
		writeJSON(w, http.StatusOK, map[string]any{"loaded": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"loaded":   true,
		"manifest": b.Manifest,
	})
}
