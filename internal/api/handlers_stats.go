package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	p := s.orchestrator.Pipeline()
	cfg := p.Config()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"queue_depth": s.orchestrator.QueueDepth(),
		"jobs":        s.orchestrator.JobCount(),
		"latency":     s.orchestrator.Latency(),
		"chunking": map[string]any{
			"max_tokens_per_node": cfg.MaxTokensPerNode,
			"overlap_tokens":      cfg.OverlapTokens,
			"token_counter":       p.Counter().Name(),
			"validate":            cfg.Validate,
		},
	})
}
