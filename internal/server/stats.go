package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/coding-eval/internal/aggregate"
	"github.com/sells-group/coding-eval/internal/model"
)

func (s *Server) handleStatsByPrompt(w http.ResponseWriter, _ *http.Request) {
	runs := s.deps.Ledger.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"prompts": aggregate.ByPrompt(runs),
		"history": aggregate.History(runs),
	})
}

func (s *Server) handleStatsByCase(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"cases": aggregate.ByCase(s.deps.Ledger.List())})
}

func (s *Server) handleStatsTrend(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"trend": aggregate.Trend(aggregate.ByPrompt(s.deps.Ledger.List())),
	})
}

func (s *Server) handleStatsCompare(w http.ResponseWriter, r *http.Request) {
	a, b := r.URL.Query().Get("a"), r.URL.Query().Get("b")
	if a == "" || b == "" {
		badRequest(w, "query parameters a and b are required")
		return
	}
	writeJSON(w, http.StatusOK, aggregate.Compare(s.deps.Ledger.List(), a, b))
}

func (s *Server) handleListFlags(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"flags": s.deps.Flags.Keys()})
}

func (s *Server) handleAddFlag(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if _, ok := s.deps.Cases.Get(key); !ok {
		writeError(w, model.Tag(model.ErrCaseNotFound, nil, key))
		return
	}
	added := s.deps.Flags.Add(key)
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "added": added, "flags": s.deps.Flags.Keys()})
}

func (s *Server) handleRemoveFlag(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	removed := s.deps.Flags.Remove(key)
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "removed": removed, "flags": s.deps.Flags.Keys()})
}

func (s *Server) handleClearFlags(w http.ResponseWriter, _ *http.Request) {
	s.deps.Flags.Clear()
	writeJSON(w, http.StatusOK, map[string]any{"flags": []string{}})
}
