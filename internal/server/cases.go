package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/coding-eval/internal/cases"
	"github.com/sells-group/coding-eval/internal/model"
)

type caseView struct {
	model.Case
	Status  model.CaseStatus `json:"status"`
	Flagged bool             `json:"flagged"`
}

func (s *Server) view(c model.Case) caseView {
	return caseView{Case: c, Status: c.Status(), Flagged: s.deps.Flags.Has(c.Key)}
}

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := cases.Filter{
		Status:    model.CaseStatus(q.Get("status")),
		Specialty: q.Get("specialty"),
	}
	list := s.deps.Cases.List(f)
	out := make([]caseView, len(list))
	for i, c := range list {
		out[i] = s.view(c)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cases":  out,
		"counts": s.deps.Cases.StatusCounts(),
	})
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	c, ok := s.deps.Cases.Get(key)
	if !ok {
		writeError(w, model.Tag(model.ErrCaseNotFound, nil, key))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"case":  s.view(c),
		"round": s.deps.Runner.Round(key),
		"runs":  len(s.deps.Ledger.ForCase(key)),
	})
}

func (s *Server) handlePatchCase(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req struct {
		Specialty string `json:"specialty"`
	}
	if !decode(w, r, &req) {
		return
	}
	synced, err := s.deps.Cases.UpdateSpecialty(r.Context(), key, strings.TrimSpace(req.Specialty))
	if err != nil {
		writeError(w, err)
		return
	}
	c, _ := s.deps.Cases.Get(key)
	writeJSON(w, http.StatusOK, map[string]any{"case": s.view(c), "sync": syncOf(synced)})
}

func (s *Server) handleDeleteCase(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	synced := s.deps.Cases.Delete(r.Context(), key)
	s.deps.Flags.Remove(key)
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "sync": syncOf(synced)})
}

func (s *Server) handleCaseRuns(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	runs := s.deps.Ledger.ForCase(key)
	if runs == nil {
		runs = []model.TestRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleIngestGold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source    string             `json:"source"`
		Specialty string             `json:"specialty"`
		Entries   []model.AuditEntry `json:"entries"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Source == "" {
		req.Source = "api"
	}
	res := s.deps.Ingester.GoldEntries(r.Context(), req.Source, req.Entries, req.Specialty)
	writeJSON(w, http.StatusOK, map[string]any{
		"source":  res.Source,
		"entries": res.Entries,
		"applied": res.Applied,
		"sync":    syncOf(res.Sync),
	})
}

func (s *Server) handleIngestNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string `json:"filename"`
		Text     string `json:"text"`
	}
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(w, "text is required")
		return
	}
	out := s.deps.Ingester.NoteText(r.Context(), req.Filename, req.Text)
	if out.Err != nil {
		writeError(w, out.Err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"file": out.File,
		"key":  out.Key,
		"sync": syncOf(out.Sync),
	})
}
