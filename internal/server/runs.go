package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/coding-eval/internal/evaluate"
	"github.com/sells-group/coding-eval/internal/model"
	"github.com/sells-group/coding-eval/internal/prompts"
)

type batchResult struct {
	CaseKey string         `json:"case_key"`
	Run     *model.TestRun `json:"run,omitempty"`
	Sync    *syncBody      `json:"sync,omitempty"`
	Error   string         `json:"error,omitempty"`
	Kind    string         `json:"kind,omitempty"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	caseKey, prompt := q.Get("case"), q.Get("prompt")
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	out := []model.TestRun{}
	for _, run := range s.deps.Ledger.List() {
		if caseKey != "" && run.CaseKey != caseKey {
			continue
		}
		if prompt != "" && run.PromptName != prompt {
			continue
		}
		out = append(out, run)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out, "total": s.deps.Ledger.Len()})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, ok := s.deps.Ledger.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "run " + id + " not found", Kind: "run_not_found"})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	synced := s.deps.Ledger.Delete(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "sync": syncOf(synced)})
}

func (s *Server) handleRounds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"rounds":    s.deps.Runner.Rounds(),
		"in_flight": s.deps.Runner.InFlight(),
	})
}

// handleExecuteRuns runs one case synchronously, or many when case_keys is
// set. Batch failures are reported per case.
func (s *Server) handleExecuteRuns(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CaseKey  string   `json:"case_key"`
		CaseKeys []string `json:"case_keys"`
		Prompt   string   `json:"prompt"`
		Model    string   `json:"model"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.CaseKey == "" && len(req.CaseKeys) == 0 {
		badRequest(w, "case_key or case_keys is required")
		return
	}

	prompt, err := s.resolvePrompt(req.Prompt)
	if err != nil {
		writeError(w, err)
		return
	}
	modelID := s.resolveModel(req.Model)

	if len(req.CaseKeys) == 0 {
		res, err := s.deps.Runner.RunTest(r.Context(), evaluate.TestRequest{
			CaseKey: req.CaseKey,
			Prompt:  prompt,
			Model:   modelID,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"run": res.Run, "sync": syncOf(res.Sync)})
		return
	}

	items := s.deps.Runner.RunBatch(r.Context(), req.CaseKeys, prompt, modelID)
	out := make([]batchResult, len(items))
	for i, it := range items {
		out[i].CaseKey = it.CaseKey
		if it.Err != nil {
			out[i].Error = it.Err.Error()
			out[i].Kind = model.ErrorKind(it.Err)
			continue
		}
		run := it.Result.Run
		sb := syncOf(it.Result.Sync)
		out[i].Run, out[i].Sync = &run, &sb
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

// resolvePrompt falls back to the active prompt setting, then the built-in
// default.
func (s *Server) resolvePrompt(name string) (model.SavedPrompt, error) {
	if name == "" {
		name = s.deps.Settings.GetOr(model.SettingActivePrompt, prompts.DefaultName)
	}
	return s.deps.Library.Resolve(name)
}

func (s *Server) resolveModel(requested string) string {
	if requested != "" {
		return requested
	}
	return s.deps.Settings.GetOr(model.SettingModel, s.deps.DefaultModel)
}
