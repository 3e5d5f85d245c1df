package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/coding-eval/internal/model"
	"github.com/sells-group/coding-eval/internal/prompts"
)

func (s *Server) handleListPrompts(w http.ResponseWriter, _ *http.Request) {
	list := s.deps.Library.List()
	if len(list) == 0 {
		list = []model.SavedPrompt{prompts.Default()}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"prompts": list,
		"active":  s.deps.Settings.GetOr(model.SettingActivePrompt, prompts.DefaultName),
	})
}

func (s *Server) handleSavePrompt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Text string `json:"text"`
	}
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		badRequest(w, "name is required")
		return
	}
	p, synced, err := s.deps.Library.Save(r.Context(), req.Name, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompt": p, "sync": syncOf(synced)})
}

func (s *Server) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	synced := s.deps.Library.Delete(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "sync": syncOf(synced)})
}

var settingKeys = map[string]bool{
	model.SettingModel:        true,
	model.SettingActivePrompt: true,
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"settings": s.deps.Settings.All(),
		"effective": map[string]string{
			model.SettingModel:        s.resolveModel(""),
			model.SettingActivePrompt: s.deps.Settings.GetOr(model.SettingActivePrompt, prompts.DefaultName),
		},
	})
}

func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !settingKeys[key] {
		badRequest(w, "unknown setting "+key)
		return
	}
	var req struct {
		Value string `json:"value"`
	}
	if !decode(w, r, &req) {
		return
	}
	value := strings.TrimSpace(req.Value)
	if key == model.SettingActivePrompt && value != "" {
		if _, err := s.deps.Library.Resolve(value); err != nil {
			writeError(w, err)
			return
		}
	}
	synced := s.deps.Settings.Put(r.Context(), key, value)
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": value, "sync": syncOf(synced)})
}
