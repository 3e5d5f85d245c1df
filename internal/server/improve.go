package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/sells-group/coding-eval/internal/monitoring"
)

func (s *Server) handleImproveStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Improver.Status())
}

// handleImprovePropose blocks until the model answers. The body is optional;
// without it the active prompt is revised.
func (s *Server) handleImprovePropose(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if r.ContentLength != 0 {
		if err := decodeOptional(r, &req); err != nil {
			badRequest(w, "invalid request body: "+err.Error())
			return
		}
	}
	base, err := s.resolvePrompt(req.Prompt)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.deps.Improver.Propose(r.Context(), base); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Improver.Status())
}

func (s *Server) handleImproveAccept(w http.ResponseWriter, r *http.Request) {
	p, synced, err := s.deps.Improver.Accept(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompt": p, "sync": syncOf(synced)})
}

func (s *Server) handleImproveReject(w http.ResponseWriter, _ *http.Request) {
	if err := s.deps.Improver.Reject(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Improver.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.Health.Collect(r.Context())
	status := "ok"
	if snap.Degraded() {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		*monitoring.Snapshot
	}{status, snap})
}

func decodeOptional(r *http.Request, v any) error {
	err := jsonDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
