package server

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/coding-eval/internal/model"
)

const kindBadRequest = "bad_request"

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// syncBody is how durability is reported to clients.
type syncBody struct {
	State model.SyncState `json:"state"`
	Error string          `json:"error,omitempty"`
}

func syncOf(s model.Sync) syncBody {
	b := syncBody{State: s.State}
	if s.Err != nil {
		b.Error = s.Err.Error()
	}
	return b
}

var kindStatus = map[string]int{
	"missing_credential":       http.StatusServiceUnavailable,
	"persistence_unavailable":  http.StatusServiceUnavailable,
	"extraction_parse_failure": http.StatusBadGateway,
	"upstream_call_failure":    http.StatusBadGateway,
	"identifier_not_found":     http.StatusUnprocessableEntity,
	"case_incomplete":          http.StatusUnprocessableEntity,
	"in_flight":                http.StatusConflict,
	"no_candidate":             http.StatusConflict,
	"case_not_found":           http.StatusNotFound,
	"prompt_not_found":         http.StatusNotFound,
}

// statusFor maps an error onto an HTTP status through its taxonomy kind.
func statusFor(kind string) int {
	if st, ok := kindStatus[kind]; ok {
		return st
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := model.ErrorKind(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		zap.L().Error("server: request failed", zap.Error(err))
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Kind: kindBadRequest})
}

// decode reads a JSON body into v, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := jsonDecoder(r.Body).Decode(v); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func jsonDecoder(r io.Reader) *json.Decoder {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec
}
