package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"wablast/internal/dispatch"
	"wablast/internal/job"
	"wablast/internal/lifecycle"
)

const maxBodyBytes = 1 << 20

// decodeJSON decodes the request body into dst. On failure the error
// response is already written and false is returned.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, code int, errCode string, err error) {
	writeJSON(w, code, errorBody{Error: errCode, Message: err.Error()})
}

// statusFor maps service errors to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, job.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, lifecycle.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, dispatch.ErrTransportUnavailable):
		return http.StatusServiceUnavailable, "transport_unavailable"
	case errors.Is(err, lifecycle.ErrGroupsUnsupported), errors.Is(err, dispatch.ErrCheckUnsupported):
		return http.StatusNotImplemented, "unsupported"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
