package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"wablast/internal/clock"
	"wablast/internal/lifecycle"
	logx "wablast/pkg/logx"
)

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, `{"status":"ok"}`)
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, errCode := statusFor(err)
	if code >= http.StatusInternalServerError && code != http.StatusServiceUnavailable {
		h.log.Error("request failed", logx.String("method", r.Method), logx.String("path", r.URL.Path), logx.Err(err))
	}
	writeError(w, code, errCode, err)
}

func (h *handlers) createJob(w http.ResponseWriter, r *http.Request) {
	var req lifecycle.CreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	code := http.StatusCreated
	if res.Immediate {
		code = http.StatusAccepted
	}
	writeJSON(w, code, res)
}

func (h *handlers) listJobs(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []lifecycle.Detail{}
	}
	writeJSON(w, http.StatusOK, list)
}

type idResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (h *handlers) cancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.svc.Cancel(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, idResponse{ID: id, Message: "Jadwal dibatalkan"})
}

func (h *handlers) pauseJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.svc.Pause(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, idResponse{ID: id, Message: "Jadwal dijeda"})
}

func (h *handlers) resumeJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.svc.Resume(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, idResponse{ID: id, Message: "Jadwal dilanjutkan"})
}

type validateRequest struct {
	Numbers []string `json:"numbers"`
}

func (h *handlers) validateNumbers(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	numbers := make([]string, 0, len(req.Numbers))
	for _, n := range req.Numbers {
		if n = strings.TrimSpace(n); n != "" {
			numbers = append(numbers, n)
		}
	}
	if len(numbers) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", errors.New("numbers is empty"))
		return
	}
	runID, err := h.svc.StartValidation(r.Context(), numbers)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"runId": runID, "total": len(numbers)})
}

func (h *handlers) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.Groups(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

type statusResponse struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	res := statusResponse{Status: "disconnected"}
	if h.svc.Connected() {
		res = statusResponse{Status: "connected", Connected: true}
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) timeStatus(w http.ResponseWriter, r *http.Request) {
	if h.time == nil {
		now := time.Now()
		writeJSON(w, http.StatusOK, clock.Status{SystemTime: now, SyncedTime: now, LastSync: now})
		return
	}
	writeJSON(w, http.StatusOK, h.time.Status())
}
