package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"training-progress-service/internal/app"
)

// StatusHandler serves read-mostly JSON endpoints for dashboards and
// clients that do not keep a websocket open.
type StatusHandler struct {
	service *app.ProgressService
	logger  *slog.Logger
}

func NewStatusHandler(service *app.ProgressService, logger *slog.Logger) *StatusHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusHandler{service: service, logger: logger}
}

// Register mounts the routes on mux.
func (h *StatusHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /learners/{learnerID}/overview", h.overview)
	mux.HandleFunc("GET /learners/{learnerID}/points", h.points)
	mux.HandleFunc("GET /learners/{learnerID}/rewards", h.rewards)
	mux.HandleFunc("POST /learners/{learnerID}/rewards/{rewardID}/claim", h.claim)
	mux.HandleFunc("POST /learners/{learnerID}/refresh", h.refresh)
}

func (h *StatusHandler) overview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.service.Overview(r.Context(), r.PathValue("learnerID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ov)
}

func (h *StatusHandler) points(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.service.Ledger(r.Context(), r.PathValue("learnerID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ledger)
}

func (h *StatusHandler) rewards(w http.ResponseWriter, r *http.Request) {
	l, err := h.service.Join(r.Context(), r.PathValue("learnerID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer h.release(r)
	h.writeJSON(w, http.StatusOK, l.ListRewards())
}

func (h *StatusHandler) claim(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.ClaimReward(r.Context(), r.PathValue("learnerID"), r.PathValue("rewardID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, st)
}

func (h *StatusHandler) refresh(w http.ResponseWriter, r *http.Request) {
	l, err := h.service.Join(r.Context(), r.PathValue("learnerID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer h.release(r)
	h.writeJSON(w, http.StatusOK, l.Refresh(r.Context()))
}

// release ends the Join made by the handler.
func (h *StatusHandler) release(r *http.Request) {
	h.service.Leave(r.Context(), r.PathValue("learnerID"))
}

func (h *StatusHandler) writeError(w http.ResponseWriter, err error) {
	p, status := toErrorPayload(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "err", err)
	}
	h.writeJSON(w, status, p)
}

func (h *StatusHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("write response", "err", err)
	}
}
