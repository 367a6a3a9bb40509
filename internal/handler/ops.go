package handler

import (
	"context"
	"errors"
	"net/http"

	"discuit_search/internal/service"
)

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health reports whether the store and the index are reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Checks: map[string]string{}}
	status := http.StatusOK

	check := func(name string, err error) {
		if err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			return
		}
		resp.Checks[name] = "ok"
	}
	if h.db != nil {
		check("database", h.db.PingContext(r.Context()))
	}
	if h.searcher != nil {
		check("search", h.searcher.Health(r.Context()))
	}

	writeJSON(w, status, resp)
}

// Reconcile runs a reconciliation pass and returns its statistics.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if h.reconciler.Running() {
		writeError(w, http.StatusConflict, service.ErrReconcileRunning.Error())
		return
	}

	// The pass outlives a client that stops waiting for it.
	stats, err := h.reconciler.Run(context.WithoutCancel(r.Context()))
	if errors.Is(err, service.ErrReconcileRunning) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("reconciliation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "reconciliation failed")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
