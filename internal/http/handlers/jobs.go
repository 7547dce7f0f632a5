package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"timelens/internal/middleware"
)

// JobStatus returns the current result of a run owned by the caller.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	runID := chi.URLParam(r, "run_id")
	if runID == "" {
		a.error(w, r, http.StatusBadRequest, "bad_request")
		return
	}

	owner, ok := a.Registry.Owner(runID)
	if !ok || owner != userID {
		a.error(w, r, http.StatusNotFound, "not_found")
		return
	}
	result, ok := a.Registry.Get(runID)
	if !ok {
		a.error(w, r, http.StatusNotFound, "not_found")
		return
	}
	a.json(w, http.StatusOK, viewOf(result))
}
