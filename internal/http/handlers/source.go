package handlers

import (
	"encoding/json"
	"net/http"

	"timelens/internal/source"
)

type sourceRequest struct {
	URL string `json:"url"`
}

// SetSource records the uploaded asset URL and re-kicks the runner, since a
// finished upload is the event that can make a queued intent runnable.
func (a *App) SetSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request")
		return
	}
	if !source.IsSecureURL(req.URL) {
		a.error(w, r, http.StatusUnprocessableEntity, "invalid_source")
		return
	}

	a.Gate.Set(req.URL)
	outcome, err := a.Runner.RunIfReady(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: kick after upload failed")
		a.error(w, r, http.StatusInternalServerError, "internal")
		return
	}
	if !outcome.Ran {
		// No pending intent, or a run already in flight. The source is
		// stored either way.
		a.json(w, http.StatusOK, map[string]any{"status": "source_set"})
		return
	}
	a.respondOutcome(w, r, outcome)
}

// ClearSource drops the stored source URL.
func (a *App) ClearSource(w http.ResponseWriter, r *http.Request) {
	a.Gate.Clear()
	a.json(w, http.StatusOK, map[string]any{"status": "source_cleared"})
}
