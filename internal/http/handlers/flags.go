package handlers

import "net/http"

// RefreshFlags re-reads the feature-flag source and returns the live set.
func (a *App) RefreshFlags(w http.ResponseWriter, r *http.Request) {
	if err := a.Flags.Refresh(); err != nil {
		a.Logger.Error().Err(err).Msg("handlers: flag refresh failed")
		a.error(w, r, http.StatusInternalServerError, "internal")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"flags": a.Flags.Snapshot()})
}
