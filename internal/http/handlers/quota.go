package handlers

import (
	"net/http"

	"timelens/internal/middleware"
)

type quotaResponse struct {
	DailyUsage  int `json:"daily_usage"`
	DailyLimit  int `json:"daily_limit"`
	WeeklyUsage int `json:"weekly_usage"`
	WeeklyLimit int `json:"weekly_limit"`
	TotalUsage  int `json:"total_usage"`
	Remaining   int `json:"remaining"`
}

// Quota reports the caller's current usage and remaining allowance.
func (a *App) Quota(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	usage, err := a.Engine.Usage(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("handlers: quota lookup failed")
		a.error(w, r, http.StatusInternalServerError, "internal")
		return
	}
	a.json(w, http.StatusOK, quotaResponse{
		DailyUsage:  usage.DailyUsage,
		DailyLimit:  usage.DailyLimit,
		WeeklyUsage: usage.WeeklyUsage,
		WeeklyLimit: usage.WeeklyLimit,
		TotalUsage:  usage.TotalUsage,
		Remaining:   usage.Remaining,
	})
}
