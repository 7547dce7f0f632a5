package handlers

import (
	"encoding/json"
	"net/http"

	"timelens/internal/domain"
	"timelens/internal/middleware"
	"timelens/internal/orchestrator"
)

type intentRequest struct {
	Kind      string `json:"kind"`
	PresetID  string `json:"preset_id"`
	OptionKey string `json:"option_key"`
	Theme     string `json:"theme"`
}

type resultView struct {
	RunID        string `json:"run_id"`
	State        string `json:"state"`
	Backend      string `json:"backend,omitempty"`
	OutputURL    string `json:"output_url,omitempty"`
	Reason       string `json:"reason,omitempty"`
	FallbackUsed bool   `json:"fallback_used,omitempty"`
}

// SubmitIntent queues the intent and immediately attempts a kick. The slot
// overwrites: submitting while another intent is pending replaces it.
func (a *App) SubmitIntent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	deviceID := middleware.DeviceIDFromContext(r.Context())

	var req intentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request")
		return
	}

	intent, ok := parseIntent(req, userID, deviceID)
	if !ok {
		a.error(w, r, http.StatusBadRequest, "bad_request")
		return
	}

	ip := middleware.ClientIP(r)
	a.Engine.ObserveRequest(deviceID, userID, ip)
	if report := a.Engine.CheckAbuse(deviceID, ip); report.Flagged {
		// Advisory only; flagged traffic is logged, not blocked.
		a.Logger.Warn().
			Str("user_id", userID).
			Str("device_id", deviceID).
			Str("reason", report.Reason).
			Str("country", report.Country).
			Msg("handlers: abuse heuristic flagged request")
	}

	a.Slot.Set(intent)
	outcome, err := a.Runner.RunIfReady(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("handlers: intent run failed")
		a.error(w, r, http.StatusInternalServerError, "internal")
		return
	}
	a.respondOutcome(w, r, outcome)
}

func parseIntent(req intentRequest, userID, deviceID string) (domain.Intent, bool) {
	intent := domain.Intent{UserID: userID, DeviceID: deviceID}
	switch domain.IntentKind(req.Kind) {
	case domain.IntentPreset:
		if req.PresetID == "" {
			return domain.Intent{}, false
		}
		intent.Kind = domain.IntentPreset
		intent.PresetID = req.PresetID
	case domain.IntentTimeMachine:
		if req.OptionKey == "" {
			return domain.Intent{}, false
		}
		intent.Kind = domain.IntentTimeMachine
		intent.OptionKey = req.OptionKey
	case domain.IntentRestore:
		if req.OptionKey == "" {
			return domain.Intent{}, false
		}
		intent.Kind = domain.IntentRestore
		intent.OptionKey = req.OptionKey
	case domain.IntentStory:
		if req.Theme == "" {
			return domain.Intent{}, false
		}
		intent.Kind = domain.IntentStory
		intent.Theme = req.Theme
	default:
		return domain.Intent{}, false
	}
	return intent, true
}

// respondOutcome translates a run outcome into an HTTP response. Business
// denials carry structured bodies; only genuine faults become 5xx.
func (a *App) respondOutcome(w http.ResponseWriter, r *http.Request, outcome orchestrator.Outcome) {
	locale := middleware.LocaleFromContext(r.Context())
	switch {
	case !outcome.Ran:
		a.json(w, http.StatusAccepted, map[string]any{
			"status":  "busy",
			"message": message("busy", locale),
		})
	case outcome.SourceNotReady:
		a.error(w, r, http.StatusUnprocessableEntity, "source_not_ready")
	case outcome.Unavailable:
		a.error(w, r, http.StatusServiceUnavailable, "unavailable")
	case outcome.Denied != nil:
		a.json(w, http.StatusTooManyRequests, map[string]any{
			"error":      "quota_denied",
			"code":       "quota_denied",
			"message":    message("quota_denied", locale),
			"reason":     outcome.Denied.Reason,
			"remaining":  outcome.Denied.Remaining,
			"retry_in_s": int(outcome.Denied.RetryIn.Seconds()),
		})
	default:
		views := make([]resultView, 0, len(outcome.Results))
		for _, result := range outcome.Results {
			views = append(views, viewOf(result))
		}
		a.json(w, http.StatusOK, map[string]any{"results": views})
	}
}

func viewOf(result domain.GenerationResult) resultView {
	return resultView{
		RunID:        result.RunID,
		State:        string(result.State),
		Backend:      result.Backend,
		OutputURL:    result.OutputURL,
		Reason:       result.Reason,
		FallbackUsed: result.FallbackUsed,
	}
}
