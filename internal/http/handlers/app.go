package handlers

import (
	"encoding/json"
	"net/http"

	"timelens/internal/flags"
	"timelens/internal/infra"
	"timelens/internal/middleware"
	"timelens/internal/orchestrator"
	"timelens/internal/quota"
	"timelens/internal/source"
)

// App bundles the orchestration collaborators the HTTP layer needs.
type App struct {
	Slot     *orchestrator.Slot
	Gate     *source.Gate
	Runner   *orchestrator.Runner
	Registry *orchestrator.Registry
	Engine   *quota.Engine
	Flags    *flags.Store
	Logger   *infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code string) {
	locale := middleware.LocaleFromContext(r.Context())
	a.json(w, status, errorBody{Error: code, Code: code, Message: message(code, locale)})
}

// User-facing messages keyed by error code and locale.
var messages = map[string]map[string]string{
	"source_not_ready": {
		"en": "Pick a photo or video first.",
		"id": "Pilih foto atau video terlebih dahulu.",
	},
	"unavailable": {
		"en": "This option is temporarily unavailable.",
		"id": "Opsi ini sedang tidak tersedia.",
	},
	"quota_denied": {
		"en": "You have reached your generation limit.",
		"id": "Anda telah mencapai batas pembuatan.",
	},
	"busy": {
		"en": "A generation is already in progress.",
		"id": "Proses pembuatan sedang berjalan.",
	},
	"bad_request": {
		"en": "Invalid request payload.",
		"id": "Permintaan tidak valid.",
	},
	"invalid_source": {
		"en": "Source must be a secure https URL.",
		"id": "Sumber harus berupa URL https yang aman.",
	},
	"not_found": {
		"en": "Not found.",
		"id": "Tidak ditemukan.",
	},
	"internal": {
		"en": "Something went wrong. Please try again.",
		"id": "Terjadi kesalahan. Silakan coba lagi.",
	},
}

func message(code, locale string) string {
	byLocale, ok := messages[code]
	if !ok {
		return code
	}
	if msg, ok := byLocale[locale]; ok {
		return msg
	}
	return byLocale["en"]
}
