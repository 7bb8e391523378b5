package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pocketbase/pocketbase/core"
	"go.uber.org/zap"
)

// SetToast sets the HX-Trigger response header to show a toast notification
// on the client via HTMX. If an HX-Trigger header already exists, the toast
// payload is merged into the existing JSON object.
// It also sets a flash cookie so toasts survive regular (non-HTMX) redirects.
func SetToast(e *core.RequestEvent, toastType string, message string) {
	log := requestLogger(e).With(zap.String("component", "toast"))

	toast := map[string]any{
		"showToast": map[string]string{
			"message": message,
			"type":    toastType,
		},
	}

	existing := e.Response.Header().Get("HX-Trigger")
	if existing == "" {
		data, err := json.Marshal(toast)
		if err != nil {
			log.Error("failed to marshal HX-Trigger JSON", zap.Error(err))
			return
		}
		e.Response.Header().Set("HX-Trigger", string(data))
	} else {
		var merged map[string]any
		if err := json.Unmarshal([]byte(existing), &merged); err != nil {
			log.Warn("existing HX-Trigger is not valid JSON, overwriting", zap.Error(err))
			data, err := json.Marshal(toast)
			if err != nil {
				log.Error("failed to marshal HX-Trigger JSON", zap.Error(err))
				return
			}
			e.Response.Header().Set("HX-Trigger", string(data))
		} else {
			merged["showToast"] = toast["showToast"]
			data, err := json.Marshal(merged)
			if err != nil {
				log.Error("failed to marshal merged HX-Trigger JSON", zap.Error(err))
				return
			}
			e.Response.Header().Set("HX-Trigger", string(data))
		}
	}

	// Also set a flash cookie for non-HTMX redirects (302) where HX-Trigger is lost
	toastData := map[string]string{"message": message, "type": toastType}
	cookieVal, err := json.Marshal(toastData)
	if err == nil {
		http.SetCookie(e.Response, &http.Cookie{
			Name:     "flash_toast",
			Value:    url.QueryEscape(string(cookieVal)),
			Path:     "/",
			MaxAge:   10,
			HttpOnly: false, // JS needs to read it
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// WarningToasts shows one warning toast summarising partial-total warnings.
// Nothing is set when there are no warnings.
func WarningToasts(e *core.RequestEvent, warnings []string) {
	switch len(warnings) {
	case 0:
		return
	case 1:
		SetToast(e, "warning", "Total may be incomplete: "+warnings[0])
	default:
		SetToast(e, "warning", "Total may be incomplete: some cost lines could not be loaded")
	}
}

// ErrorJSON writes a JSON error body and sets an error toast. HX-Reswap is
// set to none so HTMX does not swap the error body into the page.
func ErrorJSON(e *core.RequestEvent, statusCode int, message string) error {
	SetToast(e, "error", message)
	e.Response.Header().Set("HX-Reswap", "none")
	return e.JSON(statusCode, map[string]string{"error": message})
}
