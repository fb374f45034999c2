package controller

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const flashCookie = "flash"

type flashLevel string

const (
	flashSuccess flashLevel = "success"
	flashInfo    flashLevel = "info"
	flashError   flashLevel = "error"
)

// Flash is the one-shot message rendered by the storefront on the next page.
type Flash struct {
	Level   flashLevel `json:"level"`
	Message string     `json:"message"`
}

// redirectWithFlash stores a localized flash message and sends the browser to target.
func redirectWithFlash(w http.ResponseWriter, r *http.Request, target string, level flashLevel, key string) {
	raw, _ := json.Marshal(Flash{Level: level, Message: translate(r, key)})
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// ReadFlash decodes the flash cookie set on a response.
func ReadFlash(c *http.Cookie) (Flash, bool) {
	var f Flash
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return f, false
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return f, false
	}
	return f, true
}
