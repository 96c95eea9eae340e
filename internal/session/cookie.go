// Package session bridges auth state between the pb_auth cookie and the
// per-request data-service client. The cookie value is the base64-encoded
// JSON {token, model} pair; parse failures are treated as an anonymous
// session, never surfaced.
package session

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"
)

const (
	CookieName = "pb_auth"
	// MaxAge is 30 days, matching the data-service token lifetime.
	MaxAge = 30 * 24 * 60 * 60
)

// Payload is the auth state persisted in the cookie.
type Payload struct {
	Token string         `json:"token"`
	Model map[string]any `json:"model,omitempty"`
}

// Decode extracts the session payload from a raw Cookie request header.
// The bool is false for a missing cookie or any parse error.
func Decode(cookieHeader string) (Payload, bool) {
	if cookieHeader == "" {
		return Payload{}, false
	}
	cookies, err := http.ParseCookie(cookieHeader)
	if err != nil {
		// ParseCookie rejects the whole header on one bad pair; fall back
		// to scanning for ours.
		cookies = lenientParse(cookieHeader)
	}
	for _, cookie := range cookies {
		if cookie.Name != CookieName {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(cookie.Value)
		if err != nil {
			return Payload{}, false
		}
		var payload Payload
		if err := json.Unmarshal(decoded, &payload); err != nil {
			return Payload{}, false
		}
		if payload.Token == "" {
			return Payload{}, false
		}
		return payload, true
	}
	return Payload{}, false
}

// Encode serializes the payload into a cookie value.
func Encode(payload Payload) string {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(encoded)
}

// AuthCookie issues the session cookie. Always HttpOnly so the token is never
// visible to client-side script; Secure only in production so local
// plain-HTTP development keeps working.
func AuthCookie(payload Payload, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    Encode(payload),
		Path:     "/",
		MaxAge:   MaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// ClearCookie issues an immediately expiring cookie with the same attributes,
// used on logout.
func ClearCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func lenientParse(header string) []*http.Cookie {
	request := http.Request{Header: http.Header{"Cookie": {header}}}
	return request.Cookies()
}
