package pbclient

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthStore holds the authentication state attached to a single Client
// instance: the data-service token and the authenticated record. One store
// exists per client, and one client exists per inbound request, so there is
// no cross-request sharing.
type AuthStore struct {
	token  string
	record map[string]any
}

// Token returns the current auth token, or "" when anonymous.
func (s *AuthStore) Token() string {
	return s.token
}

// Record returns the authenticated user or admin record, or nil.
func (s *AuthStore) Record() map[string]any {
	return s.record
}

// Save replaces the stored auth state.
func (s *AuthStore) Save(token string, record map[string]any) {
	s.token = token
	s.record = record
}

// Clear wipes the stored auth state.
func (s *AuthStore) Clear() {
	s.token = ""
	s.record = nil
}

// IsValid reports whether the stored token exists and has not expired. The
// data service issues standard JWTs; validity here is only an exp check on
// the unverified claims - signature verification is the data service's job,
// and every call it receives re-checks the token anyway.
func (s *AuthStore) IsValid() bool {
	if s.token == "" {
		return false
	}
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(s.token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Time.After(time.Now())
}
