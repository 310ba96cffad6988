package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// credentialExpiry returns the exp claim of a JWT credential. The signature
// is not checked; the server remains the authority. Opaque tokens report
// ok=false.
func credentialExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
