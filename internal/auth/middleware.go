package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// RequireSharedSecret verifies the fixed bearer secret on every call.
// Constant-time comparison; no identity is attached since the secret is
// shared by all webhook callers.
func RequireSharedSecret(secret string) gin.HandlerFunc {
	expected := []byte(secret)
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
		if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "missing bearer token"})
			return
		}
		tok := strings.TrimPrefix(raw, bearerPrefix)

		if subtle.ConstantTimeCompare([]byte(tok), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid token"})
			return
		}

		c.Next()
	}
}

const trackingClaimsKey = "trackingClaims"

// RequireSecretOrTrackingToken accepts either the shared secret or a valid
// tracking token. Tracking-token callers get their claims attached to the
// context so handlers can scope access to the token's conversation.
func RequireSecretOrTrackingToken(secret string, m *Manager) gin.HandlerFunc {
	expected := []byte(secret)
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
		if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "missing bearer token"})
			return
		}
		tok := strings.TrimPrefix(raw, bearerPrefix)

		if subtle.ConstantTimeCompare([]byte(tok), expected) == 1 {
			c.Next()
			return
		}
		if m != nil {
			claims, err := m.VerifyTrackingToken(tok, time.Now())
			if err == nil {
				c.Set(trackingClaimsKey, claims)
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid token"})
	}
}

// TrackingClaims returns the claims attached by RequireSecretOrTrackingToken,
// if the caller authenticated with a tracking token.
func TrackingClaims(c *gin.Context) (Claims, bool) {
	if v, ok := c.Get(trackingClaimsKey); ok {
		if claims, ok := v.(Claims); ok {
			return claims, true
		}
	}
	return Claims{}, false
}
