package auth

import (
	"errors"
	"time"

	"voicereport-platform/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the only supported tracking-token claims shape for this service.
// A tracking token is issued in the webhook acknowledgement and lets the
// submitter poll status for exactly one conversation.
type Claims struct {
	jwt.RegisteredClaims

	ConversationID string `json:"conversation_id"`
	AccountID      string `json:"account_id"`
}

// Manager issues and verifies HS256 tracking tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

func NewManager(cfg config.WebhookConfig) (*Manager, error) {
	if cfg.TrackingTokenSecret == "" {
		return nil, errors.New("tracking token secret is required")
	}
	ttl := cfg.TrackingTokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{secret: []byte(cfg.TrackingTokenSecret), ttl: ttl}, nil
}

// IssueTrackingToken signs a token scoped to one conversation.
func (m *Manager) IssueTrackingToken(now time.Time, conversationID, accountID string) (string, error) {
	if conversationID == "" {
		return "", errors.New("conversation_id is required")
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.NewString(),
		},
		ConversationID: conversationID,
		AccountID:      accountID,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.secret)
}

// VerifyTrackingToken validates signature and expiry and returns the claims.
func (m *Manager) VerifyTrackingToken(tokenString string, now time.Time) (Claims, error) {
	var claims Claims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)

	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}

	validator := jwt.NewValidator(
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30*time.Second), // clock skew tolerance
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err := validator.Validate(claims.RegisteredClaims); err != nil {
		return Claims{}, err
	}

	if claims.ConversationID == "" {
		return Claims{}, errors.New("conversation_id missing")
	}
	return claims, nil
}
