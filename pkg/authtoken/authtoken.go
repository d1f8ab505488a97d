package authtoken

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/clinicore/consulta-engine/errors"
)

// Source provides the bearer token attached to every backend call.
// Implementations may refresh tokens out of band; the engine only reads.
type Source interface {
	Token(ctx context.Context) (string, error)
}

// StaticSource holds a fixed bearer token for the lifetime of the engine.
type StaticSource struct {
	token string
}

// NewStaticSource creates a source around a fixed token.
func NewStaticSource(token string) *StaticSource {
	return &StaticSource{token: token}
}

// Token returns the configured token. If the token is a JWT with an exp
// claim that has already passed, the call fails before any network I/O
// so an expired credential surfaces as a validation error, not a 401.
func (s *StaticSource) Token(ctx context.Context) (string, error) {
	if s.token == "" {
		return "", errors.ErrValidation("No API credential configured")
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(s.token, claims); err != nil {
		// Opaque (non-JWT) tokens are passed through as-is.
		return s.token, nil
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return s.token, nil
	}
	if time.Now().After(exp.Time) {
		return "", errors.ErrValidation("API credential has expired").
			WithDetail("expired_at", exp.Time.Format(time.RFC3339))
	}

	return s.token, nil
}
