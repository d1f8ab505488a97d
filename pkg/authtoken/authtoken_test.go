package authtoken

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/clinicore/consulta-engine/errors"
)

func signedJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
		"sub": "provider-1",
	})
	signed, err := token.SignedString([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestOpaqueTokenPassesThrough(t *testing.T) {
	s := NewStaticSource("opaque-api-key")
	token, err := s.Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if token != "opaque-api-key" {
		t.Fatalf("token = %q", token)
	}
}

func TestValidJWTPassesThrough(t *testing.T) {
	raw := signedJWT(t, time.Now().Add(time.Hour))
	s := NewStaticSource(raw)
	token, err := s.Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if token != raw {
		t.Fatal("token was altered")
	}
}

func TestExpiredJWTFails(t *testing.T) {
	s := NewStaticSource(signedJWT(t, time.Now().Add(-time.Minute)))
	_, err := s.Token(context.Background())
	if !errors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEmptyTokenFails(t *testing.T) {
	s := NewStaticSource("")
	if _, err := s.Token(context.Background()); !errors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
