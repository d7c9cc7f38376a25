package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/spa-auth/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer([]byte("super-secret"), time.Hour)
	userID := "user-123"

	tok, err := issuer.Generate(userID)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if tok.JTI == "" {
		t.Fatalf("expected jti to be set")
	}

	claims, err := issuer.Parse(tok.Token)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if claims.Subject != userID {
		t.Fatalf("userID mismatch: got %q want %q", claims.Subject, userID)
	}
	if claims.ID != tok.JTI {
		t.Fatalf("jti mismatch: got %q want %q", claims.ID, tok.JTI)
	}
	if !claims.ExpiresAt.Time.Equal(tok.ExpiresAt) {
		t.Fatalf("exp mismatch: got %v want %v", claims.ExpiresAt.Time, tok.ExpiresAt)
	}
}

func TestParse_Expired(t *testing.T) {
	t.Parallel()

	now := time.Now()
	issuer := NewTokenIssuer([]byte("secret"), time.Hour).WithClock(func() time.Time { return now })

	tok, err := issuer.Generate("u1")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	issuer.WithClock(func() time.Time { return now.Add(2 * time.Hour) })

	_, err = issuer.Parse(tok.Token)
	if !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected common.ErrTokenExpired, got %v", err)
	}
}

func TestParse_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := NewTokenIssuer([]byte("right-secret"), time.Hour).Generate("u2")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	_, err = NewTokenIssuer([]byte("wrong-secret"), time.Hour).Parse(tok.Token)
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestParse_MalformedString(t *testing.T) {
	t.Parallel()

	_, err := NewTokenIssuer([]byte("k"), time.Hour).Parse("not.a.jwt")
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestParse_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u3",
		ID:        "j",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	_, err = NewTokenIssuer([]byte("k"), time.Hour).Parse(s)
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestParse_MissingSubject(t *testing.T) {
	t.Parallel()

	secret := []byte("k")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        "j",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	s, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	_, err = NewTokenIssuer(secret, time.Hour).Parse(s)
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}
