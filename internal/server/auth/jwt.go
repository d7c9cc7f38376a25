// Package auth holds the access-token issuer, the password hasher, signed
// links and the per-request AuthContext.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/spa-auth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the registered claims of an access token. Subject carries the
// user id and ID (jti) identifies the token for the logout denylist.
type Claims struct {
	jwt.RegisteredClaims
}

// AccessToken is a freshly minted bearer token.
type AccessToken struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	i.now = now
	return i
}

// TTL is the lifetime of tokens minted by Generate.
func (i *TokenIssuer) TTL() time.Duration { return i.ttl }

// Generate mints an access token for userID.
func (i *TokenIssuer) Generate(userID string) (*AccessToken, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	jti := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return nil, err
	}

	return &AccessToken{Token: signed, JTI: jti, ExpiresAt: exp.Truncate(time.Second)}, nil
}

// Parse verifies the signature and expiry of tokenString and returns its claims.
// Expired tokens yield common.ErrTokenExpired, anything else wrong yields
// common.ErrInvalidToken.
func (i *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
