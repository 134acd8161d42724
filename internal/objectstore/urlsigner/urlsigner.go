// Package urlsigner issues and verifies signed URL grants for object store
// backends without native presigning (memory, file). A grant binds one object
// key to one HTTP method and an expiry; the delivery edge verifies the token
// before streaming bytes.
package urlsigner

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"docket/pkg/platform/sentinel"
)

// Grant is the verified content of a signed URL token.
type Grant struct {
	Key      string
	Method   string
	Filename string
}

// Claims is the JWT claim set for a URL grant.
type Claims struct {
	Key      string `json:"key"`
	Method   string `json:"method"`
	Filename string `json:"filename,omitempty"`
	jwt.RegisteredClaims
}

// Signer mints and verifies HS256 URL grants.
type Signer struct {
	signingKey []byte
	issuer     string
}

// New constructs a Signer. The key must match the delivery edge's verifier.
func New(signingKey string, issuer string) *Signer {
	return &Signer{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// Sign mints a grant token for the given key and method.
func (s *Signer) Sign(grant Grant, now time.Time, expiry time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Key:      grant.Key,
		Method:   grant.Method,
		Filename: grant.Filename,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// Verify validates a grant token and returns its content.
//
// Errors: sentinel.ErrExpired for expired grants, sentinel.ErrInvalidState
// for everything else (bad signature, wrong method, malformed token).
func (s *Signer) Verify(tokenString string) (Grant, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Grant{}, sentinel.ErrExpired
		}
		return Grant{}, sentinel.ErrInvalidState
	}
	if !parsed.Valid {
		return Grant{}, sentinel.ErrInvalidState
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return Grant{}, sentinel.ErrInvalidState
	}
	return Grant{Key: claims.Key, Method: claims.Method, Filename: claims.Filename}, nil
}
