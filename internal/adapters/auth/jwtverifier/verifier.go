// Package jwtverifier implementa auth.AuthVerifier sobre tokens HS256 firmados
// por el proveedor de identidad.
package jwtverifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pet-care-log/internal/ports/auth"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNotConfigured  = errors.New("jwt verifier not configured")
	ErrTokenEmpty     = errors.New("token is empty")
	ErrMissingSubject = errors.New("token missing subject")
)

// TokenClaims es el payload que emite el proveedor. sub es el uid.
type TokenClaims struct {
	Email       string   `json:"email,omitempty"`
	Name        string   `json:"name,omitempty"`
	Provider    string   `json:"provider,omitempty"`
	Providers   []string `json:"providers,omitempty"`
	IsAnonymous bool     `json:"anonymous,omitempty"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

type Option func(*Verifier)

// WithIssuer exige el claim iss.
func WithIssuer(iss string) Option {
	return func(v *Verifier) { v.issuer = strings.TrimSpace(iss) }
}

func WithLeeway(d time.Duration) Option {
	return func(v *Verifier) { v.leeway = d }
}

func New(secret string, opts ...Option) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNotConfigured
	}
	v := &Verifier{secret: []byte(secret), leeway: 30 * time.Second}
	for _, o := range opts {
		o(v)
	}
	return v, nil
}

func (v *Verifier) Verify(_ context.Context, token string) (auth.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrTokenEmpty
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	var tc TokenClaims
	parsed, err := jwt.ParseWithClaims(token, &tc, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("jwt verify failed: %w", err)
	}
	if !parsed.Valid {
		return auth.Claims{}, errors.New("jwt verify failed: invalid token")
	}

	uid := strings.TrimSpace(tc.Subject)
	if uid == "" {
		return auth.Claims{}, ErrMissingSubject
	}

	return auth.Claims{
		UserID:      uid,
		Email:       strings.TrimSpace(tc.Email),
		Name:        strings.TrimSpace(tc.Name),
		Provider:    strings.TrimSpace(tc.Provider),
		Providers:   tc.Providers,
		IsAnonymous: tc.IsAnonymous,
	}, nil
}

// Sign emite un token con las mismas claims; lo usan los tests y las
// herramientas de desarrollo.
func (v *Verifier) Sign(c auth.Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	tc := TokenClaims{
		Email:       c.Email,
		Name:        c.Name,
		Provider:    c.Provider,
		Providers:   c.Providers,
		IsAnonymous: c.IsAnonymous,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString(v.secret)
}

var _ auth.AuthVerifier = (*Verifier)(nil)
