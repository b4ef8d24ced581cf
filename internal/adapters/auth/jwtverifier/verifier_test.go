package jwtverifier

import (
	"context"
	"testing"
	"time"

	"pet-care-log/internal/ports/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New("  ")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestVerify_RoundTrip(t *testing.T) {
	v, err := New("s3cret", WithIssuer("pet-care"))
	require.NoError(t, err)

	in := auth.Claims{
		UserID:    "u1",
		Email:     "ana@example.com",
		Name:      "Ana",
		Providers: []string{"google.com"},
	}
	tok, err := v.Sign(in, time.Hour)
	require.NoError(t, err)

	got, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestVerify_Rejects(t *testing.T) {
	v, err := New("s3cret", WithIssuer("pet-care"), WithLeeway(0))
	require.NoError(t, err)
	other, err := New("other", WithIssuer("pet-care"))
	require.NoError(t, err)
	noIssuer, err := New("s3cret")
	require.NoError(t, err)

	wrongKey, _ := other.Sign(auth.Claims{UserID: "u1"}, time.Hour)
	expired, _ := v.Sign(auth.Claims{UserID: "u1"}, -time.Minute)
	noSub, _ := v.Sign(auth.Claims{Email: "a@b.c"}, time.Hour)
	badIss, _ := noIssuer.Sign(auth.Claims{UserID: "u1"}, time.Hour)

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "u1",
		Issuer:    "pet-care",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := map[string]string{
		"empty":     "",
		"garbage":   "abc.def.ghi",
		"wrong key": wrongKey,
		"expired":   expired,
		"issuer":    badIss,
		"alg none":  none,
	}
	for name, tok := range cases {
		_, err := v.Verify(context.Background(), tok)
		assert.Error(t, err, name)
	}

	_, err = v.Verify(context.Background(), noSub)
	assert.ErrorIs(t, err, ErrMissingSubject)
}
