package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccessTokenRoundTrip(t *testing.T) {
	secret := "test-secret"
	at, err := NewAccessToken(secret, 42, "alice@example.com", 15)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), at.Exp, 5*time.Second)

	tok, err := jwt.Parse(at.Token, func(tok *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	require.NoError(t, err)
	require.True(t, tok.Valid)

	claims, ok := tok.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, float64(42), claims["sub"])
	assert.Equal(t, "alice@example.com", claims["email"])
	// The role never rides in the token.
	_, hasRole := claims["role"]
	assert.False(t, hasRole)
}

func TestNewAccessTokenRejectsWrongSecret(t *testing.T) {
	at, err := NewAccessToken("right-secret", 1, "a@b.c", 15)
	require.NoError(t, err)

	_, err = jwt.Parse(at.Token, func(tok *jwt.Token) (interface{}, error) {
		return []byte("wrong-secret"), nil
	})
	assert.Error(t, err)
}

func TestNewRefreshToken(t *testing.T) {
	r1, err := NewRefreshToken(30)
	require.NoError(t, err)
	r2, err := NewRefreshToken(30)
	require.NoError(t, err)

	assert.Len(t, r1.Raw, 96)
	assert.NotEqual(t, r1.Raw, r2.Raw)
	assert.WithinDuration(t, time.Now().UTC().Add(30*24*time.Hour), r1.Exp, 5*time.Second)
}

func TestHashToken(t *testing.T) {
	h := HashToken("some-token")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashToken("some-token"))
	assert.NotEqual(t, h, HashToken("other-token"))
}
