package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	token, err := GenerateJWT(secret, "c-1", "alice@example.com", time.Now(), time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "c-1", claims.ID)
	assert.Equal(t, "alice@example.com", claims.Email)
}

func TestJWTRejectsExpiredAndForeignTokens(t *testing.T) {
	secret := []byte("test-secret")

	expired, err := GenerateJWT(secret, "c-1", "alice@example.com", time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)
	_, err = ParseJWT(secret, expired)
	assert.Error(t, err)

	foreign, err := GenerateJWT([]byte("other"), "c-1", "alice@example.com", time.Now(), time.Hour)
	require.NoError(t, err)
	_, err = ParseJWT(secret, foreign)
	assert.Error(t, err)
}

func TestGenerateJWTNeedsSecret(t *testing.T) {
	_, err := GenerateJWT(nil, "c-1", "alice@example.com", time.Now(), time.Hour)
	assert.Error(t, err)
}
