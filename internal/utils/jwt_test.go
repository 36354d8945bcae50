package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParseJWT(t *testing.T) {
	tok, err := SignJWT("secret", "user-1", "seller", 5)
	require.NoError(t, err)

	claims, err := ParseJWT("secret", tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "seller", claims.Role)

	_, err = ParseJWT("other", tok)
	assert.Error(t, err)
}

func TestParseJWTExpired(t *testing.T) {
	tok, err := SignJWT("secret", "user-1", "buyer", -1)
	require.NoError(t, err)

	_, err = ParseJWT("secret", tok)
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong horse"))
}
