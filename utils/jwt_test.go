package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	token, err := tm.GenerateToken(7, "cashier", 3)
	require.NoError(t, err)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "cashier", claims.Role)
	assert.Equal(t, uint(3), claims.TenantID)
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	token, err := NewTokenManager("one", time.Hour).GenerateToken(1, "owner", 1)
	require.NoError(t, err)

	_, err = NewTokenManager("two", time.Hour).ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	tm := NewTokenManager("secret", time.Nanosecond)
	token, err := tm.GenerateToken(1, "owner", 1)
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)

	_, err = tm.ParseToken(token)
	assert.Error(t, err)
}
