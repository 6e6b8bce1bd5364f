package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret")
	token, err := svc.GenerateToken("alice")
	require.NoError(t, err)

	userID, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenService("secret-a").GenerateToken("alice")
	require.NoError(t, err)

	_, err = NewTokenService("secret-b").ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenRejectsGarbage(t *testing.T) {
	_, err := NewTokenService("test-secret").ValidateToken("not.a.jwt")
	assert.Error(t, err)
}
