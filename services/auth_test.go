package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	ts := NewTokenService("test-secret")

	token, err := ts.Issue("ABCD", "player-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ts.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "ABCD", claims.RoomCode)
	assert.Equal(t, "player-1", claims.PlayerID)
}

func TestTokenRejectedAcrossSecrets(t *testing.T) {
	token, err := NewTokenService("secret-a").Issue("ABCD", "player-1")
	require.NoError(t, err)

	_, err = NewTokenService("secret-b").Parse(token)
	assert.Error(t, err)
}

func TestGarbageTokenRejected(t *testing.T) {
	ts := NewTokenService("test-secret")
	_, err := ts.Parse("not-a-token")
	assert.Error(t, err)
}
