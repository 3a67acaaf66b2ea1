// internal/auth/token_test.go
package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconnectTokenRoundTrip(t *testing.T) {
	require.NoError(t, Init("test-secret"))

	token, err := CreateReconnectToken("player-123")
	require.NoError(t, err)

	playerID, err := VerifyReconnectToken(token)
	require.NoError(t, err)
	assert.Equal(t, "player-123", playerID)
}

func TestReconnectTokenRejectsGarbage(t *testing.T) {
	require.NoError(t, Init("test-secret"))

	_, err := VerifyReconnectToken("not-a-token")
	assert.Error(t, err)
}

func TestReconnectTokenRejectsWrongSecret(t *testing.T) {
	require.NoError(t, Init("secret-a"))
	token, err := CreateReconnectToken("player-123")
	require.NoError(t, err)

	require.NoError(t, Init("secret-b"))
	_, err = VerifyReconnectToken(token)
	assert.Error(t, err)
}

func TestInitGeneratesRandomSecret(t *testing.T) {
	require.NoError(t, Init(""))
	token, err := CreateReconnectToken("p1")
	require.NoError(t, err)
	playerID, err := VerifyReconnectToken(token)
	require.NoError(t, err)
	assert.Equal(t, "p1", playerID)
}
