// internal/auth/session_test.go
package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndAuthenticate(t *testing.T) {
	require.NoError(t, Init(time.Hour))

	token, err := CreateJWT(42, "Alice")
	require.NoError(t, err)

	userID, name, err := AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
	assert.Equal(t, "Alice", name)
}

func TestTamperedTokenRejected(t *testing.T) {
	require.NoError(t, Init(time.Hour))

	token, err := CreateJWT(42, "Alice")
	require.NoError(t, err)

	_, _, err = AuthenticateJWT(token + "x")
	assert.Error(t, err)
}

func TestTokenFromOldKeyRejected(t *testing.T) {
	require.NoError(t, Init(time.Hour))
	token, err := CreateJWT(7, "Bob")
	require.NoError(t, err)

	// A restart rotates the key pair.
	require.NoError(t, Init(time.Hour))
	_, _, err = AuthenticateJWT(token)
	assert.Error(t, err)
}
