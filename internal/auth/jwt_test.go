package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyToken(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	token, err := m.IssueToken("user-123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := m.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	token, err := NewManager("secret-a", time.Hour).IssueToken("user-123")
	require.NoError(t, err)

	_, err = NewManager("secret-b", time.Hour).VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyToken_Expired(t *testing.T) {
	m := NewManager("test-secret", -time.Minute)
	token, err := m.IssueToken("user-123")
	require.NoError(t, err)

	_, err = m.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyToken_Garbage(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	_, err := m.VerifyToken("not-a-token")
	assert.Error(t, err)
}
