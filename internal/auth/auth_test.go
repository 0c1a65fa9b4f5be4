package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *Manager {
	return &Manager{
		Secret:     []byte("test-secret"),
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		Issuer:     "wisebox-backend",
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := testManager()
	token, err := m.NewAccessToken("user-1", "user")
	require.NoError(t, err)

	claims, err := m.ParseKind(token, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, "wisebox-backend", claims.Issuer)

	_, err = m.ParseKind(token, TokenRefresh)
	assert.Error(t, err)
}

func TestParseRejectsForeignAndExpiredTokens(t *testing.T) {
	m := testManager()
	other := testManager()
	other.Secret = []byte("another-secret")

	token, err := other.NewAccessToken("user-1", "admin")
	require.NoError(t, err)
	_, err = m.Parse(token)
	assert.Error(t, err)

	m.AccessTTL = -time.Minute
	expired, err := m.NewAccessToken("user-1", "admin")
	require.NoError(t, err)
	_, err = m.Parse(expired)
	assert.Error(t, err)

	_, err = m.Parse("not-a-token")
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)
	assert.NoError(t, ComparePassword(hash, "s3cret-pass"))
	assert.ErrorIs(t, ComparePassword(hash, "wrong"), ErrPasswordMismatch)

	_, err = HashPassword("")
	assert.Error(t, err)
	assert.ErrorIs(t, ComparePassword("", "x"), ErrPasswordMismatch)

	_, err = HashPassword(strings.Repeat("a", 73))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}
