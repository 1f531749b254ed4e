package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")

	tok, err := GenerateToken("admin", secret, time.Hour)
	require.NoError(t, err)

	userID, err := ParseToken(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "admin", userID)
}

func TestParseToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := GenerateToken("u1", secret, -time.Second)
	require.NoError(t, err)

	_, err = ParseToken(tok, secret)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken("u2", []byte("right-secret"), time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(tok, []byte("wrong-secret"))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseToken_Malformed(t *testing.T) {
	t.Parallel()

	_, err := ParseToken("not.a.jwt", []byte("k"))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticator_Login(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	a := NewAuthenticator("jwt-secret", time.Hour, "admin", string(hash))

	t.Run("valid credentials", func(t *testing.T) {
		tok, expires, err := a.Login("admin", "s3cret")
		require.NoError(t, err)
		assert.True(t, expires.After(time.Now()))

		userID, err := a.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, "admin", userID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := a.Login("admin", "nope")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("wrong user", func(t *testing.T) {
		_, _, err := a.Login("root", "s3cret")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("no password configured", func(t *testing.T) {
		empty := NewAuthenticator("jwt-secret", time.Hour, "admin", "")
		_, _, err := empty.Login("admin", "")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestUserContext(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithUser(context.Background(), "admin")
	userID, ok := UserFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "admin", userID)
}
