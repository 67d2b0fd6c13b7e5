package utils_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestLoadOrCreateDeviceKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "device.key")
	first, err := utils.LoadOrCreateDeviceKey(path)
	require.NoError(t, err)
	assert.Len(t, first, 64)

	second, err := utils.LoadOrCreateDeviceKey(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestOAuthTokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	tok := &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour).UTC().Truncate(time.Second)}

	ts := utils.NewPersistingTokenSource(path, oauth2.StaticTokenSource(tok))
	_, err := ts.Token()
	require.NoError(t, err)

	loaded, err := utils.LoadOAuthToken(path)
	require.NoError(t, err)
	assert.Equal(t, "r", loaded.RefreshToken)
	assert.True(t, tok.Expiry.Equal(loaded.Expiry))
}

func TestValidateStruct(t *testing.T) {
	type req struct {
		Name string `binding:"required"`
		Kind string `binding:"omitempty,oneof=a b"`
	}
	assert.NoError(t, utils.ValidateStruct(req{Name: "x"}))

	err := utils.ValidateStruct(req{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	var vErr *apperrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "Name", vErr.Field)

	assert.ErrorIs(t, utils.ValidateStruct(req{Name: "x", Kind: "c"}), apperrors.ErrValidation)
}

func TestPasswordHash(t *testing.T) {
	hash, err := utils.HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, utils.CheckPasswordHash("s3cret", hash))
	assert.False(t, utils.CheckPasswordHash("nope", hash))
}

func TestJWTRoundTrip(t *testing.T) {
	token, err := utils.GenerateJWT("owner", "secret", time.Minute, "mss")
	require.NoError(t, err)

	claims, err := utils.ParseAndValidateJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "owner", claims.Subject)
	assert.Equal(t, "mss", claims.Issuer)
	assert.NotEmpty(t, claims.ID)

	_, err = utils.ParseAndValidateJWT(token, "other")
	assert.Error(t, err)

	_, err = utils.GenerateJWT("owner", "", time.Minute, "mss")
	assert.Error(t, err)
}

func TestRandomHex(t *testing.T) {
	a, err := utils.RandomHex(16)
	require.NoError(t, err)
	assert.Len(t, a, 32)
	b, err := utils.RandomHex(16)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	_, err = utils.RandomHex(0)
	assert.Error(t, err)
}
