package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmitra/portalctl/internal/authz"
	"github.com/agentmitra/portalctl/internal/errors"
)

func TestDecodeAccessToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := agentToken(t, exp, "data_import.create", map[string]any{"resource": "customers", "actions": []any{"read"}})

	u, err := DecodeAccessToken(tok)
	require.NoError(t, err)

	assert.Equal(t, "user-42", u.UserID)
	assert.Equal(t, "tenant-1", u.TenantID)
	assert.Equal(t, []string{"junior_agent"}, u.Roles)
	assert.True(t, exp.Equal(u.ExpiresAt))
	require.Len(t, u.Permissions, 2)
	assert.Equal(t, authz.StringPermission("data_import.create"), u.Permissions[0])
	assert.Equal(t, authz.StructuredPermission("customers", "read"), u.Permissions[1])
}

func TestDecodeAccessToken_SkipsMalformedPermissions(t *testing.T) {
	tok := agentToken(t, time.Now().Add(time.Hour),
		"data_import.create",
		map[string]any{"actions": []any{"read"}},
		nil,
		42,
		"",
		map[string]any{"resource": "customers", "actions": []any{"read"}},
	)

	u, err := DecodeAccessToken(tok)
	require.NoError(t, err, "one bad entry must not sign the user out")

	assert.Equal(t, []authz.Permission{
		authz.StringPermission("data_import.create"),
		authz.StructuredPermission("customers", "read"),
	}, u.Permissions)
	assert.True(t, authz.HasPermission(u, "data_import", "create"))
	assert.False(t, authz.HasPermission(u, "users", "read"))
	assert.NotNil(t, UserFromSession(&Session{AccessToken: tok}, time.Now()))
}

func TestDecodeAccessToken_NoPermissions(t *testing.T) {
	u, err := DecodeAccessToken(mintToken(t, jwt.MapClaims{
		"user_id":     "u",
		"permissions": "users.read",
		"exp":         time.Now().Add(time.Minute).Unix(),
	}))
	require.NoError(t, err)
	assert.Empty(t, u.Permissions)
}

func TestDecodeAccessToken_SubjectFallbackAndRoleFold(t *testing.T) {
	tok := mintToken(t, jwt.MapClaims{
		"sub":  "user-7",
		"role": "regional_manager",
		"exp":  time.Now().Add(time.Minute).Unix(),
	})

	u, err := DecodeAccessToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-7", u.UserID)
	assert.True(t, authz.HasRole(u, "regional_manager"))
}

func TestDecodeAccessToken_Invalid(t *testing.T) {
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := DecodeAccessToken(tok)
		require.Error(t, err, tok)
		assert.Equal(t, errors.ErrCodeAuthInvalidToken, errors.CodeOf(err))
	}
}

func TestUserFromSession(t *testing.T) {
	now := time.Now()

	valid := &Session{AccessToken: agentToken(t, now.Add(time.Hour))}
	assert.NotNil(t, UserFromSession(valid, now))

	expired := &Session{AccessToken: agentToken(t, now.Add(-time.Minute))}
	assert.Nil(t, UserFromSession(expired, now), "a present but expired token is not a session")

	noExp := &Session{AccessToken: mintToken(t, jwt.MapClaims{"user_id": "u"})}
	assert.Nil(t, UserFromSession(noExp, now))

	assert.Nil(t, UserFromSession(&Session{}, now))
	assert.Nil(t, UserFromSession(nil, now))
}
