package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "workshop/internal/core/context"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))

	token, exp, err := svc.GenerateAccessToken(appctx.UserContext{
		UserID:      "advisor@example.com",
		Roles:       []string{"Service Advisor"},
		Permissions: []string{"billing:create"},
	})
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	user, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "advisor@example.com", user.UserID)
	assert.Equal(t, []string{"Service Advisor"}, user.Roles)
	assert.False(t, user.IsSystem)
}

func TestJWTService_RejectsForeignSecret(t *testing.T) {
	other := NewJWTService(DefaultJWTConfig("other"))
	token, _, err := other.GenerateAccessToken(appctx.UserContext{UserID: "u"})
	require.NoError(t, err)

	_, err = NewJWTService(DefaultJWTConfig("secret")).ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_RejectsExpired(t *testing.T) {
	cfg := DefaultJWTConfig("secret")
	cfg.AccessTokenTTL = -time.Minute
	svc := NewJWTService(cfg)
	token, _, err := svc.GenerateAccessToken(appctx.UserContext{UserID: "u"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}
