package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "posledger/internal/core/context"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("test-secret"))

	token, expiresAt, err := svc.GenerateAccessToken(appctx.Actor{
		UserID:   "user-1",
		Username: "alice",
		BranchID: "branch-1",
		Roles:    []string{appctx.RoleManager},
	})
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	actor, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", actor.UserID)
	assert.Equal(t, "alice", actor.Username)
	assert.Equal(t, "branch-1", actor.BranchID)
	assert.Equal(t, []string{appctx.RoleManager}, actor.Roles)
}

func TestJWTService_RejectsForeignSecret(t *testing.T) {
	issuer := NewJWTService(DefaultJWTConfig("secret-a"))
	verifier := NewJWTService(DefaultJWTConfig("secret-b"))

	token, _, err := issuer.GenerateAccessToken(appctx.Actor{UserID: "user-1"})
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_RejectsExpired(t *testing.T) {
	cfg := DefaultJWTConfig("secret")
	cfg.AccessTokenTTL = -time.Minute
	svc := NewJWTService(cfg)

	token, _, err := svc.GenerateAccessToken(appctx.Actor{UserID: "user-1"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_RequiresUserID(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))
	_, _, err := svc.GenerateAccessToken(appctx.Actor{})
	assert.Error(t, err)
}
