package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "posledger/internal/core/context"
	"posledger/internal/domain/auth"
	"posledger/internal/infrastructure/storage/postgres"
)

func TestTokenActor(t *testing.T) {
	actor, err := tokenActor(" u-1 ", "alice", "b-1", []string{"manager", " cashier"})
	require.NoError(t, err)
	assert.Equal(t, "u-1", actor.UserID)
	assert.Equal(t, []string{appctx.RoleManager, appctx.RoleCashier}, actor.Roles)

	_, err = tokenActor("u-1", "", "", []string{"OWNER"})
	assert.ErrorContains(t, err, "OWNER")

	_, err = tokenActor("", "", "", []string{"CASHIER"})
	assert.Error(t, err)

	_, err = tokenActor("u-1", "", "", nil)
	assert.Error(t, err)
}

func TestTokenCommand_MintsVerifiableToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"token", "--user", "u-7", "--roles", "MANAGER"})
	require.NoError(t, root.Execute())

	actor, err := auth.NewJWTService(auth.DefaultJWTConfig("cli-secret")).
		ValidateToken(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "u-7", actor.UserID)
	assert.Equal(t, []string{appctx.RoleManager}, actor.Roles)
}

func TestMigrateCommand_Print(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"migrate", "--print"})
	require.NoError(t, root.Execute())
	assert.Equal(t, postgres.Schema()+"\n", out.String())
}
