package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActorOrSystem(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, SystemActor, ActorOrSystem(ctx))

	ctx = WithActor(ctx, &Actor{UserID: "u-7", Roles: []string{RoleCashier}})
	assert.Equal(t, "u-7", ActorOrSystem(ctx))
	assert.True(t, HasRole(ctx, RoleManager, RoleCashier))
	assert.False(t, HasRole(ctx, RoleAdmin))
}
