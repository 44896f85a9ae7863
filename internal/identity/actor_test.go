package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewActorCopiesInputs(t *testing.T) {
	brand := int64(7)
	roles := []RoleName{RoleStoreAdmin, RoleName("bogus")}
	actor := NewActor("u-1", roles, &brand)

	roles[0] = RoleSystemAdmin
	brand = 9

	require.True(t, actor.Has(RoleStoreAdmin))
	require.False(t, actor.Has(RoleSystemAdmin))
	require.Equal(t, []RoleName{RoleStoreAdmin}, actor.Roles())
	home, ok := actor.HomeBrand()
	require.True(t, ok)
	require.Equal(t, int64(7), home)
}

func TestAnonymousActor(t *testing.T) {
	actor := Anonymous()
	require.False(t, actor.Authenticated())
	require.Empty(t, actor.Roles())
	_, ok := actor.HomeBrand()
	require.False(t, ok)
	require.False(t, actor.HasAny(AllRoles()...))
}

func TestActorContextRoundTrip(t *testing.T) {
	require.Equal(t, Anonymous(), ActorFromContext(context.Background()))

	actor := NewActor("u-2", []RoleName{RoleEditor}, nil)
	ctx := WithActor(context.Background(), actor)
	got := ActorFromContext(ctx)
	require.Equal(t, "u-2", got.ID())
	require.True(t, got.Has(RoleEditor))
}
