package scope

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/tenantcms/tenantcms/internal/identity"
	"github.com/tenantcms/tenantcms/internal/shared"
)

type memoryAssignments struct {
	rows      map[string][]int64
	listCalls int
	listErr   error
	// afterList runs once the rows have been read.
	afterList func()
}

func newMemoryAssignments() *memoryAssignments {
	return &memoryAssignments{rows: make(map[string][]int64)}
}

func (m *memoryAssignments) ListCategoryAssignments(ctx context.Context, actorID string) ([]int64, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	rows := append([]int64(nil), m.rows[actorID]...)
	if hook := m.afterList; hook != nil {
		m.afterList = nil
		hook()
	}
	return rows, nil
}

func (m *memoryAssignments) ReplaceCategoryAssignments(ctx context.Context, actorID string, categoryIDs []int64) error {
	delete(m.rows, actorID)
	m.rows[actorID] = append([]int64(nil), categoryIDs...)
	return nil
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestResolveCategoryScopeEmptyIsNotError(t *testing.T) {
	store := newMemoryAssignments()
	resolver := NewResolver(store, nil, nil)

	set, err := resolver.ResolveCategoryScope(context.Background(), "nobody")
	require.NoError(t, err)
	require.Zero(t, set.Len())
}

func TestResolveCategoryScopeReturnsAssignments(t *testing.T) {
	store := newMemoryAssignments()
	store.rows["lead"] = []int64{3, 4, 4}
	resolver := NewResolver(store, nil, nil)

	set, err := resolver.ResolveCategoryScope(context.Background(), "lead")
	require.NoError(t, err)
	require.Equal(t, []int64{3, 4}, set.Slice())
}

func TestResolveCategoryScopeUsesCache(t *testing.T) {
	store := newMemoryAssignments()
	store.rows["lead"] = []int64{3}
	resolver := NewResolver(store, newTestCache(t), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		set, err := resolver.ResolveCategoryScope(ctx, "lead")
		require.NoError(t, err)
		require.True(t, set.Contains(3))
	}
	require.Equal(t, 1, store.listCalls)
}

func TestReplaceAssignmentsInvalidatesCache(t *testing.T) {
	store := newMemoryAssignments()
	store.rows["lead"] = []int64{3}
	resolver := NewResolver(store, newTestCache(t), nil)
	ctx := context.Background()

	_, err := resolver.ResolveCategoryScope(ctx, "lead")
	require.NoError(t, err)

	require.NoError(t, resolver.ReplaceAssignments(ctx, "lead", shared.NewIDSet(8, 9)))

	set, err := resolver.ResolveCategoryScope(ctx, "lead")
	require.NoError(t, err)
	require.Equal(t, []int64{8, 9}, set.Slice())
	require.Equal(t, 2, store.listCalls)
}

func TestReplaceDuringResolveDoesNotResurrectRevokedScope(t *testing.T) {
	store := newMemoryAssignments()
	store.rows["lead"] = []int64{4}
	resolver := NewResolver(store, newTestCache(t), nil)
	ctx := context.Background()

	store.afterList = func() {
		require.NoError(t, resolver.ReplaceAssignments(ctx, "lead", nil))
	}
	set, err := resolver.ResolveCategoryScope(ctx, "lead")
	require.NoError(t, err)
	require.Equal(t, []int64{4}, set.Slice())

	set, err = resolver.ResolveCategoryScope(ctx, "lead")
	require.NoError(t, err)
	require.Zero(t, set.Len())
	require.Empty(t, store.rows["lead"])

	set, err = resolver.ResolveCategoryScope(ctx, "lead")
	require.NoError(t, err)
	require.Zero(t, set.Len())
	require.Equal(t, 2, store.listCalls)
}

func TestReplaceAssignmentsRequiresActor(t *testing.T) {
	resolver := NewResolver(newMemoryAssignments(), nil, nil)
	err := resolver.ReplaceAssignments(context.Background(), "", shared.NewIDSet(1))
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestResolveCategoryScopePropagatesStoreError(t *testing.T) {
	store := newMemoryAssignments()
	store.listErr = errors.New("db down")
	resolver := NewResolver(store, nil, nil)

	_, err := resolver.ResolveCategoryScope(context.Background(), "lead")
	require.Error(t, err)
}

func TestResolveBrandScopeIsHomeBrand(t *testing.T) {
	resolver := NewResolver(newMemoryAssignments(), nil, nil)
	brand := int64(7)

	got, ok := resolver.ResolveBrandScope(identity.NewActor("a", []identity.RoleName{identity.RoleStoreAdmin}, &brand))
	require.True(t, ok)
	require.Equal(t, int64(7), got)

	_, ok = resolver.ResolveBrandScope(identity.NewActor("b", []identity.RoleName{identity.RoleCategoryLead}, nil))
	require.False(t, ok)
}
