package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	mu        sync.Mutex
	roles     map[string][]string
	profiles  map[string]Profile
	roleErr   error
	roleCalls int
}

func (f *fakeDirectory) ListRoleNames(ctx context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roleCalls++
	if f.roleErr != nil {
		return nil, f.roleErr
	}
	return f.roles[userID], nil
}

func (f *fakeDirectory) FindProfile(ctx context.Context, userID string) (Profile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return p, nil
}

func brandPtr(id int64) *int64 { return &id }

func TestLoaderBuildsActorFromRolesAndProfile(t *testing.T) {
	dir := &fakeDirectory{
		roles:    map[string][]string{"u-1": {"Quản trị cửa hàng", "unknown-role"}},
		profiles: map[string]Profile{"u-1": {UserID: "u-1", BrandID: brandPtr(7)}},
	}
	loader := NewLoader(dir, dir, LoaderConfig{}, nil)

	actor, err := loader.Load(context.Background(), "u-1")
	require.NoError(t, err)
	require.Equal(t, []RoleName{RoleStoreAdmin}, actor.Roles())
	home, ok := actor.HomeBrand()
	require.True(t, ok)
	require.Equal(t, int64(7), home)
}

func TestLoaderMissingProfileMeansNoHomeBrand(t *testing.T) {
	dir := &fakeDirectory{roles: map[string][]string{"u-2": {"store-staff"}}}
	loader := NewLoader(dir, dir, LoaderConfig{}, nil)

	actor, err := loader.Load(context.Background(), "u-2")
	require.NoError(t, err)
	_, ok := actor.HomeBrand()
	require.False(t, ok)
}

func TestLoaderEmptyIDIsAnonymous(t *testing.T) {
	dir := &fakeDirectory{}
	loader := NewLoader(dir, dir, LoaderConfig{}, nil)

	actor, err := loader.Load(context.Background(), "")
	require.NoError(t, err)
	require.False(t, actor.Authenticated())
	require.Zero(t, dir.roleCalls)
}

func TestLoaderPropagatesStoreErrors(t *testing.T) {
	dir := &fakeDirectory{roleErr: errors.New("db down")}
	loader := NewLoader(dir, dir, LoaderConfig{}, nil)

	_, err := loader.Load(context.Background(), "u-3")
	require.Error(t, err)
}

func TestLoaderCachesUntilTTL(t *testing.T) {
	dir := &fakeDirectory{roles: map[string][]string{"u-4": {"editor"}}}
	loader := NewLoader(dir, dir, LoaderConfig{Size: 8, TTL: 50 * time.Millisecond}, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		actor, err := loader.Load(ctx, "u-4")
		require.NoError(t, err)
		require.True(t, actor.Has(RoleEditor))
	}
	require.Equal(t, 1, dir.roleCalls)

	dir.mu.Lock()
	dir.roles["u-4"] = []string{"editor-in-chief"}
	dir.mu.Unlock()

	require.Eventually(t, func() bool {
		actor, err := loader.Load(ctx, "u-4")
		return err == nil && actor.Has(RoleEditorInChief) && !actor.Has(RoleEditor)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMiddlewareStoresActor(t *testing.T) {
	dir := &fakeDirectory{roles: map[string][]string{"u-5": {"guest"}}}
	mw := Middleware{Loader: NewLoader(dir, dir, LoaderConfig{}, nil)}

	var seen Actor
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ActorFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DefaultHeader, "u-5")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, "u-5", seen.ID())
	require.True(t, seen.Has(RoleGuest))
}

func TestMiddlewareFailsClosedOnLoaderError(t *testing.T) {
	dir := &fakeDirectory{roleErr: errors.New("db down")}
	mw := Middleware{Loader: NewLoader(dir, dir, LoaderConfig{}, nil)}

	called := false
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DefaultHeader, "u-6")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.False(t, called)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
