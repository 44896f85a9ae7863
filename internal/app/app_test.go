package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tenantcms/tenantcms/internal/identity"
	"github.com/tenantcms/tenantcms/internal/observability"
	_ "github.com/tenantcms/tenantcms/testing"
)

func TestInTestModeFromBlankImport(t *testing.T) {
	RefreshTestMode()
	require.True(t, InTestMode())
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "X-Actor-ID", cfg.ActorHeader)
	require.Equal(t, 5*time.Minute, cfg.ScopeCacheTTL)
	require.Equal(t, 1024, cfg.ActorCacheSize)
	require.Equal(t, 120, cfg.RateLimitPerMinute)
	require.Equal(t, 72*time.Hour, cfg.IdempotencyRetention)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("LOG_LEVEL", "chatty")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")
	_, err = LoadConfig()
	require.Error(t, err)
}

type directory struct{}

func (directory) ListRoleNames(ctx context.Context, userID string) ([]string, error) {
	if userID == "u-admin" {
		return []string{"Quản trị hệ thống"}, nil
	}
	return nil, nil
}

func (directory) FindProfile(ctx context.Context, userID string) (identity.Profile, error) {
	return identity.Profile{}, identity.ErrProfileNotFound
}

func TestRouterResolvesActorAndRecordsMetrics(t *testing.T) {
	cfg := &Config{ActorHeader: "X-User", RateLimitPerMinute: 100, AppRequestTimeout: time.Second}
	loader := identity.NewLoader(directory{}, directory{}, identity.LoaderConfig{Size: 8, TTL: time.Minute}, nil)
	metrics := observability.NewMetrics()

	var seen identity.Actor
	router := NewRouter(RouterParams{Logger: NewLogger(cfg), Config: cfg, ActorLoader: loader, Metrics: metrics})
	probe := MiddlewareStack(MiddlewareConfig{Logger: NewLogger(cfg), Config: cfg, ActorLoader: loader})
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = identity.ActorFromContext(r.Context())
	})
	for i := len(probe) - 1; i >= 0; i-- {
		h = probe[i](h)
	}
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("X-User", "u-admin")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, seen.Has(identity.RoleSystemAdmin))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}
