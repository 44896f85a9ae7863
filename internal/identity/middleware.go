package identity

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/tenantcms/tenantcms/internal/platform/httpx"
)

// DefaultHeader carries the caller id set by the authenticating gateway.
const DefaultHeader = "X-Actor-ID"

// Middleware resolves the calling actor for each request. Identity is
// trusted as supplied by the upstream gateway; nothing is verified here.
type Middleware struct {
	Loader *Loader
	Header string
	Logger *slog.Logger
}

// Handler loads the actor and stores it in the request context.
func (m Middleware) Handler(next http.Handler) http.Handler {
	header := m.Header
	if header == "" {
		header = DefaultHeader
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(header))
		actor, err := m.Loader.Load(r.Context(), userID)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("load actor", slog.Any("error", err), slog.String("user_id", userID))
			}
			httpx.Problem(w, http.StatusServiceUnavailable, "Identity Unavailable", "")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}
