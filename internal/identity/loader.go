package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"
)

// LoaderConfig tunes the actor cache. A zero Size disables caching. Roles and
// home stores are owned upstream, so a change reaches a cached actor only
// once its entry expires after TTL.
type LoaderConfig struct {
	Size int
	TTL  time.Duration
}

// Loader assembles Actors from role memberships and profiles.
type Loader struct {
	roles    RoleStore
	profiles ProfileStore
	cache    *expirable.LRU[string, Actor]
	logger   *slog.Logger
}

// NewLoader constructs a Loader.
func NewLoader(roles RoleStore, profiles ProfileStore, cfg LoaderConfig, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{roles: roles, profiles: profiles, logger: logger}
	if cfg.Size > 0 {
		l.cache = expirable.NewLRU[string, Actor](cfg.Size, nil, cfg.TTL)
	}
	return l
}

// Load returns the actor for userID. An empty id yields Anonymous. A missing
// profile is not an error: the actor simply has no home brand.
func (l *Loader) Load(ctx context.Context, userID string) (Actor, error) {
	if userID == "" {
		return Anonymous(), nil
	}
	if l.cache != nil {
		if actor, ok := l.cache.Get(userID); ok {
			return actor, nil
		}
	}

	var (
		rawRoles []string
		profile  Profile
		found    bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		names, err := l.roles.ListRoleNames(gctx, userID)
		if err != nil {
			return fmt.Errorf("identity: list roles: %w", err)
		}
		rawRoles = names
		return nil
	})
	g.Go(func() error {
		p, err := l.profiles.FindProfile(gctx, userID)
		if errors.Is(err, ErrProfileNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("identity: find profile: %w", err)
		}
		profile, found = p, true
		return nil
	})
	if err := g.Wait(); err != nil {
		return Actor{}, err
	}

	roles := make([]RoleName, 0, len(rawRoles))
	for _, raw := range rawRoles {
		r, err := ParseRoleName(raw)
		if err != nil {
			l.logger.Warn("skip unknown role", slog.String("user_id", userID), slog.String("role", raw))
			continue
		}
		roles = append(roles, r)
	}
	var brand *int64
	if found {
		brand = profile.BrandID
	}
	actor := NewActor(userID, roles, brand)
	if l.cache != nil {
		l.cache.Add(userID, actor)
	}
	return actor, nil
}
