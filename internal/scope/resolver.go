// Package scope resolves the organisational scope an actor operates within.
package scope

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tenantcms/tenantcms/internal/identity"
	"github.com/tenantcms/tenantcms/internal/shared"
)

// AssignmentStore persists category assignments.
type AssignmentStore interface {
	ListCategoryAssignments(ctx context.Context, actorID string) ([]int64, error)
	// ReplaceCategoryAssignments deletes every assignment of actorID and then
	// inserts categoryIDs. Atomicity is up to the implementation.
	ReplaceCategoryAssignments(ctx context.Context, actorID string, categoryIDs []int64) error
}

// Resolver answers scope questions. It holds no mutable state of its own and
// is safe for concurrent use.
type Resolver struct {
	store  AssignmentStore
	cache  *Cache
	logger *slog.Logger
}

// NewResolver constructs a Resolver. cache may be nil.
func NewResolver(store AssignmentStore, cache *Cache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, cache: cache, logger: logger}
}

// ResolveCategoryScope returns every category assigned to actorID. No
// assignment is a valid, empty scope.
func (r *Resolver) ResolveCategoryScope(ctx context.Context, actorID string) (shared.IDSet, error) {
	if actorID == "" {
		return shared.NewIDSet(), nil
	}
	// The generation is read before listing so a concurrent replace sends
	// this reader's store to a retired key.
	gen, err := r.cache.Generation(ctx, actorID)
	cached := err == nil
	if err != nil {
		r.logger.Warn("scope cache generation", slog.Any("error", err), slog.String("actor_id", actorID))
	} else if ids, ok, err := r.cache.Load(ctx, actorID, gen); err != nil {
		r.logger.Warn("scope cache load", slog.Any("error", err), slog.String("actor_id", actorID))
	} else if ok {
		return shared.NewIDSet(ids...), nil
	}

	ids, err := r.store.ListCategoryAssignments(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("scope: list assignments: %w", err)
	}
	set := shared.NewIDSet(ids...)
	if cached {
		if err := r.cache.Store(ctx, actorID, gen, set.Slice()); err != nil {
			r.logger.Warn("scope cache store", slog.Any("error", err), slog.String("actor_id", actorID))
		}
	}
	return set, nil
}

// ResolveBrandScope returns the actor's home store. Brand scope is never
// derived from category assignments.
func (r *Resolver) ResolveBrandScope(actor identity.Actor) (int64, bool) {
	return actor.HomeBrand()
}

// ReplaceAssignments swaps the full category assignment set of actorID.
func (r *Resolver) ReplaceAssignments(ctx context.Context, actorID string, categories shared.IDSet) error {
	if actorID == "" {
		return fmt.Errorf("scope: actor id required: %w", shared.ErrInvalidInput)
	}
	if err := r.store.ReplaceCategoryAssignments(ctx, actorID, categories.Slice()); err != nil {
		return fmt.Errorf("scope: replace assignments: %w", err)
	}
	if err := r.cache.Invalidate(ctx, actorID); err != nil {
		r.logger.Warn("scope cache invalidate", slog.Any("error", err), slog.String("actor_id", actorID))
	}
	return nil
}
