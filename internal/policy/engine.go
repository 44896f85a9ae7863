package policy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tenantcms/tenantcms/internal/content"
	"github.com/tenantcms/tenantcms/internal/identity"
	"github.com/tenantcms/tenantcms/internal/shared"
)

// ContentStore is the read side of the entity store the engine consults.
type ContentStore interface {
	FindEntity(ctx context.Context, kind content.Kind, id int64) (content.Entity, error)
	FindComment(ctx context.Context, kind content.Kind, id int64) (content.Comment, error)
	FindCategory(ctx context.Context, kind content.Kind, id int64) (content.Category, error)
	CountCategoryMembers(ctx context.Context, kind content.Kind, categoryID int64) (int, error)
}

// CategoryScoper resolves category assignments.
type CategoryScoper interface {
	ResolveCategoryScope(ctx context.Context, actorID string) (shared.IDSet, error)
}

// Observer receives every decision, e.g. for metrics.
type Observer interface {
	ObserveDecision(resource, action, outcome string)
}

// Deps collects the engine collaborators.
type Deps struct {
	Content  ContentStore
	Profiles identity.ProfileStore
	Scopes   CategoryScoper
	Observer Observer
	Logger   *slog.Logger
}

// Engine evaluates the per-resource rule tables. It keeps no mutable state and
// is safe for concurrent use.
type Engine struct {
	content  ContentStore
	profiles identity.ProfileStore
	scopes   CategoryScoper
	observer Observer
	logger   *slog.Logger
	table    map[ruleKey]ruleSet
}

// NewEngine constructs an Engine.
func NewEngine(deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		content:  deps.Content,
		profiles: deps.Profiles,
		scopes:   deps.Scopes,
		observer: deps.Observer,
		logger:   logger,
		table:    ruleTable(),
	}
}

// Authorize decides whether actor may perform action on target. Negative
// outcomes are returned as decisions, not errors. A non-nil error means a
// collaborator failed; the accompanying decision is then an indeterminate
// denial so that callers which ignore the error still fail closed.
func (e *Engine) Authorize(ctx context.Context, actor identity.Actor, action Action, target Target) (Decision, error) {
	set, ok := e.table[ruleKey{resource: target.Resource, action: action}]
	if !ok {
		d := deny(OutcomeDenied, fmt.Sprintf("%s is not supported on %s", action, target.Resource))
		e.observe(target, action, d)
		return d, nil
	}

	req := &request{actor: actor, action: action, target: target, denied: set.denied}
	d, err := e.evaluate(ctx, set, req)
	if err != nil {
		e.logger.Error("authorize",
			slog.Any("error", err),
			slog.String("actor_id", actor.ID()),
			slog.String("resource", string(target.Resource)),
			slog.String("action", string(action)),
			slog.Int64("target_id", target.ID),
		)
		d = deny(OutcomeIndeterminate, "authorization could not be determined")
		e.observe(target, action, d)
		return d, err
	}
	if !d.Allow {
		e.logger.Debug("authorize denied",
			slog.String("actor_id", actor.ID()),
			slog.String("resource", string(target.Resource)),
			slog.String("action", string(action)),
			slog.String("outcome", string(d.Outcome)),
			slog.String("reason", d.Reason),
		)
	}
	e.observe(target, action, d)
	return d, nil
}

// Require is Authorize folded into a single error.
func (e *Engine) Require(ctx context.Context, actor identity.Actor, action Action, target Target) error {
	d, err := e.Authorize(ctx, actor, action, target)
	if err != nil {
		return err
	}
	return d.Err()
}

func (e *Engine) evaluate(ctx context.Context, set ruleSet, req *request) (Decision, error) {
	if set.load != nil {
		found, err := set.load(ctx, e, req)
		if err != nil {
			return Decision{}, err
		}
		if !found {
			return deny(OutcomeNotFound, set.notFound), nil
		}
	}
	for _, r := range set.rules {
		v, err := r(ctx, e, req)
		if err != nil {
			return Decision{}, err
		}
		if v.decided {
			return v.decision, nil
		}
	}
	return deny(OutcomeDenied, set.denied), nil
}

func (e *Engine) observe(target Target, action Action, d Decision) {
	if e.observer != nil {
		e.observer.ObserveDecision(string(target.Resource), string(action), string(d.Outcome))
	}
}
