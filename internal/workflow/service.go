package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tenantcms/tenantcms/internal/content"
	"github.com/tenantcms/tenantcms/internal/identity"
	"github.com/tenantcms/tenantcms/internal/shared"
)

// Store reads and persists entity snapshots.
type Store interface {
	FindEntity(ctx context.Context, kind content.Kind, id int64) (content.Entity, error)
	SaveStatus(ctx context.Context, ent content.Entity) error
}

// ApprovalPort appends approval history.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// StatusChangedEvent is published after a transition is persisted.
type StatusChangedEvent struct {
	Kind    content.Kind   `json:"kind"`
	ID      int64          `json:"id"`
	ActorID string         `json:"actor_id"`
	From    content.Status `json:"from"`
	To      content.Status `json:"to"`
	Effect  Effect         `json:"effect"`
	At      time.Time      `json:"at"`
}

// Publisher fans status changes out to background consumers.
type Publisher interface {
	PublishStatusChanged(ctx context.Context, evt StatusChangedEvent) error
}

// Result reports what happened to one entity.
type Result struct {
	ID         int64       `json:"id"`
	Applied    bool        `json:"applied"`
	Transition *Transition `json:"-"`
}

// Service persists transitions computed by Machine. Callers authorize first.
type Service struct {
	store     Store
	machine   *Machine
	approvals ApprovalPort
	publisher Publisher
	logger    *slog.Logger
}

// NewService constructs a Service. approvals and publisher may be nil.
func NewService(store Store, machine *Machine, approvals ApprovalPort, publisher Publisher, logger *slog.Logger) *Service {
	if machine == nil {
		machine = NewMachine(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, machine: machine, approvals: approvals, publisher: publisher, logger: logger}
}

// UpdateStatus re-reads the entity and applies the requested status. An
// entity that no longer exists is skipped without error.
func (s *Service) UpdateStatus(ctx context.Context, actor identity.Actor, kind content.Kind, id int64, requested content.Status) (Result, error) {
	ent, err := s.store.FindEntity(ctx, kind, id)
	if errors.Is(err, content.ErrNotFound) {
		return Result{ID: id}, nil
	}
	if err != nil {
		return Result{ID: id}, fmt.Errorf("workflow: load %s %d: %w", kind, id, err)
	}

	tr := s.machine.Apply(actor, ent, requested)
	if err := s.store.SaveStatus(ctx, tr.After); err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return Result{ID: id}, nil
		}
		return Result{ID: id}, fmt.Errorf("workflow: save %s %d: %w", kind, id, err)
	}

	s.recordApproval(ctx, actor, tr)
	s.publish(ctx, actor, tr)
	return Result{ID: id, Applied: true, Transition: &tr}, nil
}

// UpdateStatusMany applies one status to several entities of the same kind.
// It stops at the first persistence error and returns the results so far.
func (s *Service) UpdateStatusMany(ctx context.Context, actor identity.Actor, kind content.Kind, ids []int64, requested content.Status) ([]Result, error) {
	results := make([]Result, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		res, err := s.UpdateStatus(ctx, actor, kind, id, requested)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Service) recordApproval(ctx context.Context, actor identity.Actor, tr Transition) {
	if s.approvals == nil {
		return
	}
	entry := shared.ApprovalLog{
		Kind:       string(tr.After.Kind),
		RefID:      tr.After.ID,
		ActorID:    actor.ID(),
		Action:     approvalAction(tr.Effect),
		FromStatus: int(tr.Before.StatusID),
		ToStatus:   int(tr.After.StatusID),
		Note:       fmt.Sprintf("%s %d status %d -> %d", tr.After.Kind.Label(), tr.After.ID, tr.Before.StatusID, tr.After.StatusID),
		At:         tr.At,
	}
	if err := s.approvals.Record(ctx, entry); err != nil {
		s.logger.Warn("record approval",
			slog.Any("error", err),
			slog.String("kind", entry.Kind),
			slog.Int64("id", entry.RefID),
		)
	}
}

func (s *Service) publish(ctx context.Context, actor identity.Actor, tr Transition) {
	if s.publisher == nil {
		return
	}
	evt := StatusChangedEvent{
		Kind:    tr.After.Kind,
		ID:      tr.After.ID,
		ActorID: actor.ID(),
		From:    tr.Before.StatusID,
		To:      tr.After.StatusID,
		Effect:  tr.Effect,
		At:      tr.At,
	}
	if err := s.publisher.PublishStatusChanged(ctx, evt); err != nil {
		s.logger.Warn("publish status change",
			slog.Any("error", err),
			slog.String("kind", string(evt.Kind)),
			slog.Int64("id", evt.ID),
		)
	}
}

func approvalAction(effect Effect) shared.ApprovalAction {
	switch effect {
	case EffectChecked:
		return shared.ApprovalCheck
	case EffectApproved:
		return shared.ApprovalApprove
	case EffectRejected:
		return shared.ApprovalReject
	}
	return shared.ApprovalStatus
}
