package shared

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ApprovalAction enumerates approval log actions.
type ApprovalAction string

const (
	// ApprovalCheck marks an editorial check.
	ApprovalCheck ApprovalAction = "CHECK"
	// ApprovalApprove marks a publish approval.
	ApprovalApprove ApprovalAction = "APPROVE"
	// ApprovalReject marks a publish rejection.
	ApprovalReject ApprovalAction = "REJECT"
	// ApprovalStatus marks a status change without review semantics.
	ApprovalStatus ApprovalAction = "STATUS"
)

// ApprovalLog represents a single approval record.
type ApprovalLog struct {
	ID         int64
	Kind       string
	RefID      int64
	ActorID    string
	Action     ApprovalAction
	FromStatus int
	ToStatus   int
	Note       string
	At         time.Time
}

// ApprovalRecorder persists approval history.
type ApprovalRecorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewApprovalRecorder constructs ApprovalRecorder.
func NewApprovalRecorder(pool *pgxpool.Pool, logger *slog.Logger) *ApprovalRecorder {
	return &ApprovalRecorder{pool: pool, logger: logger}
}

// Validate checks the mandatory fields of an approval entry.
func (l ApprovalLog) Validate() error {
	if l.Kind == "" {
		return errors.New("approval kind required")
	}
	if l.RefID == 0 {
		return errors.New("approval ref id required")
	}
	if l.ActorID == "" {
		return errors.New("approval actor required")
	}
	if l.Action == "" {
		return errors.New("approval action required")
	}
	return nil
}

// Record writes approval entry to database.
func (r *ApprovalRecorder) Record(ctx context.Context, log ApprovalLog) error {
	if r == nil || r.pool == nil {
		return ErrNotInitialised
	}
	if err := log.Validate(); err != nil {
		return err
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO content_approvals (kind, ref_id, actor_id, action, from_status, to_status, note, at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))`,
		log.Kind, log.RefID, log.ActorID, string(log.Action), log.FromStatus, log.ToStatus, log.Note, at)
	if err != nil {
		if r.logger != nil {
			r.logger.Error("record approval", slog.Any("error", err), slog.String("kind", log.Kind), slog.Int64("ref_id", log.RefID))
		}
		return err
	}
	return nil
}

// List returns approvals for one content entity, oldest first.
func (r *ApprovalRecorder) List(ctx context.Context, kind string, ref int64) ([]ApprovalLog, error) {
	if r == nil || r.pool == nil {
		return nil, ErrNotInitialised
	}
	rows, err := r.pool.Query(ctx, `SELECT id, kind, ref_id, actor_id, action, from_status, to_status, note, at
FROM content_approvals WHERE kind=$1 AND ref_id=$2 ORDER BY at ASC, id ASC`, kind, ref)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []ApprovalLog
	for rows.Next() {
		var l ApprovalLog
		var action string
		if err := rows.Scan(&l.ID, &l.Kind, &l.RefID, &l.ActorID, &action, &l.FromStatus, &l.ToStatus, &l.Note, &l.At); err != nil {
			return nil, err
		}
		l.Action = ApprovalAction(action)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}
