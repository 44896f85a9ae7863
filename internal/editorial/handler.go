// Package editorial exposes the authorization and workflow engine over a
// JSON API.
package editorial

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tenantcms/tenantcms/internal/content"
	"github.com/tenantcms/tenantcms/internal/identity"
	"github.com/tenantcms/tenantcms/internal/platform/httpx"
	"github.com/tenantcms/tenantcms/internal/policy"
	"github.com/tenantcms/tenantcms/internal/shared"
	"github.com/tenantcms/tenantcms/internal/workflow"
)

// IdempotencyHeader lets clients make status requests safe to retry.
const IdempotencyHeader = "Idempotency-Key"

// Authorizer is the policy engine contract.
type Authorizer interface {
	Authorize(ctx context.Context, actor identity.Actor, action policy.Action, target policy.Target) (policy.Decision, error)
}

// StatusService applies status transitions.
type StatusService interface {
	UpdateStatus(ctx context.Context, actor identity.Actor, kind content.Kind, id int64, requested content.Status) (workflow.Result, error)
	UpdateStatusMany(ctx context.Context, actor identity.Actor, kind content.Kind, ids []int64, requested content.Status) ([]workflow.Result, error)
}

// ScopeService resolves and replaces actor scopes.
type ScopeService interface {
	ResolveCategoryScope(ctx context.Context, actorID string) (shared.IDSet, error)
	ResolveBrandScope(actor identity.Actor) (int64, bool)
	ReplaceAssignments(ctx context.Context, actorID string, categories shared.IDSet) error
}

// ApprovalHistory lists the approval trail of one entity.
type ApprovalHistory interface {
	List(ctx context.Context, kind string, ref int64) ([]shared.ApprovalLog, error)
}

// IdempotencyStore claims request keys.
type IdempotencyStore interface {
	Claim(ctx context.Context, key, scope string) error
	Release(ctx context.Context, key string) error
}

// Handler serves the editorial API.
type Handler struct {
	logger      *slog.Logger
	authorizer  Authorizer
	statuses    StatusService
	scopes      ScopeService
	approvals   ApprovalHistory
	idempotency IdempotencyStore
	validator   *validator.Validate
}

// NewHandler builds a Handler. idempotency may be nil, in which case the
// Idempotency-Key header is ignored. A nil approvals disables the history route.
func NewHandler(logger *slog.Logger, authorizer Authorizer, statuses StatusService, scopes ScopeService, approvals ApprovalHistory, idempotency IdempotencyStore) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		authorizer:  authorizer,
		statuses:    statuses,
		scopes:      scopes,
		approvals:   approvals,
		idempotency: idempotency,
		validator:   validator.New(),
	}
}

// MountRoutes registers the API routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/statuses", h.listStatuses)
	r.Get("/me/scope", h.showScope)
	r.Put("/users/{userID}/category-assignments", h.replaceAssignments)
	r.Get("/categories/{kind}/{id}/deletable", h.categoryDeletable)
	r.Get("/{kind}/{id}/permissions", h.showPermission)
	if h.approvals != nil {
		r.Get("/{kind}/{id}/approvals", h.listApprovals)
	}
	r.Post("/{kind}/{id}/status", h.updateStatus)
	r.Post("/{kind}/status", h.updateStatusBulk)
}

type statusRequest struct {
	StatusID *int `json:"status_id" validate:"required"`
}

type bulkStatusRequest struct {
	IDs      []int64 `json:"ids" validate:"required,min=1,max=200,dive,gt=0"`
	StatusID *int    `json:"status_id" validate:"required"`
}

type assignmentsRequest struct {
	CategoryIDs []int64 `json:"category_ids" validate:"dive,gt=0"`
}

type statusResponse struct {
	ID       int64           `json:"id"`
	Applied  bool            `json:"applied"`
	StatusID *content.Status `json:"status_id,omitempty"`
	Effect   workflow.Effect `json:"effect,omitempty"`
	Outcome  policy.Outcome  `json:"outcome,omitempty"`
	Reason   string          `json:"reason,omitempty"`
}

type approvalResponse struct {
	Action     shared.ApprovalAction `json:"action"`
	ActorID    string                `json:"actor_id"`
	FromStatus int                   `json:"from_status"`
	ToStatus   int                   `json:"to_status"`
	Note       string                `json:"note,omitempty"`
	At         time.Time             `json:"at"`
}

type scopeResponse struct {
	ActorID     string              `json:"actor_id"`
	Roles       []identity.RoleName `json:"roles"`
	BrandID     *int64              `json:"brand_id"`
	CategoryIDs []int64             `json:"category_ids"`
}

func (h *Handler) listStatuses(w http.ResponseWriter, r *http.Request) {
	actor := identity.ActorFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, map[string]any{"statuses": workflow.VisibleStatuses(actor)})
}

func (h *Handler) showScope(w http.ResponseWriter, r *http.Request) {
	actor := identity.ActorFromContext(r.Context())
	resp := scopeResponse{ActorID: actor.ID(), Roles: actor.Roles(), CategoryIDs: []int64{}}
	if brand, ok := h.scopes.ResolveBrandScope(actor); ok {
		resp.BrandID = &brand
	}
	if actor.Authenticated() {
		categories, err := h.scopes.ResolveCategoryScope(r.Context(), actor.ID())
		if err != nil {
			h.logger.Error("resolve category scope", slog.Any("error", err), slog.String("actor_id", actor.ID()))
			httpx.RespondError(w, err)
			return
		}
		resp.CategoryIDs = categories.Slice()
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) showPermission(w http.ResponseWriter, r *http.Request) {
	kind, id, err := parseKindAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	action := policy.Action(strings.TrimSpace(r.URL.Query().Get("action")))
	if action == "" {
		action = policy.ActionView
	}
	target := policy.ContentTarget(kind, id)
	if action == policy.ActionModerateComment || action == policy.ActionModerateStaffComment {
		target = policy.CommentTarget(kind, id)
	}
	h.respondDecision(w, r, action, target)
}

func (h *Handler) listApprovals(w http.ResponseWriter, r *http.Request) {
	kind, id, err := parseKindAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor := identity.ActorFromContext(r.Context())
	if !h.allowed(w, r, actor, policy.ActionView, policy.ContentTarget(kind, id)) {
		return
	}
	logs, err := h.approvals.List(r.Context(), string(kind), id)
	if err != nil {
		h.logger.Error("list approvals", slog.Any("error", err), slog.String("kind", string(kind)), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	out := make([]approvalResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, approvalResponse{
			Action:     l.Action,
			ActorID:    l.ActorID,
			FromStatus: l.FromStatus,
			ToStatus:   l.ToStatus,
			Note:       l.Note,
			At:         l.At,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"approvals": out})
}

func (h *Handler) categoryDeletable(w http.ResponseWriter, r *http.Request) {
	kind, id, err := parseKindAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if kind == content.KindBrand {
		httpx.RespondError(w, fmt.Errorf("%w: stores have no categories", httpx.ErrValidation))
		return
	}
	h.respondDecision(w, r, policy.ActionDelete, policy.CategoryTarget(kind, id))
}

// respondDecision renders a decision as a 200 body. Indeterminate decisions
// become a 503 so callers cannot mistake them for a stable answer.
func (h *Handler) respondDecision(w http.ResponseWriter, r *http.Request, action policy.Action, target policy.Target) {
	actor := identity.ActorFromContext(r.Context())
	d, err := h.authorizer.Authorize(r.Context(), actor, action, target)
	if err != nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Authorization Unavailable", d.Reason)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	kind, id, err := parseKindAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req statusRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	status, err := workflow.ParseStatus(*req.StatusID)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}

	ctx := r.Context()
	actor := identity.ActorFromContext(ctx)
	if !h.allowed(w, r, actor, policy.ActionEdit, policy.ContentTarget(kind, id)) {
		return
	}

	key, ok := h.claim(w, r, actor, fmt.Sprintf("status:%s:%d", kind, id))
	if !ok {
		return
	}
	res, err := h.statuses.UpdateStatus(ctx, actor, kind, id, status)
	if err != nil {
		h.release(ctx, key)
		h.logger.Error("update status", slog.Any("error", err), slog.String("kind", string(kind)), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toStatusResponse(res))
}

func (h *Handler) updateStatusBulk(w http.ResponseWriter, r *http.Request) {
	kind, err := content.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
		return
	}
	var req bulkStatusRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	status, err := workflow.ParseStatus(*req.StatusID)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}

	ctx := r.Context()
	actor := identity.ActorFromContext(ctx)
	responses := make(map[int64]statusResponse, len(req.IDs))
	order := make([]int64, 0, len(req.IDs))
	allowed := make([]int64, 0, len(req.IDs))
	for _, id := range req.IDs {
		if _, seen := responses[id]; seen {
			continue
		}
		order = append(order, id)
		d, err := h.authorizer.Authorize(ctx, actor, policy.ActionEdit, policy.ContentTarget(kind, id))
		if err != nil {
			httpx.Problem(w, http.StatusServiceUnavailable, "Authorization Unavailable", d.Reason)
			return
		}
		if !d.Allow {
			responses[id] = statusResponse{ID: id, Outcome: d.Outcome, Reason: d.Reason}
			continue
		}
		responses[id] = statusResponse{ID: id, Outcome: d.Outcome}
		allowed = append(allowed, id)
	}

	key, ok := h.claim(w, r, actor, fmt.Sprintf("status:%s:bulk", kind))
	if !ok {
		return
	}
	results, err := h.statuses.UpdateStatusMany(ctx, actor, kind, allowed, status)
	if err != nil {
		h.release(ctx, key)
		h.logger.Error("bulk update status", slog.Any("error", err), slog.String("kind", string(kind)), slog.Int("count", len(allowed)))
		httpx.RespondError(w, err)
		return
	}
	for _, res := range results {
		resp := toStatusResponse(res)
		resp.Outcome = responses[res.ID].Outcome
		responses[res.ID] = resp
	}

	out := make([]statusResponse, 0, len(order))
	for _, id := range order {
		out = append(out, responses[id])
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"results": out})
}

func (h *Handler) replaceAssignments(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		httpx.RespondError(w, fmt.Errorf("%w: user id required", httpx.ErrValidation))
		return
	}
	var req assignmentsRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	ctx := r.Context()
	actor := identity.ActorFromContext(ctx)
	if !h.allowed(w, r, actor, policy.ActionEdit, policy.EmployeeTarget(userID)) {
		return
	}
	categories := shared.NewIDSet(req.CategoryIDs...)
	if err := h.scopes.ReplaceAssignments(ctx, userID, categories); err != nil {
		h.logger.Error("replace category assignments", slog.Any("error", err), slog.String("user_id", userID))
		if errors.Is(err, shared.ErrInvalidInput) {
			httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user_id": userID, "category_ids": categories.Slice()})
}

// allowed authorizes action and writes the failure response when denied.
func (h *Handler) allowed(w http.ResponseWriter, r *http.Request, actor identity.Actor, action policy.Action, target policy.Target) bool {
	d, err := h.authorizer.Authorize(r.Context(), actor, action, target)
	if err != nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Authorization Unavailable", d.Reason)
		return false
	}
	if d.Allow {
		return true
	}
	if d.NotFound() {
		httpx.Problem(w, http.StatusNotFound, "Not Found", d.Reason)
		return false
	}
	httpx.Problem(w, http.StatusForbidden, "Forbidden", d.Reason)
	return false
}

// claim reserves the request's idempotency key, if any. It returns the scoped
// key to release on failure.
func (h *Handler) claim(w http.ResponseWriter, r *http.Request, actor identity.Actor, scope string) (string, bool) {
	if h.idempotency == nil {
		return "", true
	}
	key := shared.ScopedKey(actor.ID(), r.Header.Get(IdempotencyHeader))
	if key == "" {
		return "", true
	}
	if err := h.idempotency.Claim(r.Context(), key, scope); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
			return "", false
		}
		h.logger.Error("claim idempotency key", slog.Any("error", err))
		httpx.RespondError(w, err)
		return "", false
	}
	return key, true
}

func (h *Handler) release(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := h.idempotency.Release(ctx, key); err != nil {
		h.logger.Warn("release idempotency key", slog.Any("error", err))
	}
}

func (h *Handler) decode(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return err
	}
	if err := h.validator.Struct(target); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %s", httpx.ErrValidation, strings.ToLower(fe.Field()), fe.Tag())
		}
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return nil
}

func parseKindAndID(r *http.Request) (content.Kind, int64, error) {
	kind, err := content.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", httpx.ErrNotFound, err)
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("%w: invalid id", httpx.ErrValidation)
	}
	return kind, id, nil
}

func toStatusResponse(res workflow.Result) statusResponse {
	resp := statusResponse{ID: res.ID, Applied: res.Applied}
	if res.Transition != nil {
		status := res.Transition.After.StatusID
		resp.StatusID = &status
		resp.Effect = res.Transition.Effect
	}
	return resp
}
