// Package policy decides whether an actor may perform an action on a content
// entity, store, employee or category.
package policy

import (
	"fmt"

	"github.com/tenantcms/tenantcms/internal/content"
	"github.com/tenantcms/tenantcms/internal/platform/httpx"
)

var (
	// ErrNotFound is wrapped by decisions whose target did not resolve.
	ErrNotFound = fmt.Errorf("policy: %w", httpx.ErrNotFound)
	// ErrDenied is wrapped by every other negative decision.
	ErrDenied = fmt.Errorf("policy: %w", httpx.ErrForbidden)
)

// Action is an operation an actor attempts.
type Action string

const (
	ActionView                 Action = "view"
	ActionCreate               Action = "create"
	ActionEdit                 Action = "edit"
	ActionDelete               Action = "delete"
	ActionComment              Action = "comment"
	ActionStaffComment         Action = "staff-comment"
	ActionModerateComment      Action = "moderate-comment"
	ActionModerateStaffComment Action = "moderate-staff-comment"
)

// Resource is the class of thing an action targets.
type Resource string

const (
	ResourceArticle         Resource = "article"
	ResourceProduct         Resource = "product"
	ResourceBrand           Resource = "brand"
	ResourceEmployee        Resource = "employee"
	ResourceArticleCategory Resource = "article-category"
	ResourceProductCategory Resource = "product-category"
)

// Target identifies what an action is aimed at. ID is the entity, comment or
// category id; UserID is used for employees. Both are zero for create.
type Target struct {
	Resource Resource
	ID       int64
	UserID   string
}

// ContentTarget targets an article, product or store.
func ContentTarget(kind content.Kind, id int64) Target {
	return Target{Resource: Resource(kind), ID: id}
}

// CommentTarget targets a comment on an article or product.
func CommentTarget(kind content.Kind, commentID int64) Target {
	return Target{Resource: Resource(kind), ID: commentID}
}

// EmployeeTarget targets a user profile.
func EmployeeTarget(userID string) Target {
	return Target{Resource: ResourceEmployee, UserID: userID}
}

// CategoryTarget targets an article or product category.
func CategoryTarget(kind content.Kind, id int64) Target {
	if kind == content.KindArticle {
		return Target{Resource: ResourceArticleCategory, ID: id}
	}
	return Target{Resource: ResourceProductCategory, ID: id}
}

func (t Target) contentKind() content.Kind {
	switch t.Resource {
	case ResourceArticle, ResourceArticleCategory:
		return content.KindArticle
	case ResourceProduct, ResourceProductCategory:
		return content.KindProduct
	case ResourceBrand:
		return content.KindBrand
	}
	return ""
}

// Outcome classifies a decision so callers can render 404 and 403 differently.
type Outcome string

const (
	OutcomeAllowed  Outcome = "allowed"
	OutcomeNotFound Outcome = "not_found"
	OutcomeDenied   Outcome = "denied"
	// OutcomeUnscoped is a denial caused by a missing home store or an
	// empty category assignment.
	OutcomeUnscoped Outcome = "unscoped"
	// OutcomeIndeterminate is a denial caused by a collaborator failure.
	OutcomeIndeterminate Outcome = "indeterminate"
)

// Decision is the result of Authorize.
type Decision struct {
	Allow   bool    `json:"allow"`
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}

func allow() Decision {
	return Decision{Allow: true, Outcome: OutcomeAllowed}
}

func deny(outcome Outcome, reason string) Decision {
	return Decision{Outcome: outcome, Reason: reason}
}

// NotFound reports whether the target did not resolve.
func (d Decision) NotFound() bool {
	return d.Outcome == OutcomeNotFound
}

// Err converts a negative decision into an error wrapping ErrNotFound or
// ErrDenied. It returns nil when the decision allows.
func (d Decision) Err() error {
	if d.Allow {
		return nil
	}
	if d.Outcome == OutcomeNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, d.Reason)
	}
	return fmt.Errorf("%w: %s", ErrDenied, d.Reason)
}
