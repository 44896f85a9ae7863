// Package content models the workflow-relevant snapshot of articles, products
// and stores, and reads/writes it from PostgreSQL.
package content

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tenantcms/tenantcms/internal/shared"
)

// Kind names a content entity class.
type Kind string

const (
	KindArticle Kind = "article"
	KindProduct Kind = "product"
	KindBrand   Kind = "brand"
)

var (
	// ErrNotFound indicates the entity, comment or category does not exist.
	ErrNotFound = errors.New("content: not found")
	// ErrUnknownKind indicates an unsupported entity class.
	ErrUnknownKind = errors.New("content: unknown kind")
	// ErrInvalidTriState indicates a flag value outside -1..1.
	ErrInvalidTriState = errors.New("content: invalid tri-state value")
)

// ParseKind accepts singular or plural kind names as used in URLs.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "article", "articles":
		return KindArticle, nil
	case "product", "products":
		return KindProduct, nil
	case "brand", "brands", "store", "stores":
		return KindBrand, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
}

// Label is the user-facing noun for the kind.
func (k Kind) Label() string {
	switch k {
	case KindArticle:
		return "article"
	case KindProduct:
		return "product"
	case KindBrand:
		return "store"
	}
	return "item"
}

// Status is a workflow position. Codes are caller defined; the named ones
// carry review semantics.
type Status int

const (
	StatusRejected  Status = 0
	StatusSaved     Status = 1
	StatusChecking  Status = 2
	StatusChecked   Status = 3
	StatusPublished Status = 4
)

// DefaultInitialStatus is used when a creator supplies no status.
const DefaultInitialStatus = StatusSaved

// OwnerEditable reports whether an originator may still edit content in this
// status.
func (s Status) OwnerEditable() bool {
	return s == StatusSaved || s == StatusChecked
}

// TriState is a review flag that starts out unevaluated.
type TriState int8

const (
	Unevaluated TriState = -1
	Negative    TriState = 0
	Positive    TriState = 1
)

// TriStateFromInt converts a stored flag.
func TriStateFromInt(v int) (TriState, error) {
	switch v {
	case -1, 0, 1:
		return TriState(v), nil
	}
	return Unevaluated, fmt.Errorf("%w: %d", ErrInvalidTriState, v)
}

// Int returns the stored representation.
func (t TriState) Int() int {
	return int(t)
}

func (t TriState) String() string {
	switch t {
	case Unevaluated:
		return "unevaluated"
	case Negative:
		return "negative"
	case Positive:
		return "positive"
	}
	return fmt.Sprintf("tristate(%d)", int(t))
}

// Entity is the snapshot of an article, product or store the engine reasons
// about. Zero times mean "never stamped".
type Entity struct {
	Kind        Kind
	ID          int64
	OwnerID     string
	BrandID     *int64
	CategoryIDs shared.IDSet
	StatusID    Status
	Checked     TriState
	CheckedBy   string
	CheckedAt   time.Time
	Approved    TriState
	ApprovedBy  string
	ApprovedAt  time.Time
}

// NewEntity returns a freshly created entity: both review flags unevaluated
// and the creator as owner.
func NewEntity(kind Kind, ownerID string, brandID *int64, categories shared.IDSet, initial *Status) Entity {
	status := DefaultInitialStatus
	if initial != nil {
		status = *initial
	}
	e := Entity{
		Kind:        kind,
		OwnerID:     ownerID,
		CategoryIDs: categories.Clone(),
		StatusID:    status,
		Checked:     Unevaluated,
		Approved:    Unevaluated,
	}
	if brandID != nil {
		b := *brandID
		e.BrandID = &b
	}
	return e
}

// Brand returns the owning store.
func (e Entity) Brand() (int64, bool) {
	if e.BrandID == nil {
		return 0, false
	}
	return *e.BrandID, true
}

// Clone returns a deep copy.
func (e Entity) Clone() Entity {
	out := e
	out.CategoryIDs = e.CategoryIDs.Clone()
	if e.BrandID != nil {
		b := *e.BrandID
		out.BrandID = &b
	}
	return out
}

// Comment is a reader or staff comment on an article or product.
type Comment struct {
	ID        int64
	Kind      Kind
	TargetID  int64
	CreatedBy string
	Staff     bool
}

// Category is an editorial category of articles or products.
type Category struct {
	ID        int64
	Kind      Kind
	Name      string
	CanDelete bool
}
