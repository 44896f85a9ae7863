package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/tenantcms/tenantcms/internal/content"
	"github.com/tenantcms/tenantcms/internal/identity"
)

const (
	reasonCannotEditAfterStatus = "cannot edit after status change"
	reasonNotInCategory         = "not assigned to this category"
	reasonNoHomeBrand           = "no store is assigned to your profile"
)

type ruleKey struct {
	resource Resource
	action   Action
}

// request is the state of one evaluation. Loaders fill the subject fields.
type request struct {
	actor    identity.Actor
	action   Action
	target   Target
	denied   string
	entity   content.Entity
	comment  content.Comment
	category content.Category
}

type verdict struct {
	decided  bool
	decision Decision
}

var pass = verdict{}

func decide(d Decision) verdict {
	return verdict{decided: true, decision: d}
}

// rule inspects a request and either decides or passes to the next rule.
type rule func(ctx context.Context, e *Engine, req *request) (verdict, error)

// loader resolves the subject of a request, reporting whether it exists.
type loader func(ctx context.Context, e *Engine, req *request) (bool, error)

// ruleSet is the ordered rule list of one (resource, action) pair. The first
// rule that decides wins; denied is the fallback reason.
type ruleSet struct {
	load     loader
	notFound string
	rules    []rule
	denied   string
}

// ruleTable spells out every supported pair. Coverage differs between
// resources on purpose: product edit grants owner self-edit and
// category-lead rights that article edit does not.
func ruleTable() map[ruleKey]ruleSet {
	admin := allowRoles(identity.RoleSystemAdmin)
	editors := allowRoles(identity.RoleSystemAdmin, identity.RoleEditorInChief)

	return map[ruleKey]ruleSet{
		{ResourceArticle, ActionView}:   contentSet(content.KindArticle, "not authorized to view", admin, brandScoped),
		{ResourceArticle, ActionCreate}: {rules: []rule{allowAll}},
		{ResourceArticle, ActionEdit}:   contentSet(content.KindArticle, "not authorized to edit", editors, brandScoped),
		{ResourceArticle, ActionDelete}: contentSet(content.KindArticle, "not authorized to delete", admin, brandScoped),
		{ResourceArticle, ActionComment}: {
			rules: []rule{allowAll},
		},
		{ResourceArticle, ActionStaffComment}: {
			rules:  []rule{allowAuthenticated},
			denied: "sign in to comment",
		},
		{ResourceArticle, ActionModerateComment}:      commentSet(content.KindArticle),
		{ResourceArticle, ActionModerateStaffComment}: commentSet(content.KindArticle),

		{ResourceProduct, ActionView}: contentSet(content.KindProduct, "not authorized to view", admin, brandScoped),
		{ResourceProduct, ActionCreate}: {
			rules:  []rule{allowRoles(identity.RoleSystemAdmin, identity.RoleStoreAdmin, identity.RoleStoreStaff)},
			denied: "not authorized to create",
		},
		{ResourceProduct, ActionEdit}: contentSet(content.KindProduct, "not authorized to edit",
			editors, brandScoped, ownerSelfEdit, categoryLead),
		{ResourceProduct, ActionDelete}: contentSet(content.KindProduct, "not authorized to delete", admin, brandScoped),
		{ResourceProduct, ActionComment}: {
			rules: []rule{allowAll},
		},
		{ResourceProduct, ActionStaffComment}:         contentSet(content.KindProduct, "not authorized to comment", admin, brandScoped),
		{ResourceProduct, ActionModerateComment}:      commentSet(content.KindProduct),
		{ResourceProduct, ActionModerateStaffComment}: commentSet(content.KindProduct),

		{ResourceBrand, ActionView}: contentSet(content.KindBrand, "not authorized to view", admin, homeStore),
		{ResourceBrand, ActionEdit}: contentSet(content.KindBrand, "not authorized to edit this store", admin, homeStore),

		{ResourceEmployee, ActionCreate}: {
			rules:  []rule{allowRoles(identity.RoleSystemAdmin, identity.RoleStoreAdmin, identity.RoleStoreStaff)},
			denied: "not authorized to add employees",
		},
		{ResourceEmployee, ActionEdit}: {
			rules:  []rule{admin, sameBrandEmployee},
			denied: "not authorized to edit this employee",
		},

		{ResourceArticleCategory, ActionDelete}: categoryDeleteSet(),
		{ResourceProductCategory, ActionDelete}: categoryDeleteSet(),
	}
}

func contentSet(kind content.Kind, denied string, rules ...rule) ruleSet {
	return ruleSet{
		load:     loadEntity(kind),
		notFound: "entity not found",
		rules:    rules,
		denied:   denied,
	}
}

func commentSet(kind content.Kind) ruleSet {
	return ruleSet{
		load:     loadComment(kind),
		notFound: "comment not found",
		rules:    []rule{commentOwner},
		denied:   "not authorized to modify this comment",
	}
}

// categoryDeleteSet checks the role before anything else; the guard then
// requires the category to exist, to be deletable and to be empty.
func categoryDeleteSet() ruleSet {
	return ruleSet{
		rules:  []rule{requireRole(identity.RoleSystemAdmin), deletableCategory},
		denied: "not authorized to delete categories",
	}
}

func loadEntity(kind content.Kind) loader {
	return func(ctx context.Context, e *Engine, req *request) (bool, error) {
		ent, err := e.content.FindEntity(ctx, kind, req.target.ID)
		if errors.Is(err, content.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("policy: load %s: %w", kind, err)
		}
		req.entity = ent
		return true, nil
	}
}

func loadComment(kind content.Kind) loader {
	return func(ctx context.Context, e *Engine, req *request) (bool, error) {
		c, err := e.content.FindComment(ctx, kind, req.target.ID)
		if errors.Is(err, content.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("policy: load comment: %w", err)
		}
		req.comment = c
		return true, nil
	}
}

func allowAll(context.Context, *Engine, *request) (verdict, error) {
	return decide(allow()), nil
}

func allowAuthenticated(_ context.Context, _ *Engine, req *request) (verdict, error) {
	if req.actor.Authenticated() {
		return decide(allow()), nil
	}
	return pass, nil
}

func allowRoles(roles ...identity.RoleName) rule {
	return func(_ context.Context, _ *Engine, req *request) (verdict, error) {
		if req.actor.HasAny(roles...) {
			return decide(allow()), nil
		}
		return pass, nil
	}
}

// requireRole denies immediately unless the actor holds role.
func requireRole(role identity.RoleName) rule {
	return func(_ context.Context, _ *Engine, req *request) (verdict, error) {
		if !req.actor.Has(role) {
			return decide(deny(OutcomeDenied, req.denied)), nil
		}
		return pass, nil
	}
}

// brandScoped decides for store roles: allow exactly when the entity belongs
// to the actor's home store. It never passes to later rules.
func brandScoped(_ context.Context, _ *Engine, req *request) (verdict, error) {
	if !req.actor.HasAny(identity.RoleStoreAdmin, identity.RoleStoreStaff) {
		return pass, nil
	}
	home, ok := req.actor.HomeBrand()
	if !ok {
		return decide(deny(OutcomeUnscoped, reasonNoHomeBrand)), nil
	}
	if brand, ok := req.entity.Brand(); ok && brand == home {
		return decide(allow()), nil
	}
	return decide(deny(OutcomeDenied, req.denied)), nil
}

// homeStore is brandScoped for the store itself: the target id is compared
// with the actor's home store.
func homeStore(_ context.Context, _ *Engine, req *request) (verdict, error) {
	if !req.actor.HasAny(identity.RoleStoreAdmin, identity.RoleStoreStaff) {
		return pass, nil
	}
	home, ok := req.actor.HomeBrand()
	if !ok {
		return decide(deny(OutcomeUnscoped, reasonNoHomeBrand)), nil
	}
	if req.target.ID == home {
		return decide(allow()), nil
	}
	return decide(deny(OutcomeDenied, req.denied)), nil
}

// ownerSelfEdit lets originators edit their own product until it moves past
// the owner-editable statuses.
func ownerSelfEdit(_ context.Context, _ *Engine, req *request) (verdict, error) {
	if !req.actor.HasAny(identity.RoleEditor, identity.RoleContributor, identity.RoleGuest) {
		return pass, nil
	}
	if !req.actor.Authenticated() || req.entity.OwnerID != req.actor.ID() {
		return pass, nil
	}
	if req.entity.StatusID.OwnerEditable() {
		return decide(allow()), nil
	}
	return decide(deny(OutcomeDenied, reasonCannotEditAfterStatus)), nil
}

func categoryLead(ctx context.Context, e *Engine, req *request) (verdict, error) {
	if !req.actor.Has(identity.RoleCategoryLead) {
		return pass, nil
	}
	assigned, err := e.scopes.ResolveCategoryScope(ctx, req.actor.ID())
	if err != nil {
		return pass, fmt.Errorf("policy: resolve category scope: %w", err)
	}
	if assigned.Len() == 0 {
		return decide(deny(OutcomeUnscoped, reasonNotInCategory)), nil
	}
	if assigned.Intersects(req.entity.CategoryIDs) {
		return decide(allow()), nil
	}
	return decide(deny(OutcomeDenied, reasonNotInCategory)), nil
}

// commentOwner is pure ownership: no role grants moderation of another
// actor's comment.
func commentOwner(_ context.Context, _ *Engine, req *request) (verdict, error) {
	if req.actor.Authenticated() && req.comment.CreatedBy == req.actor.ID() {
		return decide(allow()), nil
	}
	return pass, nil
}

// sameBrandEmployee lets store roles edit employees of their own store. Both
// the actor's home store and the employee's profile must resolve.
func sameBrandEmployee(ctx context.Context, e *Engine, req *request) (verdict, error) {
	if !req.actor.HasAny(identity.RoleStoreAdmin, identity.RoleStoreStaff) {
		return pass, nil
	}
	home, ok := req.actor.HomeBrand()
	if !ok {
		return decide(deny(OutcomeUnscoped, reasonNoHomeBrand)), nil
	}
	profile, err := e.profiles.FindProfile(ctx, req.target.UserID)
	if errors.Is(err, identity.ErrProfileNotFound) {
		return decide(deny(OutcomeDenied, "employee profile not found")), nil
	}
	if err != nil {
		return pass, fmt.Errorf("policy: load employee profile: %w", err)
	}
	if brand, ok := profile.Brand(); ok && brand == home {
		return decide(allow()), nil
	}
	return decide(deny(OutcomeDenied, req.denied)), nil
}

// deletableCategory evaluates existence, the can-delete flag and emptiness in
// that order, stopping at the first failure.
func deletableCategory(ctx context.Context, e *Engine, req *request) (verdict, error) {
	kind := req.target.contentKind()
	cat, err := e.content.FindCategory(ctx, kind, req.target.ID)
	if errors.Is(err, content.ErrNotFound) {
		return decide(deny(OutcomeNotFound, "category not found")), nil
	}
	if err != nil {
		return pass, fmt.Errorf("policy: load category: %w", err)
	}
	if !cat.CanDelete {
		return decide(deny(OutcomeDenied, "category is protected from deletion")), nil
	}
	members, err := e.content.CountCategoryMembers(ctx, kind, cat.ID)
	if err != nil {
		return pass, fmt.Errorf("policy: count category members: %w", err)
	}
	if members > 0 {
		return decide(deny(OutcomeDenied, fmt.Sprintf("category still has %d %ss", members, kind.Label()))), nil
	}
	return decide(allow()), nil
}
