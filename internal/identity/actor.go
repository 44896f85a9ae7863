package identity

import "sort"

// Actor is the calling identity. It is immutable once built; copies share no
// mutable state with the inputs passed to NewActor.
type Actor struct {
	id        string
	roles     map[RoleName]struct{}
	homeBrand int64
	hasBrand  bool
}

// NewActor builds an Actor. Invalid role values are dropped.
func NewActor(id string, roles []RoleName, homeBrandID *int64) Actor {
	set := make(map[RoleName]struct{}, len(roles))
	for _, r := range roles {
		if r.Valid() {
			set[r] = struct{}{}
		}
	}
	a := Actor{id: id, roles: set}
	if homeBrandID != nil {
		a.homeBrand = *homeBrandID
		a.hasBrand = true
	}
	return a
}

// Anonymous returns an actor with no id, roles or scope.
func Anonymous() Actor {
	return Actor{}
}

// ID returns the actor identifier, empty for anonymous callers.
func (a Actor) ID() string {
	return a.id
}

// Authenticated reports whether the actor carries an identifier.
func (a Actor) Authenticated() bool {
	return a.id != ""
}

// Has reports whether the actor holds role.
func (a Actor) Has(role RoleName) bool {
	_, ok := a.roles[role]
	return ok
}

// HasAny reports whether the actor holds at least one of roles.
func (a Actor) HasAny(roles ...RoleName) bool {
	for _, r := range roles {
		if a.Has(r) {
			return true
		}
	}
	return false
}

// Roles returns the held roles sorted by name.
func (a Actor) Roles() []RoleName {
	out := make([]RoleName, 0, len(a.roles))
	for r := range a.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HomeBrand returns the store the actor's profile is pinned to.
func (a Actor) HomeBrand() (int64, bool) {
	return a.homeBrand, a.hasBrand
}
