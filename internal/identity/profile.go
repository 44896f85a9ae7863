package identity

import (
	"context"
	"errors"
)

// ErrProfileNotFound indicates the user has no profile row.
var ErrProfileNotFound = errors.New("identity: profile not found")

// Profile is the organisational record attached to a user.
type Profile struct {
	UserID  string
	BrandID *int64
}

// Brand returns the profile's store, if any.
func (p Profile) Brand() (int64, bool) {
	if p.BrandID == nil {
		return 0, false
	}
	return *p.BrandID, true
}

// ProfileStore resolves user profiles.
type ProfileStore interface {
	FindProfile(ctx context.Context, userID string) (Profile, error)
}

// RoleStore lists the raw role names granted to a user.
type RoleStore interface {
	ListRoleNames(ctx context.Context, userID string) ([]string, error)
}
