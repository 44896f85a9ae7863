package identity

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// RoleName identifies a capability tier. The set is closed; the policy engine
// switches over these values.
type RoleName string

const (
	// RoleSystemAdmin is the top administrative tier.
	RoleSystemAdmin RoleName = "system-admin"
	// RoleEditorInChief leads the newsroom and may edit any article or product.
	RoleEditorInChief RoleName = "editor-in-chief"
	// RoleStoreAdmin administers a single store.
	RoleStoreAdmin RoleName = "store-admin"
	// RoleStoreStaff maintains content for a single store.
	RoleStoreStaff RoleName = "store-staff"
	// RoleCategoryLead owns a set of editorial categories.
	RoleCategoryLead RoleName = "category-lead"
	// RoleEditor writes content.
	RoleEditor RoleName = "editor"
	// RoleContributor submits content.
	RoleContributor RoleName = "contributor"
	// RoleGuest is a registered outside author.
	RoleGuest RoleName = "guest"
)

// ErrUnknownRole is returned by ParseRoleName for names outside the closed set.
var ErrUnknownRole = errors.New("identity: unknown role")

var allRoles = []RoleName{
	RoleSystemAdmin,
	RoleEditorInChief,
	RoleStoreAdmin,
	RoleStoreStaff,
	RoleCategoryLead,
	RoleEditor,
	RoleContributor,
	RoleGuest,
}

// Display names stored by the legacy identity subsystem.
var legacyRoleLabels = map[string]RoleName{
	"Quản trị hệ thống":           RoleSystemAdmin,
	"Lãnh đạo tòa soạn":           RoleEditorInChief,
	"Quản trị cửa hàng":           RoleStoreAdmin,
	"Nhân viên cập nhật cửa hàng": RoleStoreStaff,
	"Phụ trách chuyên mục":        RoleCategoryLead,
	"Biên tập viên":               RoleEditor,
	"Cộng tác viên":               RoleContributor,
	"Khách":                       RoleGuest,
}

var roleLookups = buildRoleLookups()

func buildRoleLookups() map[string]RoleName {
	out := make(map[string]RoleName, len(allRoles)+len(legacyRoleLabels))
	for _, r := range allRoles {
		out[normalizeRoleKey(string(r))] = r
	}
	for label, r := range legacyRoleLabels {
		out[normalizeRoleKey(label)] = r
	}
	return out
}

// A Caser is stateful, so each call gets its own.
func normalizeRoleKey(raw string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(raw)))
}

// AllRoles lists every role in precedence order, highest first.
func AllRoles() []RoleName {
	out := make([]RoleName, len(allRoles))
	copy(out, allRoles)
	return out
}

// ParseRoleName maps a slug or a legacy display label to a RoleName. Matching
// is case-insensitive and tolerant of decomposed Unicode input.
func ParseRoleName(raw string) (RoleName, error) {
	if r, ok := roleLookups[normalizeRoleKey(raw)]; ok {
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
}

// Valid reports whether r belongs to the closed role set.
func (r RoleName) Valid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

// BrandScoped reports whether the role is pinned to the actor's home store.
func (r RoleName) BrandScoped() bool {
	return r == RoleStoreAdmin || r == RoleStoreStaff
}
