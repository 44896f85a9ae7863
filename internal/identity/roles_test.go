package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"
)

func TestParseRoleNameAcceptsSlugsAndLegacyLabels(t *testing.T) {
	cases := map[string]RoleName{
		"system-admin":                RoleSystemAdmin,
		"  Store-Admin ":              RoleStoreAdmin,
		"Quản trị hệ thống":           RoleSystemAdmin,
		"PHỤ TRÁCH CHUYÊN MỤC":        RoleCategoryLead,
		"Nhân viên cập nhật cửa hàng": RoleStoreStaff,
		"Khách":                       RoleGuest,
	}
	for raw, want := range cases {
		got, err := ParseRoleName(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}
}

func TestParseRoleNameNormalisesDecomposedInput(t *testing.T) {
	decomposed := norm.NFD.String("Cộng tác viên")
	require.NotEqual(t, "Cộng tác viên", decomposed)

	got, err := ParseRoleName(decomposed)
	require.NoError(t, err)
	require.Equal(t, RoleContributor, got)
}

func TestParseRoleNameRejectsUnknown(t *testing.T) {
	_, err := ParseRoleName("superuser")
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestRoleHelpers(t *testing.T) {
	require.True(t, RoleStoreAdmin.BrandScoped())
	require.True(t, RoleStoreStaff.BrandScoped())
	require.False(t, RoleCategoryLead.BrandScoped())
	require.False(t, RoleName("root").Valid())
	require.Len(t, AllRoles(), 8)
}
