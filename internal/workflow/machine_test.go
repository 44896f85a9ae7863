package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tenantcms/tenantcms/internal/content"
	"github.com/tenantcms/tenantcms/internal/identity"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func freshProduct() content.Entity {
	ent := content.NewEntity(content.KindProduct, "u-owner", nil, nil, nil)
	ent.ID = 11
	return ent
}

func TestApplyCheckStatuses(t *testing.T) {
	m := NewMachine(fixedClock)
	actor := identity.NewActor("u-lead", []identity.RoleName{identity.RoleCategoryLead}, nil)

	for _, requested := range []content.Status{content.StatusChecking, content.StatusChecked} {
		tr := m.Apply(actor, freshProduct(), requested)
		require.Equal(t, EffectChecked, tr.Effect)
		require.Equal(t, requested, tr.After.StatusID)
		require.Equal(t, content.Positive, tr.After.Checked)
		require.Equal(t, "u-lead", tr.After.CheckedBy)
		require.Equal(t, fixedNow, tr.After.CheckedAt)
		require.Equal(t, content.Unevaluated, tr.After.Approved)
		require.Empty(t, tr.After.ApprovedBy)
	}
}

func TestApplyPublishAndReject(t *testing.T) {
	m := NewMachine(fixedClock)
	actor := identity.NewActor("u-chief", []identity.RoleName{identity.RoleEditorInChief}, nil)

	tr := m.Apply(actor, freshProduct(), content.StatusPublished)
	require.Equal(t, EffectApproved, tr.Effect)
	require.Equal(t, content.Positive, tr.After.Approved)
	require.Equal(t, "u-chief", tr.After.ApprovedBy)
	require.Equal(t, fixedNow, tr.After.ApprovedAt)
	require.Equal(t, content.Unevaluated, tr.After.Checked)

	tr = m.Apply(actor, freshProduct(), content.StatusRejected)
	require.Equal(t, EffectRejected, tr.Effect)
	require.Equal(t, content.StatusRejected, tr.After.StatusID)
	require.Equal(t, content.Negative, tr.After.Approved)
}

func TestApplyFreeFormStatusLeavesFlags(t *testing.T) {
	m := NewMachine(fixedClock)
	actor := identity.NewActor("u-admin", []identity.RoleName{identity.RoleSystemAdmin}, nil)
	ent := freshProduct()
	ent.StatusID = content.StatusChecked
	ent.Checked = content.Positive
	ent.CheckedBy = "u-lead"

	for _, requested := range []content.Status{content.StatusSaved, content.Status(9)} {
		tr := m.Apply(actor, ent, requested)
		require.Equal(t, EffectStatusOnly, tr.Effect)
		require.Equal(t, requested, tr.After.StatusID)
		require.Equal(t, content.Positive, tr.After.Checked)
		require.Equal(t, "u-lead", tr.After.CheckedBy)
		require.Equal(t, content.Unevaluated, tr.After.Approved)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	m := NewMachine(fixedClock)
	actor := identity.NewActor("u-admin", []identity.RoleName{identity.RoleSystemAdmin}, nil)
	ent := freshProduct()

	tr := m.Apply(actor, ent, content.StatusPublished)
	require.Equal(t, content.StatusSaved, ent.StatusID)
	require.Equal(t, content.Unevaluated, ent.Approved)
	require.Equal(t, content.StatusSaved, tr.Before.StatusID)
}

func TestApplyIsIdempotentForSameClock(t *testing.T) {
	m := NewMachine(fixedClock)
	actor := identity.NewActor("u-admin", []identity.RoleName{identity.RoleSystemAdmin}, nil)

	once := m.Apply(actor, freshProduct(), content.StatusChecked)
	twice := m.Apply(actor, once.After, content.StatusChecked)
	require.Equal(t, once.After, twice.After)
}

func TestApplyPublishTwiceMatchesOnce(t *testing.T) {
	tick := fixedNow
	m := NewMachine(func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	})
	actor := identity.NewActor("u-chief", []identity.RoleName{identity.RoleEditorInChief}, nil)
	checkedAt := fixedNow.Add(-time.Hour)
	ent := freshProduct()
	ent.StatusID = content.StatusChecked
	ent.Checked = content.Positive
	ent.CheckedBy = "u-lead"
	ent.CheckedAt = checkedAt

	once := m.Apply(actor, ent, content.StatusPublished)
	twice := m.Apply(actor, once.After, content.StatusPublished)

	require.True(t, twice.After.ApprovedAt.After(once.After.ApprovedAt))
	once.After.ApprovedAt, twice.After.ApprovedAt = time.Time{}, time.Time{}
	require.Equal(t, once.After, twice.After)

	for _, got := range []content.Entity{once.After, twice.After} {
		require.Equal(t, content.StatusPublished, got.StatusID)
		require.Equal(t, content.Positive, got.Approved)
		require.Equal(t, "u-chief", got.ApprovedBy)
		require.Equal(t, content.Positive, got.Checked)
		require.Equal(t, "u-lead", got.CheckedBy)
		require.Equal(t, checkedAt, got.CheckedAt)
	}
}

func TestVisibleStatuses(t *testing.T) {
	lead := identity.NewActor("u-lead", []identity.RoleName{identity.RoleCategoryLead}, nil)
	ids := func(infos []StatusInfo) []content.Status {
		out := make([]content.Status, 0, len(infos))
		for _, info := range infos {
			out = append(out, info.ID)
		}
		return out
	}

	require.Equal(t, []content.Status{1, 2, 3}, ids(VisibleStatuses(lead)))
	require.Equal(t, []content.Status{0, 1, 2, 3, 4}, ids(VisibleStatuses(identity.Anonymous())))

	admin := identity.NewActor("u-admin", []identity.RoleName{identity.RoleSystemAdmin}, nil)
	require.Len(t, VisibleStatuses(admin), len(Catalog()))
}

func TestParseStatus(t *testing.T) {
	status, err := ParseStatus(4)
	require.NoError(t, err)
	require.Equal(t, content.StatusPublished, status)

	_, err = ParseStatus(7)
	require.ErrorIs(t, err, ErrInvalidStatus)
}
