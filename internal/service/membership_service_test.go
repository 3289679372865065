package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marga-Ghale/together-culture-crm/internal/notification"
	"github.com/Marga-Ghale/together-culture-crm/internal/types"
)

func openRows(t *testing.T, e *testEnv, profileID string) (current, pending int) {
	t.Helper()
	history, err := e.repos.ProfileRepo.FindMembershipHistory(e.ctx, profileID)
	require.NoError(t, err)
	for _, m := range history {
		if m.IsCurrent() {
			current++
		}
		if m.IsPending() {
			pending++
		}
	}
	return current, pending
}

func TestProfileCreate_GrantsCommunityMembership(t *testing.T) {
	e := newTestEnv(t)
	_, profile := e.member(t, "ada")

	current, err := e.svc.Membership.Current(e.ctx, profile.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, types.MembershipCommunity, current.MembershipType)
	assert.True(t, current.IsApproved)
	assert.Nil(t, current.EndDate)
}

func TestMembershipUpgrade_ClosesPreviousRow(t *testing.T) {
	e := newTestEnv(t)
	u, profile := e.member(t, "ada")

	before, err := e.svc.Membership.Current(e.ctx, profile.ID)
	require.NoError(t, err)

	req, err := e.svc.Membership.Request(e.ctx, u, "key_access")
	require.NoError(t, err)
	assert.True(t, req.IsPending())

	// Staff were told about the request.
	assert.Equal(t, 1, countNotifications(t, e, e.admin.ID, notification.TypeMembershipRequested))

	approved, err := e.svc.Membership.Approve(e.ctx, e.admin, req.ID)
	require.NoError(t, err)
	assert.True(t, approved.IsCurrent())

	old, err := e.repos.ProfileRepo.FindMembershipByID(e.ctx, before.ID)
	require.NoError(t, err)
	require.NotNil(t, old.EndDate)

	current, err := e.svc.Membership.Current(e.ctx, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, types.MembershipKeyAccess, current.MembershipType)

	assert.Equal(t, 1, countNotifications(t, e, u.ID, notification.TypeMembershipApproved))
	assert.Equal(t, []string{types.MembershipKeyAccess.Label()}, e.mailer.approvals)
}

func TestMembership_AtMostOneCurrentRow(t *testing.T) {
	e := newTestEnv(t)
	u, profile := e.member(t, "ada")

	sequence := []types.MembershipType{
		types.MembershipKeyAccess,
		types.MembershipCreativeWorkspace,
		types.MembershipCommunity,
		types.MembershipKeyAccess,
	}
	for _, tier := range sequence {
		e.promote(t, u, tier)
		current, pending := openRows(t, e, profile.ID)
		assert.Equal(t, 1, current, "after moving to %s", tier)
		assert.Equal(t, 0, pending)
	}

	history, err := e.svc.Membership.History(e.ctx, u)
	require.NoError(t, err)
	assert.Len(t, history, len(sequence)+1)
}

func TestMembershipRequest_OnePendingAtATime(t *testing.T) {
	e := newTestEnv(t)
	u, profile := e.member(t, "ada")

	_, err := e.svc.Membership.Request(e.ctx, u, "key_access")
	require.NoError(t, err)

	_, err = e.svc.Membership.Request(e.ctx, u, "creative_workspace")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "pending_request_exists", ReasonOf(err))

	_, pending := openRows(t, e, profile.ID)
	assert.Equal(t, 1, pending)
}

func TestMembershipRequest_Rules(t *testing.T) {
	e := newTestEnv(t)
	u, _ := e.member(t, "ada")

	_, err := e.svc.Membership.Request(e.ctx, u, "community")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "already_member", ReasonOf(err))

	_, err = e.svc.Membership.Request(e.ctx, u, "platinum")
	assert.ErrorIs(t, err, ErrValidation)

	// Variant spellings normalise to the canonical tier.
	m, err := e.svc.Membership.Request(e.ctx, u, "Key Access")
	require.NoError(t, err)
	assert.Equal(t, types.MembershipKeyAccess, m.MembershipType)

	noProfile := e.user(t, "bob")
	_, err = e.svc.Membership.Request(e.ctx, noProfile, "key_access")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "profile_missing", ReasonOf(err))
}

func TestMembershipApprove(t *testing.T) {
	e := newTestEnv(t)
	u, _ := e.member(t, "ada")
	req, err := e.svc.Membership.Request(e.ctx, u, "key_access")
	require.NoError(t, err)

	_, err = e.svc.Membership.Approve(e.ctx, u, req.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, "admin_required", ReasonOf(err))

	_, err = e.svc.Membership.Approve(e.ctx, e.admin, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := e.svc.Membership.Approve(e.ctx, e.admin, req.ID)
	require.NoError(t, err)
	again, err := e.svc.Membership.Approve(e.ctx, e.admin, req.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 1, countNotifications(t, e, u.ID, notification.TypeMembershipApproved))
}

func TestMembershipApprove_EndedRowIsReturnedUnchanged(t *testing.T) {
	e := newTestEnv(t)
	u, _ := e.member(t, "ada")

	first, err := e.svc.Membership.Request(e.ctx, u, "key_access")
	require.NoError(t, err)
	_, err = e.svc.Membership.Approve(e.ctx, e.admin, first.ID)
	require.NoError(t, err)
	e.promote(t, u, types.MembershipCreativeWorkspace)

	// Re-approving a row that has since ended returns it unchanged.
	m, err := e.svc.Membership.Approve(e.ctx, e.admin, first.ID)
	require.NoError(t, err)
	assert.NotNil(t, m.EndDate)
}

func TestMembershipCancelPending(t *testing.T) {
	e := newTestEnv(t)
	u, profile := e.member(t, "ada")

	err := e.svc.Membership.CancelPending(e.ctx, u)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.svc.Membership.Request(e.ctx, u, "key_access")
	require.NoError(t, err)
	require.NoError(t, e.svc.Membership.CancelPending(e.ctx, u))

	pending, err := e.svc.Membership.Pending(e.ctx, profile.ID)
	require.NoError(t, err)
	assert.Nil(t, pending)

	list, err := e.svc.Membership.ListPending(e.ctx, e.admin)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMembershipListPending(t *testing.T) {
	e := newTestEnv(t)
	u, _ := e.member(t, "ada")
	_, err := e.svc.Membership.Request(e.ctx, u, "creative_workspace")
	require.NoError(t, err)

	_, err = e.svc.Membership.ListPending(e.ctx, u)
	assert.ErrorIs(t, err, ErrForbidden)

	list, err := e.svc.Membership.ListPending(e.ctx, e.admin)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, u.ID, list[0].User.ID)
	assert.Equal(t, types.MembershipCreativeWorkspace, list[0].Membership.MembershipType)
}

func TestCurrentTier(t *testing.T) {
	e := newTestEnv(t)

	stranger := e.user(t, "nobody")
	tier, err := e.svc.Membership.CurrentTier(e.ctx, stranger.ID)
	require.NoError(t, err)
	assert.Nil(t, tier)

	u, _ := e.member(t, "ada")
	e.promote(t, u, types.MembershipCreativeWorkspace)
	tier, err = e.svc.Membership.CurrentTier(e.ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, tier)
	assert.Equal(t, types.MembershipCreativeWorkspace, *tier)
}
