package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marga-Ghale/together-culture-crm/internal/types"
)

func TestNotifications_ReadState(t *testing.T) {
	e := newTestEnv(t)
	u, _ := e.member(t, "ada")
	other, _ := e.member(t, "bob")

	require.NoError(t, e.notif.SendMembershipApproved(e.ctx, u.ID, types.MembershipKeyAccess, "m1"))
	require.NoError(t, e.notif.SendBenefitUsageLogged(e.ctx, u.ID, "Discount", "b1"))

	total, unread, err := e.svc.Notification.Count(e.ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, unread)

	list, err := e.svc.Notification.List(e.ctx, u.ID, true)
	require.NoError(t, err)
	require.Len(t, list, 2)

	// Someone else's notification is not found.
	err = e.svc.Notification.MarkAsRead(e.ctx, other.ID, list[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, e.svc.Notification.MarkAsRead(e.ctx, u.ID, list[0].ID))
	unreadList, err := e.svc.Notification.List(e.ctx, u.ID, true)
	require.NoError(t, err)
	assert.Len(t, unreadList, 1)

	n, err := e.svc.Notification.MarkAllAsRead(e.ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	total, unread, err = e.svc.Notification.Count(e.ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Zero(t, unread)
}
