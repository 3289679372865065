package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marga-Ghale/together-culture-crm/internal/types"
)

func newProfile(t *testing.T, repos *Repositories, username string) (*User, *Profile) {
	t.Helper()
	ctx := context.Background()
	u := &User{Username: username, Email: username + "@example.com", Password: "x"}
	require.NoError(t, repos.UserRepo.Create(ctx, u))
	p := &Profile{UserID: u.ID, FullName: username}
	require.NoError(t, repos.ProfileRepo.CreateWithDefaults(ctx, p, []types.InterestType{types.InterestCaring}, types.MembershipCommunity))
	return u, p
}

func TestMemoryUsers_Unique(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()

	require.NoError(t, repos.UserRepo.Create(ctx, &User{Username: "ada", Email: "ada@example.com"}))
	assert.ErrorIs(t, repos.UserRepo.Create(ctx, &User{Username: "ada", Email: "x@example.com"}), ErrDuplicate)
	assert.ErrorIs(t, repos.UserRepo.Create(ctx, &User{Username: "ada2", Email: "ADA@example.com"}), ErrDuplicate)

	u, err := repos.UserRepo.FindByEmail(ctx, "Ada@Example.com")
	require.NoError(t, err)
	require.NotNil(t, u)

	missing, err := repos.UserRepo.FindByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryProfiles_DefaultsAndLedger(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	u, p := newProfile(t, repos, "ada")

	assert.ErrorIs(t, repos.ProfileRepo.CreateWithDefaults(ctx, &Profile{UserID: u.ID}, nil, types.MembershipCommunity), ErrDuplicate)

	current, err := repos.ProfileRepo.FindCurrentMembership(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, types.MembershipCommunity, current.MembershipType)

	now := time.Now()
	req := &Membership{ProfileID: p.ID, MembershipType: types.MembershipKeyAccess, StartDate: now}
	require.NoError(t, repos.ProfileRepo.CreateMembershipRequest(ctx, req))
	assert.ErrorIs(t, repos.ProfileRepo.CreateMembershipRequest(ctx, &Membership{ProfileID: p.ID, MembershipType: types.MembershipCreativeWorkspace}), ErrDuplicate)

	approved, changed, err := repos.ProfileRepo.ApproveMembership(ctx, req.ID, "staff-1", now)
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "staff-1", *approved.ApprovedBy)

	old, err := repos.ProfileRepo.FindMembershipByID(ctx, current.ID)
	require.NoError(t, err)
	require.NotNil(t, old.EndDate)

	_, changed, err = repos.ProfileRepo.ApproveMembership(ctx, req.ID, "staff-1", now)
	require.NoError(t, err)
	assert.False(t, changed)

	deleted, err := repos.ProfileRepo.DeletePendingMembership(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestMemoryInterests_SetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	_, p := newProfile(t, repos, "ada")
	at := time.Now()

	set := []types.InterestType{types.InterestCaring, types.InterestWorking}
	opened, closed, err := repos.ProfileRepo.SetInterests(ctx, p.ID, set, at)
	require.NoError(t, err)
	assert.Equal(t, 1, opened)
	assert.Equal(t, 0, closed)

	opened, closed, err = repos.ProfileRepo.SetInterests(ctx, p.ID, set, at)
	require.NoError(t, err)
	assert.Zero(t, opened+closed)

	opened, closed, err = repos.ProfileRepo.SetInterests(ctx, p.ID, []types.InterestType{types.InterestWorking}, at)
	require.NoError(t, err)
	assert.Equal(t, 0, opened)
	assert.Equal(t, 1, closed)

	history, err := repos.ProfileRepo.FindInterestHistory(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestMemoryEvents_RegisterRunsCheckUnderLock(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	ada, _ := newProfile(t, repos, "ada")
	bob, _ := newProfile(t, repos, "bob")

	ev := &Event{Title: "Workshop", StartDate: time.Now().Add(time.Hour), Capacity: 1, IsActive: true}
	require.NoError(t, repos.EventRepo.Create(ctx, ev))

	errFull := errors.New("full")
	check := func(e *Event, registered int, already bool) error {
		if e.Capacity > 0 && registered >= e.Capacity {
			return errFull
		}
		return nil
	}

	att, err := repos.EventRepo.Register(ctx, ev.ID, ada.ID, "TC-0000000001", check)
	require.NoError(t, err)
	require.NotNil(t, att.Ticket)
	assert.Equal(t, "TC-0000000001", att.Ticket.TicketNumber)
	assert.Equal(t, 1, att.Event.RegisteredCount)

	_, err = repos.EventRepo.Register(ctx, ev.ID, bob.ID, "TC-0000000002", check)
	assert.ErrorIs(t, err, errFull)

	allow := func(*Event, int, bool) error { return nil }
	_, err = repos.EventRepo.Register(ctx, ev.ID, ada.ID, "TC-0000000003", allow)
	assert.ErrorIs(t, err, ErrDuplicate)

	carl, _ := newProfile(t, repos, "carl")
	ev2 := &Event{Title: "Second", StartDate: time.Now().Add(time.Hour), IsActive: true}
	require.NoError(t, repos.EventRepo.Create(ctx, ev2))
	_, err = repos.EventRepo.Register(ctx, ev2.ID, carl.ID, "TC-0000000001", allow)
	assert.ErrorIs(t, err, ErrTicketTaken)
	none, err := repos.EventRepo.FindAttendance(ctx, ev2.ID, carl.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	missing, err := repos.EventRepo.Register(ctx, "nope", ada.ID, "TC-0000000004", allow)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryEvents_CheckIn(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	ada, _ := newProfile(t, repos, "ada")
	bob, _ := newProfile(t, repos, "bob")
	ev := &Event{Title: "Open studio", StartDate: time.Now().Add(time.Hour), IsActive: true}
	require.NoError(t, repos.EventRepo.Create(ctx, ev))

	allow := func(*Event, int, bool) error { return nil }
	a, err := repos.EventRepo.Register(ctx, ev.ID, ada.ID, "TC-A", allow)
	require.NoError(t, err)
	_, err = repos.EventRepo.Register(ctx, ev.ID, bob.ID, "TC-B", allow)
	require.NoError(t, err)

	now := time.Now()
	changed, err := repos.EventRepo.CheckIn(ctx, a.ID, "staff-1", now)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = repos.EventRepo.CheckIn(ctx, a.ID, "staff-1", now)
	require.NoError(t, err)
	assert.False(t, changed)

	n, err := repos.EventRepo.BulkCheckIn(ctx, ev.ID, []string{ada.ID, bob.ID}, "staff-1", now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := repos.EventRepo.FindByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.RegisteredCount)
	assert.Equal(t, 2, stored.AttendedCount)
}

func TestMemoryBenefits_ActivationLifecycle(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	b := &Benefit{Name: "Desk", MembershipLevelRequired: types.AccessAll, IsActive: true}
	require.NoError(t, repos.BenefitRepo.Create(ctx, b))

	now := time.Now()
	soon := now.Add(time.Minute)
	created, err := repos.BenefitRepo.Activate(ctx, &UserBenefit{UserID: "u1", BenefitID: b.ID, ActivatedAt: now, ExpiresAt: &soon})
	require.NoError(t, err)
	assert.True(t, created)
	created, err = repos.BenefitRepo.Activate(ctx, &UserBenefit{UserID: "u1", BenefitID: b.ID, ActivatedAt: now, ExpiresAt: &soon})
	require.NoError(t, err)
	assert.False(t, created)

	n, err := repos.BenefitRepo.DeactivateExpired(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ub, err := repos.BenefitRepo.FindUserBenefit(ctx, "u1", b.ID)
	require.NoError(t, err)
	assert.False(t, ub.IsActive)
	assert.Equal(t, "Desk", ub.Benefit.Name)

	require.NoError(t, repos.BenefitRepo.Delete(ctx, b.ID))
	mine, err := repos.BenefitRepo.FindUserBenefits(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestMemoryNotifications_Cleanup(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()

	read := &Notification{UserID: "u1", Type: "X", Title: "a"}
	unread := &Notification{UserID: "u1", Type: "X", Title: "b"}
	require.NoError(t, repos.NotificationRepo.Create(ctx, read))
	require.NoError(t, repos.NotificationRepo.Create(ctx, unread))

	ok, err := repos.NotificationRepo.MarkAsRead(ctx, read.ID, "u1")
	require.NoError(t, err)
	require.True(t, ok)

	n, err := repos.NotificationRepo.DeleteOlderThan(ctx, time.Now().Add(time.Minute), true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	total, unreadCount, err := repos.NotificationRepo.CountByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, unreadCount)
}
