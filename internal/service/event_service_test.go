package service

import (
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marga-Ghale/together-culture-crm/internal/entitlement"
	"github.com/Marga-Ghale/together-culture-crm/internal/notification"
	"github.com/Marga-Ghale/together-culture-crm/internal/repository"
	"github.com/Marga-Ghale/together-culture-crm/internal/types"
)

func TestNewTicketNumber(t *testing.T) {
	pattern := regexp.MustCompile(`^TC-[0-9A-F]{10}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		n := NewTicketNumber()
		assert.Regexp(t, pattern, n)
		assert.False(t, seen[n])
		seen[n] = true
	}
}

func TestEventCreate_Validation(t *testing.T) {
	e := newTestEnv(t)

	in := e.eventInput("ab")
	in.EndDate = in.StartDate.Add(-time.Hour)
	in.Cost = "-1"
	in.Capacity = -5
	in.EligibleMembershipTypes = "gold"
	_, err := e.svc.Event.Create(e.ctx, e.admin, in)

	var re *RuleError
	require.ErrorAs(t, err, &re)
	assert.ErrorIs(t, err, ErrValidation)
	for _, field := range []string{"title", "end_date", "cost", "capacity", "eligible_membership_types"} {
		assert.Contains(t, re.Fields, field)
	}

	closes := in.StartDate.Add(24 * time.Hour)
	in = e.eventInput("Late close")
	in.RegistrationCloses = &closes
	_, err = e.svc.Event.Create(e.ctx, e.admin, in)
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Fields, "registration_closes")
}

func TestEventCreate_Normalises(t *testing.T) {
	e := newTestEnv(t)
	u, _ := e.member(t, "ada")

	in := e.eventInput("Print club")
	in.EventType = ""
	in.Cost = "12.5"
	in.EligibleMembershipTypes = "Key Access, creative"

	_, err := e.svc.Event.Create(e.ctx, u, in)
	assert.ErrorIs(t, err, ErrForbidden)

	ev := e.event(t, in)
	assert.Equal(t, types.EventOther, ev.EventType)
	assert.True(t, ev.Cost.Equal(decimal.RequireFromString("12.50")))
	assert.Equal(t, "key_access,creative_workspace", ev.EligibleMembershipTypes)
	assert.True(t, ev.IsActive)
	assert.Equal(t, e.admin.ID, ev.CreatedBy)
}

func TestEventRegister_TierIneligible(t *testing.T) {
	e := newTestEnv(t)
	in := e.eventInput("Members workshop")
	in.EligibleMembershipTypes = "key_access"
	ev := e.event(t, in)
	u, _ := e.member(t, "ada")

	d, err := e.svc.Event.Get(e.ctx, u, ev.ID)
	require.NoError(t, err)
	assert.False(t, d.CanRegister)
	assert.Equal(t, entitlement.ReasonTierIneligible, d.Reason)

	_, err = e.svc.Event.Register(e.ctx, u, ev.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, string(entitlement.ReasonTierIneligible), ReasonOf(err))

	e.promote(t, u, types.MembershipCreativeWorkspace)
	_, err = e.svc.Event.Register(e.ctx, u, ev.ID)
	assert.NoError(t, err)
}

func TestEventRegister_NoMembership(t *testing.T) {
	e := newTestEnv(t)
	in := e.eventInput("Members workshop")
	in.EligibleMembershipTypes = "community"
	ev := e.event(t, in)

	_, err := e.svc.Event.Register(e.ctx, e.user(t, "nobody"), ev.ID)
	assert.Equal(t, string(entitlement.ReasonMembershipRequired), ReasonOf(err))
}

func TestEventRegister_ExactMode(t *testing.T) {
	e := newTestEnvWithMode(t, "exact")
	in := e.eventInput("Community lunch")
	in.EligibleMembershipTypes = "community"
	ev := e.event(t, in)

	u, _ := e.member(t, "ada")
	e.promote(t, u, types.MembershipCreativeWorkspace)

	_, err := e.svc.Event.Register(e.ctx, u, ev.ID)
	assert.Equal(t, string(entitlement.ReasonTierIneligible), ReasonOf(err))
}

func TestEventRegister_Capacity(t *testing.T) {
	e := newTestEnv(t)
	in := e.eventInput("Small group")
	in.Capacity = 1
	ev := e.event(t, in)

	first, _ := e.member(t, "ada")
	_, err := e.svc.Event.Register(e.ctx, first, ev.ID)
	require.NoError(t, err)

	for _, name := range []string{"bob", "cy"} {
		u, _ := e.member(t, name)
		_, err := e.svc.Event.Register(e.ctx, u, ev.ID)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCapacity)
		assert.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, string(entitlement.ReasonEventFull), ReasonOf(err))
	}

	d, err := e.svc.Event.Get(e.ctx, first, ev.ID)
	require.NoError(t, err)
	assert.True(t, d.IsFull)
	assert.True(t, d.IsRegistered())
}

func TestEventRegister_Once(t *testing.T) {
	e := newTestEnv(t)
	ev := e.event(t, e.eventInput("Open studio"))
	u, _ := e.member(t, "ada")

	att, err := e.svc.Event.Register(e.ctx, u, ev.ID)
	require.NoError(t, err)
	require.NotNil(t, att.Ticket)
	assert.Regexp(t, `^TC-`, att.Ticket.TicketNumber)

	_, err = e.svc.Event.Register(e.ctx, u, ev.ID)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, string(entitlement.ReasonAlreadyRegistered), ReasonOf(err))

	mine, err := e.svc.Event.MyEvents(e.ctx, u)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	assert.Equal(t, 1, countNotifications(t, e, u.ID, notification.TypeEventRegistered))
	require.Len(t, e.mailer.tickets, 1)
	assert.Equal(t, att.Ticket.TicketNumber, e.mailer.tickets[0].TicketNumber)
	assert.Equal(t, "Member ada", e.mailer.tickets[0].Name)
}

func TestEventRegister_StaffBypassesRules(t *testing.T) {
	e := newTestEnv(t)
	in := e.eventInput("Full house")
	in.Capacity = 1
	in.EligibleMembershipTypes = "creative_workspace"
	ev := e.event(t, in)

	u, _ := e.member(t, "ada")
	e.promote(t, u, types.MembershipCreativeWorkspace)
	_, err := e.svc.Event.Register(e.ctx, u, ev.ID)
	require.NoError(t, err)

	_, err = e.svc.Event.Register(e.ctx, e.admin, ev.ID)
	require.NoError(t, err)

	_, err = e.svc.Event.Register(e.ctx, e.admin, ev.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestEventRegister_Window(t *testing.T) {
	e := newTestEnv(t)
	opens := e.now.Add(time.Hour)
	in := e.eventInput("Later")
	in.RegistrationOpens = &opens
	ev := e.event(t, in)
	u, _ := e.member(t, "ada")

	_, err := e.svc.Event.Register(e.ctx, u, ev.ID)
	assert.Equal(t, string(entitlement.ReasonRegistrationNotOpen), ReasonOf(err))

	e.now = e.now.Add(2 * time.Hour)
	_, err = e.svc.Event.Register(e.ctx, u, ev.ID)
	assert.NoError(t, err)

	_, err = e.svc.Event.Register(e.ctx, u, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEventCancel(t *testing.T) {
	e := newTestEnv(t)
	in := e.eventInput("One seat")
	in.Capacity = 1
	ev := e.event(t, in)
	ada, _ := e.member(t, "ada")
	bob, _ := e.member(t, "bob")

	err := e.svc.Event.Cancel(e.ctx, ada, ev.ID)
	assert.Equal(t, "not_registered", ReasonOf(err))

	_, err = e.svc.Event.Register(e.ctx, ada, ev.ID)
	require.NoError(t, err)
	require.NoError(t, e.svc.Event.Cancel(e.ctx, ada, ev.ID))

	// The freed seat can be taken.
	_, err = e.svc.Event.Register(e.ctx, bob, ev.ID)
	require.NoError(t, err)

	e.now = ev.StartDate.Add(time.Minute)
	err = e.svc.Event.Cancel(e.ctx, bob, ev.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, string(entitlement.ReasonEventStarted), ReasonOf(err))
}

func TestEventCancel_AfterAttendance(t *testing.T) {
	e := newTestEnv(t)
	ev := e.event(t, e.eventInput("Open studio"))
	u, _ := e.member(t, "ada")
	att, err := e.svc.Event.Register(e.ctx, u, ev.ID)
	require.NoError(t, err)

	_, err = e.svc.Event.MarkAttended(e.ctx, e.admin, att.ID)
	require.NoError(t, err)

	err = e.svc.Event.Cancel(e.ctx, u, ev.ID)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "already_attended", ReasonOf(err))
}

func TestEventGuestRegister(t *testing.T) {
	e := newTestEnv(t)
	in := e.eventInput("Open studio")
	in.IsPublic = true
	ev := e.event(t, in)

	guest := GuestInput{Email: " Visitor@Example.com ", FullName: "Vic Visitor", PhoneNumber: "01234 567890"}
	att, err := e.svc.Event.GuestRegister(e.ctx, ev.ID, guest)
	require.NoError(t, err)

	user, err := e.repos.UserRepo.FindByEmail(e.ctx, "visitor@example.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.True(t, user.IsGuest)
	assert.Regexp(t, `^guest_visitor_[0-9a-f]{6}$`, user.Username)
	assert.Equal(t, user.ID, att.UserID)

	profile, err := e.repos.ProfileRepo.FindByUserID(e.ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "Vic Visitor", profile.FullName)

	_, err = e.svc.Event.GuestRegister(e.ctx, ev.ID, guest)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, string(entitlement.ReasonAlreadyRegistered), ReasonOf(err))
}

func TestEventGuestRegister_Rules(t *testing.T) {
	e := newTestEnv(t)
	private := e.event(t, e.eventInput("Members only"))
	in := e.eventInput("Open studio")
	in.IsPublic = true
	public := e.event(t, in)

	_, err := e.svc.Event.GuestRegister(e.ctx, private.ID, GuestInput{Email: "v@example.com", FullName: "Vic Visitor"})
	assert.Equal(t, "event_not_public", ReasonOf(err))

	_, err = e.svc.Event.GuestRegister(e.ctx, public.ID, GuestInput{Email: "not-an-email", FullName: "V"})
	var re *RuleError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Fields, "email")
	assert.Contains(t, re.Fields, "full_name")

	_, err = e.svc.Event.GuestRegister(e.ctx, public.ID, GuestInput{Email: e.admin.Email, FullName: "Staff Member"})
	assert.Equal(t, "login_required", ReasonOf(err))
	p, err := e.repos.ProfileRepo.FindByUserID(e.ctx, e.admin.ID)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestEventGuestRegister_RefusesMemberAccounts(t *testing.T) {
	e := newTestEnv(t)
	in := e.eventInput("Open studio")
	in.IsPublic = true
	public := e.event(t, in)

	alice, _ := e.member(t, "alice")
	_, err := e.svc.Event.GuestRegister(e.ctx, public.ID, GuestInput{Email: alice.Email, FullName: "Someone Else"})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, "login_required", ReasonOf(err))
	att, err := e.repos.EventRepo.FindAttendance(e.ctx, public.ID, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, att)
	assert.Empty(t, e.mailer.tickets)

	// An account without a profile keeps its profile slot for its owner.
	bob := e.user(t, "bob")
	_, err = e.svc.Event.GuestRegister(e.ctx, public.ID, GuestInput{Email: bob.Email, FullName: "Mallory Name"})
	assert.Equal(t, "login_required", ReasonOf(err))
	p, err := e.repos.ProfileRepo.FindByUserID(e.ctx, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, p)

	d, err := e.svc.Profile.Create(e.ctx, bob, CreateProfileInput{
		FullName:    "Bob Owner",
		PhoneNumber: "+44 1234 567890",
		Location:    "Cambridge",
		Interests:   []string{"creating"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bob Owner", d.Profile.FullName)
}

func TestEventList(t *testing.T) {
	e := newTestEnv(t)
	e.event(t, e.eventInput("Soon"))
	off := false
	hidden := e.eventInput("Hidden")
	hidden.IsActive = &off
	e.event(t, hidden)
	talk := e.eventInput("Talk")
	talk.EventType = "seminar"
	e.event(t, talk)

	u, _ := e.member(t, "ada")
	list, err := e.svc.Event.List(e.ctx, u, EventQuery{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = e.svc.Event.List(e.ctx, u, EventQuery{EventType: "Seminar"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Talk", list[0].Event.Title)

	list, err = e.svc.Event.List(e.ctx, e.admin, EventQuery{Upcoming: true})
	require.NoError(t, err)
	assert.Len(t, list, 3)

	_, err = e.svc.Event.List(e.ctx, u, EventQuery{EventType: "rave"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEventAttendance(t *testing.T) {
	e := newTestEnv(t)
	ev := e.event(t, e.eventInput("Open studio"))
	ada, _ := e.member(t, "ada")
	bob, _ := e.member(t, "bob")
	att, err := e.svc.Event.Register(e.ctx, ada, ev.ID)
	require.NoError(t, err)
	_, err = e.svc.Event.Register(e.ctx, bob, ev.ID)
	require.NoError(t, err)

	_, err = e.svc.Event.Attendees(e.ctx, ada, ev.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	checked, err := e.svc.Event.CheckIn(e.ctx, e.admin, att.ID)
	require.NoError(t, err)
	assert.True(t, checked.CheckedIn)
	assert.True(t, checked.Attended)

	_, err = e.svc.Event.CheckIn(e.ctx, e.admin, att.ID)
	assert.Equal(t, "already_checked_in", ReasonOf(err))
	_, err = e.svc.Event.MarkAttended(e.ctx, e.admin, att.ID)
	assert.Equal(t, "already_attended", ReasonOf(err))
	_, err = e.svc.Event.CheckIn(e.ctx, e.admin, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.svc.Event.BulkCheckIn(e.ctx, e.admin, ev.ID, nil)
	assert.ErrorIs(t, err, ErrValidation)

	var re *RuleError
	_, err = e.svc.Event.BulkCheckIn(e.ctx, e.admin, ev.ID, []string{ada.ID, "abc"})
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Fields, "user_ids")

	n, err := e.svc.Event.BulkCheckIn(e.ctx, e.admin, ev.ID, []string{ada.ID, bob.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	attendees, err := e.svc.Event.Attendees(e.ctx, e.admin, ev.ID)
	require.NoError(t, err)
	require.Len(t, attendees, 2)
	for _, a := range attendees {
		assert.True(t, a.CheckedIn)
	}
}

func TestEventRegister_RetriesTakenTicketNumber(t *testing.T) {
	e := newTestEnv(t)
	ev := e.event(t, e.eventInput("Open studio"))
	ada, _ := e.member(t, "ada")
	bob, _ := e.member(t, "bob")
	carl, _ := e.member(t, "carl")

	numbers := []string{"TC-00000000AA", "TC-00000000AA", "TC-00000000BB"}
	svc := e.svc.Event.(*eventService)
	svc.tickets = func() string {
		n := numbers[0]
		if len(numbers) > 1 {
			numbers = numbers[1:]
		}
		return n
	}

	first, err := e.svc.Event.Register(e.ctx, ada, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "TC-00000000AA", first.Ticket.TicketNumber)

	second, err := e.svc.Event.Register(e.ctx, bob, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "TC-00000000BB", second.Ticket.TicketNumber)

	// Every attempt collides: the error surfaces instead of a false already-registered.
	svc.tickets = func() string { return "TC-00000000AA" }
	_, err = e.svc.Event.Register(e.ctx, carl, ev.ID)
	assert.ErrorIs(t, err, repository.ErrTicketTaken)
	assert.Empty(t, ReasonOf(err))
	stored, err := e.repos.EventRepo.FindAttendance(e.ctx, ev.ID, carl.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestEventSendReminders(t *testing.T) {
	e := newTestEnv(t)
	tomorrow := e.eventInput("Tomorrow")
	tomorrow.StartDate = e.now.Add(23*time.Hour + 30*time.Minute)
	tomorrow.EndDate = tomorrow.StartDate.Add(2 * time.Hour)
	soon := e.event(t, tomorrow)
	later := e.event(t, e.eventInput("Later"))

	u, _ := e.member(t, "ada")
	_, err := e.svc.Event.Register(e.ctx, u, soon.ID)
	require.NoError(t, err)
	_, err = e.svc.Event.Register(e.ctx, u, later.ID)
	require.NoError(t, err)

	n, err := e.svc.Event.SendReminders(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, countNotifications(t, e, u.ID, notification.TypeEventReminder))
	require.Len(t, e.mailer.reminders, 1)
	assert.Equal(t, "Tomorrow", e.mailer.reminders[0].EventTitle)

	// An hour later the event has left the window.
	e.now = e.now.Add(time.Hour)
	n, err = e.svc.Event.SendReminders(e.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
