package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Marga-Ghale/together-culture-crm/internal/types"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func openEvent() Event {
	return Event{
		Active:   true,
		StartsAt: now.Add(48 * time.Hour),
	}
}

func ptr(t time.Time) *time.Time { return &t }

func TestCanRegister_Order(t *testing.T) {
	c := NewChecker(MatchHierarchy)
	member := Registrant{Membership: tier(types.MembershipCommunity)}

	cases := []struct {
		name string
		ev   func() Event
		r    Registrant
		want Reason
	}{
		{
			name: "inactive beats full",
			ev: func() Event {
				e := openEvent()
				e.Active = false
				e.Capacity, e.Registered = 1, 1
				return e
			},
			r:    member,
			want: ReasonEventInactive,
		},
		{
			name: "window beats capacity",
			ev: func() Event {
				e := openEvent()
				e.RegistrationCloses = ptr(now.Add(-time.Hour))
				e.Capacity, e.Registered = 1, 1
				return e
			},
			r:    member,
			want: ReasonRegistrationClosed,
		},
		{
			name: "not open yet",
			ev: func() Event {
				e := openEvent()
				e.RegistrationOpens = ptr(now.Add(time.Hour))
				return e
			},
			r:    member,
			want: ReasonRegistrationNotOpen,
		},
		{
			name: "started without window",
			ev: func() Event {
				e := openEvent()
				e.StartsAt = now.Add(-time.Minute)
				return e
			},
			r:    member,
			want: ReasonEventStarted,
		},
		{
			name: "capacity beats duplicate",
			ev: func() Event {
				e := openEvent()
				e.Capacity, e.Registered = 2, 2
				return e
			},
			r:    Registrant{AlreadyRegistered: true, Membership: tier(types.MembershipCommunity)},
			want: ReasonEventFull,
		},
		{
			name: "duplicate",
			ev:   openEvent,
			r:    Registrant{AlreadyRegistered: true, Membership: tier(types.MembershipCommunity)},
			want: ReasonAlreadyRegistered,
		},
		{
			name: "tier below minimum",
			ev: func() Event {
				e := openEvent()
				e.EligibleTypes = "key_access"
				return e
			},
			r:    member,
			want: ReasonTierIneligible,
		},
		{
			name: "no membership on restricted event",
			ev: func() Event {
				e := openEvent()
				e.EligibleTypes = "community"
				return e
			},
			r:    Registrant{},
			want: ReasonMembershipRequired,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := c.CanRegister(tc.ev(), tc.r, now)
			assert.False(t, d.Allowed)
			assert.Equal(t, tc.want, d.Reason)
			assert.NotEmpty(t, d.Reason.Message())
		})
	}
}

func TestCanRegister_StaffOverride(t *testing.T) {
	c := NewChecker(MatchHierarchy)
	e := openEvent()
	e.Active = false
	e.Capacity, e.Registered = 1, 1
	e.EligibleTypes = "creative_workspace"

	d := c.CanRegister(e, Registrant{Staff: true}, now)
	assert.True(t, d.Allowed)
}

func TestCanRegister_CapacityOne(t *testing.T) {
	c := NewChecker(MatchHierarchy)
	e := openEvent()
	e.Capacity, e.Registered = 1, 1

	for _, mt := range types.ValidMembershipTypes {
		d := c.CanRegister(e, Registrant{Membership: tier(mt)}, now)
		assert.Equal(t, ReasonEventFull, d.Reason, mt)
	}
}

func TestCanRegister_PublicSkipsTierList(t *testing.T) {
	c := NewChecker(MatchHierarchy)
	e := openEvent()
	e.Public = true
	e.EligibleTypes = "creative_workspace"

	assert.True(t, c.CanRegister(e, Registrant{}, now).Allowed)
}

func TestCanRegister_Hierarchy(t *testing.T) {
	e := openEvent()
	e.EligibleTypes = "Key Access, creative"

	hier := NewChecker(MatchHierarchy)
	exact := NewChecker(MatchExact)

	cw := Registrant{Membership: tier(types.MembershipCreativeWorkspace)}
	ka := Registrant{Membership: tier(types.MembershipKeyAccess)}
	cm := Registrant{Membership: tier(types.MembershipCommunity)}

	assert.True(t, hier.CanRegister(e, cw, now).Allowed)
	assert.True(t, hier.CanRegister(e, ka, now).Allowed)
	assert.False(t, hier.CanRegister(e, cm, now).Allowed)

	e.EligibleTypes = "key_access"
	assert.True(t, hier.CanRegister(e, cw, now).Allowed)
	assert.False(t, exact.CanRegister(e, cw, now).Allowed)
	assert.True(t, exact.CanRegister(e, ka, now).Allowed)
}

func TestCanRegister_UnknownListFailsClosed(t *testing.T) {
	e := openEvent()
	e.EligibleTypes = "gold,platinum"
	d := NewChecker(MatchHierarchy).CanRegister(e, Registrant{Membership: tier(types.MembershipCreativeWorkspace)}, now)
	assert.Equal(t, ReasonTierIneligible, d.Reason)
}

func TestRegistrationWindow_Bounds(t *testing.T) {
	e := openEvent()
	e.RegistrationOpens = ptr(now.Add(-time.Hour))
	e.RegistrationCloses = ptr(now.Add(time.Hour))
	assert.Equal(t, ReasonNone, e.RegistrationWindow(now))
	assert.Equal(t, ReasonNone, e.RegistrationWindow(*e.RegistrationCloses))
	assert.Equal(t, ReasonRegistrationClosed, e.RegistrationWindow(now.Add(2*time.Hour)))

	onlyClose := openEvent()
	onlyClose.RegistrationCloses = ptr(now.Add(time.Hour))
	assert.Equal(t, ReasonNone, onlyClose.RegistrationWindow(now.Add(-24*time.Hour)))
}

func TestParseMatchMode(t *testing.T) {
	assert.Equal(t, MatchExact, ParseMatchMode(" Exact "))
	assert.Equal(t, MatchHierarchy, ParseMatchMode(""))
	assert.Equal(t, MatchHierarchy, ParseMatchMode("whatever"))
}
