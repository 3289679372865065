package entitlement

import (
	"strings"
	"time"

	"github.com/Marga-Ghale/together-culture-crm/internal/types"
)

// Reason names the first registration rule a request failed.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonEventInactive       Reason = "event_inactive"
	ReasonRegistrationNotOpen Reason = "registration_not_open"
	ReasonRegistrationClosed  Reason = "registration_closed"
	ReasonEventStarted        Reason = "event_started"
	ReasonEventFull           Reason = "event_full"
	ReasonAlreadyRegistered   Reason = "already_registered"
	ReasonMembershipRequired  Reason = "membership_required"
	ReasonTierIneligible      Reason = "tier_ineligible"
)

// Message is the user-facing text for a rejection.
func (r Reason) Message() string {
	switch r {
	case ReasonEventInactive:
		return "This event is not active."
	case ReasonRegistrationNotOpen:
		return "Registration for this event has not opened yet."
	case ReasonRegistrationClosed:
		return "Registration for this event has closed."
	case ReasonEventStarted:
		return "This event has already started."
	case ReasonEventFull:
		return "This event is already at full capacity."
	case ReasonAlreadyRegistered:
		return "You are already registered for this event."
	case ReasonMembershipRequired:
		return "An active membership is required to register for this event."
	case ReasonTierIneligible:
		return "Your membership tier is not eligible for this event."
	}
	return ""
}

// MatchMode selects how an event's eligible-type list is read.
type MatchMode string

const (
	// MatchHierarchy treats the list as a minimum tier: higher tiers pass.
	MatchHierarchy MatchMode = "hierarchy"
	// MatchExact only admits the tiers that are listed.
	MatchExact MatchMode = "exact"
)

// ParseMatchMode falls back to MatchHierarchy for anything unrecognised.
func ParseMatchMode(s string) MatchMode {
	if MatchMode(strings.ToLower(strings.TrimSpace(s))) == MatchExact {
		return MatchExact
	}
	return MatchHierarchy
}

// Event is the slice of an event the registration rules look at.
type Event struct {
	Active             bool
	Public             bool
	StartsAt           time.Time
	RegistrationOpens  *time.Time
	RegistrationCloses *time.Time
	Capacity           int // 0 means unlimited
	Registered         int // every attendance row, attended or not
	EligibleTypes      string
}

// Full reports whether a capacity-limited event has no seats left.
func (e Event) Full() bool {
	return e.Capacity > 0 && e.Registered >= e.Capacity
}

// RegistrationWindow checks the open/close bounds. Without bounds,
// registration stays open until the event starts.
func (e Event) RegistrationWindow(now time.Time) Reason {
	opens, closes := e.RegistrationOpens, e.RegistrationCloses
	if opens == nil && closes == nil {
		if !now.Before(e.StartsAt) {
			return ReasonEventStarted
		}
		return ReasonNone
	}
	if opens != nil && now.Before(*opens) {
		return ReasonRegistrationNotOpen
	}
	if closes != nil && now.After(*closes) {
		return ReasonRegistrationClosed
	}
	return ReasonNone
}

// Registrant is the acting user as the registration rules see them.
type Registrant struct {
	Staff             bool
	AlreadyRegistered bool
	Membership        *types.MembershipType
}

// Decision is the outcome of CanRegister.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision       { return Decision{Allowed: true} }
func deny(r Reason) Decision { return Decision{Reason: r} }

// Checker evaluates event registration rules.
type Checker struct {
	Mode MatchMode
}

func NewChecker(mode MatchMode) *Checker {
	return &Checker{Mode: mode}
}

// CanRegister applies the rules in order and stops at the first failure.
func (c *Checker) CanRegister(ev Event, r Registrant, now time.Time) Decision {
	if r.Staff {
		return allow()
	}
	if !ev.Active {
		return deny(ReasonEventInactive)
	}
	if reason := ev.RegistrationWindow(now); reason != ReasonNone {
		return deny(reason)
	}
	if ev.Full() {
		return deny(ReasonEventFull)
	}
	if r.AlreadyRegistered {
		return deny(ReasonAlreadyRegistered)
	}
	if ev.Public {
		return allow()
	}
	if strings.TrimSpace(ev.EligibleTypes) == "" {
		return allow()
	}
	return c.matchTier(ev.EligibleTypes, r.Membership)
}

func (c *Checker) matchTier(list string, current *types.MembershipType) Decision {
	if current == nil {
		return deny(ReasonMembershipRequired)
	}
	eligible, _ := types.ParseMembershipTypeList(list)
	if len(eligible) == 0 {
		// Nothing recognisable in the list; fail closed.
		return deny(ReasonTierIneligible)
	}

	if c.Mode == MatchExact {
		for _, mt := range eligible {
			if mt == *current {
				return allow()
			}
		}
		return deny(ReasonTierIneligible)
	}

	minimum := eligible[0]
	for _, mt := range eligible[1:] {
		if mt.Rank() < minimum.Rank() {
			minimum = mt
		}
	}
	if IsEntitled(types.AccessLevel(minimum), current) {
		return allow()
	}
	return deny(ReasonTierIneligible)
}
