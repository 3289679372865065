// Package entitlement decides what a member's current tier gives access to.
// Every gated check in the service layer goes through IsEntitled; nothing
// else compares tiers.
package entitlement

import "github.com/Marga-Ghale/together-culture-crm/internal/types"

// IsEntitled reports whether a holder of current (nil when the profile has no
// current membership) may use a resource requiring the given level.
func IsEntitled(required types.AccessLevel, current *types.MembershipType) bool {
	if required == types.AccessAll {
		return true
	}
	if current == nil {
		return false
	}
	need := types.MembershipType(required).Rank()
	if need == 0 {
		return false
	}
	return current.Rank() >= need
}

// AllowedLevels lists every access level the holder of current passes. It is
// the set form of IsEntitled, used to filter listings in storage.
func AllowedLevels(current *types.MembershipType) []types.AccessLevel {
	levels := []types.AccessLevel{types.AccessAll}
	for _, mt := range types.ValidMembershipTypes {
		if IsEntitled(types.AccessLevel(mt), current) {
			levels = append(levels, types.AccessLevel(mt))
		}
	}
	return levels
}

// Resource is anything gated by an activity flag and an access level.
type Resource interface {
	Active() bool
	RequiredLevel() types.AccessLevel
}

// CanAccess is IsEntitled plus the resource's own active flag.
func CanAccess(r Resource, current *types.MembershipType) bool {
	return r.Active() && IsEntitled(r.RequiredLevel(), current)
}
