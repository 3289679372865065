package entitlement

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Marga-Ghale/together-culture-crm/internal/types"
)

func tier(mt types.MembershipType) *types.MembershipType { return &mt }

func TestIsEntitled(t *testing.T) {
	cases := []struct {
		name     string
		required types.AccessLevel
		current  *types.MembershipType
		want     bool
	}{
		{"all without membership", types.AccessAll, nil, true},
		{"community without membership", types.AccessLevel(types.MembershipCommunity), nil, false},
		{"community for creative workspace", types.AccessLevel(types.MembershipCommunity), tier(types.MembershipCreativeWorkspace), true},
		{"key access for creative workspace", types.AccessLevel(types.MembershipKeyAccess), tier(types.MembershipCreativeWorkspace), true},
		{"creative workspace for community", types.AccessLevel(types.MembershipCreativeWorkspace), tier(types.MembershipCommunity), false},
		{"key access for community", types.AccessLevel(types.MembershipKeyAccess), tier(types.MembershipCommunity), false},
		{"key access for key access", types.AccessLevel(types.MembershipKeyAccess), tier(types.MembershipKeyAccess), true},
		{"all for community", types.AccessAll, tier(types.MembershipCommunity), true},
		{"unknown level", types.AccessLevel("gold"), tier(types.MembershipCreativeWorkspace), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsEntitled(tc.required, tc.current))
		})
	}
}

func TestAllowedLevels(t *testing.T) {
	assert.Equal(t, []types.AccessLevel{types.AccessAll}, AllowedLevels(nil))
	assert.Equal(t,
		[]types.AccessLevel{types.AccessAll, "community", "key_access"},
		AllowedLevels(tier(types.MembershipKeyAccess)),
	)
	assert.Len(t, AllowedLevels(tier(types.MembershipCreativeWorkspace)), 4)
}

type gated struct {
	active bool
	level  types.AccessLevel
}

func (g gated) Active() bool                     { return g.active }
func (g gated) RequiredLevel() types.AccessLevel { return g.level }

func TestCanAccess(t *testing.T) {
	keyAccess := gated{active: true, level: "key_access"}
	assert.True(t, CanAccess(keyAccess, tier(types.MembershipCreativeWorkspace)))
	assert.False(t, CanAccess(keyAccess, tier(types.MembershipCommunity)))

	inactive := gated{active: false, level: types.AccessAll}
	assert.False(t, CanAccess(inactive, tier(types.MembershipCreativeWorkspace)))
}
