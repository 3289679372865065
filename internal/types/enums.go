package types

import (
	"strings"
	"unicode"
)

// MembershipType is one of the canonical membership tiers.
type MembershipType string

// Membership tiers, lowest privilege first
const (
	MembershipCommunity         MembershipType = "community"
	MembershipKeyAccess         MembershipType = "key_access"
	MembershipCreativeWorkspace MembershipType = "creative_workspace"
)

// AccessLevel is the tier a gated resource requires. It is either "all" or a
// membership tier.
type AccessLevel string

const AccessAll AccessLevel = "all"

// InterestType values
type InterestType string

const (
	InterestCaring       InterestType = "caring"
	InterestSharing      InterestType = "sharing"
	InterestCreating     InterestType = "creating"
	InterestExperiencing InterestType = "experiencing"
	InterestWorking      InterestType = "working"
)

// Event type values
const (
	EventWorkshop   = "workshop"
	EventMeetup     = "meetup"
	EventSeminar    = "seminar"
	EventExhibition = "exhibition"
	EventOther      = "other"
)

// Content type values
const (
	ContentArticle = "article"
	ContentVideo   = "video"
	ContentCourse  = "course"
	ContentEbook   = "ebook"
	ContentPodcast = "podcast"
	ContentOther   = "other"
)

var ValidMembershipTypes = []MembershipType{
	MembershipCommunity, MembershipKeyAccess, MembershipCreativeWorkspace,
}

var ValidInterestTypes = []InterestType{
	InterestCaring, InterestSharing, InterestCreating,
	InterestExperiencing, InterestWorking,
}

var ValidEventTypes = []string{
	EventWorkshop, EventMeetup, EventSeminar, EventExhibition, EventOther,
}

var ValidContentTypes = []string{
	ContentArticle, ContentVideo, ContentCourse,
	ContentEbook, ContentPodcast, ContentOther,
}

// Rank orders tiers by privilege. Unknown tiers rank 0.
func (m MembershipType) Rank() int {
	switch m {
	case MembershipCommunity:
		return 1
	case MembershipKeyAccess:
		return 2
	case MembershipCreativeWorkspace:
		return 3
	}
	return 0
}

func (m MembershipType) Valid() bool {
	return m.Rank() > 0
}

// Label is the human-readable tier name used in emails and notifications.
func (m MembershipType) Label() string {
	switch m {
	case MembershipCommunity:
		return "Community Member"
	case MembershipKeyAccess:
		return "Key Access Member"
	case MembershipCreativeWorkspace:
		return "Creative Workspace Member"
	}
	return string(m)
}

// ParseMembershipType maps free-form input ("Key Access", "key-access",
// "keyaccess", "creative") onto a canonical tier.
func ParseMembershipType(s string) (MembershipType, bool) {
	switch squash(s) {
	case "community", "communitymember":
		return MembershipCommunity, true
	case "keyaccess", "keyaccessmember":
		return MembershipKeyAccess, true
	case "creativeworkspace", "creative", "creativeworkspacemember":
		return MembershipCreativeWorkspace, true
	}
	return "", false
}

// ParseMembershipTypeList normalises a comma separated tier list. Empty input
// yields an empty list; any unknown entry is reported back.
func ParseMembershipTypeList(s string) ([]MembershipType, []string) {
	var (
		out     []MembershipType
		unknown []string
		seen    = map[MembershipType]bool{}
	)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mt, ok := ParseMembershipType(part)
		if !ok {
			unknown = append(unknown, part)
			continue
		}
		if !seen[mt] {
			seen[mt] = true
			out = append(out, mt)
		}
	}
	return out, unknown
}

// JoinMembershipTypes is the stored form of an eligibility list.
func JoinMembershipTypes(types []MembershipType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}

// ParseAccessLevel accepts "all" (or "all members") and any tier spelling.
func ParseAccessLevel(s string) (AccessLevel, bool) {
	switch squash(s) {
	case "all", "allmembers", "":
		return AccessAll, true
	}
	mt, ok := ParseMembershipType(s)
	if !ok {
		return "", false
	}
	return AccessLevel(mt), true
}

func (a AccessLevel) Valid() bool {
	if a == AccessAll {
		return true
	}
	return MembershipType(a).Valid()
}

func IsValidInterestType(interest string) bool {
	for _, i := range ValidInterestTypes {
		if string(i) == interest {
			return true
		}
	}
	return false
}

func IsValidEventType(eventType string) bool {
	for _, t := range ValidEventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

func IsValidContentType(contentType string) bool {
	for _, t := range ValidContentTypes {
		if t == contentType {
			return true
		}
	}
	return false
}

// squash lowercases and drops everything that is not a letter.
func squash(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
