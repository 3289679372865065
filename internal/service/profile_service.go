package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/Marga-Ghale/together-culture-crm/internal/repository"
	"github.com/Marga-Ghale/together-culture-crm/internal/types"
)

// ============================================
// Profile Service
// ============================================

type CreateProfileInput struct {
	FullName    string
	PhoneNumber string
	Location    string
	Bio         string
	Interests   []string
}

// InterestsDiff adds and removes interests relative to the open set.
type InterestsDiff struct {
	Added   []string
	Removed []string
}

// UpdateProfileInput changes only the fields that are set. Interests
// replaces the whole set; InterestsUpdate applies a diff. Sending both is
// rejected.
type UpdateProfileInput struct {
	FullName        *string
	PhoneNumber     *string
	Location        *string
	Bio             *string
	Interests       []string
	InterestsUpdate *InterestsDiff
}

// ProfileDetail is a profile with its ledgers, as the profile endpoints
// return it.
type ProfileDetail struct {
	User              *repository.User
	Profile           *repository.Profile
	CurrentMembership *repository.Membership
	PendingRequest    *repository.Membership
	History           []*repository.Membership
	CurrentInterests  []*repository.Interest
}

type ProfileService interface {
	// ProfileFor returns the user's profile and whether one exists.
	ProfileFor(ctx context.Context, userID string) (*repository.Profile, bool, error)
	Create(ctx context.Context, actor *repository.User, in CreateProfileInput) (*ProfileDetail, error)
	Get(ctx context.Context, actor *repository.User) (*ProfileDetail, error)
	Update(ctx context.Context, actor *repository.User, in UpdateProfileInput) (*ProfileDetail, error)
	AdminGet(ctx context.Context, actor *repository.User, profileID string) (*ProfileDetail, error)
	AdminUpdate(ctx context.Context, actor *repository.User, profileID string, in UpdateProfileInput) (*ProfileDetail, error)

	// SetInterests makes set the profile's open interests. Calling it with
	// the current set changes nothing.
	SetInterests(ctx context.Context, profileID string, set []types.InterestType) error
	CurrentInterests(ctx context.Context, profileID string) ([]types.InterestType, error)
	InterestHistory(ctx context.Context, actor *repository.User) ([]*repository.Interest, error)
}

type profileService struct {
	profileRepo repository.ProfileRepository
	membership  MembershipService
	now         func() time.Time
}

func NewProfileService(profileRepo repository.ProfileRepository, membership MembershipService, now func() time.Time) ProfileService {
	return &profileService{profileRepo: profileRepo, membership: membership, now: now}
}

func (s *profileService) ProfileFor(ctx context.Context, userID string) (*repository.Profile, bool, error) {
	p, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return p, p != nil, nil
}

func (s *profileService) Create(ctx context.Context, actor *repository.User, in CreateProfileInput) (*ProfileDetail, error) {
	if _, ok, err := s.ProfileFor(ctx, actor.ID); err != nil {
		return nil, err
	} else if ok {
		return nil, conflictError("profile_exists", "Your profile has already been created.")
	}

	in.PhoneNumber = normalizePhone(in.PhoneNumber)
	f := fieldErrors{}
	checkFullName(f, in.FullName)
	checkPhone(f, in.PhoneNumber)
	checkLocation(f, in.Location)
	checkBio(f, in.Bio)
	interests := parseInterests(f, "interests", in.Interests, true)
	if err := f.err(); err != nil {
		return nil, err
	}

	p := &repository.Profile{
		UserID:      actor.ID,
		FullName:    strings.TrimSpace(in.FullName),
		PhoneNumber: in.PhoneNumber,
		Location:    strings.TrimSpace(in.Location),
		Bio:         strings.TrimSpace(in.Bio),
	}
	if err := s.profileRepo.CreateWithDefaults(ctx, p, interests, types.MembershipCommunity); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflictError("profile_exists", "Your profile has already been created.")
		}
		return nil, err
	}
	log.Printf("[Profile] Created %s for user %s", p.ID, actor.ID)
	return s.detail(ctx, actor, p)
}

func (s *profileService) Get(ctx context.Context, actor *repository.User) (*ProfileDetail, error) {
	p, err := requireProfile(ctx, s.profileRepo, actor.ID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, actor, p)
}

func (s *profileService) Update(ctx context.Context, actor *repository.User, in UpdateProfileInput) (*ProfileDetail, error) {
	p, err := requireProfile(ctx, s.profileRepo, actor.ID)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, p, in); err != nil {
		return nil, err
	}
	return s.detail(ctx, actor, p)
}

func (s *profileService) AdminGet(ctx context.Context, actor *repository.User, profileID string) (*ProfileDetail, error) {
	p, err := s.adminProfile(ctx, actor, profileID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, nil, p)
}

func (s *profileService) AdminUpdate(ctx context.Context, actor *repository.User, profileID string, in UpdateProfileInput) (*ProfileDetail, error) {
	p, err := s.adminProfile(ctx, actor, profileID)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, p, in); err != nil {
		return nil, err
	}
	return s.detail(ctx, nil, p)
}

func (s *profileService) adminProfile(ctx context.Context, actor *repository.User, profileID string) (*repository.Profile, error) {
	if !actor.IsAdmin() {
		return nil, errAdminOnly
	}
	p, err := s.profileRepo.FindByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, notFoundError("profile_not_found", "Profile not found.")
	}
	return p, nil
}

// apply validates in, writes the changed fields and then the interests.
func (s *profileService) apply(ctx context.Context, p *repository.Profile, in UpdateProfileInput) error {
	f := fieldErrors{}
	if in.FullName != nil {
		checkFullName(f, *in.FullName)
		p.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.PhoneNumber != nil {
		phone := normalizePhone(*in.PhoneNumber)
		checkPhone(f, phone)
		p.PhoneNumber = phone
	}
	if in.Location != nil {
		checkLocation(f, *in.Location)
		p.Location = strings.TrimSpace(*in.Location)
	}
	if in.Bio != nil {
		checkBio(f, *in.Bio)
		p.Bio = strings.TrimSpace(*in.Bio)
	}

	var (
		replace        []types.InterestType
		added, removed []types.InterestType
	)
	switch {
	case in.Interests != nil && in.InterestsUpdate != nil:
		f.add("interests", "Send either interests or interests_update, not both.")
	case in.Interests != nil:
		replace = parseInterests(f, "interests", in.Interests, true)
	case in.InterestsUpdate != nil:
		added = parseInterests(f, "interests_update", in.InterestsUpdate.Added, false)
		removed = parseInterests(f, "interests_update", in.InterestsUpdate.Removed, false)
	}
	if err := f.err(); err != nil {
		return err
	}

	if err := s.profileRepo.Update(ctx, p); err != nil {
		return err
	}

	switch {
	case replace != nil:
		return s.SetInterests(ctx, p.ID, replace)
	case in.InterestsUpdate != nil:
		current, err := s.CurrentInterests(ctx, p.ID)
		if err != nil {
			return err
		}
		return s.SetInterests(ctx, p.ID, applyDiff(current, added, removed))
	}
	return nil
}

func applyDiff(current, added, removed []types.InterestType) []types.InterestType {
	drop := map[types.InterestType]bool{}
	for _, it := range removed {
		drop[it] = true
	}
	seen := map[types.InterestType]bool{}
	var out []types.InterestType
	for _, it := range append(append([]types.InterestType{}, current...), added...) {
		if drop[it] || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}

func (s *profileService) SetInterests(ctx context.Context, profileID string, set []types.InterestType) error {
	opened, closed, err := s.profileRepo.SetInterests(ctx, profileID, set, s.now())
	if err != nil {
		return err
	}
	if opened+closed > 0 {
		log.Printf("[Profile] Interests of %s: %d opened, %d closed", profileID, opened, closed)
	}
	return nil
}

func (s *profileService) CurrentInterests(ctx context.Context, profileID string) ([]types.InterestType, error) {
	rows, err := s.profileRepo.FindCurrentInterests(ctx, profileID)
	if err != nil {
		return nil, err
	}
	out := make([]types.InterestType, len(rows))
	for i, r := range rows {
		out[i] = r.InterestType
	}
	return out, nil
}

func (s *profileService) InterestHistory(ctx context.Context, actor *repository.User) ([]*repository.Interest, error) {
	p, err := requireProfile(ctx, s.profileRepo, actor.ID)
	if err != nil {
		return nil, err
	}
	return s.profileRepo.FindInterestHistory(ctx, p.ID)
}

func (s *profileService) detail(ctx context.Context, user *repository.User, p *repository.Profile) (*ProfileDetail, error) {
	d := &ProfileDetail{User: user, Profile: p}
	var err error
	if d.CurrentMembership, err = s.membership.Current(ctx, p.ID); err != nil {
		return nil, err
	}
	if d.PendingRequest, err = s.membership.Pending(ctx, p.ID); err != nil {
		return nil, err
	}
	if d.History, err = s.profileRepo.FindMembershipHistory(ctx, p.ID); err != nil {
		return nil, err
	}
	if d.CurrentInterests, err = s.profileRepo.FindCurrentInterests(ctx, p.ID); err != nil {
		return nil, err
	}
	return d, nil
}
