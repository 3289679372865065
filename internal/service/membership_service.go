package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Marga-Ghale/together-culture-crm/internal/notification"
	"github.com/Marga-Ghale/together-culture-crm/internal/repository"
	"github.com/Marga-Ghale/together-culture-crm/internal/types"
)

// ============================================
// Membership Service
// ============================================

// MembershipService runs the membership ledger. Each profile has at most
// one current (open, approved) row and at most one pending (open,
// unapproved) row; storage enforces both.
type MembershipService interface {
	Request(ctx context.Context, actor *repository.User, membershipType string) (*repository.Membership, error)
	Approve(ctx context.Context, actor *repository.User, membershipID string) (*repository.Membership, error)
	CancelPending(ctx context.Context, actor *repository.User) error

	Current(ctx context.Context, profileID string) (*repository.Membership, error)
	Pending(ctx context.Context, profileID string) (*repository.Membership, error)
	History(ctx context.Context, actor *repository.User) ([]*repository.Membership, error)
	ListPending(ctx context.Context, actor *repository.User) ([]*repository.PendingMembership, error)

	// CurrentTier is the tier every entitlement check reads. It is nil when
	// the user has no profile or no current membership.
	CurrentTier(ctx context.Context, userID string) (*types.MembershipType, error)
}

type membershipService struct {
	profileRepo repository.ProfileRepository
	userRepo    repository.UserRepository
	notifSvc    *notification.Service
	mailer      Mailer
	now         func() time.Time
}

func NewMembershipService(
	profileRepo repository.ProfileRepository,
	userRepo repository.UserRepository,
	notifSvc *notification.Service,
	mailer Mailer,
	now func() time.Time,
) MembershipService {
	return &membershipService{
		profileRepo: profileRepo,
		userRepo:    userRepo,
		notifSvc:    notifSvc,
		mailer:      mailer,
		now:         now,
	}
}

func errProfileMissing() error {
	return notFoundError("profile_missing", "Create your profile first.")
}

// requireProfile is ProfileFor for operations that cannot run without one.
func requireProfile(ctx context.Context, repo repository.ProfileRepository, userID string) (*repository.Profile, error) {
	p, err := repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errProfileMissing()
	}
	return p, nil
}

func (s *membershipService) Request(ctx context.Context, actor *repository.User, membershipType string) (*repository.Membership, error) {
	tier, ok := types.ParseMembershipType(membershipType)
	if !ok {
		return nil, invalidField("membership_type", "Choose one of: community, key_access, creative_workspace.")
	}
	profile, err := requireProfile(ctx, s.profileRepo, actor.ID)
	if err != nil {
		return nil, err
	}

	current, err := s.profileRepo.FindCurrentMembership(ctx, profile.ID)
	if err != nil {
		return nil, err
	}
	// Approving the held tier again would only add a period with no change of access.
	if current != nil && current.MembershipType == tier {
		return nil, conflictError("already_member", "You already hold this membership.")
	}

	m := &repository.Membership{
		ProfileID:      profile.ID,
		MembershipType: tier,
		StartDate:      s.now(),
	}
	if err := s.profileRepo.CreateMembershipRequest(ctx, m); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflictError("pending_request_exists", "You already have a pending membership request.")
		}
		return nil, err
	}
	log.Printf("[Membership] %s requested %s", profile.ID, tier)

	if s.notifSvc != nil {
		if err := s.notifSvc.SendMembershipRequested(ctx, profile.FullName, tier, m.ID); err != nil {
			log.Printf("[Membership] Failed to notify staff about %s: %v", m.ID, err)
		}
	}
	return m, nil
}

// Approve is idempotent: approving an approved row returns it unchanged.
func (s *membershipService) Approve(ctx context.Context, actor *repository.User, membershipID string) (*repository.Membership, error) {
	if !actor.IsAdmin() {
		return nil, errAdminOnly
	}

	m, approved, err := s.profileRepo.ApproveMembership(ctx, membershipID, actor.ID, s.now())
	if errors.Is(err, repository.ErrClosed) {
		return nil, conflictError("membership_closed", "This membership has already ended.")
	}
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, notFoundError("membership_not_found", "Membership not found.")
	}
	if approved {
		log.Printf("[Membership] %s approved %s (%s)", actor.ID, m.ID, m.MembershipType)
		s.announceApproval(ctx, m)
	}
	return m, nil
}

// announceApproval is best effort; the ledger is already consistent.
func (s *membershipService) announceApproval(ctx context.Context, m *repository.Membership) {
	profile, err := s.profileRepo.FindByID(ctx, m.ProfileID)
	if err != nil || profile == nil {
		return
	}
	if s.notifSvc != nil {
		if err := s.notifSvc.SendMembershipApproved(ctx, profile.UserID, m.MembershipType, m.ID); err != nil {
			log.Printf("[Membership] Failed to notify %s: %v", profile.UserID, err)
		}
	}
	if s.mailer == nil {
		return
	}
	user, err := s.userRepo.FindByID(ctx, profile.UserID)
	if err != nil || user == nil {
		return
	}
	if err := s.mailer.SendMembershipApproved(user.Email, profile.FullName, m.MembershipType.Label()); err != nil {
		log.Printf("[Membership] Failed to email %s: %v", user.ID, err)
	}
}

func (s *membershipService) CancelPending(ctx context.Context, actor *repository.User) error {
	profile, err := requireProfile(ctx, s.profileRepo, actor.ID)
	if err != nil {
		return err
	}
	deleted, err := s.profileRepo.DeletePendingMembership(ctx, profile.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return notFoundError("no_pending_request", "You have no pending membership request.")
	}
	return nil
}

func (s *membershipService) Current(ctx context.Context, profileID string) (*repository.Membership, error) {
	return s.profileRepo.FindCurrentMembership(ctx, profileID)
}

func (s *membershipService) Pending(ctx context.Context, profileID string) (*repository.Membership, error) {
	return s.profileRepo.FindPendingMembership(ctx, profileID)
}

func (s *membershipService) History(ctx context.Context, actor *repository.User) ([]*repository.Membership, error) {
	profile, err := requireProfile(ctx, s.profileRepo, actor.ID)
	if err != nil {
		return nil, err
	}
	return s.profileRepo.FindMembershipHistory(ctx, profile.ID)
}

func (s *membershipService) ListPending(ctx context.Context, actor *repository.User) ([]*repository.PendingMembership, error) {
	if !actor.IsAdmin() {
		return nil, errAdminOnly
	}
	return s.profileRepo.FindAllPendingMemberships(ctx)
}

func (s *membershipService) CurrentTier(ctx context.Context, userID string) (*types.MembershipType, error) {
	profile, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil || profile == nil {
		return nil, err
	}
	m, err := s.profileRepo.FindCurrentMembership(ctx, profile.ID)
	if err != nil || m == nil {
		return nil, err
	}
	tier := m.MembershipType
	return &tier, nil
}
