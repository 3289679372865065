package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/Marga-Ghale/together-culture-crm/internal/config"
	"github.com/Marga-Ghale/together-culture-crm/internal/entitlement"
	"github.com/Marga-Ghale/together-culture-crm/internal/notification"
	"github.com/Marga-Ghale/together-culture-crm/internal/repository"
	"github.com/Marga-Ghale/together-culture-crm/internal/types"
)

// ============================================
// Benefit Service
// ============================================

type BenefitInput struct {
	Name                    string
	Description             string
	MembershipLevelRequired string
	IsActive                *bool
}

type UsageQuery struct {
	BenefitID string
	UserID    string // honoured for staff only
}

type BenefitService interface {
	Create(ctx context.Context, actor *repository.User, in BenefitInput) (*repository.Benefit, error)
	Update(ctx context.Context, actor *repository.User, id string, in BenefitInput) (*repository.Benefit, error)
	Delete(ctx context.Context, actor *repository.User, id string) error
	Get(ctx context.Context, actor *repository.User, id string) (*repository.Benefit, error)
	// List returns what the actor's tier unlocks. Staff see everything and
	// may filter by level.
	List(ctx context.Context, actor *repository.User, level string) ([]*repository.Benefit, error)

	// Activate is idempotent per (user, benefit) and refreshes the expiry.
	Activate(ctx context.Context, actor *repository.User, id string, expiresInDays *int) (*repository.UserBenefit, error)
	Use(ctx context.Context, actor *repository.User, id, notes string) (*repository.BenefitUsageLog, error)
	LogUsage(ctx context.Context, actor *repository.User, id, userID, notes string) (*repository.BenefitUsageLog, error)
	My(ctx context.Context, actor *repository.User) ([]*repository.UserBenefit, error)
	Usage(ctx context.Context, actor *repository.User, q UsageQuery) ([]*repository.BenefitUsageLog, error)

	ExpireActivations(ctx context.Context) (int, error)
}

type benefitService struct {
	cfg         *config.Config
	benefitRepo repository.BenefitRepository
	userRepo    repository.UserRepository
	membership  MembershipService
	notifSvc    *notification.Service
	cache       Cache
	now         func() time.Time
}

func NewBenefitService(
	cfg *config.Config,
	benefitRepo repository.BenefitRepository,
	userRepo repository.UserRepository,
	membership MembershipService,
	notifSvc *notification.Service,
	cache Cache,
	now func() time.Time,
) BenefitService {
	return &benefitService{
		cfg:         cfg,
		benefitRepo: benefitRepo,
		userRepo:    userRepo,
		membership:  membership,
		notifSvc:    notifSvc,
		cache:       cache,
		now:         now,
	}
}

const benefitCachePrefix = "benefits:"

func (s *benefitService) validate(in BenefitInput) (types.AccessLevel, error) {
	f := fieldErrors{}
	if strings.TrimSpace(in.Name) == "" {
		f.add("name", "Name is required.")
	}
	level, ok := types.ParseAccessLevel(in.MembershipLevelRequired)
	if !ok {
		f.add("membership_level_required", "Choose all, community, key_access or creative_workspace.")
	}
	return level, f.err()
}

func (s *benefitService) Create(ctx context.Context, actor *repository.User, in BenefitInput) (*repository.Benefit, error) {
	if !actor.IsAdmin() {
		return nil, errAdminOnly
	}
	level, err := s.validate(in)
	if err != nil {
		return nil, err
	}
	b := &repository.Benefit{
		Name:                    strings.TrimSpace(in.Name),
		Description:             strings.TrimSpace(in.Description),
		MembershipLevelRequired: level,
		IsActive:                in.IsActive == nil || *in.IsActive,
	}
	if err := s.benefitRepo.Create(ctx, b); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return b, nil
}

func (s *benefitService) Update(ctx context.Context, actor *repository.User, id string, in BenefitInput) (*repository.Benefit, error) {
	if !actor.IsAdmin() {
		return nil, errAdminOnly
	}
	b, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	level, err := s.validate(in)
	if err != nil {
		return nil, err
	}
	b.Name = strings.TrimSpace(in.Name)
	b.Description = strings.TrimSpace(in.Description)
	b.MembershipLevelRequired = level
	if in.IsActive != nil {
		b.IsActive = *in.IsActive
	}
	if err := s.benefitRepo.Update(ctx, b); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return b, nil
}

func (s *benefitService) Delete(ctx context.Context, actor *repository.User, id string) error {
	if !actor.IsAdmin() {
		return errAdminOnly
	}
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	if err := s.benefitRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *benefitService) find(ctx context.Context, id string) (*repository.Benefit, error) {
	b, err := s.benefitRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, notFoundError("benefit_not_found", "Benefit not found.")
	}
	return b, nil
}

// available re-reads the user's tier and applies the entitlement rule.
func (s *benefitService) available(ctx context.Context, userID string, b *repository.Benefit) error {
	if !b.IsActive {
		return forbiddenError("benefit_inactive", "This benefit is no longer available.")
	}
	tier, err := s.membership.CurrentTier(ctx, userID)
	if err != nil {
		return err
	}
	if !entitlement.CanAccess(b, tier) {
		return forbiddenError("tier_required", "Your membership does not include this benefit.")
	}
	return nil
}

func (s *benefitService) Get(ctx context.Context, actor *repository.User, id string) (*repository.Benefit, error) {
	b, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return b, nil
	}
	if err := s.available(ctx, actor.ID, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *benefitService) List(ctx context.Context, actor *repository.User, level string) ([]*repository.Benefit, error) {
	var f repository.BenefitFilter
	if actor.IsAdmin() {
		if level != "" {
			l, ok := types.ParseAccessLevel(level)
			if !ok {
				return nil, invalidField("membership_level", "Unknown membership level.")
			}
			f.Levels = []types.AccessLevel{l}
		}
		return s.benefitRepo.List(ctx, f)
	}

	tier, err := s.membership.CurrentTier(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	f.Levels = entitlement.AllowedLevels(tier)
	f.ActiveOnly = true

	key := benefitCachePrefix + levelKey(f.Levels)
	var cached []*repository.Benefit
	if s.cache != nil && s.cache.GetCache(ctx, key, &cached) == nil {
		return cached, nil
	}
	list, err := s.benefitRepo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetCache(ctx, key, list, s.cfg.CatalogCacheTTL); err != nil {
			log.Printf("[Benefit] Cache write failed: %v", err)
		}
	}
	return list, nil
}

func levelKey(levels []types.AccessLevel) string {
	parts := make([]string, len(levels))
	for i, l := range levels {
		parts[i] = string(l)
	}
	return strings.Join(parts, ",")
}

func (s *benefitService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateCache(ctx, benefitCachePrefix+"*"); err != nil {
		log.Printf("[Benefit] Cache invalidation failed: %v", err)
	}
}

func (s *benefitService) Activate(ctx context.Context, actor *repository.User, id string, expiresInDays *int) (*repository.UserBenefit, error) {
	b, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.available(ctx, actor.ID, b); err != nil {
		return nil, err
	}

	now := s.now()
	ub := &repository.UserBenefit{UserID: actor.ID, BenefitID: b.ID, ActivatedAt: now}
	switch {
	case expiresInDays != nil:
		if *expiresInDays < 1 || *expiresInDays > 365 {
			return nil, invalidField("expires_in_days", "Expiry must be between 1 and 365 days.")
		}
		exp := now.AddDate(0, 0, *expiresInDays)
		ub.ExpiresAt = &exp
	case s.cfg.BenefitDefaultTTL > 0:
		exp := now.Add(s.cfg.BenefitDefaultTTL)
		ub.ExpiresAt = &exp
	}

	created, err := s.benefitRepo.Activate(ctx, ub)
	if err != nil {
		return nil, err
	}
	if created {
		log.Printf("[Benefit] %s activated %s", actor.ID, b.ID)
	}
	ub.Benefit = b
	return ub, nil
}

func (s *benefitService) Use(ctx context.Context, actor *repository.User, id, notes string) (*repository.BenefitUsageLog, error) {
	b, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.available(ctx, actor.ID, b); err != nil {
		return nil, err
	}

	now := s.now()
	ub, err := s.benefitRepo.FindUserBenefit(ctx, actor.ID, b.ID)
	if err != nil {
		return nil, err
	}
	if ub == nil {
		return nil, forbiddenError("benefit_not_activated", "Activate this benefit before using it.")
	}
	if !ub.Live(now) {
		return nil, forbiddenError("activation_expired", "Your activation of this benefit has expired.")
	}
	return s.log(ctx, actor.ID, b, notes, nil, now)
}

// LogUsage records a use on a member's behalf. The member must still be
// entitled to the benefit.
func (s *benefitService) LogUsage(ctx context.Context, actor *repository.User, id, userID, notes string) (*repository.BenefitUsageLog, error) {
	if !actor.IsAdmin() {
		return nil, errAdminOnly
	}
	b, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	member, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, notFoundError("user_not_found", "User not found.")
	}
	if err := s.available(ctx, member.ID, b); err != nil {
		return nil, err
	}

	staff := actor.ID
	l, err := s.log(ctx, member.ID, b, notes, &staff, s.now())
	if err != nil {
		return nil, err
	}
	if s.notifSvc != nil {
		if err := s.notifSvc.SendBenefitUsageLogged(ctx, member.ID, b.Name, b.ID); err != nil {
			log.Printf("[Benefit] Failed to notify %s: %v", member.ID, err)
		}
	}
	return l, nil
}

func (s *benefitService) log(ctx context.Context, userID string, b *repository.Benefit, notes string, loggedBy *string, at time.Time) (*repository.BenefitUsageLog, error) {
	l := &repository.BenefitUsageLog{
		UserID:    userID,
		BenefitID: b.ID,
		UsedAt:    at,
		LoggedBy:  loggedBy,
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		l.Notes = &notes
	}
	if err := s.benefitRepo.LogUsage(ctx, l); err != nil {
		return nil, err
	}
	l.Benefit = b
	return l, nil
}

func (s *benefitService) My(ctx context.Context, actor *repository.User) ([]*repository.UserBenefit, error) {
	return s.benefitRepo.FindUserBenefits(ctx, actor.ID)
}

func (s *benefitService) Usage(ctx context.Context, actor *repository.User, q UsageQuery) ([]*repository.BenefitUsageLog, error) {
	f := repository.UsageFilter{BenefitID: q.BenefitID, UserID: actor.ID, Limit: 100}
	if actor.IsAdmin() {
		f.UserID = q.UserID
	}
	return s.benefitRepo.FindUsage(ctx, f)
}

func (s *benefitService) ExpireActivations(ctx context.Context) (int, error) {
	return s.benefitRepo.DeactivateExpired(ctx, s.now())
}
