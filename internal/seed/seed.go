// internal/seed/seed.go
package seed

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/Marga-Ghale/together-culture-crm/internal/repository"
	"github.com/Marga-Ghale/together-culture-crm/internal/types"
)

const (
	AdminEmail  = "admin@togetherculture.org"
	MemberEmail = "sam@togetherculture.org"
	// Development only.
	DefaultPassword = "Password123"
)

// SeedData creates a staff account, a key access member and a small
// catalogue. It does nothing when the staff account already exists.
func SeedData(ctx context.Context, repos *repository.Repositories, now time.Time) error {
	if existing, err := repos.UserRepo.FindByEmail(ctx, AdminEmail); err != nil {
		return err
	} else if existing != nil {
		log.Println("[Seed] Data already exists, skipping...")
		return nil
	}

	log.Println("[Seed] Creating development data...")

	password, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	// ============================================
	// USERS
	// ============================================
	admin := &repository.User{
		Username:    "admin",
		Email:       AdminEmail,
		Password:    string(password),
		IsStaff:     true,
		IsSuperuser: true,
	}
	if err := repos.UserRepo.Create(ctx, admin); err != nil {
		return err
	}

	member := &repository.User{
		Username: "sam_okafor",
		Email:    MemberEmail,
		Password: string(password),
	}
	if err := repos.UserRepo.Create(ctx, member); err != nil {
		return err
	}

	profile := &repository.Profile{
		UserID:      member.ID,
		FullName:    "Sam Okafor",
		PhoneNumber: "+441234567890",
		Location:    "Cambridge",
		Bio:         "Furniture maker and occasional workshop host.",
	}
	interests := []types.InterestType{types.InterestCreating, types.InterestWorking}
	if err := repos.ProfileRepo.CreateWithDefaults(ctx, profile, interests, types.MembershipCommunity); err != nil {
		return err
	}

	// Upgrade Sam to key access through the normal request and approval.
	upgrade := &repository.Membership{
		ProfileID:      profile.ID,
		MembershipType: types.MembershipKeyAccess,
		StartDate:      now,
	}
	if err := repos.ProfileRepo.CreateMembershipRequest(ctx, upgrade); err != nil {
		return err
	}
	if _, _, err := repos.ProfileRepo.ApproveMembership(ctx, upgrade.ID, admin.ID, now); err != nil {
		return err
	}
	log.Println("[Seed] Created admin and one key access member")

	// ============================================
	// BENEFITS
	// ============================================
	benefits := []*repository.Benefit{
		{Name: "Newsletter", Description: "Monthly programme and open calls.", MembershipLevelRequired: types.AccessAll, IsActive: true},
		{Name: "Member events discount", Description: "10% off ticketed events.", MembershipLevelRequired: types.AccessLevel(types.MembershipCommunity), IsActive: true},
		{Name: "Building key", Description: "Out of hours access to the shared space.", MembershipLevelRequired: types.AccessLevel(types.MembershipKeyAccess), IsActive: true},
		{Name: "Dedicated desk", Description: "A reserved desk in the studio.", MembershipLevelRequired: types.AccessLevel(types.MembershipCreativeWorkspace), IsActive: true},
	}
	for _, b := range benefits {
		if err := repos.BenefitRepo.Create(ctx, b); err != nil {
			return err
		}
	}

	// ============================================
	// DIGITAL CONTENT
	// ============================================
	content := []*repository.DigitalContent{
		{Title: "Welcome to Together Culture", ContentType: types.ContentArticle, AccessLevel: types.AccessAll, IsActive: true, CreatedBy: admin.ID},
		{Title: "Running a community workshop", ContentType: types.ContentCourse, AccessLevel: types.AccessLevel(types.MembershipCommunity), IsActive: true, CreatedBy: admin.ID},
		{Title: "Studio safety induction", ContentType: types.ContentVideo, AccessLevel: types.AccessLevel(types.MembershipKeyAccess), IsActive: true, CreatedBy: admin.ID},
	}
	for _, c := range content {
		if err := repos.ContentRepo.Create(ctx, c); err != nil {
			return err
		}
	}

	// ============================================
	// EVENTS
	// ============================================
	day := now.Truncate(24 * time.Hour)
	location := "The Old Print Works"
	events := []*repository.Event{
		{
			Title:     "Open studio evening",
			EventType: types.EventMeetup,
			StartDate: day.Add(7*24*time.Hour + 18*time.Hour),
			EndDate:   day.Add(7*24*time.Hour + 21*time.Hour),
			Location:  &location,
			Capacity:  40,
			Cost:      decimal.Zero,
			IsActive:  true,
			IsPublic:  true,
			CreatedBy: admin.ID,
		},
		{
			Title:                   "Green woodworking",
			EventType:               types.EventWorkshop,
			StartDate:               day.Add(14*24*time.Hour + 10*time.Hour),
			EndDate:                 day.Add(14*24*time.Hour + 16*time.Hour),
			Location:                &location,
			Capacity:                8,
			Cost:                    decimal.RequireFromString("35.00"),
			EligibleMembershipTypes: string(types.MembershipKeyAccess),
			IsActive:                true,
			CreatedBy:               admin.ID,
		},
	}
	for _, ev := range events {
		if err := repos.EventRepo.Create(ctx, ev); err != nil {
			return err
		}
	}

	log.Printf("[Seed] Created %d benefits, %d content items, %d events", len(benefits), len(content), len(events))
	return nil
}
