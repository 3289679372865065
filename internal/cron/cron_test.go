package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marga-Ghale/together-culture-crm/internal/config"
	"github.com/Marga-Ghale/together-culture-crm/internal/db"
	"github.com/Marga-Ghale/together-culture-crm/internal/notification"
	"github.com/Marga-Ghale/together-culture-crm/internal/repository"
	"github.com/Marga-Ghale/together-culture-crm/internal/service"
	"github.com/Marga-Ghale/together-culture-crm/internal/types"
)

func newScheduler(t *testing.T) (*Scheduler, *repository.Repositories) {
	t.Helper()
	repos := repository.NewMemoryRepositories()
	store := db.NewLocalStore()
	notifSvc := notification.NewService(repos.NotificationRepo, repos.UserRepo)
	services := service.NewServices(&service.ServiceDeps{
		Config:   &config.Config{JWTSecret: "cron-secret", CatalogCacheTTL: time.Minute},
		Repos:    repos,
		NotifSvc: notifSvc,
		Tokens:   store,
		Cache:    store,
	})
	return NewScheduler(services, notifSvc), repos
}

func TestManualTrigger_ExpiresActivations(t *testing.T) {
	s, repos := newScheduler(t)
	ctx := context.Background()

	b := &repository.Benefit{Name: "Desk", MembershipLevelRequired: types.AccessAll, IsActive: true}
	require.NoError(t, repos.BenefitRepo.Create(ctx, b))
	past := time.Now().Add(-time.Minute)
	_, err := repos.BenefitRepo.Activate(ctx, &repository.UserBenefit{
		UserID: "u1", BenefitID: b.ID, ActivatedAt: past.Add(-time.Hour), ExpiresAt: &past,
	})
	require.NoError(t, err)

	s.ManualTrigger("benefits")

	ub, err := repos.BenefitRepo.FindUserBenefit(ctx, "u1", b.ID)
	require.NoError(t, err)
	assert.False(t, ub.IsActive)
}

func TestManualTrigger_CleanupKeepsRecent(t *testing.T) {
	s, repos := newScheduler(t)
	ctx := context.Background()

	n := &repository.Notification{UserID: "u1", Type: "X", Title: "Fresh"}
	require.NoError(t, repos.NotificationRepo.Create(ctx, n))
	_, err := repos.NotificationRepo.MarkAsRead(ctx, n.ID, "u1")
	require.NoError(t, err)

	s.ManualTrigger("all")

	total, _, err := repos.NotificationRepo.CountByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestStartStop(t *testing.T) {
	s, _ := newScheduler(t)
	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 3)
	s.Stop()
}
