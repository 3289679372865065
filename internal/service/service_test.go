package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Marga-Ghale/together-culture-crm/internal/config"
	"github.com/Marga-Ghale/together-culture-crm/internal/db"
	"github.com/Marga-Ghale/together-culture-crm/internal/email"
	"github.com/Marga-Ghale/together-culture-crm/internal/notification"
	"github.com/Marga-Ghale/together-culture-crm/internal/repository"
	"github.com/Marga-Ghale/together-culture-crm/internal/types"
)

// fakeMailer records what would have been sent.
type fakeMailer struct {
	mu          sync.Mutex
	approvals   []string
	tickets     []email.EventTicketData
	reminders   []email.EventTicketData
	resetTokens []string
}

func (m *fakeMailer) SendMembershipApproved(to, name, tier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approvals = append(m.approvals, tier)
	return nil
}

func (m *fakeMailer) SendEventTicket(to string, data email.EventTicketData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets = append(m.tickets, data)
	return nil
}

func (m *fakeMailer) SendEventReminder(to string, data email.EventTicketData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reminders = append(m.reminders, data)
	return nil
}

func (m *fakeMailer) SendPasswordReset(to, name, token string, validFor time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetTokens = append(m.resetTokens, token)
	return nil
}

func (m *fakeMailer) lastResetToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.resetTokens) == 0 {
		return ""
	}
	return m.resetTokens[len(m.resetTokens)-1]
}

type testEnv struct {
	ctx    context.Context
	repos  *repository.Repositories
	store  *db.LocalStore
	mailer *fakeMailer
	notif  *notification.Service
	svc    *Services
	now    time.Time
	admin  *repository.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithMode(t, "hierarchy")
}

func newTestEnvWithMode(t *testing.T, mode string) *testEnv {
	t.Helper()
	e := &testEnv{
		ctx:    context.Background(),
		repos:  repository.NewMemoryRepositories(),
		store:  db.NewLocalStore(),
		mailer: &fakeMailer{},
		now:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	e.notif = notification.NewService(e.repos.NotificationRepo, e.repos.UserRepo)

	cfg := &config.Config{
		JWTSecret:            "test-secret",
		JWTExpiry:            1,
		RefreshExpiry:        1,
		EventEligibilityMode: mode,
		PasswordResetTTL:     time.Hour,
		CatalogCacheTTL:      time.Minute,
	}
	e.svc = NewServices(&ServiceDeps{
		Config:   cfg,
		Repos:    e.repos,
		NotifSvc: e.notif,
		EmailSvc: e.mailer,
		Tokens:   e.store,
		Cache:    e.store,
		Clock:    func() time.Time { return e.now },
	})

	e.admin = &repository.User{Username: "staff", Email: "staff@example.com", Password: "x", IsStaff: true}
	require.NoError(t, e.repos.UserRepo.Create(e.ctx, e.admin))
	return e
}

func (e *testEnv) user(t *testing.T, username string) *repository.User {
	t.Helper()
	u := &repository.User{Username: username, Email: username + "@example.com", Password: "x"}
	require.NoError(t, e.repos.UserRepo.Create(e.ctx, u))
	return u
}

// member creates a user with a profile, which holds community membership.
func (e *testEnv) member(t *testing.T, username string) (*repository.User, *repository.Profile) {
	t.Helper()
	u := e.user(t, username)
	d, err := e.svc.Profile.Create(e.ctx, u, CreateProfileInput{
		FullName:    "Member " + username,
		PhoneNumber: "+44 1234 567890",
		Location:    "Cambridge",
		Interests:   []string{"creating"},
	})
	require.NoError(t, err)
	return u, d.Profile
}

// promote moves the user to tier through a request and staff approval.
func (e *testEnv) promote(t *testing.T, u *repository.User, tier types.MembershipType) {
	t.Helper()
	m, err := e.svc.Membership.Request(e.ctx, u, string(tier))
	require.NoError(t, err)
	_, err = e.svc.Membership.Approve(e.ctx, e.admin, m.ID)
	require.NoError(t, err)
}

func (e *testEnv) eventInput(title string) EventInput {
	return EventInput{
		Title:     title,
		EventType: types.EventWorkshop,
		StartDate: e.now.Add(72 * time.Hour),
		EndDate:   e.now.Add(75 * time.Hour),
	}
}

func (e *testEnv) event(t *testing.T, in EventInput) *repository.Event {
	t.Helper()
	ev, err := e.svc.Event.Create(e.ctx, e.admin, in)
	require.NoError(t, err)
	return ev
}

func countNotifications(t *testing.T, e *testEnv, userID, kind string) int {
	t.Helper()
	list, err := e.repos.NotificationRepo.FindByUserID(e.ctx, userID, false)
	require.NoError(t, err)
	n := 0
	for _, item := range list {
		if item.Type == kind {
			n++
		}
	}
	return n
}
