//go:build integration

package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marga-Ghale/together-culture-crm/internal/db"
	"github.com/Marga-Ghale/together-culture-crm/internal/types"
)

// Run with: TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/repository/
func newPostgresRepositories(t *testing.T) *Repositories {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	require.NoError(t, db.RunMigrations(url, "../db/migrations"))
	pg, err := db.NewPostgresDB(url)
	require.NoError(t, err)
	t.Cleanup(pg.Close)
	return NewRepositories(pg.Pool)
}

func pgProfile(t *testing.T, repos *Repositories) (*User, *Profile) {
	t.Helper()
	name := "it-" + uuid.NewString()[:8]
	return newProfile(t, repos, name)
}

func TestPostgresApproveMembership_ClosesPriorRow(t *testing.T) {
	ctx := context.Background()
	repos := newPostgresRepositories(t)
	staff, _ := pgProfile(t, repos)
	_, p := pgProfile(t, repos)

	current, err := repos.ProfileRepo.FindCurrentMembership(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, current)

	now := time.Now()
	req := &Membership{ProfileID: p.ID, MembershipType: types.MembershipKeyAccess, StartDate: now}
	require.NoError(t, repos.ProfileRepo.CreateMembershipRequest(ctx, req))

	_, changed, err := repos.ProfileRepo.ApproveMembership(ctx, req.ID, staff.ID, now)
	require.NoError(t, err)
	assert.True(t, changed)

	old, err := repos.ProfileRepo.FindMembershipByID(ctx, current.ID)
	require.NoError(t, err)
	require.NotNil(t, old.EndDate)

	latest, err := repos.ProfileRepo.FindCurrentMembership(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, types.MembershipKeyAccess, latest.MembershipType)

	missing, err := repos.ProfileRepo.FindMembershipByID(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPostgresRegister_ConcurrentLastSeat(t *testing.T) {
	ctx := context.Background()
	repos := newPostgresRepositories(t)
	staff, _ := pgProfile(t, repos)

	ev := &Event{Title: "Last seat", EventType: types.EventOther, StartDate: time.Now().Add(time.Hour), EndDate: time.Now().Add(2 * time.Hour), Capacity: 1, IsActive: true, CreatedBy: staff.ID}
	require.NoError(t, repos.EventRepo.Create(ctx, ev))

	errFull := errors.New("full")
	check := func(e *Event, registered int, already bool) error {
		if registered >= e.Capacity {
			return errFull
		}
		return nil
	}

	const racers = 5
	var wg sync.WaitGroup
	results := make([]error, racers)
	for i := 0; i < racers; i++ {
		u, _ := pgProfile(t, repos)
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			_, results[i] = repos.EventRepo.Register(ctx, ev.ID, userID, "TC-"+uuid.NewString()[:10], check)
		}(i, u.ID)
	}
	wg.Wait()

	won := 0
	for _, err := range results {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, errFull)
	}
	assert.Equal(t, 1, won)

	stored, err := repos.EventRepo.FindByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.RegisteredCount)
}

func TestPostgresRegister_TicketTaken(t *testing.T) {
	ctx := context.Background()
	repos := newPostgresRepositories(t)
	ada, _ := pgProfile(t, repos)
	bob, _ := pgProfile(t, repos)

	ev := &Event{Title: "Tickets", EventType: types.EventOther, StartDate: time.Now().Add(time.Hour), EndDate: time.Now().Add(2 * time.Hour), IsActive: true, CreatedBy: ada.ID}
	require.NoError(t, repos.EventRepo.Create(ctx, ev))
	allow := func(*Event, int, bool) error { return nil }

	ticket := "TC-" + uuid.NewString()[:10]
	_, err := repos.EventRepo.Register(ctx, ev.ID, ada.ID, ticket, allow)
	require.NoError(t, err)

	_, err = repos.EventRepo.Register(ctx, ev.ID, bob.ID, ticket, allow)
	assert.ErrorIs(t, err, ErrTicketTaken)
	none, err := repos.EventRepo.FindAttendance(ctx, ev.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	missing, err := repos.EventRepo.FindByID(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
