package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/tradiehelper/internal/domain"
	"github.com/xiaot623/tradiehelper/internal/geo"
)

func TestNearbyJobsUsesProfileSkills(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	manhattan := domain.Location{Latitude: 40.7128, Longitude: -74.0060}
	far := domain.Location{Latitude: 41.66, Longitude: -73.9851}
	require.NoError(t, env.store.CreateJob(ctx, &domain.Job{
		ID: "near", TradieID: "t", Title: "Leaky tap", Location: &manhattan, PayRate: 25,
		Urgency: domain.UrgencyMedium, RequiredSkills: []string{"plumbing"}, Status: domain.JobStatusOpen, CreatedAt: time.Now(),
	}))
	require.NoError(t, env.store.CreateJob(ctx, &domain.Job{
		ID: "far", TradieID: "t", Title: "Far away", Location: &far, PayRate: 90,
		Status: domain.JobStatusOpen, CreatedAt: time.Now(),
	}))
	require.NoError(t, env.store.CreateJob(ctx, &domain.Job{
		ID: "closed", TradieID: "t", Title: "Done", Location: &manhattan, Status: domain.JobStatusCompleted, CreatedAt: time.Now(),
	}))
	require.NoError(t, env.store.UpsertProfile(ctx, &domain.Profile{ID: "h", Role: domain.RoleHelper, Skills: []string{"plumbing"}}))

	point := domain.Location{Latitude: 40.7589, Longitude: -73.9851}
	matches, err := env.svc.NearbyJobs(ctx, "h", point, geo.JobCriteria{MaxDistanceKm: 50})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "near", matches[0].Job.ID)
	// distance ~5.4 km, full skill match, pay 10, medium 5
	assert.InDelta(t, 40-matches[0].DistanceKm+30+10+5, matches[0].Score, 1e-9)

	_, err = env.svc.NearbyJobs(ctx, "h", domain.Location{Latitude: 200}, geo.JobCriteria{})
	assert.ErrorIs(t, err, ErrLocationRequired)
}

func TestNearbyHelpers(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	loc := domain.Location{Latitude: -33.8688, Longitude: 151.2093}
	require.NoError(t, env.store.CreateJob(ctx, &domain.Job{
		ID: "j", TradieID: "t", Title: "Paint fence", Location: &loc, RequiredSkills: []string{"painting"},
		Status: domain.JobStatusOpen, CreatedAt: time.Now(),
	}))
	require.NoError(t, env.store.CreateJob(ctx, &domain.Job{
		ID: "noloc", TradieID: "t", Title: "Remote", Status: domain.JobStatusOpen, CreatedAt: time.Now(),
	}))
	require.NoError(t, env.store.UpsertProfile(ctx, &domain.Profile{ID: "h1", Role: domain.RoleHelper, Location: &loc, Skills: []string{"painting"}, IsVerified: true}))
	require.NoError(t, env.store.UpsertProfile(ctx, &domain.Profile{ID: "h2", Role: domain.RoleHelper, Location: &loc}))
	require.NoError(t, env.store.UpsertProfile(ctx, &domain.Profile{ID: "t", Role: domain.RoleTradie, Location: &loc}))

	matches, err := env.svc.NearbyHelpers(ctx, "j", 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "h1", matches[0].Helper.ID)
	assert.InDelta(t, 100.0, matches[0].Score, 1e-9)
	assert.InDelta(t, 45.0, matches[1].Score, 1e-9)

	_, err = env.svc.NearbyHelpers(ctx, "missing", 10)
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = env.svc.NearbyHelpers(ctx, "noloc", 10)
	assert.ErrorIs(t, err, ErrLocationRequired)
}

func TestPresenceThroughService(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	require.NoError(t, env.store.UpsertProfile(ctx, &domain.Profile{ID: "u1", Role: domain.RoleHelper}))

	env.svc.SetPresence(ctx, "u1", domain.PresenceOnline)
	state := env.svc.OnlineUsers()
	require.Len(t, state, 1)
	assert.Equal(t, "u1", state[0].UserID)

	p, err := env.store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.PresenceOnline, p.PresenceStatus)

	env.svc.ClearPresence(ctx, "u1")
	assert.Empty(t, env.svc.OnlineUsers())
	p, err = env.store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.PresenceOffline, p.PresenceStatus)
}
