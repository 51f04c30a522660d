package geo

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/tradiehelper/internal/domain"
)

var (
	newYork    = domain.Location{Latitude: 40.7128, Longitude: -74.0060}
	losAngeles = domain.Location{Latitude: 34.0522, Longitude: -118.2437}
	timesSq    = domain.Location{Latitude: 40.7589, Longitude: -73.9851}
)

func TestDistance(t *testing.T) {
	assert.Equal(t, 0.0, Distance(newYork, newYork))

	d := Distance(newYork, losAngeles)
	assert.Greater(t, d, 3900.0)
	assert.Less(t, d, 4000.0)
	assert.InDelta(t, d, Distance(losAngeles, newYork), 1e-9)
}

func TestJobScoreTerms(t *testing.T) {
	job := domain.Job{PayRate: 25, Urgency: domain.UrgencyMedium, RequiredSkills: []string{"plumbing", "tiling"}}
	// 40 + 15 (half the skills) + 10 (pay) + 5 (urgency)
	assert.InDelta(t, 70.0, JobScore(0, job, []string{"Plumbing"}), 1e-9)

	job.RequiredSkills = nil
	assert.InDelta(t, 40.0+15+10+5, JobScore(0, job, nil), 1e-9)

	assert.Equal(t, 20.0, PayPoints(500))
	assert.Equal(t, 0.0, PayPoints(-10))
	assert.Equal(t, 0.0, UrgencyPoints("someday"))
	assert.Equal(t, 10.0, UrgencyPoints(domain.UrgencyHigh))
	assert.Equal(t, 2.0, UrgencyPoints(domain.UrgencyLow))
}

func TestJobScoreNonIncreasingInDistance(t *testing.T) {
	job := domain.Job{PayRate: 40, Urgency: domain.UrgencyHigh, RequiredSkills: []string{"carpentry"}}
	prev := JobScore(0, job, []string{"carpentry"})
	for d := 0.5; d < 80; d += 0.5 {
		s := JobScore(d, job, []string{"carpentry"})
		assert.LessOrEqual(t, s, prev, "distance %.1f", d)
		prev = s
	}
}

func TestHelperScore(t *testing.T) {
	h := domain.Profile{Skills: []string{"painting"}, IsVerified: true}
	assert.InDelta(t, 30.0+40+20, HelperScore(10, h, []string{"painting"}), 1e-9)

	h.IsVerified = false
	assert.InDelta(t, 30.0+20+5, HelperScore(10, h, nil), 1e-9)
	assert.InDelta(t, 0.0+0+5, HelperScore(50, h, []string{"welding"}), 1e-9)
}

func TestMatchJobsNearbyPlumbing(t *testing.T) {
	jobs := []domain.Job{{
		ID:             "j1",
		Location:       &newYork,
		PayRate:        25,
		Urgency:        domain.UrgencyMedium,
		RequiredSkills: []string{"plumbing"},
	}}
	matches := MatchJobs(timesSq, jobs, JobCriteria{Skills: []string{"plumbing"}, MaxDistanceKm: 50})
	require.Len(t, matches, 1)
	assert.Equal(t, "j1", matches[0].Job.ID)
	assert.Greater(t, matches[0].Score, 0.0)
	assert.Less(t, matches[0].DistanceKm, 10.0)
}

func TestMatchJobsExcludesOutOfRange(t *testing.T) {
	// ~100 km north of Times Square.
	far := domain.Location{Latitude: timesSq.Latitude + 0.9, Longitude: timesSq.Longitude}
	jobs := []domain.Job{
		{ID: "far", Location: &far, PayRate: 100, Urgency: domain.UrgencyHigh},
		{ID: "near", Location: &newYork, PayRate: 10},
		{ID: "nowhere", PayRate: 100},
	}
	matches := MatchJobs(timesSq, jobs, JobCriteria{MaxDistanceKm: 50})
	require.Len(t, matches, 1)
	assert.Equal(t, "near", matches[0].Job.ID)
	for _, m := range matches {
		assert.LessOrEqual(t, m.DistanceKm, 50.0)
	}
}

func TestMatchNonFiniteRadiusUsesDefault(t *testing.T) {
	// ~100 km north of Times Square.
	far := domain.Location{Latitude: timesSq.Latitude + 0.9, Longitude: timesSq.Longitude}
	jobs := []domain.Job{
		{ID: "far", Location: &far, PayRate: 100},
		{ID: "near", Location: &newYork, PayRate: 10},
	}
	helpers := []domain.Profile{
		{ID: "far", Location: &far},
		{ID: "near", Location: &newYork},
	}
	for _, radius := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		matches := MatchJobs(timesSq, jobs, JobCriteria{MaxDistanceKm: radius})
		require.Len(t, matches, 1, "radius %v", radius)
		assert.Equal(t, "near", matches[0].Job.ID)

		helperMatches := MatchHelpers(timesSq, nil, helpers, radius)
		require.Len(t, helperMatches, 1, "radius %v", radius)
		assert.Equal(t, "near", helperMatches[0].Helper.ID)
	}
}

func TestMatchJobsSortedAndStable(t *testing.T) {
	jobs := []domain.Job{
		{ID: "a", Location: &newYork, PayRate: 10},
		{ID: "b", Location: &newYork, PayRate: 50},
		{ID: "c", Location: &newYork, PayRate: 10},
	}
	matches := MatchJobs(newYork, jobs, JobCriteria{})
	require.Len(t, matches, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{matches[0].Job.ID, matches[1].Job.ID, matches[2].Job.ID})
}

func TestMatchHelpers(t *testing.T) {
	helpers := []domain.Profile{
		{ID: "unverified", Location: &newYork, Skills: []string{"plumbing"}},
		{ID: "verified", Location: &newYork, Skills: []string{"plumbing"}, IsVerified: true},
		{ID: "far", Location: &losAngeles, IsVerified: true},
		{ID: "nolocation", IsVerified: true},
	}
	matches := MatchHelpers(timesSq, []string{"plumbing"}, helpers, 25)
	require.Len(t, matches, 2)
	assert.Equal(t, "verified", matches[0].Helper.ID)
	assert.Equal(t, "unverified", matches[1].Helper.ID)
}

func TestGetCurrentPosition(t *testing.T) {
	ctx := context.Background()

	res := GetCurrentPosition(ctx, SourceFunc(func(context.Context) (domain.Location, error) {
		return domain.Location{}, fmt.Errorf("user said no: %w", ErrPermissionDenied)
	}))
	assert.Nil(t, res.Location)
	assert.Equal(t, "Location permission denied", res.Error)

	res = GetCurrentPosition(ctx, SourceFunc(func(context.Context) (domain.Location, error) {
		return domain.Location{}, ErrPositionUnavailable
	}))
	assert.Equal(t, "Location information unavailable", res.Error)

	tctx, cancel := context.WithTimeout(ctx, time.Millisecond)
	defer cancel()
	res = GetCurrentPosition(tctx, SourceFunc(func(ctx context.Context) (domain.Location, error) {
		<-ctx.Done()
		return domain.Location{}, ctx.Err()
	}))
	assert.Equal(t, "Location request timed out", res.Error)

	res = GetCurrentPosition(ctx, nil)
	assert.Equal(t, MsgPositionUnavailable, res.Error)

	res = GetCurrentPosition(ctx, StaticSource{Location: newYork})
	require.NotNil(t, res.Location)
	assert.Empty(t, res.Error)
	assert.Equal(t, newYork, *res.Location)

	res = GetCurrentPosition(ctx, StaticSource{Location: domain.Location{Latitude: 120}})
	assert.Equal(t, MsgPositionUnavailable, res.Error)
}
