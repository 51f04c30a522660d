package geo

import (
	"math"
	"sort"

	"github.com/xiaot623/tradiehelper/internal/domain"
)

// DefaultMaxDistanceKm applies when a search does not set a radius.
const DefaultMaxDistanceKm = 50.0

// JobCriteria describes a helper's job search.
type JobCriteria struct {
	Skills        []string
	MaxDistanceKm float64
}

// maxDistanceOrDefault also defaults NaN and infinite radii, which would
// otherwise admit every candidate.
func maxDistanceOrDefault(d float64) float64 {
	if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return DefaultMaxDistanceKm
	}
	return d
}

// MatchJobs ranks jobs around point. Jobs without coordinates or beyond the
// radius are dropped before scoring; equal scores keep input order.
func MatchJobs(point domain.Location, jobs []domain.Job, c JobCriteria) []domain.JobMatch {
	maxDistance := maxDistanceOrDefault(c.MaxDistanceKm)
	matches := make([]domain.JobMatch, 0, len(jobs))
	for _, job := range jobs {
		if job.Location == nil {
			continue
		}
		d := Distance(point, *job.Location)
		if d > maxDistance {
			continue
		}
		matches = append(matches, domain.JobMatch{
			Job:        job,
			DistanceKm: d,
			Score:      JobScore(d, job, c.Skills),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// MatchHelpers ranks helpers for a job at jobLocation.
func MatchHelpers(jobLocation domain.Location, requiredSkills []string, helpers []domain.Profile, maxDistanceKm float64) []domain.HelperMatch {
	maxDistance := maxDistanceOrDefault(maxDistanceKm)
	matches := make([]domain.HelperMatch, 0, len(helpers))
	for _, h := range helpers {
		if h.Location == nil {
			continue
		}
		d := Distance(jobLocation, *h.Location)
		if d > maxDistance {
			continue
		}
		matches = append(matches, domain.HelperMatch{
			Helper:     h,
			DistanceKm: d,
			Score:      HelperScore(d, h, requiredSkills),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}
