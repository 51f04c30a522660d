package service

import (
	"context"
	"fmt"

	"github.com/xiaot623/tradiehelper/internal/domain"
	"github.com/xiaot623/tradiehelper/internal/geo"
)

// NearbyJobs ranks open jobs around point for helperID. When the criteria
// carry no skills the helper's profile skills are used.
func (s *Service) NearbyJobs(ctx context.Context, helperID string, point domain.Location, criteria geo.JobCriteria) ([]domain.JobMatch, error) {
	if !geo.ValidLocation(point) {
		return nil, ErrLocationRequired
	}
	if len(criteria.Skills) == 0 && helperID != "" {
		profile, err := s.store.GetProfile(ctx, helperID)
		if err != nil {
			return nil, fmt.Errorf("failed to get profile: %w", err)
		}
		if profile != nil {
			criteria.Skills = profile.Skills
		}
	}

	jobs, err := s.store.ListJobs(ctx, domain.JobStatusOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return geo.MatchJobs(point, jobs, criteria), nil
}

// NearbyHelpers ranks helpers around the location of jobID.
func (s *Service) NearbyHelpers(ctx context.Context, jobID string, maxDistanceKm float64) ([]domain.HelperMatch, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	if job.Location == nil {
		return nil, ErrLocationRequired
	}

	helpers, err := s.store.ListProfiles(ctx, domain.RoleHelper)
	if err != nil {
		return nil, fmt.Errorf("failed to list helpers: %w", err)
	}
	return geo.MatchHelpers(*job.Location, job.RequiredSkills, helpers, maxDistanceKm), nil
}
