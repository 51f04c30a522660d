package geo

import (
	"math"
	"strings"

	"github.com/xiaot623/tradiehelper/internal/domain"
)

// Weights of the job score.
const (
	jobDistanceMax   = 40.0
	jobSkillsMax     = 30.0
	jobSkillsDefault = 15.0
	jobPayMax        = 20.0
	jobPayReference  = 50.0
)

// Weights of the helper score.
const (
	helperDistanceMax   = 40.0
	helperSkillsMax     = 40.0
	helperSkillsDefault = 20.0
	helperVerified      = 20.0
	helperUnverified    = 5.0
)

// distanceTerm is max(0, limit - d).
func distanceTerm(limit, d float64) float64 {
	return math.Max(0, limit-d)
}

// skillRatio returns the share of required skills present in have, and
// false when nothing is required. Comparison ignores case and surrounding
// whitespace.
func skillRatio(required, have []string) (float64, bool) {
	if len(required) == 0 {
		return 0, false
	}
	set := make(map[string]struct{}, len(have))
	for _, s := range have {
		set[normalizeSkill(s)] = struct{}{}
	}
	matching := 0
	for _, s := range required {
		if _, ok := set[normalizeSkill(s)]; ok {
			matching++
		}
	}
	return float64(matching) / float64(len(required)), true
}

func normalizeSkill(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// UrgencyPoints returns 10, 5 or 2 for high, medium and low; 0 otherwise.
func UrgencyPoints(u domain.Urgency) float64 {
	switch u {
	case domain.UrgencyHigh:
		return 10
	case domain.UrgencyMedium:
		return 5
	case domain.UrgencyLow:
		return 2
	}
	return 0
}

// PayPoints returns min(20, pay/50*20), floored at 0.
func PayPoints(payRate float64) float64 {
	return math.Max(0, math.Min(jobPayMax, payRate/jobPayReference*jobPayMax))
}

// JobScore scores a job for a helper with the given skills at distanceKm.
func JobScore(distanceKm float64, job domain.Job, helperSkills []string) float64 {
	score := distanceTerm(jobDistanceMax, distanceKm)
	if ratio, ok := skillRatio(job.RequiredSkills, helperSkills); ok {
		score += ratio * jobSkillsMax
	} else {
		score += jobSkillsDefault
	}
	score += PayPoints(job.PayRate)
	score += UrgencyPoints(job.Urgency)
	return score
}

// HelperScore scores a helper for a job requiring requiredSkills.
func HelperScore(distanceKm float64, helper domain.Profile, requiredSkills []string) float64 {
	score := distanceTerm(helperDistanceMax, distanceKm)
	if ratio, ok := skillRatio(requiredSkills, helper.Skills); ok {
		score += ratio * helperSkillsMax
	} else {
		score += helperSkillsDefault
	}
	if helper.IsVerified {
		score += helperVerified
	} else {
		score += helperUnverified
	}
	return score
}
