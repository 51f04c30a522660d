// Package main seeds a store with fake tradies, helpers and open jobs around
// a center point, for local development.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/xiaot623/tradiehelper/internal/config"
	"github.com/xiaot623/tradiehelper/internal/domain"
	"github.com/xiaot623/tradiehelper/internal/repository"
)

var skills = []string{"carpentry", "plumbing", "electrical", "painting", "tiling", "landscaping", "roofing", "demolition"}

var urgencies = []string{string(domain.UrgencyHigh), string(domain.UrgencyMedium), string(domain.UrgencyLow)}

// nearby returns a point within roughly spreadKm of center.
func nearby(center domain.Location, spreadKm float64) *domain.Location {
	deg := spreadKm / 111.0
	return &domain.Location{
		Latitude:  center.Latitude + gofakeit.Float64Range(-deg, deg),
		Longitude: center.Longitude + gofakeit.Float64Range(-deg, deg),
	}
}

func pickSkills(n int) []string {
	seen := make(map[string]bool)
	var out []string
	for len(out) < n {
		s := gofakeit.RandomString(skills)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func main() {
	tradies := flag.Int("tradies", 5, "number of tradies")
	helpers := flag.Int("helpers", 20, "number of helpers")
	jobs := flag.Int("jobs", 30, "number of jobs")
	lat := flag.Float64("lat", -33.8688, "center latitude")
	lng := flag.Float64("lng", 151.2093, "center longitude")
	spread := flag.Float64("spread", 40, "spread around the center in km")
	seed := flag.Int64("seed", 0, "random seed, 0 for time based")
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	gofakeit.Seed(*seed)

	cfg := config.Load()
	db, err := repository.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	center := domain.Location{Latitude: *lat, Longitude: *lng}
	now := time.Now().UTC()

	tradieIDs := make([]string, 0, *tradies)
	for i := 0; i < *tradies; i++ {
		p := &domain.Profile{
			ID:         uuid.New().String(),
			Role:       domain.RoleTradie,
			FullName:   gofakeit.Name(),
			Location:   nearby(center, *spread),
			IsVerified: gofakeit.Bool(),
			CreatedAt:  now,
		}
		if err := db.UpsertProfile(ctx, p); err != nil {
			log.Fatalf("Failed to create tradie: %v", err)
		}
		tradieIDs = append(tradieIDs, p.ID)
	}

	for i := 0; i < *helpers; i++ {
		p := &domain.Profile{
			ID:         uuid.New().String(),
			Role:       domain.RoleHelper,
			FullName:   gofakeit.Name(),
			Location:   nearby(center, *spread),
			Skills:     pickSkills(gofakeit.Number(1, 3)),
			IsVerified: gofakeit.Bool(),
			CreatedAt:  now,
		}
		if err := db.UpsertProfile(ctx, p); err != nil {
			log.Fatalf("Failed to create helper: %v", err)
		}
	}

	if len(tradieIDs) == 0 && *jobs > 0 {
		log.Fatalf("jobs need at least one tradie")
	}
	for i := 0; i < *jobs; i++ {
		job := &domain.Job{
			ID:             uuid.New().String(),
			TradieID:       tradieIDs[gofakeit.Number(0, len(tradieIDs)-1)],
			Title:          fmt.Sprintf("%s needed", gofakeit.RandomString(skills)),
			Description:    gofakeit.Sentence(12),
			Location:       nearby(center, *spread),
			PayRate:        float64(gofakeit.Number(25, 90)),
			Urgency:        domain.Urgency(gofakeit.RandomString(urgencies)),
			RequiredSkills: pickSkills(gofakeit.Number(0, 2)),
			Status:         domain.JobStatusOpen,
			CreatedAt:      now.Add(-time.Duration(i) * time.Minute),
		}
		if err := db.CreateJob(ctx, job); err != nil {
			log.Fatalf("Failed to create job: %v", err)
		}
	}

	log.Printf("Seeded %d tradies, %d helpers and %d jobs (seed %d)", *tradies, *helpers, *jobs, *seed)
}
