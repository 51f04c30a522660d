package domain

import "time"

// Location is a WGS84 coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Job is a posting made by a tradie.
type Job struct {
	ID             string    `json:"id"`
	TradieID       string    `json:"tradie_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Location       *Location `json:"location,omitempty"`
	PayRate        float64   `json:"pay_rate"`
	Urgency        Urgency   `json:"urgency"`
	RequiredSkills []string  `json:"required_skills"`
	Status         JobStatus `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// Profile is a user profile. Only helpers carry skills.
type Profile struct {
	ID             string         `json:"id"`
	Role           Role           `json:"role"`
	FullName       string         `json:"full_name"`
	Location       *Location      `json:"location,omitempty"`
	Skills         []string       `json:"skills"`
	IsVerified     bool           `json:"is_verified"`
	PresenceStatus PresenceStatus `json:"presence_status,omitempty"`
	LastSeen       *time.Time     `json:"last_seen,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// JobMatch is a scored job candidate for a helper.
type JobMatch struct {
	Job        Job     `json:"job"`
	DistanceKm float64 `json:"distance_km"`
	Score      float64 `json:"score"`
}

// HelperMatch is a scored helper candidate for a job.
type HelperMatch struct {
	Helper     Profile `json:"helper"`
	DistanceKm float64 `json:"distance_km"`
	Score      float64 `json:"score"`
}
