// Package domain defines the core domain models for TradieHelper.
package domain

import (
	"fmt"
	"strings"
)

// PresenceStatus represents a user's live status.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceOffline PresenceStatus = "offline"
)

// ParsePresenceStatus validates a presence status received from a client.
func ParsePresenceStatus(s string) (PresenceStatus, error) {
	switch PresenceStatus(strings.ToLower(strings.TrimSpace(s))) {
	case PresenceOnline:
		return PresenceOnline, nil
	case PresenceAway:
		return PresenceAway, nil
	case PresenceOffline:
		return PresenceOffline, nil
	}
	return "", fmt.Errorf("unknown presence status %q", s)
}

// Urgency represents how soon a job must be done.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// ParseUrgency validates an urgency value. Empty input yields the zero value.
func ParseUrgency(s string) (Urgency, error) {
	switch Urgency(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case UrgencyHigh:
		return UrgencyHigh, nil
	case UrgencyMedium:
		return UrgencyMedium, nil
	case UrgencyLow:
		return UrgencyLow, nil
	}
	return "", fmt.Errorf("unknown urgency %q", s)
}

// JobStatus represents the lifecycle state of a job posting.
type JobStatus string

const (
	JobStatusOpen       JobStatus = "open"
	JobStatusAssigned   JobStatus = "assigned"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Role distinguishes tradies from helpers.
type Role string

const (
	RoleTradie Role = "tradie"
	RoleHelper Role = "helper"
	RoleAdmin  Role = "admin"
)

// ChangeType is the kind of row change emitted by the change feed.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)
