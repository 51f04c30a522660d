package service

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyMessage        = errors.New("message cannot be empty")
	ErrInvalidConversation = errors.New("invalid conversation")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrDisputeTooShort     = errors.New("dispute description must be at least 50 characters")
	ErrJobNotFound         = errors.New("job not found")
	ErrLocationRequired    = errors.New("location required")
	ErrInvalidChange       = errors.New("invalid change")
)

// PolicyError reports a message refused by the message policy.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("message rejected by policy: %s", e.Reason)
}
