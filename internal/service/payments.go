package service

import (
	"context"
	"fmt"

	"github.com/xiaot623/tradiehelper/internal/adapter/payments"
)

// StartOnboarding returns the hosted onboarding URL the user is sent to.
func (s *Service) StartOnboarding(ctx context.Context, userID, returnURL string) (*payments.OnboardingLink, error) {
	if s.payments == nil {
		return nil, payments.ErrNotConfigured
	}
	req := payments.OnboardingRequest{UserID: userID, ReturnURL: returnURL, RefreshURL: returnURL}
	link, err := s.payments.CreateOnboardingLink(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to start onboarding: %w", err)
	}
	return link, nil
}
