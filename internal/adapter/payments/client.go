// Package payments calls the hosted payment onboarding endpoint.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var ErrNotConfigured = errors.New("payment onboarding not configured")

// OnboardingRequest is sent to the onboarding endpoint.
type OnboardingRequest struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email,omitempty"`
	ReturnURL  string `json:"return_url,omitempty"`
	RefreshURL string `json:"refresh_url,omitempty"`
}

// OnboardingLink is the externally hosted flow the user is redirected to.
type OnboardingLink struct {
	URL string `json:"url"`
}

// Client is an HTTP client for the onboarding endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a client. An empty endpoint yields a client whose calls
// fail with ErrNotConfigured.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// CreateOnboardingLink asks the endpoint for an account link URL.
func (c *Client) CreateOnboardingLink(ctx context.Context, req OnboardingRequest) (*OnboardingLink, error) {
	if c.endpoint == "" {
		return nil, ErrNotConfigured
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call onboarding endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("onboarding endpoint returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var link OnboardingLink
	if err := json.NewDecoder(resp.Body).Decode(&link); err != nil {
		return nil, fmt.Errorf("failed to decode onboarding response: %w", err)
	}
	u, err := url.Parse(link.URL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, fmt.Errorf("onboarding endpoint returned invalid url %q", link.URL)
	}
	return &link, nil
}
