package typing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xiaot623/tradiehelper/internal/domain"
	"github.com/xiaot623/tradiehelper/internal/realtime"
)

// DefaultThrottle bounds how often keystrokes are broadcast per job.
const DefaultThrottle = time.Second

// Indicator is the sending side for one user.
type Indicator struct {
	tr       *realtime.Transport
	userID   string
	throttle time.Duration
	now      func() time.Time

	mu     sync.Mutex
	active map[string]time.Time // job -> last broadcast
}

// NewIndicator creates an indicator for userID. A zero throttle broadcasts
// every keystroke.
func NewIndicator(tr *realtime.Transport, userID string, throttle time.Duration) *Indicator {
	return &Indicator{
		tr:       tr,
		userID:   userID,
		throttle: throttle,
		now:      time.Now,
		active:   make(map[string]time.Time),
	}
}

// Keystroke broadcasts is_typing=true for jobID unless one went out within
// the throttle window.
func (i *Indicator) Keystroke(ctx context.Context, jobID string) error {
	if jobID == "" {
		return fmt.Errorf("job id cannot be empty")
	}
	now := i.now()

	i.mu.Lock()
	last, ok := i.active[jobID]
	if ok && now.Sub(last) < i.throttle {
		i.mu.Unlock()
		return nil
	}
	i.active[jobID] = now
	i.mu.Unlock()

	return i.send(ctx, jobID, true)
}

// Stop broadcasts is_typing=false for jobID.
func (i *Indicator) Stop(ctx context.Context, jobID string) error {
	i.mu.Lock()
	delete(i.active, jobID)
	i.mu.Unlock()
	return i.send(ctx, jobID, false)
}

// StopAll stops every job the user has typed in since the last stop.
func (i *Indicator) StopAll(ctx context.Context) error {
	i.mu.Lock()
	jobs := make([]string, 0, len(i.active))
	for job := range i.active {
		jobs = append(jobs, job)
	}
	i.active = make(map[string]time.Time)
	i.mu.Unlock()

	var firstErr error
	for _, job := range jobs {
		if err := i.send(ctx, job, false); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (i *Indicator) send(ctx context.Context, jobID string, typing bool) error {
	ev := domain.TypingEvent{UserID: i.userID, JobID: jobID, IsTyping: typing}
	if err := i.tr.Broadcast(ctx, realtime.TypingChannel(jobID), EventTyping, ev); err != nil {
		return fmt.Errorf("failed to broadcast typing for job %s: %w", jobID, err)
	}
	return nil
}
