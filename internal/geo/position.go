package geo

import (
	"context"
	"errors"

	"github.com/xiaot623/tradiehelper/internal/domain"
)

// Errors a PositionSource reports.
var (
	ErrPermissionDenied    = errors.New("permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrPositionTimeout     = errors.New("position timeout")
)

// User-facing messages carried in PositionResult.Error.
const (
	MsgPermissionDenied    = "Location permission denied"
	MsgPositionUnavailable = "Location information unavailable"
	MsgPositionTimeout     = "Location request timed out"
)

// PositionSource yields the device position.
type PositionSource interface {
	CurrentPosition(ctx context.Context) (domain.Location, error)
}

// PositionResult holds either a location or a readable error.
type PositionResult struct {
	Location *domain.Location `json:"location"`
	Error    string           `json:"error,omitempty"`
}

// GetCurrentPosition asks source for a position. Failures are reported in the
// result, never as a Go error.
func GetCurrentPosition(ctx context.Context, source PositionSource) PositionResult {
	if source == nil {
		return PositionResult{Error: MsgPositionUnavailable}
	}
	loc, err := source.CurrentPosition(ctx)
	switch {
	case err == nil:
		if !ValidLocation(loc) {
			return PositionResult{Error: MsgPositionUnavailable}
		}
		return PositionResult{Location: &loc}
	case errors.Is(err, ErrPermissionDenied):
		return PositionResult{Error: MsgPermissionDenied}
	case errors.Is(err, ErrPositionTimeout), errors.Is(err, context.DeadlineExceeded):
		return PositionResult{Error: MsgPositionTimeout}
	default:
		return PositionResult{Error: MsgPositionUnavailable}
	}
}

// ValidLocation reports whether loc lies within WGS84 bounds.
func ValidLocation(loc domain.Location) bool {
	return loc.Latitude >= -90 && loc.Latitude <= 90 && loc.Longitude >= -180 && loc.Longitude <= 180
}

// StaticSource reports a fixed position, such as coordinates a client sent.
type StaticSource struct {
	Location domain.Location
}

func (s StaticSource) CurrentPosition(ctx context.Context) (domain.Location, error) {
	if err := ctx.Err(); err != nil {
		return domain.Location{}, err
	}
	return s.Location, nil
}

// SourceFunc adapts a function to PositionSource.
type SourceFunc func(ctx context.Context) (domain.Location, error)

func (f SourceFunc) CurrentPosition(ctx context.Context) (domain.Location, error) {
	return f(ctx)
}
