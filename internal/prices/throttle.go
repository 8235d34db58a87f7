package prices

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle enforces a minimum interval between outbound provider requests.
// A single Throttle is shared by every symbol of a refresh so requests are
// serialized regardless of which symbol issues them.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle creates a Throttle. An interval <= 0 disables waiting.
func NewThrottle(interval time.Duration) *Throttle {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Throttle{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next request may be sent or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}
