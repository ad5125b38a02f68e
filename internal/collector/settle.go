package collector

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// AwaitSettled polls cond every interval until it reports true, the timeout elapses or ctx ends.
// It returns whether cond was satisfied; on timeout it logs a warning and callers proceed with
// whatever partial data they have.
func AwaitSettled(ctx context.Context, interval, timeout time.Duration, cond func() bool) bool {
	if cond() {
		return true
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			log.Warnf("market data did not settle within %s, continuing with partial data", timeout)
			return false
		case <-ticker.C:
			if cond() {
				return true
			}
		}
	}
}

// newRequestLimiter spaces requests to a rate-limited gateway by interval with no burst.
// One limiter is shared by all callers of a client; a zero interval disables pacing.
func newRequestLimiter(interval time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(interval), 1)
}
