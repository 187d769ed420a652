package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for server-side rate limiting.
var (
	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlassian_rate_limited_total",
		Help: "Total 429 responses received from the server",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlassian_rate_limit_blocks_total",
		Help: "Total requests refused because the server back-off exceeds the maximum wait",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "atlassian_rate_limit_wait_seconds",
		Help:    "Time requests spent waiting for a server back-off to expire",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
	})
)

// ErrRateLimited is returned by Wait when the server back-off is longer
// than the tracker's maximum wait.
var ErrRateLimited = errors.New("server rate limit in effect")

// Tracker records 429 responses and gates requests until the server's
// back-off has expired. It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	state   State
	maxWait time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

// NewTracker creates a tracker with MaxWait as its maximum wait.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		maxWait: MaxWait,
		now:     time.Now,
		logger:  logger,
	}
}

// SetMaxWait changes the longest back-off Wait sleeps through.
func (t *Tracker) SetMaxWait(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maxWait = d
}

// State returns a snapshot of the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// UpdateFromResponse records a 429 response. Other responses clear an
// expired back-off.
func (t *Tracker) UpdateFromResponse(resp *http.Response) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if resp.StatusCode != http.StatusTooManyRequests {
		if t.state.Limited && !now.Before(t.state.ResetAt) {
			t.state.Limited = false
		}
		return
	}

	wait, ok := ParseRetryAfter(resp.Header.Get("Retry-After"), now)
	if !ok {
		wait = DefaultRetryAfter
	}
	resetAt := now.Add(wait)
	if !t.state.Limited || resetAt.After(t.state.ResetAt) {
		t.state.ResetAt = resetAt
	}
	t.state.Limited = true
	t.state.LastUpdate = now
	t.state.Hits++

	endpoint := ""
	if resp.Request != nil {
		endpoint = resp.Request.URL.Path
	}
	rateLimitedTotal.Inc()
	t.logger.Warn().
		Str("endpoint", endpoint).
		Dur("retry_after", wait).
		Time("reset_at", t.state.ResetAt).
		Msg("Server rate limit hit")
}

// Wait blocks until the server back-off has expired or ctx is done. It
// returns ErrRateLimited at once when the back-off is longer than the
// maximum wait.
func (t *Tracker) Wait(ctx context.Context) error {
	t.mu.Lock()
	wait := t.state.TimeUntilReset(t.now())
	maxWait := t.maxWait
	resetAt := t.state.ResetAt
	t.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	if wait > maxWait {
		rateLimitBlocksTotal.Inc()
		t.logger.Error().Dur("wait", wait).Time("reset_at", resetAt).Msg("Server rate limit exceeds maximum wait")
		return fmt.Errorf("%w until %s", ErrRateLimited, resetAt.Format(time.RFC3339))
	}

	t.logger.Debug().Dur("wait", wait).Msg("Waiting for server rate limit to reset")
	start := time.Now()
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		rateLimitWaitSeconds.Observe(time.Since(start).Seconds())
		return nil
	}
}

// ParseRetryAfter reads a Retry-After value given either as delay seconds
// or as an HTTP date.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
