// Package ratelimit tracks rate limits signalled by the server.
// Bitbucket Server answers 429 Too Many Requests with a Retry-After header
// once a user has drained its token bucket; the Tracker remembers the reset
// time and holds further requests back until it has passed.
package ratelimit

import (
	"time"
)

// Bounds applied to the server's Retry-After value.
const (
	// DefaultRetryAfter is used when a 429 carries no usable Retry-After.
	DefaultRetryAfter = 5 * time.Second

	// MaxWait is the longest the Tracker blocks a request. Longer
	// back-offs fail fast with ErrRateLimited.
	MaxWait = 5 * time.Minute
)

// State is the rate limit state of one server.
type State struct {
	// Limited is true while the server asked us to back off.
	Limited bool `json:"limited"`

	// ResetAt is when requests may resume.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the last 429 was seen.
	LastUpdate time.Time `json:"last_update"`

	// Hits counts 429 responses since the tracker was created.
	Hits int `json:"hits"`
}

// TimeUntilReset returns how long requests must still wait at now.
// Returns 0 if the reset time has already passed.
func (s State) TimeUntilReset(now time.Time) time.Duration {
	if !s.Limited {
		return 0
	}
	d := s.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// IsStale returns true if the state is older than maxAge at now.
func (s State) IsStale(maxAge time.Duration, now time.Time) bool {
	return now.Sub(s.LastUpdate) > maxAge
}
