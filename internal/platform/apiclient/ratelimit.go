package apiclient

import (
	"context"
	"net/http"
	"time"
)

// RateLimitResult summarizes a ProbeRateLimit run. A status of 0 records a
// transport error.
type RateLimitResult struct {
	Sent     int
	Limited  int
	Statuses []int
}

// Detected reports whether any request was answered with 429.
func (r RateLimitResult) Detected() bool { return r.Limited > 0 }

// ProbeRateLimit sends n GET requests to endpoint spaced evenly over window
// and counts 429 responses. It never fails the test: when no limiting is
// observed a warning is logged. A cancelled ctx ends the probe early.
func (c *Client) ProbeRateLimit(ctx context.Context, endpoint string, n int, window time.Duration) RateLimitResult {
	var res RateLimitResult
	if n <= 0 {
		return res
	}
	delay := window / time.Duration(n)

probe:
	for i := 0; i < n; i++ {
		status := 0
		if resp, err := c.do(ctx, http.MethodGet, endpoint, nil, nil); err == nil {
			status = resp.StatusCode
		}
		res.Sent++
		res.Statuses = append(res.Statuses, status)
		if status == http.StatusTooManyRequests {
			res.Limited++
		}

		if i < n-1 && delay > 0 {
			select {
			case <-ctx.Done():
				break probe
			case <-time.After(delay):
			}
		}
	}

	if res.Limited == 0 {
		c.logger.Warn().Int("requests", n).Dur("window", window).Msg("no rate limiting detected")
	} else {
		c.logger.Info().Int("limited", res.Limited).Int("requests", n).Msg("rate limiting detected")
	}
	return res
}
