// Package analytics counts API traffic per route and per client so test
// suites can assert on what the server actually saw.
package analytics

import (
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestMetric is one observed request.
type RequestMetric struct {
	Method     string
	Route      string
	StatusCode int
	Duration   time.Duration
	ClientID   string
}

type endpointStats struct {
	requests      int64
	errors        int64
	totalDuration time.Duration
	statusCounts  map[int]int64
}

// EndpointSummary aggregates one method and route template.
type EndpointSummary struct {
	Endpoint        string        `json:"endpoint"`
	TotalRequests   int64         `json:"total_requests"`
	ErrorRate       float64       `json:"error_rate"`
	AvgLatency      time.Duration `json:"avg_latency_ns"`
	StatusBreakdown map[int]int64 `json:"status_breakdown"`
}

// UsageOverview is the snapshot served by OverviewHandler.
type UsageOverview struct {
	TotalRequests int64              `json:"total_requests"`
	TotalErrors   int64              `json:"total_errors"`
	RateLimited   int64              `json:"rate_limited"`
	ErrorRate     float64            `json:"error_rate"`
	AvgLatency    time.Duration      `json:"avg_latency_ns"`
	UniqueClients int                `json:"unique_clients"`
	Endpoints     []*EndpointSummary `json:"endpoints"`
}

// UsageTracker is safe for concurrent use.
type UsageTracker struct {
	mu            sync.Mutex
	endpoints     map[string]*endpointStats
	clients       map[string]int64
	totalRequests int64
	totalErrors   int64
	rateLimited   int64
	totalDuration time.Duration
}

func NewUsageTracker() *UsageTracker {
	return &UsageTracker{
		endpoints: make(map[string]*endpointStats),
		clients:   make(map[string]int64),
	}
}

// Record adds m to the counters. Status codes of 400 and above count as
// errors.
func (ut *UsageTracker) Record(m RequestMetric) {
	isError := m.StatusCode >= http.StatusBadRequest
	key := m.Method + " " + m.Route

	ut.mu.Lock()
	defer ut.mu.Unlock()

	ut.totalRequests++
	ut.totalDuration += m.Duration
	if isError {
		ut.totalErrors++
	}
	if m.StatusCode == http.StatusTooManyRequests {
		ut.rateLimited++
	}
	if m.ClientID != "" {
		ut.clients[m.ClientID]++
	}

	ep, ok := ut.endpoints[key]
	if !ok {
		ep = &endpointStats{statusCounts: make(map[int]int64)}
		ut.endpoints[key] = ep
	}
	ep.requests++
	ep.totalDuration += m.Duration
	ep.statusCounts[m.StatusCode]++
	if isError {
		ep.errors++
	}
}

// Overview returns a snapshot with endpoints sorted by request count, then
// name.
func (ut *UsageTracker) Overview() *UsageOverview {
	ut.mu.Lock()
	defer ut.mu.Unlock()

	o := &UsageOverview{
		TotalRequests: ut.totalRequests,
		TotalErrors:   ut.totalErrors,
		RateLimited:   ut.rateLimited,
		UniqueClients: len(ut.clients),
		Endpoints:     make([]*EndpointSummary, 0, len(ut.endpoints)),
	}
	if ut.totalRequests > 0 {
		o.ErrorRate = float64(ut.totalErrors) / float64(ut.totalRequests)
		o.AvgLatency = ut.totalDuration / time.Duration(ut.totalRequests)
	}

	for name, ep := range ut.endpoints {
		breakdown := make(map[int]int64, len(ep.statusCounts))
		for code, n := range ep.statusCounts {
			breakdown[code] = n
		}
		o.Endpoints = append(o.Endpoints, &EndpointSummary{
			Endpoint:        name,
			TotalRequests:   ep.requests,
			ErrorRate:       float64(ep.errors) / float64(ep.requests),
			AvgLatency:      ep.totalDuration / time.Duration(ep.requests),
			StatusBreakdown: breakdown,
		})
	}
	sort.Slice(o.Endpoints, func(i, j int) bool {
		a, b := o.Endpoints[i], o.Endpoints[j]
		if a.TotalRequests != b.TotalRequests {
			return a.TotalRequests > b.TotalRequests
		}
		return a.Endpoint < b.Endpoint
	})
	return o
}

// Middleware records every request into tracker. It must run inside the
// error-logging middleware so errors returned by later handlers are still
// unhandled and their status can be read from the *echo.HTTPError.
func Middleware(tracker *UsageTracker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = http.StatusInternalServerError
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				}
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			clientID, _ := c.Get("user_id").(string)

			tracker.Record(RequestMetric{
				Method:     c.Request().Method,
				Route:      route,
				StatusCode: status,
				Duration:   time.Since(start),
				ClientID:   clientID,
			})
			return err
		}
	}
}

// OverviewHandler serves tracker's overview as JSON.
func OverviewHandler(tracker *UsageTracker) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, tracker.Overview())
	}
}
