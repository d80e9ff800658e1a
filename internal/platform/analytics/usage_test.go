package analytics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

// ---------------------------------------------------------------------------
// Recording
// ---------------------------------------------------------------------------

func TestUsageTracker_Record(t *testing.T) {
	tracker := NewUsageTracker()
	tracker.Record(RequestMetric{Method: "GET", Route: "/api/v1/patients", StatusCode: 200, Duration: 40 * time.Millisecond, ClientID: "qa_admin"})
	tracker.Record(RequestMetric{Method: "GET", Route: "/api/v1/patients", StatusCode: 429, Duration: 20 * time.Millisecond, ClientID: "qa_admin"})
	tracker.Record(RequestMetric{Method: "POST", Route: "/auth/login", StatusCode: 401, Duration: 30 * time.Millisecond})

	o := tracker.Overview()
	if o.TotalRequests != 3 {
		t.Fatalf("expected TotalRequests=3, got %d", o.TotalRequests)
	}
	if o.TotalErrors != 2 {
		t.Errorf("expected TotalErrors=2, got %d", o.TotalErrors)
	}
	if o.RateLimited != 1 {
		t.Errorf("expected RateLimited=1, got %d", o.RateLimited)
	}
	if o.UniqueClients != 1 {
		t.Errorf("expected UniqueClients=1, got %d", o.UniqueClients)
	}
	if o.AvgLatency != 30*time.Millisecond {
		t.Errorf("expected AvgLatency=30ms, got %s", o.AvgLatency)
	}
	if len(o.Endpoints) != 2 {
		t.Fatalf("expected 2 endpoints, got %d", len(o.Endpoints))
	}

	top := o.Endpoints[0]
	if top.Endpoint != "GET /api/v1/patients" || top.TotalRequests != 2 {
		t.Errorf("unexpected top endpoint %+v", top)
	}
	if top.ErrorRate != 0.5 {
		t.Errorf("expected ErrorRate=0.5, got %f", top.ErrorRate)
	}
	if top.StatusBreakdown[200] != 1 || top.StatusBreakdown[429] != 1 {
		t.Errorf("unexpected breakdown %v", top.StatusBreakdown)
	}
}

func TestUsageTracker_Empty(t *testing.T) {
	o := NewUsageTracker().Overview()
	if o.TotalRequests != 0 || o.ErrorRate != 0 || o.AvgLatency != 0 {
		t.Errorf("expected zero overview, got %+v", o)
	}
	if o.Endpoints == nil {
		t.Error("Endpoints should be an empty slice, not nil")
	}
}

func TestUsageTracker_Concurrent(t *testing.T) {
	tracker := NewUsageTracker()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				tracker.Record(RequestMetric{Method: "GET", Route: "/health", StatusCode: 200})
			}
		}()
	}
	wg.Wait()

	if got := tracker.Overview().TotalRequests; got != 1000 {
		t.Errorf("expected 1000 requests, got %d", got)
	}
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func TestMiddleware(t *testing.T) {
	tracker := NewUsageTracker()
	e := echo.New()
	e.Use(Middleware(tracker))
	e.GET("/api/v1/patients/:id", func(c echo.Context) error {
		c.Set("user_id", "qa_admin")
		if c.Param("id") == "missing" {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return c.JSON(http.StatusOK, map[string]string{"id": c.Param("id")})
	})
	e.GET("/stats", OverviewHandler(tracker))

	for _, path := range []string{"/api/v1/patients/PAT_1", "/api/v1/patients/missing", "/nowhere"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var o UsageOverview
	if err := json.Unmarshal(rec.Body.Bytes(), &o); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	if o.TotalRequests != 3 {
		t.Fatalf("expected 3 recorded requests before /stats, got %d", o.TotalRequests)
	}

	byName := map[string]*EndpointSummary{}
	for _, ep := range o.Endpoints {
		byName[ep.Endpoint] = ep
	}
	patient := byName["GET /api/v1/patients/:id"]
	if patient == nil {
		t.Fatalf("route template not recorded: %v", o.Endpoints)
	}
	if patient.StatusBreakdown[200] != 1 || patient.StatusBreakdown[404] != 1 {
		t.Errorf("unexpected breakdown %v", patient.StatusBreakdown)
	}
	if o.UniqueClients != 1 {
		t.Errorf("expected 1 client, got %d", o.UniqueClients)
	}
	if len(byName) != 2 {
		t.Errorf("expected patient route and one unmatched entry, got %v", byName)
	}
}
