package db

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// ConnStats is a health snapshot of one aliased connection.
type ConnStats struct {
	Alias           string `json:"alias"`
	Engine          Engine `json:"engine"`
	Database        string `json:"database"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
	MaxOpen         int    `json:"max_open"`
	WaitCount       int64  `json:"wait_count"`
	WaitDuration    string `json:"wait_duration"`
	Healthy         bool   `json:"healthy"`
	Error           string `json:"error,omitempty"`
}

// Stats pings alias and returns its connection statistics. A failed ping is
// reported in the snapshot, not as an error; an unknown alias is an error.
func (m *Manager) Stats(ctx context.Context, alias string) (*ConnStats, error) {
	c, err := m.conn(alias)
	if err != nil {
		return nil, m.fail(err)
	}

	st := c.db.Stats()
	stats := &ConnStats{
		Alias:           c.Alias,
		Engine:          c.Engine,
		Database:        c.Database,
		OpenConnections: st.OpenConnections,
		InUse:           st.InUse,
		Idle:            st.Idle,
		MaxOpen:         st.MaxOpenConnections,
		WaitCount:       st.WaitCount,
		WaitDuration:    st.WaitDuration.String(),
		Healthy:         true,
	}
	if err := c.db.PingContext(ctx); err != nil {
		stats.Healthy = false
		stats.Error = err.Error()
	}
	return stats, nil
}

// HealthHandler serves the health of alias as JSON, 503 when unhealthy.
func HealthHandler(m *Manager, alias string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		stats, err := m.Stats(ctx, alias)
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		if !stats.Healthy {
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status":   "unhealthy",
				"database": stats,
			})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"database": stats,
		})
	}
}
