package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the health of an individual component
type ComponentStatus string

const (
	ComponentStatusUp       ComponentStatus = "up"
	ComponentStatusDown     ComponentStatus = "down"
	ComponentStatusDegraded ComponentStatus = "degraded"
)

// Health represents the complete health check response
type Health struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents the health of a single system component
type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs float64         `json:"latency_ms,omitempty"`
	Details   interface{}     `json:"details,omitempty"`
}

// HandleHealth provides a detailed health check endpoint
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.checkHealth()

	statusCode := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(health)
}

// checkHealth performs health checks on all components
func (s *Server) checkHealth() Health {
	health := Health{
		Timestamp:  time.Now(),
		Version:    s.version,
		Components: make(map[string]ComponentHealth),
	}

	health.Components["database"] = s.checkDatabaseHealth()
	health.Components["blobstore"] = s.checkBlobStoreHealth()
	health.Status = determineOverallHealth(health.Components)

	return health
}

// checkDatabaseHealth checks document database connectivity and latency
func (s *Server) checkDatabaseHealth() ComponentHealth {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: "database ping failed: " + err.Error(),
		}
	}

	latency := time.Since(start).Milliseconds()

	status := ComponentStatusUp
	message := "database healthy"
	if latency > 1000 {
		status = ComponentStatusDegraded
		message = "database latency high"
	}

	return ComponentHealth{
		Status:    status,
		Message:   message,
		LatencyMs: float64(latency),
	}
}

// checkBlobStoreHealth verifies the bucket's files collection answers queries
func (s *Server) checkBlobStoreHealth() ComponentHealth {
	if s.files == nil {
		return ComponentHealth{
			Status:  ComponentStatusDegraded,
			Message: "blobstore collection not configured",
		}
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := s.files.EstimatedDocumentCount(ctx)
	if err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDegraded,
			Message: "blob query failed: " + err.Error(),
		}
	}

	return ComponentHealth{
		Status:    ComponentStatusUp,
		Message:   "blobstore healthy",
		LatencyMs: float64(time.Since(start).Milliseconds()),
		Details:   bson.M{"blob_count": count},
	}
}

// determineOverallHealth rolls component statuses up to one verdict. The
// database being down is fatal; anything else degrades.
func determineOverallHealth(components map[string]ComponentHealth) HealthStatus {
	if db, ok := components["database"]; ok && db.Status == ComponentStatusDown {
		return HealthStatusUnhealthy
	}
	for _, c := range components {
		if c.Status != ComponentStatusUp {
			return HealthStatusDegraded
		}
	}
	return HealthStatusHealthy
}
