// Package health provides health checking and HTTP endpoints for the LogAI engine.
package health

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Status represents the health status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check represents a health check result.
type Check struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// Pinger is implemented by any collaborator the engine depends on: the LLM
// client, the vector index, the warehouse, and the bus.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker performs health checks against every registered collaborator.
type Checker struct {
	collaborators map[string]Pinger
	logger        *zap.Logger
}

// New creates a new health checker over the named collaborators.
func New(logger *zap.Logger, collaborators map[string]Pinger) *Checker {
	return &Checker{
		collaborators: collaborators,
		logger:        logger,
	}
}

// CheckAll performs all health checks and returns the worst-of status.
func (c *Checker) CheckAll(ctx context.Context) (Status, []Check) {
	names := make([]string, 0, len(c.collaborators))
	for name := range c.collaborators {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make([]Check, 0, len(names))
	for _, name := range names {
		checks = append(checks, c.checkCollaborator(ctx, name, c.collaborators[name]))
	}

	overallStatus := StatusHealthy
	for _, check := range checks {
		if check.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
			break
		} else if check.Status == StatusDegraded && overallStatus == StatusHealthy {
			overallStatus = StatusDegraded
		}
	}

	return overallStatus, checks
}

func (c *Checker) checkCollaborator(ctx context.Context, name string, p Pinger) Check {
	start := time.Now()
	check := Check{Name: name, Timestamp: start}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := p.Ping(checkCtx)
	check.Duration = time.Since(start)

	switch {
	case err != nil && check.Duration > 3*time.Second:
		check.Status = StatusDegraded
		check.Message = "responding slowly"
		c.logger.Warn("Health check degraded", zap.String("collaborator", name), zap.Error(err), zap.Duration("duration", check.Duration))
	case err != nil:
		check.Status = StatusUnhealthy
		check.Message = fmt.Sprintf("unreachable: %v", err)
		c.logger.Warn("Health check failed", zap.String("collaborator", name), zap.Error(err), zap.Duration("duration", check.Duration))
	default:
		check.Status = StatusHealthy
		check.Message = "reachable"
		c.logger.Debug("Health check passed", zap.String("collaborator", name), zap.Duration("duration", check.Duration))
	}

	return check
}
