package handlers

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/spec-kit/login-api/pkg/util"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency that can report its connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	names       []string
	deps        map[string]Pinger
}

// NewHealthHandler takes the dependencies readiness depends on, keyed by the
// name reported in the response.
func NewHealthHandler(serviceName, version string, deps map[string]Pinger) *HealthHandler {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)
	return &HealthHandler{serviceName: serviceName, version: version, names: names, deps: deps}
}

// Live never touches dependencies.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready pings every dependency concurrently and answers 503 if any fails.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	results := make([]error, len(h.names))
	var g errgroup.Group
	for i, name := range h.names {
		i := i
		dep := h.deps[name]
		g.Go(func() error {
			results[i] = dep.Ping(ctx)
			return nil
		})
	}
	_ = g.Wait()

	status := make(map[string]any, len(h.names))
	ready := true
	for i, name := range h.names {
		if results[i] != nil {
			status[name] = results[i].Error()
			ready = false
			continue
		}
		status[name] = "ok"
	}

	if !ready {
		return apperrors.NewDomainError("DEPENDENCY_UNAVAILABLE", "one or more dependencies unavailable", fiber.StatusServiceUnavailable, status)
	}
	return c.JSON(fiber.Map{"status": "ready", "dependencies": status})
}
