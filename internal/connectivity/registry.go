package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ashureev/smartkissan/internal/domain"
)

// Check describes one upstream integration. A nil Ping marks the
// integration as not configured.
type Check struct {
	ID       string
	Name     string
	Category domain.APICategory
	Ping     func(ctx context.Context) error
}

// Registry probes upstream integrations and publishes their availability
// as gRPC health service statuses keyed by check id.
type Registry struct {
	checks  []Check
	health  *health.Server
	timeout time.Duration
	logger  *slog.Logger

	mu    sync.RWMutex
	state map[string]domain.ExternalAPIDescriptor
}

// NewRegistry creates a registry. hs may be nil when no health server is exposed.
func NewRegistry(checks []Check, hs *health.Server, timeout time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	r := &Registry{
		checks:  checks,
		health:  hs,
		timeout: timeout,
		logger:  logger,
		state:   make(map[string]domain.ExternalAPIDescriptor, len(checks)),
	}
	for _, c := range checks {
		r.state[c.ID] = domain.ExternalAPIDescriptor{ID: c.ID, Name: c.Name, Category: c.Category}
		r.publish(c.ID, false)
	}
	return r
}

// List returns the descriptors in registration order.
func (r *Registry) List() []domain.ExternalAPIDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ExternalAPIDescriptor, 0, len(r.checks))
	for _, c := range r.checks {
		out = append(out, r.state[c.ID])
	}
	return out
}

// Available reports whether the integration with the given id answered its last probe.
func (r *Registry) Available(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state[id].IsAvailable
}

// Refresh probes every integration concurrently.
func (r *Registry) Refresh(ctx context.Context) {
	var wg sync.WaitGroup
	for _, c := range r.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.refreshOne(ctx, c)
		}()
	}
	wg.Wait()
}

// Run refreshes immediately and then on every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	r.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Refresh(ctx)
		}
	}
}

func (r *Registry) refreshOne(ctx context.Context, c Check) {
	available := false
	if c.Ping != nil {
		pingCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := c.Ping(pingCtx)
		cancel()
		if err != nil {
			r.logger.Debug("Integration probe failed", "operation", "probe", "source", c.ID, "error", err)
		}
		available = err == nil
	}

	r.mu.Lock()
	d := r.state[c.ID]
	changed := d.IsAvailable != available
	d.IsAvailable = available
	d.CheckedAt = time.Now()
	r.state[c.ID] = d
	r.mu.Unlock()

	if changed {
		r.logger.Info("Integration availability changed", "source", c.ID, "available", available)
	}
	r.publish(c.ID, available)
}

func (r *Registry) publish(id string, available bool) {
	if r.health == nil {
		return
	}
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if available {
		status = healthpb.HealthCheckResponse_SERVING
	}
	r.health.SetServingStatus(id, status)
}
