// Package connectivity tracks whether the service can reach the outside
// world and which upstream integrations are currently available.
package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/smartkissan/internal/domain"
)

// MonitorConfig controls the reachability probe.
type MonitorConfig struct {
	URL      string
	Interval time.Duration
	Timeout  time.Duration
}

// Monitor derives the network status from a periodic HTTP probe. Clients
// may report their own status, which holds until the next probe.
type Monitor struct {
	cfg        MonitorConfig
	httpClient *http.Client
	logger     *slog.Logger

	mu        sync.RWMutex
	status    domain.NetworkStatus
	checkedAt time.Time
}

// NewMonitor creates a monitor. It starts out online; an empty URL disables
// probing.
func NewMonitor(cfg MonitorConfig, httpClient *http.Client, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Monitor{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
		status:     domain.NetworkOnline,
	}
}

// Status returns the current network status.
func (m *Monitor) Status() domain.NetworkStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// CheckedAt returns when the status was last set.
func (m *Monitor) CheckedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checkedAt
}

// SetReported applies a status reported by a client.
func (m *Monitor) SetReported(status domain.NetworkStatus) {
	m.set(status, "reported")
}

// Probe checks the reachability URL once and updates the status.
func (m *Monitor) Probe(ctx context.Context) domain.NetworkStatus {
	if m.cfg.URL == "" {
		return m.Status()
	}

	status := domain.NetworkOnline
	if err := m.probe(ctx); err != nil {
		m.logger.Debug("Connectivity probe failed", "url", m.cfg.URL, "error", err)
		status = domain.NetworkOffline
	}
	m.set(status, "probe")
	return status
}

// Run probes immediately and then on every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	if m.cfg.URL == "" {
		return
	}

	m.Probe(ctx)
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("probe returned status %d", resp.StatusCode)
	}
	return nil
}

func (m *Monitor) set(status domain.NetworkStatus, origin string) {
	m.mu.Lock()
	prev := m.status
	m.status = status
	m.checkedAt = time.Now()
	m.mu.Unlock()

	if prev != status {
		m.logger.Info("Network status changed", "from", prev, "to", status, "origin", origin)
	}
}
