package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/terra-clan/toolkit-engine/internal/metrics"
)

// Monitor periodically checks every registered dependency and exports the
// result as the dependency_up gauge
type Monitor struct {
	registry *Registry
	interval time.Duration
	healthy  map[string]bool
}

// NewMonitor creates a new monitoring worker
func NewMonitor(registry *Registry, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &Monitor{
		registry: registry,
		interval: interval,
		healthy:  make(map[string]bool),
	}
}

// Start begins the monitoring worker in a goroutine
func (m *Monitor) Start(ctx context.Context) {
	go m.run(ctx)
}

func (m *Monitor) run(ctx context.Context) {
	slog.Info("health monitor started", "interval", m.interval, "dependencies", m.registry.List())

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.check(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("health monitor stopped")
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// check runs one round and logs only state changes
func (m *Monitor) check(ctx context.Context) {
	for name, err := range m.registry.CheckAll(ctx) {
		metrics.RecordDependency(name, err)

		was, seen := m.healthy[name]
		m.healthy[name] = err == nil
		switch {
		case err != nil && (was || !seen):
			slog.Error("dependency unhealthy", "dependency", name, "error", err)
		case err == nil && seen && !was:
			slog.Info("dependency recovered", "dependency", name)
		}
	}
}
