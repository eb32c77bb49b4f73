package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Probe checks one dependency. Probes must honor the context deadline; a
// probe that cannot answer in time should report unhealthy rather than hang.
type Probe func(ctx context.Context) Status

// Monitor runs registered probes and caches their last known statuses.
type Monitor struct {
	mu       sync.RWMutex
	probes   map[string]Probe
	statuses map[string]Status
}

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		probes:   make(map[string]Probe),
		statuses: make(map[string]Status),
	}
}

// Register adds a named probe. Re-registering a name replaces the probe.
func (m *Monitor) Register(name string, probe Probe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes[name] = probe
}

// Update records a status directly, outside the probe cycle. Long-running
// operations use this to push failures as they happen.
func (m *Monitor) Update(name string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	m.statuses[name] = status
}

// Get retrieves the last known status for a named dependency.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, exists := m.statuses[name]
	return status, exists
}

// Check runs every registered probe, refreshes the cached statuses and
// returns the aggregate.
func (m *Monitor) Check(ctx context.Context, systemName string) Status {
	m.mu.RLock()
	names := make([]string, 0, len(m.probes))
	for name := range m.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	probes := make([]Probe, len(names))
	for i, name := range names {
		probes[i] = m.probes[name]
	}
	m.mu.RUnlock()

	statuses := make([]Status, len(names))
	for i, probe := range probes {
		status := probe(ctx)
		status.Component = names[i]
		if status.Timestamp.IsZero() {
			status.Timestamp = time.Now()
		}
		statuses[i] = status

		m.mu.Lock()
		m.statuses[names[i]] = status
		m.mu.Unlock()
	}

	return Aggregate(systemName, statuses)
}

// Components returns the names of all registered probes.
func (m *Monitor) Components() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.probes))
	for name := range m.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
