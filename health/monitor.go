package health

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"

	"github.com/c360/linesink/component"
)

// Reporter is anything that reports its own health
type Reporter interface {
	Health() component.HealthStatus
}

// Monitor polls registered components each time it is checked
type Monitor struct {
	name      string
	mu        sync.RWMutex
	reporters map[string]Reporter
}

// NewMonitor creates a monitor whose aggregate status is named name
func NewMonitor(name string) *Monitor {
	return &Monitor{
		name:      name,
		reporters: make(map[string]Reporter),
	}
}

// Watch adds or replaces a component
func (m *Monitor) Watch(name string, r Reporter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reporters[name] = r
}

// Remove stops watching a component
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reporters, name)
}

// Check polls every component, in name order
func (m *Monitor) Check() Status {
	m.mu.RLock()
	names := make([]string, 0, len(m.reporters))
	for name := range m.reporters {
		names = append(names, name)
	}
	reporters := make(map[string]Reporter, len(m.reporters))
	for name, r := range m.reporters {
		reporters[name] = r
	}
	m.mu.RUnlock()

	sort.Strings(names)
	subs := make([]Status, 0, len(names))
	for _, name := range names {
		subs = append(subs, FromComponentHealth(name, reporters[name].Health()))
	}
	return Aggregate(m.name, subs)
}

// ServeHTTP writes the aggregate status as JSON: 200 unless a component is
// unhealthy, then 503.
func (m *Monitor) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	status := m.Check()

	code := http.StatusOK
	if status.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}
