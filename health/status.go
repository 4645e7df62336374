// Package health turns component health reports into an aggregated status
// suitable for a /health endpoint.
package health

import (
	"regexp"
	"strings"
	"time"

	"github.com/c360/linesink/component"
)

// Status values
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

var (
	urlRegex        = regexp.MustCompile(`(?:https?|nats|wss?)://[^\s]+`)
	unixPathRegex   = regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`)
	ipAddrRegex     = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portRegex       = regexp.MustCompile(`:\d{2,5}\b`)
	credentialRegex = regexp.MustCompile(`(?i)(password|token|key|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Status is the health of one component, or of the whole process when it
// carries sub-statuses
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
}

// Metrics are the counters reported alongside a component status
type Metrics struct {
	Uptime     time.Duration `json:"uptime"`
	ErrorCount int           `json:"error_count"`
	LastCheck  time.Time     `json:"last_check"`
}

// IsDegraded reports a running component that has seen errors
func (s Status) IsDegraded() bool { return s.Status == StatusDegraded }

// IsUnhealthy reports a component that is not running
func (s Status) IsUnhealthy() bool { return s.Status == StatusUnhealthy }

func newStatus(component, status, message string) Status {
	return Status{
		Component: component,
		Healthy:   status == StatusHealthy,
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// FromComponentHealth converts a component report. A healthy component that
// has recorded errors is degraded. Error text is sanitized because the
// endpoint is usually unauthenticated.
func FromComponentHealth(name string, ch component.HealthStatus) Status {
	var s Status
	switch {
	case !ch.Healthy:
		s = newStatus(name, StatusUnhealthy, "Component not running")
	case ch.ErrorCount > 0:
		s = newStatus(name, StatusDegraded, "Component running with errors")
	default:
		s = newStatus(name, StatusHealthy, "Component healthy")
	}
	if ch.LastError != "" {
		s.Message = sanitizeErrorMessage(ch.LastError)
	}

	s.Metrics = &Metrics{
		Uptime:     ch.Uptime,
		ErrorCount: ch.ErrorCount,
		LastCheck:  ch.LastCheck,
	}
	return s
}

// Aggregate combines sub-statuses: any unhealthy makes the whole unhealthy,
// otherwise any degraded makes it degraded.
func Aggregate(component string, subStatuses []Status) Status {
	if len(subStatuses) == 0 {
		return newStatus(component, StatusHealthy, "No components registered")
	}

	var unhealthy, degraded bool
	for _, sub := range subStatuses {
		switch {
		case sub.IsUnhealthy():
			unhealthy = true
		case sub.IsDegraded():
			degraded = true
		}
	}

	var status Status
	switch {
	case unhealthy:
		status = newStatus(component, StatusUnhealthy, "One or more components are unhealthy")
	case degraded:
		status = newStatus(component, StatusDegraded, "One or more components are degraded")
	default:
		status = newStatus(component, StatusHealthy, "All components are healthy")
	}

	status.SubStatuses = make([]Status, len(subStatuses))
	copy(status.SubStatuses, subStatuses)
	return status
}

// sanitizeErrorMessage strips URLs, paths, addresses and credentials
func sanitizeErrorMessage(err string) string {
	if err == "" {
		return ""
	}

	// URLs before paths, since URLs contain paths
	sanitized := urlRegex.ReplaceAllString(err, "[URL]")
	sanitized = unixPathRegex.ReplaceAllString(sanitized, "[PATH]")
	sanitized = ipAddrRegex.ReplaceAllString(sanitized, "[IP]")
	sanitized = portRegex.ReplaceAllString(sanitized, "[PORT]")

	lower := strings.ToLower(sanitized)
	for _, word := range []string{"password", "token", "key", "secret", "credential"} {
		if strings.Contains(lower, word) {
			sanitized = credentialRegex.ReplaceAllString(sanitized, "[REDACTED]")
			break
		}
	}
	return sanitized
}
