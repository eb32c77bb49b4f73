// Package health tracks the liveness of the server's dependencies: the NATS
// backing store and the remote NiFi targets it deploys to.
package health

import (
	"regexp"
	"time"
)

// Sanitization patterns for probe messages. Connection errors routinely
// embed endpoint URLs and credentials; those never leave the process.
var (
	urlRegex        = regexp.MustCompile(`(?:https?|nats|wss?)://[^\s]+`)
	credentialRegex = regexp.MustCompile(`(?i)(password|token|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Status is the health of one dependency at a point in time.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"` // "healthy", "unhealthy", "degraded"
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
}

// IsHealthy returns true if the status is healthy
func (s Status) IsHealthy() bool {
	return s.Status == "healthy"
}

// IsDegraded returns true if the status is degraded
func (s Status) IsDegraded() bool {
	return s.Status == "degraded"
}

// IsUnhealthy returns true if the status is unhealthy
func (s Status) IsUnhealthy() bool {
	return s.Status == "unhealthy"
}

// NewHealthy creates a new healthy status
func NewHealthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   true,
		Status:    "healthy",
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewUnhealthy creates a new unhealthy status. The message is sanitized.
func NewUnhealthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   false,
		Status:    "unhealthy",
		Message:   Sanitize(message),
		Timestamp: time.Now(),
	}
}

// NewDegraded creates a new degraded status. The message is sanitized.
func NewDegraded(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   false,
		Status:    "degraded",
		Message:   Sanitize(message),
		Timestamp: time.Now(),
	}
}

// Sanitize strips endpoint URLs and credential fragments from a message so
// failure details can be exposed on the health endpoint.
func Sanitize(message string) string {
	if message == "" {
		return ""
	}
	sanitized := urlRegex.ReplaceAllString(message, "[URL]")
	sanitized = credentialRegex.ReplaceAllString(sanitized, "[REDACTED]")
	return sanitized
}

// Aggregate rolls sub-statuses up into one:
// - all healthy makes the aggregate healthy
// - any unhealthy makes the aggregate unhealthy
// - otherwise any degraded makes the aggregate degraded
func Aggregate(component string, subStatuses []Status) Status {
	if len(subStatuses) == 0 {
		return NewHealthy(component, "No dependencies to check")
	}

	hasUnhealthy := false
	hasDegraded := false
	for _, sub := range subStatuses {
		if sub.IsUnhealthy() {
			hasUnhealthy = true
		} else if sub.IsDegraded() {
			hasDegraded = true
		}
	}

	var status Status
	switch {
	case hasUnhealthy:
		status = NewUnhealthy(component, "One or more dependencies are unhealthy")
	case hasDegraded:
		status = NewDegraded(component, "One or more dependencies are degraded")
	default:
		status = NewHealthy(component, "All dependencies are healthy")
	}

	status.SubStatuses = make([]Status, len(subStatuses))
	copy(status.SubStatuses, subStatuses)
	return status
}
