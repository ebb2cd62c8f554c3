package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// HealthState represents the health state of a connector dependency
type HealthState string

const (
	HealthStateHealthy   HealthState = "healthy"
	HealthStateDegraded  HealthState = "degraded"
	HealthStateUnhealthy HealthState = "unhealthy"
)

// String returns the string representation of HealthState
func (s HealthState) String() string {
	return string(s)
}

// IsValid checks if the HealthState is a valid value
func (s HealthState) IsValid() bool {
	switch s {
	case HealthStateHealthy, HealthStateDegraded, HealthStateUnhealthy:
		return true
	default:
		return false
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (s *HealthState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	state := HealthState(str)
	if !state.IsValid() {
		return fmt.Errorf("invalid health state: %s", str)
	}

	*s = state
	return nil
}

// severity orders states so the worst one wins when combining.
func (s HealthState) severity() int {
	switch s {
	case HealthStateHealthy:
		return 0
	case HealthStateDegraded:
		return 1
	default:
		return 2
	}
}

// HealthStatus is the health of one dependency (graph store, checkpoint
// store, change feed) as reported by the admin API.
type HealthStatus struct {
	State     HealthState `json:"state"`
	Message   string      `json:"message,omitempty"`
	CheckedAt time.Time   `json:"checked_at"`
}

// NewHealthStatus creates a new HealthStatus with the given state and message.
// CheckedAt is automatically set to the current time.
func NewHealthStatus(state HealthState, message string) HealthStatus {
	return HealthStatus{
		State:     state,
		Message:   message,
		CheckedAt: time.Now(),
	}
}

// Healthy creates a new HealthStatus with HealthStateHealthy state.
func Healthy(message string) HealthStatus {
	return NewHealthStatus(HealthStateHealthy, message)
}

// Degraded creates a new HealthStatus with HealthStateDegraded state.
func Degraded(message string) HealthStatus {
	return NewHealthStatus(HealthStateDegraded, message)
}

// Unhealthy creates a new HealthStatus with HealthStateUnhealthy state.
func Unhealthy(message string) HealthStatus {
	return NewHealthStatus(HealthStateUnhealthy, message)
}

// IsHealthy returns true if the health state is healthy.
func (h HealthStatus) IsHealthy() bool {
	return h.State == HealthStateHealthy
}

// IsUnhealthy returns true if the health state is unhealthy.
func (h HealthStatus) IsUnhealthy() bool {
	return h.State == HealthStateUnhealthy
}

// CombineHealth folds named component statuses into one status. The worst
// state wins and the message lists every component that is not healthy.
func CombineHealth(components map[string]HealthStatus) HealthStatus {
	if len(components) == 0 {
		return Healthy("no components registered")
	}

	names := make([]string, 0, len(components))
	for name := range components {
		names = append(names, name)
	}
	sort.Strings(names)

	worst := HealthStateHealthy
	var problems []string
	for _, name := range names {
		status := components[name]
		if status.State.severity() > worst.severity() {
			worst = status.State
		}
		if !status.IsHealthy() {
			problems = append(problems, fmt.Sprintf("%s: %s", name, status.Message))
		}
	}

	if len(problems) == 0 {
		return Healthy("all components healthy")
	}
	return NewHealthStatus(worst, strings.Join(problems, "; "))
}
