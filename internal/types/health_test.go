package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthState_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		state HealthState
		want  bool
	}{
		{"healthy", HealthStateHealthy, true},
		{"degraded", HealthStateDegraded, true},
		{"unhealthy", HealthStateUnhealthy, true},
		{"empty", HealthState(""), false},
		{"unknown", HealthState("sleepy"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.IsValid())
		})
	}
}

func TestHealthState_UnmarshalJSON(t *testing.T) {
	var state HealthState
	require.NoError(t, json.Unmarshal([]byte(`"degraded"`), &state))
	assert.Equal(t, HealthStateDegraded, state)

	err := json.Unmarshal([]byte(`"broken"`), &state)
	assert.Error(t, err)
}

func TestHealthStatus_Constructors(t *testing.T) {
	healthy := Healthy("connected to Neo4j")
	assert.True(t, healthy.IsHealthy())
	assert.False(t, healthy.IsUnhealthy())
	assert.False(t, healthy.CheckedAt.IsZero())

	assert.Equal(t, HealthStateDegraded, Degraded("slow").State)
	assert.True(t, Unhealthy("driver not initialized").IsUnhealthy())
}

func TestHealthStatus_JSONOmitsEmptyMessage(t *testing.T) {
	data, err := json.Marshal(NewHealthStatus(HealthStateHealthy, ""))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "message")
	assert.Contains(t, string(data), `"state":"healthy"`)
}

func TestCombineHealth(t *testing.T) {
	t.Run("no components", func(t *testing.T) {
		assert.True(t, CombineHealth(nil).IsHealthy())
	})

	t.Run("all healthy", func(t *testing.T) {
		status := CombineHealth(map[string]HealthStatus{
			"graph":      Healthy("ok"),
			"checkpoint": Healthy("ok"),
		})
		assert.True(t, status.IsHealthy())
	})

	t.Run("worst state wins", func(t *testing.T) {
		status := CombineHealth(map[string]HealthStatus{
			"graph":      Unhealthy("connectivity check failed"),
			"checkpoint": Degraded("compaction running"),
			"source":     Healthy("ok"),
		})
		assert.Equal(t, HealthStateUnhealthy, status.State)
		assert.Equal(t, "checkpoint: compaction running; graph: connectivity check failed", status.Message)
	})
}
