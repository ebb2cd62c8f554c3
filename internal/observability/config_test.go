package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracingConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TracingConfig
		wantErr bool
	}{
		{"disabled skips checks", TracingConfig{Provider: "bogus"}, false},
		{"otlp", TracingConfig{Enabled: true, Provider: "OTLP", Endpoint: "c:4317", ServiceName: "s", SampleRate: 0.5}, false},
		{"noop without endpoint", TracingConfig{Enabled: true, Provider: "noop"}, false},
		{"missing service name", TracingConfig{Enabled: true, Provider: "otlp", Endpoint: "c:4317"}, true},
		{"negative sample rate", TracingConfig{Enabled: true, Provider: "noop", SampleRate: -0.1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMetricsConfig_Validate(t *testing.T) {
	assert.NoError(t, (&MetricsConfig{}).Validate())
	assert.NoError(t, (&MetricsConfig{Enabled: true, Provider: "prometheus"}).Validate())
	assert.NoError(t, (&MetricsConfig{Enabled: true, Provider: "otlp", Endpoint: "c:4317"}).Validate())
	assert.Error(t, (&MetricsConfig{Enabled: true, Provider: "otlp"}).Validate())
	assert.Error(t, (&MetricsConfig{Enabled: true, Provider: "graphite"}).Validate())
}

func TestLoggingConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LoggingConfig
		wantErr bool
	}{
		{"json stderr", LoggingConfig{Level: "info", Format: "json", Output: "stderr"}, false},
		{"text file", LoggingConfig{Level: "DEBUG", Format: "text", Output: "/var/log/graphsync.log"}, false},
		{"bad level", LoggingConfig{Level: "trace", Format: "json", Output: "stdout"}, true},
		{"bad format", LoggingConfig{Level: "info", Format: "xml", Output: "stdout"}, true},
		{"relative file", LoggingConfig{Level: "info", Format: "json", Output: "graphsync.log"}, true},
		{"missing output", LoggingConfig{Level: "info", Format: "json"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
