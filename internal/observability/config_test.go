package observability

import (
	"testing"

	"github.com/smallbiznis/rentledger/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("OTEL_SAMPLING_RATIO", "0.5")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "HTTP")

	cfg := LoadConfig(config.Config{
		AppVersion:   "1.2.0",
		Environment:  "production",
		LogLevel:     "INFO",
		OTLPEndpoint: " collector:4317 ",
		OTLPProtocol: "grpc",
		OtelEnabled:  true,
	})

	assert.Equal(t, "rentledger", cfg.ServiceName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "collector:4317", cfg.OtelExporterEndpoint)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.Equal(t, 0.5, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())

	tracingCfg := cfg.tracingConfig()
	assert.True(t, tracingCfg.Enabled)
	assert.Equal(t, "1.2.0", tracingCfg.ServiceVersion)
}

func TestDebug(t *testing.T) {
	assert.True(t, Config{Environment: "development"}.Debug())
	assert.True(t, Config{Environment: "production", LogLevel: "debug"}.Debug())
	assert.False(t, Config{Environment: "staging"}.Debug())
}
