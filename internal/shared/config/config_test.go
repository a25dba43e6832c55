package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_EngineDefaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "settlement-engine")

	cfg := Load()
	assert.Equal(t, "settlement-engine", cfg.ServiceName)
	assert.Equal(t, "9091", cfg.MetricsPort)
	assert.Empty(t, cfg.HTTPPort)
	assert.Equal(t, "resolution_jobs", cfg.TopicResolutionJobs)
	assert.Equal(t, "resolution_jobs_dlq", cfg.TopicResolutionJobsDLQ)
	assert.Equal(t, "bet_lifecycle_events", cfg.LifecycleChannel)
	assert.Equal(t, "dir", cfg.FeedMode)
}

func TestLoad_SimulatorExposesPublicPort(t *testing.T) {
	t.Setenv("SERVICE_NAME", "gamefeed-simulator")

	cfg := Load()
	assert.Equal(t, "8084", cfg.HTTPPort)
	assert.Equal(t, "9094", cfg.MetricsPort)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "resolution-worker")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("FEED_MODE", "ws")
	t.Setenv("METRICS_PORT_WORKER", "19092")

	cfg := Load()
	assert.Equal(t, "k1:9092,k2:9092", cfg.KafkaBrokers)
	assert.Equal(t, "ws", cfg.FeedMode)
	assert.Equal(t, "19092", cfg.MetricsPort)
}
