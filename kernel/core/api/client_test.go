package api

import (
	"io"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumweb/atrium/kernel/perf"
	"github.com/atriumweb/atrium/kernel/utils"
)

func testClient(cfg Config) *Client {
	return NewClient(cfg, nil,
		utils.NewLogger(utils.LoggerConfig{Level: utils.FATAL, Component: "test", Output: io.Discard}))
}

func TestClient_SendBeforeConnect(t *testing.T) {
	c := testClient(DefaultConfig("ws://unused"))
	defer c.Close()

	err := c.Send("telemetry", map[string]string{"k": "v"})
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig("ws://unused")
	cfg.BreakerFailures = 3
	cfg.BreakerTimeout = time.Minute
	c := testClient(cfg)
	defer c.Close()

	for i := 0; i < 3; i++ {
		err := c.Send("telemetry", map[string]int{"n": i})
		require.ErrorIs(t, err, ErrNotConnected)
	}

	// The breaker now fails fast without attempting the write
	err := c.Send("telemetry", map[string]int{"n": 99})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestClient_TelemetryGatedOnLow(t *testing.T) {
	c := testClient(DefaultConfig("ws://unused"))
	defer c.Close()

	c.SetQualityLevel(perf.LevelLow)
	assert.NoError(t, c.SendTelemetry("telemetry", map[string]string{"k": "v"}),
		"gated telemetry drops silently")

	c.SetQualityLevel(perf.LevelMedium)
	err := c.SendTelemetry("telemetry", map[string]string{"k": "v"})
	assert.ErrorIs(t, err, ErrNotConnected, "ungated telemetry goes through the normal path")
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	c := testClient(DefaultConfig("ws://unused"))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestClient_Stats(t *testing.T) {
	c := testClient(DefaultConfig("ws://unused"))
	defer c.Close()

	stats := c.Stats()
	assert.Equal(t, uint64(0), stats["sent"])
	assert.Equal(t, false, stats["connected"])
	assert.Equal(t, true, stats["telemetry"])

	c.SetQualityLevel(perf.LevelLow)
	assert.Equal(t, false, c.Stats()["telemetry"])
}
