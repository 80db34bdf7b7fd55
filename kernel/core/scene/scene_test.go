package scene

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atriumweb/atrium/kernel/perf"
	"github.com/atriumweb/atrium/kernel/utils"
)

func testAdapter(devicePixelRatio float64) *Adapter {
	return NewAdapter(devicePixelRatio,
		utils.NewLogger(utils.LoggerConfig{Level: utils.FATAL, Component: "test", Output: io.Discard}))
}

func TestAdapter_PixelRatioClamp(t *testing.T) {
	a := testAdapter(3.0) // retina-class display

	a.ApplySettings(perf.SettingsFor(perf.LevelHigh))
	assert.InDelta(t, 2.0, a.EffectivePixelRatio(), 1e-9)

	a.ApplySettings(perf.SettingsFor(perf.LevelMedium))
	assert.InDelta(t, 1.5, a.EffectivePixelRatio(), 1e-9)

	a.ApplySettings(perf.SettingsFor(perf.LevelLow))
	assert.InDelta(t, 1.5, a.EffectivePixelRatio(), 1e-9)
}

func TestAdapter_LowDensityDisplayNotUpscaled(t *testing.T) {
	a := testAdapter(1.0)

	a.ApplySettings(perf.SettingsFor(perf.LevelHigh))
	assert.InDelta(t, 1.0, a.EffectivePixelRatio(), 1e-9,
		"the cap is a ceiling, never a floor")
}

func TestAdapter_InvalidDeviceRatioDefaults(t *testing.T) {
	a := testAdapter(0)
	a.ApplySettings(perf.SettingsFor(perf.LevelHigh))
	assert.InDelta(t, 1.0, a.EffectivePixelRatio(), 1e-9)
}

func TestAdapter_ShadowsFollowLevel(t *testing.T) {
	a := testAdapter(2.0)

	a.ApplySettings(perf.SettingsFor(perf.LevelHigh))
	assert.True(t, a.ShadowsEnabled())

	a.ApplySettings(perf.SettingsFor(perf.LevelMedium))
	assert.True(t, a.ShadowsEnabled(), "medium renders reduced shadows, not none")

	a.ApplySettings(perf.SettingsFor(perf.LevelLow))
	assert.False(t, a.ShadowsEnabled())
}

func TestAdapter_SettingsRoundTrip(t *testing.T) {
	a := testAdapter(2.0)

	want := perf.SettingsFor(perf.LevelMedium)
	a.ApplySettings(want)
	assert.Equal(t, want, a.Settings())

	stats := a.Stats()
	assert.Equal(t, uint64(1), stats["applied_count"])
	assert.Equal(t, want.TargetFPS, stats["target_fps"])
}
