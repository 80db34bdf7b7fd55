package scene

import (
	"sync"

	"github.com/atriumweb/atrium/kernel/perf"
	"github.com/atriumweb/atrium/kernel/utils"
)

// Adapter sits between the performance controller and the host
// renderer. Rendering itself is external; the adapter owns the applied
// settings and the values the host reads back (effective pixel ratio,
// shadow state, frame budget).
type Adapter struct {
	mu sync.RWMutex

	devicePixelRatio float64
	settings         perf.Settings
	shadowsEnabled   bool
	applied          uint64

	logger *utils.Logger
}

// NewAdapter creates a render adapter for a host with the given
// devicePixelRatio (1.0 when unknown).
func NewAdapter(devicePixelRatio float64, logger *utils.Logger) *Adapter {
	if devicePixelRatio <= 0 {
		devicePixelRatio = 1.0
	}
	if logger == nil {
		logger = utils.DefaultLogger("scene")
	}
	return &Adapter{
		devicePixelRatio: devicePixelRatio,
		logger:           logger,
	}
}

// ApplySettings implements perf.SettingsApplier
func (a *Adapter) ApplySettings(settings perf.Settings) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.settings = settings
	a.shadowsEnabled = settings.ShadowQuality != perf.ShadowsOff
	a.applied++

	a.logger.Info("Render settings applied",
		utils.Int("target_fps", settings.TargetFPS),
		utils.String("shadows", settings.ShadowQuality.String()),
		utils.Float64("pixel_ratio", a.effectivePixelRatioLocked()),
	)
}

// EffectivePixelRatio is the host ratio clamped by the level's cap
func (a *Adapter) EffectivePixelRatio() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.effectivePixelRatioLocked()
}

func (a *Adapter) effectivePixelRatioLocked() float64 {
	ratioCap := a.settings.PixelRatioCap
	if ratioCap <= 0 {
		ratioCap = 1.5
	}
	if a.devicePixelRatio < ratioCap {
		return a.devicePixelRatio
	}
	return ratioCap
}

// ShadowsEnabled reports whether the current settings render shadows
func (a *Adapter) ShadowsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.shadowsEnabled
}

// Settings returns the last applied settings
func (a *Adapter) Settings() perf.Settings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings
}

// Stats returns observability counters for the host page
func (a *Adapter) Stats() map[string]interface{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return map[string]interface{}{
		"applied_count":   a.applied,
		"target_fps":      a.settings.TargetFPS,
		"shadows":         a.settings.ShadowQuality.String(),
		"pixel_ratio":     a.effectivePixelRatioLocked(),
		"pixel_ratio_cap": a.settings.PixelRatioCap,
	}
}
