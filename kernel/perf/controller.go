package perf

import (
	"sync"
	"time"

	"github.com/atriumweb/atrium/kernel/events"
	"github.com/atriumweb/atrium/kernel/runtime"
	"github.com/atriumweb/atrium/kernel/utils"
)

// QualityAdjustable is the capability interface collaborators opt into
// to be told about level changes. Consumers are notified synchronously
// in registration order.
type QualityAdjustable interface {
	SetQualityLevel(level Level)
}

// SettingsApplier receives the derived settings on every level change.
// The scene adapter implements this.
type SettingsApplier interface {
	ApplySettings(settings Settings)
}

// changeCause tags why the level moved, so deferred work can tell its
// own transitions from deliberate ones.
type changeCause int

const (
	causeExplicit changeCause = iota
	causePressure
	causeUpgrade
	causeBoost
	causeRevert
	causeVR
)

// Config tunes the controller. The zero value is usable.
type Config struct {
	// PinnedLevel skips device classification and starts (and returns
	// from VR) at a fixed tier.
	PinnedLevel *Level

	// UpgradeQuietWindow is the debounce window a good-performance
	// report must survive before the upgrade commits. Default 5s.
	UpgradeQuietWindow time.Duration
}

const defaultUpgradeQuietWindow = 5 * time.Second

// transientBoost records a forced elevation so the controller can
// restore the prior tier when it expires.
type transientBoost struct {
	originalLevel Level
	expiresAt     time.Time
}

// Controller owns the current performance level. It derives the
// starting tier from the device profile and adjusts it from two signal
// classes: sustained frame pressure (one tier per report, debounced
// upgrades) and transient activity spikes (bounded boosts to high).
//
// All mutation runs under one mutex so classify, compare and notify are
// atomic with respect to concurrent reports. Consumers are invoked with
// the lock held and must not call back into the controller.
type Controller struct {
	mu sync.Mutex

	cfg      Config
	profile  runtime.DeviceProfile
	level    Level
	settings Settings

	consumers []QualityAdjustable
	applier   SettingsApplier
	bus       *events.Bus
	logger    *utils.Logger

	// changeGen increments on every committed level change; deferred
	// tasks capture it at scheduling time and fire only if untouched.
	changeGen uint64

	upgradeID    uint64
	upgradeTimer *time.Timer

	boost      *transientBoost
	boostTimer *time.Timer
}

// NewController classifies the profile (or honors the pinned override)
// and returns a controller in a valid state. It never fails: callers
// that could not probe the device pass runtime.ConservativeProfile().
func NewController(profile runtime.DeviceProfile, applier SettingsApplier, bus *events.Bus, cfg Config, logger *utils.Logger) *Controller {
	if logger == nil {
		logger = utils.DefaultLogger("perf")
	}
	if cfg.UpgradeQuietWindow <= 0 {
		cfg.UpgradeQuietWindow = defaultUpgradeQuietWindow
	}

	level := ClassifyDevice(profile)
	if cfg.PinnedLevel != nil && cfg.PinnedLevel.Valid() {
		level = *cfg.PinnedLevel
	}

	c := &Controller{
		cfg:      cfg,
		profile:  profile,
		level:    level,
		settings: SettingsFor(level),
		applier:  applier,
		bus:      bus,
		logger:   logger,
	}

	c.logger.Info("Performance controller ready",
		utils.String("level", level.String()),
		utils.Float64("memory_gb", profile.MemoryGB),
		utils.Int("cpu_cores", profile.CPUCores),
		utils.String("gpu_tier", profile.GPUTier.String()),
	)

	if c.applier != nil {
		c.applySettings()
	}
	return c
}

// Register adds a consumer to the notification list. Registration
// order is notification order.
func (c *Controller) Register(consumer QualityAdjustable) {
	if consumer == nil {
		return
	}
	c.mu.Lock()
	c.consumers = append(c.consumers, consumer)
	c.mu.Unlock()
}

// Level returns the current performance level
func (c *Controller) Level() Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// Settings returns the derived settings for the current level
func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Profile returns the immutable device profile captured at boot
func (c *Controller) Profile() runtime.DeviceProfile {
	return c.profile
}

// SetLevel forces the level. Invalid values are rejected with
// ErrInvalidLevel and no state change. Setting the current level is a
// no-op: consumers see exactly one notification round per transition.
func (c *Controller) SetLevel(level Level) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setLevelLocked(level, causeExplicit)
}

// ReportLowPerformance steps the level down exactly one tier and
// cancels any pending upgrade. No-op at low.
func (c *Controller) ReportLowPerformance() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelPendingUpgradeLocked()
	if c.level > LevelLow {
		_ = c.setLevelLocked(c.level-1, causePressure)
	}
}

// ReportGoodPerformance schedules a one-tier upgrade that commits only
// after the quiet window passes with no intervening low report or
// other level change. A newer report supersedes a pending one.
func (c *Controller) ReportGoodPerformance() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.level == LevelHigh {
		return
	}
	c.cancelPendingUpgradeLocked()

	gen := c.changeGen
	c.upgradeID++
	id := c.upgradeID
	c.upgradeTimer = time.AfterFunc(c.cfg.UpgradeQuietWindow, func() {
		c.commitUpgrade(gen, id)
	})

	c.logger.Debug("Upgrade scheduled",
		utils.String("from", c.level.String()),
		utils.Duration("quiet_window", c.cfg.UpgradeQuietWindow),
	)
}

func (c *Controller) commitUpgrade(gen, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id != c.upgradeID {
		return // superseded or cancelled
	}
	c.upgradeTimer = nil
	if gen != c.changeGen {
		return // level moved during the quiet window; later truth wins
	}
	if c.level < LevelHigh {
		_ = c.setLevelLocked(c.level+1, causeUpgrade)
	}
}

func (c *Controller) cancelPendingUpgradeLocked() {
	c.upgradeID++
	if c.upgradeTimer != nil {
		c.upgradeTimer.Stop()
		c.upgradeTimer = nil
	}
}

// BoostTemporarily forces high for the given duration, reverting to
// the prior tier afterwards. A level change during the boost window
// invalidates the reversion: the later change stands. A new boost
// supersedes a pending reversion.
func (c *Controller) BoostTemporarily(duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if duration <= 0 {
		return
	}
	if c.level == LevelHigh && c.boost == nil {
		return // already at the top on our own merits
	}

	original := c.level
	if c.boost != nil {
		// Extending an active boost keeps the pre-boost tier
		original = c.boost.originalLevel
	}
	if c.boostTimer != nil {
		c.boostTimer.Stop()
		c.boostTimer = nil
	}

	_ = c.setLevelLocked(LevelHigh, causeBoost)
	c.boost = &transientBoost{
		originalLevel: original,
		expiresAt:     time.Now().Add(duration),
	}

	gen := c.changeGen
	c.boostTimer = time.AfterFunc(duration, func() {
		c.expireBoost(gen)
	})

	c.publish(events.Event{
		Type: events.BoostStarted,
		Perf: &events.PerfPayload{
			Level:    LevelHigh.String(),
			Previous: original.String(),
			Duration: duration,
		},
	})
}

func (c *Controller) expireBoost(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.boost == nil || gen != c.changeGen {
		return // invalidated by a later change, nothing to revert
	}
	boost := c.boost
	c.boost = nil
	c.boostTimer = nil

	_ = c.setLevelLocked(boost.originalLevel, causeRevert)

	c.publish(events.Event{
		Type: events.BoostEnded,
		Perf: &events.PerfPayload{
			Level:    boost.originalLevel.String(),
			Previous: LevelHigh.String(),
		},
	})
}

// OnVREnter forces high for the duration of the VR session
func (c *Controller) OnVREnter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.setLevelLocked(LevelHigh, causeVR)
}

// OnVRExit restores the capability-appropriate baseline by
// reclassifying the cached profile, not the pre-VR level.
func (c *Controller) OnVRExit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	baseline := ClassifyDevice(c.profile)
	if c.cfg.PinnedLevel != nil && c.cfg.PinnedLevel.Valid() {
		baseline = *c.cfg.PinnedLevel
	}
	_ = c.setLevelLocked(baseline, causeVR)
}

// Close stops outstanding deferred work
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelPendingUpgradeLocked()
	if c.boostTimer != nil {
		c.boostTimer.Stop()
		c.boostTimer = nil
	}
	c.boost = nil
}

// setLevelLocked is the single mutation path for the current level.
// Callers hold c.mu.
func (c *Controller) setLevelLocked(level Level, cause changeCause) error {
	if !level.Valid() {
		return ErrInvalidLevel
	}
	if level == c.level {
		return nil
	}

	previous := c.level
	c.level = level
	c.settings = SettingsFor(level)
	c.changeGen++

	// A deliberate transition kills an active boost: no silent revert
	// over the later truth.
	if c.boost != nil && cause != causeBoost && cause != causeRevert {
		c.boost = nil
		if c.boostTimer != nil {
			c.boostTimer.Stop()
			c.boostTimer = nil
		}
		c.publish(events.Event{
			Type: events.BoostEnded,
			Perf: &events.PerfPayload{
				Level:    level.String(),
				Previous: previous.String(),
			},
		})
	}

	c.logger.Info("Performance level changed",
		utils.String("from", previous.String()),
		utils.String("to", level.String()),
	)

	c.notifyConsumers(level)
	c.applySettings()

	c.publish(events.Event{
		Type: events.LevelChanged,
		Perf: &events.PerfPayload{
			Level:    level.String(),
			Previous: previous.String(),
		},
	})
	return nil
}

// notifyConsumers fans the level out in registration order. A failing
// consumer is logged and skipped; the rest are still notified.
func (c *Controller) notifyConsumers(level Level) {
	for i, consumer := range c.consumers {
		func(idx int, target QualityAdjustable) {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("Quality consumer failed",
						utils.Int("index", idx),
						utils.Any("panic", r),
					)
				}
			}()
			target.SetQualityLevel(level)
		}(i, consumer)
	}
}

func (c *Controller) applySettings() {
	if c.applier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Settings applier failed", utils.Any("panic", r))
		}
	}()
	c.applier.ApplySettings(c.settings)
}

func (c *Controller) publish(evt events.Event) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(evt)
}
