// Package kernel is the composition root of the Atrium client: it
// probes the device, builds the performance controller and wires every
// subsystem to it. Collaborators receive the kernel by reference; there
// is no ambient global instance.
package kernel

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/atriumweb/atrium/kernel/core/api"
	"github.com/atriumweb/atrium/kernel/core/chat"
	"github.com/atriumweb/atrium/kernel/core/monitor"
	"github.com/atriumweb/atrium/kernel/core/scene"
	"github.com/atriumweb/atrium/kernel/core/spatial"
	"github.com/atriumweb/atrium/kernel/core/voice"
	"github.com/atriumweb/atrium/kernel/events"
	"github.com/atriumweb/atrium/kernel/perf"
	"github.com/atriumweb/atrium/kernel/runtime"
	"github.com/atriumweb/atrium/kernel/utils"
)

// State represents the lifecycle state of the kernel
type State int32

const (
	StateUninitialized State = iota
	StateBooting
	StateRunning
	StateStopping
	StateStopped
)

var stateNames = map[State]string{
	StateUninitialized: "UNINITIALIZED",
	StateBooting:       "BOOTING",
	StateRunning:       "RUNNING",
	StateStopping:      "STOPPING",
	StateStopped:       "STOPPED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Config holds kernel configuration
type Config struct {
	APIURL             string
	PinnedLevel        *perf.Level
	UpgradeQuietWindow time.Duration
	VoiceBoost         time.Duration
	EnableVoicePeering bool
	LogLevel           utils.LogLevel
}

// DetectConfig returns defaults suitable for the current host
func DetectConfig() *Config {
	return &Config{
		LogLevel:   utils.INFO,
		VoiceBoost: voice.DefaultConfig().BoostDuration,
	}
}

// Kernel owns the subsystem graph for one client session
type Kernel struct {
	state atomic.Int32

	cfg    *Config
	logger *utils.Logger
	bus    *events.Bus

	profile    runtime.DeviceProfile
	controller *perf.Controller

	scene   *scene.Adapter
	spatial *spatial.Optimizer
	monitor *monitor.Monitor
	chat    *chat.Manager
	api     *api.Client
	voice   *voice.Manager

	shutdown  *utils.GracefulShutdown
	startTime time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an unbooted kernel
func New(cfg *Config) *Kernel {
	if cfg == nil {
		cfg = DetectConfig()
	}

	logger := utils.NewLogger(utils.LoggerConfig{
		Level:     cfg.LogLevel,
		Component: "kernel",
		Colorize:  true,
	})

	ctx, cancel := context.WithCancel(context.Background())

	return &Kernel{
		cfg:      cfg,
		logger:   logger,
		bus:      events.NewBus(logger.Named("events")),
		shutdown: utils.NewGracefulShutdown(5*time.Second, logger.Named("shutdown")),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Boot probes the device and wires the subsystem graph. It never fails
// on probe errors: an unprobeable host boots with the conservative
// profile at level low.
func (k *Kernel) Boot() error {
	if !k.state.CompareAndSwap(int32(StateUninitialized), int32(StateBooting)) {
		return utils.NewError("kernel: boot from invalid state " + k.State().String())
	}
	k.startTime = time.Now()

	profile, err := runtime.NewProfiler().Profile()
	if err != nil {
		k.logger.Warn("Capability probe unavailable, using conservative profile", utils.Err(err))
		profile = runtime.ConservativeProfile()
	}
	k.profile = profile

	k.scene = scene.NewAdapter(profile.PixelRatio, k.logger.Named("scene"))

	k.controller = perf.NewController(profile, k.scene, k.bus, perf.Config{
		PinnedLevel:        k.cfg.PinnedLevel,
		UpgradeQuietWindow: k.cfg.UpgradeQuietWindow,
	}, k.logger.Named("perf"))

	k.api = api.NewClient(api.DefaultConfig(k.cfg.APIURL), k.bus, k.logger.Named("api"))
	k.chat = chat.NewManager(chat.DefaultConfig(), func(msg chat.Message) error {
		return k.api.Send("chat.message", msg)
	}, k.logger.Named("chat"))

	voiceCfg := voice.DefaultConfig()
	if k.cfg.VoiceBoost > 0 {
		voiceCfg.BoostDuration = k.cfg.VoiceBoost
	}
	k.voice = voice.NewManager(voiceCfg, k.controller, k.bus, k.logger.Named("voice"))

	k.monitor = monitor.NewMonitor(k.controller, monitor.DefaultConfig(), k.logger.Named("monitor"))
	k.spatial = spatial.NewOptimizer(k.logger.Named("spatial"))

	// Registration order is notification order
	consumers := []perf.QualityAdjustable{k.spatial, k.monitor, k.chat, k.api, k.voice}
	level := k.controller.Level()
	for _, consumer := range consumers {
		k.controller.Register(consumer)
		consumer.SetQualityLevel(level) // initial sync
	}

	if k.cfg.EnableVoicePeering {
		transport, err := voice.NewTransport(voice.DefaultTransportConfig(), k.logger.Named("voice-transport"))
		if err != nil {
			k.logger.Warn("Voice peering unavailable", utils.Err(err))
		} else {
			k.voice.AttachTransport(transport)
			k.shutdown.Register(transport.Close)
		}
	}

	if k.cfg.APIURL != "" {
		if err := k.api.Connect(k.ctx); err != nil {
			// The kernel runs offline-capable; the breaker will guard
			// later send attempts
			k.logger.Warn("API connect failed", utils.Err(err))
		}
		k.shutdown.Register(k.api.Close)
	}

	k.shutdown.Register(func() error {
		k.controller.Close()
		return nil
	})

	k.state.Store(int32(StateRunning))
	k.logger.Info("Kernel running",
		utils.String("level", level.String()),
		utils.Duration("boot_time", time.Since(k.startTime)),
	)
	return nil
}

// State returns the lifecycle state
func (k *Kernel) State() State {
	return State(k.state.Load())
}

// Controller exposes the performance controller to the host bridge
func (k *Kernel) Controller() *perf.Controller { return k.controller }

// Events exposes the event bus for host subscriptions
func (k *Kernel) Events() *events.Bus { return k.bus }

// Scene exposes the render adapter
func (k *Kernel) Scene() *scene.Adapter { return k.scene }

// Spatial exposes the spatial optimizer
func (k *Kernel) Spatial() *spatial.Optimizer { return k.spatial }

// Chat exposes the chat manager
func (k *Kernel) Chat() *chat.Manager { return k.chat }

// Voice exposes the voice manager
func (k *Kernel) Voice() *voice.Manager { return k.voice }

// API exposes the backend client
func (k *Kernel) API() *api.Client { return k.api }

// RecordFrame forwards a frame delta from the host render loop
func (k *Kernel) RecordFrame(dt time.Duration) {
	if k.State() != StateRunning {
		return
	}
	k.monitor.RecordFrame(dt)
}

// ProcessVoiceFrame forwards a PCM frame from the capture host
func (k *Kernel) ProcessVoiceFrame(frame []float32) {
	if k.State() != StateRunning {
		return
	}
	k.voice.ProcessFrame(frame)
}

// Stats aggregates subsystem counters for the host page
func (k *Kernel) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"state":  k.State().String(),
		"uptime": time.Since(k.startTime).String(),
	}
	if k.State() == StateUninitialized {
		return stats
	}
	stats["level"] = k.controller.Level().String()
	stats["scene"] = k.scene.Stats()
	stats["spatial"] = k.spatial.Stats()
	stats["monitor"] = k.monitor.Stats()
	stats["chat"] = k.chat.Stats()
	stats["api"] = k.api.Stats()
	stats["voice"] = k.voice.Stats()
	return stats
}

// Shutdown stops the kernel and its subsystems
func (k *Kernel) Shutdown() error {
	if !k.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return nil
	}
	defer k.state.Store(int32(StateStopped))

	k.cancel()
	return k.shutdown.Shutdown(context.Background())
}
