package voice

import (
	"sync"
	"time"

	"github.com/atriumweb/atrium/kernel/events"
	"github.com/atriumweb/atrium/kernel/perf"
	"github.com/atriumweb/atrium/kernel/utils"
)

// Booster is the slice of the performance controller the voice manager
// needs: speech onsets ask for a transient elevation so encoding and
// spatialization keep up.
type Booster interface {
	BoostTemporarily(duration time.Duration)
}

// Config tunes the voice manager
type Config struct {
	Detector      DetectorConfig
	BoostDuration time.Duration
}

func DefaultConfig() Config {
	return Config{
		Detector:      DefaultDetectorConfig(),
		BoostDuration: 4 * time.Second,
	}
}

// Manager runs VAD over the host's PCM frames and signals activity.
// Capture and transcription are external; the manager only observes
// frames and coordinates.
type Manager struct {
	mu sync.Mutex

	cfg      Config
	detector *Detector
	booster  Booster
	bus      *events.Bus

	// On low quality, every other frame is skipped to shed VAD cost
	decimate   bool
	frameCount uint64

	transport *Transport
	logger    *utils.Logger

	onsets uint64
}

func NewManager(cfg Config, booster Booster, bus *events.Bus, logger *utils.Logger) *Manager {
	if cfg.BoostDuration <= 0 {
		cfg.BoostDuration = DefaultConfig().BoostDuration
	}
	if logger == nil {
		logger = utils.DefaultLogger("voice")
	}
	return &Manager{
		cfg:      cfg,
		detector: NewDetector(cfg.Detector),
		booster:  booster,
		bus:      bus,
		logger:   logger,
	}
}

// SetQualityLevel implements perf.QualityAdjustable
func (m *Manager) SetQualityLevel(level perf.Level) {
	m.mu.Lock()
	m.decimate = level == perf.LevelLow
	m.mu.Unlock()
}

// AttachTransport wires the negotiated data channel for voice control
// traffic
func (m *Manager) AttachTransport(t *Transport) {
	m.mu.Lock()
	m.transport = t
	m.mu.Unlock()
}

// ProcessFrame ingests one normalized PCM frame from the capture host.
// A speech onset requests a transient performance boost and publishes
// voice.activity; the offset publishes the closing event.
func (m *Manager) ProcessFrame(frame []float32) {
	m.mu.Lock()

	m.frameCount++
	if m.decimate && m.frameCount%2 == 0 {
		m.mu.Unlock()
		return
	}

	_, onset, offset, energy := m.detector.Process(frame)
	if onset {
		m.onsets++
	}
	booster := m.booster
	boost := m.cfg.BoostDuration
	m.mu.Unlock()

	if onset {
		if booster != nil {
			booster.BoostTemporarily(boost)
		}
		m.publishActivity(true, energy)
		m.notifyTransport(true)
	}
	if offset {
		m.publishActivity(false, energy)
		m.notifyTransport(false)
	}
}

func (m *Manager) publishActivity(speaking bool, energy float64) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(events.Event{
		Type: events.VoiceActivity,
		Voice: &events.VoicePayload{
			Speaking: speaking,
			Energy:   energy,
		},
	})
}

// notifyTransport tells the remote side about activity transitions so
// it can gate decoding
func (m *Manager) notifyTransport(speaking bool) {
	m.mu.Lock()
	t := m.transport
	m.mu.Unlock()

	if t == nil {
		return
	}
	if err := t.SendActivity(speaking); err != nil {
		m.logger.Debug("Voice activity signal dropped", utils.Err(err))
	}
}

// Stats returns voice counters
func (m *Manager) Stats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]interface{}{
		"frames":   m.frameCount,
		"onsets":   m.onsets,
		"speaking": m.detector.Active(),
		"decimate": m.decimate,
	}
}
