package voice

import "math"

// Frame constants for the PCM stream handed to the detector
const (
	SampleRate    = 16000
	FrameDuration = 30 // ms
	Channels      = 1
)

// DetectorConfig tunes voice activity detection
type DetectorConfig struct {
	// EnergyThreshold is the RMS level that counts as speech
	EnergyThreshold float64
	// HangoverFrames keeps speech active across short pauses
	HangoverFrames int
}

func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		EnergyThreshold: 0.02,
		HangoverFrames:  8,
	}
}

// Detector is a simple energy-threshold VAD with hangover. It sees
// normalized mono PCM frames ([-1,1] float32) and reports speech
// onsets and offsets.
type Detector struct {
	cfg    DetectorConfig
	active bool
	quiet  int
}

func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.EnergyThreshold <= 0 {
		cfg.EnergyThreshold = DefaultDetectorConfig().EnergyThreshold
	}
	if cfg.HangoverFrames <= 0 {
		cfg.HangoverFrames = DefaultDetectorConfig().HangoverFrames
	}
	return &Detector{cfg: cfg}
}

// Process ingests one frame. onset/offset are edge signals: onset is
// true only on the silence-to-speech transition, offset only when the
// hangover expires.
func (d *Detector) Process(frame []float32) (speaking, onset, offset bool, energy float64) {
	energy = rms(frame)
	loud := energy >= d.cfg.EnergyThreshold

	switch {
	case loud && !d.active:
		d.active = true
		d.quiet = 0
		return true, true, false, energy
	case loud:
		d.quiet = 0
		return true, false, false, energy
	case d.active:
		d.quiet++
		if d.quiet >= d.cfg.HangoverFrames {
			d.active = false
			d.quiet = 0
			return false, false, true, energy
		}
		return true, false, false, energy
	default:
		return false, false, false, energy
	}
}

// Active reports whether speech is currently detected
func (d *Detector) Active() bool {
	return d.active
}

func rms(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}
