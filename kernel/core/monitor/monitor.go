package monitor

import (
	"math"
	"sync"
	"time"

	"github.com/atriumweb/atrium/kernel/perf"
	"github.com/atriumweb/atrium/kernel/utils"
)

// Reporter is the slice of the performance controller the monitor
// needs: sustained-pressure and sustained-headroom signals.
type Reporter interface {
	ReportLowPerformance()
	ReportGoodPerformance()
}

// Config tunes the frame monitor. The zero value gets defaults.
type Config struct {
	// WindowSize is the number of frames per evaluation window
	WindowSize int
	// PressureRatio: window average below target*ratio reports pressure
	PressureRatio float64
	// HeadroomRatio: window average above target*ratio reports headroom
	HeadroomRatio float64
}

func DefaultConfig() Config {
	return Config{
		WindowSize:    120,
		PressureRatio: 0.85,
		HeadroomRatio: 0.97,
	}
}

// Monitor ingests per-frame timings and converts sustained windows of
// pressure or headroom into controller reports. One report per window
// at most; severity is expressed by consecutive windows, not by bigger
// steps.
type Monitor struct {
	mu sync.Mutex

	cfg       Config
	reporter  Reporter
	targetFPS int

	samples []float64 // fps per frame, current window

	windows        uint64
	pressureEvents uint64
	headroomEvents uint64

	novelty *noveltyScorer
	logger  *utils.Logger
}

func NewMonitor(reporter Reporter, cfg Config, logger *utils.Logger) *Monitor {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultConfig().WindowSize
	}
	if cfg.PressureRatio <= 0 {
		cfg.PressureRatio = DefaultConfig().PressureRatio
	}
	if cfg.HeadroomRatio <= 0 {
		cfg.HeadroomRatio = DefaultConfig().HeadroomRatio
	}
	if logger == nil {
		logger = utils.DefaultLogger("monitor")
	}
	return &Monitor{
		cfg:       cfg,
		reporter:  reporter,
		targetFPS: perf.LevelMedium.TargetFPS(),
		samples:   make([]float64, 0, cfg.WindowSize),
		novelty:   newNoveltyScorer(4),
		logger:    logger,
	}
}

// SetQualityLevel implements perf.QualityAdjustable: the frame budget
// tracks the active level. The in-flight window is discarded so a
// fresh target is never judged against old frames.
func (m *Monitor) SetQualityLevel(level perf.Level) {
	m.mu.Lock()
	m.targetFPS = level.TargetFPS()
	m.samples = m.samples[:0]
	m.mu.Unlock()
}

// RecordFrame ingests one frame delta. Called once per rendered frame.
func (m *Monitor) RecordFrame(dt time.Duration) {
	if dt <= 0 {
		return
	}

	m.mu.Lock()
	m.samples = append(m.samples, 1.0/dt.Seconds())
	if len(m.samples) < m.cfg.WindowSize {
		m.mu.Unlock()
		return
	}

	avg, variance := summarize(m.samples)
	slow := slowFrameRatio(m.samples, float64(m.targetFPS))
	target := float64(m.targetFPS)
	m.samples = m.samples[:0]
	m.windows++

	var report func()
	switch {
	case avg < target*m.cfg.PressureRatio:
		m.pressureEvents++
		report = m.reporter.ReportLowPerformance
	case avg > target*m.cfg.HeadroomRatio:
		m.headroomEvents++
		report = m.reporter.ReportGoodPerformance
	}
	m.mu.Unlock()

	if score, ok := m.novelty.score([]float64{avg / target, variance, slow}); ok && score > noveltyAlertThreshold {
		m.logger.Warn("Anomalous frame pattern",
			utils.Float64("novelty", score),
			utils.Float64("avg_fps", avg),
			utils.Float64("slow_ratio", slow),
		)
	}

	if report != nil {
		report()
	}
}

// Stats returns monitor counters
func (m *Monitor) Stats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]interface{}{
		"windows":         m.windows,
		"pressure_events": m.pressureEvents,
		"headroom_events": m.headroomEvents,
		"target_fps":      m.targetFPS,
	}
}

func summarize(samples []float64) (avg, variance float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	avg = sum / float64(len(samples))

	var sq float64
	for _, s := range samples {
		d := s - avg
		sq += d * d
	}
	variance = math.Sqrt(sq / float64(len(samples)))
	return avg, variance
}

func slowFrameRatio(samples []float64, target float64) float64 {
	if len(samples) == 0 || target <= 0 {
		return 0
	}
	slow := 0
	for _, s := range samples {
		if s < target*0.5 {
			slow++
		}
	}
	return float64(slow) / float64(len(samples))
}
