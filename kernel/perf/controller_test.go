package perf_test

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumweb/atrium/kernel/events"
	"github.com/atriumweb/atrium/kernel/perf"
	"github.com/atriumweb/atrium/kernel/runtime"
	"github.com/atriumweb/atrium/kernel/utils"
)

var (
	highProfile = runtime.DeviceProfile{MemoryGB: 16, CPUCores: 12, GPUTier: runtime.GPUTierHigh, PixelRatio: 2}
	midProfile  = runtime.DeviceProfile{MemoryGB: 4, CPUCores: 4, GPUTier: runtime.GPUTierLow, PixelRatio: 1}
	lowProfile  = runtime.DeviceProfile{MemoryGB: 2, CPUCores: 2, GPUTier: runtime.GPUTierLow, PixelRatio: 1}
)

func quietLogger() *utils.Logger {
	return utils.NewLogger(utils.LoggerConfig{Level: utils.FATAL, Component: "test", Output: io.Discard})
}

type recordingConsumer struct {
	mu     sync.Mutex
	levels []perf.Level
}

func (r *recordingConsumer) SetQualityLevel(level perf.Level) {
	r.mu.Lock()
	r.levels = append(r.levels, level)
	r.mu.Unlock()
}

func (r *recordingConsumer) seen() []perf.Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]perf.Level, len(r.levels))
	copy(out, r.levels)
	return out
}

type panickyConsumer struct{}

func (panickyConsumer) SetQualityLevel(perf.Level) { panic("render context lost") }

func newController(t *testing.T, profile runtime.DeviceProfile, cfg perf.Config) *perf.Controller {
	t.Helper()
	c := perf.NewController(profile, nil, events.NewBus(quietLogger()), cfg, quietLogger())
	t.Cleanup(c.Close)
	return c
}

func TestController_InitialLevelFromProfile(t *testing.T) {
	assert.Equal(t, perf.LevelHigh, newController(t, highProfile, perf.Config{}).Level())
	assert.Equal(t, perf.LevelMedium, newController(t, midProfile, perf.Config{}).Level())
	assert.Equal(t, perf.LevelLow, newController(t, lowProfile, perf.Config{}).Level())
}

func TestController_PinnedLevelOverridesClassification(t *testing.T) {
	pinned := perf.LevelLow
	c := newController(t, highProfile, perf.Config{PinnedLevel: &pinned})
	assert.Equal(t, perf.LevelLow, c.Level())
}

func TestController_SetLevelRejectsInvalid(t *testing.T) {
	c := newController(t, midProfile, perf.Config{})
	err := c.SetLevel(perf.Level(42))
	require.ErrorIs(t, err, perf.ErrInvalidLevel)
	assert.Equal(t, perf.LevelMedium, c.Level(), "rejected set must not mutate state")
}

func TestController_SetLevelIdempotent(t *testing.T) {
	c := newController(t, midProfile, perf.Config{})
	rec := &recordingConsumer{}
	c.Register(rec)

	require.NoError(t, c.SetLevel(perf.LevelHigh))
	require.NoError(t, c.SetLevel(perf.LevelHigh))

	assert.Equal(t, []perf.Level{perf.LevelHigh}, rec.seen(),
		"same level twice must produce exactly one notification round")
}

func TestController_NotificationOrderAndIsolation(t *testing.T) {
	c := newController(t, midProfile, perf.Config{})
	first := &recordingConsumer{}
	second := &recordingConsumer{}
	c.Register(first)
	c.Register(panickyConsumer{})
	c.Register(second)

	require.NoError(t, c.SetLevel(perf.LevelLow))

	assert.Equal(t, []perf.Level{perf.LevelLow}, first.seen())
	assert.Equal(t, []perf.Level{perf.LevelLow}, second.seen(),
		"a panicking consumer must not block the rest")
}

func TestController_StepDownOneTierPerReport(t *testing.T) {
	c := newController(t, highProfile, perf.Config{})

	c.ReportLowPerformance()
	assert.Equal(t, perf.LevelMedium, c.Level(), "high steps to medium, never skips")

	c.ReportLowPerformance()
	assert.Equal(t, perf.LevelLow, c.Level())

	c.ReportLowPerformance()
	assert.Equal(t, perf.LevelLow, c.Level(), "low is the floor")
}

func TestController_UpgradeCommitsAfterQuietWindow(t *testing.T) {
	c := newController(t, midProfile, perf.Config{UpgradeQuietWindow: 60 * time.Millisecond})

	c.ReportGoodPerformance()
	assert.Equal(t, perf.LevelMedium, c.Level(), "upgrade must not apply immediately")

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, perf.LevelHigh, c.Level())
}

func TestController_LowReportCancelsPendingUpgrade(t *testing.T) {
	c := newController(t, midProfile, perf.Config{UpgradeQuietWindow: 60 * time.Millisecond})

	c.ReportGoodPerformance()
	c.ReportLowPerformance()
	assert.Equal(t, perf.LevelLow, c.Level())

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, perf.LevelLow, c.Level(),
		"cancelled upgrade must never fire")
}

func TestController_ExplicitSetCancelsPendingUpgrade(t *testing.T) {
	c := newController(t, midProfile, perf.Config{UpgradeQuietWindow: 60 * time.Millisecond})

	c.ReportGoodPerformance()
	require.NoError(t, c.SetLevel(perf.LevelLow))

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, perf.LevelLow, c.Level(), "later truth wins over the pending upgrade")
}

func TestController_BoostForcesHighAndReverts(t *testing.T) {
	c := newController(t, lowProfile, perf.Config{})

	c.BoostTemporarily(80 * time.Millisecond)
	assert.Equal(t, perf.LevelHigh, c.Level())

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, perf.LevelLow, c.Level(), "boost reverts to the pre-boost tier")
}

func TestController_ExplicitSetSurvivesBoostExpiry(t *testing.T) {
	c := newController(t, lowProfile, perf.Config{})

	c.BoostTemporarily(80 * time.Millisecond)
	require.NoError(t, c.SetLevel(perf.LevelMedium))

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, perf.LevelMedium, c.Level(),
		"a deliberate change during the boost must not be silently reverted")
}

func TestController_BoostAtHighIsNoop(t *testing.T) {
	c := newController(t, highProfile, perf.Config{})
	rec := &recordingConsumer{}
	c.Register(rec)

	c.BoostTemporarily(50 * time.Millisecond)
	time.Sleep(120 * time.Millisecond)

	assert.Equal(t, perf.LevelHigh, c.Level())
	assert.Empty(t, rec.seen(), "no transitions expected")
}

func TestController_BoostEvents(t *testing.T) {
	bus := events.NewBus(quietLogger())
	c := perf.NewController(lowProfile, nil, bus, perf.Config{}, quietLogger())
	defer c.Close()

	var mu sync.Mutex
	var seen []events.Type
	bus.Subscribe(func(evt events.Event) {
		mu.Lock()
		seen = append(seen, evt.Type)
		mu.Unlock()
	}, "perf.boost_started", "perf.boost_ended")

	c.BoostTemporarily(60 * time.Millisecond)
	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, events.BoostStarted, seen[0])
	assert.Equal(t, events.BoostEnded, seen[1])
}

func TestController_VREntryAndExit(t *testing.T) {
	c := newController(t, midProfile, perf.Config{})

	// Drop below baseline first so the exit restore is observable
	c.ReportLowPerformance()
	require.Equal(t, perf.LevelLow, c.Level())

	c.OnVREnter()
	assert.Equal(t, perf.LevelHigh, c.Level())

	c.OnVRExit()
	assert.Equal(t, perf.LevelMedium, c.Level(),
		"VR exit restores the classified baseline, not the pre-VR level")
}

func TestController_ConcurrentReportsStayValid(t *testing.T) {
	c := newController(t, highProfile, perf.Config{UpgradeQuietWindow: 10 * time.Millisecond})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if (n+j)%2 == 0 {
					c.ReportLowPerformance()
				} else {
					c.ReportGoodPerformance()
				}
			}
		}(i)
	}
	wg.Wait()

	assert.True(t, c.Level().Valid(), "level must stay inside the enum under contention")
}
