package perf

import "github.com/atriumweb/atrium/kernel/runtime"

// Capability score thresholds. Memory and CPU contribute 1-3 points
// each (breaks at 4/8 GB and 4/8 cores), GPU contributes 1-2.
const (
	scoreHighFloor = 7
	scoreLowCeil   = 4
)

// ClassifyDevice maps a device profile onto the starting performance
// level. Pure and total: any profile yields exactly one tier.
func ClassifyDevice(profile runtime.DeviceProfile) Level {
	score := memoryScore(profile.MemoryGB) + cpuScore(profile.CPUCores) + gpuScore(profile.GPUTier)

	switch {
	case score >= scoreHighFloor:
		return LevelHigh
	case score <= scoreLowCeil:
		return LevelLow
	default:
		return LevelMedium
	}
}

func memoryScore(gb float64) int {
	switch {
	case gb >= 8:
		return 3
	case gb >= 4:
		return 2
	default:
		return 1
	}
}

func cpuScore(cores int) int {
	switch {
	case cores >= 8:
		return 3
	case cores >= 4:
		return 2
	default:
		return 1
	}
}

func gpuScore(tier runtime.GPUTier) int {
	// Any hardware-accelerated tier counts as capable
	if tier == runtime.GPUTierLow {
		return 1
	}
	return 2
}
