package runtime

import "errors"

// ErrProbeUnavailable indicates the host exposed no usable capability
// surface (no navigator, no graphics context). Callers recover with
// ConservativeProfile.
var ErrProbeUnavailable = errors.New("runtime: capability probe unavailable")

// GPUTier buckets graphics capability into coarse classes
type GPUTier int

const (
	GPUTierLow GPUTier = iota
	GPUTierMid
	GPUTierHigh
)

func (t GPUTier) String() string {
	switch t {
	case GPUTierHigh:
		return "high"
	case GPUTierMid:
		return "mid"
	case GPUTierLow:
		return "low"
	default:
		return "unknown"
	}
}

// DeviceProfile is a static snapshot of host capability, captured once
// at kernel boot and never mutated afterwards.
type DeviceProfile struct {
	MemoryGB   float64 // Reported device memory
	CPUCores   int     // Logical core count
	GPUTier    GPUTier // Coarse graphics class
	PixelRatio float64 // Host devicePixelRatio, 1.0 when unknown
}

// ConservativeProfile is the fallback when probing fails: a low-tier
// device so the kernel starts in its cheapest configuration.
func ConservativeProfile() DeviceProfile {
	return DeviceProfile{
		MemoryGB:   2,
		CPUCores:   2,
		GPUTier:    GPUTierLow,
		PixelRatio: 1.0,
	}
}
