//go:build !js || !wasm

package runtime

import stdruntime "runtime"

// Profiler approximates the host capability surface on native builds.
// There is no browser to ask, so memory and GPU are assumed mid-tier;
// the headless harness mostly exercises classification, not probing.
type Profiler struct{}

func NewProfiler() *Profiler {
	return &Profiler{}
}

func (p *Profiler) Profile() (DeviceProfile, error) {
	return DeviceProfile{
		MemoryGB:   8,
		CPUCores:   stdruntime.NumCPU(),
		GPUTier:    GPUTierMid,
		PixelRatio: 1.0,
	}, nil
}
