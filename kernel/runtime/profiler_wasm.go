//go:build js && wasm

package runtime

import (
	"syscall/js"

	"github.com/atriumweb/atrium/kernel/utils"
)

// Profiler measures the browser environment via the navigator surface
type Profiler struct{}

func NewProfiler() *Profiler {
	return &Profiler{}
}

// Profile reads device memory, core count and graphics capability.
// Returns ErrProbeUnavailable when the host exposes no navigator at all.
func (p *Profiler) Profile() (DeviceProfile, error) {
	navigator := js.Global().Get("navigator")
	if !navigator.Truthy() {
		return DeviceProfile{}, ErrProbeUnavailable
	}

	profile := DeviceProfile{
		MemoryGB:   4,
		CPUCores:   2,
		GPUTier:    GPUTierLow,
		PixelRatio: 1.0,
	}

	// navigator.deviceMemory is Chrome-only and clamped to 8 by the
	// platform; absent means we keep the 4GB default.
	if mem := navigator.Get("deviceMemory"); mem.Truthy() {
		profile.MemoryGB = mem.Float()
	}
	if cores := navigator.Get("hardwareConcurrency"); cores.Truthy() {
		profile.CPUCores = cores.Int()
	}
	if dpr := js.Global().Get("devicePixelRatio"); dpr.Truthy() {
		profile.PixelRatio = dpr.Float()
	}

	profile.GPUTier = p.detectGPUTier(navigator)

	utils.Info("Profiler: capability probe complete",
		utils.Float64("memory_gb", profile.MemoryGB),
		utils.Int("cpu_cores", profile.CPUCores),
		utils.String("gpu_tier", profile.GPUTier.String()),
	)

	return profile, nil
}

// detectGPUTier classifies graphics capability: WebGPU presence is the
// high signal, a WebGL2 context mid, anything else low.
func (p *Profiler) detectGPUTier(navigator js.Value) GPUTier {
	if gpu := navigator.Get("gpu"); gpu.Truthy() {
		return GPUTierHigh
	}

	document := js.Global().Get("document")
	if !document.Truthy() {
		return GPUTierLow
	}
	canvas := document.Call("createElement", "canvas")
	if ctx := canvas.Call("getContext", "webgl2"); ctx.Truthy() {
		return GPUTierMid
	}
	return GPUTierLow
}
