//go:build js && wasm

// atrium-wasm is the browser entry point. It boots the kernel and
// exports the control surface the host page drives: level overrides,
// performance reports, VR transitions, frame and voice ingestion.
package main

import (
	"sync/atomic"
	"syscall/js"
	"time"

	"github.com/atriumweb/atrium/kernel"
	"github.com/atriumweb/atrium/kernel/perf"
)

func main() {
	k := kernel.New(kernel.DetectConfig())

	atrium := js.Global().Get("Object").New()

	atrium.Set("setLevel", js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		if len(args) < 1 {
			return "missing level"
		}
		level, err := perf.ParseLevel(args[0].String())
		if err != nil {
			return err.Error()
		}
		if err := k.Controller().SetLevel(level); err != nil {
			return err.Error()
		}
		return nil
	}))

	atrium.Set("getLevel", js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		return k.Controller().Level().String()
	}))

	atrium.Set("reportLowPerformance", js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		k.Controller().ReportLowPerformance()
		return nil
	}))

	atrium.Set("reportGoodPerformance", js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		k.Controller().ReportGoodPerformance()
		return nil
	}))

	atrium.Set("boost", js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		ms := 4000
		if len(args) > 0 {
			ms = args[0].Int()
		}
		k.Controller().BoostTemporarily(time.Duration(ms) * time.Millisecond)
		return nil
	}))

	atrium.Set("vrEnter", js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		k.Controller().OnVREnter()
		return nil
	}))

	atrium.Set("vrExit", js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		k.Controller().OnVRExit()
		return nil
	}))

	// Hidden tabs get throttled timers; their frame deltas would read as
	// sustained pressure, so ingestion is gated on visibility.
	var hidden atomic.Bool

	atrium.Set("frame", js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		if len(args) < 1 || hidden.Load() {
			return nil
		}
		dtMs := args[0].Float()
		k.RecordFrame(time.Duration(dtMs * float64(time.Millisecond)))
		return nil
	}))

	atrium.Set("voiceFrame", js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		if len(args) < 1 {
			return nil
		}
		src := args[0]
		frame := make([]float32, src.Length())
		for i := range frame {
			frame[i] = float32(src.Index(i).Float())
		}
		k.ProcessVoiceFrame(frame)
		return nil
	}))

	atrium.Set("getStats", js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		return js.ValueOf(toJSValue(k.Stats()))
	}))

	atrium.Set("shutdown", js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		k.Shutdown()
		return nil
	}))

	js.Global().Set("atrium", atrium)

	window := js.Global().Get("window")
	if !window.IsUndefined() && !window.IsNull() {
		window.Call("addEventListener", "beforeunload", js.FuncOf(func(this js.Value, args []js.Value) interface{} {
			k.Shutdown()
			return nil
		}))
	}

	document := js.Global().Get("document")
	if !document.IsUndefined() && !document.IsNull() {
		document.Call("addEventListener", "visibilitychange", js.FuncOf(func(this js.Value, args []js.Value) interface{} {
			hidden.Store(document.Get("hidden").Bool())
			return nil
		}))
	}

	go func() {
		if err := k.Boot(); err != nil {
			js.Global().Get("console").Call("error", err.Error())
		}
	}()

	// Block the main goroutine; the host drives everything from here
	select {}
}

// toJSValue converts stats maps into js.ValueOf-compatible values
func toJSValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[k] = toJSValue(inner)
		}
		return out
	case uint64:
		return int(val)
	case int64:
		return int(val)
	default:
		return val
	}
}
