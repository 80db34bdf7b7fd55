//go:build js && wasm

package utils

import "syscall/js"

// mirrorToConsole forwards log lines to the host page's console so they
// survive when stdout is not visible (workers, production pages).
func mirrorToConsole(level LogLevel, line string) {
	console := js.Global().Get("console")
	if console.Type() == js.TypeNull || console.Type() == js.TypeUndefined {
		return
	}
	method := "log"
	switch level {
	case DEBUG:
		method = "debug"
	case INFO:
		method = "info"
	case WARN:
		method = "warn"
	case ERROR, FATAL:
		method = "error"
	}
	console.Call(method, line)
}
