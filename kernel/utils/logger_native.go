//go:build !js || !wasm

package utils

// mirrorToConsole is a no-op outside the browser; stdout is the console.
func mirrorToConsole(level LogLevel, line string) {}
