//go:build !js || !wasm

// atrium-node is the headless harness: it boots the kernel against the
// native profiler and drives a synthetic frame loop so the adaptive
// behavior can be observed outside a browser.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atriumweb/atrium/kernel"
	"github.com/atriumweb/atrium/kernel/perf"
	"github.com/atriumweb/atrium/kernel/utils"
)

func main() {
	apiURL := flag.String("api", "", "backend websocket URL (optional)")
	pinned := flag.String("level", "", "pin the performance level (low|medium|high)")
	frameHz := flag.Int("fps", 60, "synthetic frame rate")
	flag.Parse()

	cfg := kernel.DetectConfig()
	cfg.APIURL = *apiURL
	if *pinned != "" {
		level, err := perf.ParseLevel(*pinned)
		if err != nil {
			utils.Fatal("Invalid level flag", utils.String("level", *pinned))
		}
		cfg.PinnedLevel = &level
	}

	k := kernel.New(cfg)
	if err := k.Boot(); err != nil {
		utils.Fatal("Boot failed", utils.Err(err))
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	frameInterval := time.Second / time.Duration(*frameHz)
	frames := time.NewTicker(frameInterval)
	defer frames.Stop()
	stats := time.NewTicker(10 * time.Second)
	defer stats.Stop()

	for {
		select {
		case <-frames.C:
			k.RecordFrame(frameInterval)
		case <-stats.C:
			utils.Info("Kernel stats", utils.Any("stats", k.Stats()))
		case <-stop:
			if err := k.Shutdown(); err != nil {
				utils.Error("Shutdown failed", utils.Err(err))
				os.Exit(1)
			}
			return
		}
	}
}
