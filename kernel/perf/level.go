package perf

import (
	"errors"
	"fmt"
)

// ErrInvalidLevel rejects level values outside the enum. The
// controller guarantees no state change when this is returned.
var ErrInvalidLevel = errors.New("perf: invalid performance level")

// Level is the discrete quality tier shared by every subsystem
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
)

func (l Level) String() string {
	switch l {
	case LevelHigh:
		return "high"
	case LevelMedium:
		return "medium"
	case LevelLow:
		return "low"
	default:
		return "unknown"
	}
}

// Valid reports whether l is one of the three defined tiers
func (l Level) Valid() bool {
	return l >= LevelLow && l <= LevelHigh
}

// ParseLevel converts a wire/config string to a Level
func ParseLevel(s string) (Level, error) {
	switch s {
	case "low":
		return LevelLow, nil
	case "medium":
		return LevelMedium, nil
	case "high":
		return LevelHigh, nil
	default:
		return LevelLow, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
}

// ShadowQuality is the render shadow mode derived from the level
type ShadowQuality int

const (
	ShadowsOff ShadowQuality = iota
	ShadowsLow
	ShadowsFull
)

func (s ShadowQuality) String() string {
	switch s {
	case ShadowsFull:
		return "full"
	case ShadowsLow:
		return "low"
	default:
		return "off"
	}
}

// TargetFPS returns the frame budget for this tier
func (l Level) TargetFPS() int {
	switch l {
	case LevelHigh:
		return 60
	case LevelMedium:
		return 45
	default:
		return 30
	}
}

// MaxEntities returns the visible-entity budget for this tier
func (l Level) MaxEntities() int {
	switch l {
	case LevelHigh:
		return 250
	case LevelMedium:
		return 120
	default:
		return 50
	}
}

// ShadowQuality returns the shadow mode for this tier
func (l Level) ShadowQuality() ShadowQuality {
	switch l {
	case LevelHigh:
		return ShadowsFull
	case LevelMedium:
		return ShadowsLow
	default:
		return ShadowsOff
	}
}

// PixelRatioCap bounds the effective device pixel ratio: 2.0 on high,
// 1.5 on medium and below.
func (l Level) PixelRatioCap() float64 {
	if l == LevelHigh {
		return 2.0
	}
	return 1.5
}

// Settings is the full derived configuration for a level. It is a pure
// function of the level; subsystems read it, never write it.
type Settings struct {
	TargetFPS     int
	MaxEntities   int
	ShadowQuality ShadowQuality
	PixelRatioCap float64
}

// SettingsFor derives the settings table entry for a level
func SettingsFor(level Level) Settings {
	return Settings{
		TargetFPS:     level.TargetFPS(),
		MaxEntities:   level.MaxEntities(),
		ShadowQuality: level.ShadowQuality(),
		PixelRatioCap: level.PixelRatioCap(),
	}
}
