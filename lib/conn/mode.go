package conn

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Mode decides what happens when an atomic or batch operation is requested on
// a connection whose handler does not allow it.
type Mode uint8

const (
	ModeStrict     Mode = iota // fail before any command executes
	ModeWarn                   // log a warning, then behave like ModePermissive
	ModePermissive             // execute every command individually
)

func (m Mode) String() string {
	switch m {
	case ModeStrict:
		return "strict"
	case ModeWarn:
		return "warn"
	case ModePermissive:
		return "permissive"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(m))
	}
}

// ParseMode parses a mode name. Unknown names yield ModeStrict and an error,
// so callers that ignore the error fail closed.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "":
		return ModeStrict, nil
	case "warn":
		return ModeWarn, nil
	case "permissive":
		return ModePermissive, nil
	default:
		return ModeStrict, fmt.Errorf("unknown fallback mode %q (expected strict, warn or permissive)", s)
	}
}

// Config is the process wide operation mode configuration
type Config struct {
	AtomicFallback Mode
	BatchFallback  Mode
}

func (c Config) modeFor(kind Kind) Mode {
	if kind == KindAtomic {
		return c.AtomicFallback
	}
	return c.BatchFallback
}

var config atomic.Pointer[Config]

// Configure replaces the process wide configuration.
func Configure(c Config) {
	config.Store(&c)
}

// CurrentConfig returns the process wide configuration (strict for both kinds
// if Configure was never called).
func CurrentConfig() Config {
	if c := config.Load(); c != nil {
		return *c
	}
	return Config{}
}
