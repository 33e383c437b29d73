package vrtime

import (
	"os"
	"strconv"
)

// Config governs the process-wide tick rate (see SetTicksPerSecond's
// warning that it is a startup-only knob, never to be touched while any
// EventManager is running).
type Config struct {
	TicksPerSecond int64
}

// ConfigFromEnv pulls tick-rate configuration from EVTSIM_TICKS_PER_SECOND,
// following the same env-var-with-sensible-default shape as
// observability.TracingConfigFromEnv. Unset or unparseable values fall back
// to the package's built-in TicksPerSecond.
func ConfigFromEnv() Config {
	ticksPerSecond := TicksPerSecond
	if raw := os.Getenv("EVTSIM_TICKS_PER_SECOND"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
			ticksPerSecond = parsed
		}
	}
	return Config{TicksPerSecond: ticksPerSecond}
}

// Apply installs the configured tick rate as the process-wide default.
func (c Config) Apply() {
	SetTicksPerSecond(c.TicksPerSecond)
}
