package evt

import (
	"os"
	"strings"

	"github.com/signalsfoundry/eventsim/timectrl"
)

// Config governs dispatch-loop behavior that callers would otherwise have
// to hardcode or drive off ad hoc flags: whether Run paces against
// wallclock time, and whether it suspends (rather than returns) when the
// queue empties.
type Config struct {
	Wallclock bool
	External  bool
}

// ConfigFromEnv pulls dispatch-loop configuration from EVTSIM_WALLCLOCK and
// EVTSIM_EXTERNAL, following the same env-var shape as
// observability.TracingConfigFromEnv and vrtime.ConfigFromEnv.
func ConfigFromEnv() Config {
	return Config{
		Wallclock: strings.EqualFold(os.Getenv("EVTSIM_WALLCLOCK"), "true"),
		External:  strings.EqualFold(os.Getenv("EVTSIM_EXTERNAL"), "true"),
	}
}

// Options returns the ManagerOptions this configuration implies. Wallclock
// pacing additionally needs a Pacer, supplied by the caller since its clock
// base is scenario-specific; pacer is ignored when Wallclock is false.
func (c Config) Options(pacer *timectrl.Pacer) []ManagerOption {
	opts := []ManagerOption{WithExternal(c.External)}
	if c.Wallclock && pacer != nil {
		opts = append(opts, WithWallclock(pacer))
	}
	return opts
}
