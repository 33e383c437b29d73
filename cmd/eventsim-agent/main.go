// Command eventsim-agent demonstrates external-suspension mode: the
// dispatch loop blocks whenever the queue empties and resumes only when a
// concurrent goroutine calls Schedule, rather than exiting. It exposes
// /metrics so a scrape can watch evtsim_suspended flip between 0 and 1 as
// load arrives in bursts.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/signalsfoundry/eventsim/evt"
	"github.com/signalsfoundry/eventsim/internal/logging"
	"github.com/signalsfoundry/eventsim/internal/observability"
	"github.com/signalsfoundry/eventsim/vrtime"
)

func main() {
	vrtime.ConfigFromEnv().Apply()

	metricsAddr := flag.String("metrics-addr", ":9091", "address to serve /metrics on")
	burstInterval := flag.Duration("burst-interval", 3*time.Second, "real time between demo event bursts")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics, err := observability.NewEngineCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to register metrics", logging.String("error", err.Error()))
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: *metricsAddr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(ctx, "metrics server stopped", logging.String("error", err.Error()))
		}
	}()
	defer server.Close()

	manager := evt.NewManager(
		evt.WithLogger(log),
		evt.WithMetrics(metrics),
		evt.WithExternal(true),
	)

	go feedBursts(ctx, manager, log, *burstInterval)

	// runLimitSeconds bounds a single Run window far beyond any realistic
	// agent lifetime while staying well under the int64 tick overflow point
	// (TicksPerSecond defaults to 1e10, so 1e8 seconds * 1e10 = 1e18, clear
	// of math.MaxInt64 ~= 9.22e18).
	const runLimitSeconds = 1e8

	log.Info(ctx, "starting external-suspension dispatch loop", logging.String("metrics_addr", *metricsAddr))
	if err := manager.Run(ctx, runLimitSeconds); err != nil && err != context.Canceled {
		log.Error(ctx, "dispatch loop exited with error", logging.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info(ctx, "agent stopped")
}

// feedBursts schedules a handful of events every burstInterval, simulating
// an external producer driving the otherwise-idle engine. Between bursts
// the engine's dispatch loop is fully suspended (evtsim_suspended == 1).
func feedBursts(ctx context.Context, manager *evt.Manager, log logging.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	burst := 0
	for {
		select {
		case <-ctx.Done():
			manager.Stop()
			return
		case <-ticker.C:
			burst++
			for i := 0; i < 3; i++ {
				i := i
				offset := vrtime.FromSecondsPri(float64(i)*0.01, 0)
				manager.Schedule(burst, i, func(m *evt.Manager, evtContext any, data any) {
					fmt.Printf("burst %d: dispatched event %d at %s\n", evtContext.(int), data.(int), m.CurrentTime())
				}, offset)
			}
			log.Debug(ctx, "fed burst", logging.Int("burst", burst))
		}
	}
}
