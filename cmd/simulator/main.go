// Command simulator runs a small demonstration scenario on the discrete-event
// engine: a handful of events scheduled up front, optionally paced against
// wallclock time (-wallclock or EVTSIM_WALLCLOCK), with Prometheus metrics and OpenTelemetry tracing wired in exactly
// the way the constellation simulator wired its NBI/scheduler observability.
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
	"github.com/signalsfoundry/eventsim/timectrl"
	"github.com/signalsfoundry/eventsim/vrtime"
)

func main() {
	vrtime.ConfigFromEnv().Apply()
	engineCfg := evt.ConfigFromEnv()

	events := flag.Int("events", 10, "number of demo events to schedule")
	intervalSeconds := flag.Float64("interval", 0.5, "virtual-time seconds between each demo event")
	wallclock := flag.Bool("wallclock", engineCfg.Wallclock, "pace dispatch against real time (default from EVTSIM_WALLCLOCK)")
	metricsAddr := flag.String("metrics-addr", ":9090", "address to serve /metrics on, empty to disable")

	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to init tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	metrics, err := observability.NewEngineCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to register metrics", logging.String("error", err.Error()))
		os.Exit(1)
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		server := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn(ctx, "metrics server stopped", logging.String("error", err.Error()))
			}
		}()
		defer server.Close()
		log.Info(ctx, "serving metrics", logging.String("addr", *metricsAddr))
	}

	engineCfg.Wallclock = *wallclock
	var pacer *timectrl.Pacer
	if engineCfg.Wallclock {
		pacer = timectrl.NewPacer(time.Now(), vrtime.Zero())
	}

	opts := append([]evt.ManagerOption{
		evt.WithLogger(log),
		evt.WithMetrics(metrics),
	}, engineCfg.Options(pacer)...)

	manager := evt.NewManager(opts...)

	for i := 0; i < *events; i++ {
		offset := vrtime.FromSeconds(float64(i) * (*intervalSeconds))
		manager.Schedule(nil, i, func(m *evt.Manager, evtContext any, data any) {
			fmt.Printf("[t=%s] dispatched demo event %d\n", m.CurrentTime(), data)
		}, offset)
	}

	limitSeconds := float64(*events) * (*intervalSeconds)

	log.Info(ctx, "starting dispatch loop",
		logging.Int("events", *events),
		logging.String("mode", fmt.Sprintf("wallclock=%v", *wallclock)),
	)

	if err := manager.Run(ctx, limitSeconds); err != nil {
		log.Error(ctx, "dispatch loop exited with error", logging.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info(ctx, "simulation complete", logging.Int64("final_ticks", manager.CurrentTicks()))
}
