// Command hdds-participant runs one HDDS domain participant as a
// standalone process: it reads its bootstrap configuration from the
// environment (spec.md §6), joins the configured domain, and serves
// Prometheus metrics until it receives a termination signal.
//
// It exists as a thin composition root over pkg/participant — embedders
// are expected to call pkg/participant directly rather than shell out to
// this binary; it is here for local experimentation and container
// deployment, the way the teacher's core/main.go wires its own server
// package together.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hdds-io/hdds/pkg/envconfig"
	"github.com/hdds-io/hdds/pkg/logging"
	"github.com/hdds-io/hdds/pkg/metrics"
	"github.com/hdds-io/hdds/pkg/participant"
)

var log = logging.For("cmd.hdds-participant")

const defaultMetricsAddr = ":9400"

func main() {
	bootstrap, err := envconfig.Load()
	if err != nil {
		log.WithField("error", err).Fatal("invalid environment configuration")
	}

	reporter := metrics.NewReporter()
	p, err := participant.Build(
		participant.WithBootstrap(bootstrap),
		participant.WithMetrics(reporter),
		participant.WithStats(10*time.Second),
	)
	if err != nil {
		log.WithField("error", err).Fatal("failed to build participant")
	}

	metricsAddr := os.Getenv("HDDS_METRICS_ADDR")
	if metricsAddr == "" {
		metricsAddr = defaultMetricsAddr
	}
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: reporter.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithField("error", err).Warn("metrics server stopped")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Start(ctx); err != nil {
		log.WithField("error", err).Fatal("failed to start participant")
	}
	log.WithField("guid", p.GUID().String()).Info("participant started, serving metrics on " + metricsAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.WithField("signal", sig.String()).Info("shutting down")

	cancel()
	if err := p.Stop(); err != nil {
		log.WithField("error", err).Warn("error stopping participant")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
