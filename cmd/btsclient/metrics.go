package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kalutskii/etil-sterahstib/pkg/log"
)

const metricsEndpoint = "/metrics"

// startMetricsServer serves the registry's collectors on addr until the
// returned shutdown func is called.
func startMetricsServer(addr string, registry *prometheus.Registry, logger log.Logger) func() {
	metricsMux := http.NewServeMux()
	metricsMux.Handle(metricsEndpoint, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	metricsServer := &http.Server{
		Addr:              addr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("prometheus metrics available", "listenAddr", addr, "endpoint", metricsEndpoint)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failure", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Error("failed to shut down metrics server", "error", err)
		}
	}
}
