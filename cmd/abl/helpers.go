package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/abl/internal/logging"
	"github.com/cognicore/abl/pkg/abl"
	"github.com/cognicore/abl/pkg/abl/config"
	"github.com/cognicore/abl/pkg/abl/symbol"
)

// openEngine loads configuration, applies flag overrides and builds the
// engine. The returned func releases everything it started.
func openEngine(cmd *cobra.Command, rebuild bool) (*abl.Engine, *zap.Logger, func(), error) {
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if rootFlags.logLevel != "" {
		cfg.Logging.Level = rootFlags.logLevel
	}
	if rootFlags.metricsAddr != "" {
		cfg.Metrics.Addr = rootFlags.metricsAddr
	}

	log, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, nil, nil, err
	}

	reg := prometheus.NewRegistry()
	stopMetrics := serveMetrics(cfg.Metrics.Addr, reg, log)

	eng, err := abl.New(cmd.Context(), abl.Options{
		Config:     cfg,
		Registerer: reg,
		Logger:     log,
		Rebuild:    rebuild,
	})
	if err != nil {
		stopMetrics()
		return nil, nil, nil, err
	}

	return eng, log, func() {
		if err := eng.Close(); err != nil {
			log.Warn("close engine", zap.Error(err))
		}
		stopMetrics()
		_ = log.Sync()
	}, nil
}

// serveMetrics exposes reg on addr until the returned func is called. An
// empty addr serves nothing.
func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// formatSeq prints symbols space separated so multi-digit sums stay
// readable.
func formatSeq(seq symbol.Sequence) string {
	if seq == nil {
		return "-"
	}
	parts := make([]string, len(seq))
	for i, s := range seq {
		parts[i] = string(s)
	}
	return strings.Join(parts, " ")
}
