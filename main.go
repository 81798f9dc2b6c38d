// ABOUTME: Entry point for the spare-capacity maintainer daemon
// ABOUTME: Wires a SnapshotProvider, a Deployer and a Prometheus MetricSink into a ticking Maintainer

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/markalston/spare-capacity/config"
	"github.com/markalston/spare-capacity/deploy"
	"github.com/markalston/spare-capacity/logger"
	"github.com/markalston/spare-capacity/maintain"
	"github.com/markalston/spare-capacity/metrics"
	"github.com/markalston/spare-capacity/snapshot"
)

func main() {
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("starting spare capacity maintainer", "snapshot_source", cfg.SnapshotSource, "tick_interval", cfg.TickInterval)

	provider, err := buildProvider(cfg)
	if err != nil {
		slog.Error("failed to build snapshot provider", "error", err)
		os.Exit(1)
	}
	cached := snapshot.NewCached(provider, cfg.SnapshotTTL)

	deployer := deploy.NewHTTPDeployer(cfg.DeployerURL, cfg.DeployerTimeout)

	sink := metrics.New(prometheus.DefaultRegisterer)

	m := maintain.New(cached, deployer, sink, nil, maintain.Config{
		TickInterval:          cfg.TickInterval,
		MaxIterations:         cfg.MaxIterations,
		MaxEvictionSubsetSize: cfg.MaxEvictionSubsetSize,
		MaxConsideredNodes:    cfg.MaxConsideredNodes,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runTickLoop(ctx, m, cfg.TickInterval)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during server shutdown", "error", err)
		}
	}()

	slog.Info("server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// runTickLoop calls Tick once immediately and then on every TickInterval
// until ctx is cancelled. A tick error is logged, not fatal: the next
// tick gets a fresh snapshot and a fresh chance to catch up.
func runTickLoop(ctx context.Context, m *maintain.Maintainer, interval time.Duration) {
	tick := func() {
		if err := m.Tick(ctx); err != nil {
			slog.Error("tick failed", "error", err)
		}
	}

	tick()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}

func buildProvider(cfg *config.Config) (snapshot.Provider, error) {
	switch cfg.SnapshotSource {
	case config.SourceFixture:
		return snapshot.NewFixtureProvider(cfg.FixturePath), nil
	case config.SourceVSphere:
		return snapshot.NewVSphereProvider(snapshot.VSphereConfig{
			Host:       cfg.VSphereHost,
			Username:   cfg.VSphereUsername,
			Password:   cfg.VSpherePassword,
			Datacenter: cfg.VSphereDatacenter,
			Insecure:   cfg.VSphereInsecure,
		}), nil
	case config.SourceCloudFoundry:
		return snapshot.NewCloudFoundryProvider(snapshot.CloudFoundryConfig{
			CFAPIUrl:        cfg.CFAPIUrl,
			CFUsername:      cfg.CFUsername,
			CFPassword:      cfg.CFPassword,
			CFInsecure:      cfg.CFSkipSSLValidation,
			BOSHEnvironment: cfg.BOSHEnvironment,
			BOSHClient:      cfg.BOSHClient,
			BOSHSecret:      cfg.BOSHSecret,
			BOSHDeployment:  cfg.BOSHDeployment,
			BOSHInsecure:    cfg.BOSHSkipSSLValidation,
		}), nil
	default:
		panic("unreachable: config.Load validates SnapshotSource")
	}
}
