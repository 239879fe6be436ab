// Command forecaster runs the epicast forecast engine.
//
// The forecaster collects a weekly incidence series, fits the epidemic
// forecast model with MCMC, turns the posterior-predictive ensemble into
// quantile bands and stores the result as a snapshot. Snapshots are served
// over HTTP and, when Kafka brokers are configured, announced as events.
//
// HTTP API (port 8081 by default):
//   - GET /forecast/current?series=<name> - latest snapshot of a series
//   - GET /forecast/runs/{id}             - snapshot of one run
//   - GET /healthz                        - health check
//   - GET /metrics                        - Prometheus metrics
//
// Usage:
//
//	forecaster -series=flu -source=simulate -observed-weeks=10
//	forecaster -series=flu -source=file -interval=24h
//
// Environment variables mirror the flags (SERIES, SOURCE, SAMPLER, WARMUP,
// SAMPLES, CHAINS, SEED, STORAGE, REDIS_ADDR, KAFKA_BROKERS, INTERVAL, ...).
// SOURCE_* variables configure the incidence source, e.g. SOURCE_PATH for
// the file source or SOURCE_URL and SOURCE_VALUE_PATH for the http source.
// -tls-enabled with -tls-cert-file and -tls-key-file serves HTTP and gRPC
// over TLS; adding -tls-ca-file requires client certificates.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/epicast/epicast/cmd/forecaster/config"
	"github.com/epicast/epicast/cmd/forecaster/logger"
	"github.com/epicast/epicast/cmd/forecaster/metrics"
	"github.com/epicast/epicast/cmd/forecaster/models"
	"github.com/epicast/epicast/cmd/forecaster/router"
	"github.com/epicast/epicast/cmd/forecaster/store"
	"github.com/epicast/epicast/pkg/adapters"
	"github.com/epicast/epicast/pkg/httpx"
	"github.com/epicast/epicast/pkg/inference"
	"github.com/epicast/epicast/pkg/publish"
	"github.com/epicast/epicast/pkg/storage"
	epicasttls "github.com/epicast/epicast/pkg/tls"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "forecaster: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log := logger.New(cfg)
	slog.SetDefault(log)

	log.Info("starting epicast forecaster",
		"version", version,
		"series", cfg.Series,
		"source", cfg.Source,
		"sampler", cfg.Sampler,
	)

	adapter, err := adapters.New(cfg.Source, cfg.SourceConfig)
	if err != nil {
		log.Error("failed to create source", "error", err)
		return err
	}

	sampler, err := models.NewSampler(cfg, log)
	if err != nil {
		log.Error("failed to create sampler", "error", err)
		return err
	}

	st, err := store.New(cfg, log)
	if err != nil {
		log.Error("failed to open storage", "error", err)
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("failed to close store", "error", err)
		}
	}()

	var pub publish.Publisher = publish.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := publish.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("failed to create kafka publisher", "error", err)
			return err
		}
		log.Info("publishing forecast events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		pub = kp
	}
	defer func() {
		if err := pub.Close(); err != nil {
			log.Error("failed to close publisher", "error", err)
		}
	}()

	f := New(
		cfg.Series,
		adapter,
		st,
		pub,
		Model{
			Population:       cfg.Population,
			InfectiousPeriod: cfg.InfectiousPeriod,
			Weeks:            cfg.Weeks,
			FeatureColumns:   cfg.FeatureColumns,
		},
		inference.Options{
			NumWarmup:    cfg.Warmup,
			NumSamples:   cfg.Samples,
			NumChains:    cfg.Chains,
			Seed:         cfg.Seed,
			Timeout:      cfg.Timeout,
			MaxTreeDepth: cfg.MaxTreeDepth,
			Sampler:      sampler,
		},
		cfg.Levels,
		log,
		metrics.New(cfg.Series, nil),
	)

	var serverTLS *tls.Config
	if cfg.TLS.Enabled {
		serverTLS, err = epicasttls.NewServerConfig(cfg.TLS)
		if err != nil {
			log.Error("invalid TLS configuration", "error", err)
			return err
		}
		log.Info("TLS enabled", "mutual", cfg.TLS.CAFile != "")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var gh *grpcHealth
	if cfg.GRPCListen != "" {
		lis, err := net.Listen("tcp", cfg.GRPCListen)
		if err != nil {
			log.Error("failed to listen", "address", cfg.GRPCListen, "error", err)
			return err
		}
		gh = newGRPCHealth(log, serverTLS)
		f.onStored = func(storage.Snapshot) { gh.Ready(true) }
		go func() {
			if err := gh.Serve(lis); err != nil {
				log.Error("grpc server failed", "error", err)
			}
		}()
		defer gh.Stop()
	}

	serverErr := make(chan error, 1)
	var httpServer *httpx.Server
	if cfg.Serve {
		staleAfter := 2 * cfg.Interval // stale once two runs were missed
		httpServer = httpx.NewServer(cfg.Listen, router.SetupRoutes(st, staleAfter, log), log)
		if serverTLS != nil {
			httpServer.SetTLSConfig(serverTLS)
		}
		go func() {
			if serverTLS != nil {
				serverErr <- httpServer.StartTLS()
				return
			}
			serverErr <- httpServer.Start()
		}()
		defer func() {
			if err := httpServer.Stop(10 * time.Second); err != nil {
				log.Error("server shutdown failed", "error", err)
			}
		}()
	}

	if cfg.Interval <= 0 {
		if err := f.Run(ctx, 0); err != nil {
			log.Error("forecast failed", "error", err)
			return err
		}
		if !cfg.Serve {
			return nil
		}
	} else {
		go func() {
			if err := f.Run(ctx, cfg.Interval); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("forecast loop failed", "error", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			log.Error("server failed", "error", err)
			return err
		}
	}

	log.Info("shutting down")
	return nil
}
