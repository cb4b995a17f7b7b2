// Command server runs the event->execution pipeline: sources feed the
// dispatcher, which evaluates triggers and executes callbacks in the
// sandbox under threat-detector supervision.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/r3e-network/faas-trigger-engine/internal/common/config"
	"github.com/r3e-network/faas-trigger-engine/internal/common/logger"
	"github.com/r3e-network/faas-trigger-engine/internal/dispatcher"
	"github.com/r3e-network/faas-trigger-engine/internal/evaluator"
	"github.com/r3e-network/faas-trigger-engine/internal/eventsource"
	"github.com/r3e-network/faas-trigger-engine/internal/sandbox"
	"github.com/r3e-network/faas-trigger-engine/internal/storage"
	"github.com/r3e-network/faas-trigger-engine/internal/threatdetector"
	"github.com/r3e-network/faas-trigger-engine/internal/triggerregistry"
	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

const (
	exitOK             = 0
	exitConfigError    = 1
	exitStartupFailure = 2
	exitRuntimeFailure = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	var configPath string
	var metricsAddr string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.StringVar(&metricsAddr, "metrics-addr", ":9100", "prometheus metrics listen address")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitConfigError
	}

	log, err := logger.New(cfg.Logging, cfg.General.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failure: %v\n", err)
		return exitStartupFailure
	}
	defer log.Sync() //nolint:errcheck

	store := storage.NewMemoryStore()
	if cfg.Storage.Type != "memory" {
		log.Warn("persistent storage backend not wired in this build, using memory store",
			zap.String("requested", cfg.Storage.Type))
	}

	registry := triggerregistry.New(store)

	ev, err := evaluator.NewStandardEvaluator(log.Named("evaluator"), 4096)
	if err != nil {
		log.Error("failed to build evaluator", zap.Error(err))
		return exitStartupFailure
	}

	detector := threatdetector.New(threatdetector.DefaultConfig(), log.Named("threats"))
	detector.OnThreat(func(e eventmodel.ThreatEvent) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.AppendThreatEvent(ctx, e); err != nil {
			log.Error("failed to persist threat event", zap.Error(err))
		}
	})

	sandboxCfg := sandbox.Config{
		MaxMemoryMB:        cfg.Runtime.JS.MaxMemoryMB,
		MaxExecutionTimeMs: cfg.Runtime.JS.MaxExecutionTimeMs,
		EnableJIT:          cfg.Runtime.JS.EnableJIT,
		EnableNetwork:      cfg.Runtime.Sandbox.EnableNetwork,
		EnableFilesystem:   cfg.Runtime.Sandbox.EnableFilesystem,
		EnableEnvironment:  cfg.Runtime.Sandbox.EnableEnvironment,
		AllowedDomains:     cfg.Runtime.Sandbox.AllowedDomains,
		OnNetworkViolation: func(userID, functionID, url string) {
			detector.RecordNetworkAccessViolation(userID, functionID, url, time.Now())
		},
	}
	box := sandbox.New(sandboxCfg, log.Named("sandbox"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sources, httpSrc := buildSources(cfg, log)
	if len(sources) == 0 {
		log.Error("no event sources enabled")
		return exitStartupFailure
	}

	pump := eventsource.NewPump(log.Named("pump"), sources...)
	pump.Start(ctx)

	registerer := prometheus.DefaultRegisterer
	disp := dispatcher.New(dispatcher.Config{}, registry, ev, store, store, box, detector,
		log.Named("dispatcher"), registerer)

	errCh := make(chan error, 2)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Info("metrics listener starting", zap.String("addr", metricsAddr))
		if err := http.ListenAndServe(metricsAddr, mux); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if httpSrc != nil {
		go func() {
			log.Info("webhook listener starting", zap.String("addr", cfg.Sources.HTTP.ListenAddr))
			if err := http.ListenAndServe(cfg.Sources.HTTP.ListenAddr, httpSrc.Router()); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		disp.Run(ctx, pump.Events())
		close(done)
	}()

	log.Info("pipeline started",
		zap.String("environment", cfg.General.Environment),
		zap.Int("sources", len(sources)))

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		<-done
		return exitOK
	case err := <-errCh:
		log.Error("unrecoverable runtime failure", zap.Error(err))
		stop()
		<-done
		return exitRuntimeFailure
	}
}

func buildSources(cfg *config.Config, log *zap.Logger) ([]eventsource.Source, *eventsource.HTTPSource) {
	var sources []eventsource.Source

	if cfg.Sources.Neo.Enabled {
		sources = append(sources, eventsource.NewNeoSource(eventsource.Config{
			EndpointURL:  cfg.Sources.Neo.EndpointURL,
			PollInterval: cfg.Sources.Neo.PollInterval,
		}, log.Named("neo")))
	}
	if cfg.Sources.Ethereum.Enabled {
		sources = append(sources, eventsource.NewEthereumSource(eventsource.Config{
			EndpointURL:  cfg.Sources.Ethereum.EndpointURL,
			PollInterval: cfg.Sources.Ethereum.PollInterval,
		}, log.Named("ethereum")))
	}
	if cfg.Sources.Time.Enabled {
		sources = append(sources, eventsource.NewTimeSource(eventsource.Config{
			PollInterval: cfg.Sources.Time.PollInterval,
		}, log.Named("time")))
	}
	if cfg.Sources.Market.Enabled {
		sources = append(sources, eventsource.NewMarketSource(eventsource.Config{
			EndpointURL:  cfg.Sources.Market.EndpointURL,
			PollInterval: cfg.Sources.Market.PollInterval,
		}, cfg.Sources.Market.AssetPairs, log.Named("market")))
	}

	var httpSrc *eventsource.HTTPSource
	if cfg.Sources.HTTP.Enabled {
		var guard *eventsource.Guard
		if expr := cfg.Sources.HTTP.GuardExpression; expr != "" {
			g, err := eventsource.CompileGuard(expr)
			if err != nil {
				log.Warn("invalid webhook guard expression, ignoring", zap.Error(err))
			} else {
				guard = g
			}
		}
		httpSrc = eventsource.NewHTTPSource("webhook", eventsource.Config{}, guard,
			cfg.Sources.HTTP.RequestsPerSecond, cfg.Sources.HTTP.Burst, log.Named("webhook"))
		sources = append(sources, httpSrc)
	}

	return sources, httpSrc
}
