// Command catalogd runs the proxy catalog daemon: it aggregates
// candidates from the configured sources, validates them on a
// schedule, and exposes the scheduler's control surface and catalog
// over HTTP.
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

	"github.com/proxycatalog/catalog/internal/api"
	"github.com/proxycatalog/catalog/internal/config"
	"github.com/proxycatalog/catalog/internal/logging"
	"github.com/proxycatalog/catalog/internal/realip"
	"github.com/proxycatalog/catalog/internal/scheduler"
	"github.com/proxycatalog/catalog/internal/source"
	"github.com/proxycatalog/catalog/internal/telemetry"
	"github.com/proxycatalog/catalog/internal/validator"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Configuration file (default: ~/.config/catalogd/config.yaml)")
		autoStart   = flag.Bool("start", true, "Start the validation scheduler immediately")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("catalogd 0.1.0")
		return
	}

	configPath := *configFile
	if configPath == "" {
		path, _, err := config.EnsureUserConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "catalogd: resolving config path: %v\n", err)
			os.Exit(1)
		}
		configPath = path
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "catalogd: loading config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: os.Stdout,
	})
	logger.ConfigLoaded(configPath)

	metrics := telemetry.NewCollector()
	if err := metrics.StartServer(cfg.MetricsAddr); err != nil {
		logger.Warn("metrics server failed to start", "error", err)
	}

	resolver := realip.Resolve(&http.Client{Timeout: 7 * time.Second})
	if resolver.IP() == "" {
		logger.Warn("real IP resolution failed; anonymity checks will report Unknown (No Real IP)")
	} else {
		logger.Info("resolved real IP", "ip", resolver.IP())
	}

	sched := scheduler.New(scheduler.Config{
		Sources:           defaultSources(cfg),
		IntervalSeconds:   int(cfg.Interval.Seconds()),
		ValidationThreads: cfg.ValidationThreads,
		RealIP:            resolver.IP(),
		Logger:            logger,
		Metrics:           metrics,
		Params: validator.Params{
			Timeout:          cfg.RequestTimeout,
			AnonymityTimeout: cfg.AnonymityTimeout,
			TestURL:          cfg.TestURL,
			AnonymityURL:     cfg.AnonymityURL,
			CheckAnonymity:   cfg.CheckAnonymity,
			UserAgent:        cfg.UserAgent,
		},
	})

	watcher, err := config.NewConfigWatcher(configPath, config.WatcherConfig{
		DebounceDelay:        500 * time.Millisecond,
		ValidateBeforeReload: true,
		OnReload: func(newCfg *config.Config, result *config.ValidationResult) {
			if _, err := sched.SetInterval(int(newCfg.Interval.Seconds())); err != nil {
				logger.Warn("live reload: rejected interval", "error", err)
			}
			if _, err := sched.SetValidationThreads(newCfg.ValidationThreads); err != nil {
				logger.Warn("live reload: rejected validation_threads", "error", err)
			}
			logger.ConfigReloaded(configPath)
		},
		OnError: func(err error) {
			logger.Warn("config watcher error", "error", err)
		},
	})
	if err != nil {
		logger.Warn("config watcher disabled", "error", err)
	} else {
		defer watcher.Stop()
	}

	apiServer := api.NewServer(cfg.APIAddr, sched, logger)
	apiErrCh := make(chan error, 1)
	go func() { apiErrCh <- apiServer.Start() }()

	if *autoStart {
		sched.Start()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-apiErrCh:
		if err != nil {
			logger.Error("control plane failed", "error", err)
		}
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	logger.ShutdownReceived()
	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Stop(ctx); err != nil {
		logger.Warn("control plane shutdown error", "error", err)
	}
	if err := metrics.StopServer(); err != nil {
		logger.Warn("metrics server shutdown error", "error", err)
	}
	logger.ShutdownComplete()
}

func defaultSources(cfg *config.Config) []source.Source {
	return []source.Source{
		source.NewFreeProxyList(cfg.UserAgent),
		source.NewGeoNode(),
		source.NewProxyScrape(),
	}
}
