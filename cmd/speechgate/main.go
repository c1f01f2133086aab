package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	sg "github.com/ineyio/speechgate"
	"github.com/ineyio/speechgate/httpapi"
	"github.com/ineyio/speechgate/meter"
	"github.com/ineyio/speechgate/meter/prom"
)

const shutdownTimeout = 10 * time.Second

var errPersistFatal = errors.New("ledger could not be persisted")

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envPath := flag.String("env", ".env", "path to dotenv file (optional)")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("loading env file", "path", *envPath, "error", err)
		os.Exit(1)
	}

	cfg, err := sg.LoadConfig(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("speechgate stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg sg.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	period, err := cfg.Quota.Period()
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg.Ledger)
	if err != nil {
		return err
	}
	defer closeStore()

	// The process must not serve requests with an unknown quota state.
	ledger, err := sg.OpenLedger(ctx, store,
		sg.WithPeriod(period),
		sg.WithThreshold(cfg.Quota.ThresholdSeconds),
	)
	if err != nil {
		return err
	}

	words, err := sg.LoadDictionaryFile(cfg.Dictionary.Path, cfg.Dictionary.Suffix)
	if err != nil {
		return err
	}

	cloud, err := buildEngine(cfg.Cloud)
	if err != nil {
		return err
	}
	local, err := buildEngine(cfg.Local)
	if err != nil {
		return err
	}

	meters := []sg.Meter{meter.NewLogMeter(logger)}
	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		pm, err := prom.New(reg)
		if err != nil {
			return err
		}
		meters = append(meters, pm)
		gatherer = reg
	}
	m := meter.Multi(meters...)

	persistFailed := make(chan error, 1)
	charger := sg.NewCharger(ledger,
		sg.WithChargeWorkers(cfg.Charge.Workers),
		sg.WithChargeQueue(cfg.Charge.QueueSize),
		sg.WithChargeTimeout(cfg.Charge.Timeout),
		sg.WithChargeMeter(m),
		sg.WithChargeLogger(logger),
		sg.WithPersistFailureHandler(func(err error) {
			if !cfg.Ledger.FatalOnPersistFailure {
				return
			}
			select {
			case persistFailed <- err:
			default:
			}
		}),
	)

	dispatcher, err := sg.NewDispatcher(ledger, cloud, local, words,
		sg.WithPolicy(buildPolicy(cfg.Quota.Policy)),
		sg.WithMeter(m),
		sg.WithLogger(logger),
		sg.WithCharger(charger),
		sg.WithEngineTimeouts(cfg.Cloud.Timeout, cfg.Local.Timeout),
		sg.WithMinCharge(cfg.Quota.MinChargeSeconds),
		sg.WithMinConfidence(cfg.Quota.MinConfidence),
		sg.WithLanguages(cfg.Cloud.Language, cfg.Local.Language),
		sg.WithMaxAlternatives(cfg.Cloud.MaxAlternatives),
	)
	if err != nil {
		return err
	}

	api := httpapi.New(dispatcher,
		httpapi.WithDumpDir(cfg.AudioDumpPath),
		httpapi.WithMaxUploadBytes(cfg.MaxUploadBytes),
		httpapi.WithAdminToken(cfg.AdminToken),
		httpapi.WithMetrics(gatherer),
		httpapi.WithLogger(logger),
	)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	snap, backend := dispatcher.Quota()
	logger.Info("starting speechgate",
		"listen_addr", cfg.ListenAddr,
		"ledger_driver", cfg.Ledger.Driver,
		"processed_seconds", snap.ProcessedSeconds,
		"threshold_seconds", snap.Threshold,
		"backend", backend.String(),
		"cloud_engine", cloud.Name(),
		"local_engine", local.Name(),
		"trigger_words", words.Len(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		select {
		case err := <-persistFailed:
			return errors.Join(errPersistFatal, err)
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if cerr := charger.Close(shutdownCtx); cerr != nil {
			logger.Warn("pending charges not applied", "error", cerr)
		}
		return err
	})

	return g.Wait()
}

func setupLogger(cfg sg.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
