package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iwvelando/tireintel/internal/cache"
	"github.com/iwvelando/tireintel/internal/config"
	"github.com/iwvelando/tireintel/internal/dashboard"
	"github.com/iwvelando/tireintel/internal/fetch/news"
	"github.com/iwvelando/tireintel/internal/fetch/priceindex"
	"github.com/iwvelando/tireintel/internal/logging"
	"github.com/iwvelando/tireintel/internal/scheduler"
	"github.com/iwvelando/tireintel/internal/server"
	"github.com/iwvelando/tireintel/pkg/constants"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// warmupTimeout bounds one dashboard warmup run.
const warmupTimeout = 2 * time.Minute

func main() {
	_ = godotenv.Load()

	configLocation := flag.String("config", constants.DefaultServerConfigFile, "path to server configuration file")
	appConfig := flag.String("app-config", "", "path to application configuration file (overrides appConfig)")
	address := flag.String("address", "", "listen address override")
	maxUploadSize := flag.String("max-upload-size", "", "maximum request body size override (e.g. 512K, 2M)")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	srvConf, err := server.LoadConfig(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load server configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}
	if *address != "" {
		srvConf.Address = *address
	}
	if *maxUploadSize != "" {
		size, err := server.ParseSize(*maxUploadSize)
		if err != nil {
			fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"invalid max upload size\", \"error\": \"%v\"}\n", err)
			os.Exit(1)
		}
		srvConf.SetUploadSizeBytes(size)
	}
	if *appConfig != "" {
		srvConf.AppConfig = *appConfig
	}

	logger, err := logging.New(srvConf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	conf, err := config.LoadConfiguration(srvConf.AppConfig)
	if err != nil {
		logger.Fatal("failed to load application configuration",
			zap.String("op", "main"),
			zap.String("path", srvConf.AppConfig),
			zap.Error(err),
		)
	}
	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := cache.New(ctx, conf.Cache.Driver, conf.Cache.Path, logger)
	if err != nil {
		logger.Fatal("failed to open cache",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close cache", zap.String("op", "main"), zap.Error(err))
		}
	}()

	prices := priceindex.NewClient(conf.PriceIndex, logger, priceindex.WithCache(store, conf.Cache.MarketTTL))
	newsClient := news.NewClient(conf.News, logger, news.WithCache(store, conf.Cache.NewsTTL))
	dashboards := dashboard.NewService(conf, prices, newsClient, store, conf.Cache.MarketTTL, logger)

	if conf.Scheduler.Enabled {
		jobs := scheduler.New(logger)
		if err := jobs.AddJob(conf.Scheduler.CleanupSchedule, cache.NewCleanupJob(store, logger)); err != nil {
			logger.Fatal("invalid cleanup schedule",
				zap.String("op", "main"),
				zap.String("schedule", conf.Scheduler.CleanupSchedule),
				zap.Error(err),
			)
		}
		warmup := dashboard.NewWarmupJob(dashboards, warmupTimeout, logger)
		if err := jobs.AddJob(conf.Scheduler.WarmupSchedule, warmup); err != nil {
			logger.Fatal("invalid warmup schedule",
				zap.String("op", "main"),
				zap.String("schedule", conf.Scheduler.WarmupSchedule),
				zap.Error(err),
			)
		}
		jobs.Start()
		defer jobs.Stop()

		go func() {
			if err := jobs.RunNow(warmup); err != nil {
				logger.Warn("initial warmup incomplete", zap.String("op", "main"), zap.Error(err))
			}
		}()
	}

	handler := server.NewHandler(logger, server.Options{
		MaxUploadSize:  srvConf.UploadSizeBytes(),
		Version:        version,
		AllowedOrigins: srvConf.AllowedOrigins,
		Dashboards:     dashboards,
		Prices:         prices,
		News:           newsClient,
	})

	httpServer := &http.Server{
		Addr:              srvConf.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server",
			zap.String("op", "main"),
			zap.String("address", srvConf.Address),
			zap.String("version", version),
		)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
		return
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server", zap.String("op", "main"))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), srvConf.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
}
