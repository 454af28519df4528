package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/iwvelando/tireintel/internal/cache"
	"github.com/iwvelando/tireintel/internal/config"
	"github.com/iwvelando/tireintel/internal/dashboard"
	"github.com/iwvelando/tireintel/internal/fetch/news"
	"github.com/iwvelando/tireintel/internal/fetch/priceindex"
	"github.com/iwvelando/tireintel/internal/logging"
	"github.com/iwvelando/tireintel/pkg/constants"
	"github.com/iwvelando/tireintel/pkg/output"
	"github.com/iwvelando/tireintel/pkg/validation"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// runTimeout bounds one CLI run including external fetches.
const runTimeout = 30 * time.Second

func main() {
	// API keys may live in a local .env file; a missing file is fine.
	_ = godotenv.Load()

	// Process command line flags first to get config location
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	presetName := flag.String("preset", config.PresetMonthlyForecast, "preset to generate")
	outputFormatFlag := flag.String("output-format", "", "type of output override: pretty, csv, json")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	listPresets := flag.Bool("list-presets", false, "list the configured presets and exit")
	flag.Parse()

	// The default config file is optional; built-in presets apply without it.
	configPath := *configLocation
	if configPath == constants.DefaultConfigFile {
		if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
			configPath = ""
		}
	}

	// Load the config file to get logging configuration
	conf, err := config.LoadConfiguration(configPath)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	// Initialize logging based on config and CLI override
	logger, err := logging.New(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if *listPresets {
		for _, name := range conf.PresetNames() {
			preset, _ := conf.FindPreset(name)
			fmt.Printf("%-18s %s\n", name, preset.DisplayTitle())
		}
		return
	}

	// Determine output format (CLI override takes precedence over config)
	outputFormat := conf.Output.Format
	if *outputFormatFlag != "" {
		outputFormat = *outputFormatFlag
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty
	}

	err = validation.ValidateOutputFormat(outputFormat)
	if err != nil {
		logger.Fatal(err.Error(),
			zap.String("op", "main"),
		)
	}

	// Validate configuration and display any warnings
	warnings := conf.ValidateConfiguration()
	for _, warning := range warnings {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	store, err := cache.New(ctx, conf.Cache.Driver, conf.Cache.Path, logger)
	if err != nil {
		logger.Fatal("failed to open cache",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
	defer func() {
		_ = store.Close()
	}()

	prices := priceindex.NewClient(conf.PriceIndex, logger, priceindex.WithCache(store, conf.Cache.MarketTTL))
	newsClient := news.NewClient(conf.News, logger, news.WithCache(store, conf.Cache.NewsTTL))
	service := dashboard.NewService(conf, prices, newsClient, store, conf.Cache.MarketTTL, logger)

	view, err := service.Build(ctx, *presetName)
	if err != nil {
		logger.Fatal("failed to compute forecast",
			zap.String("op", "main"),
			zap.String("preset", *presetName),
			zap.Error(err),
		)
	}

	// Handle output.
	switch outputFormat {
	case constants.OutputFormatPretty:
		output.PrettyFormat(view.Preset.Name, view.Records)
		printSummary(view)
	case constants.OutputFormatCSV:
		output.CsvFormat(view.Records)
	case constants.OutputFormatJSON:
		if err := output.JSONFormat(view.Records); err != nil {
			logger.Fatal("failed to write JSON output",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
	}
}

func printSummary(view *dashboard.View) {
	fmt.Println()
	for _, card := range view.Cards {
		fmt.Printf("%-32s %12s  %s\n", card.Label, card.Value, card.Delta)
	}
	if view.PriceIndex != nil {
		fmt.Printf("\nPrice index %s: %s", view.PriceIndex.SeriesID, view.PriceIndex.Status)
		if view.PriceIndex.Fallback {
			fmt.Print(" (synthetic fallback)")
		}
		fmt.Println()
	}
	if view.News != nil {
		fmt.Printf("\nNews: %s", view.News.Status)
		if view.News.Reason != "" {
			fmt.Printf(" (%s)", view.News.Reason)
		}
		fmt.Println()
		for _, article := range view.News.Articles {
			fmt.Printf("  - %s [%s]\n", article.Title, article.Source)
		}
	}
	fmt.Printf("\n%s\n", view.Note)
}
