package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iwvelando/tireintel/internal/forecast"
	"github.com/iwvelando/tireintel/pkg/constants"
)

const testConfigYAML = `
logging:
  level: debug
  format: console
output:
  format: csv
cache:
  driver: sqlite
  path: /tmp/tireintel-cache.db
  marketTTL: 2h
  newsTTL: 15m
priceIndex:
  apiKey: file-key
  lookbackMonths: 36
news:
  maxItems: 5
presets:
  - name: custom
    title: Custom Outlook
    seasonality: [1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1]
    historicalStart: 2023-01
    historicalEnd: 2023-12
    forecastHorizonMonths: 6
    baseSize: 2
    basePrice: 500
    monthlyGrowthRate: 0.01
    priceGrowthRate: 0.002
    annualGrowthRate: 0.06
    continueIndex: true
    priceIndexSeries: PCU326211326211
`

func TestLoadConfigurationMissingFile(t *testing.T) {
	if _, err := LoadConfiguration(filepath.Join(t.TempDir(), "nonexistent.yaml")); err == nil {
		t.Error("LoadConfiguration() expected error but got none")
	}
}

func TestLoadConfigurationDefaults(t *testing.T) {
	conf, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if conf.Output.Format != constants.OutputFormatPretty {
		t.Errorf("expected default output format, got %q", conf.Output.Format)
	}
	if conf.Cache.Driver != constants.CacheDriverMemory {
		t.Errorf("expected memory cache driver, got %q", conf.Cache.Driver)
	}
	if conf.Cache.MarketTTL != constants.DefaultMarketTTL || conf.Cache.NewsTTL != constants.DefaultNewsTTL {
		t.Errorf("unexpected cache TTLs: %+v", conf.Cache)
	}
	if conf.PriceIndex.Timeout != constants.DefaultFetchTimeout {
		t.Errorf("expected default timeout, got %v", conf.PriceIndex.Timeout)
	}
	if conf.News.MaxItems != constants.DefaultNewsMaxItems {
		t.Errorf("expected default news max items, got %d", conf.News.MaxItems)
	}

	names := conf.PresetNames()
	expected := []string{PresetMonthlyForecast, PresetAnnualOutlook, PresetPriceIndex, PresetNewsIntel}
	if strings.Join(names, ",") != strings.Join(expected, ",") {
		t.Errorf("PresetNames() = %v, expected %v", names, expected)
	}
}

func TestLoadConfigurationFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(testConfigYAML), 0600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	conf, err := LoadConfiguration(path)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	assertCustomConfiguration(t, conf)
}

func TestLoadConfigurationFromReader(t *testing.T) {
	conf, err := LoadConfigurationFromReader(strings.NewReader(testConfigYAML))
	if err != nil {
		t.Fatalf("LoadConfigurationFromReader() error = %v", err)
	}
	assertCustomConfiguration(t, conf)
}

func assertCustomConfiguration(t *testing.T, conf *Configuration) {
	t.Helper()

	if conf.Logging.Level != "debug" || conf.Logging.Format != "console" {
		t.Errorf("unexpected logging config: %+v", conf.Logging)
	}
	if conf.Output.Format != constants.OutputFormatCSV {
		t.Errorf("expected csv output, got %q", conf.Output.Format)
	}
	if conf.Cache.Driver != constants.CacheDriverSQLite || conf.Cache.MarketTTL != 2*time.Hour || conf.Cache.NewsTTL != 15*time.Minute {
		t.Errorf("unexpected cache config: %+v", conf.Cache)
	}
	if conf.PriceIndex.LookbackMonths != 36 || conf.PriceIndex.BaseURL != constants.DefaultPriceIndexBaseURL {
		t.Errorf("unexpected price index config: %+v", conf.PriceIndex)
	}
	if conf.News.MaxItems != 5 || conf.News.Locale != constants.DefaultNewsLocale {
		t.Errorf("unexpected news config: %+v", conf.News)
	}

	if len(conf.Presets) != 1 {
		t.Fatalf("expected 1 preset, got %d", len(conf.Presets))
	}
	preset, ok := conf.FindPreset("custom")
	if !ok {
		t.Fatal("FindPreset(custom) not found")
	}
	if preset.Title != "Custom Outlook" || !preset.ContinueIndex || preset.PriceIndexSeries != TirePPISeries {
		t.Errorf("unexpected preset: %+v", preset)
	}
	if len(preset.Seasonality) != 12 || preset.BaseSize != 2 || preset.HistoricalStart != "2023-01" {
		t.Errorf("unexpected preset values: %+v", preset)
	}
}

func TestLoadConfigurationEmptyReader(t *testing.T) {
	conf, err := LoadConfigurationFromReader(strings.NewReader("  \n"))
	if err != nil {
		t.Fatalf("LoadConfigurationFromReader() error = %v", err)
	}
	if len(conf.Presets) != len(DefaultPresets()) {
		t.Errorf("expected built-in presets, got %d", len(conf.Presets))
	}
}

func TestLoadConfigurationInvalidYAML(t *testing.T) {
	if _, err := LoadConfigurationFromReader(strings.NewReader("presets: [")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadConfigurationAPIKeyFromEnv(t *testing.T) {
	t.Setenv("FRED_API_KEY", "env-key")

	conf, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if conf.PriceIndex.APIKey != "env-key" {
		t.Errorf("expected API key from environment, got %q", conf.PriceIndex.APIKey)
	}
}

func TestLoadConfigurationEnvOverride(t *testing.T) {
	t.Setenv("TIREINTEL_CACHE_DRIVER", "sqlite")

	conf, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if conf.Cache.Driver != constants.CacheDriverSQLite {
		t.Errorf("expected env override of cache driver, got %q", conf.Cache.Driver)
	}
}

func TestFindPresetLastWins(t *testing.T) {
	conf := &Configuration{Presets: []PresetConfig{
		{Name: "dup", BaseSize: 1},
		{Name: "other"},
		{Name: "dup", BaseSize: 2},
	}}

	preset, ok := conf.FindPreset("dup")
	if !ok || preset.BaseSize != 2 {
		t.Errorf("FindPreset(dup) = %+v, %v; expected the last definition", preset, ok)
	}
	if _, ok := conf.FindPreset("missing"); ok {
		t.Error("FindPreset(missing) should not be found")
	}
	if names := conf.PresetNames(); len(names) != 2 {
		t.Errorf("PresetNames() = %v, expected 2 unique names", names)
	}
}

func TestValidateConfiguration(t *testing.T) {
	conf, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	conf.PriceIndex.APIKey = "key"
	if warnings := conf.ValidateConfiguration(); len(warnings) != 0 {
		t.Errorf("expected no warnings for defaults, got %v", warnings)
	}

	conf.PriceIndex.APIKey = ""
	conf.Output.Format = "xml"
	conf.Cache.Driver = "redis"
	warnings := conf.ValidateConfiguration()
	if len(warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %d: %v", len(warnings), warnings)
	}
	if !strings.Contains(warnings[2], "API key") {
		t.Errorf("expected API key warning last, got %q", warnings[2])
	}
}

func TestDefaultPresetsGenerate(t *testing.T) {
	for _, preset := range DefaultPresets() {
		t.Run(preset.Name, func(t *testing.T) {
			conf, err := preset.ToForecastConfig()
			if err != nil {
				t.Fatalf("ToForecastConfig() error = %v", err)
			}
			records, err := forecast.Generate(conf)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if len(records) != conf.HistoricalMonths()+preset.ForecastHorizonMonths {
				t.Errorf("unexpected record count %d", len(records))
			}
		})
	}
}

func TestMonthlyForecastPresetDefaults(t *testing.T) {
	conf := &Configuration{Presets: DefaultPresets()}
	preset, ok := conf.FindPreset(PresetMonthlyForecast)
	if !ok {
		t.Fatal("monthly-forecast preset missing")
	}

	fc, err := preset.ToForecastConfig()
	if err != nil {
		t.Fatalf("ToForecastConfig() error = %v", err)
	}
	if fc.HistoricalMonths() != 24 || fc.ForecastStart().Format(DateTimeLayout) != "2026-01" {
		t.Errorf("unexpected ranges: %d months, forecast start %s", fc.HistoricalMonths(), fc.ForecastStart().Format(DateTimeLayout))
	}
	if fc.ForecastBridgeMultiplier != 1.15 || fc.ContinueIndex {
		t.Errorf("unexpected seam settings: %+v", fc)
	}
}

func TestToForecastConfigInvalidMonth(t *testing.T) {
	preset := DefaultPresets()[0]
	preset.HistoricalEnd = "December 2025"

	if _, err := preset.ToForecastConfig(); err == nil {
		t.Error("expected error for invalid month")
	}
}

func TestToForecastConfigCopiesSeasonality(t *testing.T) {
	preset := DefaultPresets()[0]
	conf, err := preset.ToForecastConfig()
	if err != nil {
		t.Fatalf("ToForecastConfig() error = %v", err)
	}
	conf.Seasonality[0] = 99
	if preset.Seasonality[0] == 99 {
		t.Error("ToForecastConfig shared the seasonality slice with the preset")
	}
}

func TestDisplayTitle(t *testing.T) {
	if got := (PresetConfig{Name: "x"}).DisplayTitle(); got != "x" {
		t.Errorf("DisplayTitle() = %q, expected name fallback", got)
	}
	if got := (PresetConfig{Name: "x", Title: "Y"}).DisplayTitle(); got != "Y" {
		t.Errorf("DisplayTitle() = %q, expected title", got)
	}
}
