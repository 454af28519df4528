// Package config defines the data structures related to configuration and
// includes functions for loading, defaulting and validating it.
package config

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iwvelando/tireintel/pkg/constants"
	"github.com/iwvelando/tireintel/pkg/validation"
	"github.com/spf13/viper"
)

// DateTimeLayout is the format expected in config files and is also the output
// date format.
const DateTimeLayout = constants.DateTimeLayout

// Configuration holds all configuration for tireintel.
type Configuration struct {
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
	Output     OutputConfig     `yaml:"output,omitempty"`
	Cache      CacheConfig      `yaml:"cache,omitempty"`
	PriceIndex PriceIndexConfig `yaml:"priceIndex,omitempty"`
	News       NewsConfig       `yaml:"news,omitempty"`
	Scheduler  SchedulerConfig  `yaml:"scheduler,omitempty"`
	Presets    []PresetConfig   `yaml:"presets,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv, json
}

// CacheConfig selects the result cache backend and its expiration policy.
type CacheConfig struct {
	Driver    string        `yaml:"driver,omitempty"` // memory, sqlite
	Path      string        `yaml:"path,omitempty"`
	MarketTTL time.Duration `yaml:"marketTTL,omitempty"`
	NewsTTL   time.Duration `yaml:"newsTTL,omitempty"`
}

// PriceIndexConfig holds the economic-data API settings.
type PriceIndexConfig struct {
	BaseURL        string        `yaml:"baseURL,omitempty"`
	APIKey         string        `yaml:"apiKey,omitempty"`
	LookbackMonths int           `yaml:"lookbackMonths,omitempty"`
	Timeout        time.Duration `yaml:"timeout,omitempty"`
}

// NewsConfig holds the RSS news search settings.
type NewsConfig struct {
	BaseURL  string        `yaml:"baseURL,omitempty"`
	Locale   string        `yaml:"locale,omitempty"`
	MaxItems int           `yaml:"maxItems,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// SchedulerConfig holds the background job schedules used by the server.
type SchedulerConfig struct {
	Enabled         bool   `yaml:"enabled"`
	CleanupSchedule string `yaml:"cleanupSchedule,omitempty"`
	WarmupSchedule  string `yaml:"warmupSchedule,omitempty"`
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. An empty path yields the defaults and built-in presets.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file, %s", err)
		}
	}
	return decode(v)
}

// LoadConfigurationFromReader loads YAML configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading config data, %s", err)
	}

	v := newViper()
	v.SetConfigType("yml")
	if len(bytes.TrimSpace(data)) > 0 {
		if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("error reading config data, %s", err)
		}
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("output.format", constants.OutputFormatPretty)
	v.SetDefault("cache.driver", constants.CacheDriverMemory)
	v.SetDefault("cache.path", constants.DefaultCachePath)
	v.SetDefault("cache.marketTTL", constants.DefaultMarketTTL)
	v.SetDefault("cache.newsTTL", constants.DefaultNewsTTL)
	v.SetDefault("priceIndex.baseURL", constants.DefaultPriceIndexBaseURL)
	v.SetDefault("priceIndex.lookbackMonths", constants.DefaultPriceIndexLookbackMonths)
	v.SetDefault("priceIndex.timeout", constants.DefaultFetchTimeout)
	v.SetDefault("news.baseURL", constants.DefaultNewsBaseURL)
	v.SetDefault("news.locale", constants.DefaultNewsLocale)
	v.SetDefault("news.maxItems", constants.DefaultNewsMaxItems)
	v.SetDefault("news.timeout", constants.DefaultFetchTimeout)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.cleanupSchedule", constants.DefaultCleanupSchedule)
	v.SetDefault("scheduler.warmupSchedule", constants.DefaultWarmupSchedule)

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("priceIndex.apiKey", constants.EnvPrefix+"_PRICEINDEX_APIKEY", "FRED_API_KEY")

	return v
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	if len(configuration.Presets) == 0 {
		configuration.Presets = DefaultPresets()
	}
	return &configuration, nil
}

// FindPreset returns the preset with the given name. When several presets
// share a name the last one wins.
func (c *Configuration) FindPreset(name string) (PresetConfig, bool) {
	for i := len(c.Presets) - 1; i >= 0; i-- {
		if c.Presets[i].Name == name {
			return c.Presets[i], true
		}
	}
	return PresetConfig{}, false
}

// PresetNames lists preset names in configuration order without duplicates.
func (c *Configuration) PresetNames() []string {
	names := make([]string, 0, len(c.Presets))
	seen := make(map[string]bool, len(c.Presets))
	for _, preset := range c.Presets {
		if preset.Name == "" || seen[preset.Name] {
			continue
		}
		seen[preset.Name] = true
		names = append(names, preset.Name)
	}
	return names
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string

	if c.Output.Format != "" {
		if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
			warnings = append(warnings, err.Error())
		}
	}

	switch c.Cache.Driver {
	case "", constants.CacheDriverMemory, constants.CacheDriverSQLite:
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown cache driver '%s'; the memory cache will be used", c.Cache.Driver))
	}

	infos := make([]validation.PresetInfo, 0, len(c.Presets))
	needsAPIKey := false
	for _, preset := range c.Presets {
		infos = append(infos, preset.info())
		if preset.PriceIndexSeries != "" {
			needsAPIKey = true
		}
	}
	warnings = append(warnings, validation.ValidatePresets(infos)...)

	if needsAPIKey && c.PriceIndex.APIKey == "" {
		warnings = append(warnings, "No price-index API key configured; price-index presets will use synthetic fallback data")
	}

	return warnings
}
