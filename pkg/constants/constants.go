// Package constants provides shared constants for the tireintel application.
package constants

import "time"

// DateTimeLayout is the month format expected in config files and is also the
// output date format.
const DateTimeLayout = "2006-01"

// Calendar constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// DecimalPrecision is the number of decimal places used for currency rounding
	DecimalPrecision = 2
)

// Generator limits
const (
	// MaxHistoricalMonths caps the historical segment (100 years)
	MaxHistoricalMonths = 1200

	// MaxForecastHorizonMonths caps the forecast segment (100 years)
	MaxForecastHorizonMonths = 1200
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the JSON output format
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix is the prefix for environment overrides of configuration keys
	EnvPrefix = "TIREINTEL"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the web UI
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum request body size for preset payloads (256 KB)
	DefaultMaxUploadSizeBytes int64 = 256 * 1024
)

// External data defaults
const (
	// DefaultFetchTimeout bounds every outbound call; failures are not retried
	DefaultFetchTimeout = 10 * time.Second

	// DefaultPriceIndexBaseURL is the FRED API root
	DefaultPriceIndexBaseURL = "https://api.stlouisfed.org/fred"

	// DefaultPriceIndexLookbackMonths is the observation window requested from the API
	DefaultPriceIndexLookbackMonths = 24

	// PriceIndexMaxObservations is the number of most recent observations kept
	PriceIndexMaxObservations = 18

	// PriceIndexFallbackPoints is the length of the synthetic fallback series
	PriceIndexFallbackPoints = 12

	// DefaultNewsBaseURL is the Google News RSS search endpoint
	DefaultNewsBaseURL = "https://news.google.com/rss/search"

	// DefaultNewsLocale is the feed language/region
	DefaultNewsLocale = "en-US"

	// DefaultNewsMaxItems caps the number of returned articles
	DefaultNewsMaxItems = 8
)

// Cache defaults
const (
	// CacheDriverMemory keeps entries in process memory
	CacheDriverMemory = "memory"

	// CacheDriverSQLite persists entries in a sqlite file
	CacheDriverSQLite = "sqlite"

	// DefaultCachePath is the sqlite cache location
	DefaultCachePath = "data/cache.db"

	// DefaultMarketTTL covers generated series and price-index observations
	DefaultMarketTTL = 24 * time.Hour

	// DefaultNewsTTL covers news search results
	DefaultNewsTTL = 30 * time.Minute
)

// Scheduler defaults
const (
	// DefaultCleanupSchedule runs cache cleanup at the top of every hour
	DefaultCleanupSchedule = "@hourly"

	// DefaultWarmupSchedule rebuilds every preset dashboard
	DefaultWarmupSchedule = "@every 30m"
)

// Validation constants
const (
	// SeasonalityWarnDeviation flags weight tables whose mean strays from 1
	SeasonalityWarnDeviation = 0.25

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0
)
