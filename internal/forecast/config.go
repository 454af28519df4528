package forecast

import (
	"errors"
	"fmt"
	"time"

	"github.com/iwvelando/tireintel/pkg/constants"
	"github.com/iwvelando/tireintel/pkg/datetime"
	"github.com/iwvelando/tireintel/pkg/mathutil"
)

// ErrInvalidConfig is wrapped by every ConfigError.
var ErrInvalidConfig = errors.New("invalid forecast configuration")

// ConfigError reports the configuration field that failed validation.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidConfig, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// Config holds the constants that parameterize one generated series.
type Config struct {
	// Seasonality holds one demand weight per calendar month, January first.
	Seasonality []float64

	// HistoricalStart and HistoricalEnd bound the historical segment, inclusive.
	HistoricalStart time.Time
	HistoricalEnd   time.Time

	// ForecastHorizonMonths is the number of months projected after HistoricalEnd.
	ForecastHorizonMonths int

	BaseSize  float64
	BasePrice float64

	// MonthlyGrowthRate is the linear per-month size growth of the historical segment.
	MonthlyGrowthRate float64
	// PriceGrowthRate is the linear per-month price crawl applied to both segments.
	PriceGrowthRate float64
	// AnnualGrowthRate drives the forecast size trend, spread evenly over twelve months.
	AnnualGrowthRate float64

	// ForecastBridgeMultiplier rescales the forecast base size. Zero means 1.
	ForecastBridgeMultiplier float64

	// ContinueIndex keeps counting month positions across the historical/forecast
	// seam instead of restarting at zero for the first forecast month.
	ContinueIndex bool
}

// Validate checks the configuration and returns a *ConfigError for the first
// problem found.
func (c Config) Validate() error {
	if len(c.Seasonality) != constants.MonthsPerYear {
		return &ConfigError{Field: "seasonality", Reason: fmt.Sprintf("must have %d entries, got %d", constants.MonthsPerYear, len(c.Seasonality))}
	}
	for i, w := range c.Seasonality {
		if !mathutil.IsFinite(w) || w <= 0 {
			return &ConfigError{Field: "seasonality", Reason: fmt.Sprintf("weight for %s must be positive, got %v", time.Month(i+1), w)}
		}
	}
	span := datetime.MonthsBetween(c.HistoricalStart, c.HistoricalEnd)
	if span < 1 {
		return &ConfigError{Field: "historicalEnd", Reason: fmt.Sprintf("%s is before historicalStart %s",
			c.HistoricalEnd.Format(constants.DateTimeLayout), c.HistoricalStart.Format(constants.DateTimeLayout))}
	}
	if span > constants.MaxHistoricalMonths {
		return &ConfigError{Field: "historicalStart", Reason: fmt.Sprintf("spans %d months, more than the maximum of %d",
			span, constants.MaxHistoricalMonths)}
	}
	if c.ForecastHorizonMonths < 0 {
		return &ConfigError{Field: "forecastHorizonMonths", Reason: fmt.Sprintf("must not be negative, got %d", c.ForecastHorizonMonths)}
	}
	if c.ForecastHorizonMonths > constants.MaxForecastHorizonMonths {
		return &ConfigError{Field: "forecastHorizonMonths", Reason: fmt.Sprintf("must be at most %d, got %d",
			constants.MaxForecastHorizonMonths, c.ForecastHorizonMonths)}
	}
	if !mathutil.IsFinite(c.BaseSize) || c.BaseSize <= 0 {
		return &ConfigError{Field: "baseSize", Reason: fmt.Sprintf("must be positive, got %v", c.BaseSize)}
	}
	if !mathutil.IsFinite(c.BasePrice) || c.BasePrice <= 0 {
		return &ConfigError{Field: "basePrice", Reason: fmt.Sprintf("must be positive, got %v", c.BasePrice)}
	}
	rates := []struct {
		field string
		value float64
	}{
		{"monthlyGrowthRate", c.MonthlyGrowthRate},
		{"priceGrowthRate", c.PriceGrowthRate},
		{"annualGrowthRate", c.AnnualGrowthRate},
	}
	for _, rate := range rates {
		if !mathutil.IsFinite(rate.value) {
			return &ConfigError{Field: rate.field, Reason: fmt.Sprintf("must be finite, got %v", rate.value)}
		}
	}
	if !mathutil.IsFinite(c.ForecastBridgeMultiplier) || c.ForecastBridgeMultiplier < 0 {
		return &ConfigError{Field: "forecastBridgeMultiplier", Reason: fmt.Sprintf("must not be negative, got %v", c.ForecastBridgeMultiplier)}
	}
	return nil
}

// HistoricalMonths returns the length of the historical segment.
func (c Config) HistoricalMonths() int {
	n := datetime.MonthsBetween(c.HistoricalStart, c.HistoricalEnd)
	if n < 0 {
		return 0
	}
	return n
}

// Len returns the total number of records Generate produces.
func (c Config) Len() int {
	return c.HistoricalMonths() + c.ForecastHorizonMonths
}

// ForecastStart returns the first forecast month, the month after HistoricalEnd.
func (c Config) ForecastStart() time.Time {
	return datetime.AddMonths(c.HistoricalEnd, 1)
}

// Weight returns the seasonality weight applied to the month containing date.
func (c Config) Weight(date time.Time) float64 {
	return c.Seasonality[date.Month()-1]
}

func (c Config) bridge() float64 {
	if c.ForecastBridgeMultiplier == 0 {
		return 1
	}
	return c.ForecastBridgeMultiplier
}
