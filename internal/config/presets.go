package config

import (
	"fmt"

	"github.com/iwvelando/tireintel/internal/forecast"
	"github.com/iwvelando/tireintel/pkg/datetime"
	"github.com/iwvelando/tireintel/pkg/validation"
)

// PresetConfig describes one dashboard: the generator constants plus the
// optional external series it is shown with.
type PresetConfig struct {
	Name                     string    `yaml:"name"`
	Title                    string    `yaml:"title,omitempty"`
	Seasonality              []float64 `yaml:"seasonality,flow"`
	HistoricalStart          string    `yaml:"historicalStart"`
	HistoricalEnd            string    `yaml:"historicalEnd"`
	ForecastHorizonMonths    int       `yaml:"forecastHorizonMonths"`
	BaseSize                 float64   `yaml:"baseSize"`
	BasePrice                float64   `yaml:"basePrice"`
	MonthlyGrowthRate        float64   `yaml:"monthlyGrowthRate"`
	PriceGrowthRate          float64   `yaml:"priceGrowthRate"`
	AnnualGrowthRate         float64   `yaml:"annualGrowthRate"`
	ForecastBridgeMultiplier float64   `yaml:"forecastBridgeMultiplier,omitempty"`
	ContinueIndex            bool      `yaml:"continueIndex,omitempty"`
	PriceIndexSeries         string    `yaml:"priceIndexSeries,omitempty"`
	NewsQuery                string    `yaml:"newsQuery,omitempty"`
}

// ToForecastConfig converts the preset into generator input. Only the month
// strings are checked here; the generator validates everything else.
func (p PresetConfig) ToForecastConfig() (forecast.Config, error) {
	start, err := datetime.ParseMonth(p.HistoricalStart)
	if err != nil {
		return forecast.Config{}, fmt.Errorf("preset %s historicalStart: %w", p.Name, err)
	}
	end, err := datetime.ParseMonth(p.HistoricalEnd)
	if err != nil {
		return forecast.Config{}, fmt.Errorf("preset %s historicalEnd: %w", p.Name, err)
	}

	return forecast.Config{
		Seasonality:              append([]float64(nil), p.Seasonality...),
		HistoricalStart:          start,
		HistoricalEnd:            end,
		ForecastHorizonMonths:    p.ForecastHorizonMonths,
		BaseSize:                 p.BaseSize,
		BasePrice:                p.BasePrice,
		MonthlyGrowthRate:        p.MonthlyGrowthRate,
		PriceGrowthRate:          p.PriceGrowthRate,
		AnnualGrowthRate:         p.AnnualGrowthRate,
		ForecastBridgeMultiplier: p.ForecastBridgeMultiplier,
		ContinueIndex:            p.ContinueIndex,
	}, nil
}

// Warnings returns validation warnings for this preset alone.
func (p PresetConfig) Warnings() []string {
	return validation.ValidatePresets([]validation.PresetInfo{p.info()})
}

func (p PresetConfig) info() validation.PresetInfo {
	return validation.PresetInfo{
		Name:                  p.Name,
		Seasonality:           p.Seasonality,
		ForecastHorizonMonths: p.ForecastHorizonMonths,
		AnnualGrowthRate:      p.AnnualGrowthRate,
		MonthlyGrowthRate:     p.MonthlyGrowthRate,
		PriceIndexSeries:      p.PriceIndexSeries,
		NewsQuery:             p.NewsQuery,
	}
}

// DisplayTitle returns the title, falling back to the preset name.
func (p PresetConfig) DisplayTitle() string {
	if p.Title != "" {
		return p.Title
	}
	return p.Name
}

// Built-in preset names.
const (
	PresetMonthlyForecast = "monthly-forecast"
	PresetAnnualOutlook   = "annual-outlook"
	PresetPriceIndex      = "price-index"
	PresetNewsIntel       = "news-intel"
)

// FreightSeasonality is the long-haul demand curve: a quiet Q1 and a Q3 freight peak.
var FreightSeasonality = []float64{0.85, 0.82, 0.90, 1.05, 1.10, 1.08, 1.12, 1.25, 1.30, 1.28, 1.20, 1.15}

// TirePPISeries is the FRED producer price index for tire manufacturing.
const TirePPISeries = "PCU326211326211"

// DefaultNewsQuery is the boolean feed query for long-haul tire coverage.
const DefaultNewsQuery = `("long haul" OR "long-haul" OR trucking) AND (tire OR tires OR tyre)`

// DefaultPresets returns the four built-in dashboards.
func DefaultPresets() []PresetConfig {
	return []PresetConfig{
		{
			Name:                     PresetMonthlyForecast,
			Title:                    "Long-Haul Tire: 18-Month Market Forecast",
			Seasonality:              append([]float64(nil), FreightSeasonality...),
			HistoricalStart:          "2024-01",
			HistoricalEnd:            "2025-12",
			ForecastHorizonMonths:    18,
			BaseSize:                 1.6,
			BasePrice:                545,
			MonthlyGrowthRate:        0.005,
			PriceGrowthRate:          0.004,
			AnnualGrowthRate:         0.058,
			ForecastBridgeMultiplier: 1.15,
		},
		{
			Name:                  PresetAnnualOutlook,
			Title:                 "Long-Haul Tire: Two-Year Outlook",
			Seasonality:           []float64{0.88, 0.84, 0.92, 1.02, 1.08, 1.06, 1.10, 1.20, 1.24, 1.22, 1.16, 1.12},
			HistoricalStart:       "2024-01",
			HistoricalEnd:         "2025-12",
			ForecastHorizonMonths: 24,
			BaseSize:              1.58,
			BasePrice:             540,
			MonthlyGrowthRate:     0.005,
			PriceGrowthRate:       0.0035,
			AnnualGrowthRate:      0.052,
			ContinueIndex:         true,
		},
		{
			Name:                     PresetPriceIndex,
			Title:                    "Long-Haul Tire: Pricing vs Producer Price Index",
			Seasonality:              append([]float64(nil), FreightSeasonality...),
			HistoricalStart:          "2024-07",
			HistoricalEnd:            "2025-12",
			ForecastHorizonMonths:    12,
			BaseSize:                 1.62,
			BasePrice:                552,
			MonthlyGrowthRate:        0.005,
			PriceGrowthRate:          0.004,
			AnnualGrowthRate:         0.058,
			ForecastBridgeMultiplier: 1.1,
			PriceIndexSeries:         TirePPISeries,
		},
		{
			Name:                     PresetNewsIntel,
			Title:                    "Long-Haul Tire: Market & News Intelligence",
			Seasonality:              append([]float64(nil), FreightSeasonality...),
			HistoricalStart:          "2024-01",
			HistoricalEnd:            "2025-12",
			ForecastHorizonMonths:    12,
			BaseSize:                 1.6,
			BasePrice:                545,
			MonthlyGrowthRate:        0.005,
			PriceGrowthRate:          0.004,
			AnnualGrowthRate:         0.058,
			ForecastBridgeMultiplier: 1.15,
			NewsQuery:                DefaultNewsQuery,
		},
	}
}
