// Package forecast generates seasonal monthly market-size and price series,
// split into a historical segment and a projected forecast segment.
package forecast

import (
	"encoding/json"
	"time"

	"github.com/iwvelando/tireintel/pkg/constants"
	"github.com/iwvelando/tireintel/pkg/datetime"
	"go.uber.org/zap"
)

// Segment tags a record as observed history or projection.
type Segment string

const (
	SegmentHistorical Segment = "Historical"
	SegmentForecast   Segment = "Forecast"
)

// MonthlyRecord holds the generated values for one calendar month.
type MonthlyRecord struct {
	Date           time.Time
	MarketSize     float64 // billions
	AvgPrice       float64
	Segment        Segment
	SeasonalWeight float64
	ReferenceValue *float64
}

// Month returns the record date in the configuration layout.
func (r MonthlyRecord) Month() string {
	return r.Date.Format(constants.DateTimeLayout)
}

// MarshalJSON writes the date as a YYYY-MM month and omits absent reference values.
func (r MonthlyRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date           string   `json:"date"`
		MarketSize     float64  `json:"marketSize"`
		AvgPrice       float64  `json:"avgPrice"`
		Segment        Segment  `json:"segment"`
		SeasonalWeight float64  `json:"seasonalWeight"`
		ReferenceValue *float64 `json:"referenceValue,omitempty"`
	}{
		Date:           r.Month(),
		MarketSize:     r.MarketSize,
		AvgPrice:       r.AvgPrice,
		Segment:        r.Segment,
		SeasonalWeight: r.SeasonalWeight,
		ReferenceValue: r.ReferenceValue,
	})
}

// Generate produces the historical records followed by the forecast records.
// The result depends only on conf.
func Generate(conf Config) ([]MonthlyRecord, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	nHist := conf.HistoricalMonths()
	records := make([]MonthlyRecord, 0, conf.Len())

	start := datetime.MonthStart(conf.HistoricalStart)
	for i := 0; i < nHist; i++ {
		date := start.AddDate(0, i, 0)
		weight := conf.Weight(date)
		growth := 1 + conf.MonthlyGrowthRate*float64(i)
		records = append(records, MonthlyRecord{
			Date:           date,
			MarketSize:     conf.BaseSize * weight * growth,
			AvgPrice:       conf.BasePrice * (1 + conf.PriceGrowthRate*float64(i)),
			Segment:        SegmentHistorical,
			SeasonalWeight: weight,
		})
	}

	lastPrice := records[nHist-1].AvgPrice
	forecastStart := conf.ForecastStart()
	for j := 0; j < conf.ForecastHorizonMonths; j++ {
		date := forecastStart.AddDate(0, j, 0)
		weight := conf.Weight(date)

		k := j
		if conf.ContinueIndex {
			k = nHist + j
		}
		trend := 1 + conf.AnnualGrowthRate/constants.MonthsPerYear*float64(k+1)

		var price float64
		if conf.ContinueIndex {
			price = conf.BasePrice * (1 + conf.PriceGrowthRate*float64(nHist+j))
		} else {
			price = lastPrice * (1 + conf.PriceGrowthRate*float64(j+1))
		}

		records = append(records, MonthlyRecord{
			Date:           date,
			MarketSize:     conf.BaseSize * conf.bridge() * weight * trend,
			AvgPrice:       price,
			Segment:        SegmentForecast,
			SeasonalWeight: weight,
		})
	}

	return records, nil
}

// GetForecast generates the series for conf and logs its shape.
func GetForecast(logger *zap.Logger, conf Config) ([]MonthlyRecord, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	records, err := Generate(conf)
	if err != nil {
		logger.Debug("forecast configuration rejected",
			zap.String("op", "forecast.GetForecast"),
			zap.Error(err),
		)
		return nil, err
	}

	logger.Debug("forecast generated",
		zap.String("op", "forecast.GetForecast"),
		zap.Int("historical", conf.HistoricalMonths()),
		zap.Int("forecast", conf.ForecastHorizonMonths),
		zap.String("forecastStart", conf.ForecastStart().Format(constants.DateTimeLayout)),
	)
	return records, nil
}

// Split returns the historical and forecast parts of records. The returned
// slices share storage with records.
func Split(records []MonthlyRecord) (historical, projected []MonthlyRecord) {
	for i, record := range records {
		if record.Segment == SegmentForecast {
			return records[:i], records[i:]
		}
	}
	return records, nil
}

// WithReference returns a copy of records where every month present in values
// carries that value as its reference. values is keyed by YYYY-MM.
func WithReference(records []MonthlyRecord, values map[string]float64) []MonthlyRecord {
	out := make([]MonthlyRecord, len(records))
	for i, record := range records {
		record.ReferenceValue = nil
		if v, ok := values[record.Month()]; ok {
			ref := v
			record.ReferenceValue = &ref
		}
		out[i] = record
	}
	return out
}
