// Package dashboard assembles everything a preset page shows: the generated
// series, chart traces, summary cards, annual totals and the optional price
// index and news panels.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iwvelando/tireintel/internal/cache"
	"github.com/iwvelando/tireintel/internal/config"
	"github.com/iwvelando/tireintel/internal/fetch/news"
	"github.com/iwvelando/tireintel/internal/fetch/priceindex"
	"github.com/iwvelando/tireintel/internal/forecast"
	"github.com/iwvelando/tireintel/pkg/constants"
	"github.com/iwvelando/tireintel/pkg/datetime"
	"go.uber.org/zap"
)

// ErrUnknownPreset is returned when no preset has the requested name.
var ErrUnknownPreset = errors.New("unknown preset")

// PriceIndexSource provides reference price index observations.
type PriceIndexSource interface {
	Fetch(ctx context.Context, seriesID string, lookbackMonths int) priceindex.Result
}

// NewsSource provides headlines for a query.
type NewsSource interface {
	Search(ctx context.Context, query string) news.Result
}

// PresetSummary describes a preset without its generator constants.
type PresetSummary struct {
	Name                  string `json:"name"`
	Title                 string `json:"title"`
	HistoricalStart       string `json:"historicalStart"`
	HistoricalEnd         string `json:"historicalEnd"`
	ForecastHorizonMonths int    `json:"forecastHorizonMonths"`
	PriceIndexSeries      string `json:"priceIndexSeries,omitempty"`
	NewsQuery             string `json:"newsQuery,omitempty"`
}

// View is a fully assembled dashboard.
type View struct {
	Preset      PresetSummary            `json:"preset"`
	Records     []forecast.MonthlyRecord `json:"records"`
	Series      []Series                 `json:"series"`
	Cards       []Card                   `json:"cards"`
	Annual      []AnnualTotal            `json:"annual"`
	Note        string                   `json:"note"`
	PriceIndex  *priceindex.Result       `json:"priceIndex,omitempty"`
	News        *news.Result             `json:"news,omitempty"`
	GeneratedAt time.Time                `json:"generatedAt"`
}

// Service builds dashboards for the configured presets.
type Service struct {
	conf   *config.Configuration
	prices PriceIndexSource
	news   NewsSource
	memo   *cache.Memo[[]forecast.MonthlyRecord]
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a dashboard service. Either source may be nil, in which
// case presets that reference it are shown without that panel. Generated series
// are cached in store for ttl; a nil store disables caching.
func NewService(conf *config.Configuration, prices PriceIndexSource, newsSource NewsSource, store cache.Store, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		conf:   conf,
		prices: prices,
		news:   newsSource,
		memo:   cache.NewMemo[[]forecast.MonthlyRecord](store, "forecast.Generate", ttl, logger),
		now:    time.Now,
		logger: logger,
	}
}

// Presets summarizes the configured presets in configuration order.
func (s *Service) Presets() []PresetSummary {
	names := s.conf.PresetNames()
	summaries := make([]PresetSummary, 0, len(names))
	for _, name := range names {
		preset, _ := s.conf.FindPreset(name)
		summaries = append(summaries, Summarize(preset))
	}
	return summaries
}

// Summarize describes preset for listings.
func Summarize(preset config.PresetConfig) PresetSummary {
	return PresetSummary{
		Name:                  preset.Name,
		Title:                 preset.DisplayTitle(),
		HistoricalStart:       preset.HistoricalStart,
		HistoricalEnd:         preset.HistoricalEnd,
		ForecastHorizonMonths: preset.ForecastHorizonMonths,
		PriceIndexSeries:      preset.PriceIndexSeries,
		NewsQuery:             preset.NewsQuery,
	}
}

// Preset returns the configured preset with the given name.
func (s *Service) Preset(name string) (config.PresetConfig, bool) {
	return s.conf.FindPreset(name)
}

// Build assembles the dashboard for the named preset.
func (s *Service) Build(ctx context.Context, name string) (*View, error) {
	preset, ok := s.Preset(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPreset, name)
	}
	return s.BuildPreset(ctx, preset)
}

// Records generates the series for preset, served from the cache when an
// identical configuration was generated recently.
func (s *Service) Records(ctx context.Context, preset config.PresetConfig) ([]forecast.MonthlyRecord, error) {
	conf, err := preset.ToForecastConfig()
	if err != nil {
		return nil, err
	}

	records, err := s.memo.Do(ctx, []interface{}{conf}, func(context.Context) ([]forecast.MonthlyRecord, bool, error) {
		records, err := forecast.GetForecast(s.logger, conf)
		return records, true, err
	})
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", preset.Name, err)
	}

	// cached copies come back in local time
	for i := range records {
		records[i].Date = datetime.MonthStart(records[i].Date.UTC())
	}
	return records, nil
}

// BuildPreset assembles the dashboard for an arbitrary preset.
func (s *Service) BuildPreset(ctx context.Context, preset config.PresetConfig) (*View, error) {
	records, err := s.Records(ctx, preset)
	if err != nil {
		return nil, err
	}

	view := &View{
		Preset:      Summarize(preset),
		GeneratedAt: s.now().UTC(),
	}

	if preset.PriceIndexSeries != "" && s.prices != nil {
		result := s.prices.Fetch(ctx, preset.PriceIndexSeries, 0)
		view.PriceIndex = &result
		records = forecast.WithReference(records, result.ByMonth())
	}
	if preset.NewsQuery != "" && s.news != nil {
		result := s.news.Search(ctx, preset.NewsQuery)
		view.News = &result
	}

	view.Records = records
	view.Series = BuildSeries(records, view.PriceIndex)
	view.Cards = BuildCards(records)
	view.Annual = AnnualTotals(records)
	view.Note = analystNote(preset)

	s.logger.Debug("dashboard built",
		zap.String("op", "dashboard.BuildPreset"),
		zap.String("preset", preset.Name),
		zap.Int("records", len(records)),
		zap.Bool("priceIndex", view.PriceIndex != nil),
		zap.Bool("news", view.News != nil),
	)
	return view, nil
}

func analystNote(preset config.PresetConfig) string {
	return fmt.Sprintf("Forecast accounts for Q1 quiet-season dips and Q3 freight peaks. Pricing assumes a steady %.1f%% annual inflationary crawl.",
		preset.PriceGrowthRate*constants.MonthsPerYear*constants.PercentageMultiplier)
}
