// Package priceindex fetches producer price index observations used as a
// reference line next to the generated average price.
package priceindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iwvelando/tireintel/internal/cache"
	"github.com/iwvelando/tireintel/internal/config"
	"github.com/iwvelando/tireintel/pkg/constants"
	"github.com/iwvelando/tireintel/pkg/datetime"
	"github.com/iwvelando/tireintel/pkg/mathutil"
	"go.uber.org/zap"
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("price index API key is not configured")

// Status describes how a Result was produced.
type Status string

const (
	// StatusOK means observations came from the API.
	StatusOK Status = "ok"
	// StatusEmpty means the API answered with no usable observations.
	StatusEmpty Status = "empty"
	// StatusFailed means the request failed.
	StatusFailed Status = "failed"
)

const observationDateLayout = "2006-01-02"

// fallback series: base value and monthly step
const (
	fallbackBase = 152.0
	fallbackStep = 0.45
)

// Observation is one monthly index value.
type Observation struct {
	Date  time.Time `msgpack:"date"`
	Value float64   `msgpack:"value"`
}

// Month returns the observation month formatted as YYYY-MM.
func (o Observation) Month() string {
	return o.Date.Format(constants.DateTimeLayout)
}

// MarshalJSON renders the date as YYYY-MM-DD.
func (o Observation) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date  string  `json:"date"`
		Value float64 `json:"value"`
	}{o.Date.Format(observationDateLayout), o.Value})
}

// Result is the outcome of a Fetch. Empty and Failed results carry the
// synthetic fallback series so callers always have something to plot.
type Result struct {
	SeriesID     string        `json:"seriesId"`
	Status       Status        `json:"status"`
	Observations []Observation `json:"observations"`
	Fallback     bool          `json:"fallback"`
	Err          error         `json:"-"`
}

// MarshalJSON adds the error message, if any.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	out := struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(r)}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// ByMonth indexes observation values by YYYY-MM.
func (r Result) ByMonth() map[string]float64 {
	values := make(map[string]float64, len(r.Observations))
	for _, o := range r.Observations {
		values[o.Month()] = o.Value
	}
	return values
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCache memoizes successful fetches in store for ttl.
func WithCache(store cache.Store, ttl time.Duration) Option {
	return func(c *Client) {
		c.store = store
		c.ttl = ttl
	}
}

// Client talks to the FRED series observations API.
type Client struct {
	baseURL    string
	apiKey     string
	lookback   int
	httpClient *http.Client
	now        func() time.Time
	store      cache.Store
	ttl        time.Duration
	memo       *cache.Memo[[]Observation]
	logger     *zap.Logger
}

// NewClient creates a price index client from configuration.
func NewClient(conf config.PriceIndexConfig, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultFetchTimeout
	}
	baseURL := conf.BaseURL
	if baseURL == "" {
		baseURL = constants.DefaultPriceIndexBaseURL
	}
	lookback := conf.LookbackMonths
	if lookback <= 0 {
		lookback = constants.DefaultPriceIndexLookbackMonths
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     conf.APIKey,
		lookback:   lookback,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.memo = cache.NewMemo[[]Observation](c.store, "priceindex.Fetch", c.ttl, logger)
	return c
}

// Fetch returns the most recent observations of seriesID within the lookback
// window. A lookback of zero or less uses the configured default. Fetch never
// fails: problems are reported through the Result status.
func (c *Client) Fetch(ctx context.Context, seriesID string, lookbackMonths int) Result {
	if lookbackMonths <= 0 {
		lookbackMonths = c.lookback
	}
	result := Result{SeriesID: seriesID}

	var observations []Observation
	var err error
	switch {
	case strings.TrimSpace(seriesID) == "":
		err = fmt.Errorf("series id cannot be empty")
	case c.apiKey == "":
		err = ErrMissingAPIKey
	default:
		observations, err = c.memo.Do(ctx, []interface{}{c.baseURL, seriesID, lookbackMonths},
			func(ctx context.Context) ([]Observation, bool, error) {
				obs, err := c.fetchObservations(ctx, seriesID, lookbackMonths)
				return obs, len(obs) > 0, err
			})
	}

	switch {
	case err != nil:
		c.logger.Warn("price index fetch failed, using fallback series",
			zap.String("op", "priceindex.Fetch"),
			zap.String("series", seriesID),
			zap.Error(err),
		)
		result.Status = StatusFailed
		result.Err = err
	case len(observations) == 0:
		c.logger.Info("price index returned no observations, using fallback series",
			zap.String("op", "priceindex.Fetch"),
			zap.String("series", seriesID),
		)
		result.Status = StatusEmpty
	default:
		for i := range observations {
			observations[i].Date = datetime.MonthStart(observations[i].Date.UTC())
		}
		result.Status = StatusOK
		result.Observations = observations
		return result
	}

	result.Observations = Fallback(c.now())
	result.Fallback = true
	return result
}

type observationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
	ErrorMessage string `json:"error_message"`
}

func (c *Client) fetchObservations(ctx context.Context, seriesID string, lookbackMonths int) ([]Observation, error) {
	start := datetime.AddMonths(c.now(), -lookbackMonths)

	params := url.Values{}
	params.Set("series_id", seriesID)
	params.Set("api_key", c.apiKey)
	params.Set("file_type", "json")
	params.Set("observation_start", start.Format(observationDateLayout))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/series/observations?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	c.logger.Debug("fetching price index observations",
		zap.String("op", "priceindex.fetchObservations"),
		zap.String("series", seriesID),
		zap.String("start", start.Format(observationDateLayout)),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	var payload observationsResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&payload)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && payload.ErrorMessage != "" {
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, payload.ErrorMessage)
		}
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to parse response: %w", decodeErr)
	}

	observations := make([]Observation, 0, len(payload.Observations))
	for _, raw := range payload.Observations {
		// FRED marks missing values with "."
		if raw.Value == "." || raw.Value == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw.Value, 64)
		if err != nil {
			continue
		}
		date, err := datetime.ParseMonth(raw.Date)
		if err != nil {
			continue
		}
		observations = append(observations, Observation{Date: date, Value: value})
	}

	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].Date.Before(observations[j].Date)
	})
	if len(observations) > constants.PriceIndexMaxObservations {
		observations = observations[len(observations)-constants.PriceIndexMaxObservations:]
	}

	c.logger.Info("fetched price index observations",
		zap.String("op", "priceindex.fetchObservations"),
		zap.String("series", seriesID),
		zap.Int("count", len(observations)),
	)
	return observations, nil
}

// Fallback returns the synthetic series: one point per month for the twelve
// months ending the month before now, rising linearly.
func Fallback(now time.Time) []Observation {
	start := datetime.AddMonths(now.UTC(), -constants.PriceIndexFallbackPoints)
	points := make([]Observation, constants.PriceIndexFallbackPoints)
	for i := range points {
		points[i] = Observation{
			Date:  datetime.AddMonths(start, i),
			Value: mathutil.Round(fallbackBase + fallbackStep*float64(i)),
		}
	}
	return points
}
