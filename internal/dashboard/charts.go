package dashboard

import (
	"fmt"

	"github.com/iwvelando/tireintel/internal/fetch/priceindex"
	"github.com/iwvelando/tireintel/internal/forecast"
	"github.com/iwvelando/tireintel/pkg/format"
	"github.com/iwvelando/tireintel/pkg/mathutil"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Chart trace kinds and axes.
const (
	KindBar  = "bar"
	KindLine = "line"

	AxisSize  = "size"
	AxisPrice = "price"
)

// Point is one chart value.
type Point struct {
	Month string  `json:"month"`
	Value float64 `json:"value"`
}

// Series is one chart trace. Size traces use the primary axis and price
// traces the secondary axis.
type Series struct {
	Name   string  `json:"name"`
	Kind   string  `json:"kind"`
	Axis   string  `json:"axis"`
	Dashed bool    `json:"dashed,omitempty"`
	Points []Point `json:"points"`
}

// Card is a headline metric.
type Card struct {
	Label  string  `json:"label"`
	Value  string  `json:"value"`
	Delta  string  `json:"delta,omitempty"`
	Amount float64 `json:"amount"`
}

// AnnualTotal aggregates one calendar year.
type AnnualTotal struct {
	Year           int     `json:"year"`
	Months         int     `json:"months"`
	ForecastMonths int     `json:"forecastMonths"`
	MarketSize     float64 `json:"marketSize"`
	AvgPrice       float64 `json:"avgPrice"`
}

const cardMonthLayout = "Jan 2006"

// BuildSeries returns the historical and forecast size bars, the price line
// and, when index is set, the reference index line.
func BuildSeries(records []forecast.MonthlyRecord, index *priceindex.Result) []Series {
	historical, projected := forecast.Split(records)

	series := []Series{
		{Name: "Historical Size ($B)", Kind: KindBar, Axis: AxisSize, Points: sizePoints(historical)},
		{Name: "Forecasted Size ($B)", Kind: KindBar, Axis: AxisSize, Points: sizePoints(projected)},
	}

	price := Series{Name: "Avg Unit Price ($)", Kind: KindLine, Axis: AxisPrice, Dashed: len(projected) > 0}
	price.Points = make([]Point, 0, len(records))
	for _, r := range records {
		price.Points = append(price.Points, Point{Month: r.Month(), Value: mathutil.Round(r.AvgPrice)})
	}
	series = append(series, price)

	if index != nil {
		ref := Series{Name: fmt.Sprintf("%s Index", index.SeriesID), Kind: KindLine, Axis: AxisPrice}
		if index.Fallback {
			ref.Name += " (synthetic)"
			ref.Dashed = true
		}
		ref.Points = make([]Point, 0, len(index.Observations))
		for _, o := range index.Observations {
			ref.Points = append(ref.Points, Point{Month: o.Month(), Value: o.Value})
		}
		series = append(series, ref)
	}
	return series
}

func sizePoints(records []forecast.MonthlyRecord) []Point {
	points := make([]Point, 0, len(records))
	for _, r := range records {
		points = append(points, Point{Month: r.Month(), Value: mathutil.RoundTo(r.MarketSize, 4)})
	}
	return points
}

// BuildCards returns the peak forecast month, the end price against the first
// price, and the forecast-period total. Forecast cards are omitted when the
// series has no forecast segment.
func BuildCards(records []forecast.MonthlyRecord) []Card {
	if len(records) == 0 {
		return []Card{}
	}
	_, projected := forecast.Split(records)
	cards := make([]Card, 0, 3)

	if len(projected) > 0 {
		sizes := marketSizes(projected)
		peak := floats.MaxIdx(sizes)
		cards = append(cards, Card{
			Label:  "Proj. Peak Monthly Size",
			Value:  format.Billions(sizes[peak]),
			Delta:  projected[peak].Date.Format(cardMonthLayout),
			Amount: sizes[peak],
		})
	}

	first, last := records[0], records[len(records)-1]
	label := "End Price"
	if len(projected) > 0 {
		label = "Proj. End Price"
	}
	cards = append(cards, Card{
		Label:  fmt.Sprintf("%s (%s)", label, last.Date.Format(cardMonthLayout)),
		Value:  format.WholeCurrency(last.AvgPrice),
		Delta:  format.SignedPercent(mathutil.PercentChange(first.AvgPrice, last.AvgPrice)) + " Total",
		Amount: last.AvgPrice,
	})

	if len(projected) > 0 {
		total := floats.Sum(marketSizes(projected))
		cards = append(cards, Card{
			Label:  "Forecast Period Total",
			Value:  format.Billions(total),
			Delta:  fmt.Sprintf("%d months", len(projected)),
			Amount: total,
		})
	}
	return cards
}

// AnnualTotals sums market size and averages price per calendar year.
func AnnualTotals(records []forecast.MonthlyRecord) []AnnualTotal {
	totals := []AnnualTotal{}
	for start := 0; start < len(records); {
		year := records[start].Date.Year()
		end := start
		forecastMonths := 0
		for end < len(records) && records[end].Date.Year() == year {
			if records[end].Segment == forecast.SegmentForecast {
				forecastMonths++
			}
			end++
		}

		group := records[start:end]
		totals = append(totals, AnnualTotal{
			Year:           year,
			Months:         len(group),
			ForecastMonths: forecastMonths,
			MarketSize:     mathutil.RoundTo(floats.Sum(marketSizes(group)), 4),
			AvgPrice:       mathutil.Round(stat.Mean(avgPrices(group), nil)),
		})
		start = end
	}
	return totals
}

func marketSizes(records []forecast.MonthlyRecord) []float64 {
	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.MarketSize
	}
	return values
}

func avgPrices(records []forecast.MonthlyRecord) []float64 {
	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.AvgPrice
	}
	return values
}
