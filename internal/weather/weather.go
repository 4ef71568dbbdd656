// Package weather extracts numeric measurements from raw weather-station
// messages and aggregates them per station. Station messages are free text
// ("Temperature measured at 27.5 C") fetched from a published CSV, so values
// are recovered with per-measurement regular expressions.
package weather

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"

	"github.com/majindogo/field-survey-etl/internal/table"
)

// Column names used by the published station-data CSV.
const (
	StationColumn = "Weather_station_ID"
	MessageColumn = "Message"
)

// Pattern associates a measurement name with the expression that recovers
// its value from a station message. The first non-empty capture group is
// parsed as the measurement value.
type Pattern struct {
	Measurement string
	Expr        *regexp.Regexp
}

// DefaultPatterns covers the three measurement kinds stations report.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{Measurement: "Rainfall", Expr: regexp.MustCompile(`(\d+(\.\d+)?)\s?mm`)},
		{Measurement: "Temperature", Expr: regexp.MustCompile(`(\d+(\.\d+)?)\s?C`)},
		{Measurement: "Pollution_level", Expr: regexp.MustCompile(`=\s*(-?\d+(\.\d+)?)|Pollution at \s*(-?\d+(\.\d+)?)`)},
	}
}

// ExtractMeasurement applies p to a raw message and returns the measured
// value. Messages that do not mention the measurement yield NaN so that
// downstream means can skip them.
func ExtractMeasurement(p Pattern, message string) float64 {
	groups := p.Expr.FindStringSubmatch(message)
	if groups == nil {
		return math.NaN()
	}
	for _, g := range groups[1:] {
		if g == "" {
			continue
		}
		v, err := strconv.ParseFloat(g, 64)
		if err != nil {
			continue
		}
		return v
	}
	return math.NaN()
}

// TableFetcher retrieves a published CSV resource as a table.
type TableFetcher interface {
	FetchCSV(ctx context.Context, url string) (*table.Table, error)
}

// Processor turns the raw station-data CSV into a table with one numeric
// column per measurement kind.
type Processor struct {
	fetcher  TableFetcher
	logger   *slog.Logger
	url      string
	patterns []Pattern
}

func NewProcessor(fetcher TableFetcher, url string, logger *slog.Logger) *Processor {
	return &Processor{
		fetcher:  fetcher,
		logger:   logger,
		url:      url,
		patterns: DefaultPatterns(),
	}
}

// Process fetches the station-data CSV and appends one float64 column per
// measurement, extracted from each row's message. Rows whose message does
// not mention a measurement carry NaN in that column.
func (p *Processor) Process(ctx context.Context) (*table.Table, error) {
	tbl, err := p.fetcher.FetchCSV(ctx, p.url)
	if err != nil {
		return nil, err
	}
	if !tbl.HasColumn(MessageColumn) {
		return nil, fmt.Errorf("station data is missing the %q column", MessageColumn)
	}

	messages, err := tbl.Column(MessageColumn)
	if err != nil {
		return nil, err
	}
	for _, pat := range p.patterns {
		cells := make([]any, len(messages))
		hits := 0
		for i, m := range messages {
			s, _ := m.(string)
			v := ExtractMeasurement(pat, s)
			if !math.IsNaN(v) {
				hits++
			}
			cells[i] = v
		}
		if err := tbl.AddColumn(pat.Measurement, cells); err != nil {
			return nil, err
		}
		p.logger.Debug("extracted measurement column",
			"measurement", pat.Measurement,
			"messages", len(messages),
			"matched", hits,
		)
	}
	return tbl, nil
}

// StationMeans averages a measurement column per station, skipping NaN
// cells. Stations whose every message misses the measurement are omitted.
func StationMeans(tbl *table.Table, measurement string) (map[string]float64, error) {
	stations, err := tbl.Column(StationColumn)
	if err != nil {
		return nil, err
	}
	values, err := tbl.Column(measurement)
	if err != nil {
		return nil, err
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i, s := range stations {
		v, ok := table.AsFloat(values[i])
		if !ok || math.IsNaN(v) {
			continue
		}
		key := table.KeyString(s)
		sums[key] += v
		counts[key]++
	}

	means := make(map[string]float64, len(sums))
	for k, sum := range sums {
		means[k] = sum / float64(counts[k])
	}
	return means, nil
}
