package weather_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majindogo/field-survey-etl/internal/table"
	"github.com/majindogo/field-survey-etl/internal/weather"
)

type stubFetcher struct {
	tbl *table.Table
	err error
	url string
}

func (s *stubFetcher) FetchCSV(_ context.Context, url string) (*table.Table, error) {
	s.url = url
	return s.tbl, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func patternByName(t *testing.T, name string) weather.Pattern {
	t.Helper()
	for _, p := range weather.DefaultPatterns() {
		if p.Measurement == name {
			return p
		}
	}
	t.Fatalf("no pattern named %q", name)
	return weather.Pattern{}
}

func TestExtractMeasurement(t *testing.T) {
	tests := []struct {
		name        string
		measurement string
		message     string
		want        float64
	}{
		{"rainfall with space", "Rainfall", "Rainfall measured at 12.5 mm", 12.5},
		{"rainfall without space", "Rainfall", "10mm of rain fell", 10},
		{"temperature", "Temperature", "Temperature of 27.5 C recorded", 27.5},
		{"pollution equals form", "Pollution_level", "Pollution_level = -3.2 today", -3.2},
		{"pollution prose form", "Pollution_level", "Pollution at 4.1 near the dam", 4.1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := weather.ExtractMeasurement(patternByName(t, tc.measurement), tc.message)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}

	t.Run("no match yields NaN", func(t *testing.T) {
		got := weather.ExtractMeasurement(patternByName(t, "Rainfall"), "clear skies all week")
		assert.True(t, math.IsNaN(got))
	})
}

func stationData(t *testing.T) *table.Table {
	t.Helper()
	tbl := table.New(weather.StationColumn, weather.MessageColumn)
	require.NoError(t, tbl.AppendRow("0", "Rainfall measured at 10 mm"))
	require.NoError(t, tbl.AppendRow("0", "Rainfall measured at 20 mm"))
	require.NoError(t, tbl.AppendRow("1", "Temperature of 30 C recorded"))
	require.NoError(t, tbl.AppendRow("1", "station offline"))
	return tbl
}

func TestProcessorProcess(t *testing.T) {
	t.Run("adds one column per measurement", func(t *testing.T) {
		f := &stubFetcher{tbl: stationData(t)}
		p := weather.NewProcessor(f, "https://example.com/stations.csv", discardLogger())

		tbl, err := p.Process(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/stations.csv", f.url)

		for _, pat := range weather.DefaultPatterns() {
			assert.True(t, tbl.HasColumn(pat.Measurement), pat.Measurement)
		}

		rain, err := tbl.Column("Rainfall")
		require.NoError(t, err)
		require.Len(t, rain, 4)
		assert.Equal(t, 10.0, rain[0])
		assert.Equal(t, 20.0, rain[1])
		assert.True(t, math.IsNaN(rain[2].(float64)))
		assert.True(t, math.IsNaN(rain[3].(float64)))
	})

	t.Run("fetch error propagates", func(t *testing.T) {
		wrapped := errors.New("gateway timeout")
		p := weather.NewProcessor(&stubFetcher{err: wrapped}, "https://example.com/stations.csv", discardLogger())

		_, err := p.Process(context.Background())
		require.ErrorIs(t, err, wrapped)
	})

	t.Run("missing message column", func(t *testing.T) {
		tbl := table.New(weather.StationColumn)
		require.NoError(t, tbl.AppendRow("0"))
		p := weather.NewProcessor(&stubFetcher{tbl: tbl}, "https://example.com/stations.csv", discardLogger())

		_, err := p.Process(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), weather.MessageColumn)
	})
}

func TestStationMeans(t *testing.T) {
	f := &stubFetcher{tbl: stationData(t)}
	p := weather.NewProcessor(f, "https://example.com/stations.csv", discardLogger())
	tbl, err := p.Process(context.Background())
	require.NoError(t, err)

	t.Run("NaN cells are skipped", func(t *testing.T) {
		means, err := weather.StationMeans(tbl, "Rainfall")
		require.NoError(t, err)
		require.Contains(t, means, "0")
		assert.InDelta(t, 15.0, means["0"], 1e-9)
		assert.NotContains(t, means, "1", "stations with no rainfall messages are omitted")
	})

	t.Run("unknown measurement column", func(t *testing.T) {
		_, err := weather.StationMeans(tbl, "Humidity")
		require.ErrorIs(t, err, table.ErrUnknownColumn)
	})
}
