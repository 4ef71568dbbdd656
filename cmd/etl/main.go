package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/majindogo/field-survey-etl/internal/adapter/csvfetch"
	"github.com/majindogo/field-survey-etl/internal/adapter/database"
	kafkaadapter "github.com/majindogo/field-survey-etl/internal/adapter/kafka"
	"github.com/majindogo/field-survey-etl/internal/config"
	"github.com/majindogo/field-survey-etl/internal/observability"
	"github.com/majindogo/field-survey-etl/internal/pipeline"
	"github.com/majindogo/field-survey-etl/internal/table"
	"github.com/majindogo/field-survey-etl/internal/weather"
)

var (
	outPath         string
	stationsOutPath string
)

var rootCmd = &cobra.Command{
	Use:   "etl",
	Short: "Run the field-survey ETL pipeline",
	Long: `Ingests the farm survey database, corrects the swapped crop-type and
annual-yield column labels, canonicalizes crop names and elevations, and
enriches each field with its assigned weather station. Configuration comes
from the environment (DB_URL, WEATHER_MAPPING_URL, ...).`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&outPath, "out", "", "write the processed table as CSV to this file (default stdout)")
	rootCmd.Flags().StringVar(&stationsOutPath, "stations-out", "", "also process station messages and write per-station measurement means to this file")
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source := database.NewSource(logger)
	fetcher := csvfetch.New(cfg.FetchTimeout, logger)

	p := pipeline.New(cfg, source, fetcher, logger, metrics)
	tbl, err := p.Process(ctx)
	if err != nil {
		pushMetrics(cfg, logger)
		return err
	}

	if err := writeTableCSV(tbl, outPath); err != nil {
		return fmt.Errorf("write processed table: %w", err)
	}

	if stationsOutPath != "" {
		if err := writeStationMeans(ctx, cfg, fetcher, logger); err != nil {
			return fmt.Errorf("write station means: %w", err)
		}
	}

	if cfg.KafkaEnabled {
		publisher := kafkaadapter.NewPublisher(cfg, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		if err := publisher.PublishTable(ctx, tbl, cfg.JoinKey); err != nil {
			return fmt.Errorf("publish processed records: %w", err)
		}
	}

	pushMetrics(cfg, logger)
	logger.Info("pipeline complete", "rows", tbl.NumRows(), "columns", len(tbl.Columns))
	return nil
}

func pushMetrics(cfg *config.Config, logger *slog.Logger) {
	if cfg.PushgatewayURL == "" {
		return
	}
	if err := observability.PushMetrics(cfg.PushgatewayURL, "field_survey_etl", logger); err != nil {
		logger.Error("metrics push failed", "error", err)
	}
}

// writeTableCSV renders the processed table as CSV. NULL enrichment cells
// render as empty strings.
func writeTableCSV(tbl *table.Table, path string) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(tbl.Columns); err != nil {
		return err
	}
	record := make([]string, len(tbl.Columns))
	for _, row := range tbl.Rows {
		for i, cell := range row {
			record[i] = cellString(cell)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func cellString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(c, 10)
	default:
		return fmt.Sprint(c)
	}
}

func writeStationMeans(ctx context.Context, cfg *config.Config, fetcher *csvfetch.Fetcher, logger *slog.Logger) error {
	proc := weather.NewProcessor(fetcher, cfg.WeatherStationURL, logger)
	stationTbl, err := proc.Process(ctx)
	if err != nil {
		return err
	}

	f, err := os.Create(stationsOutPath)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"Weather_station", "Measurement", "Mean"}); err != nil {
		return err
	}
	for _, pat := range weather.DefaultPatterns() {
		means, err := weather.StationMeans(stationTbl, pat.Measurement)
		if err != nil {
			return err
		}
		stations := make([]string, 0, len(means))
		for s := range means {
			stations = append(stations, s)
		}
		sort.Strings(stations)
		for _, s := range stations {
			row := []string{s, pat.Measurement, strconv.FormatFloat(means[s], 'g', -1, 64)}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
