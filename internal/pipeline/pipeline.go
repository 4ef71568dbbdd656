// Package pipeline orchestrates the field-survey ETL: ingest the survey
// table from the relational store, un-swap the mislabeled column pair,
// normalize categorical and numeric values, and enrich every field with its
// weather-station assignment from the remote mapping CSV.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/majindogo/field-survey-etl/internal/config"
	"github.com/majindogo/field-survey-etl/internal/observability"
	"github.com/majindogo/field-survey-etl/internal/table"
)

// ErrSchemaMismatch reports a configured column that the current table does
// not have. Per-step precondition checks raise it instead of letting an
// unrelated lookup failure surface later.
var ErrSchemaMismatch = errors.New("schema mismatch")

// Extractor pulls the survey dataset out of the relational store.
type Extractor interface {
	ExtractTable(ctx context.Context, connString, query string) (*table.Table, error)
}

// TableFetcher retrieves a remote CSV resource as a table.
type TableFetcher interface {
	FetchCSV(ctx context.Context, url string) (*table.Table, error)
}

// Step names used in logs and metrics labels.
const (
	stepIngest        = "ingest"
	stepCorrectLabels = "correct_labels"
	stepCorrectValues = "correct_values"
	stepMerge         = "merge"
)

// FieldDataProcessor runs the four transformation steps over one in-memory
// table. The configuration bundle is immutable after construction; the
// current table is mutable shared state, so a processor instance must not
// be used concurrently. Separate instances are independent.
type FieldDataProcessor struct {
	cfg       *config.Config
	extractor Extractor
	fetcher   TableFetcher
	logger    *slog.Logger
	metrics   *observability.Metrics

	tbl *table.Table
}

// New creates a FieldDataProcessor with no table loaded.
func New(cfg *config.Config, extractor Extractor, fetcher TableFetcher, logger *slog.Logger, metrics *observability.Metrics) *FieldDataProcessor {
	return &FieldDataProcessor{
		cfg:       cfg,
		extractor: extractor,
		fetcher:   fetcher,
		logger:    logger,
		metrics:   metrics,
	}
}

// Table returns the current table: nil before a successful ingest, and the
// last successful step's output after a mid-pipeline failure.
func (p *FieldDataProcessor) Table() *table.Table {
	return p.tbl
}

// Ingest runs the configured extraction query and replaces the current
// table with the result. Gateway failures propagate unchanged and leave the
// current table as it was.
func (p *FieldDataProcessor) Ingest(ctx context.Context) error {
	start := clock.Now()

	tbl, err := p.extractor.ExtractTable(ctx, p.cfg.DatabaseURL, p.cfg.SQLQuery)
	if err != nil {
		p.metrics.StepErrors.WithLabelValues(stepIngest).Inc()
		p.logger.Error("ingest failed", "error", err)
		return err
	}

	p.tbl = tbl
	p.metrics.RowsIngested.Add(float64(tbl.NumRows()))
	p.metrics.StepDuration.WithLabelValues(stepIngest).Observe(clock.Since(start).Seconds())
	p.logger.Info("survey data ingested", "rows", tbl.NumRows(), "columns", len(tbl.Columns))
	return nil
}

// CorrectColumnLabels exchanges the names of the configured mislabeled
// column pair without touching cell values. Running it twice restores the
// original mislabeling, so Process calls it exactly once.
func (p *FieldDataProcessor) CorrectColumnLabels() error {
	start := clock.Now()

	if err := p.requireColumns(stepCorrectLabels, p.cfg.SwapColumnA, p.cfg.SwapColumnB); err != nil {
		return err
	}

	if err := p.tbl.SwapColumns(p.cfg.SwapColumnA, p.cfg.SwapColumnB); err != nil {
		p.metrics.StepErrors.WithLabelValues(stepCorrectLabels).Inc()
		p.logger.Error("column swap failed", "error", err)
		return err
	}

	p.metrics.StepDuration.WithLabelValues(stepCorrectLabels).Observe(clock.Since(start).Seconds())
	p.logger.Info("swapped column labels", "a", p.cfg.SwapColumnA, "b", p.cfg.SwapColumnB)
	return nil
}

// CorrectValues rewrites every cell of the configured categorical column
// through the correction map (pass-through default) and replaces the
// configured numeric column with its absolute values. Both corrections
// touch every row unconditionally.
func (p *FieldDataProcessor) CorrectValues() error {
	start := clock.Now()

	if err := p.requireColumns(stepCorrectValues, p.cfg.CategoricalColumn, p.cfg.NumericColumn); err != nil {
		return err
	}

	corrected := p.countMapHits()
	if err := p.tbl.ApplyValueMap(p.cfg.CategoricalColumn, p.cfg.ValueCorrections); err != nil {
		p.metrics.StepErrors.WithLabelValues(stepCorrectValues).Inc()
		p.logger.Error("value correction failed", "error", err)
		return err
	}
	if err := p.tbl.AbsColumn(p.cfg.NumericColumn); err != nil {
		p.metrics.StepErrors.WithLabelValues(stepCorrectValues).Inc()
		p.logger.Error("sign correction failed", "error", err)
		return err
	}

	p.metrics.ValuesCorrected.Add(float64(corrected))
	p.metrics.StepDuration.WithLabelValues(stepCorrectValues).Observe(clock.Since(start).Seconds())
	p.logger.Info("corrected values",
		"categorical_column", p.cfg.CategoricalColumn,
		"numeric_column", p.cfg.NumericColumn,
		"cells_remapped", corrected)
	return nil
}

// MergeWeatherStationData fetches the field-to-station mapping CSV and
// left-joins it onto the current table: every survey row is kept, matched
// rows gain the station columns, unmatched rows get nil. Duplicate mapping
// keys fan out into extra rows. Fetcher failures propagate unchanged and
// leave the table in its pre-merge state.
func (p *FieldDataProcessor) MergeWeatherStationData(ctx context.Context) error {
	start := clock.Now()

	if err := p.requireColumns(stepMerge, p.cfg.JoinKey); err != nil {
		return err
	}

	mapping, err := p.fetcher.FetchCSV(ctx, p.cfg.WeatherMappingURL)
	if err != nil {
		p.metrics.StepErrors.WithLabelValues(stepMerge).Inc()
		p.logger.Error("fetching weather station mapping failed", "error", err)
		return err
	}

	if err := p.tbl.LeftJoin(mapping, p.cfg.JoinKey); err != nil {
		p.metrics.StepErrors.WithLabelValues(stepMerge).Inc()
		p.logger.Error("merging weather station mapping failed", "error", err)
		return err
	}

	p.metrics.RowsMerged.Add(float64(p.tbl.NumRows()))
	p.metrics.StepDuration.WithLabelValues(stepMerge).Observe(clock.Since(start).Seconds())
	p.logger.Info("merged weather station data", "rows", p.tbl.NumRows(), "key", p.cfg.JoinKey)
	return nil
}

// Process runs ingest, label correction, value correction, and the weather
// merge in that fixed order. The first failure aborts the remaining steps
// and is surfaced unchanged; the current table keeps whatever state the
// last successful step produced. Call once per desired result.
func (p *FieldDataProcessor) Process(ctx context.Context) (*table.Table, error) {
	p.metrics.PipelineRuns.Inc()
	p.logger.Info("starting field data pipeline")
	start := clock.Now()

	steps := []func() error{
		func() error { return p.Ingest(ctx) },
		p.CorrectColumnLabels,
		p.CorrectValues,
		func() error { return p.MergeWeatherStationData(ctx) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			p.metrics.PipelineFailures.Inc()
			p.logger.Error("field data pipeline aborted", "error", err)
			return nil, err
		}
	}

	p.logger.Info("field data pipeline completed",
		"rows", p.tbl.NumRows(),
		"columns", len(p.tbl.Columns),
		"duration", clock.Since(start))
	return p.tbl, nil
}

// requireColumns checks the step's precondition that every named column
// exists in the current table.
func (p *FieldDataProcessor) requireColumns(step string, names ...string) error {
	if p.tbl == nil {
		err := fmt.Errorf("%w: no table ingested", ErrSchemaMismatch)
		p.metrics.StepErrors.WithLabelValues(step).Inc()
		p.logger.Error("step precondition failed", "step", step, "error", err)
		return err
	}
	for _, name := range names {
		if !p.tbl.HasColumn(name) {
			err := fmt.Errorf("%w: column %q not in table", ErrSchemaMismatch, name)
			p.metrics.StepErrors.WithLabelValues(step).Inc()
			p.logger.Error("step precondition failed", "step", step, "error", err)
			return err
		}
	}
	return nil
}

// countMapHits counts the categorical cells the correction map will rewrite.
func (p *FieldDataProcessor) countMapHits() int {
	cells, err := p.tbl.Column(p.cfg.CategoricalColumn)
	if err != nil {
		return 0
	}
	n := 0
	for _, c := range cells {
		if s, ok := c.(string); ok {
			if _, hit := p.cfg.ValueCorrections[s]; hit {
				n++
			}
		}
	}
	return n
}
