// Package csvfetch retrieves remote CSV resources and parses them into
// tables. It does no caching and no retrying; a failure is always surfaced
// to the calling pipeline step.
package csvfetch

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/majindogo/field-survey-etl/internal/table"
)

// Failure kinds. Network-level problems are ErrFetch; a response body that
// is not parseable as delimited data, including an empty body, is an
// ErrMalformedResource.
var (
	ErrFetch             = errors.New("fetch failed")
	ErrMalformedResource = errors.New("malformed CSV resource")
)

const utf8BOM = "\uFEFF"

// Fetcher downloads CSV resources over HTTP.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

// New creates a Fetcher with the given per-request timeout.
func New(timeout time.Duration, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// FetchCSV retrieves the resource at url and parses it into a Table whose
// first record supplies the column names. Every cell is a string.
func (f *Fetcher) FetchCSV(ctx context.Context, url string) (*table.Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.logger.Error("building CSV request failed", "url", url, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Error("CSV request failed", "url", url, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		f.logger.Error("CSV request returned error status", "url", url, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d: %s", ErrFetch, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	tbl, err := parse(resp.Body)
	if err != nil {
		f.logger.Error("parsing CSV failed", "url", url, "error", err)
		return nil, err
	}

	f.logger.Info("CSV fetched", "url", url, "rows", tbl.NumRows(), "columns", len(tbl.Columns))
	return tbl, nil
}

// parse reads delimited data into a Table. The csv reader enforces a
// consistent field count per record, so ragged input fails here.
func parse(r io.Reader) (*table.Table, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResource, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedResource)
	}

	header := records[0]
	// Files saved from spreadsheets often carry a UTF-8 BOM on the first cell.
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	tbl := table.New(header...)
	for _, rec := range records[1:] {
		cells := make([]any, len(rec))
		for i, v := range rec {
			cells[i] = v
		}
		if err := tbl.AppendRow(cells...); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResource, err)
		}
	}
	return tbl, nil
}
