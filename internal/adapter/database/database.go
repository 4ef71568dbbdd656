// Package database is the gateway to the relational survey store. It opens
// a connection from a URL-style connection string, runs the extraction
// query, and scans the full result set into a table.Table.
//
// Supported schemes: sqlite://, postgres://, mysql://, sqlserver://. SQLite
// paths follow the common URI convention: sqlite:///relative.db and
// sqlite:////absolute/path.db.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/majindogo/field-survey-etl/internal/table"
)

// Failure kinds. Callers classify with errors.Is; the gateway never retries.
var (
	ErrConnection     = errors.New("connection failed")
	ErrQueryExecution = errors.New("query execution failed")
	ErrEmptyResult    = errors.New("query returned no rows")
)

// Conn is an open connection to the survey store.
type Conn struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open parses the connection string, opens the store, and verifies
// reachability with a ping. Any failure is an ErrConnection.
func Open(ctx context.Context, connString string, logger *slog.Logger) (*Conn, error) {
	driver, dsn, err := ParseConnString(connString)
	if err != nil {
		logger.Error("invalid connection string", "error", err)
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		logger.Error("open database failed", "driver", driver, "error", err)
		return nil, fmt.Errorf("%w: open %s: %v", ErrConnection, driver, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		logger.Error("database unreachable", "driver", driver, "error", err)
		return nil, fmt.Errorf("%w: ping %s: %v", ErrConnection, driver, err)
	}

	logger.Info("database connection established", "driver", driver)
	return &Conn{db: db, logger: logger}, nil
}

// QueryTable runs the query and scans every row into a Table. A result with
// zero rows is an ErrEmptyResult; any other failure is an ErrQueryExecution.
func (c *Conn) QueryTable(ctx context.Context, query string) (*table.Table, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		c.logger.Error("query failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrQueryExecution, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		c.logger.Error("reading result columns failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrQueryExecution, err)
	}

	tbl := table.New(cols...)
	for rows.Next() {
		cells := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			c.logger.Error("row scan failed", "error", err)
			return nil, fmt.Errorf("%w: %v", ErrQueryExecution, err)
		}
		for i, v := range cells {
			// Some drivers hand text back as raw bytes.
			if b, ok := v.([]byte); ok {
				cells[i] = string(b)
			}
		}
		if err := tbl.AppendRow(cells...); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQueryExecution, err)
		}
	}
	if err := rows.Err(); err != nil {
		c.logger.Error("result iteration failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrQueryExecution, err)
	}

	if tbl.NumRows() == 0 {
		c.logger.Error("query returned an empty result set")
		return nil, ErrEmptyResult
	}

	c.logger.Info("query executed", "rows", tbl.NumRows(), "columns", len(cols))
	return tbl, nil
}

// Close releases the underlying connection pool.
func (c *Conn) Close() error {
	return c.db.Close()
}

// Source mints connections and implements the pipeline's extractor contract:
// one connection per extraction, closed when the query completes.
type Source struct {
	Logger *slog.Logger
}

// NewSource creates a Source.
func NewSource(logger *slog.Logger) *Source {
	return &Source{Logger: logger}
}

// ExtractTable opens the store, runs the query, and returns the result.
func (s *Source) ExtractTable(ctx context.Context, connString, query string) (*table.Table, error) {
	conn, err := Open(ctx, connString, s.Logger)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.QueryTable(ctx, query)
}

// ParseConnString maps a URL-style connection string onto a registered
// database/sql driver name and its DSN.
func ParseConnString(connString string) (driver, dsn string, err error) {
	scheme, rest, ok := strings.Cut(connString, "://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q has no scheme", ErrConnection, connString)
	}

	switch scheme {
	case "sqlite", "sqlite3":
		return "sqlite", sqlitePath(rest), nil
	case "postgres", "postgresql":
		// pgx accepts the full URL.
		return "pgx", connString, nil
	case "mysql":
		// The mysql driver wants user:pass@tcp(host:port)/db, without the scheme.
		return "mysql", rest, nil
	case "sqlserver", "mssql":
		return "sqlserver", "sqlserver://" + rest, nil
	default:
		return "", "", fmt.Errorf("%w: unsupported scheme %q", ErrConnection, scheme)
	}
}

// sqlitePath resolves the path part of a sqlite:// URL: one leading slash
// marks a relative path, two an absolute one, so sqlite:///survey.db opens
// ./survey.db and sqlite:////data/survey.db opens /data/survey.db.
func sqlitePath(rest string) string {
	return strings.TrimPrefix(rest, "/")
}
