package database

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newSurveyDB creates a throwaway SQLite database on disk and returns its
// connection string.
func newSurveyDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "survey.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE geographic_features (
		Field_ID INTEGER,
		Elevation REAL,
		Crop_type TEXT
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO geographic_features VALUES
		(1, -120.5, 'cassaval'),
		(2, 300.0, 'wheat'),
		(3, 15.0, NULL)`)
	require.NoError(t, err)

	return "sqlite:///" + path
}

func TestParseConnString(t *testing.T) {
	cases := []struct {
		in         string
		wantDriver string
		wantDSN    string
	}{
		{"sqlite:///survey.db", "sqlite", "survey.db"},
		{"sqlite:////data/survey.db", "sqlite", "/data/survey.db"},
		{"sqlite://:memory:", "sqlite", ":memory:"},
		{"postgres://u:p@host:5432/db", "pgx", "postgres://u:p@host:5432/db"},
		{"postgresql://u:p@host/db", "pgx", "postgresql://u:p@host/db"},
		{"mysql://u:p@tcp(host:3306)/db", "mysql", "u:p@tcp(host:3306)/db"},
		{"sqlserver://u:p@host?database=db", "sqlserver", "sqlserver://u:p@host?database=db"},
		{"mssql://u:p@host?database=db", "sqlserver", "sqlserver://u:p@host?database=db"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			driver, dsn, err := ParseConnString(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.wantDriver, driver)
			assert.Equal(t, tc.wantDSN, dsn)
		})
	}

	t.Run("missing scheme", func(t *testing.T) {
		_, _, err := ParseConnString("just-a-path.db")
		require.ErrorIs(t, err, ErrConnection)
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		_, _, err := ParseConnString("bolt://host:7687")
		require.ErrorIs(t, err, ErrConnection)
	})
}

func TestOpen_BadConnString(t *testing.T) {
	_, err := Open(context.Background(), "nonsense", discardLogger())
	require.ErrorIs(t, err, ErrConnection)
}

func TestQueryTable(t *testing.T) {
	ctx := context.Background()
	connString := newSurveyDB(t)

	conn, err := Open(ctx, connString, discardLogger())
	require.NoError(t, err)
	defer conn.Close()

	t.Run("scans all rows and columns", func(t *testing.T) {
		tbl, err := conn.QueryTable(ctx, "SELECT * FROM geographic_features ORDER BY Field_ID")
		require.NoError(t, err)

		assert.Equal(t, []string{"Field_ID", "Elevation", "Crop_type"}, tbl.Columns)
		require.Equal(t, 3, tbl.NumRows())

		elev, err := tbl.Cell(0, "Elevation")
		require.NoError(t, err)
		assert.Equal(t, -120.5, elev)

		crop, err := tbl.Cell(0, "Crop_type")
		require.NoError(t, err)
		assert.Equal(t, "cassaval", crop)

		null, err := tbl.Cell(2, "Crop_type")
		require.NoError(t, err)
		assert.Nil(t, null)
	})

	t.Run("empty result", func(t *testing.T) {
		_, err := conn.QueryTable(ctx, "SELECT * FROM geographic_features WHERE Field_ID > 999")
		require.ErrorIs(t, err, ErrEmptyResult)
	})

	t.Run("bad SQL", func(t *testing.T) {
		_, err := conn.QueryTable(ctx, "SELECT * FROM no_such_table")
		require.ErrorIs(t, err, ErrQueryExecution)
	})
}

func TestSource_ExtractTable(t *testing.T) {
	ctx := context.Background()
	connString := newSurveyDB(t)
	src := NewSource(discardLogger())

	tbl, err := src.ExtractTable(ctx, connString, "SELECT Field_ID FROM geographic_features")
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.NumRows())

	_, err = src.ExtractTable(ctx, "bolt://nope", "SELECT 1")
	require.ErrorIs(t, err, ErrConnection)
}
