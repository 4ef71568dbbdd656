// Package table holds the in-memory tabular structure the ETL pipeline
// operates on, together with the column-level operations the transform
// steps need: renames, the mislabeled-pair swap, value-map correction,
// sign normalization, and the outer-preserving join.
//
// A Table is ordered columns plus rows of untyped cells. A nil cell is a
// SQL NULL or an unmatched join value. Cells arriving from database/sql
// are int64, float64, string, bool, or time.Time depending on the driver;
// cells arriving from CSV are always strings. Operations mutate the Table
// in place; none of them is safe for concurrent use.
package table

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnknownColumn reports an operation against a column the table does not have.
var ErrUnknownColumn = errors.New("unknown column")

// Table is a small in-memory dataset: named columns and rows of cells.
type Table struct {
	Columns []string
	Rows    [][]any
}

// New creates an empty Table with the given column names.
func New(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// AppendRow adds one row. The row must have exactly one cell per column.
func (t *Table) AppendRow(row ...any) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return len(t.Rows) }

// ColumnIndex returns the position of the named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.ColumnIndex(name)
	return ok
}

// Cell returns the value at (row, column).
func (t *Table) Cell(row int, column string) (any, error) {
	i, ok := t.ColumnIndex(column)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
	if row < 0 || row >= len(t.Rows) {
		return nil, fmt.Errorf("row %d out of range", row)
	}
	return t.Rows[row][i], nil
}

// Column returns all cells of the named column in row order.
func (t *Table) Column(name string) ([]any, error) {
	i, ok := t.ColumnIndex(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	out := make([]any, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out, nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	c := New(t.Columns...)
	c.Rows = make([][]any, len(t.Rows))
	for i, row := range t.Rows {
		c.Rows[i] = append([]any(nil), row...)
	}
	return c
}

// RenameColumn changes a column's name. The new name must not collide with
// an existing column.
func (t *Table) RenameColumn(old, new string) error {
	i, ok := t.ColumnIndex(old)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, old)
	}
	if old != new && t.HasColumn(new) {
		return fmt.Errorf("column %q already exists", new)
	}
	t.Columns[i] = new
	return nil
}

// SwapColumns exchanges the names of two columns without touching cell
// values. The swap goes through a scratch name so that each individual
// rename stays collision-free: a -> scratch, b -> a, scratch -> b. The
// scratch name is derived by appending a marker until it collides with
// nothing; the loop is bounded because the column set is finite.
func (t *Table) SwapColumns(a, b string) error {
	if !t.HasColumn(a) {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, a)
	}
	if !t.HasColumn(b) {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, b)
	}
	if a == b {
		return nil
	}

	scratch := a + "_swap"
	for t.HasColumn(scratch) {
		scratch += "_swap"
	}

	if err := t.RenameColumn(a, scratch); err != nil {
		return err
	}
	if err := t.RenameColumn(b, a); err != nil {
		return err
	}
	return t.RenameColumn(scratch, b)
}

// ApplyValueMap replaces every cell in the named column whose string value
// is a key of m with the mapped value. Cells that are not keys of m, and
// cells that are not strings, pass through untouched.
func (t *Table) ApplyValueMap(column string, m map[string]string) error {
	i, ok := t.ColumnIndex(column)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
	for _, row := range t.Rows {
		s, isStr := row[i].(string)
		if !isStr {
			continue
		}
		if v, hit := m[s]; hit {
			row[i] = v
		}
	}
	return nil
}

// AbsColumn replaces every numeric cell in the named column with its
// absolute value. Integer and float cells keep their type; numeric strings
// are rewritten in place as strings. Nil and non-numeric cells are left alone.
func (t *Table) AbsColumn(column string) error {
	i, ok := t.ColumnIndex(column)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
	for _, row := range t.Rows {
		switch v := row[i].(type) {
		case int64:
			if v < 0 {
				row[i] = -v
			}
		case int:
			if v < 0 {
				row[i] = -v
			}
		case float64:
			row[i] = math.Abs(v)
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				continue
			}
			if f < 0 {
				row[i] = strconv.FormatFloat(-f, 'f', -1, 64)
			}
		}
	}
	return nil
}

// LeftJoin merges another table into this one on the named key column.
// Every existing row is kept: rows whose key matches one or more rows of
// other gain other's non-key columns (duplicated keys fan out into extra
// rows), rows with no match get nil for those columns. Key cells are
// compared by canonical string form so an int64 1 from SQL matches a "1"
// from CSV. Other's non-key column names must not collide with existing
// column names.
func (t *Table) LeftJoin(other *Table, key string) error {
	if !t.HasColumn(key) {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, key)
	}
	rightKey, ok := other.ColumnIndex(key)
	if !ok {
		return fmt.Errorf("%w: %q in joined table", ErrUnknownColumn, key)
	}

	extraCols := make([]string, 0, len(other.Columns)-1)
	extraIdx := make([]int, 0, len(other.Columns)-1)
	for i, c := range other.Columns {
		if i == rightKey {
			continue
		}
		if t.HasColumn(c) {
			return fmt.Errorf("column %q exists in both tables", c)
		}
		extraCols = append(extraCols, c)
		extraIdx = append(extraIdx, i)
	}

	index := make(map[string][]int, len(other.Rows))
	for i, row := range other.Rows {
		k := KeyString(row[rightKey])
		index[k] = append(index[k], i)
	}

	leftKey, _ := t.ColumnIndex(key)
	joined := make([][]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		matches := index[KeyString(row[leftKey])]
		if len(matches) == 0 {
			out := append(append([]any(nil), row...), make([]any, len(extraCols))...)
			joined = append(joined, out)
			continue
		}
		for _, m := range matches {
			out := append([]any(nil), row...)
			for _, ri := range extraIdx {
				out = append(out, other.Rows[m][ri])
			}
			joined = append(joined, out)
		}
	}

	t.Columns = append(t.Columns, extraCols...)
	t.Rows = joined
	return nil
}

// AddColumn appends a new column with the given cells, one per row.
func (t *Table) AddColumn(name string, cells []any) error {
	if t.HasColumn(name) {
		return fmt.Errorf("column %q already exists", name)
	}
	if len(cells) != len(t.Rows) {
		return fmt.Errorf("column has %d cells, table has %d rows", len(cells), len(t.Rows))
	}
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], cells[i])
	}
	return nil
}

// KeyString renders a cell in the canonical form used for join comparison.
// Integers and integral floats render without a fractional part, so SQL
// int64 keys match their CSV string representation.
func KeyString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case []byte:
		return strings.TrimSpace(string(x))
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// AsFloat interprets a cell as a float64 where possible.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
