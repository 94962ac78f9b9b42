package data

import (
	"database/sql"
	"fmt"
)

// Table is one tabular result set: ordered column names and ordered rows.
type Table struct {
	Columns []string `json:"columns" yaml:"columns"`
	Rows    [][]any  `json:"rows" yaml:"rows"`
}

// DataSet is the ordered list of result sets produced by a single statement batch.
type DataSet []*Table

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the cell at row i in the named column.
func (t *Table) Value(i int, column string) (any, bool) {
	col := t.ColumnIndex(column)
	if col < 0 || i < 0 || i >= len(t.Rows) {
		return nil, false
	}
	return t.Rows[i][col], true
}

// Records returns the rows as column-keyed maps.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			rec[c] = row[i]
		}
		out = append(out, rec)
	}
	return out
}

// First returns the first result set, or nil for an empty DataSet.
func (ds DataSet) First() *Table {
	if len(ds) == 0 {
		return nil
	}
	return ds[0]
}

// readTable drains the current result set of rows.
func readTable(rows *sql.Rows) (*Table, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	t := &Table{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		t.Rows = append(t.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return t, nil
}
