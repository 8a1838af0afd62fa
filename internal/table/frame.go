// Package table holds the small ordered data frame the scraper assembles
// before writing CSV output.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
)

// Cell is one column/value pair of a Row.
type Cell struct {
	Column string
	Value  string
}

// Row is an ordered list of cells. Later cells with a repeated column
// overwrite earlier ones.
type Row []Cell

// Set replaces the value of column in place or appends a new cell.
func (r Row) Set(column, value string) Row {
	for i := range r {
		if r[i].Column == column {
			r[i].Value = value
			return r
		}
	}
	return append(r, Cell{Column: column, Value: value})
}

// Get returns the value stored for column.
func (r Row) Get(column string) (string, bool) {
	for _, c := range r {
		if c.Column == column {
			return c.Value, true
		}
	}
	return "", false
}

// Frame is an index-keyed table whose columns grow in first-seen order.
// Rows keep their insertion order; missing cells render empty.
type Frame struct {
	indexName string
	columns   []string
	colIndex  map[string]int
	keys      []string
	rows      map[string]map[string]string
}

// NewFrame creates an empty frame with the given index name and initial columns.
func NewFrame(indexName string, columns ...string) *Frame {
	f := &Frame{
		indexName: indexName,
		colIndex:  make(map[string]int),
		rows:      make(map[string]map[string]string),
	}
	for _, c := range columns {
		f.addColumn(c)
	}
	return f
}

func (f *Frame) addColumn(column string) {
	if _, ok := f.colIndex[column]; ok {
		return
	}
	f.colIndex[column] = len(f.columns)
	f.columns = append(f.columns, column)
}

// Upsert inserts a row under key, or replaces the existing row while keeping
// its position.
func (f *Frame) Upsert(key string, row Row) {
	values := make(map[string]string, len(row))
	for _, cell := range row {
		f.addColumn(cell.Column)
		values[cell.Column] = cell.Value
	}
	if _, ok := f.rows[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.rows[key] = values
}

// Set updates one cell of an existing row. It returns false when key is unknown.
func (f *Frame) Set(key, column, value string) bool {
	values, ok := f.rows[key]
	if !ok {
		return false
	}
	f.addColumn(column)
	values[column] = value
	return true
}

// Get returns the cell at key/column.
func (f *Frame) Get(key, column string) (string, bool) {
	values, ok := f.rows[key]
	if !ok {
		return "", false
	}
	v, ok := values[column]
	return v, ok
}

// Has reports whether a row is stored under key.
func (f *Frame) Has(key string) bool {
	_, ok := f.rows[key]
	return ok
}

// Drop removes a column and its values. Unknown columns are ignored.
func (f *Frame) Drop(column string) {
	idx, ok := f.colIndex[column]
	if !ok {
		return
	}
	f.columns = append(f.columns[:idx], f.columns[idx+1:]...)
	delete(f.colIndex, column)
	for i := idx; i < len(f.columns); i++ {
		f.colIndex[f.columns[i]] = i
	}
	for _, values := range f.rows {
		delete(values, column)
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.keys)
}

// Columns returns a copy of the column names in order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.columns...)
}

// Keys returns a copy of the row keys in insertion order.
func (f *Frame) Keys() []string {
	return append([]string(nil), f.keys...)
}

// Records returns the frame as string records, header first.
func (f *Frame) Records() [][]string {
	out := make([][]string, 0, len(f.keys)+1)
	header := make([]string, 0, len(f.columns)+1)
	header = append(header, f.indexName)
	header = append(header, f.columns...)
	out = append(out, header)
	for _, key := range f.keys {
		values := f.rows[key]
		rec := make([]string, 0, len(f.columns)+1)
		rec = append(rec, key)
		for _, c := range f.columns {
			rec = append(rec, values[c])
		}
		out = append(out, rec)
	}
	return out
}

// WriteCSV writes the header and every row as CSV.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(f.Records()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
