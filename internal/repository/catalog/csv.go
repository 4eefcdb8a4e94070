package catalog

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// table reads a header-driven CSV: columns are looked up by name, not position.
type table struct {
	name   string
	reader *csv.Reader
	cols   map[string]int
	line   int
}

func newTable(name string, r io.Reader, required ...string) (*table, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty file", name)
		}
		return nil, fmt.Errorf("%s: read header: %w", name, err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}

	t := &table{name: name, reader: cr, cols: cols, line: 1}
	for _, c := range required {
		if !t.has(c) {
			return nil, fmt.Errorf("%s: missing column %q", name, c)
		}
	}
	return t, nil
}

func (t *table) has(col string) bool {
	_, ok := t.cols[col]
	return ok
}

// pick returns the first present column name among candidates.
func (t *table) pick(candidates ...string) (string, bool) {
	for _, c := range candidates {
		if t.has(c) {
			return c, true
		}
	}
	return "", false
}

// each calls fn for every data row. A row error stops iteration.
func (t *table) each(fn func(r row) error) error {
	for {
		rec, err := t.reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		t.line++
		if err != nil {
			return fmt.Errorf("%s: line %d: %w", t.name, t.line, err)
		}
		if err := fn(row{t: t, rec: rec}); err != nil {
			return fmt.Errorf("%s: line %d: %w", t.name, t.line, err)
		}
	}
}

type row struct {
	t   *table
	rec []string
}

// str returns the trimmed field, or "" when the column is absent or the row is short.
func (r row) str(col string) string {
	i, ok := r.t.cols[col]
	if !ok || i >= len(r.rec) {
		return ""
	}
	return strings.TrimSpace(r.rec[i])
}

// int parses an integer field. Float notation ("2008.0") is accepted.
func (r row) int(col string) (int, error) {
	s := r.str(col)
	if s == "" {
		return 0, fmt.Errorf("column %q is empty", col)
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("column %q: invalid integer %q", col, s)
	}
	return int(f), nil
}

// optInt parses an optional integer field; empty or malformed values are zero.
func (r row) optInt(col string) int {
	if r.str(col) == "" {
		return 0
	}
	v, err := r.int(col)
	if err != nil {
		return 0
	}
	return v
}

func (r row) float(col string) (float64, error) {
	s := r.str(col)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("column %q: invalid number %q", col, s)
	}
	return v, nil
}

func (r row) optFloat(col string) float64 {
	v, err := strconv.ParseFloat(r.str(col), 64)
	if err != nil {
		return 0
	}
	return v
}
