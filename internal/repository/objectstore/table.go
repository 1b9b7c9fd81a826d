// Package objectstore reads order, stock and snapshot feeds dropped into
// object storage as CSV or XLSX files.
package objectstore

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/procurement-engine/internal/domain"
)

// table is a header-indexed view over the rows of one input file.
type table struct {
	key  string
	cols map[string]int
	rows [][]string
}

func supported(key string) bool {
	switch strings.ToLower(path.Ext(key)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

func parseTable(key string, data []byte) (*table, error) {
	var records [][]string
	var err error
	switch strings.ToLower(path.Ext(key)) {
	case ".csv":
		records, err = readCSV(data)
	case ".xlsx":
		records, err = readXLSX(data)
	default:
		return nil, fmt.Errorf("%s: unsupported file type", key)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: missing header row", key)
	}

	t := &table{key: key, cols: make(map[string]int)}
	for i, col := range records[0] {
		t.cols[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

func readCSV(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var out [][]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		out = append(out, rec)
	}
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("xlsx has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func (t *table) require(cols ...string) error {
	for _, col := range cols {
		if _, ok := t.cols[col]; !ok {
			return fmt.Errorf("%s: missing required column: %s", t.key, col)
		}
	}
	return nil
}

func (t *table) get(rec []string, col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (t *table) int(rec []string, col string) (int64, error) {
	raw := t.get(rec, col)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || f != float64(int64(f)) {
			return 0, fmt.Errorf("%s: column %s: invalid integer %q", t.key, col, raw)
		}
		v = int64(f)
	}
	return v, nil
}

func (t *table) date(rec []string, col string) (time.Time, error) {
	raw := t.get(rec, col)
	if raw == "" {
		return time.Time{}, nil
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: column %s: invalid date %q", t.key, col, raw)
	}
	return d, nil
}
