package adapters

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// FileAdapter reads a weekly series from a CSV file.
//
// The first row is a header. ValueColumn names the incidence column
// (default "value"); TimeColumn optionally names a numeric time column,
// otherwise times are 0,1,2,... Empty cells and "NaN"/"NA" mark unobserved
// weeks.
type FileAdapter struct {
	Path        string
	ValueColumn string
	TimeColumn  string
}

func (f *FileAdapter) Name() string { return "file" }

// Collect implements Adapter.
func (f *FileAdapter) Collect(ctx context.Context) (*Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Path == "" {
		return nil, errors.New("file adapter: path is required")
	}

	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Path, err)
	}
	defer file.Close()

	s, err := ReadCSV(file, f.ValueColumn, f.TimeColumn)
	if err != nil {
		return nil, fmt.Errorf("file adapter %s: %w", f.Path, err)
	}
	return s, nil
}

// ReadCSV parses a series from CSV data. See FileAdapter for the format.
func ReadCSV(r io.Reader, valueColumn, timeColumn string) (*Series, error) {
	if valueColumn == "" {
		valueColumn = "value"
	}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	valueIdx, timeIdx := -1, -1
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == valueColumn {
			valueIdx = i
		} else if timeColumn != "" && name == timeColumn {
			timeIdx = i
		}
	}
	if valueIdx < 0 {
		return nil, fmt.Errorf("column %q not found in header %v", valueColumn, header)
	}
	if timeColumn != "" && timeIdx < 0 {
		return nil, fmt.Errorf("column %q not found in header %v", timeColumn, header)
	}

	var times, values []float64
	for row := 2; ; row++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}

		v, err := parseCell(record[valueIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d column %q: %w", row, valueColumn, err)
		}
		values = append(values, v)

		if timeIdx >= 0 {
			t, err := strconv.ParseFloat(strings.TrimSpace(record[timeIdx]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", row, timeColumn, err)
			}
			times = append(times, t)
		}
	}
	return newSeries(times, values)
}

func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "na":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
