package ingest

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sundial-labs/solarboard/internal/models"
)

// ParseError means a per-country source could not be read as tabular
// data at all. It is isolated: one country failing to parse never blocks
// the others.
type ParseError struct {
	Country string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not read CSV for %s: %v", e.Country, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// timestampLayouts are tried in order when coercing timestamp cells.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04",
	"01/02/2006 15:04",
}

// ParseCSV reads one country's raw CSV into a measurement table.
//
// The timestamp column is detected from models.TimestampColumns, first
// match wins. Cells in the timestamp or a known numeric column that fail
// to parse become null rather than errors. A Region column is added
// (all-null) when the source lacks one, and every row is stamped with
// the country label. Structural failures return a *ParseError.
func ParseCSV(r io.Reader, country string) (*models.Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, &ParseError{Country: country, Err: fmt.Errorf("read header: %w", err)}
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	tsCol := detectTimestampColumn(header)

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}

	table := models.NewTable(country, header)
	table.RegionFromSource = table.HasColumn("Region")
	if !table.RegionFromSource {
		table.AddColumn("Region")
	}
	table.TimestampColumn = tsCol

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Country: country, Err: err}
		}

		rec := models.Record{Country: country}

		if tsCol != "" {
			rec.Timestamp = parseTimestamp(row[idx[tsCol]])
		}
		for _, col := range models.NumericColumns {
			i, ok := idx[col]
			if !ok {
				continue
			}
			*rec.Value(col) = parseFloat(row[i])
		}
		if i, ok := idx["Cleaning"]; ok {
			if cell := strings.TrimSpace(row[i]); cell != "" {
				rec.CleaningRaw = sql.NullString{String: cell, Valid: true}
			}
		}
		if i, ok := idx["Region"]; ok {
			if cell := strings.TrimSpace(row[i]); cell != "" {
				rec.Region = sql.NullString{String: cell, Valid: true}
			}
		}

		table.Rows = append(table.Rows, rec)
	}

	return table, nil
}

func detectTimestampColumn(header []string) string {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[h] = true
	}
	for _, cand := range models.TimestampColumns {
		if have[cand] {
			return cand
		}
	}
	return ""
}

func parseTimestamp(cell string) sql.NullTime {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return sql.NullTime{}
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, cell); err == nil {
			return sql.NullTime{Time: ts, Valid: true}
		}
	}
	return sql.NullTime{}
}

func parseFloat(cell string) sql.NullFloat64 {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return sql.NullFloat64{}
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(f) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}
