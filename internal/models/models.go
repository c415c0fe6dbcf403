package models

import (
	"database/sql"
	"time"
)

// NumericColumns lists every measurement field the pipeline knows how to
// coerce, in the order they are exported.
var NumericColumns = []string{
	"GHI", "DNI", "DHI",
	"ModA", "ModB",
	"Tamb", "RH",
	"WS", "WSgust", "WSstdev",
	"WD", "WDstdev",
	"BP", "Precipitation",
	"TModA", "TModB",
}

// TimestampColumns are the candidate timestamp header names, checked in
// order; the first match wins. Matching is case-sensitive.
var TimestampColumns = []string{"Timestamp", "timestamp", "Datetime", "datetime", "time"}

// IrradianceColumns are the fields clipped to >= 0 during cleaning.
var IrradianceColumns = []string{"GHI", "DNI", "DHI", "ModA", "ModB"}

// CommonMetrics are the headline KPI metrics.
var CommonMetrics = []string{"GHI", "DNI", "DHI"}

// Record is one timestamped measurement row. Every sensor field is
// independently nullable; unparseable source values become null rather
// than errors.
type Record struct {
	Timestamp     sql.NullTime
	GHI           sql.NullFloat64
	DNI           sql.NullFloat64
	DHI           sql.NullFloat64
	ModA          sql.NullFloat64
	ModB          sql.NullFloat64
	Tamb          sql.NullFloat64
	RH            sql.NullFloat64
	WS            sql.NullFloat64
	WSgust        sql.NullFloat64
	WSstdev       sql.NullFloat64
	WD            sql.NullFloat64
	WDstdev       sql.NullFloat64
	BP            sql.NullFloat64
	Precipitation sql.NullFloat64
	TModA         sql.NullFloat64
	TModB         sql.NullFloat64

	// CleaningRaw is the cleaning flag exactly as read from the source.
	// EnforceTypes normalizes it into Cleaning ({0,1}, null when absent).
	CleaningRaw sql.NullString
	Cleaning    sql.NullInt64

	Region  sql.NullString
	Country string
}

// Value returns a pointer to the named numeric field, or nil when the
// name is not a known numeric column.
func (r *Record) Value(col string) *sql.NullFloat64 {
	switch col {
	case "GHI":
		return &r.GHI
	case "DNI":
		return &r.DNI
	case "DHI":
		return &r.DHI
	case "ModA":
		return &r.ModA
	case "ModB":
		return &r.ModB
	case "Tamb":
		return &r.Tamb
	case "RH":
		return &r.RH
	case "WS":
		return &r.WS
	case "WSgust":
		return &r.WSgust
	case "WSstdev":
		return &r.WSstdev
	case "WD":
		return &r.WD
	case "WDstdev":
		return &r.WDstdev
	case "BP":
		return &r.BP
	case "Precipitation":
		return &r.Precipitation
	case "TModA":
		return &r.TModA
	case "TModB":
		return &r.TModB
	}
	return nil
}

// Table is an ordered sequence of records for one country, plus the set
// of columns actually present in the source. Columns absent from the
// source contribute nothing to aggregation (the country is silently
// excluded from views over that column).
type Table struct {
	Country string
	Rows    []Record

	// TimeIndexed is true once IndexByTimestamp has deduplicated and
	// sorted the timestamp column.
	TimeIndexed bool

	// TimestampColumn is the source header the timestamp was detected
	// under, empty when none of the candidates matched.
	TimestampColumn string

	// RegionFromSource distinguishes a Region column read from the input
	// from the all-null one the parser synthesizes for schema stability.
	// Only a source Region counts toward a row's missing-value fraction.
	RegionFromSource bool

	columns []string
	present map[string]bool
}

// NewTable returns an empty table for country with the given source columns.
func NewTable(country string, columns []string) *Table {
	t := &Table{
		Country: country,
		present: make(map[string]bool, len(columns)),
	}
	for _, c := range columns {
		t.AddColumn(c)
	}
	return t
}

// AddColumn registers a column, preserving first-seen order.
func (t *Table) AddColumn(name string) {
	if t.present == nil {
		t.present = make(map[string]bool)
	}
	if t.present[name] {
		return
	}
	t.present[name] = true
	t.columns = append(t.columns, name)
}

// HasColumn reports whether the source carried the named column.
func (t *Table) HasColumn(name string) bool {
	return t.present[name]
}

// Columns returns the registered columns in source order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// NumericPresent returns the known numeric columns present in this table,
// in canonical order.
func (t *Table) NumericPresent() []string {
	var out []string
	for _, c := range NumericColumns {
		if t.present[c] {
			out = append(out, c)
		}
	}
	return out
}

func (t *Table) Len() int {
	return len(t.Rows)
}

// MetricValues returns the null-dropped values of a numeric column, in
// row order. Returns nil when the column is absent.
func (t *Table) MetricValues(col string) []float64 {
	if !t.present[col] {
		return nil
	}
	var out []float64
	for i := range t.Rows {
		if v := t.Rows[i].Value(col); v != nil && v.Valid {
			out = append(out, v.Float64)
		}
	}
	return out
}

// Clone returns a deep copy of the table. Cleaning stages mutate tables
// in place, so callers handing a table to an independent consumer copy
// it first.
func (t *Table) Clone() *Table {
	out := NewTable(t.Country, t.columns)
	out.TimeIndexed = t.TimeIndexed
	out.TimestampColumn = t.TimestampColumn
	out.RegionFromSource = t.RegionFromSource
	out.Rows = make([]Record, len(t.Rows))
	copy(out.Rows, t.Rows)
	return out
}

// TimeBounds returns the min and max valid timestamps. ok is false when
// the table is not time-indexed or holds no valid timestamp.
func (t *Table) TimeBounds() (min, max time.Time, ok bool) {
	if !t.TimeIndexed {
		return time.Time{}, time.Time{}, false
	}
	for i := range t.Rows {
		ts := t.Rows[i].Timestamp
		if !ts.Valid {
			continue
		}
		if !ok || ts.Time.Before(min) {
			min = ts.Time
		}
		if !ok || ts.Time.After(max) {
			max = ts.Time
		}
		ok = true
	}
	return min, max, ok
}
