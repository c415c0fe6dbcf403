// Package clean implements the measurement cleaning pipeline: timestamp
// indexing, dtype enforcement, physical-range clipping, gap imputation
// and bad-row pruning.
//
// Each stage is an independently invokable function over one table,
// mutating it in place; Apply composes them in the standard order.
package clean

import (
	"database/sql"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sundial-labs/solarboard/internal/metrics"
	"github.com/sundial-labs/solarboard/internal/models"
	"github.com/sundial-labs/solarboard/internal/stats"
)

// ErrDataNotLoaded means a cleaning stage was invoked before any table
// existed. This is a programmer error, fatal to the call.
var ErrDataNotLoaded = errors.New("data not loaded")

const (
	// DefaultMaxNullFrac is the missing-value fraction above which a row
	// is dropped.
	DefaultMaxNullFrac = 0.5
	// DefaultInterpolateLimit bounds how many consecutive missing samples
	// a short-gap interpolation run will fill.
	DefaultInterpolateLimit = 3
)

// Config carries the two tunables of the pipeline.
type Config struct {
	MaxNullFrac      float64
	InterpolateLimit int
}

func DefaultConfig() Config {
	return Config{
		MaxNullFrac:      DefaultMaxNullFrac,
		InterpolateLimit: DefaultInterpolateLimit,
	}
}

// IndexByTimestamp deduplicates and sorts the table by timestamp.
//
// Duplicate timestamps keep the first occurrence (rows with null
// timestamps count as duplicates of each other). The sort is stable and
// ascending, null timestamps last. Consumers must tolerate a null
// timestamp remaining in the index.
func IndexByTimestamp(t *models.Table) error {
	if t == nil {
		return ErrDataNotLoaded
	}
	if t.TimestampColumn == "" {
		// No timestamp column detected: the table keeps its positional
		// order and never becomes time-indexed.
		return nil
	}

	seen := make(map[int64]bool, len(t.Rows))
	seenNull := false
	kept := t.Rows[:0]
	for i := range t.Rows {
		ts := t.Rows[i].Timestamp
		if !ts.Valid {
			if seenNull {
				continue
			}
			seenNull = true
			kept = append(kept, t.Rows[i])
			continue
		}
		key := ts.Time.UnixNano()
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, t.Rows[i])
	}
	t.Rows = kept

	sort.SliceStable(t.Rows, func(i, j int) bool {
		a, b := t.Rows[i].Timestamp, t.Rows[j].Timestamp
		if !a.Valid {
			return false
		}
		if !b.Valid {
			return true
		}
		return a.Time.Before(b.Time)
	})

	t.TimeIndexed = true
	return nil
}

// EnforceTypes normalizes the Cleaning flag: any source value literally
// equal to 1 (numeric or string "1") becomes 1, any other value becomes
// 0, and a missing value stays null. Numeric columns are already coerced
// at parse time; nothing further is needed for them.
func EnforceTypes(t *models.Table) error {
	if t == nil {
		return ErrDataNotLoaded
	}
	if !t.HasColumn("Cleaning") {
		return nil
	}
	for i := range t.Rows {
		raw := t.Rows[i].CleaningRaw
		if !raw.Valid {
			t.Rows[i].Cleaning = sql.NullInt64{}
			continue
		}
		t.Rows[i].Cleaning = sql.NullInt64{Int64: cleaningFlag(raw.String), Valid: true}
	}
	return nil
}

func cleaningFlag(raw string) int64 {
	s := strings.TrimSpace(raw)
	if s == "1" {
		return 1
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == 1 {
		return 1
	}
	return 0
}

// ClipAndImpute enforces the physical-range invariants and fills the
// remaining numeric nulls with each column's post-clip median:
//
//   - irradiance fields (GHI, DNI, DHI, ModA, ModB) clipped to >= 0
//   - RH clipped to [0, 100]
//   - WD wrapped into [0, 360) by modulo
//
// Medians are computed per table, per run; nothing is cached across
// tables. The stage is idempotent on already-clean data.
func ClipAndImpute(t *models.Table) error {
	if t == nil {
		return ErrDataNotLoaded
	}

	for _, col := range models.IrradianceColumns {
		if !t.HasColumn(col) {
			continue
		}
		for i := range t.Rows {
			v := t.Rows[i].Value(col)
			if v.Valid && v.Float64 < 0 {
				v.Float64 = 0
			}
		}
	}

	if t.HasColumn("RH") {
		for i := range t.Rows {
			v := &t.Rows[i].RH
			if !v.Valid {
				continue
			}
			if v.Float64 < 0 {
				v.Float64 = 0
			} else if v.Float64 > 100 {
				v.Float64 = 100
			}
		}
	}

	if t.HasColumn("WD") {
		for i := range t.Rows {
			v := &t.Rows[i].WD
			if !v.Valid {
				continue
			}
			wrapped := math.Mod(v.Float64, 360)
			if wrapped < 0 {
				wrapped += 360
			}
			v.Float64 = wrapped
		}
	}

	for _, col := range t.NumericPresent() {
		values := t.MetricValues(col)
		if len(values) == 0 {
			continue
		}
		median := stats.Median(values)
		for i := range t.Rows {
			v := t.Rows[i].Value(col)
			if !v.Valid {
				*v = sql.NullFloat64{Float64: median, Valid: true}
			}
		}
	}

	return nil
}

// InterpolateShortGaps fills interior null runs of at most limit samples
// with time-weighted linear interpolation between the surrounding valid
// values. Runs longer than limit are only filled for their first limit
// samples; leading and trailing nulls have no anchor and stay null. The
// stage is a no-op unless the table is time-indexed.
func InterpolateShortGaps(t *models.Table, limit int) error {
	if t == nil {
		return ErrDataNotLoaded
	}
	if !t.TimeIndexed || limit <= 0 {
		return nil
	}

	for _, col := range t.NumericPresent() {
		last := -1 // index of last row with a valid value and timestamp
		for i := range t.Rows {
			v := t.Rows[i].Value(col)
			if !v.Valid {
				continue
			}
			if !t.Rows[i].Timestamp.Valid {
				continue
			}
			if last >= 0 && i-last > 1 {
				fillGap(t, col, last, i, limit)
			}
			last = i
		}
	}
	return nil
}

// fillGap interpolates rows strictly between anchor indices lo and hi,
// writing at most limit values from the left.
func fillGap(t *models.Table, col string, lo, hi, limit int) {
	t0 := t.Rows[lo].Timestamp.Time
	t1 := t.Rows[hi].Timestamp.Time
	span := t1.Sub(t0).Seconds()
	if span <= 0 {
		return
	}
	v0 := t.Rows[lo].Value(col).Float64
	v1 := t.Rows[hi].Value(col).Float64

	filled := 0
	for i := lo + 1; i < hi && filled < limit; i++ {
		ts := t.Rows[i].Timestamp
		if !ts.Valid {
			continue
		}
		frac := ts.Time.Sub(t0).Seconds() / span
		*t.Rows[i].Value(col) = sql.NullFloat64{
			Float64: v0 + (v1-v0)*frac,
			Valid:   true,
		}
		filled++
	}
}

// DropBadRows removes rows whose fraction of null values across the
// table's data columns exceeds maxNullFrac. The timestamp index and the
// country stamp do not count as data columns.
func DropBadRows(t *models.Table, maxNullFrac float64) error {
	if t == nil {
		return ErrDataNotLoaded
	}

	counted := countedColumns(t)
	if len(counted) == 0 {
		return nil
	}

	kept := t.Rows[:0]
	dropped := 0
	for i := range t.Rows {
		if nullFraction(&t.Rows[i], counted) > maxNullFrac {
			dropped++
			continue
		}
		kept = append(kept, t.Rows[i])
	}
	t.Rows = kept

	if dropped > 0 {
		metrics.RowsDroppedTotal.WithLabelValues(t.Country).Add(float64(dropped))
	}
	return nil
}

func countedColumns(t *models.Table) []string {
	var out []string
	for _, col := range t.NumericPresent() {
		out = append(out, col)
	}
	if t.HasColumn("Cleaning") {
		out = append(out, "Cleaning")
	}
	if t.HasColumn("Region") && t.RegionFromSource {
		out = append(out, "Region")
	}
	return out
}

func nullFraction(r *models.Record, counted []string) float64 {
	nulls := 0
	for _, col := range counted {
		switch col {
		case "Cleaning":
			if !r.Cleaning.Valid && !r.CleaningRaw.Valid {
				nulls++
			}
		case "Region":
			if !r.Region.Valid {
				nulls++
			}
		default:
			if !r.Value(col).Valid {
				nulls++
			}
		}
	}
	return float64(nulls) / float64(len(counted))
}
