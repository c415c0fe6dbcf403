package clean

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sundial-labs/solarboard/internal/ingest"
	"github.com/sundial-labs/solarboard/internal/metrics"
	"github.com/sundial-labs/solarboard/internal/models"
)

const exportTimeLayout = "2006-01-02 15:04:05"

// Apply runs the standard stage order on an already-parsed table:
// index-by-timestamp, enforce-dtypes, clip-and-impute, interpolate-short-
// gaps, drop-bad-rows.
func Apply(t *models.Table, cfg Config) error {
	if err := IndexByTimestamp(t); err != nil {
		return err
	}
	if err := EnforceTypes(t); err != nil {
		return err
	}
	if err := ClipAndImpute(t); err != nil {
		return err
	}
	if err := InterpolateShortGaps(t, cfg.InterpolateLimit); err != nil {
		return err
	}
	return DropBadRows(t, cfg.MaxNullFrac)
}

// Run cleans the CSV at path end to end and returns the cleaned table.
// The output file is written only when outPath is non-empty. Re-running
// on already-clean output is a no-op: every range invariant holds and no
// row exceeds the missing-value threshold.
func Run(path, country, outPath string, cfg Config) (*models.Table, error) {
	start := time.Now()

	if country == "" {
		country = countryFromPath(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	table, err := ingest.ParseCSV(f, country)
	if err != nil {
		return nil, err
	}
	if err := Apply(table, cfg); err != nil {
		return nil, err
	}

	if outPath != "" {
		out, err := os.Create(outPath)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", outPath, err)
		}
		defer out.Close()
		if err := Export(table, out); err != nil {
			return nil, fmt.Errorf("export %s: %w", outPath, err)
		}
	}

	metrics.CleanDuration.Observe(time.Since(start).Seconds())
	return table, nil
}

// QuickClean is the stable scripting entrypoint: clean the CSV at path
// with default configuration, optionally writing to outPath.
func QuickClean(path, outPath string) (*models.Table, error) {
	return Run(path, "", outPath, DefaultConfig())
}

// Export serializes the table as CSV with the time index as an explicit
// leading column and all values in their coerced form. Nulls are written
// as empty cells.
func Export(t *models.Table, w io.Writer) error {
	if t == nil {
		return ErrDataNotLoaded
	}

	cw := csv.NewWriter(w)

	tsName := t.TimestampColumn
	if tsName == "" {
		tsName = "Timestamp"
	}
	numeric := t.NumericPresent()
	header := []string{tsName}
	header = append(header, numeric...)
	if t.HasColumn("Cleaning") {
		header = append(header, "Cleaning")
	}
	header = append(header, "Region", "Country")
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, 0, len(header))
	for i := range t.Rows {
		rec := &t.Rows[i]
		row = row[:0]

		if rec.Timestamp.Valid {
			row = append(row, rec.Timestamp.Time.Format(exportTimeLayout))
		} else {
			row = append(row, "")
		}
		for _, col := range numeric {
			v := rec.Value(col)
			if v.Valid {
				row = append(row, strconv.FormatFloat(v.Float64, 'g', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		if t.HasColumn("Cleaning") {
			switch {
			case rec.Cleaning.Valid:
				row = append(row, strconv.FormatInt(rec.Cleaning.Int64, 10))
			case rec.CleaningRaw.Valid:
				row = append(row, rec.CleaningRaw.String)
			default:
				row = append(row, "")
			}
		}
		if rec.Region.Valid {
			row = append(row, rec.Region.String)
		} else {
			row = append(row, "")
		}
		row = append(row, rec.Country)

		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func countryFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
