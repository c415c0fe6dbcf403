// Package aggregate computes cross-country views over a collection of
// cleaned measurement tables: KPIs, per-country and per-region
// statistics, and date-range filtering.
//
// A country whose table lacks the requested metric (or Region) column is
// silently excluded from that view; callers must check for empty or NaN
// results rather than expect errors.
package aggregate

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/sundial-labs/solarboard/internal/models"
	"github.com/sundial-labs/solarboard/internal/stats"
)

// KPIs are the headline means over the concatenated, null-dropped values
// of each metric across every table. A metric absent everywhere is NaN.
type KPIs struct {
	GHIMean float64 `json:"ghi_mean"`
	DNIMean float64 `json:"dni_mean"`
	DHIMean float64 `json:"dhi_mean"`
}

func (k KPIs) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		GHIMean models.JSONFloat `json:"ghi_mean"`
		DNIMean models.JSONFloat `json:"dni_mean"`
		DHIMean models.JSONFloat `json:"dhi_mean"`
	}{
		models.JSONFloat(k.GHIMean),
		models.JSONFloat(k.DNIMean),
		models.JSONFloat(k.DHIMean),
	})
}

// DateBounds returns the global min and max date across all tables with
// a genuine time index. When none qualify it returns today's date for
// both bounds; that is a documented fallback, not an error.
func DateBounds(c *models.Collection) (time.Time, time.Time) {
	var lo, hi time.Time
	found := false
	for _, country := range c.Countries() {
		t, _ := c.Get(country)
		min, max, ok := t.TimeBounds()
		if !ok {
			continue
		}
		if !found || min.Before(lo) {
			lo = min
		}
		if !found || max.After(hi) {
			hi = max
		}
		found = true
	}
	if !found {
		today := time.Now().Truncate(24 * time.Hour)
		return today, today
	}
	return lo, hi
}

// Filter returns a new collection holding only the selected countries,
// each table row-sliced to the inclusive [start, end] range. A zero
// start and end (hasRange false) or a table without a time index leaves
// rows untouched. An empty selection selects every country. Returned
// tables are copies; the inputs are never mutated.
func Filter(c *models.Collection, countries []string, start, end time.Time, hasRange bool) *models.Collection {
	selected := make(map[string]bool, len(countries))
	for _, name := range countries {
		selected[name] = true
	}

	out := models.NewCollection()
	for _, country := range c.Countries() {
		if len(countries) > 0 && !selected[country] {
			continue
		}
		t, _ := c.Get(country)
		if !hasRange || !t.TimeIndexed {
			out.Set(country, t.Clone())
			continue
		}
		sliced := t.Clone()
		kept := sliced.Rows[:0]
		for i := range sliced.Rows {
			ts := sliced.Rows[i].Timestamp
			if !ts.Valid {
				continue
			}
			if ts.Time.Before(start) || ts.Time.After(end) {
				continue
			}
			kept = append(kept, sliced.Rows[i])
		}
		sliced.Rows = kept
		out.Set(country, sliced)
	}
	return out
}

// GlobalKPIs computes the mean of each headline metric over the
// concatenation of all tables' null-dropped values.
func GlobalKPIs(c *models.Collection) KPIs {
	return KPIs{
		GHIMean: pooledMean(c, "GHI"),
		DNIMean: pooledMean(c, "DNI"),
		DHIMean: pooledMean(c, "DHI"),
	}
}

func pooledMean(c *models.Collection, metric string) float64 {
	var all []float64
	for _, country := range c.Countries() {
		t, _ := c.Get(country)
		all = append(all, t.MetricValues(metric)...)
	}
	return stats.Mean(all)
}

// CountryMean is one country's null-dropped mean for a metric.
type CountryMean struct {
	Country string  `json:"country"`
	Mean    float64 `json:"mean"`
}

func (m CountryMean) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Country string           `json:"country"`
		Mean    models.JSONFloat `json:"mean"`
	}{m.Country, models.JSONFloat(m.Mean)})
}

// PerCountryMean returns one row per country that carries the metric
// column, in collection order. Countries lacking the column are omitted.
func PerCountryMean(c *models.Collection, metric string) []CountryMean {
	var out []CountryMean
	for _, country := range c.Countries() {
		t, _ := c.Get(country)
		if !t.HasColumn(metric) {
			continue
		}
		out = append(out, CountryMean{
			Country: country,
			Mean:    stats.Mean(t.MetricValues(metric)),
		})
	}
	return out
}

// RegionMean is one region's mean for a metric within a country.
type RegionMean struct {
	Country string  `json:"country"`
	Region  string  `json:"region"`
	Mean    float64 `json:"mean"`
}

// TopRegions ranks regions by mean of metric across all tables that
// carry both the metric and a Region column, descending, truncated to n.
// The sort is stable, so ties keep their original (country, region)
// encounter order. Asking for more regions than exist returns them all.
func TopRegions(c *models.Collection, metric string, n int) []RegionMean {
	var rows []RegionMean
	for _, country := range c.Countries() {
		t, _ := c.Get(country)
		if !t.HasColumn(metric) || !t.HasColumn("Region") {
			continue
		}
		rows = append(rows, regionMeans(t, metric)...)
	}
	if len(rows) == 0 {
		return nil
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Mean > rows[j].Mean
	})
	if n >= 0 && len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

// regionMeans groups one table by region and averages the metric,
// regions in first-encounter order. Rows with a null region or a null
// metric value contribute nothing.
func regionMeans(t *models.Table, metric string) []RegionMean {
	var order []string
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i := range t.Rows {
		rec := &t.Rows[i]
		if !rec.Region.Valid {
			continue
		}
		v := rec.Value(metric)
		if v == nil || !v.Valid {
			continue
		}
		region := rec.Region.String
		if _, ok := counts[region]; !ok {
			order = append(order, region)
		}
		sums[region] += v.Float64
		counts[region]++
	}

	out := make([]RegionMean, 0, len(order))
	for _, region := range order {
		out = append(out, RegionMean{
			Country: t.Country,
			Region:  region,
			Mean:    sums[region] / float64(counts[region]),
		})
	}
	return out
}

// SummaryCell holds the statistics for one (metric, country) pair.
type SummaryCell struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Count  int     `json:"count"`
}

func (c SummaryCell) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Mean   models.JSONFloat `json:"mean"`
		Median models.JSONFloat `json:"median"`
		Std    models.JSONFloat `json:"std"`
		Count  int              `json:"count"`
	}{
		models.JSONFloat(c.Mean),
		models.JSONFloat(c.Median),
		models.JSONFloat(c.Std),
		c.Count,
	})
}

// SummaryTable pivots per-(metric, country) statistics: rows are
// metrics, columns are (statistic, country) pairs.
type SummaryTable struct {
	Metrics   []string                          `json:"metrics"`
	Countries []string                          `json:"countries"`
	Cells     map[string]map[string]SummaryCell `json:"cells"` // metric -> country -> cell
}

// Empty reports whether no (metric, country) pair had data.
func (s SummaryTable) Empty() bool {
	return len(s.Metrics) == 0
}

// SummaryStats computes mean/median/std per (metric, country) over the
// collection. Pairs without the column contribute nothing; a result with
// no pairs at all is empty.
func SummaryStats(c *models.Collection, metrics []string) SummaryTable {
	out := SummaryTable{Cells: make(map[string]map[string]SummaryCell)}

	seenCountry := make(map[string]bool)
	for _, country := range c.Countries() {
		t, _ := c.Get(country)
		for _, metric := range metrics {
			if !t.HasColumn(metric) {
				continue
			}
			values := t.MetricValues(metric)
			cell := SummaryCell{
				Mean:   stats.Mean(values),
				Median: stats.Median(values),
				Std:    stats.StdDev(values),
				Count:  len(values),
			}
			if out.Cells[metric] == nil {
				out.Cells[metric] = make(map[string]SummaryCell)
				out.Metrics = append(out.Metrics, metric)
			}
			out.Cells[metric][country] = cell
			if !seenCountry[country] {
				seenCountry[country] = true
				out.Countries = append(out.Countries, country)
			}
		}
	}
	return out
}

// HighestMean returns the country with the strictly greatest null-dropped
// mean for metric, first encountered wins on ties. When no country has
// the column it returns ("", NaN).
func HighestMean(c *models.Collection, metric string) (string, float64) {
	best := ""
	bestVal := math.Inf(-1)
	for _, country := range c.Countries() {
		t, _ := c.Get(country)
		if !t.HasColumn(metric) {
			continue
		}
		val := stats.Mean(t.MetricValues(metric))
		if val > bestVal {
			bestVal = val
			best = country
		}
	}
	if best == "" {
		return "", math.NaN()
	}
	return best, bestVal
}
