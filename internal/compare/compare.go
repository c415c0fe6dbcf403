// Package compare reduces a collection of country tables into one
// compact cross-country summary suitable for reporting and download.
package compare

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/sundial-labs/solarboard/internal/models"
	"github.com/sundial-labs/solarboard/internal/stats"
)

// SchemaMismatchError means an entry in the comparison input lacked
// tabular structure. It is fatal to the whole comparison call and names
// the offending country.
type SchemaMismatchError struct {
	Country string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("entry %q is not a measurement table", e.Country)
}

// CountrySummary is one comparison row. Metrics whose source column is
// absent are NaN; Observations is the table's row count.
type CountrySummary struct {
	Country      string  `csv:"country" json:"country"`
	GHIMean      float64 `csv:"ghi_mean" json:"ghi_mean"`
	GHIMedian    float64 `csv:"ghi_median" json:"ghi_median"`
	WSMean       float64 `csv:"ws_mean" json:"ws_mean"`
	PrecipMean   float64 `csv:"precip_mean" json:"precip_mean"`
	Observations int     `csv:"observations" json:"observations"`
}

func (s CountrySummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Country      string           `json:"country"`
		GHIMean      models.JSONFloat `json:"ghi_mean"`
		GHIMedian    models.JSONFloat `json:"ghi_median"`
		WSMean       models.JSONFloat `json:"ws_mean"`
		PrecipMean   models.JSONFloat `json:"precip_mean"`
		Observations int              `json:"observations"`
	}{
		s.Country,
		models.JSONFloat(s.GHIMean),
		models.JSONFloat(s.GHIMedian),
		models.JSONFloat(s.WSMean),
		models.JSONFloat(s.PrecipMean),
		s.Observations,
	})
}

// Countries computes one summary row per country, in collection order.
func Countries(c *models.Collection) ([]CountrySummary, error) {
	var rows []CountrySummary
	for _, country := range c.Countries() {
		t, _ := c.Get(country)
		if t == nil {
			return nil, &SchemaMismatchError{Country: country}
		}
		rows = append(rows, CountrySummary{
			Country:      country,
			GHIMean:      stats.Mean(t.MetricValues("GHI")),
			GHIMedian:    stats.Median(t.MetricValues("GHI")),
			WSMean:       stats.Mean(t.MetricValues("WS")),
			PrecipMean:   stats.Mean(t.MetricValues("Precipitation")),
			Observations: t.Len(),
		})
	}
	return rows, nil
}

// Summarize is the stable alias for Countries; both produce identical
// results for the same input.
func Summarize(c *models.Collection) ([]CountrySummary, error) {
	return Countries(c)
}

// WriteCSV serializes summary rows as the comparison artifact: one row
// per country with fixed columns ghi_mean, ghi_median, ws_mean,
// precip_mean, observations.
func WriteCSV(rows []CountrySummary, w io.Writer) error {
	return gocsv.Marshal(rows, w)
}
