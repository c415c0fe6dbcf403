package compare

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/sundial-labs/solarboard/internal/ingest"
	"github.com/sundial-labs/solarboard/internal/models"
)

func loadTable(t *testing.T, csv, country string) *models.Table {
	t.Helper()
	table, err := ingest.ParseCSV(strings.NewReader(csv), country)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	return table
}

func twoCountries(t *testing.T) *models.Collection {
	t.Helper()
	c := models.NewCollection()
	c.Set("A", loadTable(t,
		"Timestamp,GHI,WS,Precipitation\n"+
			"2024-01-01 00:00,0,1,0\n"+
			"2024-01-01 01:00,5,2,0\n"+
			"2024-01-01 02:00,10,3,1\n",
		"A"))
	c.Set("B", loadTable(t,
		"Timestamp,GHI,WS,Precipitation\n"+
			"2024-01-01 00:00,2,0.5,0\n"+
			"2024-01-01 01:00,2,0.5,1\n"+
			"2024-01-01 02:00,2,0.5,0\n",
		"B"))
	return c
}

func TestCountries(t *testing.T) {
	rows, err := Countries(twoCountries(t))
	if err != nil {
		t.Fatalf("Countries: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	a, b := rows[0], rows[1]
	if a.Country != "A" || b.Country != "B" {
		t.Fatalf("row order = %q, %q; want A, B", a.Country, b.Country)
	}
	if a.GHIMean != 5.0 {
		t.Errorf("A.ghi_mean = %v, want 5.0", a.GHIMean)
	}
	if a.GHIMedian != 5.0 {
		t.Errorf("A.ghi_median = %v, want 5.0", a.GHIMedian)
	}
	if a.WSMean != 2.0 {
		t.Errorf("A.ws_mean = %v, want 2.0", a.WSMean)
	}
	if b.GHIMean != 2.0 {
		t.Errorf("B.ghi_mean = %v, want 2.0", b.GHIMean)
	}
	if b.WSMean != 0.5 {
		t.Errorf("B.ws_mean = %v, want 0.5", b.WSMean)
	}
	if a.Observations != 3 || b.Observations != 3 {
		t.Errorf("observations = %d, %d; want 3, 3", a.Observations, b.Observations)
	}
}

func TestCountries_MissingMetricIsNaN(t *testing.T) {
	c := models.NewCollection()
	c.Set("X", loadTable(t, "Timestamp,GHI\n2024-01-01,1\n2024-01-01 01:00,2\n2024-01-01 02:00,3\n", "X"))

	rows, err := Countries(c)
	if err != nil {
		t.Fatalf("Countries: %v", err)
	}
	row := rows[0]
	if !math.IsNaN(row.WSMean) {
		t.Errorf("ws_mean = %v, want NaN", row.WSMean)
	}
	if !math.IsNaN(row.PrecipMean) {
		t.Errorf("precip_mean = %v, want NaN", row.PrecipMean)
	}
	if row.Observations != 3 {
		t.Errorf("observations = %d, want 3", row.Observations)
	}
}

func TestCountries_EmptyMetricColumnIsNaN(t *testing.T) {
	c := models.NewCollection()
	c.Set("X", loadTable(t, "Timestamp,GHI\n2024-01-01,\n", "X"))

	rows, err := Countries(c)
	if err != nil {
		t.Fatalf("Countries: %v", err)
	}
	if !math.IsNaN(rows[0].GHIMean) || !math.IsNaN(rows[0].GHIMedian) {
		t.Errorf("all-null GHI should yield NaN mean/median, got %+v", rows[0])
	}
}

func TestSummarize_AliasIdentical(t *testing.T) {
	c := twoCountries(t)
	a, errA := Countries(c)
	b, errB := Summarize(c)
	if errA != nil || errB != nil {
		t.Fatalf("errors: %v, %v", errA, errB)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("alias results differ:\n%+v\n%+v", a, b)
	}

	var bufA, bufB bytes.Buffer
	if err := WriteCSV(a, &bufA); err != nil {
		t.Fatal(err)
	}
	if err := WriteCSV(b, &bufB); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(bufA.Bytes(), bufB.Bytes()) {
		t.Error("alias CSV artifacts are not byte-identical")
	}
}

func TestCountries_SchemaMismatch(t *testing.T) {
	c := models.NewCollection()
	c.Set("A", loadTable(t, "Timestamp,GHI\n2024-01-01,1\n", "A"))
	c.Set("broken", nil)

	_, err := Countries(c)
	if err == nil {
		t.Fatal("expected SchemaMismatchError")
	}
	var sm *SchemaMismatchError
	if !errors.As(err, &sm) {
		t.Fatalf("error = %T, want *SchemaMismatchError", err)
	}
	if sm.Country != "broken" {
		t.Errorf("offending key = %q, want broken", sm.Country)
	}
}

func TestWriteCSV_Artifact(t *testing.T) {
	rows, err := Countries(twoCountries(t))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(rows, &buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header + 2 rows", len(lines))
	}
	if lines[0] != "country,ghi_mean,ghi_median,ws_mean,precip_mean,observations" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "A,5,") {
		t.Errorf("row A = %q", lines[1])
	}
}
