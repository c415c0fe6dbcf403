package aggregate

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/sundial-labs/solarboard/internal/clean"
	"github.com/sundial-labs/solarboard/internal/ingest"
	"github.com/sundial-labs/solarboard/internal/models"
)

func loadTable(t *testing.T, csv, country string) *models.Table {
	t.Helper()
	table, err := ingest.ParseCSV(strings.NewReader(csv), country)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if err := clean.IndexByTimestamp(table); err != nil {
		t.Fatalf("IndexByTimestamp: %v", err)
	}
	return table
}

func testCollection(t *testing.T) *models.Collection {
	t.Helper()
	c := models.NewCollection()
	c.Set("Benin", loadTable(t,
		"Timestamp,GHI,WS,Region\n"+
			"2024-01-01 00:00,0,1,North\n"+
			"2024-01-02 00:00,5,2,North\n"+
			"2024-01-03 00:00,10,3,South\n",
		"Benin"))
	c.Set("Togo", loadTable(t,
		"Timestamp,GHI,Region\n"+
			"2024-02-01 00:00,2,Plateaux\n"+
			"2024-02-02 00:00,2,Plateaux\n"+
			"2024-02-03 00:00,2,Maritime\n",
		"Togo"))
	return c
}

func TestDateBounds(t *testing.T) {
	c := testCollection(t)
	lo, hi := DateBounds(c)
	if want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC); !lo.Equal(want) {
		t.Errorf("min = %v, want %v", lo, want)
	}
	if want := time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC); !hi.Equal(want) {
		t.Errorf("max = %v, want %v", hi, want)
	}
}

func TestDateBounds_FallbackToToday(t *testing.T) {
	c := models.NewCollection()
	c.Set("Benin", loadTable(t, "Date,GHI\nx,1\n", "Benin"))

	lo, hi := DateBounds(c)
	if !lo.Equal(hi) {
		t.Errorf("fallback bounds differ: %v vs %v", lo, hi)
	}
	if lo.IsZero() {
		t.Error("fallback should be today, not zero")
	}
}

func TestFilter_Countries(t *testing.T) {
	c := testCollection(t)
	got := Filter(c, []string{"Togo"}, time.Time{}, time.Time{}, false)
	if got.Len() != 1 {
		t.Fatalf("len = %d, want 1", got.Len())
	}
	if _, ok := got.Get("Togo"); !ok {
		t.Error("Togo missing from filtered collection")
	}
}

func TestFilter_DateRange(t *testing.T) {
	c := testCollection(t)
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	got := Filter(c, nil, start, end, true)
	benin, _ := got.Get("Benin")
	if benin.Len() != 2 {
		t.Errorf("Benin rows = %d, want 2 (inclusive range)", benin.Len())
	}
	togo, _ := got.Get("Togo")
	if togo.Len() != 0 {
		t.Errorf("Togo rows = %d, want 0", togo.Len())
	}

	// Source tables untouched
	orig, _ := c.Get("Benin")
	if orig.Len() != 3 {
		t.Errorf("Filter mutated its input: %d rows", orig.Len())
	}
}

func TestFilter_RangeIgnoredWithoutTimeIndex(t *testing.T) {
	c := models.NewCollection()
	c.Set("Benin", loadTable(t, "Date,GHI\na,1\nb,2\n", "Benin"))

	got := Filter(c, nil, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), true)
	benin, _ := got.Get("Benin")
	if benin.Len() != 2 {
		t.Errorf("rows = %d, want 2 (range is a no-op without a time index)", benin.Len())
	}
}

func TestGlobalKPIs(t *testing.T) {
	c := testCollection(t)
	kpis := GlobalKPIs(c)

	// Pooled GHI: {0,5,10} + {2,2,2} -> mean 3.5
	if kpis.GHIMean != 3.5 {
		t.Errorf("GHIMean = %v, want 3.5", kpis.GHIMean)
	}
	if !math.IsNaN(kpis.DNIMean) {
		t.Errorf("DNIMean = %v, want NaN (absent everywhere)", kpis.DNIMean)
	}
}

func TestPerCountryMean(t *testing.T) {
	c := testCollection(t)

	rows := PerCountryMean(c, "WS")
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1 (Togo lacks WS)", len(rows))
	}
	if rows[0].Country != "Benin" || rows[0].Mean != 2 {
		t.Errorf("got %+v, want Benin mean 2", rows[0])
	}
}

func TestTopRegions(t *testing.T) {
	c := testCollection(t)

	got := TopRegions(c, "GHI", 10)
	// Region means: Benin/South 10, Benin/North 2.5, Togo/Plateaux 2,
	// Togo/Maritime 2. Ties keep encounter order.
	want := []RegionMean{
		{Country: "Benin", Region: "South", Mean: 10},
		{Country: "Benin", Region: "North", Mean: 2.5},
		{Country: "Togo", Region: "Plateaux", Mean: 2},
		{Country: "Togo", Region: "Maritime", Mean: 2},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if got := TopRegions(c, "GHI", 2); len(got) != 2 {
		t.Errorf("truncated len = %d, want 2", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Mean > got[i-1].Mean {
			t.Errorf("not sorted descending at %d", i)
		}
	}
}

func TestTopRegions_RequiresRegionColumn(t *testing.T) {
	c := models.NewCollection()
	c.Set("Benin", loadTable(t, "Timestamp,GHI\n2024-01-01,5\n", "Benin"))

	if got := TopRegions(c, "GHI", 5); got != nil {
		t.Errorf("got %+v, want nil (no source Region column)", got)
	}
}

func TestSummaryStats(t *testing.T) {
	c := testCollection(t)
	table := SummaryStats(c, []string{"GHI", "WS", "BP"})

	if table.Empty() {
		t.Fatal("summary should not be empty")
	}
	cell, ok := table.Cells["GHI"]["Benin"]
	if !ok {
		t.Fatal("missing (GHI, Benin) cell")
	}
	if cell.Mean != 5 || cell.Median != 5 || cell.Count != 3 {
		t.Errorf("cell = %+v, want mean 5 median 5 count 3", cell)
	}
	if math.Abs(cell.Std-5) > 1e-9 {
		t.Errorf("std = %v, want 5", cell.Std)
	}

	if _, ok := table.Cells["WS"]["Togo"]; ok {
		t.Error("Togo lacks WS and must not contribute a cell")
	}
	if _, ok := table.Cells["BP"]; ok {
		t.Error("BP absent everywhere must not appear as a row")
	}
}

func TestSummaryStats_Empty(t *testing.T) {
	table := SummaryStats(models.NewCollection(), []string{"GHI"})
	if !table.Empty() {
		t.Errorf("expected empty summary, got %+v", table)
	}
}

func TestHighestMean(t *testing.T) {
	c := testCollection(t)

	country, val := HighestMean(c, "GHI")
	if country != "Benin" || val != 5 {
		t.Errorf("got (%q, %v), want (Benin, 5)", country, val)
	}
}

func TestHighestMean_TieFirstWins(t *testing.T) {
	c := models.NewCollection()
	c.Set("Togo", loadTable(t, "Timestamp,GHI\n2024-01-01,4\n", "Togo"))
	c.Set("Benin", loadTable(t, "Timestamp,GHI\n2024-01-01,4\n", "Benin"))

	country, _ := HighestMean(c, "GHI")
	if country != "Togo" {
		t.Errorf("tie winner = %q, want Togo (first encountered)", country)
	}
}

func TestHighestMean_Empty(t *testing.T) {
	country, val := HighestMean(models.NewCollection(), "GHI")
	if country != "" || !math.IsNaN(val) {
		t.Errorf("got (%q, %v), want (\"\", NaN)", country, val)
	}
}
