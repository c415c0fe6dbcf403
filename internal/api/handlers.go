package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sundial-labs/solarboard/internal/aggregate"
	"github.com/sundial-labs/solarboard/internal/clean"
	"github.com/sundial-labs/solarboard/internal/compare"
	"github.com/sundial-labs/solarboard/internal/ingest"
	"github.com/sundial-labs/solarboard/internal/metrics"
	"github.com/sundial-labs/solarboard/internal/models"
)

const dateLayout = "2006-01-02"

// maxUploadBytes caps one CSV upload at 64 MiB.
const maxUploadBytes = 64 << 20

type indexData struct {
	Countries []string
	KPIs      aggregate.KPIs
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	c := s.sessions.collection(w, r)
	data := indexData{
		Countries: c.Countries(),
		KPIs:      aggregate.GlobalKPIs(c),
	}
	if err := s.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		log.Printf("render index: %v", err)
	}
}

// handleUpload accepts one multipart CSV (field "file") plus a "country"
// form value, cleans it, and stores it in the session collection. A
// parse failure for one country is reported to that caller only; other
// countries' loaded tables are untouched.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c := s.sessions.collection(w, r)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "parse form: "+err.Error(), http.StatusBadRequest)
		return
	}
	country := strings.TrimSpace(r.FormValue("country"))
	if country == "" {
		http.Error(w, "country required", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		http.Error(w, "read upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	table, err := s.loader.Load(data, country)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(country, "parse_error").Inc()
		var pe *ingest.ParseError
		if errors.As(err, &pe) {
			http.Error(w, pe.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := clean.Apply(table, s.cfg); err != nil {
		metrics.UploadsTotal.WithLabelValues(country, "clean_error").Inc()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Last upload wins for a country key
	c.Set(country, table)
	metrics.UploadsTotal.WithLabelValues(country, "ok").Inc()

	if s.archive != nil {
		if err := s.archive.ArchiveTable(table); err != nil {
			log.Printf("archive %s: %v", country, err)
		}
	}

	writeJSON(w, map[string]any{"country": country, "rows": table.Len()})
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	c := s.filtered(w, r)
	writeJSON(w, aggregate.GlobalKPIs(c))
}

func (s *Server) handleBounds(w http.ResponseWriter, r *http.Request) {
	c := s.sessions.collection(w, r)
	lo, hi := aggregate.DateBounds(c)
	writeJSON(w, map[string]string{
		"min": lo.Format(dateLayout),
		"max": hi.Format(dateLayout),
	})
}

func (s *Server) handleMean(w http.ResponseWriter, r *http.Request) {
	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = "GHI"
	}
	c := s.filtered(w, r)
	rows := aggregate.PerCountryMean(c, metric)
	country, best := aggregate.HighestMean(c, metric)
	writeJSON(w, map[string]any{
		"metric":          metric,
		"means":           rows,
		"highest_country": country,
		"highest_mean":    jsonFloat(best),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	metricsParam := r.URL.Query().Get("metrics")
	selected := models.CommonMetrics
	if metricsParam != "" {
		selected = strings.Split(metricsParam, ",")
	}
	c := s.filtered(w, r)
	writeJSON(w, aggregate.SummaryStats(c, selected))
}

func (s *Server) handleTopRegions(w http.ResponseWriter, r *http.Request) {
	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = "GHI"
	}
	n := 10
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = parsed
	}
	c := s.filtered(w, r)
	writeJSON(w, aggregate.TopRegions(c, metric, n))
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	c := s.filtered(w, r)
	rows, err := compare.Countries(c)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, rows)
}

func (s *Server) handleDownloadClean(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")
	if country == "" {
		http.Error(w, "country required", http.StatusBadRequest)
		return
	}
	c := s.sessions.collection(w, r)
	table, ok := c.Get(country)
	if !ok {
		http.Error(w, "no dataset for "+country, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", country+"_clean.csv"))
	if err := clean.Export(table, w); err != nil {
		log.Printf("export %s: %v", country, err)
	}
}

func (s *Server) handleDownloadCompare(w http.ResponseWriter, r *http.Request) {
	c := s.filtered(w, r)
	rows, err := compare.Countries(c)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="comparison.csv"`)
	if err := compare.WriteCSV(rows, w); err != nil {
		log.Printf("write comparison: %v", err)
	}
}

// handleDownloadArchive serves archived cleaned measurements for a
// country over an optional date range, rebuilt into the standard CSV
// artifact. Only available when an archive database is configured.
func (s *Server) handleDownloadArchive(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		http.Error(w, "no archive configured", http.StatusNotFound)
		return
	}
	country := r.URL.Query().Get("country")
	if country == "" {
		http.Error(w, "country required", http.StatusBadRequest)
		return
	}

	start := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)
	if raw := r.URL.Query().Get("start"); raw != "" {
		if parsed, err := time.Parse(dateLayout, raw); err == nil {
			start = parsed
		}
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		if parsed, err := time.Parse(dateLayout, raw); err == nil {
			end = parsed.Add(24*time.Hour - time.Nanosecond)
		}
	}

	records, err := s.archive.GetMeasurements(country, start, end)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(records) == 0 {
		http.Error(w, "no archived rows for "+country, http.StatusNotFound)
		return
	}

	table := models.NewTable(country, models.NumericColumns)
	table.AddColumn("Cleaning")
	table.AddColumn("Region")
	table.TimestampColumn = "Timestamp"
	table.TimeIndexed = true
	table.Rows = records

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", country+"_archive.csv"))
	if err := clean.Export(table, w); err != nil {
		log.Printf("export archive %s: %v", country, err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// filtered applies the request's country/date-range selection to the
// session collection. Selections are passed verbatim: an unknown country
// simply matches nothing, and a missing range means no slicing.
func (s *Server) filtered(w http.ResponseWriter, r *http.Request) *models.Collection {
	c := s.sessions.collection(w, r)

	var countries []string
	if raw := r.URL.Query().Get("countries"); raw != "" {
		countries = strings.Split(raw, ",")
	}

	var start, end time.Time
	hasRange := false
	if rawStart, rawEnd := r.URL.Query().Get("start"), r.URL.Query().Get("end"); rawStart != "" && rawEnd != "" {
		parsedStart, errStart := time.Parse(dateLayout, rawStart)
		parsedEnd, errEnd := time.Parse(dateLayout, rawEnd)
		if errStart == nil && errEnd == nil {
			// Inclusive range: the whole end day counts
			start = parsedStart
			end = parsedEnd.Add(24*time.Hour - time.Nanosecond)
			hasRange = true
		}
	}

	if countries == nil && !hasRange {
		return c
	}
	return aggregate.Filter(c, countries, start, end, hasRange)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// jsonFloat makes NaN representable: encoding/json rejects NaN, so the
// "no data" mean is serialized as null.
func jsonFloat(f float64) any {
	if f != f {
		return nil
	}
	return f
}
