package api

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sundial-labs/solarboard/internal/clean"
	"github.com/sundial-labs/solarboard/internal/ingest"
	"github.com/sundial-labs/solarboard/internal/store"
)

//go:embed templates/*
var templateFS embed.FS

type Server struct {
	port     string
	loader   *ingest.Loader
	archive  *store.Store // nil when no database is configured
	cfg      clean.Config
	sessions *sessionRegistry
	tmpl     *template.Template
}

// NewServer wires the dashboard server. archive may be nil; cleaned
// uploads are then kept in session memory only.
func NewServer(loader *ingest.Loader, archive *store.Store, port string, cfg clean.Config) *Server {
	tmpl := template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))
	return &Server{
		port:     port,
		loader:   loader,
		archive:  archive,
		cfg:      cfg,
		sessions: newSessionRegistry(),
		tmpl:     tmpl,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/api/kpis", s.handleKPIs)
	mux.HandleFunc("/api/bounds", s.handleBounds)
	mux.HandleFunc("/api/mean", s.handleMean)
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/top-regions", s.handleTopRegions)
	mux.HandleFunc("/api/compare", s.handleCompare)
	mux.HandleFunc("/download/clean", s.handleDownloadClean)
	mux.HandleFunc("/download/compare", s.handleDownloadCompare)
	mux.HandleFunc("/download/archive", s.handleDownloadArchive)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
