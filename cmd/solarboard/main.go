package main

import (
	"bytes"
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/sundial-labs/solarboard/internal/api"
	"github.com/sundial-labs/solarboard/internal/clean"
	"github.com/sundial-labs/solarboard/internal/compare"
	"github.com/sundial-labs/solarboard/internal/ingest"
	"github.com/sundial-labs/solarboard/internal/models"
	"github.com/sundial-labs/solarboard/internal/store"
)

func main() {
	dbPath := flag.String("db", "", "path to sqlite archive (empty disables archiving)")
	port := flag.String("port", "8080", "HTTP server port")
	cacheSize := flag.Int("cache-size", ingest.DefaultCacheSize, "parse cache capacity (entries)")

	cleanPath := flag.String("clean", "", "clean the CSV at this path and exit")
	fetchURL := flag.String("fetch", "", "fetch a remote CSV, clean it, and exit")
	country := flag.String("country", "", "country label for -clean/-fetch (default: file name)")
	outPath := flag.String("out", "", "output path for -clean/-fetch/-compare")
	comparePaths := flag.String("compare", "", "comma-separated cleaned CSVs to build a comparison from")

	maxNullFrac := flag.Float64("max-null-frac", clean.DefaultMaxNullFrac, "row-drop threshold for missing-value fraction")
	interpLimit := flag.Int("interp-limit", clean.DefaultInterpolateLimit, "max consecutive missing samples to interpolate")
	flag.Parse()

	cfg := clean.Config{
		MaxNullFrac:      *maxNullFrac,
		InterpolateLimit: *interpLimit,
	}

	if *cleanPath != "" {
		table, err := clean.Run(*cleanPath, *country, *outPath, cfg)
		if err != nil {
			log.Fatalf("clean: %v", err)
		}
		log.Printf("cleaned %s: %d rows", table.Country, table.Len())
		return
	}

	if *fetchURL != "" {
		runFetch(*fetchURL, *country, *outPath, cfg)
		return
	}

	if *comparePaths != "" {
		runCompare(strings.Split(*comparePaths, ","), *outPath, cfg)
		return
	}

	var archive *store.Store
	if *dbPath != "" {
		db, err := sql.Open("sqlite", *dbPath)
		if err != nil {
			log.Fatalf("open database: %v", err)
		}
		defer db.Close()

		db.Exec("PRAGMA journal_mode=WAL")
		db.Exec("PRAGMA busy_timeout=5000")

		archive = store.New(db)
		if err := archive.Migrate(); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		log.Println("archive database migrated")
	}

	loader, err := ingest.NewLoader(*cacheSize)
	if err != nil {
		log.Fatalf("parse cache: %v", err)
	}

	server := api.NewServer(loader, archive, *port, cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Printf("starting server on :%s", *port)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func runFetch(url, country, outPath string, cfg clean.Config) {
	if country == "" {
		log.Fatal("-country required with -fetch")
	}

	data, err := ingest.NewFetcher().Fetch(url)
	if err != nil {
		log.Fatalf("fetch: %v", err)
	}
	table, err := ingest.ParseCSV(bytes.NewReader(data), country)
	if err != nil {
		log.Fatalf("parse: %v", err)
	}
	if err := clean.Apply(table, cfg); err != nil {
		log.Fatalf("clean: %v", err)
	}
	log.Printf("cleaned %s: %d rows", country, table.Len())

	if outPath != "" {
		out, err := os.Create(outPath)
		if err != nil {
			log.Fatalf("create %s: %v", outPath, err)
		}
		defer out.Close()
		if err := clean.Export(table, out); err != nil {
			log.Fatalf("export: %v", err)
		}
		log.Printf("wrote %s", outPath)
	}
}

func runCompare(paths []string, outPath string, cfg clean.Config) {
	collection := models.NewCollection()
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		table, err := clean.Run(path, "", "", cfg)
		if err != nil {
			// One bad country does not abort the rest
			log.Printf("skipping %s: %v", path, err)
			continue
		}
		collection.Set(table.Country, table)
	}

	rows, err := compare.Countries(collection)
	if err != nil {
		log.Fatalf("compare: %v", err)
	}

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			log.Fatalf("create %s: %v", outPath, err)
		}
		defer f.Close()
		out = f
	}
	if err := compare.WriteCSV(rows, out); err != nil {
		log.Fatalf("write comparison: %v", err)
	}
}
