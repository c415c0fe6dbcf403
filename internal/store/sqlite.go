// Package store archives cleaned measurements in sqlite. The archive is
// an optional sink: the in-memory pipeline never requires it, but when a
// database is configured, cleaned uploads survive process restarts.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sundial-labs/solarboard/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// ArchiveTable writes every row of a cleaned table in one transaction.
// Re-archiving the same (country, timestamp) replaces the previous row,
// so the last upload for a country wins.
func (s *Store) ArchiveTable(t *models.Table) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO measurements (country, measured_at, ghi, dni, dhi, mod_a, mod_b, tamb, rh, ws, ws_gust, ws_stdev, wd, wd_stdev, bp, precipitation, t_mod_a, t_mod_b, cleaning, region)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(country, measured_at) DO UPDATE SET
			ghi = excluded.ghi,
			dni = excluded.dni,
			dhi = excluded.dhi,
			mod_a = excluded.mod_a,
			mod_b = excluded.mod_b,
			tamb = excluded.tamb,
			rh = excluded.rh,
			ws = excluded.ws,
			ws_gust = excluded.ws_gust,
			ws_stdev = excluded.ws_stdev,
			wd = excluded.wd,
			wd_stdev = excluded.wd_stdev,
			bp = excluded.bp,
			precipitation = excluded.precipitation,
			t_mod_a = excluded.t_mod_a,
			t_mod_b = excluded.t_mod_b,
			cleaning = excluded.cleaning,
			region = excluded.region
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range t.Rows {
		r := &t.Rows[i]
		_, err := stmt.Exec(
			r.Country, r.Timestamp,
			r.GHI, r.DNI, r.DHI, r.ModA, r.ModB,
			r.Tamb, r.RH,
			r.WS, r.WSgust, r.WSstdev, r.WD, r.WDstdev,
			r.BP, r.Precipitation, r.TModA, r.TModB,
			r.Cleaning, r.Region,
		)
		if err != nil {
			return fmt.Errorf("insert measurement for %s: %w", r.Country, err)
		}
	}
	return tx.Commit()
}

// GetMeasurements returns a country's archived rows within [start, end],
// ordered by timestamp.
func (s *Store) GetMeasurements(country string, start, end time.Time) ([]models.Record, error) {
	rows, err := s.db.Query(`
		SELECT country, measured_at, ghi, dni, dhi, mod_a, mod_b, tamb, rh, ws, ws_gust, ws_stdev, wd, wd_stdev, bp, precipitation, t_mod_a, t_mod_b, cleaning, region
		FROM measurements
		WHERE country = ? AND measured_at >= ? AND measured_at <= ?
		ORDER BY measured_at ASC
	`, country, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		var r models.Record
		err := rows.Scan(
			&r.Country, &r.Timestamp,
			&r.GHI, &r.DNI, &r.DHI, &r.ModA, &r.ModB,
			&r.Tamb, &r.RH,
			&r.WS, &r.WSgust, &r.WSstdev, &r.WD, &r.WDstdev,
			&r.BP, &r.Precipitation, &r.TModA, &r.TModB,
			&r.Cleaning, &r.Region,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Countries lists the archived country labels in alphabetical order.
func (s *Store) Countries() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT country FROM measurements ORDER BY country`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var country string
		if err := rows.Scan(&country); err != nil {
			return nil, err
		}
		out = append(out, country)
	}
	return out, rows.Err()
}
