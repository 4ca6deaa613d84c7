// Package hostdb stores trips imported from the bike computer in a SQLite
// database on the host.
package hostdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sweeney/bike-computer/internal/export"
	"github.com/sweeney/bike-computer/internal/logic"
)

const schema = `
	CREATE TABLE IF NOT EXISTS trips (
		slot INTEGER NOT NULL,
		start INTEGER NOT NULL,
		duration_s INTEGER NOT NULL,
		avg_speed DOUBLE NOT NULL,
		max_speed DOUBLE NOT NULL,
		min_speed DOUBLE NOT NULL,
		distance_km DOUBLE NOT NULL,
		imported_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (slot, start, duration_s)
	);
`

// Trip is one imported trip row.
type Trip struct {
	Slot int
	Trip logic.Trip
}

// DB is a trip database.
type DB struct {
	*sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &DB{db}, nil
}

// Import upserts the rows of an export dump in one transaction. A trip is
// identified by its slot, start and duration, so importing the same dump
// twice stores each trip once. It returns the number of rows written.
func (db *DB) Import(ctx context.Context, rows []export.Row) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trips (slot, start, duration_s, avg_speed, max_speed, min_speed, distance_km)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (slot, start, duration_s) DO UPDATE SET
			avg_speed = excluded.avg_speed,
			max_speed = excluded.max_speed,
			min_speed = excluded.min_speed,
			distance_km = excluded.distance_km,
			imported_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		t := r.Trip
		if _, err := stmt.ExecContext(ctx, r.Slot, startUnix(t.Start), int64(t.Duration/time.Second),
			t.AvgSpeed, t.MaxSpeed, t.MinSpeed, t.DistanceKm); err != nil {
			return 0, fmt.Errorf("insert trip slot %d: %w", r.Slot, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return len(rows), nil
}

// Trips returns every stored trip, oldest start first.
func (db *DB) Trips(ctx context.Context) ([]Trip, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT slot, start, duration_s, avg_speed, max_speed, min_speed, distance_km
		FROM trips ORDER BY start, slot
	`)
	if err != nil {
		return nil, fmt.Errorf("query trips: %w", err)
	}
	defer rows.Close()

	var out []Trip
	for rows.Next() {
		var (
			tr       Trip
			start    int64
			duration int64
		)
		if err := rows.Scan(&tr.Slot, &start, &duration,
			&tr.Trip.AvgSpeed, &tr.Trip.MaxSpeed, &tr.Trip.MinSpeed, &tr.Trip.DistanceKm); err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		if start != 0 {
			tr.Trip.Start = time.Unix(start, 0).UTC()
		}
		tr.Trip.Duration = time.Duration(duration) * time.Second
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read trips: %w", err)
	}
	return out, nil
}

// TotalDistance returns the summed distance of all stored trips in km.
func (db *DB) TotalDistance(ctx context.Context) (float64, error) {
	var km float64
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(SUM(distance_km), 0) FROM trips").Scan(&km); err != nil {
		return 0, fmt.Errorf("sum distance: %w", err)
	}
	return km, nil
}

func startUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
