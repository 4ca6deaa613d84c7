package hostdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/bike-computer/internal/export"
	"github.com/sweeney/bike-computer/internal/logic"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "trips.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRows() []export.Row {
	return []export.Row{
		{Slot: 0, Trip: logic.Trip{
			AvgSpeed: 18.5, MaxSpeed: 33, MinSpeed: 4.2, DistanceKm: 12.345,
			Duration: 40 * time.Minute,
			Start:    time.Date(2026, 3, 14, 7, 30, 0, 0, time.UTC),
		}},
		{Slot: 1, Trip: logic.Trip{
			AvgSpeed: 21, MaxSpeed: 41.5, MinSpeed: 9, DistanceKm: 7,
			Duration: 20 * time.Minute,
			Start:    time.Date(2026, 3, 15, 18, 5, 9, 0, time.UTC),
		}},
	}
}

func TestImportAndList(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	n, err := db.Import(ctx, sampleRows())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	trips, err := db.Trips(ctx)
	require.NoError(t, err)
	require.Len(t, trips, 2)

	assert.Equal(t, 0, trips[0].Slot)
	assert.Equal(t, 12.345, trips[0].Trip.DistanceKm)
	assert.Equal(t, 40*time.Minute, trips[0].Trip.Duration)
	assert.True(t, trips[0].Trip.Start.Equal(time.Date(2026, 3, 14, 7, 30, 0, 0, time.UTC)))
	assert.Equal(t, 1, trips[1].Slot)
	assert.Equal(t, 41.5, trips[1].Trip.MaxSpeed)
}

func TestImportIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Import(ctx, sampleRows())
	require.NoError(t, err)
	_, err = db.Import(ctx, sampleRows())
	require.NoError(t, err)

	trips, err := db.Trips(ctx)
	require.NoError(t, err)
	assert.Len(t, trips, 2)

	km, err := db.TotalDistance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 19.345, km, 1e-9)
}

func TestImportOverwrittenSlot(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Import(ctx, sampleRows())
	require.NoError(t, err)

	// The device reused slot 0 for a newer trip.
	newer := export.Row{Slot: 0, Trip: logic.Trip{
		AvgSpeed: 15, MaxSpeed: 25, DistanceKm: 5,
		Duration: 20 * time.Minute,
		Start:    time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
	}}
	_, err = db.Import(ctx, []export.Row{newer})
	require.NoError(t, err)

	trips, err := db.Trips(ctx)
	require.NoError(t, err)
	assert.Len(t, trips, 3)
}

func TestUndatedTripKeepsZeroStart(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Import(ctx, []export.Row{{Slot: 4, Trip: logic.Trip{DistanceKm: 1, Duration: time.Minute}}})
	require.NoError(t, err)

	trips, err := db.Trips(ctx)
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.True(t, trips[0].Trip.Start.IsZero())
}

func TestEmptyDatabase(t *testing.T) {
	db := openTestDB(t)

	trips, err := db.Trips(context.Background())
	require.NoError(t, err)
	assert.Empty(t, trips)

	km, err := db.TotalDistance(context.Background())
	require.NoError(t, err)
	assert.Zero(t, km)
}
