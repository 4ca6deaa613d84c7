// Command trip-import asks a bike computer for its trip log over the
// serial console and stores the trips in a SQLite database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/sweeney/bike-computer/internal/export"
	"github.com/sweeney/bike-computer/internal/hostdb"
)

func main() {
	portPath := flag.String("port", "/dev/ttyUSB0", "Serial port of the bike computer")
	baud := flag.Int("baud", export.DefaultBaudRate, "Serial baud rate")
	dbPath := flag.String("db", "trips.db", "SQLite trip database")
	timeout := flag.Duration("timeout", 2*time.Second, "Give up when the device is silent this long")
	list := flag.Bool("list", false, "List stored trips instead of importing")

	flag.Parse()

	if err := run(*portPath, *baud, *dbPath, *timeout, *list); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(portPath string, baud int, dbPath string, timeout time.Duration, list bool) error {
	db, err := hostdb.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if list {
		return printTrips(ctx, db, os.Stdout)
	}

	port, err := export.OpenSerial(portPath, export.PortOptions{BaudRate: baud})
	if err != nil {
		return err
	}
	defer port.Close()

	if err := port.SetReadTimeout(timeout); err != nil {
		return fmt.Errorf("set read timeout: %w", err)
	}
	// Drop anything the device printed before we asked.
	if err := port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("reset input: %w", err)
	}

	n, err := importTrips(ctx, port, db)
	if err != nil {
		return err
	}
	log.Printf("imported %d trips from %s into %s", n, portPath, dbPath)

	km, err := db.TotalDistance(ctx)
	if err != nil {
		return err
	}
	log.Printf("archive total: %.3f km", km)
	return nil
}

// importTrips sends the export command on port, parses the reply and
// stores its rows. A reply cut off before the end marker still stores the
// complete rows received.
func importTrips(ctx context.Context, port io.ReadWriter, db *hostdb.DB) (int, error) {
	if _, err := io.WriteString(port, export.Command+"\n"); err != nil {
		return 0, fmt.Errorf("send export command: %w", err)
	}

	dump, err := export.Parse(silenceReader{port})
	switch {
	case errors.Is(err, export.ErrNoEndMarker):
		log.Printf("import: stream truncated after %d rows", len(dump.Rows))
	case err != nil:
		return 0, err
	}
	if dump.Skipped > 0 {
		log.Printf("import: skipped %d malformed rows", dump.Skipped)
	}

	return db.Import(ctx, dump.Rows)
}

func printTrips(ctx context.Context, db *hostdb.DB, out io.Writer) error {
	trips, err := db.Trips(ctx)
	if err != nil {
		return err
	}
	for _, t := range trips {
		start := "undated"
		if !t.Trip.Start.IsZero() {
			start = t.Trip.Start.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(out, "%-19s slot=%d %8.3f km %6v avg=%.2f max=%.2f min=%.2f\n",
			start, t.Slot, t.Trip.DistanceKm, t.Trip.Duration, t.Trip.AvgSpeed, t.Trip.MaxSpeed, t.Trip.MinSpeed)
	}
	return nil
}

// silenceReader ends the stream when a read times out. Serial reads
// report a timeout as zero bytes with no error.
type silenceReader struct {
	r io.Reader
}

func (s silenceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if n == 0 && err == nil {
		return 0, io.EOF
	}
	return n, err
}
