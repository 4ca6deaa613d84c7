package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/bike-computer/internal/logic"
)

// ErrNoEndMarker is returned when the stream ends before the end line.
var ErrNoEndMarker = errors.New("export stream ended without end marker")

// ErrNoStartMarker is returned when the stream holds no start line.
var ErrNoStartMarker = errors.New("export stream has no start marker")

// Row is one parsed trip row.
type Row struct {
	Slot int
	Trip logic.Trip
}

// Dump is the result of parsing an export stream.
type Dump struct {
	Rows []Row
	// Skipped counts lines between the delimiters that were not valid rows.
	Skipped int
}

// Parse reads one export from r. Lines before the start line are ignored.
// Lines between the delimiters that fail column or number validation are
// skipped. If the stream ends early the rows read so far are returned
// together with ErrNoEndMarker.
func Parse(r io.Reader) (Dump, error) {
	var d Dump
	started := false

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !started {
			started = line == StartLine
			continue
		}
		switch line {
		case EndLine:
			return d, nil
		case Header, "":
			continue
		}
		row, err := ParseRow(line)
		if err != nil {
			d.Skipped++
			continue
		}
		d.Rows = append(d.Rows, row)
	}
	if err := sc.Err(); err != nil {
		return d, fmt.Errorf("read export: %w", err)
	}
	if !started {
		return d, ErrNoStartMarker
	}
	return d, ErrNoEndMarker
}

// ParseRow parses a single data row.
func ParseRow(line string) (Row, error) {
	fields := strings.Split(line, ",")
	if len(fields) != Columns {
		return Row{}, fmt.Errorf("row has %d columns, want %d", len(fields), Columns)
	}

	ints := make([]int, 0, 8)
	floats := make([]float64, 0, 4)
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if i >= 1 && i <= 4 {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return Row{}, fmt.Errorf("column %d: %w", i, err)
			}
			floats = append(floats, v)
			continue
		}
		v, err := strconv.Atoi(f)
		if err != nil {
			return Row{}, fmt.Errorf("column %d: %w", i, err)
		}
		ints = append(ints, v)
	}

	// ints: slot, duration, year, month, day, hour, minute, second
	if ints[0] < 0 || ints[0] >= logic.MaxTrips {
		return Row{}, fmt.Errorf("slot %d out of range", ints[0])
	}
	if ints[1] < 0 {
		return Row{}, fmt.Errorf("negative duration %d", ints[1])
	}

	row := Row{
		Slot: ints[0],
		Trip: logic.Trip{
			AvgSpeed:   floats[0],
			MaxSpeed:   floats[1],
			MinSpeed:   floats[2],
			DistanceKm: floats[3],
			Duration:   time.Duration(ints[1]) * time.Second,
		},
	}
	if ints[2] != 0 {
		row.Trip.Start = time.Date(ints[2], time.Month(ints[3]), ints[4], ints[5], ints[6], ints[7], 0, time.UTC)
	}
	return row, nil
}
