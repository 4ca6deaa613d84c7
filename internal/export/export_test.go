package export

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sweeney/bike-computer/internal/logic"
)

var rideTrip = logic.Trip{
	AvgSpeed:   18.25,
	MaxSpeed:   42.5,
	MinSpeed:   3.75,
	DistanceKm: 12.125,
	Duration:   2400 * time.Second,
	Start:      time.Date(2026, 5, 17, 9, 30, 12, 0, time.UTC),
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, make([]logic.Trip, logic.MaxTrips)); err != nil {
		t.Fatal(err)
	}
	want := StartLine + "\n" + Header + "\n" + EndLine + "\n"
	if got := buf.String(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestWriteSkipsUnusedSlots(t *testing.T) {
	trips := make([]logic.Trip, logic.MaxTrips)
	trips[2] = rideTrip
	trips[7] = logic.Trip{DistanceKm: 0.5, Duration: 90 * time.Second} // no clock set
	trips[9] = logic.Trip{Start: time.Date(2019, 12, 31, 0, 0, 0, 0, time.UTC)}

	var buf bytes.Buffer
	if err := Write(&buf, trips); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	want := []string{
		StartLine,
		Header,
		"2,18.25,42.50,3.75,12.125,2400,2026,5,17,9,30,12",
		"7,0.00,0.00,0.00,0.500,90,0,0,0,0,0,0",
		EndLine,
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("export mismatch (-want +got):\n%s", diff)
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"EXPORT", true},
		{"  EXPORT\r", true},
		{"export", false},
		{"EXPORT ALL", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Match(tt.line); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	trips := make([]logic.Trip, logic.MaxTrips)
	trips[0] = rideTrip
	trips[4] = logic.Trip{AvgSpeed: 10, MaxSpeed: 20, DistanceKm: 1, Duration: time.Minute}

	var buf bytes.Buffer
	buf.WriteString("boot noise\n")
	if err := Write(&buf, trips); err != nil {
		t.Fatal(err)
	}

	d, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := Dump{Rows: []Row{
		{Slot: 0, Trip: rideTrip},
		{Slot: 4, Trip: trips[4]},
	}}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Errorf("dump mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSkipsBadRows(t *testing.T) {
	in := strings.Join([]string{
		StartLine,
		Header,
		"1,10.00,20.00,5.00,1.000,60,2026,1,2,3,4,5",
		"unknown command: \"FOO\"",
		"2,10.00,20.00,5.00,1.000,60,2026,1,2,3,4",
		"3,fast,20.00,5.00,1.000,60,2026,1,2,3,4,5",
		"11,10.00,20.00,5.00,1.000,60,2026,1,2,3,4,5",
		EndLine,
		"",
	}, "\r\n")

	d, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(d.Rows) != 1 || d.Rows[0].Slot != 1 {
		t.Errorf("rows: %+v", d.Rows)
	}
	if d.Skipped != 4 {
		t.Errorf("skipped: got %d, want 4", d.Skipped)
	}
}

func TestParseTruncated(t *testing.T) {
	in := StartLine + "\n" + Header + "\n" + "1,10.00,20.00,5.00,1.000,60,2026,1,2,3,4,5\n"
	d, err := Parse(strings.NewReader(in))
	if !errors.Is(err, ErrNoEndMarker) {
		t.Fatalf("got %v, want ErrNoEndMarker", err)
	}
	if len(d.Rows) != 1 {
		t.Errorf("rows read before truncation must be kept, got %d", len(d.Rows))
	}

	if _, err := Parse(strings.NewReader("nothing here\n")); !errors.Is(err, ErrNoStartMarker) {
		t.Errorf("got %v, want ErrNoStartMarker", err)
	}
}

func TestPortOptionsNormalize(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatal(err)
	}
	want := PortOptions{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "N"}
	if opts != want {
		t.Errorf("defaults: got %+v, want %+v", opts, want)
	}

	for _, bad := range []PortOptions{
		{DataBits: 9},
		{StopBits: 3},
		{Parity: "mark"},
	} {
		if _, err := bad.Normalize(); err == nil {
			t.Errorf("%+v: expected error", bad)
		}
	}

	mode, err := PortOptions{BaudRate: 115200, StopBits: 2, Parity: "even"}.SerialMode()
	if err != nil {
		t.Fatal(err)
	}
	if mode.BaudRate != 115200 || mode.DataBits != 8 {
		t.Errorf("mode: %+v", mode)
	}
}
