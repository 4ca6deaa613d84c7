// Package export implements the line-oriented CSV trip dump sent over the
// serial console, and the host-side parser for it.
//
// Framing is purely lexical: a start line, a header, one row per used
// trip slot and an end line. There is no acknowledgement or checksum.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/sweeney/bike-computer/internal/logic"
)

// Stream delimiters and header. These are the device's established wire
// format and must not change.
const (
	StartLine = "--- EXPORT DATE TURE (CSV) ---"
	Header    = "ID_Tura,VitezaMedie,VitezaMax,VitezaMin,Distanta_km,Durata_s,An,Luna,Zi,Ora,Minut,Secunda"
	EndLine   = "--- SFARSIT EXPORT ---"
)

// Command is the inbound token that requests an export.
const Command = "EXPORT"

// EpochYear is the first calendar year considered a real trip timestamp.
const EpochYear = 2020

// Columns is the number of fields in a data row.
const Columns = 12

// Match reports whether line is the export command.
func Match(line string) bool {
	return strings.TrimSpace(line) == Command
}

// Plausible reports whether a stored trip slot holds a real trip.
func Plausible(t logic.Trip) bool {
	return t.Start.Year() >= EpochYear || t.DistanceKm != 0 || t.Duration != 0
}

// Write emits the full export for trips, skipping unused slots.
func Write(w io.Writer, trips []logic.Trip) error {
	var b strings.Builder
	b.WriteString(StartLine + "\n")
	b.WriteString(Header + "\n")
	for i, t := range trips {
		if !Plausible(t) {
			continue
		}
		b.WriteString(FormatRow(i, t))
		b.WriteString("\n")
	}
	b.WriteString(EndLine + "\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// FormatRow formats one trip slot as a CSV row without a line ending.
func FormatRow(slot int, t logic.Trip) string {
	var year, month, day, hour, minute, second int
	if !t.Start.IsZero() {
		year = t.Start.Year()
		month = int(t.Start.Month())
		day = t.Start.Day()
		hour, minute, second = t.Start.Clock()
	}
	return fmt.Sprintf("%d,%.2f,%.2f,%.2f,%.3f,%d,%d,%d,%d,%d,%d,%d",
		slot, t.AvgSpeed, t.MaxSpeed, t.MinSpeed, t.DistanceKm,
		int64(t.Duration.Seconds()),
		year, month, day, hour, minute, second)
}
