package storage

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/sweeney/bike-computer/internal/logic"
)

// Magic marks an initialized device. It is always written last.
const Magic uint16 = 0xB1C7

// Field offsets. All values are little-endian.
const (
	offMagic     = 0
	offWheel     = 2
	offOdometer  = 6
	offRideTime  = 10
	offTripIndex = 14
	offTrips     = 15
)

// TripRecordSize is the size of one stored trip:
// avg, max, min, distance (f32) · duration s (u32) · packed time (u32) ·
// start reference ms (u32).
const TripRecordSize = 28

// Size is the number of bytes the layout occupies.
const Size = offTrips + logic.MaxTrips*TripRecordSize

// MaxOdometerKM bounds a plausible stored odometer.
const MaxOdometerKM = 1e6

var le = binary.LittleEndian

func tripOffset(slot int) int64 {
	return int64(offTrips + slot*TripRecordSize)
}

func putFloat(b []byte, v float64) {
	le.PutUint32(b, math.Float32bits(float32(v)))
}

func getFloat(b []byte) float64 {
	return float64(math.Float32frombits(le.Uint32(b)))
}

// encodeTrip serializes t into a trip record.
func encodeTrip(t logic.Trip) []byte {
	b := make([]byte, TripRecordSize)
	putFloat(b[0:], t.AvgSpeed)
	putFloat(b[4:], t.MaxSpeed)
	putFloat(b[8:], t.MinSpeed)
	putFloat(b[12:], t.DistanceKm)
	le.PutUint32(b[16:], uint32(t.Duration/time.Second))
	le.PutUint32(b[20:], PackTime(t.Start))
	le.PutUint32(b[24:], uint32(t.StartRef/time.Millisecond))
	return b
}

// decodeTrip parses a trip record.
func decodeTrip(b []byte) logic.Trip {
	return logic.Trip{
		AvgSpeed:   getFloat(b[0:]),
		MaxSpeed:   getFloat(b[4:]),
		MinSpeed:   getFloat(b[8:]),
		DistanceKm: getFloat(b[12:]),
		Duration:   time.Duration(le.Uint32(b[16:])) * time.Second,
		Start:      UnpackTime(le.Uint32(b[20:])),
		StartRef:   time.Duration(le.Uint32(b[24:])) * time.Millisecond,
	}
}

// PackTime packs t into 32 bits:
// year-2000 (6) | month (4) | day (5) | hour (5) | minute (6) | second (6).
// The zero time packs to 0. Years outside 2000..2063 are clamped.
func PackTime(t time.Time) uint32 {
	if t.IsZero() {
		return 0
	}
	y := t.Year() - 2000
	if y < 0 {
		y = 0
	}
	if y > 63 {
		y = 63
	}
	return uint32(y)<<26 |
		uint32(t.Month())<<22 |
		uint32(t.Day())<<17 |
		uint32(t.Hour())<<12 |
		uint32(t.Minute())<<6 |
		uint32(t.Second())
}

// UnpackTime reverses PackTime. Values that do not describe a calendar
// date, including 0 and erased cells, unpack to the zero time.
func UnpackTime(v uint32) time.Time {
	year := int(v>>26) + 2000
	month := int(v>>22) & 0xF
	day := int(v>>17) & 0x1F
	hour := int(v>>12) & 0x1F
	minute := int(v>>6) & 0x3F
	second := int(v) & 0x3F

	if month < 1 || month > 12 || day < 1 || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	if t.Day() != day {
		return time.Time{}
	}
	return t
}
