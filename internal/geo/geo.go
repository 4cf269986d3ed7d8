// Package geo classifies device location samples against a spot geofence.
package geo

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	EarthRadiusMeters = 6371000.0

	// DefaultArrivalRadius is the distance in meters at or under which a
	// player counts as arrived.
	DefaultArrivalRadius = 120.0
)

var (
	ErrUnavailable = errors.New("location unavailable")
	ErrStreamEnded = errors.New("location stream ended")
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Coord) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

type Proximity int

const (
	Unavailable Proximity = iota
	TooFar
	Near
)

func (p Proximity) String() string {
	switch p {
	case Unavailable:
		return "locationUnavailable"
	case TooFar:
		return "tooFar"
	case Near:
		return "nearTarget"
	}
	return fmt.Sprintf("Proximity(%d)", int(p))
}

func (p Proximity) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Proximity) UnmarshalText(b []byte) error {
	for _, c := range []Proximity{Unavailable, TooFar, Near} {
		if string(b) == c.String() {
			*p = c
			return nil
		}
	}
	return fmt.Errorf("unknown proximity %q", b)
}

// Classify maps a distance to a proximity class. A non-positive radius
// falls back to DefaultArrivalRadius.
func Classify(distance, radius float64) Proximity {
	if radius <= 0 {
		radius = DefaultArrivalRadius
	}
	if distance <= radius {
		return Near
	}
	return TooFar
}

// Fix is one sample from a location source. Err is set when the platform
// could not produce a position (permission denied, timeout, no hardware).
type Fix struct {
	Coord    Coord
	Accuracy float64
	At       time.Time
	Err      error
}

// Reading is a classified fix. Distance is meaningless when Proximity is
// Unavailable.
type Reading struct {
	Proximity Proximity `json:"proximity"`
	Distance  float64   `json:"distance"`
	At        time.Time `json:"at"`
	Err       error     `json:"-"`
}

// Evaluate classifies fix against target.
func Evaluate(fix Fix, target Coord, radius float64) Reading {
	if fix.Err != nil {
		return Reading{Proximity: Unavailable, At: fix.At, Err: fix.Err}
	}
	d := Distance(fix.Coord, target)
	return Reading{Proximity: Classify(d, radius), Distance: d, At: fix.At}
}
