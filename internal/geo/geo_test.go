package geo

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b Coord
		want float64
		tol  float64
	}{
		{"same point", Coord{35.681, 139.767}, Coord{35.681, 139.767}, 0, 1e-9},
		{"one degree of longitude at the equator", Coord{0, 0}, Coord{0, 1}, EarthRadiusMeters * math.Pi / 180, 1e-6},
		{"one degree of latitude", Coord{10, 20}, Coord{11, 20}, EarthRadiusMeters * math.Pi / 180, 1e-6},
		{"antipodes", Coord{0, 0}, Coord{0, 180}, EarthRadiusMeters * math.Pi, 1e-6},
		// Tokyo Station to the Imperial Palace East Garden gate, roughly 1 km.
		{"city scale", Coord{35.68124, 139.76712}, Coord{35.68852, 139.75970}, 1051, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			if math.Abs(got-tt.want) > tt.tol {
				t.Errorf("Distance = %.3f, want %.3f ± %.3f", got, tt.want, tt.tol)
			}
			if back := Distance(tt.b, tt.a); math.Abs(back-got) > 1e-6 {
				t.Errorf("Distance not symmetric: %.6f vs %.6f", got, back)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		distance float64
		radius   float64
		want     Proximity
	}{
		{0, 0, Near},
		{120, 0, Near},
		{120.01, 0, TooFar},
		{50, 30, TooFar},
		{30, 30, Near},
	}
	for _, tt := range tests {
		if got := Classify(tt.distance, tt.radius); got != tt.want {
			t.Errorf("Classify(%v, %v) = %v, want %v", tt.distance, tt.radius, got, tt.want)
		}
	}
}

func TestEvaluate(t *testing.T) {
	target := Coord{35.0, 135.0}
	at := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	r := Evaluate(Fix{Coord: target, At: at}, target, 0)
	if r.Proximity != Near || r.Distance != 0 || !r.At.Equal(at) {
		t.Errorf("on target: got %+v", r)
	}

	denied := errors.New("permission denied")
	r = Evaluate(Fix{Err: denied, At: at}, target, 0)
	if r.Proximity != Unavailable || !errors.Is(r.Err, denied) {
		t.Errorf("failed fix: got %+v", r)
	}
}

func TestRescue(t *testing.T) {
	start := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	p := DefaultRescuePolicy()

	reading := func(d float64, after time.Duration) Reading {
		return Reading{Proximity: Classify(d, 0), Distance: d, At: start.Add(after)}
	}
	unavailable := func(after time.Duration) Reading {
		return Reading{Proximity: Unavailable, At: start.Add(after), Err: ErrUnavailable}
	}

	tests := []struct {
		name     string
		readings []Reading
		attempts int
		now      time.Duration
		want     RescueReason
	}{
		{"fresh leg with a fix", []Reading{reading(800, time.Second)}, 0, 10 * time.Second, RescueNone},
		{"nearby but not timed out", []Reading{reading(300, time.Second)}, 0, 120 * time.Second, RescueNone},
		{"nearby and timed out", []Reading{reading(300, time.Second)}, 0, 121 * time.Second, RescueTimeout},
		{"far and timed out", []Reading{reading(900, time.Second)}, 0, 10 * time.Minute, RescueNone},
		{"attempt limit", []Reading{reading(900, time.Second)}, 3, 5 * time.Second, RescueAttempts},
		{"below attempt limit", []Reading{reading(900, time.Second)}, 2, 5 * time.Second, RescueNone},
		{"never a fix", nil, 0, 30 * time.Second, RescueUnavailable},
		{"never a fix yet", nil, 0, 29 * time.Second, RescueNone},
		{"lost fix briefly", []Reading{reading(900, time.Second), unavailable(10 * time.Second)}, 0, 20 * time.Second, RescueNone},
		{"lost fix persistently", []Reading{reading(900, time.Second), unavailable(10 * time.Second), unavailable(20 * time.Second)}, 0, 40 * time.Second, RescueUnavailable},
		{"fix recovered", []Reading{unavailable(time.Second), reading(900, 50 * time.Second)}, 0, 60 * time.Second, RescueNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTravel(start)
			for _, r := range tt.readings {
				tr.Observe(r)
			}
			for range tt.attempts {
				tr.RecordAttempt()
			}
			if got := tr.Rescue(p, start.Add(tt.now)); got != tt.want {
				t.Errorf("Rescue = %q, want %q", got, tt.want)
			}
		})
	}
}
