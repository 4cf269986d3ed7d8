package geo

import "time"

// RescuePolicy decides when a player may self-declare arrival.
type RescuePolicy struct {
	// TravelTimeout applies only while the last known distance is under
	// NearbyDistance.
	TravelTimeout      time.Duration
	NearbyDistance     float64
	MaxArrivalAttempts int
	// UnavailableAfter is how long the location must stay unavailable.
	UnavailableAfter time.Duration
}

func DefaultRescuePolicy() RescuePolicy {
	return RescuePolicy{
		TravelTimeout:      120 * time.Second,
		NearbyDistance:     500,
		MaxArrivalAttempts: 3,
		UnavailableAfter:   30 * time.Second,
	}
}

type RescueReason string

const (
	RescueNone        RescueReason = ""
	RescueTimeout     RescueReason = "timeout_nearby"
	RescueAttempts    RescueReason = "arrival_attempts"
	RescueUnavailable RescueReason = "location_unavailable"
)

// Travel accumulates what the rescue policy needs for one travel leg.
type Travel struct {
	StartedAt        time.Time
	Attempts         int
	last             Reading
	hasReading       bool
	knownDistance    float64
	hasDistance      bool
	unavailableSince time.Time
}

func NewTravel(start time.Time) *Travel {
	return &Travel{StartedAt: start}
}

// Observe records a reading.
func (t *Travel) Observe(r Reading) {
	t.last = r
	t.hasReading = true
	if r.Proximity == Unavailable {
		if t.unavailableSince.IsZero() {
			t.unavailableSince = r.At
		}
		return
	}
	t.unavailableSince = time.Time{}
	t.knownDistance = r.Distance
	t.hasDistance = true
}

// Last returns the latest reading, if any.
func (t *Travel) Last() (Reading, bool) { return t.last, t.hasReading }

func (t *Travel) RecordAttempt() { t.Attempts++ }

// Rescue reports whether the manual override should be offered at now.
func (t *Travel) Rescue(p RescuePolicy, now time.Time) RescueReason {
	if p.MaxArrivalAttempts > 0 && t.Attempts >= p.MaxArrivalAttempts {
		return RescueAttempts
	}
	if t.hasDistance && t.knownDistance < p.NearbyDistance && now.Sub(t.StartedAt) > p.TravelTimeout {
		return RescueTimeout
	}
	switch {
	case !t.hasReading || (t.last.Proximity == Unavailable && !t.hasDistance):
		// Never had a fix on this leg.
		if now.Sub(t.StartedAt) >= p.UnavailableAfter {
			return RescueUnavailable
		}
	case t.last.Proximity == Unavailable:
		if now.Sub(t.unavailableSince) >= p.UnavailableAfter {
			return RescueUnavailable
		}
	}
	return RescueNone
}
