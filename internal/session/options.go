package session

import (
	"log/slog"
	"time"

	"github.com/playperu/walkquest/internal/clock"
	"github.com/playperu/walkquest/internal/geo"
	"github.com/playperu/walkquest/internal/progress"
	"github.com/playperu/walkquest/internal/puzzle"
	"github.com/playperu/walkquest/internal/quest"
)

// Options tune one session. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	// ScoreMode enables per-spot scoring for this session only.
	ScoreMode bool
	// AutoArrive arrives as soon as a nearTarget reading comes in.
	AutoArrive    bool
	ArrivalRadius float64
	Rescue        geo.RescuePolicy
	Puzzle        puzzle.Policy
	// CorrectAdvanceDelay holds the puzzle on its "correct" state before
	// moving to the post story. Zero advances immediately.
	CorrectAdvanceDelay time.Duration
	SaveTimeout         time.Duration
	SummaryTimeout      time.Duration
	LocationRetry       time.Duration

	// Location, when set, is watched during every travel leg whose spot
	// has coordinates.
	Location geo.Source
	Clock    clock.Clock
	Logger   *slog.Logger
	// OnNotice is called outside the session lock, in order per caller.
	OnNotice func(Notice)
}

func DefaultOptions() Options {
	return Options{
		AutoArrive:          true,
		ArrivalRadius:       geo.DefaultArrivalRadius,
		Rescue:              geo.DefaultRescuePolicy(),
		Puzzle:              puzzle.DefaultPolicy(),
		CorrectAdvanceDelay: 1500 * time.Millisecond,
		SaveTimeout:         progress.DefaultSaveTimeout,
		SummaryTimeout:      5 * time.Second,
		LocationRetry:       geo.DefaultRetryInterval,
		Clock:               clock.Real{},
		Logger:              slog.Default(),
	}
}

func (o *Options) fill() {
	d := DefaultOptions()
	if o.ArrivalRadius <= 0 {
		o.ArrivalRadius = d.ArrivalRadius
	}
	if o.Rescue == (geo.RescuePolicy{}) {
		o.Rescue = d.Rescue
	}
	if o.Puzzle == (puzzle.Policy{}) {
		o.Puzzle = d.Puzzle
	}
	if o.SaveTimeout <= 0 {
		o.SaveTimeout = d.SaveTimeout
	}
	if o.SummaryTimeout <= 0 {
		o.SummaryTimeout = d.SummaryTimeout
	}
	if o.Clock == nil {
		o.Clock = d.Clock
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
}

// Deps are the external collaborators. Summaries and Reviews are optional.
type Deps struct {
	Catalog   quest.Catalog
	Progress  quest.ProgressStore
	Summaries quest.SummarySink
	Reviews   quest.ReviewSink
}
