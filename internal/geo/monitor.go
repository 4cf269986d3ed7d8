package geo

import (
	"context"
	"log/slog"
	"time"

	"github.com/playperu/walkquest/internal/clock"
)

// Source produces a stream of fixes until ctx is cancelled. The returned
// channel is closed when the subscription ends.
type Source interface {
	Watch(ctx context.Context) (<-chan Fix, error)
}

const DefaultRetryInterval = 5 * time.Second

// Monitor watches a Source and emits one Reading per fix for a single
// target. It keeps retrying when the source fails or its stream ends.
type Monitor struct {
	src    Source
	target Coord
	radius float64
	clock  clock.Clock
	retry  time.Duration
	logger *slog.Logger
}

func NewMonitor(src Source, target Coord, radius float64, clk clock.Clock, retry time.Duration, logger *slog.Logger) *Monitor {
	if retry <= 0 {
		retry = DefaultRetryInterval
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{src: src, target: target, radius: radius, clock: clk, retry: retry, logger: logger}
}

// Run blocks until ctx is done, calling emit for every sample.
func (m *Monitor) Run(ctx context.Context, emit func(Reading)) error {
	for {
		ch, err := m.src.Watch(ctx)
		if err != nil {
			m.logger.Debug("location watch failed", "error", err)
			emit(Reading{Proximity: Unavailable, At: m.clock.Now(), Err: err})
		} else if err := m.drain(ctx, ch, emit); err != nil {
			return err
		} else {
			emit(Reading{Proximity: Unavailable, At: m.clock.Now(), Err: ErrStreamEnded})
		}

		if !m.wait(ctx) {
			return ctx.Err()
		}
	}
}

func (m *Monitor) drain(ctx context.Context, ch <-chan Fix, emit func(Reading)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fix, ok := <-ch:
			if !ok {
				return nil
			}
			if fix.At.IsZero() {
				fix.At = m.clock.Now()
			}
			emit(Evaluate(fix, m.target, m.radius))
		}
	}
}

func (m *Monitor) wait(ctx context.Context) bool {
	done := make(chan struct{})
	t := m.clock.AfterFunc(m.retry, func() { close(done) })
	select {
	case <-ctx.Done():
		t.Stop()
		return false
	case <-done:
		return true
	}
}
