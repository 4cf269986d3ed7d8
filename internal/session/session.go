// Package session runs one player's traversal of one quest.
//
// A Session moves through Travel, an optional one-time Prologue on the
// first spot, StoryPre, Puzzle, and StoryPost for each spot, then
// Completed. Location samples, timers, and player input all enter through
// Dispatch, which applies one event at a time under the session lock.
// Progress writes are queued to a background saver and never block a
// transition.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/playperu/walkquest/internal/clock"
	"github.com/playperu/walkquest/internal/geo"
	"github.com/playperu/walkquest/internal/progress"
	"github.com/playperu/walkquest/internal/puzzle"
	"github.com/playperu/walkquest/internal/quest"
	"github.com/playperu/walkquest/internal/story"
)

var (
	ErrWrongMode          = errors.New("action not allowed in current mode")
	ErrRescueUnavailable  = errors.New("rescue is not available yet")
	ErrNoRescuePending    = errors.New("rescue was not requested")
	ErrNoMoreHints        = errors.New("no more hints")
	ErrNotCompleted       = errors.New("quest not completed")
	ErrInvalidRating      = errors.New("rating must be between 1 and 5")
	ErrReviewsUnsupported = errors.New("reviews are not configured")
	ErrClosed             = errors.New("session closed")
)

type Mode string

const (
	ModeTravel    Mode = "travel"
	ModePrologue  Mode = "prologue"
	ModeStoryPre  Mode = "storyPre"
	ModePuzzle    Mode = "puzzle"
	ModeStoryPost Mode = "storyPost"
	ModeCompleted Mode = "completed"
)

type Session struct {
	id      string
	userID  string
	questID string
	quest   quest.Quest
	opts    Options
	deps    Deps
	clock   clock.Clock
	logger  *slog.Logger
	saver   *progress.Saver

	mu            sync.Mutex
	closed        bool
	step          int
	mode          Mode
	completed     bool
	startedAt     time.Time
	endedAt       time.Time
	prologueShown bool
	leg           uint64

	travel         *geo.Travel
	rescuePending  bool
	rescueNotified bool
	seq            *story.Sequencer
	log            story.Log
	evaluator      *puzzle.Evaluator
	advanceTimer   clock.Timer
	scores         []quest.ScoreRecord
	solved         int
	saveErr        error

	watchCancel context.CancelFunc
	bg          sync.WaitGroup
	outbox      []Notice
}

// Open builds a session for (userID, questID), resuming from stored
// progress. A progress read failure is not fatal: the session starts at
// the first spot and a NoticeLoadFailed is emitted.
func Open(ctx context.Context, deps Deps, userID, questID string, opts Options) (*Session, error) {
	opts.fill()

	q, err := deps.Catalog.Quest(ctx, questID)
	if err != nil {
		return nil, fmt.Errorf("loading quest %q: %w", questID, err)
	}
	if len(q.Spots) == 0 {
		return nil, quest.ErrNoSpots
	}

	s := &Session{
		id:        uuid.NewString(),
		userID:    userID,
		questID:   questID,
		quest:     q,
		opts:      opts,
		deps:      deps,
		clock:     opts.Clock,
		logger:    opts.Logger.With("user_id", userID, "quest_id", questID),
		startedAt: opts.Clock.Now(),
	}

	rec, loadErr := progress.LoadOrStart(ctx, deps.Progress, userID, questID)
	if loadErr != nil {
		s.logger.Warn("progress load failed", "error", loadErr)
		rec = quest.Progress{UserID: userID, QuestID: questID, CurrentStep: 1, Status: quest.StatusInProgress}
	}

	s.saver = progress.NewSaver(deps.Progress, userID, questID, opts.SaveTimeout, s.onSaveResult)

	s.mu.Lock()
	s.step = clampStep(rec.CurrentStep, len(q.Spots))
	if rec.Status == quest.StatusCompleted {
		s.completed = true
		s.mode = ModeCompleted
	} else {
		s.enterTravel()
	}
	if loadErr != nil {
		s.saveErr = loadErr
		s.notify(Notice{Kind: NoticeLoadFailed, Step: s.step, Err: loadErr})
	}
	step, mode := s.step, s.mode
	out := s.takeOutbox()
	s.mu.Unlock()

	s.deliver(out)
	s.logger.Info("session opened", "session_id", s.id, "step", step, "mode", mode)
	return s, nil
}

func (s *Session) ID() string      { return s.id }
func (s *Session) UserID() string  { return s.userID }
func (s *Session) QuestID() string { return s.questID }

// Step returns the 1-based index of the spot being pursued.
func (s *Session) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// StoryLog returns every sequence shown so far, oldest first.
func (s *Session) StoryLog() []story.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Entries()
}

func (s *Session) Scores() []quest.ScoreRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]quest.ScoreRecord{}, s.scores...)
}

// RetrySave queues the last requested progress again after a failed
// write. With no prior write it saves the current position.
func (s *Session) RetrySave() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	step, status := s.step, s.statusLocked()
	s.mu.Unlock()

	if !s.saver.Retry() {
		s.saver.Save(step, status)
	}
	return nil
}

// Flush waits for queued progress writes and returns the latest write error.
func (s *Session) Flush(ctx context.Context) error {
	return s.saver.Flush(ctx)
}

// SubmitReview forwards a rating for a completed quest.
func (s *Session) SubmitReview(ctx context.Context, rating int, comment string) error {
	s.mu.Lock()
	completed := s.completed
	s.mu.Unlock()

	if !completed {
		return ErrNotCompleted
	}
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	if s.deps.Reviews == nil {
		return ErrReviewsUnsupported
	}
	err := s.deps.Reviews.SubmitReview(ctx, quest.Review{
		UserID:    s.userID,
		QuestID:   s.questID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: s.clock.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("submitting review: %w", err)
	}
	return nil
}

// Close tears down the location watch and timers, writes any pending
// progress, and waits for background work. It is safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopWatch()
	s.stopTimer()
	s.mu.Unlock()

	s.bg.Wait()
	s.saver.Close()
	s.logger.Info("session closed", "session_id", s.id)
}

func (s *Session) statusLocked() quest.Status {
	if s.completed {
		return quest.StatusCompleted
	}
	return quest.StatusInProgress
}

func (s *Session) spot() quest.Spot {
	return s.quest.Spots[clampStep(s.step, len(s.quest.Spots))-1]
}

func (s *Session) onSaveResult(r progress.Result) {
	s.mu.Lock()
	if r.Err != nil {
		s.saveErr = r.Err
		s.logger.Warn("progress save failed", "step", r.Step, "status", r.Status, "error", r.Err)
		s.notify(Notice{Kind: NoticeSaveFailed, Step: r.Step, Err: r.Err})
	} else {
		s.saveErr = nil
		s.notify(Notice{Kind: NoticeSaved, Step: r.Step})
	}
	out := s.takeOutbox()
	s.mu.Unlock()
	s.deliver(out)
}

func (s *Session) notify(n Notice) {
	if n.Mode == "" {
		n.Mode = s.mode
	}
	s.outbox = append(s.outbox, n)
}

func (s *Session) takeOutbox() []Notice {
	out := s.outbox
	s.outbox = nil
	return out
}

func (s *Session) deliver(notices []Notice) {
	if s.opts.OnNotice == nil {
		return
	}
	for _, n := range notices {
		s.opts.OnNotice(n)
	}
}

// clampStep keeps step within [1, total].
func clampStep(step, total int) int {
	if total < 1 {
		return 1
	}
	return min(max(step, 1), total)
}
