package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/playperu/walkquest/internal/geo"
	"github.com/playperu/walkquest/internal/puzzle"
	"github.com/playperu/walkquest/internal/quest"
	"github.com/playperu/walkquest/internal/story"
)

// Event is an input to the state machine.
type Event interface{ isEvent() }

// LocationUpdated carries one classified location sample. Readings from
// a previous travel leg are ignored.
type LocationUpdated struct {
	Reading geo.Reading
	leg     uint64
}

type (
	ArrivalRequested struct{}
	RescueRequested  struct{}
	RescueConfirmed  struct{}
	RescueCancelled  struct{}
	StoryAdvanced    struct{}
	StorySkipped     struct{}
	AnswerSubmitted  struct{ Answer string }
	HintRequested    struct{}
	AnswerRevealed   struct{}
	ReplayRequested  struct{}
)

// PuzzleContinued moves a solved puzzle on to the post story before the
// automatic delay fires.
type PuzzleContinued struct {
	leg uint64
}

func (LocationUpdated) isEvent()  {}
func (ArrivalRequested) isEvent() {}
func (RescueRequested) isEvent()  {}
func (RescueConfirmed) isEvent()  {}
func (RescueCancelled) isEvent()  {}
func (StoryAdvanced) isEvent()    {}
func (StorySkipped) isEvent()     {}
func (AnswerSubmitted) isEvent()  {}
func (HintRequested) isEvent()    {}
func (AnswerRevealed) isEvent()   {}
func (PuzzleContinued) isEvent()  {}
func (ReplayRequested) isEvent()  {}

// Outcome describes what an event did.
type Outcome struct {
	// Applied is false when the event was a guarded no-op, such as a
	// second arrival after the session already left Travel.
	Applied bool
	Arrived bool
	Verdict *puzzle.Verdict
	Hint    string
	Answer  string
	View    View
}

// Dispatch applies ev. It is the only path that mutates session state.
func (s *Session) Dispatch(ev Event) (Outcome, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Outcome{}, ErrClosed
	}
	out, err := s.apply(ev)
	out.View = s.viewLocked()
	notices := s.takeOutbox()
	s.mu.Unlock()

	s.deliver(notices)
	return out, err
}

func (s *Session) apply(ev Event) (Outcome, error) {
	switch e := ev.(type) {
	case LocationUpdated:
		return s.onLocation(e)
	case ArrivalRequested:
		return s.onArrivalRequested()
	case RescueRequested:
		return s.onRescueRequested()
	case RescueConfirmed:
		return s.onRescueConfirmed()
	case RescueCancelled:
		if s.mode != ModeTravel || !s.rescuePending {
			return Outcome{}, nil
		}
		s.rescuePending = false
		return Outcome{Applied: true}, nil
	case StoryAdvanced:
		return s.onStoryAdvanced()
	case StorySkipped:
		return s.onStorySkipped()
	case AnswerSubmitted:
		return s.onAnswer(e.Answer)
	case HintRequested:
		return s.onHint()
	case AnswerRevealed:
		return s.onReveal()
	case PuzzleContinued:
		return s.onPuzzleContinued(e)
	case ReplayRequested:
		return s.onReplay()
	}
	return Outcome{}, nil
}

// Travel

func (s *Session) onLocation(e LocationUpdated) (Outcome, error) {
	if s.mode != ModeTravel || (e.leg != 0 && e.leg != s.leg) {
		return Outcome{}, nil
	}
	r := e.Reading
	if r.At.IsZero() {
		r.At = s.clock.Now()
	}
	s.travel.Observe(r)
	s.checkRescue()

	if s.opts.AutoArrive && r.Proximity == geo.Near {
		s.arrive()
		return Outcome{Applied: true, Arrived: true}, nil
	}
	return Outcome{Applied: true}, nil
}

func (s *Session) onArrivalRequested() (Outcome, error) {
	if s.mode != ModeTravel {
		return Outcome{}, nil
	}
	if _, _, ok := s.spot().Target(); !ok {
		s.arrive()
		return Outcome{Applied: true, Arrived: true}, nil
	}
	if last, ok := s.travel.Last(); ok && last.Proximity == geo.Near {
		s.arrive()
		return Outcome{Applied: true, Arrived: true}, nil
	}
	s.travel.RecordAttempt()
	s.checkRescue()
	return Outcome{Applied: true}, nil
}

func (s *Session) onRescueRequested() (Outcome, error) {
	if s.mode != ModeTravel {
		return Outcome{}, ErrWrongMode
	}
	if s.travel.Rescue(s.opts.Rescue, s.clock.Now()) == geo.RescueNone {
		return Outcome{}, ErrRescueUnavailable
	}
	s.rescuePending = true
	return Outcome{Applied: true}, nil
}

func (s *Session) onRescueConfirmed() (Outcome, error) {
	if s.mode != ModeTravel {
		return Outcome{}, nil
	}
	if !s.rescuePending {
		return Outcome{}, ErrNoRescuePending
	}
	s.logger.Info("arrival confirmed manually", "step", s.step)
	s.arrive()
	return Outcome{Applied: true, Arrived: true}, nil
}

func (s *Session) checkRescue() {
	if s.rescueNotified {
		return
	}
	if reason := s.travel.Rescue(s.opts.Rescue, s.clock.Now()); reason != geo.RescueNone {
		s.rescueNotified = true
		s.notify(Notice{Kind: NoticeRescueAvailable, Step: s.step, Reason: reason})
	}
}

func (s *Session) enterTravel() {
	s.stopTimer()
	s.leg++
	s.travel = geo.NewTravel(s.clock.Now())
	s.rescuePending = false
	s.rescueNotified = false
	s.seq = nil
	s.evaluator = nil
	s.setMode(ModeTravel)
	s.startWatch()
}

func (s *Session) arrive() {
	s.stopWatch()
	s.rescuePending = false
	if s.step == 1 && !s.prologueShown {
		s.prologueShown = true
		if len(s.quest.Prologue) > 0 {
			s.seq = story.Start(&s.log, story.KindPrologue, "", s.quest.Prologue)
			s.setMode(ModePrologue)
			return
		}
	}
	s.startPre()
}

// Story

func (s *Session) startPre() {
	sp := s.spot()
	s.seq = story.Start(&s.log, story.KindPre, sp.ID, sp.PreBeats())
	s.setMode(ModeStoryPre)
}

func (s *Session) startPost() {
	s.stopTimer()
	sp := s.spot()
	s.seq = story.Start(&s.log, story.KindPost, sp.ID, sp.PostBeats())
	s.setMode(ModeStoryPost)
}

func (s *Session) onStoryAdvanced() (Outcome, error) {
	switch s.mode {
	case ModePrologue, ModeStoryPre, ModeStoryPost:
		if done := s.seq.Advance(); done {
			s.finishStory()
		}
		return Outcome{Applied: true}, nil
	case ModeCompleted:
		if s.seq == nil || s.seq.Exhausted() {
			return Outcome{}, nil
		}
		s.seq.Advance()
		return Outcome{Applied: true}, nil
	}
	return Outcome{}, ErrWrongMode
}

func (s *Session) onStorySkipped() (Outcome, error) {
	switch s.mode {
	case ModePrologue, ModeStoryPre, ModeStoryPost:
		s.finishStory()
		return Outcome{Applied: true}, nil
	case ModeCompleted:
		return Outcome{}, nil
	}
	return Outcome{}, ErrWrongMode
}

func (s *Session) finishStory() {
	switch s.mode {
	case ModePrologue:
		s.startPre()
	case ModeStoryPre:
		s.enterPuzzle()
	case ModeStoryPost:
		s.finishSpot()
	}
}

// Puzzle

func (s *Session) enterPuzzle() {
	s.evaluator = puzzle.New(s.spot().Puzzle, s.opts.Puzzle, s.clock.Now())
	if s.evaluator.AutoSatisfied() {
		s.solved++
		s.startPost()
		return
	}
	s.setMode(ModePuzzle)
}

func (s *Session) onAnswer(raw string) (Outcome, error) {
	if s.mode != ModePuzzle {
		return Outcome{}, ErrWrongMode
	}
	v, err := s.evaluator.Submit(raw)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Applied: true, Verdict: &v}
	if !v.Correct {
		return out, nil
	}

	s.solved++
	if s.opts.ScoreMode {
		sc := s.evaluator.Score(s.clock.Now())
		s.scores = append(s.scores, quest.ScoreRecord{SpotID: s.spot().ID, Score: sc.Score, Stars: sc.Stars})
	}
	if s.opts.CorrectAdvanceDelay <= 0 {
		s.startPost()
		return out, nil
	}
	leg := s.leg
	s.advanceTimer = s.clock.AfterFunc(s.opts.CorrectAdvanceDelay, func() {
		s.Dispatch(PuzzleContinued{leg: leg})
	})
	return out, nil
}

func (s *Session) onPuzzleContinued(e PuzzleContinued) (Outcome, error) {
	if s.mode != ModePuzzle || !s.evaluator.Resolved() || (e.leg != 0 && e.leg != s.leg) {
		return Outcome{}, nil
	}
	s.startPost()
	return Outcome{Applied: true}, nil
}

func (s *Session) onHint() (Outcome, error) {
	if s.mode != ModePuzzle {
		return Outcome{}, ErrWrongMode
	}
	if s.evaluator.Resolved() {
		return Outcome{}, puzzle.ErrClosed
	}
	hint, ok := s.evaluator.RevealNextHint()
	if !ok {
		return Outcome{}, ErrNoMoreHints
	}
	return Outcome{Applied: true, Hint: hint}, nil
}

func (s *Session) onReveal() (Outcome, error) {
	if s.mode != ModePuzzle {
		return Outcome{}, ErrWrongMode
	}
	ans := s.evaluator.RevealAnswer()
	s.logger.Info("answer revealed", "step", s.step)
	s.startPost()
	return Outcome{Applied: true, Answer: ans}, nil
}

// Progress

func (s *Session) finishSpot() {
	if s.step >= len(s.quest.Spots) {
		s.complete()
		return
	}
	s.step = clampStep(s.step+1, len(s.quest.Spots))
	s.saver.Save(s.step, quest.StatusInProgress)
	s.notify(Notice{Kind: NoticeAdvanced, Step: s.step})
	s.enterTravel()
}

func (s *Session) complete() {
	s.stopTimer()
	s.completed = true
	s.endedAt = s.clock.Now()
	s.saver.Save(s.step, quest.StatusCompleted)
	s.seq = nil
	s.evaluator = nil
	s.setMode(ModeCompleted)
	if len(s.quest.Epilogue) > 0 {
		s.seq = story.Start(&s.log, story.KindEpilogue, "", s.quest.Epilogue)
	}
	s.notify(Notice{Kind: NoticeCompleted, Step: s.step})
	s.recordSummary()
}

func (s *Session) recordSummary() {
	if s.deps.Summaries == nil {
		return
	}
	sum := quest.SessionSummary{
		ID:              uuid.NewString(),
		UserID:          s.userID,
		QuestID:         s.questID,
		StartedAt:       s.startedAt,
		EndedAt:         s.endedAt,
		DurationSeconds: int64(s.endedAt.Sub(s.startedAt) / time.Second),
		SolvedSpotCount: s.solved,
		Scores:          append([]quest.ScoreRecord{}, s.scores...),
	}
	s.logger.Info("quest completed", "duration_s", sum.DurationSeconds, "solved", sum.SolvedSpotCount)

	step := s.step
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.SummaryTimeout)
		defer cancel()
		if err := s.deps.Summaries.RecordSummary(ctx, sum); err != nil {
			s.logger.Warn("session summary not recorded", "error", err)
			s.deliver([]Notice{{Kind: NoticeSummaryFailed, Step: step, Mode: ModeCompleted, Err: err}})
		}
	}()
}

func (s *Session) onReplay() (Outcome, error) {
	if s.mode != ModeCompleted {
		return Outcome{}, ErrNotCompleted
	}
	s.step = 1
	s.completed = false
	s.prologueShown = false
	s.scores = nil
	s.solved = 0
	s.startedAt = s.clock.Now()
	s.endedAt = time.Time{}
	s.saver.Save(1, quest.StatusInProgress)
	s.enterTravel()
	return Outcome{Applied: true}, nil
}

// Plumbing

func (s *Session) setMode(m Mode) {
	if s.mode == m {
		return
	}
	s.logger.Debug("session transition", "from", s.mode, "to", m, "step", s.step)
	s.mode = m
	s.notify(Notice{Kind: NoticeModeChanged, Step: s.step, Mode: m})
}

func (s *Session) startWatch() {
	s.stopWatch()
	if s.opts.Location == nil || s.closed {
		return
	}
	lat, lng, ok := s.spot().Target()
	if !ok {
		return
	}
	radius := s.spot().ArrivalRadius
	if radius <= 0 {
		radius = s.opts.ArrivalRadius
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel
	leg := s.leg
	m := geo.NewMonitor(s.opts.Location, geo.Coord{Lat: lat, Lng: lng}, radius, s.clock, s.opts.LocationRetry, s.logger)

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		m.Run(ctx, func(r geo.Reading) {
			s.Dispatch(LocationUpdated{Reading: r, leg: leg})
		})
	}()
}

// stopWatch cancels the current location subscription without waiting;
// Close waits for the goroutine.
func (s *Session) stopWatch() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
}

func (s *Session) stopTimer() {
	if s.advanceTimer != nil {
		s.advanceTimer.Stop()
		s.advanceTimer = nil
	}
}
