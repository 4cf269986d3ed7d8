// Package puzzle judges answers for one spot, reveals tiered hints, and
// scores the solve.
package puzzle

import (
	"errors"
	"time"

	"github.com/playperu/walkquest/internal/answer"
	"github.com/playperu/walkquest/internal/quest"
)

var ErrClosed = errors.New("puzzle already resolved")

type Status string

const (
	StatusIdle           Status = "idle"
	StatusIncorrect      Status = "incorrect"
	StatusCorrect        Status = "correct"
	StatusRevealedAnswer Status = "revealedAnswer"
)

// Policy holds the attempt thresholds of the assistance ladder.
type Policy struct {
	HintSuggestAttempts int
	FormatHelpAttempts  int
}

func DefaultPolicy() Policy {
	return Policy{HintSuggestAttempts: 3, FormatHelpAttempts: 5}
}

// Guidance is the assistance offered after a wrong answer. Level never
// decreases as attempts grow.
type Guidance struct {
	Level       int  `json:"level"`
	SuggestHint bool `json:"suggestHint"`
	FormatHelp  bool `json:"formatHelp"`
}

type Verdict struct {
	Correct  bool     `json:"correct"`
	Attempts int      `json:"attempts"`
	Status   Status   `json:"status"`
	Guidance Guidance `json:"guidance"`
}

// State is a read-only view of the evaluator.
type State struct {
	Question          string   `json:"question"`
	Attempts          int      `json:"attempts"`
	RevealedHintLevel int      `json:"revealedHintLevel"`
	HintCount         int      `json:"hintCount"`
	Hints             []string `json:"hints"`
	Status            Status   `json:"status"`
	Guidance          Guidance `json:"guidance"`
	Answer            string   `json:"answer,omitempty"`
}

type Evaluator struct {
	puzzle    quest.Puzzle
	policy    Policy
	startedAt time.Time

	attempts  int
	wrong     int
	hintLevel int
	status    Status
}

func New(p quest.Puzzle, policy Policy, startedAt time.Time) *Evaluator {
	return &Evaluator{puzzle: p, policy: policy, startedAt: startedAt, status: StatusIdle}
}

// AutoSatisfied reports whether the puzzle has nothing to verify.
func (e *Evaluator) AutoSatisfied() bool { return e.puzzle.Empty() }

// Resolved reports whether the player may move on.
func (e *Evaluator) Resolved() bool {
	return e.puzzle.Empty() || e.status == StatusCorrect || e.status == StatusRevealedAnswer
}

// Submit counts the attempt and judges raw against the accepted answers.
func (e *Evaluator) Submit(raw string) (Verdict, error) {
	if e.status == StatusCorrect || e.status == StatusRevealedAnswer {
		return Verdict{}, ErrClosed
	}
	if e.puzzle.Empty() {
		e.status = StatusCorrect
		return Verdict{Correct: true, Status: e.status}, nil
	}

	e.attempts++
	if answer.Match(raw, e.puzzle.Answers) {
		e.status = StatusCorrect
		return Verdict{Correct: true, Attempts: e.attempts, Status: e.status}, nil
	}

	e.wrong++
	e.status = StatusIncorrect
	return Verdict{Attempts: e.attempts, Status: e.status, Guidance: e.guidance()}, nil
}

func (e *Evaluator) guidance() Guidance {
	var g Guidance
	if e.policy.HintSuggestAttempts > 0 && e.attempts >= e.policy.HintSuggestAttempts {
		g.Level++
		g.SuggestHint = e.hintLevel < len(e.puzzle.Hints)
	}
	if e.policy.FormatHelpAttempts > 0 && e.attempts >= e.policy.FormatHelpAttempts {
		g.Level++
		g.FormatHelp = true
	}
	return g
}

// RevealNextHint reveals the next hint in order. ok is false once every
// hint is shown or the puzzle is resolved; the level never exceeds the
// hint count.
func (e *Evaluator) RevealNextHint() (hint string, ok bool) {
	if e.Resolved() || e.hintLevel >= len(e.puzzle.Hints) {
		return "", false
	}
	e.hintLevel++
	return e.puzzle.Hints[e.hintLevel-1], true
}

// RevealAnswer resolves the puzzle without a correct answer.
func (e *Evaluator) RevealAnswer() string {
	if e.status != StatusCorrect {
		e.status = StatusRevealedAnswer
	}
	return e.puzzle.Canonical()
}

// Score computes the score as of now from elapsed time, hints revealed,
// and wrong answers.
func (e *Evaluator) Score(now time.Time) Score {
	return Compute(now.Sub(e.startedAt), e.hintLevel, e.wrong)
}

func (e *Evaluator) State() State {
	s := State{
		Question:          e.puzzle.Question,
		Attempts:          e.attempts,
		RevealedHintLevel: e.hintLevel,
		HintCount:         len(e.puzzle.Hints),
		Hints:             append([]string{}, e.puzzle.Hints[:e.hintLevel]...),
		Status:            e.status,
	}
	if e.status == StatusIncorrect {
		s.Guidance = e.guidance()
	}
	if e.status == StatusRevealedAnswer {
		s.Answer = e.puzzle.Canonical()
	}
	return s
}
