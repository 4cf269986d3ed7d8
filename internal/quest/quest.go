// Package quest defines the core domain types and collaborator interfaces.
// It has zero external dependencies; everything here is pure Go.
package quest

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrNoSpots  = errors.New("quest has no spots")
)

type Quest struct {
	ID       string
	Title    string
	AreaName string
	Prologue []Beat
	Epilogue []Beat
	Spots    []Spot
}

// Spot is one waypoint. Spots are ordered by OrderIndex; step N in a
// session refers to Spots[N-1].
type Spot struct {
	ID          string
	OrderIndex  int
	Name        string
	Lat         *float64
	Lng         *float64
	Description string
	// ArrivalRadius overrides the default geofence radius in meters when > 0.
	ArrivalRadius float64
	Puzzle        Puzzle
	PreStory      Story
	PostStory     Story
}

// Target returns the spot coordinates. ok is false when the spot has no
// enforced geofence.
func (s Spot) Target() (lat, lng float64, ok bool) {
	if s.Lat == nil || s.Lng == nil {
		return 0, 0, false
	}
	return *s.Lat, *s.Lng, true
}

// PreBeats returns the arrival story, falling back to a single beat built
// from the spot itself.
func (s Spot) PreBeats() []Beat {
	text := s.Description
	if text == "" {
		text = "You have arrived at " + s.Name + "."
	}
	return s.PreStory.Or([]Beat{{Speaker: SpeakerNarrator, Text: text}})
}

// PostBeats returns the resolution story, falling back to a system beat.
func (s Spot) PostBeats() []Beat {
	return s.PostStory.Or([]Beat{{Speaker: SpeakerSystem, Text: "Puzzle cleared at " + s.Name + "."}})
}

// Puzzle is the parsed puzzle content for one spot. Answers[0] is the
// canonical answer; any further entries are accepted aliases.
type Puzzle struct {
	Question string
	Answers  []string
	Hints    []string
}

// Empty reports whether there is nothing to verify, in which case the
// puzzle is passed without an answer.
func (p Puzzle) Empty() bool {
	return len(p.Answers) == 0
}

func (p Puzzle) Canonical() string {
	if len(p.Answers) == 0 {
		return ""
	}
	return p.Answers[0]
}

type SpeakerType string

const (
	SpeakerNarrator  SpeakerType = "narrator"
	SpeakerCharacter SpeakerType = "character"
	SpeakerSystem    SpeakerType = "system"
)

type Beat struct {
	Speaker     SpeakerType `json:"speakerType"`
	SpeakerName string      `json:"speakerName,omitempty"`
	Text        string      `json:"text"`
}

// Story is either Present with a list of beats or Absent. The zero value
// is Absent.
type Story struct {
	beats   []Beat
	present bool
}

func Present(beats ...Beat) Story {
	return Story{beats: beats, present: len(beats) > 0}
}

func Absent() Story { return Story{} }

func (s Story) IsPresent() bool { return s.present }

func (s Story) Beats() []Beat { return s.beats }

// Or returns the story beats, or fallback when the story is absent.
func (s Story) Or(fallback []Beat) []Beat {
	if !s.present {
		return fallback
	}
	return s.beats
}

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Progress is the durable record keyed by (UserID, QuestID).
type Progress struct {
	UserID      string
	QuestID     string
	CurrentStep int
	Status      Status
	UpdatedAt   time.Time
}

type ScoreRecord struct {
	SpotID string `json:"spotId"`
	Score  int    `json:"score"`
	Stars  int    `json:"stars"`
}

type SessionSummary struct {
	ID              string
	UserID          string
	QuestID         string
	StartedAt       time.Time
	EndedAt         time.Time
	DurationSeconds int64
	SolvedSpotCount int
	Scores          []ScoreRecord
}

type Review struct {
	UserID    string
	QuestID   string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

// Catalog supplies read-only quest content.
type Catalog interface {
	Quest(ctx context.Context, id string) (Quest, error)
}

// ProgressStore is the durable progress collaborator. Progress returns
// ErrNotFound when no record exists. UpsertProgress inserts or updates by
// the (userID, questID) natural key.
type ProgressStore interface {
	Progress(ctx context.Context, userID, questID string) (Progress, error)
	UpsertProgress(ctx context.Context, userID, questID string, step int, status Status) (Progress, error)
}

// SummarySink receives a best-effort summary when a session completes.
type SummarySink interface {
	RecordSummary(ctx context.Context, s SessionSummary) error
}

type ReviewSink interface {
	SubmitReview(ctx context.Context, r Review) error
}
