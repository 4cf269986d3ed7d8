package session

import (
	"github.com/playperu/walkquest/internal/geo"
	"github.com/playperu/walkquest/internal/puzzle"
	"github.com/playperu/walkquest/internal/quest"
	"github.com/playperu/walkquest/internal/story"
)

// View is a snapshot of everything a presentation layer renders.
type View struct {
	SessionID  string              `json:"sessionId"`
	QuestID    string              `json:"questId"`
	QuestTitle string              `json:"questTitle"`
	Step       int                 `json:"step"`
	TotalSpots int                 `json:"totalSpots"`
	Mode       Mode                `json:"mode"`
	Completed  bool                `json:"completed"`
	ScoreMode  bool                `json:"scoreMode"`
	Spot       SpotView            `json:"spot"`
	Travel     *TravelView         `json:"travel,omitempty"`
	Story      *StoryView          `json:"story,omitempty"`
	Puzzle     *puzzle.State       `json:"puzzle,omitempty"`
	Scores     []quest.ScoreRecord `json:"scores,omitempty"`
	SaveError  string              `json:"saveError,omitempty"`
}

type SpotView struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Lat  *float64 `json:"lat,omitempty"`
	Lng  *float64 `json:"lng,omitempty"`
}

type TravelView struct {
	Proximity geo.Proximity `json:"proximity"`
	// Distance is meters to the spot, or -1 when unknown.
	Distance        float64          `json:"distance"`
	Geofenced       bool             `json:"geofenced"`
	Attempts        int              `json:"attempts"`
	RescueAvailable bool             `json:"rescueAvailable"`
	RescueReason    geo.RescueReason `json:"rescueReason,omitempty"`
	RescuePending   bool             `json:"rescuePending"`
}

type StoryView struct {
	Kind    story.Kind   `json:"kind"`
	Visible []quest.Beat `json:"visible"`
	Total   int          `json:"total"`
	Done    bool         `json:"done"`
}

// View returns the current snapshot.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	sp := s.spot()
	v := View{
		SessionID:  s.id,
		QuestID:    s.questID,
		QuestTitle: s.quest.Title,
		Step:       s.step,
		TotalSpots: len(s.quest.Spots),
		Mode:       s.mode,
		Completed:  s.completed,
		ScoreMode:  s.opts.ScoreMode,
		Spot:       SpotView{ID: sp.ID, Name: sp.Name, Lat: sp.Lat, Lng: sp.Lng},
		Scores:     append([]quest.ScoreRecord{}, s.scores...),
	}
	if s.saveErr != nil {
		v.SaveError = s.saveErr.Error()
	}

	switch {
	case s.mode == ModeTravel && s.travel != nil:
		_, _, geofenced := sp.Target()
		tv := &TravelView{
			Proximity:     geo.Unavailable,
			Distance:      -1,
			Geofenced:     geofenced,
			Attempts:      s.travel.Attempts,
			RescuePending: s.rescuePending,
		}
		if last, ok := s.travel.Last(); ok {
			tv.Proximity = last.Proximity
			if last.Proximity != geo.Unavailable {
				tv.Distance = last.Distance
			}
		}
		tv.RescueReason = s.travel.Rescue(s.opts.Rescue, s.clock.Now())
		tv.RescueAvailable = tv.RescueReason != geo.RescueNone
		v.Travel = tv
	case s.mode == ModePuzzle && s.evaluator != nil:
		st := s.evaluator.State()
		v.Puzzle = &st
	}

	if s.seq != nil {
		v.Story = &StoryView{
			Kind:    s.seq.Kind(),
			Visible: s.seq.Visible(),
			Total:   s.seq.Total(),
			Done:    s.seq.Exhausted(),
		}
	}
	return v
}

// Convenience wrappers over Dispatch.

func (s *Session) Arrive() (Outcome, error)         { return s.Dispatch(ArrivalRequested{}) }
func (s *Session) RequestRescue() (Outcome, error)  { return s.Dispatch(RescueRequested{}) }
func (s *Session) ConfirmRescue() (Outcome, error)  { return s.Dispatch(RescueConfirmed{}) }
func (s *Session) CancelRescue() (Outcome, error)   { return s.Dispatch(RescueCancelled{}) }
func (s *Session) AdvanceStory() (Outcome, error)   { return s.Dispatch(StoryAdvanced{}) }
func (s *Session) SkipStory() (Outcome, error)      { return s.Dispatch(StorySkipped{}) }
func (s *Session) RequestHint() (Outcome, error)    { return s.Dispatch(HintRequested{}) }
func (s *Session) RevealAnswer() (Outcome, error)   { return s.Dispatch(AnswerRevealed{}) }
func (s *Session) ContinuePuzzle() (Outcome, error) { return s.Dispatch(PuzzleContinued{}) }
func (s *Session) Replay() (Outcome, error)         { return s.Dispatch(ReplayRequested{}) }

func (s *Session) SubmitAnswer(answer string) (Outcome, error) {
	return s.Dispatch(AnswerSubmitted{Answer: answer})
}

// ReportLocation feeds one reading directly, bypassing any Source.
func (s *Session) ReportLocation(r geo.Reading) (Outcome, error) {
	return s.Dispatch(LocationUpdated{Reading: r})
}
