// Package story reveals narrative beats one at a time and keeps a log of
// everything shown during a session.
package story

import "github.com/playperu/walkquest/internal/quest"

type Kind string

const (
	KindPrologue Kind = "prologue"
	KindPre      Kind = "pre"
	KindPost     Kind = "post"
	KindEpilogue Kind = "epilogue"
)

// Entry is one logged sequence. Beats holds only what was revealed.
type Entry struct {
	Kind   Kind         `json:"kind"`
	SpotID string       `json:"spotId,omitempty"`
	Beats  []quest.Beat `json:"beats"`
}

// Log is append-only: entries and their beats are never removed.
type Log struct {
	entries []Entry
}

func (l *Log) Len() int { return len(l.entries) }

// Entries returns a copy of the log.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = Entry{Kind: e.Kind, SpotID: e.SpotID, Beats: append([]quest.Beat{}, e.Beats...)}
	}
	return out
}

func (l *Log) open(kind Kind, spotID string) int {
	l.entries = append(l.entries, Entry{Kind: kind, SpotID: spotID, Beats: []quest.Beat{}})
	return len(l.entries) - 1
}

func (l *Log) reveal(idx int, b quest.Beat) {
	l.entries[idx].Beats = append(l.entries[idx].Beats, b)
}

// Sequencer walks one ordered list of beats.
type Sequencer struct {
	kind    Kind
	spotID  string
	beats   []quest.Beat
	visible int
	log     *Log
	entry   int
}

// Start opens a sequence in log and reveals its first beat.
func Start(log *Log, kind Kind, spotID string, beats []quest.Beat) *Sequencer {
	s := &Sequencer{kind: kind, spotID: spotID, beats: beats, log: log, entry: log.open(kind, spotID)}
	s.revealOne()
	return s
}

func (s *Sequencer) Kind() Kind { return s.kind }

// Advance reveals one more beat. Once every beat is visible it reports
// done instead.
func (s *Sequencer) Advance() (done bool) {
	if s.visible >= len(s.beats) {
		return true
	}
	s.revealOne()
	return false
}

func (s *Sequencer) revealOne() {
	if s.visible >= len(s.beats) {
		return
	}
	s.log.reveal(s.entry, s.beats[s.visible])
	s.visible++
}

// Visible returns the revealed prefix.
func (s *Sequencer) Visible() []quest.Beat {
	return append([]quest.Beat{}, s.beats[:s.visible]...)
}

func (s *Sequencer) Total() int { return len(s.beats) }

// Exhausted reports whether every beat has been revealed.
func (s *Sequencer) Exhausted() bool { return s.visible >= len(s.beats) }
