// Package content reads quest documents as authored outside the engine and
// converts them into quest.Quest values. Documents are YAML or JSON.
package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/playperu/walkquest/internal/quest"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid quest document")

// QuestDoc is the authored form of a quest.
type QuestDoc struct {
	ID           string    `json:"id" yaml:"id"`
	Title        string    `json:"title" yaml:"title"`
	AreaName     string    `json:"areaName" yaml:"areaName"`
	PrologueText string    `json:"prologueText,omitempty" yaml:"prologueText,omitempty"`
	EpilogueText string    `json:"epilogueText,omitempty" yaml:"epilogueText,omitempty"`
	Prologue     []BeatDoc `json:"prologue,omitempty" yaml:"prologue,omitempty"`
	Epilogue     []BeatDoc `json:"epilogue,omitempty" yaml:"epilogue,omitempty"`
	Spots        []SpotDoc `json:"spots" yaml:"spots"`
}

type SpotDoc struct {
	ID            string   `json:"id" yaml:"id"`
	OrderIndex    int      `json:"orderIndex" yaml:"orderIndex"`
	Name          string   `json:"name" yaml:"name"`
	Lat           *float64 `json:"lat,omitempty" yaml:"lat,omitempty"`
	Lng           *float64 `json:"lng,omitempty" yaml:"lng,omitempty"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
	ArrivalRadius float64  `json:"arrivalRadius,omitempty" yaml:"arrivalRadius,omitempty"`

	QuestionText string `json:"questionText,omitempty" yaml:"questionText,omitempty"`
	AnswerText   string `json:"answerText,omitempty" yaml:"answerText,omitempty"`
	HintText     string `json:"hintText,omitempty" yaml:"hintText,omitempty"`

	// PreStory is nil when the spot has no arrival story, which is not the
	// same as an explicitly empty list.
	PreStory  []BeatDoc `json:"preStory,omitempty" yaml:"preStory,omitempty"`
	PostStory []BeatDoc `json:"postStory,omitempty" yaml:"postStory,omitempty"`
}

type BeatDoc struct {
	SpeakerType string `json:"speakerType" yaml:"speakerType"`
	SpeakerName string `json:"speakerName,omitempty" yaml:"speakerName,omitempty"`
	Text        string `json:"text" yaml:"text"`
}

// Delimiters between progressive hints and between accepted answers.
const (
	HintDelimiter   = "|"
	AnswerDelimiter = "|"
)

// ParseHints splits a hint string into ordered hints. Newlines are accepted
// as separators too; blank entries are dropped.
func ParseHints(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\n", HintDelimiter)
	return splitTrim(raw, HintDelimiter)
}

// ParseAnswers splits answerText into accepted answers, canonical first.
func ParseAnswers(raw string) []string {
	return splitTrim(raw, AnswerDelimiter)
}

func splitTrim(raw, sep string) []string {
	var out []string
	for _, part := range strings.Split(raw, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the document without converting it.
func (d QuestDoc) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalid)
	}
	if len(d.Spots) == 0 {
		return fmt.Errorf("%w: quest %s has no spots", ErrInvalid, d.ID)
	}
	seen := make(map[string]bool, len(d.Spots))
	for i, sp := range d.Spots {
		if sp.ID == "" {
			return fmt.Errorf("%w: spot %d has no id", ErrInvalid, i+1)
		}
		if seen[sp.ID] {
			return fmt.Errorf("%w: duplicate spot id %s", ErrInvalid, sp.ID)
		}
		seen[sp.ID] = true
		if (sp.Lat == nil) != (sp.Lng == nil) {
			return fmt.Errorf("%w: spot %s has only one of lat/lng", ErrInvalid, sp.ID)
		}
		if sp.Lat != nil && (*sp.Lat < -90 || *sp.Lat > 90 || *sp.Lng < -180 || *sp.Lng > 180) {
			return fmt.Errorf("%w: spot %s coordinates out of range", ErrInvalid, sp.ID)
		}
		if sp.ArrivalRadius < 0 {
			return fmt.Errorf("%w: spot %s has negative arrival radius", ErrInvalid, sp.ID)
		}
		for _, b := range append(append([]BeatDoc{}, sp.PreStory...), sp.PostStory...) {
			if err := b.validate(); err != nil {
				return fmt.Errorf("%w: spot %s: %v", ErrInvalid, sp.ID, err)
			}
		}
	}
	for _, b := range append(append([]BeatDoc{}, d.Prologue...), d.Epilogue...) {
		if err := b.validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	return nil
}

func (b BeatDoc) validate() error {
	switch quest.SpeakerType(b.SpeakerType) {
	case quest.SpeakerNarrator, quest.SpeakerCharacter, quest.SpeakerSystem:
	default:
		return fmt.Errorf("unknown speaker type %q", b.SpeakerType)
	}
	if b.Text == "" {
		return errors.New("beat has no text")
	}
	return nil
}

// Quest validates d and converts it. Spots are ordered by OrderIndex.
func (d QuestDoc) Quest() (quest.Quest, error) {
	if err := d.Validate(); err != nil {
		return quest.Quest{}, err
	}
	q := quest.Quest{
		ID:       d.ID,
		Title:    d.Title,
		AreaName: d.AreaName,
		Prologue: narrative(d.Prologue, d.PrologueText),
		Epilogue: narrative(d.Epilogue, d.EpilogueText),
	}

	spots := append([]SpotDoc{}, d.Spots...)
	sort.SliceStable(spots, func(i, j int) bool { return spots[i].OrderIndex < spots[j].OrderIndex })
	for _, sp := range spots {
		q.Spots = append(q.Spots, quest.Spot{
			ID:            sp.ID,
			OrderIndex:    sp.OrderIndex,
			Name:          sp.Name,
			Lat:           sp.Lat,
			Lng:           sp.Lng,
			Description:   sp.Description,
			ArrivalRadius: sp.ArrivalRadius,
			Puzzle: quest.Puzzle{
				Question: sp.QuestionText,
				Answers:  ParseAnswers(sp.AnswerText),
				Hints:    ParseHints(sp.HintText),
			},
			PreStory:  storyOf(sp.PreStory),
			PostStory: storyOf(sp.PostStory),
		})
	}
	return q, nil
}

// narrative prefers structured beats and falls back to one narrator beat
// per paragraph of plain text.
func narrative(beats []BeatDoc, text string) []quest.Beat {
	if len(beats) > 0 {
		return convertBeats(beats)
	}
	var out []quest.Beat
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if p := strings.TrimSpace(para); p != "" {
			out = append(out, quest.Beat{Speaker: quest.SpeakerNarrator, Text: p})
		}
	}
	return out
}

func storyOf(beats []BeatDoc) quest.Story {
	if len(beats) == 0 {
		return quest.Absent()
	}
	return quest.Present(convertBeats(beats)...)
}

func convertBeats(beats []BeatDoc) []quest.Beat {
	out := make([]quest.Beat, len(beats))
	for i, b := range beats {
		out[i] = quest.Beat{Speaker: quest.SpeakerType(b.SpeakerType), SpeakerName: b.SpeakerName, Text: b.Text}
	}
	return out
}

// Decode reads one document. JSON input is detected by a leading brace;
// everything else is parsed as YAML.
func Decode(r io.Reader) (QuestDoc, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return QuestDoc{}, fmt.Errorf("reading quest document: %w", err)
	}
	var d QuestDoc
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		err = json.Unmarshal(trimmed, &d)
	} else {
		err = yaml.Unmarshal(data, &d)
	}
	if err != nil {
		return QuestDoc{}, fmt.Errorf("decoding quest document: %w", err)
	}
	return d, nil
}

// LoadFile decodes and validates the document at path.
func LoadFile(path string) (QuestDoc, error) {
	f, err := os.Open(path)
	if err != nil {
		return QuestDoc{}, err
	}
	defer f.Close()

	d, err := Decode(f)
	if err != nil {
		return QuestDoc{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := d.Validate(); err != nil {
		return QuestDoc{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return d, nil
}
