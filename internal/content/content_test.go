package content

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/playperu/walkquest/internal/quest"
)

func TestParseHints(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"one", []string{"one"}},
		{"one|two| three ", []string{"one", "two", "three"}},
		{"one\ntwo\r\nthree", []string{"one", "two", "three"}},
		{"one||two|", []string{"one", "two"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, ParseHints(tt.raw)); diff != "" {
			t.Errorf("ParseHints(%q) mismatch (-want +got):\n%s", tt.raw, diff)
		}
	}
}

func TestParseAnswers(t *testing.T) {
	got := ParseAnswers(" 虹色 | にじいろ ")
	if diff := cmp.Diff([]string{"虹色", "にじいろ"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

const yamlDoc = `
id: q1
title: Test
areaName: Town
prologueText: |
  First paragraph.

  Second paragraph.
spots:
  - id: b
    orderIndex: 2
    name: Second
    questionText: Q?
    answerText: A|alt
    hintText: h1|h2
  - id: a
    orderIndex: 1
    name: First
    lat: 35.0
    lng: 135.0
    preStory:
      - speakerType: character
        speakerName: Fox
        text: Hello
`

func TestDecodeYAMLAndConvert(t *testing.T) {
	d, err := Decode(strings.NewReader(yamlDoc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	q, err := d.Quest()
	if err != nil {
		t.Fatalf("Quest: %v", err)
	}

	if q.Spots[0].ID != "a" || q.Spots[1].ID != "b" {
		t.Fatalf("spots not ordered by orderIndex: %s, %s", q.Spots[0].ID, q.Spots[1].ID)
	}
	if len(q.Prologue) != 2 || q.Prologue[1].Text != "Second paragraph." {
		t.Errorf("prologue = %+v", q.Prologue)
	}
	if !q.Spots[0].PreStory.IsPresent() || q.Spots[0].PreStory.Beats()[0].SpeakerName != "Fox" {
		t.Errorf("pre story = %+v", q.Spots[0].PreStory)
	}
	if q.Spots[1].PreStory.IsPresent() {
		t.Error("absent pre story converted as present")
	}
	if _, _, ok := q.Spots[1].Target(); ok {
		t.Error("spot without coordinates has a target")
	}
	want := quest.Puzzle{Question: "Q?", Answers: []string{"A", "alt"}, Hints: []string{"h1", "h2"}}
	if diff := cmp.Diff(want, q.Spots[1].Puzzle); diff != "" {
		t.Errorf("puzzle mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeJSON(t *testing.T) {
	d, err := Decode(strings.NewReader(`{"id":"j","spots":[{"id":"s","orderIndex":1,"name":"S","answerText":"x"}]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d.ID != "j" || d.Spots[0].AnswerText != "x" {
		t.Errorf("decoded %+v", d)
	}
}

func TestValidate(t *testing.T) {
	lat := 10.0
	tests := []struct {
		name string
		doc  QuestDoc
	}{
		{"missing id", QuestDoc{Spots: []SpotDoc{{ID: "s"}}}},
		{"no spots", QuestDoc{ID: "q"}},
		{"duplicate spot", QuestDoc{ID: "q", Spots: []SpotDoc{{ID: "s"}, {ID: "s"}}}},
		{"half coordinates", QuestDoc{ID: "q", Spots: []SpotDoc{{ID: "s", Lat: &lat}}}},
		{"bad speaker", QuestDoc{ID: "q", Spots: []SpotDoc{{ID: "s", PreStory: []BeatDoc{{SpeakerType: "ghost", Text: "boo"}}}}}},
		{"negative radius", QuestDoc{ID: "q", Spots: []SpotDoc{{ID: "s", ArrivalRadius: -1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.doc.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestDemoQuestsAreValid(t *testing.T) {
	docs, err := Demo()
	if err != nil {
		t.Fatalf("Demo: %v", err)
	}
	if len(docs) == 0 {
		t.Fatal("no demo quests")
	}
	lib := NewLibrary(docs...)
	q, err := lib.Quest(context.Background(), "rainbow-walk")
	if err != nil {
		t.Fatalf("Quest: %v", err)
	}
	if len(q.Spots) != 3 || len(q.Epilogue) != 2 {
		t.Errorf("demo quest has %d spots and %d epilogue beats", len(q.Spots), len(q.Epilogue))
	}
	if !q.Spots[2].Puzzle.Empty() {
		t.Error("final demo spot should have no puzzle")
	}
}

func TestLibraryNotFound(t *testing.T) {
	_, err := NewLibrary().Quest(context.Background(), "nope")
	if !errors.Is(err, quest.ErrNotFound) {
		t.Errorf("err = %v, want quest.ErrNotFound", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.yaml")
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(d.Spots) != 2 {
		t.Errorf("spots = %d, want 2", len(d.Spots))
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("id: x\nspots: []\n"), 0o644)
	if _, err := LoadFile(bad); !errors.Is(err, ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}
