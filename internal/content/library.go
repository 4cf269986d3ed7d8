package content

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"sync"

	"github.com/playperu/walkquest/internal/quest"
)

//go:embed demo/*.yaml
var demoFS embed.FS

// Demo returns the bundled demo quests.
func Demo() ([]QuestDoc, error) {
	paths, err := fs.Glob(demoFS, "demo/*.yaml")
	if err != nil {
		return nil, err
	}
	docs := make([]QuestDoc, 0, len(paths))
	for _, p := range paths {
		f, err := demoFS.Open(p)
		if err != nil {
			return nil, err
		}
		d, err := Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// Library is an in-memory quest.Catalog.
type Library struct {
	mu     sync.RWMutex
	quests map[string]QuestDoc
}

func NewLibrary(docs ...QuestDoc) *Library {
	l := &Library{quests: make(map[string]QuestDoc)}
	for _, d := range docs {
		l.quests[d.ID] = d
	}
	return l
}

func (l *Library) Put(d QuestDoc) error {
	if err := d.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.quests[d.ID] = d
	return nil
}

func (l *Library) Quest(_ context.Context, id string) (quest.Quest, error) {
	l.mu.RLock()
	d, ok := l.quests[id]
	l.mu.RUnlock()
	if !ok {
		return quest.Quest{}, quest.ErrNotFound
	}
	return d.Quest()
}

// Docs returns every document ordered by ID.
func (l *Library) Docs() []QuestDoc {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]QuestDoc, 0, len(l.quests))
	for _, d := range l.quests {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
