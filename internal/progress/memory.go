package progress

import (
	"context"
	"sync"
	"time"

	"github.com/playperu/walkquest/internal/quest"
)

// MemoryStore is an in-process quest.ProgressStore.
type MemoryStore struct {
	mu      sync.Mutex
	records map[[2]string]quest.Progress
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[[2]string]quest.Progress), now: time.Now}
}

func (m *MemoryStore) Progress(_ context.Context, userID, questID string) (quest.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.records[[2]string{userID, questID}]
	if !ok {
		return quest.Progress{}, quest.ErrNotFound
	}
	return p, nil
}

func (m *MemoryStore) UpsertProgress(_ context.Context, userID, questID string, step int, status quest.Status) (quest.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := quest.Progress{
		UserID:      userID,
		QuestID:     questID,
		CurrentStep: step,
		Status:      status,
		UpdatedAt:   m.now().UTC(),
	}
	m.records[[2]string{userID, questID}] = p
	return p, nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
