// Package progress loads and durably records a player's quest progress.
// Writes are asynchronous and ordered; gameplay never waits on them.
package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/playperu/walkquest/internal/quest"
)

// LoadOrStart returns the stored record for (userID, questID), creating
// one at step 1 when none exists. A not_started record is promoted to
// in_progress.
func LoadOrStart(ctx context.Context, store quest.ProgressStore, userID, questID string) (quest.Progress, error) {
	p, err := store.Progress(ctx, userID, questID)
	if errors.Is(err, quest.ErrNotFound) || (err == nil && p.Status == quest.StatusNotStarted) {
		p, err = store.UpsertProgress(ctx, userID, questID, 1, quest.StatusInProgress)
		if err != nil {
			return quest.Progress{}, fmt.Errorf("creating progress: %w", err)
		}
		return p, nil
	}
	if err != nil {
		return quest.Progress{}, fmt.Errorf("loading progress: %w", err)
	}
	return p, nil
}
