package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/playperu/walkquest/internal/content"
	"github.com/playperu/walkquest/internal/store"
)

// SeedDemo stores the bundled demo quests if no quests exist.
// Idempotent: does nothing if the quest table is not empty.
func SeedDemo(ctx context.Context, logger *slog.Logger, quests *store.Store) error {
	n, err := quests.CountQuests(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	docs, err := content.Demo()
	if err != nil {
		return fmt.Errorf("loading demo quests: %w", err)
	}
	for _, d := range docs {
		if err := quests.PutQuest(ctx, d); err != nil {
			return err
		}
	}

	logger.Info("demo quests seeded", "count", len(docs))
	return nil
}
