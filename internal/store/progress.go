package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/playperu/walkquest/internal/quest"
)

func (s *Store) Progress(ctx context.Context, userID, questID string) (quest.Progress, error) {
	p := quest.Progress{UserID: userID, QuestID: questID}
	var status, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT current_step, status, updated_at FROM progress WHERE user_id = ? AND quest_id = ?`,
		userID, questID,
	).Scan(&p.CurrentStep, &status, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return quest.Progress{}, quest.ErrNotFound
	}
	if err != nil {
		return quest.Progress{}, fmt.Errorf("reading progress: %w", err)
	}
	p.Status = quest.Status(status)
	p.UpdatedAt = parseTime(updated)
	return p, nil
}

// UpsertProgress inserts or updates the record keyed by (userID, questID).
func (s *Store) UpsertProgress(ctx context.Context, userID, questID string, step int, status quest.Status) (quest.Progress, error) {
	if !status.Valid() {
		return quest.Progress{}, fmt.Errorf("unknown progress status %q", status)
	}
	now := s.timestamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO progress (user_id, quest_id, current_step, status, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, quest_id) DO UPDATE SET
		   current_step = excluded.current_step,
		   status = excluded.status,
		   updated_at = excluded.updated_at`,
		userID, questID, max(step, 1), string(status), now,
	)
	if err != nil {
		return quest.Progress{}, fmt.Errorf("upserting progress: %w", err)
	}
	return quest.Progress{
		UserID:      userID,
		QuestID:     questID,
		CurrentStep: max(step, 1),
		Status:      status,
		UpdatedAt:   parseTime(now),
	}, nil
}

// ListProgress returns every progress record for userID.
func (s *Store) ListProgress(ctx context.Context, userID string) ([]quest.Progress, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT quest_id, current_step, status, updated_at FROM progress WHERE user_id = ? ORDER BY quest_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing progress: %w", err)
	}
	defer rows.Close()

	var out []quest.Progress
	for rows.Next() {
		p := quest.Progress{UserID: userID}
		var status, updated string
		if err := rows.Scan(&p.QuestID, &p.CurrentStep, &status, &updated); err != nil {
			return nil, err
		}
		p.Status = quest.Status(status)
		p.UpdatedAt = parseTime(updated)
		out = append(out, p)
	}
	return out, rows.Err()
}
