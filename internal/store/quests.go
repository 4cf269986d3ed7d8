package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/playperu/walkquest/internal/content"
	"github.com/playperu/walkquest/internal/quest"
)

// QuestSummary is one row of the quest list.
type QuestSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	AreaName  string `json:"areaName"`
	SpotCount int    `json:"spotCount"`
}

// PutQuest validates d and stores it, replacing any quest with the same ID.
func (s *Store) PutQuest(ctx context.Context, d content.QuestDoc) error {
	if err := d.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO quests (id, title, area_name, data, updated_at) VALUES (?, ?, ?, jsonb(?), ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   area_name = excluded.area_name,
		   data = excluded.data,
		   updated_at = excluded.updated_at`,
		d.ID, d.Title, d.AreaName, string(data), s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("storing quest %s: %w", d.ID, err)
	}
	return nil
}

// QuestDoc returns the stored document.
func (s *Store) QuestDoc(ctx context.Context, id string) (content.QuestDoc, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT json(data) FROM quests WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return content.QuestDoc{}, quest.ErrNotFound
	}
	if err != nil {
		return content.QuestDoc{}, fmt.Errorf("reading quest %s: %w", id, err)
	}
	var d content.QuestDoc
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return content.QuestDoc{}, fmt.Errorf("decoding quest %s: %w", id, err)
	}
	return d, nil
}

// Quest implements quest.Catalog.
func (s *Store) Quest(ctx context.Context, id string) (quest.Quest, error) {
	d, err := s.QuestDoc(ctx, id)
	if err != nil {
		return quest.Quest{}, err
	}
	return d.Quest()
}

func (s *Store) ListQuests(ctx context.Context) ([]QuestSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, area_name, json_array_length(json(data), '$.spots') FROM quests ORDER BY title, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing quests: %w", err)
	}
	defer rows.Close()

	out := []QuestSummary{}
	for rows.Next() {
		var q QuestSummary
		if err := rows.Scan(&q.ID, &q.Title, &q.AreaName, &q.SpotCount); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// CountQuests returns how many quests are stored.
func (s *Store) CountQuests(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quests`).Scan(&n)
	return n, err
}
