package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/playperu/walkquest/internal/quest"
)

// RecordSummary implements quest.SummarySink.
func (s *Store) RecordSummary(ctx context.Context, sum quest.SessionSummary) error {
	scores := sum.Scores
	if scores == nil {
		scores = []quest.ScoreRecord{}
	}
	data, err := json.Marshal(scores)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session_summaries
		   (id, user_id, quest_id, started_at, ended_at, duration_seconds, solved_spot_count, scores)
		 VALUES (?, ?, ?, ?, ?, ?, ?, jsonb(?))
		 ON CONFLICT(id) DO NOTHING`,
		sum.ID, sum.UserID, sum.QuestID, formatTime(sum.StartedAt), formatTime(sum.EndedAt),
		sum.DurationSeconds, sum.SolvedSpotCount, string(data),
	)
	if err != nil {
		return fmt.Errorf("recording summary: %w", err)
	}
	return nil
}

// Summaries returns recorded summaries for (userID, questID), newest first.
func (s *Store) Summaries(ctx context.Context, userID, questID string) ([]quest.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, ended_at, duration_seconds, solved_spot_count, json(scores)
		 FROM session_summaries WHERE user_id = ? AND quest_id = ? ORDER BY ended_at DESC`,
		userID, questID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing summaries: %w", err)
	}
	defer rows.Close()

	var out []quest.SessionSummary
	for rows.Next() {
		sum := quest.SessionSummary{UserID: userID, QuestID: questID}
		var started, ended, scores string
		if err := rows.Scan(&sum.ID, &started, &ended, &sum.DurationSeconds, &sum.SolvedSpotCount, &scores); err != nil {
			return nil, err
		}
		sum.StartedAt, sum.EndedAt = parseTime(started), parseTime(ended)
		if err := json.Unmarshal([]byte(scores), &sum.Scores); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// SubmitReview implements quest.ReviewSink. A second review by the same
// player replaces the first.
func (s *Store) SubmitReview(ctx context.Context, r quest.Review) error {
	created := r.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reviews (user_id, quest_id, rating, comment, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, quest_id) DO UPDATE SET
		   rating = excluded.rating,
		   comment = excluded.comment,
		   created_at = excluded.created_at`,
		r.UserID, r.QuestID, r.Rating, r.Comment, formatTime(created),
	)
	if err != nil {
		return fmt.Errorf("submitting review: %w", err)
	}
	return nil
}

// Review returns the player's review, or quest.ErrNotFound.
func (s *Store) Review(ctx context.Context, userID, questID string) (quest.Review, error) {
	r := quest.Review{UserID: userID, QuestID: questID}
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT rating, comment, created_at FROM reviews WHERE user_id = ? AND quest_id = ?`,
		userID, questID,
	).Scan(&r.Rating, &r.Comment, &created)
	if err != nil {
		return quest.Review{}, notFound(err, "reading review")
	}
	r.CreatedAt = parseTime(created)
	return r, nil
}
