// Package store persists quests, progress, session summaries, and reviews
// in SQLite via libSQL. Quest content is kept as JSONB documents.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/playperu/walkquest/internal/quest"
)

const timeLayout = "2006-01-02T15:04:05.000Z"

// Store implements quest.Catalog, quest.ProgressStore, quest.SummarySink,
// and quest.ReviewSink over one database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New wraps db. The schema must already be migrated.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) timestamp() string {
	return formatTime(s.now())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	t, _ := time.Parse(timeLayout, v)
	return t
}

// notFound maps sql.ErrNoRows to quest.ErrNotFound and wraps anything else.
func notFound(err error, doing string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return quest.ErrNotFound
	}
	return fmt.Errorf("%s: %w", doing, err)
}
