package redisx

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/playperu/walkquest/internal/quest"
)

func deadRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         "localhost:1",
		DialTimeout:  10 * time.Millisecond,
		ReadTimeout:  10 * time.Millisecond,
		WriteTimeout: 10 * time.Millisecond,
		MaxRetries:   -1,
	})
}

type sinkFunc func(context.Context, quest.SessionSummary) error

func (f sinkFunc) RecordSummary(ctx context.Context, s quest.SessionSummary) error { return f(ctx, s) }

func TestSummaryValues(t *testing.T) {
	start := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	v, err := summaryValues(quest.SessionSummary{
		ID:              "s1",
		UserID:          "u1",
		QuestID:         "q1",
		StartedAt:       start,
		EndedAt:         start.Add(time.Hour),
		DurationSeconds: 3600,
		SolvedSpotCount: 3,
		Scores:          []quest.ScoreRecord{{SpotID: "a", Score: 900, Stars: 3}},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"duration_seconds":  "3600",
		"solved_spot_count": "3",
		"ended_at":          "2026-04-01T10:00:00Z",
		"scores":            `[{"spotId":"a","score":900,"stars":3}]`,
	}
	for k, w := range want {
		if got := v[k]; got != w {
			t.Errorf("%s = %v, want %s", k, got, w)
		}
	}
}

func TestDeadRedisIsReported(t *testing.T) {
	rdb := deadRedis()
	defer rdb.Close()

	stream := NewSummaryStream(rdb, "")
	if err := stream.RecordSummary(context.Background(), quest.SessionSummary{ID: "x"}); err == nil {
		t.Error("expected error from unreachable redis")
	}
	if err := (Checker{Client: rdb}).Check(context.Background()); err == nil {
		t.Error("health check passed against unreachable redis")
	}
}

func TestMirrorIgnoresStreamFailure(t *testing.T) {
	rdb := deadRedis()
	defer rdb.Close()

	var primaryCalls int
	m := Mirror{
		Primary: sinkFunc(func(context.Context, quest.SessionSummary) error { primaryCalls++; return nil }),
		Stream:  NewSummaryStream(rdb, "test"),
		Logger:  slog.Default(),
	}
	if err := m.RecordSummary(context.Background(), quest.SessionSummary{ID: "x"}); err != nil {
		t.Errorf("err = %v, want nil", err)
	}
	if primaryCalls != 1 {
		t.Errorf("primary calls = %d", primaryCalls)
	}

	boom := errors.New("db down")
	m.Primary = sinkFunc(func(context.Context, quest.SessionSummary) error { return boom })
	if err := m.RecordSummary(context.Background(), quest.SessionSummary{ID: "x"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestOpenRejectsBadURL(t *testing.T) {
	if _, err := Open(context.Background(), "not-a-url"); err == nil {
		t.Error("expected parse error")
	}
}
