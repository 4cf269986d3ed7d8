// Package redisx publishes completed-session summaries to a Redis stream
// for downstream analytics. Redis is optional; every failure here is
// reported and otherwise ignored.
package redisx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/playperu/walkquest/internal/quest"
)

const (
	DefaultStream = "walkquest:summaries"
	defaultMaxLen = 10000
)

// Open parses rawURL and pings the server.
func Open(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// Checker adapts a client to health.Checker.
type Checker struct{ Client *redis.Client }

func (c Checker) Check(ctx context.Context) error { return c.Client.Ping(ctx).Err() }

// SummaryStream appends summaries to a capped stream.
type SummaryStream struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewSummaryStream(client *redis.Client, stream string) *SummaryStream {
	if stream == "" {
		stream = DefaultStream
	}
	return &SummaryStream{client: client, stream: stream, maxLen: defaultMaxLen}
}

func (s *SummaryStream) RecordSummary(ctx context.Context, sum quest.SessionSummary) error {
	values, err := summaryValues(sum)
	if err != nil {
		return err
	}
	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("publishing summary %s: %w", sum.ID, err)
	}
	return nil
}

func summaryValues(sum quest.SessionSummary) (map[string]any, error) {
	scores, err := json.Marshal(sum.Scores)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":                sum.ID,
		"user_id":           sum.UserID,
		"quest_id":          sum.QuestID,
		"started_at":        sum.StartedAt.UTC().Format(time.RFC3339),
		"ended_at":          sum.EndedAt.UTC().Format(time.RFC3339),
		"duration_seconds":  strconv.FormatInt(sum.DurationSeconds, 10),
		"solved_spot_count": strconv.Itoa(sum.SolvedSpotCount),
		"scores":            string(scores),
	}, nil
}

// Mirror writes to Primary and then copies to Stream. Only the primary
// error is returned; stream failures are logged.
type Mirror struct {
	Primary quest.SummarySink
	Stream  quest.SummarySink
	Logger  *slog.Logger
}

func (m Mirror) RecordSummary(ctx context.Context, sum quest.SessionSummary) error {
	if err := m.Primary.RecordSummary(ctx, sum); err != nil {
		return err
	}
	if m.Stream == nil {
		return nil
	}
	if err := m.Stream.RecordSummary(ctx, sum); err != nil && m.Logger != nil {
		m.Logger.Warn("summary stream publish failed", "summary_id", sum.ID, "error", err)
	}
	return nil
}
