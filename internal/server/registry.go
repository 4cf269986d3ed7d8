package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/playperu/walkquest/internal/geo"
	"github.com/playperu/walkquest/internal/session"
)

var errNoSession = errors.New("no live session")

// liveSession is one open session plus the location feed its websocket
// writes into.
type liveSession struct {
	token    string
	playerID string
	questID  string
	sess     *session.Session
	feed     *geo.Feed
}

type playerQuest struct{ playerID, questID string }

// Registry holds live sessions keyed by bearer token. At most one session
// exists per (player, quest).
type Registry struct {
	deps   session.Deps
	base   session.Options
	broker *Broker
	logger *slog.Logger

	mu       sync.RWMutex
	byToken  map[string]*liveSession
	byPlayer map[playerQuest]*liveSession
}

func NewRegistry(deps session.Deps, base session.Options, broker *Broker, logger *slog.Logger) *Registry {
	return &Registry{
		deps:     deps,
		base:     base,
		broker:   broker,
		logger:   logger,
		byToken:  make(map[string]*liveSession),
		byPlayer: make(map[playerQuest]*liveSession),
	}
}

// Open returns the live session for (playerID, questID), opening one from
// stored progress if none exists. scoreMode only applies to new sessions.
func (r *Registry) Open(ctx context.Context, playerID, questID string, scoreMode bool) (*liveSession, error) {
	key := playerQuest{playerID, questID}

	r.mu.RLock()
	ls, ok := r.byPlayer[key]
	r.mu.RUnlock()
	if ok {
		return ls, nil
	}

	token := uuid.NewString()
	feed := geo.NewFeed()
	opts := r.base
	opts.ScoreMode = scoreMode
	opts.Location = feed
	opts.OnNotice = func(n session.Notice) { r.broker.Publish(token, eventFromNotice(n)) }

	// Opening reads stored progress, so it runs outside the lock.
	sess, err := session.Open(ctx, r.deps, playerID, questID, opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.byPlayer[key]; ok {
		r.mu.Unlock()
		sess.Close()
		return existing, nil
	}
	ls = &liveSession{token: token, playerID: playerID, questID: questID, sess: sess, feed: feed}
	r.byToken[token] = ls
	r.byPlayer[key] = ls
	r.mu.Unlock()

	r.logger.Info("session registered", "player_id", playerID, "quest_id", questID, "session_id", sess.ID())
	return ls, nil
}

func (r *Registry) Get(token string) (*liveSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ls, ok := r.byToken[token]
	if !ok {
		return nil, errNoSession
	}
	return ls, nil
}

// Close disposes the session behind token, tearing down its location
// subscription and writing pending progress.
func (r *Registry) Close(token string) error {
	r.mu.Lock()
	ls, ok := r.byToken[token]
	if ok {
		delete(r.byToken, token)
		delete(r.byPlayer, playerQuest{ls.playerID, ls.questID})
	}
	r.mu.Unlock()

	if !ok {
		return errNoSession
	}
	ls.sess.Close()
	r.broker.Publish(token, Event{Type: "closed"})
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byToken)
}

// CloseAll disposes every live session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*liveSession, 0, len(r.byToken))
	for token, ls := range r.byToken {
		all = append(all, ls)
		delete(r.byToken, token)
	}
	clear(r.byPlayer)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, ls := range all {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ls.sess.Close()
		}()
	}
	wg.Wait()
}
