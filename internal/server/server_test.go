package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/playperu/walkquest/internal/database"
	"github.com/playperu/walkquest/internal/geo"
	"github.com/playperu/walkquest/internal/migrations"
	"github.com/playperu/walkquest/internal/session"
	"github.com/playperu/walkquest/internal/store"
)

// Coordinates of the first demo spot.
const gateLat, gateLng = 35.00366, 135.77848

type testServer struct {
	router chi.Router
	reg    *Registry
	broker *Broker
	store  *store.Store
}

func newTestServer(t *testing.T, adminKeyHash string) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st := store.New(db)
	if err := SeedDemo(ctx, logger, st); err != nil {
		t.Fatalf("seed: %v", err)
	}

	opts := session.DefaultOptions()
	opts.CorrectAdvanceDelay = 0
	opts.Logger = logger

	broker := NewBroker()
	reg := NewRegistry(session.Deps{Catalog: st, Progress: st, Summaries: st, Reviews: st}, opts, broker, logger)
	t.Cleanup(reg.CloseAll)

	r := NewRouter(logger, Deps{
		Quests:       st,
		Sessions:     reg,
		Broker:       broker,
		AdminKeyHash: adminKeyHash,
	})
	return &testServer{router: r, reg: reg, broker: broker, store: st}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) start(t *testing.T, playerID string) StartSessionResponse {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/quests/rainbow-walk/sessions", "", StartSessionRequest{PlayerID: playerID, ScoreMode: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("start session: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp StartSessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func decodeAction(t *testing.T, rec *httptest.ResponseRecorder) ActionResponse {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp ActionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

// walkToPuzzle arrives at the first spot through the location feed and
// skips the stories in front of its puzzle.
func (ts *testServer) walkToPuzzle(t *testing.T, token string) {
	t.Helper()
	ls, err := ts.reg.Get(token)
	if err != nil {
		t.Fatal(err)
	}
	ls.feed.Publish(geo.Fix{Coord: geo.Coord{Lat: gateLat, Lng: gateLng}})
	waitFor(t, "arrival", func() bool { return ls.sess.Mode() != session.ModeTravel })

	for i := 0; ls.sess.Mode() != session.ModePuzzle; i++ {
		if i > 3 {
			t.Fatalf("stuck in mode %s", ls.sess.Mode())
		}
		decodeAction(t, ts.do(t, http.MethodPost, "/api/session/story/skip", token, nil))
	}
}

func TestListAndGetQuests(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodGet, "/api/quests", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var list []store.QuestSummary
	json.NewDecoder(rec.Body).Decode(&list)
	if len(list) != 1 || list[0].ID != "rainbow-walk" || list[0].SpotCount != 3 {
		t.Fatalf("list = %+v", list)
	}

	rec = ts.do(t, http.MethodGet, "/api/quests/rainbow-walk", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "にじいろ") || strings.Contains(body, "Seven colours") {
		t.Error("quest detail leaks answers or hints")
	}
	var detail QuestDetail
	json.Unmarshal([]byte(body), &detail)
	if len(detail.Spots) != 3 || !detail.Spots[0].HasPuzzle || detail.Spots[2].HasPuzzle {
		t.Errorf("detail = %+v", detail)
	}

	rec = ts.do(t, http.MethodGet, "/api/quests/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing quest status = %d, want 404", rec.Code)
	}
}

func TestStartSession(t *testing.T) {
	ts := newTestServer(t, "")

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"missing player", "/api/quests/rainbow-walk/sessions", StartSessionRequest{}, http.StatusBadRequest},
		{"unknown quest", "/api/quests/nope/sessions", StartSessionRequest{PlayerID: "p1"}, http.StatusNotFound},
		{"bad body", "/api/quests/rainbow-walk/sessions", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := ts.do(t, http.MethodPost, tt.path, "", tt.body); rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}

	first := ts.start(t, "p1")
	if first.Token == "" || first.State.Step != 1 || first.State.Mode != session.ModeTravel {
		t.Fatalf("start = %+v", first)
	}
	again := ts.start(t, "p1")
	if again.Token != first.Token {
		t.Error("second start opened a new session instead of returning the live one")
	}
	if ts.reg.Len() != 1 {
		t.Errorf("live sessions = %d, want 1", ts.reg.Len())
	}
}

func TestConcurrentOpenSharesSession(t *testing.T) {
	ts := newTestServer(t, "")
	ctx := context.Background()

	const n = 8
	tokens := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ls, err := ts.reg.Open(ctx, "p1", "rainbow-walk", false)
			if err == nil {
				tokens[i] = ls.token
			}
			errs[i] = err
		}()
	}
	wg.Wait()

	for i := range n {
		if errs[i] != nil {
			t.Fatalf("open %d: %v", i, errs[i])
		}
		if tokens[i] != tokens[0] {
			t.Errorf("open %d token = %s, want %s", i, tokens[i], tokens[0])
		}
	}
	if ts.reg.Len() != 1 {
		t.Errorf("live sessions = %d, want 1", ts.reg.Len())
	}
	if _, err := ts.reg.Get(tokens[0]); err != nil {
		t.Errorf("winning session not registered: %v", err)
	}
}

func TestSessionRequiresToken(t *testing.T) {
	ts := newTestServer(t, "")
	for _, token := range []string{"", "bogus"} {
		if rec := ts.do(t, http.MethodGet, "/api/session/", token, nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", token, rec.Code)
		}
	}
}

func TestPuzzleFlow(t *testing.T) {
	ts := newTestServer(t, "")
	token := ts.start(t, "p1").Token

	resp := decodeAction(t, ts.do(t, http.MethodPost, "/api/session/arrive", token, nil))
	if resp.Arrived || resp.State.Travel == nil || resp.State.Travel.Attempts != 1 {
		t.Fatalf("arrive without a fix = %+v", resp)
	}

	rec := ts.do(t, http.MethodPost, "/api/session/answer", token, AnswerRequest{Answer: "x"})
	if rec.Code != http.StatusConflict {
		t.Errorf("answer while travelling: status = %d, want 409", rec.Code)
	}

	ts.walkToPuzzle(t, token)

	if rec := ts.do(t, http.MethodPost, "/api/session/answer", token, AnswerRequest{Answer: "  "}); rec.Code != http.StatusBadRequest {
		t.Errorf("blank answer: status = %d, want 400", rec.Code)
	}

	resp = decodeAction(t, ts.do(t, http.MethodPost, "/api/session/answer", token, AnswerRequest{Answer: "青"}))
	if resp.Verdict == nil || resp.Verdict.Correct || resp.Verdict.Attempts != 1 {
		t.Fatalf("wrong answer verdict = %+v", resp.Verdict)
	}

	resp = decodeAction(t, ts.do(t, http.MethodPost, "/api/session/hint", token, nil))
	if resp.Hint != "Look up after a summer shower" {
		t.Errorf("hint = %q", resp.Hint)
	}

	resp = decodeAction(t, ts.do(t, http.MethodPost, "/api/session/answer", token, AnswerRequest{Answer: "ニジイロ"}))
	if resp.Verdict == nil || !resp.Verdict.Correct {
		t.Fatalf("correct answer verdict = %+v", resp.Verdict)
	}
	if resp.State.Mode != session.ModeStoryPost {
		t.Errorf("mode = %s, want %s", resp.State.Mode, session.ModeStoryPost)
	}
	if len(resp.State.Scores) != 1 || resp.State.Scores[0].SpotID != "yasaka-gate" {
		t.Errorf("scores = %+v", resp.State.Scores)
	}

	decodeAction(t, ts.do(t, http.MethodPost, "/api/session/story/skip", token, nil))
	ls, _ := ts.reg.Get(token)
	if err := ls.sess.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	p, err := ts.store.Progress(context.Background(), "p1", "rainbow-walk")
	if err != nil {
		t.Fatal(err)
	}
	if p.CurrentStep != 2 {
		t.Errorf("stored step = %d, want 2", p.CurrentStep)
	}

	rec = ts.do(t, http.MethodGet, "/api/session/story", token, nil)
	var log StoryLogResponse
	json.NewDecoder(rec.Body).Decode(&log)
	if len(log.Entries) < 2 {
		t.Errorf("story log has %d entries, want prologue and post story", len(log.Entries))
	}

	if rec := ts.do(t, http.MethodPost, "/api/session/review", token, ReviewRequest{Rating: 5}); rec.Code != http.StatusConflict {
		t.Errorf("review before completion: status = %d, want 409", rec.Code)
	}
}

func TestRevealRequiresAdminKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	ts := newTestServer(t, string(hash))
	token := ts.start(t, "p1").Token
	ts.walkToPuzzle(t, token)

	if rec := ts.do(t, http.MethodPost, "/api/session/reveal", token, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("reveal without key: status = %d, want 403", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/session/reveal", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Admin-Key", "letmein")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	resp := decodeAction(t, rec)
	if resp.Answer != "虹色" {
		t.Errorf("revealed answer = %q, want canonical 虹色", resp.Answer)
	}
	if len(resp.State.Scores) != 0 {
		t.Errorf("reveal recorded scores: %+v", resp.State.Scores)
	}
}

func TestRevealDisabledWithoutHash(t *testing.T) {
	ts := newTestServer(t, "")
	token := ts.start(t, "p1").Token

	req := httptest.NewRequest(http.MethodPost, "/api/session/reveal", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Admin-Key", "anything")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestEndSession(t *testing.T) {
	ts := newTestServer(t, "")
	token := ts.start(t, "p1").Token

	ch := ts.broker.Subscribe(token)
	defer ts.broker.Unsubscribe(token, ch)

	if rec := ts.do(t, http.MethodDelete, "/api/session/", token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/session/", token, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("state after end: status = %d, want 401", rec.Code)
	}
	if ts.reg.Len() != 0 {
		t.Errorf("live sessions = %d, want 0", ts.reg.Len())
	}

	timeout := time.After(time.Second)
	for closed := false; !closed; {
		select {
		case data := <-ch:
			var ev Event
			json.Unmarshal(data, &ev)
			closed = ev.Type == "closed"
		case <-timeout:
			t.Fatal("no closed event")
		}
	}

	// Progress survives; a new session resumes it.
	next := ts.start(t, "p1")
	if next.Token == token || next.State.Step != 1 {
		t.Errorf("resumed = %+v", next)
	}
}

func TestLocationWebsocket(t *testing.T) {
	ts := newTestServer(t, "")
	token := ts.start(t, "p1").Token
	ls, _ := ts.reg.Get(token)

	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/session/location?token=" + token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	if err := wsjson.Write(ctx, conn, LocationMessage{Lat: 35.0100, Lng: 135.7700}); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, "far reading", func() bool {
		v := ls.sess.View()
		return v.Travel != nil && v.Travel.Proximity == geo.TooFar
	})

	if err := wsjson.Write(ctx, conn, LocationMessage{Lat: gateLat, Lng: gateLng, Accuracy: 5}); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, "arrival", func() bool { return ls.sess.Mode() == session.ModePrologue })

	conn.Close(websocket.StatusNormalClosure, "")
}

func TestLocationWebsocketRejectsUnknownToken(t *testing.T) {
	ts := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/api/session/location?token=nope", nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestEventsRejectsUnknownToken(t *testing.T) {
	ts := newTestServer(t, "")
	for _, q := range []string{"", "?token=nope"} {
		rec := ts.do(t, http.MethodGet, "/api/session/events"+q, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("query %q: status = %d, want 401", q, rec.Code)
		}
	}
}

func TestEventsStream(t *testing.T) {
	ts := newTestServer(t, "")
	token := ts.start(t, "p1").Token

	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/session/events?token="+token, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %q", ct)
	}

	// The handler subscribes before it flushes headers.
	ls, _ := ts.reg.Get(token)
	ls.feed.Publish(geo.Fix{Coord: geo.Coord{Lat: gateLat, Lng: gateLng}})

	buf := make([]byte, 4096)
	var got strings.Builder
	for !strings.Contains(got.String(), `"type":"mode_changed"`) {
		n, err := resp.Body.Read(buf)
		if err != nil {
			t.Fatalf("read: %v (got %q)", err, got.String())
		}
		got.Write(buf[:n])
	}
	if !strings.Contains(got.String(), "event: notice") {
		t.Errorf("stream = %q", got.String())
	}
}

func TestHealthMounted(t *testing.T) {
	ts := newTestServer(t, "")
	ts.router = NewRouter(slog.New(slog.NewTextHandler(io.Discard, nil)), Deps{
		Quests:   ts.store,
		Sessions: ts.reg,
		Broker:   ts.broker,
		Health:   http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
	})
	if rec := ts.do(t, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
