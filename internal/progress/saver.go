package progress

import (
	"context"
	"sync"
	"time"

	"github.com/playperu/walkquest/internal/quest"
)

const DefaultSaveTimeout = 5 * time.Second

// Result reports the outcome of one write attempt.
type Result struct {
	Step   int
	Status quest.Status
	Record quest.Progress
	Err    error
}

// Saver writes the latest requested progress for one (user, quest) pair
// on a background goroutine. Requests made while a write is in flight
// collapse into a single follow-up write of the newest state, so the
// store always converges on the last request.
type Saver struct {
	store   quest.ProgressStore
	userID  string
	questID string
	timeout time.Duration
	notify  func(Result)

	mu        sync.Mutex
	step      int
	status    quest.Status
	requested uint64
	attempted uint64
	lastErr   error
	settled   chan struct{}

	kick chan struct{}
	quit chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewSaver starts the writer goroutine. notify, when non-nil, is called
// from that goroutine after every attempt and before Flush observes it.
func NewSaver(store quest.ProgressStore, userID, questID string, timeout time.Duration, notify func(Result)) *Saver {
	if timeout <= 0 {
		timeout = DefaultSaveTimeout
	}
	s := &Saver{
		store:   store,
		userID:  userID,
		questID: questID,
		timeout: timeout,
		notify:  notify,
		settled: make(chan struct{}),
		kick:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Save queues a write and returns immediately.
func (s *Saver) Save(step int, status quest.Status) {
	s.mu.Lock()
	s.step, s.status = step, status
	s.requested++
	s.mu.Unlock()
	s.signal()
}

// Retry queues the most recently requested state again. It reports false
// when nothing was ever requested.
func (s *Saver) Retry() bool {
	s.mu.Lock()
	if s.requested == 0 {
		s.mu.Unlock()
		return false
	}
	s.requested++
	s.mu.Unlock()
	s.signal()
	return true
}

func (s *Saver) signal() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Flush waits until every write requested before the call was attempted
// and returns the error of the latest attempt.
func (s *Saver) Flush(ctx context.Context) error {
	s.mu.Lock()
	target := s.requested
	for s.attempted < target {
		ch := s.settled
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
		s.mu.Lock()
	}
	err := s.lastErr
	s.mu.Unlock()
	return err
}

// Close attempts any pending write and stops the goroutine.
func (s *Saver) Close() {
	s.once.Do(func() { close(s.quit) })
	s.wg.Wait()
}

func (s *Saver) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.kick:
			s.writeLatest()
		case <-s.quit:
			s.writeLatest()
			return
		}
	}
}

func (s *Saver) writeLatest() {
	s.mu.Lock()
	if s.attempted >= s.requested {
		s.mu.Unlock()
		return
	}
	step, status, version := s.step, s.status, s.requested
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	rec, err := s.store.UpsertProgress(ctx, s.userID, s.questID, step, status)
	cancel()

	if s.notify != nil {
		s.notify(Result{Step: step, Status: status, Record: rec, Err: err})
	}

	s.mu.Lock()
	s.attempted = version
	s.lastErr = err
	close(s.settled)
	s.settled = make(chan struct{})
	s.mu.Unlock()
}
