package geo

import (
	"context"
	"sync"
)

// Feed is a push-based Source. A transport (the location websocket)
// publishes fixes and every active Watch receives them. New subscribers
// get the last published fix first.
type Feed struct {
	mu   sync.Mutex
	subs map[chan Fix]struct{}
	last *Fix
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[chan Fix]struct{})}
}

func (f *Feed) Watch(ctx context.Context) (<-chan Fix, error) {
	ch := make(chan Fix, 8)

	f.mu.Lock()
	f.subs[ch] = struct{}{}
	if f.last != nil {
		ch <- *f.last
	}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, ch)
		close(ch)
		f.mu.Unlock()
	}()
	return ch, nil
}

// Publish delivers fix to every subscriber, dropping it for slow ones.
func (f *Feed) Publish(fix Fix) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = &fix
	for ch := range f.subs {
		select {
		case ch <- fix:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
