package server

import (
	"encoding/json"
	"sync"

	"github.com/playperu/walkquest/internal/geo"
	"github.com/playperu/walkquest/internal/session"
)

// Event is the payload published to session subscribers.
type Event struct {
	Type    string           `json:"type"`
	Step    int              `json:"step,omitempty"`
	Mode    session.Mode     `json:"mode,omitempty"`
	Reason  geo.RescueReason `json:"reason,omitempty"`
	Message string           `json:"message,omitempty"`
}

func eventFromNotice(n session.Notice) Event {
	return Event{
		Type:    string(n.Kind),
		Step:    n.Step,
		Mode:    n.Mode,
		Reason:  n.Reason,
		Message: n.Message(),
	}
}

// Broker is an in-process pub/sub for SSE events, keyed by session token.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded events for token.
func (b *Broker) Subscribe(token string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[token] == nil {
		b.subs[token] = make(map[chan []byte]struct{})
	}
	b.subs[token][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(token string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[token], ch)
	if len(b.subs[token]) == 0 {
		delete(b.subs, token)
	}
	b.mu.Unlock()
}

// Publish never blocks; slow subscribers miss events.
func (b *Broker) Publish(token string, event Event) {
	data, _ := json.Marshal(event)
	b.mu.RLock()
	for ch := range b.subs[token] {
		select {
		case ch <- data:
		default:
		}
	}
	b.mu.RUnlock()
}
