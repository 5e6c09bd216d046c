// Package memory keeps record events in process memory. It backs the
// "memory" events backend for local development and the API tests.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// DefaultLimit is how many events a Publisher retains when no limit is given.
const DefaultLimit = 1000

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	ID      string
	Topic   string
	Payload any
}

// Publisher retains the most recent events up to a limit; older ones are
// dropped so a long-running development server does not grow without bound.
type Publisher struct {
	mu       sync.RWMutex
	limit    int
	seq      int
	dropped  int
	messages []PublishedMessage
}

// New returns a Publisher that keeps DefaultLimit events.
func New() *Publisher {
	return NewWithLimit(DefaultLimit)
}

// NewWithLimit returns a Publisher that keeps at most limit events.
// A non-positive limit means DefaultLimit.
func NewWithLimit(limit int) *Publisher {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Publisher{limit: limit}
}

// Publish records the event and returns its sequence ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := fmt.Sprintf("memory-%d", p.seq)
	if len(p.messages) == p.limit {
		p.messages = append(p.messages[:0], p.messages[1:]...)
		p.dropped++
	}
	p.messages = append(p.messages, PublishedMessage{ID: id, Topic: topic, Payload: payload})
	return id, nil
}

// Messages returns a copy of the retained events, oldest first.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// Dropped reports how many events were evicted to honour the limit.
func (p *Publisher) Dropped() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dropped
}
