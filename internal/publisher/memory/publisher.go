// Package memory keeps published run reports in process for tests and local
// runs without a broker.
package memory

import (
	"context"
	"strconv"
	"sync"
)

// Message is one recorded publish.
type Message struct {
	Topic   string
	Payload any
}

// Publisher appends every publish to an in-memory log.
type Publisher struct {
	mu       sync.Mutex
	messages []Message
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the payload and returns its 1-based sequence as the id.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, Message{Topic: topic, Payload: payload})
	return "memory-" + strconv.Itoa(len(p.messages)), nil
}

// Messages returns a snapshot of recorded publishes.
func (p *Publisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.messages...)
}
