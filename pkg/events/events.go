// Package events carries the suite's outward event stream. Workers publish
// into an injected Sink; the Hub fans events out to any number of observers
// (dashboards, log writers) without blocking run execution.
package events

import (
	"sync"
	"time"
)

// Type identifies the kind of suite event.
type Type string

const (
	TypeRunStart     Type = "run_start"
	TypeStepStart    Type = "step_start"
	TypeStepComplete Type = "step_complete"
	TypeRunComplete  Type = "run_complete"
	TypeError        Type = "error"
	TypeWorkerIdle   Type = "worker_idle"
)

// Event is one entry in the suite event stream. Ordering is guaranteed only
// within a single model's events; workers emit concurrently across models.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Model     string    `json:"model"`
	PuzzleID  string    `json:"puzzle_id,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	Step      int       `json:"step,omitempty"`
	Status    string    `json:"status,omitempty"`
	Tokens    int       `json:"tokens,omitempty"`
	Cost      float64   `json:"cost,omitempty"`
	LatencyMs int64     `json:"latency_ms,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Sink accepts published events. Implementations must tolerate concurrent
// publication from all workers.
type Sink interface {
	Publish(event Event)
}

// Hub fans out events to subscribers. Publication never blocks: a subscriber
// that cannot keep up drops events rather than stalling workers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	closed      bool
}

// NewHub constructs an event hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan Event]struct{})}
}

// Publish notifies all subscribers of an event.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			// Drop if the subscriber can't keep up; never block a worker.
		}
	}
}

// Subscribe returns a channel of future events and an unsubscribe func.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		empty := make(chan Event)
		close(empty)
		return empty, func() {}
	}
	ch := make(chan Event, 256)
	h.subscribers[ch] = struct{}{}
	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
	}
	return ch, unsubscribe
}

// Close unsubscribes all listeners and prevents future publications.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, ch)
	}
}

// Multi combines sinks so suite events can feed the in-process hub and an
// external mirror at the same time.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

type multiSink []Sink

func (m multiSink) Publish(event Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(event)
		}
	}
}
