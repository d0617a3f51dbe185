// Package events publishes search lifecycle events for consumers that prefer
// push over polling. Events are emitted only after the state they describe
// has been persisted, and nothing is emitted for a search after its terminal
// event.
package events

import (
	"context"
	"sync"
	"time"
)

// Type names a lifecycle event.
type Type string

const (
	SearchCreated    Type = "search.created"
	SearchProgressed Type = "search.progressed"
	SearchCompleted  Type = "search.completed"
	SearchFailed     Type = "search.failed"
)

// Event is a snapshot of a search at the moment of a lifecycle change.
type Event struct {
	Type            Type      `json:"type"`
	SearchID        string    `json:"search_id"`
	Status          string    `json:"status"`
	TotalFound      int       `json:"total_found"`
	ProgressPercent float64   `json:"progress_percent"`
	FailureKind     string    `json:"failure_kind,omitempty"`
	Message         string    `json:"message,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// Publisher delivers lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// For returns the events of one search, in publish order.
func (r *Recorder) For(searchID string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.SearchID == searchID {
			out = append(out, e)
		}
	}
	return out
}
