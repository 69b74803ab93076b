// Package events carries the engine's discrete notifications to the host UI
// and optional downstream consumers.
package events

import (
	"context"
	"sync"
	"time"
)

// Type names a discrete engine event.
type Type string

const (
	TypeAllocated        Type = "allocated"
	TypeAdjusted         Type = "adjusted"
	TypeRemoved          Type = "removed"
	TypeOverrideSet      Type = "override-set"
	TypeAutoAllocated    Type = "auto-allocated"
	TypeUndone           Type = "undone"
	TypeRedone           Type = "redone"
	TypeConflictDetected Type = "conflict-detected"
	TypeConflictResolved Type = "conflict-resolved"
	TypeCommitted        Type = "committed"
	TypeCommitFailed     Type = "commit-failed"
	TypeRolledBack       Type = "rolled-back"
	TypeWorkspaceClosed  Type = "workspace-closed"
)

// Event is one notification. Payload holds public entities (allocations,
// conflicts, batches), never raw internal state.
type Event struct {
	Type          Type        `json:"type"`
	OpportunityID string      `json:"opportunityId"`
	At            time.Time   `json:"at"`
	Payload       interface{} `json:"payload,omitempty"`
}

// Emitter delivers engine events to whoever is listening.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Emit(ctx context.Context, ev Event) {}

// Bus fans events out synchronously to registered subscribers, matching the
// single-threaded editing model: handlers run on the caller's goroutine.
type Bus struct {
	mu   sync.RWMutex
	subs []func(Event)
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for every subsequent event.
func (b *Bus) Subscribe(fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

func (b *Bus) Emit(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// Multi emits to every wrapped emitter in order.
type Multi []Emitter

func (m Multi) Emit(ctx context.Context, ev Event) {
	for _, e := range m {
		e.Emit(ctx, ev)
	}
}
