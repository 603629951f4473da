// Package events is a small in-process notification bus. Emit never waits
// for listeners to acknowledge anything.
package events

import "sync"

// Event names emitted by the sync engine and the scheduler.
const (
	SyncProgress       = "sync-progress"
	SyncError          = "sync-error"
	SyncProgressUpdate = "syncProgressUpdate"
	SyncItemProgress   = "syncItemProgress"
	SyncComplete       = "syncComplete"
)

// Handler receives an event payload.
type Handler func(name string, payload any)

// Emitter is what producers depend on.
type Emitter interface {
	Emit(name string, payload any)
}

type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string]map[int]Handler)}
}

// Subscribe registers h for name; "*" receives every event. The returned
// func removes the subscription.
func (b *Bus) Subscribe(name string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.handlers[name] == nil {
		b.handlers[name] = make(map[int]Handler)
	}
	b.handlers[name][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[name], id)
	}
}

// Emit calls the handlers synchronously. A panicking handler does not stop
// the others or the producer.
func (b *Bus) Emit(name string, payload any) {
	b.mu.RLock()
	var hs []Handler
	for _, h := range b.handlers[name] {
		hs = append(hs, h)
	}
	for _, h := range b.handlers["*"] {
		hs = append(hs, h)
	}
	b.mu.RUnlock()

	for _, h := range hs {
		func() {
			defer func() { _ = recover() }()
			h(name, payload)
		}()
	}
}

// Nop drops every event.
type Nop struct{}

func (Nop) Emit(string, any) {}

// Payloads.

type ProgressPayload struct {
	Status    string `json:"status"`
	PageID    string `json:"pageId,omitempty"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Error     string `json:"error,omitempty"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

type PhasePayload struct {
	Phase          string `json:"phase"`
	Current        int    `json:"current"`
	Total          int    `json:"total"`
	Percent        int    `json:"percent"`
	ProcessedItems int    `json:"processedItems"`
	TotalItems     int    `json:"totalItems"`
}

type ItemPayload struct {
	Processed   int   `json:"processed"`
	Total       int   `json:"total"`
	Percent     int   `json:"percent"`
	ElapsedTime int64 `json:"elapsedTime"`
}

type CompletePayload struct {
	JobID          string   `json:"jobId"`
	TotalProcessed int      `json:"totalProcessed"`
	FailedItems    []string `json:"failedItems"`
	DurationMS     int64    `json:"durationMs"`
}
