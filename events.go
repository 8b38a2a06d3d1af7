package webx

import "sync"

// EventType distinguishes the two observation kinds exposed to
// embedders (spec.md §6: "ResponseSent and RequestHeadParsed
// observations").
type EventType int

const (
	EventResponseSent EventType = iota
	EventRequestHeadParsed
)

// ResponseSentPayload carries (status, bytes) for one completed
// exchange (spec.md §4.7: "emit a ResponseSent observation with
// (nanoTimeOnStart, nanoTimeOnStop, bytes)"; this engine narrows that
// to status+bytes since Server already timestamps via its dateUpdater
// and detailed latency histograms are left to embedders wrapping
// handlers themselves).
type ResponseSentPayload struct {
	Status int
	Bytes  int64
}

// RequestHeadParsedPayload carries the method and target parsed from
// one request head.
type RequestHeadParsedPayload struct {
	Method string
	Target string
}

// Listener receives emitted events; per spec.md §6 "listeners must be
// thread-safe" since they are "invoked synchronously by the emitting
// task" — i.e. on whichever connection's goroutine produced the event.
type Listener func(EventType, interface{})

// EventHub is the minimal concurrent subscribe/unsubscribe/emit
// facility from spec.md §2 ("external, interface-only") and §9 ("a
// concurrent map from event-type-id to a set of listener trait
// objects ... emission iterates a stable snapshot"). Kept deliberately
// small: this is explicitly named as glue, not core-engine surface.
type EventHub struct {
	mu        sync.RWMutex
	listeners map[EventType][]subscription
	nextID    int
}

type subscription struct {
	id int
	fn Listener
}

func NewEventHub() *EventHub {
	return &EventHub{listeners: map[EventType][]subscription{}}
}

// Subscribe registers fn for events of type t, returning an id usable
// with Unsubscribe. Thread-safe and non-blocking.
func (h *EventHub) Subscribe(t EventType, fn Listener) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.listeners[t] = append(h.listeners[t], subscription{id: id, fn: fn})
	return id
}

// Unsubscribe removes a listener previously returned by Subscribe.
func (h *EventHub) Unsubscribe(t EventType, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.listeners[t]
	for i, s := range subs {
		if s.id == id {
			h.listeners[t] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// emit invokes every current listener for t with payload, over a
// stable snapshot taken under the read lock (spec.md §9).
func (h *EventHub) emit(t EventType, payload interface{}) {
	h.mu.RLock()
	subs := h.listeners[t]
	snapshot := make([]subscription, len(subs))
	copy(snapshot, subs)
	h.mu.RUnlock()

	for _, s := range snapshot {
		s.fn(t, payload)
	}
}

func (h *EventHub) emitResponseSent(status int, bytes int64) {
	h.emit(EventResponseSent, ResponseSentPayload{Status: status, Bytes: bytes})
}

func (h *EventHub) emitRequestHeadParsed(method, target string) {
	h.emit(EventRequestHeadParsed, RequestHeadParsedPayload{Method: method, Target: target})
}
