package webx

import (
	"sync"
	"testing"
)

func TestEventHubSubscribeEmit(t *testing.T) {
	h := NewEventHub()
	var got ResponseSentPayload
	h.Subscribe(EventResponseSent, func(t EventType, payload interface{}) {
		got = payload.(ResponseSentPayload)
	})
	h.emitResponseSent(200, 42)
	if got.Status != 200 || got.Bytes != 42 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestEventHubUnsubscribeStopsDelivery(t *testing.T) {
	h := NewEventHub()
	var calls int
	id := h.Subscribe(EventRequestHeadParsed, func(EventType, interface{}) { calls++ })
	h.emitRequestHeadParsed("GET", "/")
	h.Unsubscribe(EventRequestHeadParsed, id)
	h.emitRequestHeadParsed("GET", "/")
	if calls != 1 {
		t.Fatalf("expected exactly 1 call before unsubscribe, got %d", calls)
	}
}

func TestEventHubMultipleListenersAllInvoked(t *testing.T) {
	h := NewEventHub()
	var mu sync.Mutex
	var calls int
	for i := 0; i < 3; i++ {
		h.Subscribe(EventResponseSent, func(EventType, interface{}) {
			mu.Lock()
			calls++
			mu.Unlock()
		})
	}
	h.emitResponseSent(204, 0)
	if calls != 3 {
		t.Fatalf("expected all 3 listeners invoked, got %d", calls)
	}
}

func TestEventHubEmitWithNoListenersIsANoop(t *testing.T) {
	h := NewEventHub()
	h.emitResponseSent(200, 1) // must not panic
}
