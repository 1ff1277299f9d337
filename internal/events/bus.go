// Package events provides a publish/subscribe event bus for operational
// observability. Events flow from components (agent loop, Slack bridge)
// to subscribers (debug log sink, future metrics collector). The bus is
// nil-safe: calling Publish on a nil *Bus is a no-op, so components do
// not need guard checks.
package events

import (
	"sync"
	"time"
)

// Source constants identify which component published an event.
const (
	// SourceAgent identifies events from the conversation loop.
	SourceAgent = "agent"
	// SourceSlack identifies events from the Slack bridge.
	SourceSlack = "slack"
)

// Kind constants describe the type of event within a source.
const (
	// KindRequestStart signals the beginning of an agent request.
	// Data: request_id, user, turns.
	KindRequestStart = "request_start"
	// KindRound signals one completed exchange with the completion
	// endpoint. Data: request_id, round, tool_calls, tokens_in, tokens_out.
	KindRound = "round"
	// KindToolCall signals the start of a tool dispatch.
	// Data: request_id, tool, call_id.
	KindToolCall = "tool_call"
	// KindToolDone signals completion of a tool dispatch.
	// Data: request_id, tool, call_id, duration_ms, result_len.
	KindToolDone = "tool_done"
	// KindSideChannel signals a non-text, non-call output item from the
	// endpoint (e.g., web search activity). Data: request_id, item_type.
	KindSideChannel = "side_channel"
	// KindRequestComplete signals the end of an agent request.
	// Data: request_id, rounds, total_tokens_in, total_tokens_out, elapsed_ms.
	KindRequestComplete = "request_complete"

	// KindMessageReceived signals an inbound Slack message or mention.
	// Data: sender, channel, thread_ts, message_len.
	KindMessageReceived = "message_received"
	// KindReplySent signals an outbound Slack reply.
	// Data: sender, channel, thread_ts, reply_len.
	KindReplySent = "reply_sent"
)

// Event represents a single operational event published by a component.
type Event struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"ts"`
	// Source identifies the component that published the event.
	Source string `json:"source"`
	// Kind describes the type of event within the source.
	Kind string `json:"kind"`
	// Data holds event-specific key/value pairs.
	Data map[string]any `json:"data,omitempty"`
}

// Bus is a non-blocking broadcast event bus. Subscribers receive events
// on buffered channels; slow subscribers miss events rather than
// blocking publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	// recvToSend maps the receive-only channel returned by Subscribe
	// back to the bidirectional channel stored in subs. This allows
	// Unsubscribe to accept <-chan Event (the caller's view) without
	// an illegal type conversion.
	recvToSend map[<-chan Event]chan Event
}

// New creates a new event bus ready for use.
func New() *Bus {
	return &Bus{
		subs:       make(map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]chan Event),
	}
}

// Publish sends an event to all subscribers. Non-blocking: if a
// subscriber's channel is full, the event is dropped for that
// subscriber. Safe to call on a nil receiver (no-op).
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Subscriber is full — drop the event rather than block.
		}
	}
}

// Subscribe returns a channel that receives published events. The
// caller must eventually call Unsubscribe to avoid resource leaks.
// bufSize controls the channel buffer.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	b.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes the channel. Safe to
// call with a channel that is already unsubscribed (no-op).
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs, sendCh)
	delete(b.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
