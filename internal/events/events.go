// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package events is the single fan-out point for engine and discovery
// events (spec §4.7): one sender, many receivers, each with its own
// bounded mailbox. A slow subscriber only ever loses its own oldest
// events; it can never slow down the publisher or other subscribers.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Kind tags a StromEvent's variant.
type Kind string

const (
	KindFlowCreated           Kind = "FlowCreated"
	KindFlowUpdated           Kind = "FlowUpdated"
	KindFlowDeleted           Kind = "FlowDeleted"
	KindFlowStarted           Kind = "FlowStarted"
	KindFlowStopped           Kind = "FlowStopped"
	KindPipelineError         Kind = "PipelineError"
	KindPipelineWarning       Kind = "PipelineWarning"
	KindPipelineInfo          Kind = "PipelineInfo"
	KindMeterData             Kind = "MeterData"
	KindLatencyData           Kind = "LatencyData"
	KindMediaPlayerPosition   Kind = "MediaPlayerPosition"
	KindMediaPlayerState      Kind = "MediaPlayerStateChanged"
	KindQoSStats              Kind = "QoSStats"
	KindPtpStats              Kind = "PtpStats"
	KindStreamDiscovered      Kind = "StreamDiscovered"
	KindStreamUpdated         Kind = "StreamUpdated"
	KindStreamRemoved         Kind = "StreamRemoved"
	KindSystemStats           Kind = "SystemStats"
	KindThreadStats           Kind = "ThreadStats"
	KindWebRtcStats           Kind = "WebRtcStats"
)

// Event is a single tagged StromEvent. Payload holds the variant-specific
// fields; which keys are present is determined by Kind and by the
// publishing call site, matching the wire shape a JSON-serialized
// WebSocket frame carries.
type Event struct {
	Kind      Kind           `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// New builds an Event, stamping the monotonic wall-clock timestamp every
// event carries.
func New(kind Kind, payload map[string]any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}

const defaultMailboxSize = 128

// Subscription is a single subscriber's bounded mailbox.
type Subscription struct {
	ch      chan Event
	dropped atomic.Uint64
}

// C returns the channel to range over for delivered events.
func (s *Subscription) C() <-chan Event { return s.ch }

// Dropped reports how many events this subscriber has lost to overflow.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Broadcaster fans out events published by the flow engine and discovery
// service to any number of subscribers (HTTP/WS clients, internal
// listeners). Publish never blocks: a full mailbox drops its own oldest
// event to make room, so one stalled subscriber never backpressures the
// publisher or any other subscriber.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewBroadcaster builds an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber with a bounded mailbox. Call
// Unsubscribe when the caller is done to release the mailbox.
func (b *Broadcaster) Subscribe() *Subscription {
	sub := &Subscription{ch: make(chan Event, defaultMailboxSize)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes sub and closes its mailbox.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	_, ok := b.subs[sub]
	delete(b.subs, sub)
	b.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

// Publish delivers ev to every current subscriber. A subscriber whose
// mailbox is full has its oldest pending event dropped to make room; the
// drop counter records how many events that subscriber has lost.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		deliver(s, ev)
	}
}

func deliver(s *Subscription, ev Event) {
	select {
	case s.ch <- ev:
		return
	default:
	}
	// Mailbox full: drop the oldest queued event and retry once. Under
	// concurrent publishes this can race another goroutine's drain, in
	// which case the retry's default case below simply increments the
	// counter again rather than blocking.
	select {
	case <-s.ch:
		s.dropped.Add(1)
	default:
	}
	select {
	case s.ch <- ev:
	default:
		s.dropped.Add(1)
	}
}

// SubscriberCount reports the number of currently registered subscribers,
// for diagnostics.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// TotalDropped sums the drop counters of every currently registered
// subscriber, for the broadcaster-drops metric. A subscriber that has
// since unsubscribed takes its drop count with it.
func (b *Broadcaster) TotalDropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var total uint64
	for s := range b.subs {
		total += s.Dropped()
	}
	return total
}
