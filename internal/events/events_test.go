// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package events

import "testing"

func TestBroadcasterDeliversToAllSubscribers(t *testing.T) {
	b := NewBroadcaster()
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	defer b.Unsubscribe(s1)
	defer b.Unsubscribe(s2)

	b.Publish(New(KindFlowStarted, map[string]any{"flow_id": "abc"}))

	for _, s := range []*Subscription{s1, s2} {
		select {
		case ev := <-s.C():
			if ev.Kind != KindFlowStarted {
				t.Errorf("expected FlowStarted, got %s", ev.Kind)
			}
		default:
			t.Error("expected event to be delivered")
		}
	}
}

func TestBroadcasterDropsOldestOnFullMailbox(t *testing.T) {
	b := NewBroadcaster()
	s := b.Subscribe()
	defer b.Unsubscribe(s)

	for i := 0; i < defaultMailboxSize+10; i++ {
		b.Publish(New(KindMeterData, nil))
	}

	if s.Dropped() == 0 {
		t.Error("expected some events to be dropped under sustained overflow")
	}
	if len(s.C()) != defaultMailboxSize {
		t.Errorf("expected mailbox to stay at capacity %d, got %d", defaultMailboxSize, len(s.C()))
	}
}

func TestTotalDroppedSumsAcrossSubscribers(t *testing.T) {
	b := NewBroadcaster()
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	defer b.Unsubscribe(s1)
	defer b.Unsubscribe(s2)

	for i := 0; i < defaultMailboxSize+5; i++ {
		b.Publish(New(KindMeterData, nil))
	}

	if b.TotalDropped() == 0 {
		t.Error("expected a nonzero total across both subscribers")
	}
	if b.TotalDropped() != s1.Dropped()+s2.Dropped() {
		t.Errorf("expected TotalDropped to equal the sum of per-subscriber counts")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	s := b.Subscribe()
	b.Unsubscribe(s)

	_, ok := <-s.C()
	if ok {
		t.Error("expected channel to be closed after Unsubscribe")
	}
	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", b.SubscriberCount())
	}
}
