// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/eyevinn/strom/internal/events"
)

func newTestService(t *testing.T) (*Service, *events.Subscription) {
	t.Helper()
	b := events.NewBroadcaster()
	svc := New(Config{StreamTTL: 100 * time.Millisecond}, b)
	return svc, b.Subscribe()
}

func waitForEvent(t *testing.T, sub *events.Subscription, kind events.Kind) events.Event {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-sub.C():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %s", kind)
		}
	}
}

func TestHandleSAPPacketUpsertsAndDeletes(t *testing.T) {
	svc, sub := newTestService(t)

	a := AnnouncedStream{
		Name:              "Console Output 1",
		ConnectionAddress: "239.1.1.5",
		Port:              5004,
		Encoding:          "L24",
		SampleRate:        48000,
		Channels:          2,
	}
	sdpBytes, err := buildSDP(a, "10.0.0.1")
	if err != nil {
		t.Fatalf("buildSDP: %v", err)
	}

	origin := net.ParseIP("10.0.0.1")
	pkt := sapPacket{MsgIDHash: 0x1234, Origin: origin, Payload: sdpBytes}
	src := &net.UDPAddr{IP: origin}

	svc.handleSAPPacket(pkt, src)
	waitForEvent(t, sub, events.KindStreamDiscovered)

	discovered := svc.ListDiscovered()
	if len(discovered) != 1 {
		t.Fatalf("expected 1 discovered stream, got %d", len(discovered))
	}
	if discovered[0].Name != "Console Output 1" {
		t.Errorf("unexpected name %q", discovered[0].Name)
	}

	// Re-announcing the same session updates rather than duplicates.
	svc.handleSAPPacket(pkt, src)
	waitForEvent(t, sub, events.KindStreamUpdated)
	if len(svc.ListDiscovered()) != 1 {
		t.Fatalf("expected still 1 discovered stream after update, got %d", len(svc.ListDiscovered()))
	}

	delPkt := sapPacket{Deletion: true, MsgIDHash: 0x1234, Origin: origin}
	svc.handleSAPPacket(delPkt, src)
	waitForEvent(t, sub, events.KindStreamRemoved)
	if len(svc.ListDiscovered()) != 0 {
		t.Errorf("expected 0 discovered streams after deletion, got %d", len(svc.ListDiscovered()))
	}
}

func TestExpireStaleRemovesOldEntries(t *testing.T) {
	svc, sub := newTestService(t)
	svc.discovered["stale"] = &DiscoveredStream{ID: "stale", LastSeen: time.Now().Add(-time.Hour)}
	svc.discovered["fresh"] = &DiscoveredStream{ID: "fresh", LastSeen: time.Now()}

	svc.expireStale()
	waitForEvent(t, sub, events.KindStreamRemoved)

	remaining := svc.ListDiscovered()
	if len(remaining) != 1 || remaining[0].ID != "fresh" {
		t.Errorf("expected only 'fresh' to remain, got %+v", remaining)
	}
}

func TestAnnounceDueReannouncesExpiredStreams(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.Announce(AnnouncedStream{
		StreamKey:         "out-1",
		ConnectionAddress: "239.2.2.2",
		Port:              5004,
	}); err != nil {
		t.Fatalf("Announce: %v", err)
	}

	svc.mu.Lock()
	svc.announced["out-1"].lastAnnounced = time.Now().Add(-time.Hour)
	svc.mu.Unlock()

	svc.announceDue()

	svc.mu.RLock()
	last := svc.announced["out-1"].lastAnnounced
	svc.mu.RUnlock()
	if time.Since(last) > time.Second {
		t.Errorf("expected lastAnnounced to be refreshed, got %s ago", time.Since(last))
	}
}

func TestAnnounceThenUnannounceRemovesEntry(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.Announce(AnnouncedStream{StreamKey: "out-2", ConnectionAddress: "239.3.3.3", Port: 5004}); err != nil {
		t.Fatalf("Announce: %v", err)
	}
	svc.mu.RLock()
	_, ok := svc.announced["out-2"]
	svc.mu.RUnlock()
	if !ok {
		t.Fatal("expected out-2 to be announced")
	}

	svc.Unannounce("out-2")
	svc.mu.RLock()
	_, ok = svc.announced["out-2"]
	svc.mu.RUnlock()
	if ok {
		t.Error("expected out-2 to be removed after Unannounce")
	}
}

func TestListAnnouncedReturnsSnapshot(t *testing.T) {
	svc, _ := newTestService(t)
	if len(svc.ListAnnounced()) != 0 {
		t.Fatalf("expected no announced streams initially")
	}

	if err := svc.Announce(AnnouncedStream{StreamKey: "out-3", ConnectionAddress: "239.4.4.4", Port: 5004}); err != nil {
		t.Fatalf("Announce: %v", err)
	}

	announced := svc.ListAnnounced()
	if len(announced) != 1 || announced[0].StreamKey != "out-3" {
		t.Fatalf("expected 1 announced stream out-3, got %+v", announced)
	}

	svc.Unannounce("out-3")
	if len(svc.ListAnnounced()) != 0 {
		t.Errorf("expected 0 announced streams after Unannounce")
	}
}

func TestSDPForUnknownStreamReturnsError(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.SDPFor("does-not-exist"); err == nil {
		t.Error("expected an error for an unknown stream id")
	}
}
