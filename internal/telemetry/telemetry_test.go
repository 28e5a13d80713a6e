// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"testing"
	"time"

	"github.com/eyevinn/strom/internal/events"
	"github.com/eyevinn/strom/internal/mf"
)

func newTestManager(t *testing.T) (*Manager, *events.Subscription) {
	t.Helper()
	b := events.NewBroadcaster()
	return NewManager(b), b.Subscribe()
}

func TestQoSSuppressedDuringGracePeriod(t *testing.T) {
	m, sub := newTestManager(t)
	m.FlowStarted("flow-1", time.Now())

	m.Handle("flow-1", mf.BusMessage{Kind: mf.MsgQoS, Source: "enc", QoS: mf.QoSFields{Proportion: 0.5}})

	select {
	case ev := <-sub.C():
		t.Fatalf("expected QoS event to be suppressed during grace period, got %v", ev.Kind)
	default:
	}
}

func TestQoSPublishedAfterGracePeriodWithRollingStats(t *testing.T) {
	m, sub := newTestManager(t)
	// Start the grace period far enough in the past that it's already elapsed.
	m.FlowStarted("flow-2", time.Now().Add(-time.Hour))

	m.Handle("flow-2", mf.BusMessage{Kind: mf.MsgQoS, Source: "enc", QoS: mf.QoSFields{Proportion: 1.0}})
	m.Handle("flow-2", mf.BusMessage{Kind: mf.MsgQoS, Source: "enc", QoS: mf.QoSFields{Proportion: 0.5}})

	var last events.Event
	for i := 0; i < 2; i++ {
		select {
		case ev := <-sub.C():
			last = ev
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for QoS event")
		}
	}
	if last.Kind != events.KindQoSStats {
		t.Fatalf("expected QoSStats, got %s", last.Kind)
	}
	avg, ok := last.Payload["avg_proportion"].(float64)
	if !ok {
		t.Fatalf("expected avg_proportion in payload, got %v", last.Payload)
	}
	if avg != 0.75 {
		t.Errorf("expected avg proportion 0.75 over [1.0, 0.5], got %v", avg)
	}
	if last.Payload["health"] != string(HealthCritical) {
		t.Errorf("expected health=critical at avg 0.75, got %v", last.Payload["health"])
	}
}

func TestClassifyQoSThresholds(t *testing.T) {
	cases := []struct {
		proportion float64
		want       Health
	}{
		{1.0, HealthOK},
		{0.96, HealthOK},
		{0.95, HealthOK},
		{0.94, HealthWarning},
		{0.81, HealthWarning},
		{0.8, HealthWarning},
		{0.79, HealthCritical},
		{0.0, HealthCritical},
	}
	for _, c := range cases {
		if got := classifyQoS(c.proportion); got != c.want {
			t.Errorf("classifyQoS(%v) = %v, want %v", c.proportion, got, c.want)
		}
	}
}

func TestFlowStoppedClearsState(t *testing.T) {
	m, _ := newTestManager(t)
	m.FlowStarted("flow-3", time.Now().Add(-time.Hour))
	m.Handle("flow-3", mf.BusMessage{Kind: mf.MsgQoS, Source: "enc", QoS: mf.QoSFields{Proportion: 1.0}})
	m.Handle("flow-3", mf.BusMessage{Kind: mf.MsgPTP, PTP: mf.PTPFields{Synced: true}})

	m.FlowStopped("flow-3")

	m.mu.Lock()
	_, hasGrace := m.graceUntil["flow-3"]
	_, hasPTP := m.ptp["flow-3"]
	qosLeft := 0
	for k := range m.qos {
		if k.flowID == "flow-3" {
			qosLeft++
		}
	}
	m.mu.Unlock()
	if hasGrace || hasPTP || qosLeft != 0 {
		t.Errorf("expected all flow-3 state cleared, grace=%v ptp=%v qosLeft=%d", hasGrace, hasPTP, qosLeft)
	}
}

func TestHandlePTPDerivesClockSyncStatus(t *testing.T) {
	m, sub := newTestManager(t)
	m.Handle("flow-4", mf.BusMessage{Kind: mf.MsgPTP, PTP: mf.PTPFields{Domain: 0, Synced: true, GrandmasterID: "gm-1"}})

	ev := <-sub.C()
	if ev.Kind != events.KindPtpStats {
		t.Fatalf("expected PtpStats, got %s", ev.Kind)
	}
	if ev.Payload["clock_sync_status"] != "synced" {
		t.Errorf("expected clock_sync_status=synced, got %v", ev.Payload["clock_sync_status"])
	}

	fields, ok := m.LastPTP("flow-4")
	if !ok || !fields.Synced {
		t.Errorf("expected LastPTP to report synced, got %+v ok=%v", fields, ok)
	}
}

func TestHandleLatencyForwardsFields(t *testing.T) {
	m, sub := newTestManager(t)
	m.Handle("flow-5", mf.BusMessage{Kind: mf.MsgLatency, Source: "dec", Latency: mf.LatencyFields{LastNS: 1000, AverageNS: 900}})

	ev := <-sub.C()
	if ev.Kind != events.KindLatencyData {
		t.Fatalf("expected LatencyData, got %s", ev.Kind)
	}
	if ev.Payload["last_ns"] != int64(1000) {
		t.Errorf("expected last_ns=1000, got %v", ev.Payload["last_ns"])
	}
}

func TestHandleMeterForwardsOneToOne(t *testing.T) {
	m, sub := newTestManager(t)
	fields := mf.MeterFields{RMS: []float64{-20, -18}, Peak: []float64{-5, -4}, Decay: []float64{-12, -11}}
	m.Handle("flow-6", mf.BusMessage{Kind: mf.MsgMeter, Source: "level", Meter: fields})

	ev := <-sub.C()
	if ev.Kind != events.KindMeterData {
		t.Fatalf("expected MeterData, got %s", ev.Kind)
	}
	rms, ok := ev.Payload["rms"].([]float64)
	if !ok || len(rms) != 2 || rms[0] != -20 {
		t.Errorf("expected rms forwarded 1:1, got %v", ev.Payload["rms"])
	}
}

func TestRollingWindowAvgMinMaxOverCapacity(t *testing.T) {
	var w rollingWindow
	for i := 0; i < windowSize+10; i++ {
		w.add(1.0)
	}
	avg, min, max := w.avgMinMax()
	if avg != 1.0 || min != 1.0 || max != 1.0 {
		t.Errorf("expected avg/min/max all 1.0 after saturating the window, got %v/%v/%v", avg, min, max)
	}
}
