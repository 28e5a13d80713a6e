// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestSetDiscoveredAndAnnouncedStreams(t *testing.T) {
	SetDiscoveredStreams(3)
	SetAnnouncedStreams(2)

	m := &dto.Metric{}
	if err := discoveredStreamsGauge.Write(m); err != nil {
		t.Fatalf("write: %v", err)
	}
	if m.GetGauge().GetValue() != 3 {
		t.Errorf("expected discovered streams gauge 3, got %v", m.GetGauge().GetValue())
	}

	m2 := &dto.Metric{}
	if err := announcedStreamsGauge.Write(m2); err != nil {
		t.Fatalf("write: %v", err)
	}
	if m2.GetGauge().GetValue() != 2 {
		t.Errorf("expected announced streams gauge 2, got %v", m2.GetGauge().GetValue())
	}
}

func TestObserveBroadcasterDropsIsMonotonicDelta(t *testing.T) {
	lastBroadcasterDrops.Store(0)
	before := &dto.Metric{}
	if err := broadcasterDropsTotal.Write(before); err != nil {
		t.Fatalf("write: %v", err)
	}
	start := before.GetCounter().GetValue()

	ObserveBroadcasterDrops(5)
	ObserveBroadcasterDrops(12)
	// A smaller or equal value (e.g. after a process restart reset the
	// source counter) must not decrement the monotonic Prometheus counter.
	ObserveBroadcasterDrops(3)

	after := &dto.Metric{}
	if err := broadcasterDropsTotal.Write(after); err != nil {
		t.Fatalf("write: %v", err)
	}
	if after.GetCounter().GetValue() != start+12 {
		t.Errorf("expected counter to advance by 12 total, got delta %v", after.GetCounter().GetValue()-start)
	}
}

func TestQoSProportionHistogramRecordsSamples(t *testing.T) {
	hist := qosProportion.WithLabelValues("flow-metrics-test")
	before := sampleCount(t, hist)
	hist.Observe(0.9)
	after := sampleCount(t, hist)
	if after != before+1 {
		t.Errorf("expected histogram sample count +1, got before=%d after=%d", before, after)
	}
}

func sampleCount(t *testing.T, obs prometheus.Observer) uint64 {
	t.Helper()
	h, ok := obs.(prometheus.Histogram)
	if !ok {
		t.Fatalf("observer is not a prometheus.Histogram")
	}
	m := &dto.Metric{}
	if err := h.Write(m); err != nil {
		t.Fatalf("write: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}
