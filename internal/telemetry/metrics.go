// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	qosProportion = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "strom_qos_proportion",
		Help:    "QoS proportion reported by pipeline elements (1.0 = keeping up).",
		Buckets: []float64{0.5, 0.6, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 0.98, 1.0},
	}, []string{"flow_id"})

	latencyNS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "strom_element_latency_ns",
		Help: "Last reported per-element pipeline latency, in nanoseconds.",
	}, []string{"flow_id", "element_id"})

	meterSamplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strom_meter_samples_total",
		Help: "Audio level meter samples forwarded per element.",
	}, []string{"flow_id", "element_id"})

	discoveredStreamsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "strom_discovery_discovered_streams",
		Help: "Peer streams currently known to the discovery service (SAP + mDNS).",
	})

	announcedStreamsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "strom_discovery_announced_streams",
		Help: "Local output streams currently announced over SAP/mDNS.",
	})

	broadcasterDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "strom_broadcaster_drops_total",
		Help: "StromEvents dropped from subscriber mailboxes across all subscribers.",
	})
)

var lastBroadcasterDrops atomic.Uint64

// SetDiscoveredStreams reports the discovery service's current
// peer-stream count.
func SetDiscoveredStreams(n int) { discoveredStreamsGauge.Set(float64(n)) }

// SetAnnouncedStreams reports the discovery service's current
// announced-stream count.
func SetAnnouncedStreams(n int) { announcedStreamsGauge.Set(float64(n)) }

// ObserveBroadcasterDrops advances the broadcaster-drops counter to
// total, which must be the cumulative count events.Broadcaster.
// TotalDropped reports; the caller (a periodic poller) is expected to
// call this with an ever-increasing value.
func ObserveBroadcasterDrops(total uint64) {
	prev := lastBroadcasterDrops.Swap(total)
	if total > prev {
		broadcasterDropsTotal.Add(float64(total - prev))
	}
}
