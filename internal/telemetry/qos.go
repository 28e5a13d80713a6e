// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"time"

	"github.com/eyevinn/strom/internal/events"
	"github.com/eyevinn/strom/internal/mf"
)

func (m *Manager) handleQoS(flowID, source string, fields mf.QoSFields) {
	m.mu.Lock()
	if until, ok := m.graceUntil[flowID]; ok && time.Now().Before(until) {
		m.mu.Unlock()
		return
	}
	key := flowSource{flowID: flowID, source: source}
	w, ok := m.qos[key]
	if !ok {
		w = &rollingWindow{}
		m.qos[key] = w
	}
	w.add(fields.Proportion)
	avg, min, max := w.avgMinMax()
	m.mu.Unlock()

	health := classifyQoS(avg)
	qosProportion.WithLabelValues(flowID).Observe(fields.Proportion)

	m.broadcaster.Publish(events.New(events.KindQoSStats, map[string]any{
		"flow_id":        flowID,
		"source":         source,
		"proportion":     fields.Proportion,
		"avg_proportion": avg,
		"min_proportion": min,
		"max_proportion": max,
		"dropped_ns":     fields.DroppedNS,
		"jitter_ns":      fields.JitterNS,
		"health":         string(health),
	}))
}
