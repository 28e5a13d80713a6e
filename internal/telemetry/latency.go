// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"github.com/eyevinn/strom/internal/events"
	"github.com/eyevinn/strom/internal/mf"
)

func (m *Manager) handleLatency(flowID, source string, fields mf.LatencyFields) {
	key := flowSource{flowID: flowID, source: source}

	m.mu.Lock()
	w, ok := m.latency[key]
	if !ok {
		w = &rollingWindow{}
		m.latency[key] = w
	}
	w.add(float64(fields.LastNS))
	rollingAvg, _, _ := w.avgMinMax()
	m.mu.Unlock()

	latencyNS.WithLabelValues(flowID, source).Set(float64(fields.LastNS))

	m.broadcaster.Publish(events.New(events.KindLatencyData, map[string]any{
		"flow_id":        flowID,
		"element_id":     source,
		"last_ns":        fields.LastNS,
		"avg_ns":         fields.AverageNS,
		"rolling_avg_ns": int64(rollingAvg),
	}))
}
