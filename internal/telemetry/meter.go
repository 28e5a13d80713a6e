// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"github.com/eyevinn/strom/internal/events"
	"github.com/eyevinn/strom/internal/mf"
)

// handleMeter forwards an audio level meter message's per-channel
// rms/peak/decay triples 1:1 (spec §4.10 "Meter"); no smoothing applies,
// since the meter element itself already integrates/decays its readings.
func (m *Manager) handleMeter(flowID, source string, fields mf.MeterFields) {
	meterSamplesTotal.WithLabelValues(flowID, source).Inc()

	m.broadcaster.Publish(events.New(events.KindMeterData, map[string]any{
		"flow_id":    flowID,
		"element_id": source,
		"rms":        fields.RMS,
		"peak":       fields.Peak,
		"decay":      fields.Decay,
	}))
}
