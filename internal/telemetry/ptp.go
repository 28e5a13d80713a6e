// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"github.com/eyevinn/strom/internal/events"
	"github.com/eyevinn/strom/internal/mf"
)

// handlePTP records the latest PTP snapshot for flowID and publishes it
// alongside the clock_sync_status the flow's properties derive from
// (spec §4.10 "PTP": "flow's clock_sync_status derived from synced").
func (m *Manager) handlePTP(flowID string, fields mf.PTPFields) {
	m.mu.Lock()
	m.ptp[flowID] = fields
	m.mu.Unlock()

	syncStatus := "unsynced"
	if fields.Synced {
		syncStatus = "synced"
	}

	m.broadcaster.Publish(events.New(events.KindPtpStats, map[string]any{
		"flow_id":            flowID,
		"domain":             fields.Domain,
		"synced":             fields.Synced,
		"clock_sync_status":  syncStatus,
		"mean_path_delay_ns": fields.MeanPathDelayNS,
		"clock_offset_ns":    fields.ClockOffsetNS,
		"r_squared":          fields.RSquared,
		"clock_rate":         fields.ClockRate,
		"grandmaster_id":     fields.GrandmasterID,
		"master_id":          fields.MasterID,
	}))
}

// LastPTP returns the most recent PTP snapshot recorded for flowID, if
// any, for callers that need clock_sync_status without waiting on the
// next bus message (e.g. a flow's GET response).
func (m *Manager) LastPTP(flowID string) (mf.PTPFields, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fields, ok := m.ptp[flowID]
	return fields, ok
}
