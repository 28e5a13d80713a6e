// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package telemetry normalizes the QoS, latency, meter, and PTP bus
// messages a running flow's pipeline emits into StromEvents, applying the
// rolling-window and grace-period smoothing the raw framework messages
// don't carry on their own (spec §4.10). The flow engine owns build/run;
// this package owns what happens to the numbers once a flow is playing.
package telemetry

import (
	"sync"
	"time"

	"github.com/eyevinn/strom/internal/events"
	"github.com/eyevinn/strom/internal/mf"
)

// Health classifies a QoS proportion.
type Health string

const (
	HealthOK       Health = "ok"
	HealthWarning  Health = "warning"
	HealthCritical Health = "critical"
)

// classifyQoS implements the OK / Warning (<0.95) / Critical (<0.8)
// thresholds against a smoothed proportion value.
func classifyQoS(proportion float64) Health {
	switch {
	case proportion < 0.8:
		return HealthCritical
	case proportion < 0.95:
		return HealthWarning
	default:
		return HealthOK
	}
}

const qosGracePeriod = 3 * time.Second

type flowSource struct {
	flowID string
	source string
}

// Manager owns the per-flow, per-source aggregation state for every
// running flow's telemetry stream and publishes normalized events to a
// broadcaster.
type Manager struct {
	broadcaster *events.Broadcaster

	mu         sync.Mutex
	graceUntil map[string]time.Time
	qos        map[flowSource]*rollingWindow
	latency    map[flowSource]*rollingWindow
	ptp        map[string]mf.PTPFields
}

// NewManager builds a Manager publishing through broadcaster.
func NewManager(broadcaster *events.Broadcaster) *Manager {
	return &Manager{
		broadcaster: broadcaster,
		graceUntil:  make(map[string]time.Time),
		qos:         make(map[flowSource]*rollingWindow),
		latency:     make(map[flowSource]*rollingWindow),
		ptp:         make(map[string]mf.PTPFields),
	}
}

// FlowStarted opens a QoS grace period for flowID starting at startedAt:
// QoS events are suppressed entirely until it elapses (spec §4.10 "a
// per-flow grace period of 3s after FlowStarted suppresses QoS events
// entirely").
func (m *Manager) FlowStarted(flowID string, startedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graceUntil[flowID] = startedAt.Add(qosGracePeriod)
}

// FlowStopped discards every piece of state tracked for flowID, so a
// restarted flow starts its rolling windows and grace period fresh.
func (m *Manager) FlowStopped(flowID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.graceUntil, flowID)
	delete(m.ptp, flowID)
	for k := range m.qos {
		if k.flowID == flowID {
			delete(m.qos, k)
		}
	}
	for k := range m.latency {
		if k.flowID == flowID {
			delete(m.latency, k)
		}
	}
}

// Handle ingests one QoS/Latency/Meter/PTP bus message for flowID. Any
// other message kind is ignored; the flow engine routes those through its
// own error/warning/info handling instead.
func (m *Manager) Handle(flowID string, msg mf.BusMessage) {
	switch msg.Kind {
	case mf.MsgQoS:
		m.handleQoS(flowID, msg.Source, msg.QoS)
	case mf.MsgLatency:
		m.handleLatency(flowID, msg.Source, msg.Latency)
	case mf.MsgMeter:
		m.handleMeter(flowID, msg.Source, msg.Meter)
	case mf.MsgPTP:
		m.handlePTP(flowID, msg.PTP)
	}
}
