// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package flow holds the Flow document: the complete, named, serializable
// media pipeline specification (elements + blocks + links + properties +
// clock) that the flow store persists and the flow engine builds.
package flow

import (
	"time"

	"github.com/google/uuid"

	"github.com/eyevinn/strom/internal/element"
)

// ID uniquely identifies a flow.
type ID = uuid.UUID

// ClockType selects the media clock a running flow synchronizes against.
type ClockType int

const (
	ClockSystem ClockType = iota
	ClockPTP
	ClockNTP
)

func (c ClockType) String() string {
	switch c {
	case ClockPTP:
		return "ptp"
	case ClockNTP:
		return "ntp"
	default:
		return "system"
	}
}

// State is the pipeline lifecycle state (spec §3).
type State int

const (
	StateNull State = iota
	StateReady
	StatePaused
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	default:
		return "null"
	}
}

// PTPInfo is a point-in-time snapshot of PTP synchronization state. The
// engine does not fill FlowProperties.PTPInfo or ClockSyncStatus; the
// latest snapshot is kept by the telemetry manager and read back through
// Engine.GetClockSyncStatus.
type PTPInfo struct {
	Domain          int     `json:"domain"`
	Synced          bool    `json:"synced"`
	MeanPathDelayNS int64   `json:"mean_path_delay_ns"`
	ClockOffsetNS   int64   `json:"clock_offset_ns"`
	RSquared        float64 `json:"r_squared"`
	ClockRate       int64   `json:"clock_rate"`
	GrandmasterID   string  `json:"grandmaster_id"`
	MasterID        string  `json:"master_id"`
}

// Properties holds flow-level metadata distinct from the element graph.
type Properties struct {
	Description          string     `json:"description"`
	ClockType             ClockType  `json:"clock_type"`
	PTPDomain             *int       `json:"ptp_domain,omitempty"`
	ThreadPriority        *int       `json:"thread_priority,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	LastModified          time.Time  `json:"last_modified"`
	StartedAt             *time.Time `json:"started_at,omitempty"`
	ClockSyncStatus       string     `json:"clock_sync_status,omitempty"`
	PTPInfo               *PTPInfo   `json:"ptp_info,omitempty"`
	ThreadPriorityStatus  string     `json:"thread_priority_status,omitempty"`
}

// BlockInstance is a block node placed in a flow; its Properties hold
// block-level values resolved by the builder into element property
// writes (spec §3, §4.4).
type BlockInstance struct {
	ID                   string                            `json:"id"`
	BlockDefinitionID     string                            `json:"block_definition_id"`
	Position              element.Position                  `json:"position"`
	Properties            map[string]element.PropertyValue  `json:"properties"`
	RuntimeData           map[string]string                 `json:"runtime_data,omitempty"`
	ComputedExternalPads  map[string]element.PadRef          `json:"computed_external_pads,omitempty"`
}

// Flow is the complete serializable pipeline specification.
type Flow struct {
	ID         ID                 `json:"id"`
	Name       string             `json:"name"`
	Properties Properties         `json:"properties"`
	Elements   []*element.Element `json:"elements"`
	Links      []element.Link     `json:"links"`
	Blocks     []*BlockInstance   `json:"blocks"`
	State      State              `json:"state"`
}

// New creates an empty flow in the Null state, stamping CreatedAt/LastModified.
func New(name string) *Flow {
	now := time.Now()
	return &Flow{
		ID:   uuid.New(),
		Name: name,
		Properties: Properties{
			ClockType:    ClockSystem,
			CreatedAt:    now,
			LastModified: now,
		},
	}
}

// Touch bumps LastModified; called by every store mutation.
func (f *Flow) Touch() {
	f.Properties.LastModified = time.Now()
}

// ElementByID looks up a top-level element by id.
func (f *Flow) ElementByID(id element.ID) (*element.Element, bool) {
	for _, e := range f.Elements {
		if e.ID == id {
			return e, true
		}
	}
	return nil, false
}

// BlockByID looks up a block instance by id.
func (f *Flow) BlockByID(id string) (*BlockInstance, bool) {
	for _, b := range f.Blocks {
		if b.ID == id {
			return b, true
		}
	}
	return nil, false
}
