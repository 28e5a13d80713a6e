// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package mf is the seam between Strom and "the underlying media
// framework itself" — out of scope to re-specify (spec §1 Non-goals),
// but in scope to name the interface every other component programs
// against: element factories, elements, pads, a running pipeline, and its
// message bus. Production builds wire a real binding behind these
// interfaces; internal/mf/simmf provides a deterministic in-memory
// implementation used by tests and by any deployment without the native
// framework installed.
package mf

import (
	"context"
	"time"
)

// Kind mirrors element.Kind for the property specs the framework reports,
// plus Enum — a dynamic type the model never fabricates a Go kind for
// (spec §9 "never guess"); enum values are always read/written via nickname.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindUInt
	KindFloat
	KindString
	KindEnum
	KindUnknown
)

// PropertySpec describes one property on an element factory's property
// set, as read from a freshly-constructed element for default-suppression
// comparisons (spec §4.3).
type PropertySpec struct {
	Name       string
	Writable   bool
	Kind       Kind
	EnumValues []string // canonical nicknames, only when Kind == KindEnum
	Default    Value
}

// Value is the framework's dynamic value universe: a plain Go value whose
// concrete type corresponds to Kind (bool, int64, uint64, float64, or
// string — the string holding an enum nickname when Kind == KindEnum).
type Value any

// Caps is an opaque capability/media-type descriptor; MediaKind extracts
// what little the engine needs to know (audio vs. video) without
// depending on the framework's full caps grammar.
type Caps interface {
	MediaKind() string // "video", "audio", or "" if unknown
}

// Pad is a typed port on an element.
type Pad interface {
	Name() string
	Element() Element
	Link(sink Pad) error
	Peer() (Pad, bool)
	CurrentCaps() (Caps, bool)
}

// SeekFlags selects seek behavior; values mirror the framework's
// FLUSH|KEY_UNIT combination used by the media player (spec §4.9).
type SeekFlags int

const (
	SeekFlush SeekFlags = 1 << iota
	SeekKeyUnit
)

// PadAddedFunc is invoked when an element exposes a pad dynamically, after
// caps negotiation.
type PadAddedFunc func(pad Pad)

// Element is a node in a pipeline.
type Element interface {
	ID() string
	TypeName() string
	PropertySpecs() []PropertySpec
	SetProperty(name string, v Value) error
	Property(name string) (Value, bool)
	StaticPad(name string) (Pad, bool)
	OnPadAdded(fn PadAddedFunc)
	SeekSimple(flags SeekFlags, positionNS uint64) error
	QueryPosition() (uint64, bool)
	QueryDuration() (uint64, bool)
}

// BusMessageKind classifies a message observed on the pipeline bus.
type BusMessageKind int

const (
	MsgError BusMessageKind = iota
	MsgWarning
	MsgInfo
	MsgStateChanged
	MsgEOS
	MsgQoS
	MsgLatency
	MsgElement
	MsgPTP
	MsgMeter
)

// BusMessage is a normalized framework event; Strom domain events are
// built from these (spec §4.6 step 7, §4.10).
type BusMessage struct {
	Kind      BusMessageKind
	Source    string
	Text      string
	OldState  string
	NewState  string
	QoS       QoSFields
	Latency   LatencyFields
	PTP       PTPFields
	Meter     MeterFields
	Timestamp time.Time
}

// QoSFields carries a QoS message's payload.
type QoSFields struct {
	Proportion float64
	DroppedNS  int64
	JitterNS   int64
}

// LatencyFields carries a latency message's payload.
type LatencyFields struct {
	LastNS    int64
	AverageNS int64
}

// MeterFields carries an audio level meter message's per-channel payload.
type MeterFields struct {
	RMS   []float64
	Peak  []float64
	Decay []float64
}

// PTPFields carries a PTP snapshot message's payload.
type PTPFields struct {
	Domain          int
	Synced          bool
	MeanPathDelayNS int64
	ClockOffsetNS   int64
	RSquared        float64
	ClockRate       int64
	GrandmasterID   string
	MasterID        string
}

// Bus delivers normalized framework messages to a single reader.
type Bus interface {
	Messages() <-chan BusMessage
}

// PipelineState mirrors the framework's state machine.
type PipelineState int

const (
	StateNull PipelineState = iota
	StateReady
	StatePaused
	StatePlaying
)

// Clock abstracts the framework's selectable clock (system/PTP/NTP).
type Clock interface {
	Time() time.Time
}

// Pipeline is a running (or about-to-run) bin of elements.
type Pipeline interface {
	AddElement(e Element) error
	SetState(ctx context.Context, s PipelineState) error
	State() PipelineState
	Bus() Bus
	Clock() (Clock, bool)
	SetBaseTime(t time.Time)
	SetStartTimeNone()
	QueryPosition() (uint64, bool)
	QueryDuration() (uint64, bool)
	QueryLatencyNS() (int64, bool)
	Close() error
}

// Factory creates elements and pipelines. A production binding wraps the
// native framework's element factory and bin/pipeline constructors;
// internal/mf/simmf implements it entirely in memory.
type Factory interface {
	Make(id, typeName string) (Element, error)
	NewPipeline() Pipeline
}
