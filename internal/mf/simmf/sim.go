// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package simmf is a deterministic, in-memory implementation of
// internal/mf. It models the property specs of the handful of element
// types exercised by Strom's own tests and examples (videotestsrc,
// fakesink, x264enc, tee, queue, identity, uridecodebin, ...) the same
// way the native framework reports them: defaults come from a freshly
// constructed element, enums are nicknames, unknown property names are
// rejected rather than silently accepted.
package simmf

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eyevinn/strom/internal/mf"
)

// typeSpec is the registered shape of one element factory type.
type typeSpec struct {
	name  string
	props map[string]mf.PropertySpec
}

var registry = map[string]*typeSpec{}
var registryMu sync.RWMutex

// Register adds or replaces the property spec for an element type. Callers
// normally use the built-in registrations below; Register exists so
// builtin blocks and tests can extend the simulated framework with
// element types it does not ship.
func Register(typeName string, props []mf.PropertySpec) {
	registryMu.Lock()
	defer registryMu.Unlock()
	m := make(map[string]mf.PropertySpec, len(props))
	for _, p := range props {
		m[p.Name] = p
	}
	registry[typeName] = &typeSpec{name: typeName, props: m}
}

func lookup(typeName string) (*typeSpec, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[typeName]
	return s, ok
}

func patternEnum() []string {
	return []string{
		"smpte", "snow", "black", "white", "red", "green", "blue",
		"checkers-1", "checkers-2", "checkers-4", "checkers-8",
		"circular", "blink", "smpte75", "zone-plate", "gamut",
		"chroma-zone-plate", "solid-color", "ball", "smpte100",
		"bar", "pinwheel", "spokes", "gradient", "colors",
	}
}

func speedPresetEnum() []string {
	return []string{"none", "ultrafast", "superfast", "veryfast", "faster",
		"fast", "medium", "slow", "slower", "veryslow", "placebo"}
}

func init() {
	Register("videotestsrc", []mf.PropertySpec{
		{Name: "pattern", Writable: true, Kind: mf.KindEnum, EnumValues: patternEnum(), Default: "smpte"},
		{Name: "is-live", Writable: true, Kind: mf.KindBool, Default: false},
		{Name: "num-buffers", Writable: true, Kind: mf.KindInt, Default: int64(-1)},
	})
	Register("audiotestsrc", []mf.PropertySpec{
		{Name: "wave", Writable: true, Kind: mf.KindEnum,
			EnumValues: []string{"sine", "square", "saw", "triangle", "silence", "white-noise", "pink-noise", "sine-table", "ticks", "gaussian-noise", "red-noise", "blue-noise", "violet-noise"},
			Default:    "sine"},
		{Name: "is-live", Writable: true, Kind: mf.KindBool, Default: false},
	})
	Register("fakesink", []mf.PropertySpec{
		{Name: "sync", Writable: true, Kind: mf.KindBool, Default: true},
		{Name: "dump", Writable: true, Kind: mf.KindBool, Default: false},
	})
	Register("x264enc", []mf.PropertySpec{
		{Name: "bitrate", Writable: true, Kind: mf.KindUInt, Default: uint64(2048)},
		{Name: "speed-preset", Writable: true, Kind: mf.KindEnum, EnumValues: speedPresetEnum(), Default: "medium"},
	})
	Register("videoconvert", nil)
	Register("audioconvert", nil)
	Register("audioresample", nil)
	Register("videoscale", nil)
	Register("identity", []mf.PropertySpec{
		{Name: "sync", Writable: true, Kind: mf.KindBool, Default: false},
	})
	Register("tee", []mf.PropertySpec{
		{Name: "allow-not-linked", Writable: true, Kind: mf.KindBool, Default: false},
	})
	Register("funnel", nil)
	Register("queue", []mf.PropertySpec{
		{Name: "max-size-buffers", Writable: true, Kind: mf.KindUInt, Default: uint64(200)},
		{Name: "max-size-bytes", Writable: true, Kind: mf.KindUInt, Default: uint64(10485760)},
		{Name: "max-size-time", Writable: true, Kind: mf.KindUInt, Default: uint64(1000000000)},
	})
	Register("capsfilter", []mf.PropertySpec{
		{Name: "caps", Writable: true, Kind: mf.KindString, Default: ""},
	})
	Register("volume", []mf.PropertySpec{
		{Name: "volume", Writable: true, Kind: mf.KindFloat, Default: 1.0},
		{Name: "mute", Writable: true, Kind: mf.KindBool, Default: false},
	})
	Register("urisourcebin", []mf.PropertySpec{
		{Name: "uri", Writable: true, Kind: mf.KindString, Default: ""},
		{Name: "parse-streams", Writable: true, Kind: mf.KindBool, Default: false},
	})
	Register("uridecodebin", []mf.PropertySpec{
		{Name: "uri", Writable: true, Kind: mf.KindString, Default: ""},
	})
	Register("parsebin", nil)
	Register("level", []mf.PropertySpec{
		{Name: "interval", Writable: true, Kind: mf.KindUInt, Default: uint64(100000000)},
	})
}

// simCaps is the minimal Caps implementation simmf pads report.
type simCaps struct{ kind string }

func (c simCaps) MediaKind() string { return c.kind }

// Element is the in-memory element implementation.
type Element struct {
	id       string
	typeName string
	spec     *typeSpec
	mu       sync.RWMutex
	values   map[string]mf.Value
	pads     map[string]*Pad
	onAdded  []mf.PadAddedFunc
	position uint64
	duration uint64
}

// Pad is the in-memory pad implementation.
type Pad struct {
	name string
	el   *Element
	mu   sync.Mutex
	peer *Pad
	caps *simCaps
}

func (p *Pad) Name() string    { return p.name }
func (p *Pad) Element() mf.Element { return p.el }

func (p *Pad) Link(sink mf.Pad) error {
	sp, ok := sink.(*Pad)
	if !ok {
		return fmt.Errorf("simmf: cannot link to foreign pad type")
	}
	p.mu.Lock()
	p.peer = sp
	p.mu.Unlock()
	sp.mu.Lock()
	sp.peer = p
	sp.mu.Unlock()
	return nil
}

func (p *Pad) Peer() (mf.Pad, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.peer == nil {
		return nil, false
	}
	return p.peer, true
}

func (p *Pad) CurrentCaps() (mf.Caps, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.caps == nil {
		return nil, false
	}
	return *p.caps, true
}

// SetCaps is a test/simulation hook: it assigns caps to the pad. It does
// not fire OnPadAdded callbacks; Element.EmitPadAdded sets caps and fires
// them, mimicking a dynamic pad appearing after negotiation.
func (p *Pad) SetCaps(mediaKind string) {
	p.mu.Lock()
	p.caps = &simCaps{kind: mediaKind}
	p.mu.Unlock()
}

func (e *Element) ID() string       { return e.id }
func (e *Element) TypeName() string { return e.typeName }

func (e *Element) PropertySpecs() []mf.PropertySpec {
	out := make([]mf.PropertySpec, 0, len(e.spec.props))
	for _, p := range e.spec.props {
		out = append(out, p)
	}
	return out
}

func (e *Element) SetProperty(name string, v mf.Value) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.spec.props[name]; !ok {
		return fmt.Errorf("simmf: element type %q has no property %q", e.typeName, name)
	}
	e.values[name] = v
	return nil
}

func (e *Element) Property(name string) (mf.Value, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if v, ok := e.values[name]; ok {
		return v, true
	}
	if spec, ok := e.spec.props[name]; ok {
		return spec.Default, true
	}
	return nil, false
}

func (e *Element) StaticPad(name string) (mf.Pad, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.pads[name]; ok {
		return p, true
	}
	p := &Pad{name: name, el: e}
	e.pads[name] = p
	return p, true
}

func (e *Element) OnPadAdded(fn mf.PadAddedFunc) {
	e.mu.Lock()
	e.onAdded = append(e.onAdded, fn)
	e.mu.Unlock()
}

// EmitPadAdded is a simulation hook used by tests and by the decode-mode
// media player builder's own test doubles to simulate uridecodebin
// exposing a dynamic pad.
func (e *Element) EmitPadAdded(padName, mediaKind string) {
	p, _ := e.StaticPad(padName)
	sp := p.(*Pad)
	sp.SetCaps(mediaKind)
	e.mu.RLock()
	cbs := append([]mf.PadAddedFunc(nil), e.onAdded...)
	e.mu.RUnlock()
	for _, cb := range cbs {
		cb(sp)
	}
}

func (e *Element) SeekSimple(flags mf.SeekFlags, positionNS uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.position = positionNS
	return nil
}

func (e *Element) QueryPosition() (uint64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.position, true
}

func (e *Element) QueryDuration() (uint64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.duration == 0 {
		return 0, false
	}
	return e.duration, true
}

// SetDuration is a simulation hook for media player tests.
func (e *Element) SetDuration(ns uint64) {
	e.mu.Lock()
	e.duration = ns
	e.mu.Unlock()
}

// AdvancePosition is a simulation hook advancing the simulated playhead.
func (e *Element) AdvancePosition(deltaNS uint64) {
	e.mu.Lock()
	e.position += deltaNS
	e.mu.Unlock()
}

// clock is a wall-clock Clock implementation.
type clock struct{ base time.Time }

func (c clock) Time() time.Time { return c.base.Add(time.Since(c.base)) }

// Pipeline is the in-memory pipeline implementation.
type Pipeline struct {
	mu        sync.Mutex
	elements  []mf.Element
	state     mf.PipelineState
	bus       *simBus
	clk       clock
	baseTime  time.Time
	startNone bool
}

type simBus struct {
	ch chan mf.BusMessage
}

func (b *simBus) Messages() <-chan mf.BusMessage { return b.ch }

// Emit pushes a message onto the bus; used by block builders' bus handlers
// and by tests simulating framework events. Non-blocking: a full bus drops
// the message rather than stalling the publisher, mirroring the fact that
// the real framework's watcher thread never blocks on a slow consumer.
func (b *simBus) Emit(msg mf.BusMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	select {
	case b.ch <- msg:
	default:
	}
}

func (p *Pipeline) AddElement(e mf.Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements = append(p.elements, e)
	return nil
}

func (p *Pipeline) SetState(ctx context.Context, s mf.PipelineState) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	p.mu.Lock()
	old := p.state
	p.state = s
	bus := p.bus
	p.mu.Unlock()
	bus.Emit(mf.BusMessage{Kind: mf.MsgStateChanged, OldState: stateName(old), NewState: stateName(s)})
	return nil
}

func stateName(s mf.PipelineState) string {
	switch s {
	case mf.StateReady:
		return "ready"
	case mf.StatePaused:
		return "paused"
	case mf.StatePlaying:
		return "playing"
	default:
		return "null"
	}
}

func (p *Pipeline) State() mf.PipelineState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) Bus() mf.Bus { return p.bus }

// Emit pushes msg onto this pipeline's bus, for tests simulating framework
// events (QoS, latency, meter, PTP snapshots) without a real binding.
func (p *Pipeline) Emit(msg mf.BusMessage) { p.bus.Emit(msg) }

func (p *Pipeline) Clock() (mf.Clock, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clk, true
}

func (p *Pipeline) SetBaseTime(t time.Time) {
	p.mu.Lock()
	p.baseTime = t
	p.mu.Unlock()
}

func (p *Pipeline) SetStartTimeNone() {
	p.mu.Lock()
	p.startNone = true
	p.mu.Unlock()
}

func (p *Pipeline) QueryPosition() (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.elements {
		if pos, ok := e.QueryPosition(); ok {
			return pos, true
		}
	}
	return 0, false
}

func (p *Pipeline) QueryDuration() (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.elements {
		if d, ok := e.QueryDuration(); ok {
			return d, true
		}
	}
	return 0, false
}

func (p *Pipeline) QueryLatencyNS() (int64, bool) {
	return 0, true
}

func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements = nil
	return nil
}

// Factory implements mf.Factory in memory.
type Factory struct {
	mu   sync.Mutex
	seen map[string]int
}

// NewFactory builds a fresh simulated element factory.
func NewFactory() *Factory {
	return &Factory{seen: make(map[string]int)}
}

func (f *Factory) Make(id, typeName string) (mf.Element, error) {
	spec, ok := lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("simmf: unknown element factory %q", typeName)
	}
	return &Element{
		id:       id,
		typeName: typeName,
		spec:     spec,
		values:   make(map[string]mf.Value),
		pads:     make(map[string]*Pad),
	}, nil
}

func (f *Factory) NewPipeline() mf.Pipeline {
	return &Pipeline{
		bus: &simBus{ch: make(chan mf.BusMessage, 256)},
		clk: clock{base: time.Now()},
	}
}
