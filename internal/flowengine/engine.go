// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package flowengine owns, for each flow, at most one live pipeline
// instance: building it from a stored Flow document, driving its state
// machine, live-applying property changes through the Property Bridge,
// and normalizing framework bus messages into domain events (spec §4.6).
package flowengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eyevinn/strom/internal/blocks"
	"github.com/eyevinn/strom/internal/element"
	"github.com/eyevinn/strom/internal/events"
	"github.com/eyevinn/strom/internal/flow"
	"github.com/eyevinn/strom/internal/flowerr"
	"github.com/eyevinn/strom/internal/flowstore"
	"github.com/eyevinn/strom/internal/log"
	"github.com/eyevinn/strom/internal/mediaplayer"
	"github.com/eyevinn/strom/internal/mf"
	"github.com/eyevinn/strom/internal/propertybridge"
	"github.com/eyevinn/strom/internal/telemetry"
)

// PadSnapshot lists the pads discovered on one element after preroll, for
// get_runtime_dynamic_pads (spec §4.6).
type PadSnapshot struct {
	SinkPads []string
	SrcPads  []string
}

// instance is the live state for one running flow.
type instance struct {
	pipeline  mf.Pipeline
	elements  map[element.ID]mf.Element
	cancel    context.CancelFunc
	startTime time.Time

	mu          sync.Mutex
	lastErr     error
	dynamicPads map[element.ID]*PadSnapshot
}

// Engine builds and runs flows.
type Engine struct {
	store       *flowstore.Store
	registry    *blocks.Registry
	factory     mf.Factory
	broadcaster *events.Broadcaster
	telemetry   *telemetry.Manager
	players     *mediaplayer.Registry

	mu        sync.Mutex
	instances map[flow.ID]*instance
}

// New builds an Engine driven by store, registry, and factory, publishing
// domain events onto broadcaster. players is the same media-player
// registry builtin.Register wired into the block registry; teardown uses
// it to drop a stopped flow's media-player instances so a stale *State
// left behind for a torn-down pipeline can't answer a later control
// request with mysterious errors instead of a clean 404.
func New(store *flowstore.Store, registry *blocks.Registry, factory mf.Factory, broadcaster *events.Broadcaster, players *mediaplayer.Registry) *Engine {
	return &Engine{
		store:       store,
		registry:    registry,
		factory:     factory,
		broadcaster: broadcaster,
		telemetry:   telemetry.NewManager(broadcaster),
		players:     players,
		instances:   make(map[flow.ID]*instance),
	}
}

func toMFValue(v element.PropertyValue) mf.Value {
	switch v.Kind() {
	case element.KindBool:
		b, _ := v.Bool()
		return b
	case element.KindInt:
		i, _ := v.Int()
		return i
	case element.KindUInt:
		u, _ := v.UInt()
		return u
	case element.KindFloat:
		f, _ := v.Float()
		return f
	default:
		s, _ := v.String()
		return s
	}
}

// Start builds and runs flowID's pipeline, transitioning Null -> Ready ->
// Paused -> Playing. Fails with flowerr.ErrAlreadyRunning,
// flowerr.ErrBuildFailed, or flowerr.ErrStateTransitionFailed.
func (e *Engine) Start(ctx context.Context, flowID flow.ID) error {
	e.mu.Lock()
	if _, running := e.instances[flowID]; running {
		e.mu.Unlock()
		return fmt.Errorf("flowengine: flow %s: %w", flowID, flowerr.ErrAlreadyRunning)
	}
	e.mu.Unlock()

	f, err := e.store.Get(ctx, flowID)
	if err != nil {
		return err
	}

	inst, busHandlers, err := e.build(ctx, f)
	if err != nil {
		return err
	}

	instCtx, cancel := context.WithCancel(context.Background())
	inst.cancel = cancel
	go e.pumpBus(instCtx, f.ID, inst, busHandlers)

	for _, s := range []mf.PipelineState{mf.StateReady, mf.StatePaused, mf.StatePlaying} {
		from := stateName(inst.pipeline.State())
		if err := inst.pipeline.SetState(ctx, s); err != nil {
			cancel()
			_ = inst.pipeline.Close()
			return flowerr.NewStateTransitionError(from, stateName(s), err)
		}
	}
	inst.startTime = time.Now()
	e.telemetry.FlowStarted(flowID.String(), inst.startTime)

	e.mu.Lock()
	e.instances[flowID] = inst
	e.mu.Unlock()

	f.State = flow.StatePlaying
	f.Properties.StartedAt = timePtr(inst.startTime)
	if _, err := e.store.Update(ctx, f); err != nil {
		log.L().Warn().Err(err).Str(log.FieldFlowID, flowID.String()).Msg("flowengine: failed to persist running state")
	}

	e.broadcaster.Publish(events.New(events.KindFlowStarted, map[string]any{"flow_id": flowID.String()}))
	return nil
}

// build implements the build algorithm (spec §4.6 steps 1-6): instantiate
// top-level elements and blocks, merge links, add everything to a fresh
// pipeline, and wire static links. It does not transition state.
func (e *Engine) build(ctx context.Context, f *flow.Flow) (*instance, []blocks.BusHandler, error) {
	pipeline := e.factory.NewPipeline()
	elements := make(map[element.ID]mf.Element, len(f.Elements))
	var mu sync.Mutex

	g, _ := errgroup.WithContext(ctx)
	for _, el := range f.Elements {
		el := el
		g.Go(func() error {
			mel, err := e.factory.Make(string(el.ID), el.Type)
			if err != nil {
				return flowerr.NewBuildError(string(el.ID), err)
			}
			for name, v := range el.Properties {
				if err := mel.SetProperty(name, toMFValue(v)); err != nil {
					return flowerr.NewBuildError(string(el.ID), err)
				}
			}
			mu.Lock()
			elements[el.ID] = mel
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	allLinks := append([]element.Link(nil), f.Links...)
	var busHandlers []blocks.BusHandler
	dynamicPads := make(map[element.ID]*PadSnapshot)

	for _, b := range f.Blocks {
		props := make(map[string]element.PropertyValue, len(b.Properties)+1)
		for k, v := range b.Properties {
			props[k] = v
		}
		props["_flow_id"] = element.String(f.ID.String())

		result, err := e.registry.Build(b.BlockDefinitionID, b.ID, props, blocks.BuildContext{
			Factory:     e.factory,
			FlowID:      f.ID.String(),
			Pipeline:    pipeline,
			Broadcaster: e.broadcaster,
			OnDynamicPad: func(elementID element.ID, pad mf.Pad) {
				mu.Lock()
				snap := dynamicPads[elementID]
				if snap == nil {
					snap = &PadSnapshot{}
					dynamicPads[elementID] = snap
				}
				snap.SrcPads = append(snap.SrcPads, pad.Name())
				mu.Unlock()
			},
		})
		if err != nil {
			return nil, nil, flowerr.NewBuildError(b.ID, err)
		}
		for id, mel := range result.MFElements {
			elements[id] = mel
		}
		allLinks = append(allLinks, result.InternalLinks...)
		if result.BusHandler != nil {
			busHandlers = append(busHandlers, result.BusHandler)
		}
	}

	for id, mel := range elements {
		if err := pipeline.AddElement(mel); err != nil {
			return nil, nil, flowerr.NewBuildError(string(id), err)
		}
	}

	for _, l := range allLinks {
		fromID, fromPadName := l.From.Split()
		toID, toPadName := l.To.Split()
		fromEl, ok := elements[fromID]
		if !ok {
			return nil, nil, flowerr.NewBuildError(string(fromID), fmt.Errorf("link source element not found"))
		}
		toEl, ok := elements[toID]
		if !ok {
			return nil, nil, flowerr.NewBuildError(string(toID), fmt.Errorf("link sink element not found"))
		}
		fromPad, ok := fromEl.StaticPad(fromPadName)
		if !ok {
			return nil, nil, flowerr.NewBuildError(string(fromID), fmt.Errorf("no pad %q", fromPadName))
		}
		toPad, ok := toEl.StaticPad(toPadName)
		if !ok {
			return nil, nil, flowerr.NewBuildError(string(toID), fmt.Errorf("no pad %q", toPadName))
		}
		if err := fromPad.Link(toPad); err != nil {
			return nil, nil, flowerr.NewBuildError(string(fromID), fmt.Errorf("link to %s: %w", toID, err))
		}
	}

	return &instance{
		pipeline:    pipeline,
		elements:    elements,
		dynamicPads: dynamicPads,
	}, busHandlers, nil
}

// pumpBus reads normalized bus messages for one instance until ctx is
// canceled, dispatching each to every block's handler and publishing the
// corresponding domain event.
func (e *Engine) pumpBus(ctx context.Context, flowID flow.ID, inst *instance, handlers []blocks.BusHandler) {
	ch := inst.pipeline.Bus().Messages()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			for _, h := range handlers {
				h(ctx, msg)
			}
			e.normalizeAndPublish(flowID, inst, msg)
		}
	}
}

func (e *Engine) normalizeAndPublish(flowID flow.ID, inst *instance, msg mf.BusMessage) {
	payload := map[string]any{"flow_id": flowID.String(), "source": msg.Source}
	var kind events.Kind

	switch msg.Kind {
	case mf.MsgError:
		kind = events.KindPipelineError
		payload["message"] = msg.Text
		inst.mu.Lock()
		inst.lastErr = fmt.Errorf("%s", msg.Text)
		inst.mu.Unlock()
		e.broadcaster.Publish(events.New(kind, payload))
		e.stopOnFatalError(flowID, inst)
		return
	case mf.MsgWarning:
		kind = events.KindPipelineWarning
		payload["message"] = msg.Text
	case mf.MsgInfo:
		kind = events.KindPipelineInfo
		payload["message"] = msg.Text
	case mf.MsgStateChanged:
		return
	case mf.MsgEOS:
		kind = events.KindPipelineInfo
		payload["message"] = "end of stream"
	case mf.MsgQoS, mf.MsgLatency, mf.MsgMeter, mf.MsgPTP:
		e.telemetry.Handle(flowID.String(), msg)
		return
	default:
		return
	}
	e.broadcaster.Publish(events.New(kind, payload))
}

// Stop transitions flowID's pipeline to Null and drops the instance.
func (e *Engine) Stop(ctx context.Context, flowID flow.ID) error {
	e.mu.Lock()
	inst, ok := e.instances[flowID]
	if ok {
		delete(e.instances, flowID)
	}
	e.mu.Unlock()
	if !ok {
		return flowerr.NewNotFound("running flow", flowID.String())
	}

	e.teardown(ctx, flowID, inst)
	e.broadcaster.Publish(events.New(events.KindFlowStopped, map[string]any{"flow_id": flowID.String()}))
	return nil
}

// teardown transitions inst's pipeline to Null, cancels its bus pump,
// closes the pipeline, and persists the stopped flow state. It assumes
// inst has already been removed from e.instances.
func (e *Engine) teardown(ctx context.Context, flowID flow.ID, inst *instance) {
	if err := inst.pipeline.SetState(ctx, mf.StateNull); err != nil {
		log.L().Warn().Err(err).Str(log.FieldFlowID, flowID.String()).Msg("flowengine: error transitioning to null on stop")
	}
	inst.cancel()
	_ = inst.pipeline.Close()
	e.telemetry.FlowStopped(flowID.String())

	if e.players != nil {
		for _, p := range e.players.ForFlow(flowID.String()) {
			e.players.Unregister(mediaplayer.Key{FlowID: p.FlowID, BlockID: p.BlockID}, p.InstanceID)
		}
	}

	if f, err := e.store.Get(ctx, flowID); err == nil {
		f.State = flow.StateNull
		f.Properties.StartedAt = nil
		if _, err := e.store.Update(ctx, f); err != nil {
			log.L().Warn().Err(err).Str(log.FieldFlowID, flowID.String()).Msg("flowengine: failed to persist stopped state")
		}
	}
}

// stopOnFatalError tears down flowID's pipeline through the same path
// Stop uses, triggered by a fatal MsgError bus message (spec §4.6/§7,
// error kind 7: a Fatal Pipeline Error stops the flow). inst.lastErr
// carries the cause into the log line and the KindFlowStopped event.
func (e *Engine) stopOnFatalError(flowID flow.ID, inst *instance) {
	e.mu.Lock()
	current, ok := e.instances[flowID]
	if ok && current == inst {
		delete(e.instances, flowID)
	} else {
		ok = false
	}
	e.mu.Unlock()
	if !ok {
		// Already stopped or replaced by a concurrent Stop/Start/Restart.
		return
	}

	inst.mu.Lock()
	cause := inst.lastErr
	inst.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e.teardown(ctx, flowID, inst)

	log.L().Error().Err(cause).Str(log.FieldFlowID, flowID.String()).Msg("flowengine: stopping flow after fatal pipeline error")

	payload := map[string]any{"flow_id": flowID.String()}
	if cause != nil {
		payload["error"] = cause.Error()
	}
	e.broadcaster.Publish(events.New(events.KindFlowStopped, payload))
}

// Restart stops then starts flowID, preserving the client's intent
// across the gap even if the flow was not currently running.
func (e *Engine) Restart(ctx context.Context, flowID flow.ID) error {
	_ = e.Stop(ctx, flowID)
	return e.Start(ctx, flowID)
}

// UpdateElementProperty live-applies a property write via the Property
// Bridge and persists it into the stored Flow so a later restart
// reproduces the change.
func (e *Engine) UpdateElementProperty(ctx context.Context, flowID flow.ID, elementID element.ID, name string, value element.PropertyValue) error {
	e.mu.Lock()
	inst, running := e.instances[flowID]
	e.mu.Unlock()

	if running {
		mel, ok := inst.elements[elementID]
		if !ok {
			return flowerr.NewNotFound("element", string(elementID))
		}
		if err := propertybridge.Write(mel, name, value); err != nil {
			return err
		}
		log.L().Debug().Str(log.FieldFlowID, flowID.String()).Str(log.FieldElementID, string(elementID)).Str("name", name).Msg("flowengine: applied live property write")
	}

	f, err := e.store.Get(ctx, flowID)
	if err != nil {
		return err
	}
	el, ok := f.ElementByID(elementID)
	if !ok {
		return flowerr.NewNotFound("element", string(elementID))
	}
	el.Properties[name] = value
	_, err = e.store.Update(ctx, f)
	return err
}

// UpdatePadProperty persists a pad-scoped property write under the
// element's PadProperties for replay on restart. It does not apply the
// value to a running pipeline: mf.Pad exposes no property setter, so the
// change takes effect only when the flow is next built.
func (e *Engine) UpdatePadProperty(ctx context.Context, flowID flow.ID, elementID element.ID, padName, name string, value element.PropertyValue) error {
	f, err := e.store.Get(ctx, flowID)
	if err != nil {
		return err
	}
	el, ok := f.ElementByID(elementID)
	if !ok {
		return flowerr.NewNotFound("element", string(elementID))
	}
	if el.PadProperties[padName] == nil {
		el.PadProperties[padName] = make(map[string]element.PropertyValue)
	}
	el.PadProperties[padName][name] = value
	_, err = e.store.Update(ctx, f)
	return err
}

// GetRuntimeDynamicPads snapshots the pads discovered on flowID's
// elements after preroll, for editor visualization.
func (e *Engine) GetRuntimeDynamicPads(flowID flow.ID) (map[element.ID]PadSnapshot, error) {
	e.mu.Lock()
	inst, ok := e.instances[flowID]
	e.mu.Unlock()
	if !ok {
		return nil, flowerr.NewNotFound("running flow", flowID.String())
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()
	out := make(map[element.ID]PadSnapshot, len(inst.dynamicPads))
	for id, snap := range inst.dynamicPads {
		out[id] = *snap
	}
	return out, nil
}

// GetLatency queries flowID's running pipeline latency.
func (e *Engine) GetLatency(flowID flow.ID) (int64, error) {
	e.mu.Lock()
	inst, ok := e.instances[flowID]
	e.mu.Unlock()
	if !ok {
		return 0, flowerr.NewNotFound("running flow", flowID.String())
	}
	ns, ok := inst.pipeline.QueryLatencyNS()
	if !ok {
		return 0, fmt.Errorf("flowengine: latency unavailable")
	}
	return ns, nil
}

// GetClockSyncStatus reports flowID's most recent PTP-derived clock sync
// status ("synced"/"unsynced"), if a PTP snapshot has arrived yet.
func (e *Engine) GetClockSyncStatus(flowID flow.ID) (string, bool) {
	fields, ok := e.telemetry.LastPTP(flowID.String())
	if !ok {
		return "", false
	}
	if fields.Synced {
		return "synced", true
	}
	return "unsynced", true
}

// IsRunning reports whether flowID currently has a live instance.
func (e *Engine) IsRunning(flowID flow.ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.instances[flowID]
	return ok
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

func timePtr(t time.Time) *time.Time { return &t }
