// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package flowengine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/eyevinn/strom/internal/blocks"
	"github.com/eyevinn/strom/internal/element"
	"github.com/eyevinn/strom/internal/events"
	"github.com/eyevinn/strom/internal/flow"
	"github.com/eyevinn/strom/internal/flowstore"
	"github.com/eyevinn/strom/internal/mediaplayer"
	"github.com/eyevinn/strom/internal/mf"
	"github.com/eyevinn/strom/internal/mf/simmf"
)

func newTestEngine(t *testing.T) (*Engine, *flowstore.Store, *simmf.Factory) {
	t.Helper()
	store, err := flowstore.Open(filepath.Join(t.TempDir(), "flows.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	factory := simmf.NewFactory()
	registry := blocks.NewRegistry()
	broadcaster := events.NewBroadcaster()
	players := mediaplayer.NewRegistry()
	return New(store, registry, factory, broadcaster, players), store, factory
}

func simpleFlow(t *testing.T, store *flowstore.Store) *flow.Flow {
	t.Helper()
	f := flow.New("simple")
	src := element.NewElement("src", "videotestsrc")
	src.Properties["pattern"] = element.String("ball")
	sink := element.NewElement("sink", "fakesink")
	f.Elements = []*element.Element{src, sink}
	f.Links = []element.Link{
		{From: element.NewPadRef("src", "src"), To: element.NewPadRef("sink", "sink")},
	}
	created, err := store.Create(context.Background(), f)
	if err != nil {
		t.Fatalf("create flow: %v", err)
	}
	return created
}

func TestEngineStartLinksAndPlays(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	f := simpleFlow(t, store)

	if err := eng.Start(context.Background(), f.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !eng.IsRunning(f.ID) {
		t.Fatal("expected flow to be running after start")
	}

	reloaded, err := store.Get(context.Background(), f.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reloaded.State != flow.StatePlaying {
		t.Errorf("expected persisted state playing, got %v", reloaded.State)
	}

	if err := eng.Stop(context.Background(), f.ID); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if eng.IsRunning(f.ID) {
		t.Fatal("expected flow to no longer be running after stop")
	}
}

func TestEngineStartTwiceFailsAlreadyRunning(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	f := simpleFlow(t, store)

	if err := eng.Start(context.Background(), f.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Stop(context.Background(), f.ID) })

	if err := eng.Start(context.Background(), f.ID); err == nil {
		t.Fatal("expected second start to fail")
	}
}

func TestEngineUpdateElementPropertyLiveAndPersisted(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	f := simpleFlow(t, store)

	if err := eng.Start(context.Background(), f.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Stop(context.Background(), f.ID) })

	if err := eng.UpdateElementProperty(context.Background(), f.ID, "src", "pattern", element.String("snow")); err != nil {
		t.Fatalf("update property: %v", err)
	}

	reloaded, err := store.Get(context.Background(), f.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	el, ok := reloaded.ElementByID("src")
	if !ok {
		t.Fatal("expected element src in reloaded flow")
	}
	got, ok := el.Properties["pattern"].String()
	if !ok || got != "snow" {
		t.Errorf("expected persisted pattern=snow, got %q (ok=%v)", got, ok)
	}
}

func TestEngineUpdateElementPropertyUnknownElementFails(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	f := simpleFlow(t, store)

	if err := eng.Start(context.Background(), f.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Stop(context.Background(), f.ID) })

	err := eng.UpdateElementProperty(context.Background(), f.ID, "nope", "pattern", element.String("snow"))
	if err == nil {
		t.Fatal("expected update on unknown element to fail")
	}
}

func TestEngineBuildFailsOnUnknownElementType(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	f := flow.New("bad")
	f.Elements = []*element.Element{element.NewElement("x", "not_a_real_type")}
	created, err := store.Create(context.Background(), f)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := eng.Start(context.Background(), created.ID); err == nil {
		t.Fatal("expected build failure for unknown element type")
	}
	if eng.IsRunning(created.ID) {
		t.Fatal("flow should not be marked running after a failed build")
	}
}

func TestEngineBuildFailsOnBadLink(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	f := flow.New("badlink")
	f.Elements = []*element.Element{
		element.NewElement("a", "videotestsrc"),
		element.NewElement("b", "fakesink"),
	}
	f.Links = []element.Link{
		{From: element.NewPadRef("a", "src"), To: element.NewPadRef("missing", "sink")},
	}
	created, err := store.Create(context.Background(), f)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := eng.Start(context.Background(), created.ID); err == nil {
		t.Fatal("expected build failure for link to missing element")
	}
}

// stubBlockBuilder is a minimal builder that instantiates a single
// identity element for its instance, exercising the flow engine's block
// expansion and internal-link merging path.
type stubBlockBuilder struct{}

const stubBlockDefID = "test.identity_block"

func (stubBlockBuilder) Build(instanceID string, properties map[string]element.PropertyValue, ctx blocks.BuildContext) (*blocks.BuildResult, error) {
	id := blocks.Prefix(instanceID, "identity")
	mel, err := ctx.Factory.Make(string(id), "identity")
	if err != nil {
		return nil, err
	}
	return &blocks.BuildResult{
		MFElements: map[element.ID]mf.Element{id: mel},
	}, nil
}

func TestEngineBuildsBlockInstances(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	registry := blocks.NewRegistry()
	registry.Register(blocks.Definition{ID: stubBlockDefID, Name: "Identity block"}, stubBlockBuilder{})
	eng.registry = registry

	f := flow.New("with-block")
	f.Elements = []*element.Element{element.NewElement("src", "videotestsrc")}
	f.Blocks = []*flow.BlockInstance{
		{ID: "blk1", BlockDefinitionID: stubBlockDefID, Properties: map[string]element.PropertyValue{}},
	}
	f.Links = []element.Link{
		{From: element.NewPadRef("src", "src"), To: element.NewPadRef(blocks.Prefix("blk1", "identity"), "sink")},
	}
	created, err := store.Create(context.Background(), f)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := eng.Start(context.Background(), created.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer eng.Stop(context.Background(), created.ID)

	if !eng.IsRunning(created.ID) {
		t.Fatal("expected flow with block instance to be running")
	}
}

func TestEngineGetLatencyUnknownFlow(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	if _, err := eng.GetLatency(flowIDFromString(t, "00000000-0000-0000-0000-000000000001")); err == nil {
		t.Fatal("expected error for unknown flow")
	}
}

func flowIDFromString(t *testing.T, s string) flow.ID {
	t.Helper()
	id, err := flowstore.ParseID(s)
	if err != nil {
		t.Fatalf("parse id: %v", err)
	}
	return id
}

func TestEngineFatalBusErrorStopsFlow(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	f := simpleFlow(t, store)

	sub := eng.broadcaster.Subscribe()
	defer eng.broadcaster.Unsubscribe(sub)

	if err := eng.Start(context.Background(), f.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	eng.mu.Lock()
	inst := eng.instances[f.ID]
	eng.mu.Unlock()
	pipeline, ok := inst.pipeline.(*simmf.Pipeline)
	if !ok {
		t.Fatalf("expected *simmf.Pipeline, got %T", inst.pipeline)
	}
	pipeline.Emit(mf.BusMessage{Kind: mf.MsgError, Source: "src", Text: "boom"})

	deadline := time.After(time.Second)
	sawStopped := false
	for !sawStopped {
		select {
		case ev := <-sub.C():
			if ev.Kind == events.KindFlowStopped {
				sawStopped = true
				if ev.Payload["error"] != "boom" {
					t.Errorf("expected stopped event to carry the fatal error, got %+v", ev.Payload)
				}
			}
		case <-deadline:
			t.Fatal("timed out waiting for FlowStopped after fatal bus error")
		}
	}

	if eng.IsRunning(f.ID) {
		t.Error("expected flow to no longer be running after a fatal pipeline error")
	}
}

func TestEngineWaitForBusEvent(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	f := simpleFlow(t, store)

	sub := eng.broadcaster.Subscribe()
	defer eng.broadcaster.Unsubscribe(sub)

	if err := eng.Start(context.Background(), f.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer eng.Stop(context.Background(), f.ID)

	select {
	case ev := <-sub.C():
		if ev.Kind != events.KindFlowStarted {
			t.Errorf("expected first event FlowStarted, got %s", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for FlowStarted event")
	}
}
