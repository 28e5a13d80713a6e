// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package builtin

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/eyevinn/strom/internal/blocks"
	"github.com/eyevinn/strom/internal/element"
	"github.com/eyevinn/strom/internal/events"
	"github.com/eyevinn/strom/internal/mediaplayer"
	"github.com/eyevinn/strom/internal/mf"
	"github.com/eyevinn/strom/internal/mf/simmf"
)

func buildTestMediaPlayer(t *testing.T, playlist []string, loop bool) (*blocks.BuildResult, *mediaplayer.Registry, *events.Broadcaster, mf.Pipeline) {
	t.Helper()
	factory := simmf.NewFactory()
	pipeline := factory.NewPipeline()
	players := mediaplayer.NewRegistry()
	broadcaster := events.NewBroadcaster()

	raw, err := json.Marshal(playlist)
	if err != nil {
		t.Fatalf("marshal playlist: %v", err)
	}
	props := map[string]element.PropertyValue{
		"decode":                   element.Bool(true),
		"loop_playlist":            element.Bool(loop),
		"playlist":                 element.String(string(raw)),
		"position_update_interval": element.Int(5),
		"_flow_id":                 element.String("flow1"),
	}

	builder := &MediaPlayerBuilder{Registry: players}
	result, err := builder.Build("blk1", props, blocks.BuildContext{
		Factory:     factory,
		FlowID:      "flow1",
		Pipeline:    pipeline,
		Broadcaster: broadcaster,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, mel := range result.MFElements {
		if err := pipeline.AddElement(mel); err != nil {
			t.Fatalf("add element: %v", err)
		}
	}
	return result, players, broadcaster, pipeline
}

func TestPlayerBusHandlerEOSAdvancesPlaylist(t *testing.T) {
	result, players, _, _ := buildTestMediaPlayer(t, []string{"a.mp4", "b.mp4"}, false)

	state, ok := players.Get(mediaplayer.Key{FlowID: "flow1", BlockID: "blk1"})
	if !ok {
		t.Fatal("expected media player state registered")
	}

	result.BusHandler(context.Background(), mf.BusMessage{Kind: mf.MsgEOS})

	if got := state.CurrentIndex(); got != 1 {
		t.Errorf("expected EOS to advance to index 1, got %d", got)
	}
}

func TestPlayerBusHandlerEOSAtEndBroadcastsStopped(t *testing.T) {
	result, _, broadcaster, _ := buildTestMediaPlayer(t, []string{"a.mp4"}, false)

	sub := broadcaster.Subscribe()
	defer broadcaster.Unsubscribe(sub)

	result.BusHandler(context.Background(), mf.BusMessage{Kind: mf.MsgEOS})

	select {
	case ev := <-sub.C():
		if ev.Kind != events.KindMediaPlayerState {
			t.Fatalf("expected MediaPlayerStateChanged event, got %s", ev.Kind)
		}
		if ev.Payload["state"] != "stopped" {
			t.Errorf("expected stopped state payload, got %+v", ev.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stopped state event")
	}
}

func TestPlayerBusHandlerStartsPositionTimer(t *testing.T) {
	result, _, broadcaster, _ := buildTestMediaPlayer(t, []string{"a.mp4"}, false)

	sub := broadcaster.Subscribe()
	defer broadcaster.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result.BusHandler(ctx, mf.BusMessage{Kind: mf.MsgInfo})

	select {
	case ev := <-sub.C():
		if ev.Kind != events.KindMediaPlayerPosition {
			t.Fatalf("expected MediaPlayerPosition event, got %s", ev.Kind)
		}
		if ev.Payload["flow_id"] != "flow1" || ev.Payload["block_id"] != "blk1" {
			t.Errorf("unexpected position payload %+v", ev.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a position tick")
	}
}
