// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package builtin holds the block builders Strom ships out of the box.
package builtin

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/eyevinn/strom/internal/blocks"
	"github.com/eyevinn/strom/internal/element"
	"github.com/eyevinn/strom/internal/events"
	"github.com/eyevinn/strom/internal/log"
	"github.com/eyevinn/strom/internal/mediaplayer"
	"github.com/eyevinn/strom/internal/mf"
)

// MediaPlayerDefinitionID is the block definition id registered for file
// playback with playlist support.
const MediaPlayerDefinitionID = "builtin.media_player"

// MediaPlayerBuilder expands a media-player block instance into either a
// decode-mode subgraph (uridecodebin, raw output) or a passthrough-mode
// subgraph (urisourcebin, encoded output), and registers its runtime
// state with a mediaplayer.Registry so the HTTP/WS control surface can
// reach it by (flow id, block id) (spec §4.9).
type MediaPlayerBuilder struct {
	Registry *mediaplayer.Registry
}

// MediaPlayerDefinition returns the static metadata for the media-player block.
func MediaPlayerDefinition() blocks.Definition {
	return blocks.Definition{
		ID:          MediaPlayerDefinitionID,
		Name:        "Media Player",
		Description: "Plays video and audio files with playlist support.",
		Category:    "Inputs",
		BuiltIn:     true,
		Exposed: []blocks.ExposedProperty{
			{
				Name:        "decode",
				Label:       "Decode",
				Description: "Decode to raw video/audio, or pass through encoded streams.",
				Type:        blocks.TypeBool,
				Default:     element.Bool(false),
				Mapping:     blocks.Mapping{ElementIDSuffix: "_block", PropertyName: "decode"},
			},
			{
				Name:        "loop_playlist",
				Label:       "Loop Playlist",
				Description: "Loop back to the first file at the end of the playlist.",
				Type:        blocks.TypeBool,
				Default:     element.Bool(true),
				Mapping:     blocks.Mapping{ElementIDSuffix: "_block", PropertyName: "loop_playlist"},
			},
			{
				Name:        "position_update_interval",
				Label:       "Position Update Interval (ms)",
				Description: "How often to broadcast position updates.",
				Type:        blocks.TypeInt,
				Default:     element.Int(200),
				Mapping:     blocks.Mapping{ElementIDSuffix: "_block", PropertyName: "position_update_interval"},
			},
		},
		Outputs: []blocks.ExternalPad{
			{Name: "video_out", MediaType: element.MediaVideo, InternalElementID: "video_out", InternalPadName: "src"},
			{Name: "audio_out", MediaType: element.MediaAudio, InternalElementID: "audio_out", InternalPadName: "src"},
		},
	}
}

func boolProp(props map[string]element.PropertyValue, name string, def bool) bool {
	if v, ok := props[name]; ok {
		if b, ok := v.Bool(); ok {
			return b
		}
	}
	return def
}

func intProp(props map[string]element.PropertyValue, name string, def int64) int64 {
	if v, ok := props[name]; ok {
		if i, ok := v.Int(); ok {
			return i
		}
	}
	return def
}

func stringProp(props map[string]element.PropertyValue, name string) (string, bool) {
	if v, ok := props[name]; ok {
		return v.String()
	}
	return "", false
}

func playlistProp(props map[string]element.PropertyValue) []string {
	raw, ok := stringProp(props, "playlist")
	if !ok || raw == "" {
		return nil
	}
	var files []string
	if err := json.Unmarshal([]byte(raw), &files); err != nil {
		return nil
	}
	return files
}

// Build implements blocks.Builder.
func (b *MediaPlayerBuilder) Build(instanceID string, properties map[string]element.PropertyValue, ctx blocks.BuildContext) (*blocks.BuildResult, error) {
	decode := boolProp(properties, "decode", false)
	loopPlaylist := boolProp(properties, "loop_playlist", true)
	playlist := playlistProp(properties)

	log.L().Info().
		Str("instance_id", instanceID).
		Bool("decode", decode).
		Msg("building media player block")

	if decode {
		return b.buildDecodeMode(instanceID, properties, ctx, loopPlaylist, playlist)
	}
	return b.buildPassthroughMode(instanceID, properties, ctx, loopPlaylist, playlist)
}

// buildDecodeMode wires uridecodebin, which decodes to raw video/audio and
// exposes its outputs dynamically, through a pair of identity elements
// that give the block stable named output pads.
func (b *MediaPlayerBuilder) buildDecodeMode(instanceID string, properties map[string]element.PropertyValue, ctx blocks.BuildContext, loopPlaylist bool, playlist []string) (*blocks.BuildResult, error) {
	sourceID := blocks.Prefix(instanceID, "uridecodebin")
	videoOutID := blocks.Prefix(instanceID, "video_out")
	audioOutID := blocks.Prefix(instanceID, "audio_out")

	source, err := ctx.Factory.Make(string(sourceID), "uridecodebin")
	if err != nil {
		return nil, err
	}
	videoOut, err := ctx.Factory.Make(string(videoOutID), "identity")
	if err != nil {
		return nil, err
	}
	audioOut, err := ctx.Factory.Make(string(audioOutID), "identity")
	if err != nil {
		return nil, err
	}

	flowID, _ := stringProp(properties, "_flow_id")
	state := mediaplayer.New(instanceID, flowID, source, playlist, loopPlaylist, true)
	state.SetPipeline(ctx.Pipeline)
	if len(playlist) > 0 {
		if err := source.SetProperty("uri", mediaplayer.NormalizeURI(playlist[0])); err != nil {
			return nil, err
		}
	}
	b.Registry.Register(state)

	source.OnPadAdded(func(pad mf.Pad) {
		caps, ok := pad.CurrentCaps()
		if !ok {
			return
		}
		switch caps.MediaKind() {
		case "video":
			if state.VideoLinked() {
				return
			}
			if sink, ok := videoOut.StaticPad("sink"); ok {
				if err := pad.Link(sink); err == nil {
					state.MarkVideoLinked()
				}
			}
		case "audio":
			if state.AudioLinked() {
				return
			}
			if sink, ok := audioOut.StaticPad("sink"); ok {
				if err := pad.Link(sink); err == nil {
					state.MarkAudioLinked()
				}
			}
		}
	})

	return &blocks.BuildResult{
		Elements: []*element.Element{
			element.NewElement(sourceID, "uridecodebin"),
			element.NewElement(videoOutID, "identity"),
			element.NewElement(audioOutID, "identity"),
		},
		MFElements: map[element.ID]mf.Element{
			sourceID:   source,
			videoOutID: videoOut,
			audioOutID: audioOut,
		},
		BusHandler: playerBusHandler(state, b.Registry, ctx.Broadcaster, intProp(properties, "position_update_interval", 200)),
	}, nil
}

// buildPassthroughMode wires urisourcebin, which demuxes and parses
// streams without decoding, so downstream blocks receive the original
// encoded elementary streams.
func (b *MediaPlayerBuilder) buildPassthroughMode(instanceID string, properties map[string]element.PropertyValue, ctx blocks.BuildContext, loopPlaylist bool, playlist []string) (*blocks.BuildResult, error) {
	sourceID := blocks.Prefix(instanceID, "urisourcebin")
	videoOutID := blocks.Prefix(instanceID, "video_out")
	audioOutID := blocks.Prefix(instanceID, "audio_out")

	source, err := ctx.Factory.Make(string(sourceID), "urisourcebin")
	if err != nil {
		return nil, err
	}
	if err := source.SetProperty("parse-streams", true); err != nil {
		return nil, err
	}
	videoOut, err := ctx.Factory.Make(string(videoOutID), "identity")
	if err != nil {
		return nil, err
	}
	audioOut, err := ctx.Factory.Make(string(audioOutID), "identity")
	if err != nil {
		return nil, err
	}

	flowID, _ := stringProp(properties, "_flow_id")
	state := mediaplayer.New(instanceID, flowID, source, playlist, loopPlaylist, false)
	state.SetPipeline(ctx.Pipeline)
	if len(playlist) > 0 {
		if err := source.SetProperty("uri", mediaplayer.NormalizeURI(playlist[0])); err != nil {
			return nil, err
		}
	}
	b.Registry.Register(state)

	source.OnPadAdded(func(pad mf.Pad) {
		caps, ok := pad.CurrentCaps()
		if !ok {
			return
		}
		switch caps.MediaKind() {
		case "video":
			if state.VideoLinked() {
				return
			}
			if sink, ok := videoOut.StaticPad("sink"); ok {
				if err := pad.Link(sink); err == nil {
					state.MarkVideoLinked()
				}
			}
		case "audio":
			if state.AudioLinked() {
				return
			}
			if sink, ok := audioOut.StaticPad("sink"); ok {
				if err := pad.Link(sink); err == nil {
					state.MarkAudioLinked()
				}
			}
		}
	})

	return &blocks.BuildResult{
		Elements: []*element.Element{
			element.NewElement(sourceID, "urisourcebin"),
			element.NewElement(videoOutID, "identity"),
			element.NewElement(audioOutID, "identity"),
		},
		MFElements: map[element.ID]mf.Element{
			sourceID:   source,
			videoOutID: videoOut,
			audioOutID: audioOut,
		},
		BusHandler: playerBusHandler(state, b.Registry, ctx.Broadcaster, intProp(properties, "position_update_interval", 200)),
	}, nil
}

// playerBusHandler builds a blocks.BusHandler that starts the
// position-update timer on its first invocation (ctx is the flow's
// lifetime context by then, so the timer tears down with the flow) and,
// on EOS, advances the playlist the way the original player's bus watch
// does: call Next and keep playing, or, at the end of a non-looping
// playlist, report a stopped state change instead of silently idling.
func playerBusHandler(state *mediaplayer.State, reg *mediaplayer.Registry, broadcaster *events.Broadcaster, intervalMS int64) blocks.BusHandler {
	var startTimer sync.Once
	return func(ctx context.Context, msg mf.BusMessage) {
		startTimer.Do(func() {
			state.StartPositionTimer(ctx, reg, time.Duration(intervalMS)*time.Millisecond, func(t mediaplayer.PositionTick) {
				broadcaster.Publish(events.New(events.KindMediaPlayerPosition, map[string]any{
					"flow_id":     t.FlowID,
					"block_id":    t.BlockID,
					"position_ns": t.PositionNS,
					"duration_ns": t.DurationNS,
					"state":       t.State,
					"index":       t.Index,
				}))
			})
		})

		switch msg.Kind {
		case mf.MsgEOS:
			if err := state.Next(ctx); err != nil {
				log.L().Info().Str(log.FieldBlockID, state.BlockID).Err(err).Msg("media player: end of playlist")
				broadcaster.Publish(events.New(events.KindMediaPlayerState, map[string]any{
					"flow_id":  state.FlowID,
					"block_id": state.BlockID,
					"state":    "stopped",
				}))
				return
			}
			log.L().Info().Str(log.FieldBlockID, state.BlockID).Msg("media player: advanced to next file")
		case mf.MsgError:
			log.L().Error().Str(log.FieldBlockID, state.BlockID).Str(log.FieldText, msg.Text).Msg("media player pipeline error")
		}
	}
}
