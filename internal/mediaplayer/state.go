// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package mediaplayer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/eyevinn/strom/internal/mf"
)

// weakElement and weakPipeline model the framework's weak-reference
// discipline (spec §9 "cyclic/weak references"): the registry owns only
// the player state, never the framework objects, so a dereference must be
// fallible. Go has no language-level weak pointers; this package holds the
// live mf.Element/mf.Pipeline directly but never assumes liveness beyond a
// single owning flow's lifetime and always guards dereferences behind
// Upgrade-style checks tied to the flow's own teardown, matching the
// contract the original weak references enforce.
type weakElement struct {
	mu sync.RWMutex
	el mf.Element
}

func (w *weakElement) set(el mf.Element) { w.mu.Lock(); w.el = el; w.mu.Unlock() }
func (w *weakElement) upgrade() (mf.Element, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.el, w.el != nil
}

type weakPipeline struct {
	mu sync.RWMutex
	p  mf.Pipeline
}

func (w *weakPipeline) set(p mf.Pipeline) { w.mu.Lock(); w.p = p; w.mu.Unlock() }
func (w *weakPipeline) upgrade() (mf.Pipeline, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.p, w.p != nil
}

func (w *weakPipeline) clear() { w.mu.Lock(); w.p = nil; w.mu.Unlock() }

// Key identifies a media-player instance within the registry.
type Key struct {
	FlowID  string
	BlockID string
}

// State is the per-block runtime state for one media-player block
// instance (spec §4.9).
type State struct {
	InstanceID uuid.UUID

	source weakElement
	pipe   weakPipeline

	mu       sync.RWMutex
	playlist []string

	currentIndex atomic.Int64
	isPaused     atomic.Bool
	loopPlaylist atomic.Bool
	videoLinked  atomic.Bool
	audioLinked  atomic.Bool

	BlockID string
	FlowID  string
	Decode  bool
}

// New builds player state bound to sourceElement, with the given initial
// playlist and loop flag.
func New(blockID, flowID string, sourceElement mf.Element, playlist []string, loopPlaylist, decode bool) *State {
	s := &State{
		InstanceID: uuid.New(),
		BlockID:    blockID,
		FlowID:     flowID,
		Decode:     decode,
		playlist:   append([]string(nil), playlist...),
	}
	s.source.set(sourceElement)
	s.loopPlaylist.Store(loopPlaylist)
	return s
}

// SetPipeline records the pipeline reference; the media-player builders
// call it at build time with the flow's pipeline (spec §4.9).
func (s *State) SetPipeline(p mf.Pipeline) { s.pipe.set(p) }

// ClearPipeline drops the pipeline reference, e.g. on flow stop.
func (s *State) ClearPipeline() { s.pipe.clear() }

func (s *State) pipeline() (mf.Pipeline, bool) { return s.pipe.upgrade() }

// PlaylistLen returns the current playlist length.
func (s *State) PlaylistLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.playlist)
}

// CurrentFile returns the file at the current index, or "" if the
// playlist is empty or the index is out of range.
func (s *State) CurrentFile() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := int(s.currentIndex.Load())
	if idx < 0 || idx >= len(s.playlist) {
		return "", false
	}
	return s.playlist[idx], true
}

// SetPlaylist replaces the playlist and resets the current index to 0.
func (s *State) SetPlaylist(files []string) {
	s.mu.Lock()
	s.playlist = append([]string(nil), files...)
	s.mu.Unlock()
	s.currentIndex.Store(0)
}

// SetLoop toggles whether Next wraps at the end of the playlist.
func (s *State) SetLoop(loop bool) { s.loopPlaylist.Store(loop) }

// Goto jumps to a specific playlist index and loads it.
func (s *State) Goto(ctx context.Context, index int) error {
	n := s.PlaylistLen()
	if index < 0 || index >= n {
		return fmt.Errorf("mediaplayer: index %d out of range for playlist of length %d", index, n)
	}
	s.currentIndex.Store(int64(index))
	return s.loadCurrentFile(ctx)
}

// Next advances to the next playlist entry, wrapping iff loop is enabled;
// otherwise, at the last entry, it returns an "already at last file" error.
func (s *State) Next(ctx context.Context) error {
	n := s.PlaylistLen()
	if n == 0 {
		return fmt.Errorf("mediaplayer: playlist is empty")
	}
	cur := int(s.currentIndex.Load())
	next := cur + 1
	if next >= n {
		if !s.loopPlaylist.Load() {
			return fmt.Errorf("mediaplayer: already at last file")
		}
		next = 0
	}
	s.currentIndex.Store(int64(next))
	return s.loadCurrentFile(ctx)
}

// Previous moves to the preceding playlist entry, wrapping iff loop is
// enabled; otherwise returns an error at the first entry.
func (s *State) Previous(ctx context.Context) error {
	n := s.PlaylistLen()
	if n == 0 {
		return fmt.Errorf("mediaplayer: playlist is empty")
	}
	cur := int(s.currentIndex.Load())
	var prev int
	if cur == 0 {
		if !s.loopPlaylist.Load() {
			return fmt.Errorf("mediaplayer: already at first file")
		}
		prev = n - 1
	} else {
		prev = cur - 1
	}
	s.currentIndex.Store(int64(prev))
	return s.loadCurrentFile(ctx)
}

// loadCurrentFile sets the pipeline to Ready (flushing the old stream),
// writes the new URI on the source element, resets the dynamic-pad
// linked flags, and returns to Playing.
func (s *State) loadCurrentFile(ctx context.Context) error {
	file, ok := s.CurrentFile()
	if !ok {
		return fmt.Errorf("mediaplayer: no file to load")
	}
	source, ok := s.source.upgrade()
	if !ok {
		return fmt.Errorf("mediaplayer: source element no longer exists")
	}
	pipe, ok := s.pipeline()
	if !ok {
		return fmt.Errorf("mediaplayer: pipeline no longer exists")
	}

	uri := NormalizeURI(file)

	s.videoLinked.Store(false)
	s.audioLinked.Store(false)

	if err := pipe.SetState(ctx, mf.StateReady); err != nil {
		return fmt.Errorf("mediaplayer: failed to set state to ready: %w", err)
	}
	if err := source.SetProperty("uri", uri); err != nil {
		return fmt.Errorf("mediaplayer: failed to set uri: %w", err)
	}
	if err := pipe.SetState(ctx, mf.StatePlaying); err != nil {
		return fmt.Errorf("mediaplayer: failed to set state to playing: %w", err)
	}
	s.isPaused.Store(false)
	return nil
}

// Play transitions the pipeline to Playing.
func (s *State) Play(ctx context.Context) error {
	pipe, ok := s.pipeline()
	if !ok {
		return fmt.Errorf("mediaplayer: pipeline no longer exists")
	}
	if err := pipe.SetState(ctx, mf.StatePlaying); err != nil {
		return fmt.Errorf("mediaplayer: failed to set state to playing: %w", err)
	}
	s.isPaused.Store(false)
	return nil
}

// Pause transitions the pipeline to Paused.
func (s *State) Pause(ctx context.Context) error {
	pipe, ok := s.pipeline()
	if !ok {
		return fmt.Errorf("mediaplayer: pipeline no longer exists")
	}
	if err := pipe.SetState(ctx, mf.StatePaused); err != nil {
		return fmt.Errorf("mediaplayer: failed to set state to paused: %w", err)
	}
	s.isPaused.Store(true)
	return nil
}

// Seek performs a flush+key-unit seek on the source element, then resets
// the pipeline's base time against the current clock so a live sink
// (sync=true) realigns its running time to 0 at the new position — the
// subtle invariant spec §4.9 calls out.
func (s *State) Seek(ctx context.Context, positionNS uint64) error {
	_ = ctx
	source, ok := s.source.upgrade()
	if !ok {
		return fmt.Errorf("mediaplayer: source element no longer exists")
	}
	if err := source.SeekSimple(mf.SeekFlush|mf.SeekKeyUnit, positionNS); err != nil {
		return fmt.Errorf("mediaplayer: seek failed: %w", err)
	}
	if pipe, ok := s.pipeline(); ok {
		pipe.SetStartTimeNone()
		if clk, ok := pipe.Clock(); ok {
			pipe.SetBaseTime(clk.Time())
		}
	}
	return nil
}

// Position queries playback position, preferring the source element
// (more reliable before the first buffer reaches the sink) and falling
// back to the pipeline.
func (s *State) Position() (uint64, bool) {
	if source, ok := s.source.upgrade(); ok {
		if pos, ok := source.QueryPosition(); ok {
			return pos, true
		}
	}
	if pipe, ok := s.pipeline(); ok {
		return pipe.QueryPosition()
	}
	return 0, false
}

// Duration queries playback duration, preferring the pipeline and falling
// back to the source element (useful before dynamic linking completes).
func (s *State) Duration() (uint64, bool) {
	if pipe, ok := s.pipeline(); ok {
		if d, ok := pipe.QueryDuration(); ok {
			return d, true
		}
	}
	if source, ok := s.source.upgrade(); ok {
		return source.QueryDuration()
	}
	return 0, false
}

// StateString classifies current playback as "stopped", "paused", or
// "playing" for the MediaPlayerStateChanged event's state field.
func (s *State) StateString() string {
	if s.isPaused.Load() {
		return "paused"
	}
	if s.PlaylistLen() == 0 {
		return "stopped"
	}
	return "playing"
}

// VideoLinked reports whether the decode-mode video output has been
// dynamically linked yet.
func (s *State) VideoLinked() bool { return s.videoLinked.Load() }

// AudioLinked reports whether the decode-mode audio output has been
// dynamically linked yet.
func (s *State) AudioLinked() bool { return s.audioLinked.Load() }

// MarkVideoLinked records that the video output pad has been linked.
func (s *State) MarkVideoLinked() { s.videoLinked.Store(true) }

// MarkAudioLinked records that the audio output pad has been linked.
func (s *State) MarkAudioLinked() { s.audioLinked.Store(true) }

// CurrentIndex returns the current playlist position.
func (s *State) CurrentIndex() int { return int(s.currentIndex.Load()) }

// PositionTick is the shape of a MediaPlayerPosition event payload,
// exported so callers outside this package (the media-player block
// builder, HTTP/WS handlers) can subscribe via StartPositionTimer.
type PositionTick struct {
	InstanceID uuid.UUID
	FlowID     string
	BlockID    string
	PositionNS uint64
	DurationNS uint64
	State      string
	Index      int
}

// StartPositionTimer launches a periodic position-emit loop that ticks
// every interval until ctx is done. A stale-timer guard compares the
// captured instance id against the registry's currently-registered
// instance for (flowID, blockID) on every tick and self-terminates on
// mismatch, preventing duplicate timers from surviving a flow restart
// (spec §4.9, §5, testable property "position timers do not accumulate").
func (s *State) StartPositionTimer(ctx context.Context, reg *Registry, interval time.Duration, emit func(PositionTick)) {
	instanceID := s.InstanceID
	key := Key{FlowID: s.FlowID, BlockID: s.BlockID}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				current, ok := reg.Get(key)
				if !ok || current.InstanceID != instanceID {
					return
				}
				pos, _ := s.Position()
				dur, _ := s.Duration()
				emit(PositionTick{
					InstanceID: instanceID,
					FlowID:     s.FlowID,
					BlockID:    s.BlockID,
					PositionNS: pos,
					DurationNS: dur,
					State:      s.StateString(),
					Index:      s.CurrentIndex(),
				})
			}
		}
	}()
}
