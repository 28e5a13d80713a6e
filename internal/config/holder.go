// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"github.com/eyevinn/strom/internal/log"
)

// Holder holds the current configuration behind an atomic pointer and
// optionally watches the backing file for edits, reloading and
// revalidating on change (spec's config ambient stack: fsnotify-backed
// hot reload without a restart).
type Holder struct {
	reloadMu sync.Mutex
	current  atomic.Pointer[AppConfig]
	loader   *Loader

	configPath string
	configDir  string
	configFile string
	watcher    *fsnotify.Watcher

	listenersMu sync.RWMutex
	listeners   []chan<- AppConfig
}

// NewHolder builds a Holder seeded with an already-loaded configuration.
func NewHolder(initial AppConfig, loader *Loader, configPath string) *Holder {
	h := &Holder{loader: loader, configPath: configPath}
	h.current.Store(&initial)
	return h
}

// Get returns the current configuration (thread-safe read).
func (h *Holder) Get() AppConfig {
	if cur := h.current.Load(); cur != nil {
		return *cur
	}
	return AppConfig{}
}

// Reload re-runs the loader and, if the result validates, atomically
// swaps it in. A failed reload keeps the previous configuration live —
// either the whole new config is valid and applied, or nothing changes.
func (h *Holder) Reload() error {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	next, err := h.loader.Load()
	if err != nil {
		log.L().Error().Err(err).Msg("config: reload failed, keeping previous configuration")
		return fmt.Errorf("reload config: %w", err)
	}

	h.current.Store(&next)
	h.notifyListeners(next)
	log.L().Info().Msg("config: reloaded successfully")
	return nil
}

// RegisterListener registers a channel to receive a copy of the
// configuration after every successful reload. Sends are non-blocking;
// a full channel drops the notification rather than stalling Reload.
func (h *Holder) RegisterListener(ch chan<- AppConfig) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

func (h *Holder) notifyListeners(cfg AppConfig) {
	h.listenersMu.RLock()
	defer h.listenersMu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- cfg:
		default:
			log.L().Warn().Msg("config: skipped notifying listener (channel full)")
		}
	}
}

// StartWatcher watches the config file's directory for writes, debouncing
// rapid edits before triggering Reload. A no-op if configPath is empty
// (environment/flag-only configuration has nothing to watch).
func (h *Holder) StartWatcher(ctx context.Context) error {
	if h.configPath == "" {
		log.L().Info().Msg("config: file watcher disabled (no config file)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	h.watcher = watcher
	h.configDir = filepath.Dir(h.configPath)
	h.configFile = filepath.Base(h.configPath)

	// Watch the directory, not the file directly, so atomic replace
	// writes (temp file + rename, as Persist below performs) are seen.
	if err := watcher.Add(h.configDir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	go h.watchLoop(ctx)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context) {
	const debounce = 500 * time.Millisecond
	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			_ = h.watcher.Close()
			return
		case ev, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != h.configFile {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				if err := h.Reload(); err != nil {
					log.L().Error().Err(err).Msg("config: automatic reload failed")
				}
			})
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			log.L().Error().Err(err).Msg("config: watcher error")
		}
	}
}

// Stop closes the file watcher, if one is running.
func (h *Holder) Stop() {
	if h.watcher != nil {
		_ = h.watcher.Close()
	}
}

// Persist atomically writes fc to path: a temp file in the same
// directory, fsynced, then renamed into place, so a crash mid-write never
// leaves a torn config file for the next Load (or the watcher's Reload)
// to trip over.
func Persist(path string, fc *FileConfig) error {
	data, err := yaml.Marshal(fc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	t, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending config file: %w", err)
	}
	defer func() { _ = t.Cleanup() }()

	if _, err := t.Write(data); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("commit config: %w", err)
	}
	return nil
}
