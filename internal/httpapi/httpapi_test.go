// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpapi

import (
	"path/filepath"
	"testing"

	"github.com/eyevinn/strom/internal/blocks"
	"github.com/eyevinn/strom/internal/blocks/builtin"
	"github.com/eyevinn/strom/internal/events"
	"github.com/eyevinn/strom/internal/flowengine"
	"github.com/eyevinn/strom/internal/flowstore"
	"github.com/eyevinn/strom/internal/mediaplayer"
	"github.com/eyevinn/strom/internal/mf/simmf"
)

// newTestServer builds a Server wired to an in-memory sqlite flow store, a
// simulated media framework factory, and no discovery service, matching
// the dependency shape internal/flowengine's own tests use.
func newTestServer(t *testing.T) (*Server, *flowstore.Store, *events.Broadcaster) {
	t.Helper()
	store, err := flowstore.Open(filepath.Join(t.TempDir(), "flows.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	factory := simmf.NewFactory()
	players := mediaplayer.NewRegistry()
	registry := blocks.NewRegistry()
	builtin.Register(registry, players)
	broadcaster := events.NewBroadcaster()
	engine := flowengine.New(store, registry, factory, broadcaster, players)

	s := NewServer(store, engine, registry, factory, nil, broadcaster, players, Config{})
	return s, store, broadcaster
}
