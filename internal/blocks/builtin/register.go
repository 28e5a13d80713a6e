// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package builtin

import (
	"github.com/eyevinn/strom/internal/blocks"
	"github.com/eyevinn/strom/internal/mediaplayer"
)

// Register installs every built-in block definition and builder into reg,
// wiring the media-player builder to players so its runtime state is
// reachable from the control surface.
func Register(reg *blocks.Registry, players *mediaplayer.Registry) {
	reg.Register(MediaPlayerDefinition(), &MediaPlayerBuilder{Registry: players})
}
