// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package mediaplayer implements the per-block runtime state and control
// surface for the media-player block (spec §4.9): playlist navigation,
// playback control, position/duration queries, and the stale-timer guard
// that keeps position events from outliving a flow restart.
package mediaplayer

import (
	"net/url"
	"path/filepath"
	"strings"
)

// NormalizeURI passes file://, http://, and https:// URIs through
// unchanged; anything else is treated as a filesystem path and converted
// to an absolute file:// URI, resolving via the parent directory when the
// file itself does not yet exist (matching the canonicalize-with-fallback
// behavior of the original player).
func NormalizeURI(raw string) string {
	if strings.HasPrefix(raw, "file://") ||
		strings.HasPrefix(raw, "http://") ||
		strings.HasPrefix(raw, "https://") {
		return raw
	}

	abs, err := filepath.Abs(raw)
	if err != nil {
		return "file://" + raw
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return "file://" + filepath.ToSlash(resolved)
	}

	parent := filepath.Dir(abs)
	if resolvedParent, err := filepath.EvalSymlinks(parent); err == nil {
		abs = filepath.Join(resolvedParent, filepath.Base(abs))
	}
	return "file://" + filepath.ToSlash(abs)
}

// ParseFileURI extracts the filesystem path from a file:// URI, or returns
// the input unchanged if it is not one.
func ParseFileURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}
	return u.Path
}
