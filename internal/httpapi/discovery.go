// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eyevinn/strom/internal/discovery"
	"github.com/eyevinn/strom/internal/flowerr"
)

// handleListDiscoveredStreams implements GET /api/discovery/streams
// (spec §6). Returns an empty list, not an error, when discovery is
// disabled — the endpoint describes "what's known", and nothing is known
// if the service never ran.
func (s *Server) handleListDiscoveredStreams(w http.ResponseWriter, r *http.Request) {
	if s.discovery == nil {
		writeJSON(w, http.StatusOK, []discovery.DiscoveredStream{})
		return
	}
	writeJSON(w, http.StatusOK, s.discovery.ListDiscovered())
}

// handleStreamSDP implements GET /api/discovery/streams/:id/sdp, returning
// the stored SDP for a known peer stream as text/plain (spec §6).
func (s *Server) handleStreamSDP(w http.ResponseWriter, r *http.Request) {
	if s.discovery == nil {
		writeError(w, r, flowerr.NewNotFound("discovered stream", chi.URLParam(r, "streamID")))
		return
	}
	id := chi.URLParam(r, "streamID")
	sdp, err := s.discovery.SDPFor(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(sdp))
}
