// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eyevinn/strom/internal/flowerr"
	"github.com/eyevinn/strom/internal/mediaplayer"
)

// playerStateResponse is the JSON shape returned for the current state of
// one media-player block instance.
type playerStateResponse struct {
	State      string `json:"state"`
	Index      int    `json:"index"`
	PositionNS uint64 `json:"position_ns,omitempty"`
	DurationNS uint64 `json:"duration_ns,omitempty"`
}

func playerStateOf(s *mediaplayer.State) playerStateResponse {
	pos, _ := s.Position()
	dur, _ := s.Duration()
	return playerStateResponse{
		State:      s.StateString(),
		Index:      s.CurrentIndex(),
		PositionNS: pos,
		DurationNS: dur,
	}
}

// lookupPlayer resolves the media-player instance for the (flowID, blockID)
// pair named in the URL, writing a 404 problem response if none is
// currently registered (i.e. the block is not part of a running flow).
func (s *Server) lookupPlayer(w http.ResponseWriter, r *http.Request) (*mediaplayer.State, bool) {
	flowID, ok := s.parseFlowID(w, r)
	if !ok {
		return nil, false
	}
	blockID := chi.URLParam(r, "blockID")

	state, ok := s.players.Get(mediaplayer.Key{FlowID: flowID.String(), BlockID: blockID})
	if !ok {
		writeError(w, r, flowerr.NewNotFound("media player", blockID))
		return nil, false
	}
	return state, true
}

func (s *Server) handlePlayerState(w http.ResponseWriter, r *http.Request) {
	state, ok := s.lookupPlayer(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, playerStateOf(state))
}

func (s *Server) handlePlayerPlay(w http.ResponseWriter, r *http.Request) {
	state, ok := s.lookupPlayer(w, r)
	if !ok {
		return
	}
	if err := state.Play(r.Context()); err != nil {
		writeError(w, r, flowerr.NewValidation(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, playerStateOf(state))
}

func (s *Server) handlePlayerPause(w http.ResponseWriter, r *http.Request) {
	state, ok := s.lookupPlayer(w, r)
	if !ok {
		return
	}
	if err := state.Pause(r.Context()); err != nil {
		writeError(w, r, flowerr.NewValidation(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, playerStateOf(state))
}

func (s *Server) handlePlayerNext(w http.ResponseWriter, r *http.Request) {
	state, ok := s.lookupPlayer(w, r)
	if !ok {
		return
	}
	if err := state.Next(r.Context()); err != nil {
		writeError(w, r, flowerr.NewValidation(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, playerStateOf(state))
}

func (s *Server) handlePlayerPrevious(w http.ResponseWriter, r *http.Request) {
	state, ok := s.lookupPlayer(w, r)
	if !ok {
		return
	}
	if err := state.Previous(r.Context()); err != nil {
		writeError(w, r, flowerr.NewValidation(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, playerStateOf(state))
}

type playerGotoRequest struct {
	Index int `json:"index"`
}

func (s *Server) handlePlayerGoto(w http.ResponseWriter, r *http.Request) {
	state, ok := s.lookupPlayer(w, r)
	if !ok {
		return
	}
	var req playerGotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, flowerr.NewValidation("invalid request body: "+err.Error()))
		return
	}
	if err := state.Goto(r.Context(), req.Index); err != nil {
		writeError(w, r, flowerr.NewValidation(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, playerStateOf(state))
}

type playerSeekRequest struct {
	PositionNS uint64 `json:"position_ns"`
}

func (s *Server) handlePlayerSeek(w http.ResponseWriter, r *http.Request) {
	state, ok := s.lookupPlayer(w, r)
	if !ok {
		return
	}
	var req playerSeekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, flowerr.NewValidation("invalid request body: "+err.Error()))
		return
	}
	if err := state.Seek(r.Context(), req.PositionNS); err != nil {
		writeError(w, r, flowerr.NewValidation(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, playerStateOf(state))
}
