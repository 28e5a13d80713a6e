// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eyevinn/strom/internal/flow"
	"github.com/eyevinn/strom/internal/flowerr"
	"github.com/eyevinn/strom/internal/flowstore"
)

func (s *Server) handleListFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if flows == nil {
		flows = []*flow.Flow{}
	}
	writeJSON(w, http.StatusOK, flows)
}

func (s *Server) handleCreateFlow(w http.ResponseWriter, r *http.Request) {
	var f flow.Flow
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, r, flowerr.NewValidation("invalid request body: "+err.Error()))
		return
	}
	if f.Name == "" {
		writeError(w, r, flowerr.NewValidation("name is required"))
		return
	}
	created := flow.New(f.Name)
	created.Properties = f.Properties
	created.Elements = f.Elements
	created.Links = f.Links
	created.Blocks = f.Blocks

	out, err := s.store.Create(r.Context(), created)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.broadcaster.Publish(flowCreatedEvent(out))
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleGetFlow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseFlowID(w, r)
	if !ok {
		return
	}
	f, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleUpdateFlow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseFlowID(w, r)
	if !ok {
		return
	}
	existing, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var body flow.Flow
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, flowerr.NewValidation("invalid request body: "+err.Error()))
		return
	}
	existing.Name = body.Name
	existing.Properties = body.Properties
	existing.Elements = body.Elements
	existing.Links = body.Links
	existing.Blocks = body.Blocks

	out, err := s.store.Update(r.Context(), existing)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.broadcaster.Publish(flowUpdatedEvent(out))
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteFlow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseFlowID(w, r)
	if !ok {
		return
	}
	if s.engine.IsRunning(id) {
		if err := s.engine.Stop(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.broadcaster.Publish(flowDeletedEvent(id.String()))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartFlow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseFlowID(w, r)
	if !ok {
		return
	}
	if err := s.engine.Start(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleStopFlow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseFlowID(w, r)
	if !ok {
		return
	}
	if err := s.engine.Stop(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleRestartFlow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseFlowID(w, r)
	if !ok {
		return
	}
	if err := s.engine.Restart(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// parseFlowID extracts and validates the {flowID} URL parameter, writing
// a 400 problem response and returning ok=false on failure.
func (s *Server) parseFlowID(w http.ResponseWriter, r *http.Request) (flow.ID, bool) {
	raw := chi.URLParam(r, "flowID")
	id, err := flowstore.ParseID(raw)
	if err != nil {
		writeError(w, r, err)
		return flow.ID{}, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
