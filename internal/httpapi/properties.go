// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eyevinn/strom/internal/element"
	"github.com/eyevinn/strom/internal/flowerr"
)

// propertyRequest is the body for both element and pad property writes
// (spec §6): `{name, value}` where value is a PropertyValue tagged
// variant.
type propertyRequest struct {
	Name  string                 `json:"name"`
	Value element.PropertyValue  `json:"value"`
}

func (s *Server) handleSetElementProperty(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseFlowID(w, r)
	if !ok {
		return
	}
	elementID := element.ID(chi.URLParam(r, "elementID"))

	var req propertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, flowerr.NewValidation("invalid request body: "+err.Error()))
		return
	}
	if req.Name == "" {
		writeError(w, r, flowerr.NewValidation("name is required"))
		return
	}

	if err := s.engine.UpdateElementProperty(r.Context(), id, elementID, req.Name, req.Value); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSetPadProperty(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseFlowID(w, r)
	if !ok {
		return
	}
	elementID := element.ID(chi.URLParam(r, "elementID"))
	pad := chi.URLParam(r, "pad")

	var req propertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, flowerr.NewValidation("invalid request body: "+err.Error()))
		return
	}
	if req.Name == "" {
		writeError(w, r, flowerr.NewValidation("name is required"))
		return
	}

	if err := s.engine.UpdatePadProperty(r.Context(), id, elementID, pad, req.Name, req.Value); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
