// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/eyevinn/strom/internal/element"
	"github.com/eyevinn/strom/internal/flowerr"
	"github.com/eyevinn/strom/internal/gstlaunch"
)

type gstLaunchParseRequest struct {
	Pipeline string `json:"pipeline"`
}

type gstLaunchParseResponse struct {
	Elements []*element.Element `json:"elements"`
	Links    []element.Link     `json:"links"`
}

type gstLaunchExportRequest struct {
	Elements []*element.Element `json:"elements"`
	Links    []element.Link     `json:"links"`
}

type gstLaunchExportResponse struct {
	Pipeline string `json:"pipeline"`
}

// handleGstLaunchParse implements POST /api/gst-launch/parse: parse a
// gst-launch-1.0 command line into the element/link graph it describes,
// laying the result out on the editor grid (spec §4.2, §6).
func (s *Server) handleGstLaunchParse(w http.ResponseWriter, r *http.Request) {
	var req gstLaunchParseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, flowerr.NewValidation("invalid request body: "+err.Error()))
		return
	}

	graph, err := gstlaunch.Parse(s.factory, req.Pipeline)
	if err != nil {
		writeError(w, r, err)
		return
	}
	gstlaunch.Layout(graph)

	writeJSON(w, http.StatusOK, gstLaunchParseResponse{Elements: graph.Elements, Links: graph.Links})
}

// handleGstLaunchExport implements POST /api/gst-launch/export: render an
// element/link graph back to canonical gst-launch-1.0 text (spec §4.2, §6).
func (s *Server) handleGstLaunchExport(w http.ResponseWriter, r *http.Request) {
	var req gstLaunchExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, flowerr.NewValidation("invalid request body: "+err.Error()))
		return
	}

	graph := &gstlaunch.Graph{Elements: req.Elements, Links: req.Links}
	pipeline, err := gstlaunch.Emit(graph)
	if err != nil {
		writeError(w, r, flowerr.NewValidation(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, gstLaunchExportResponse{Pipeline: pipeline})
}
