// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eyevinn/strom/internal/flowerr"
	"github.com/eyevinn/strom/internal/log"
)

// writeProblem writes an RFC 7807 problem-details response. problemType is
// a machine identifier in the "area/reason" shape (e.g.
// "flows/not_found"); code is a stable short machine code for clients that
// match on strings instead of parsing type.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, problemType, title, code, detail string) {
	res := map[string]any{
		"type":   problemType,
		"title":  title,
		"status": status,
		"code":   code,
	}
	if detail != "" {
		res["detail"] = detail
	}
	if r != nil {
		res["instance"] = r.URL.EscapedPath()
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.L().Error().Err(err).Str(log.FieldType, problemType).Int(log.FieldStatus, status).Msg("failed to encode problem response")
	}
}

// writeError maps a domain error from flowengine/flowstore/gstlaunch onto
// the error taxonomy spec §7 defines and writes the matching problem
// response. The status code comes from flowerr.HTTPStatus, the single
// source of truth for that mapping; this function only adds the
// human-readable type/title/code a problem+json body needs.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := flowerr.HTTPStatus(err)
	problemType, title, code := problemIdentity(err)
	detail := err.Error()
	if be := new(flowerr.BuildError); errors.As(err, &be) {
		detail += " element=" + be.Element
	}
	if status == http.StatusInternalServerError {
		log.L().Error().Err(err).Str(log.FieldPath, r.URL.Path).Msg("unhandled httpapi error")
	}
	writeProblem(w, r, status, problemType, title, code, detail)
}

func problemIdentity(err error) (problemType, title, code string) {
	switch {
	case errors.Is(err, flowerr.ErrValidation):
		return "flows/validation", "Validation Failed", "VALIDATION"
	case errors.Is(err, flowerr.ErrNotFound):
		return "flows/not_found", "Not Found", "NOT_FOUND"
	case errors.Is(err, flowerr.ErrBuildFailed):
		return "flows/build_failed", "Build Failed", "BUILD_FAILED"
	case errors.Is(err, flowerr.ErrStateTransitionFailed):
		return "flows/state_transition_failed", "State Transition Failed", "STATE_TRANSITION_FAILED"
	case errors.Is(err, flowerr.ErrPropertyNotEditable):
		return "flows/property_not_editable", "Property Not Live Editable", "PROPERTY_NOT_EDITABLE"
	case errors.Is(err, flowerr.ErrIncompatibleValue):
		return "flows/incompatible_value", "Incompatible Property Value", "INCOMPATIBLE_VALUE"
	case errors.Is(err, flowerr.ErrAlreadyRunning):
		return "flows/already_running", "Flow Already Running", "ALREADY_RUNNING"
	case errors.Is(err, flowerr.ErrFatalPipeline):
		return "flows/pipeline_error", "Pipeline Error", "PIPELINE_ERROR"
	default:
		return "system/internal", "Internal Server Error", "INTERNAL"
	}
}
