// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package flowerr defines the error taxonomy shared by the flow store,
// flow engine, block builders, and discovery service. Callers switch on
// these sentinels with errors.Is/errors.As instead of matching strings.
package flowerr

import (
	"errors"
	"fmt"
)

// Sentinel kinds. HTTP handlers map these to status codes with one switch;
// discovery and engine code use them to decide "log and continue" vs
// "tear down".
var (
	ErrValidation            = errors.New("validation")
	ErrNotFound              = errors.New("not found")
	ErrBuildFailed           = errors.New("build failed")
	ErrStateTransitionFailed = errors.New("state transition failed")
	ErrPropertyNotEditable   = errors.New("property not live editable")
	ErrIncompatibleValue     = errors.New("incompatible value")
	ErrDiscoveryTransient    = errors.New("discovery transient")
	ErrFatalPipeline         = errors.New("fatal pipeline error")
	ErrAlreadyRunning        = errors.New("already running")
)

// BuildError carries the offending element id and underlying cause for a
// BuildFailed (spec §7 kind 3).
type BuildError struct {
	Element string
	Cause   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build failed for element %q: %v", e.Element, e.Cause)
}

func (e *BuildError) Unwrap() error { return ErrBuildFailed }

// NewBuildError wraps cause as a BuildFailed error for element.
func NewBuildError(element string, cause error) error {
	return &BuildError{Element: element, Cause: cause}
}

// StateTransitionError carries the from/to states and cause for kind 4.
type StateTransitionError struct {
	From  string
	To    string
	Cause error
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("state transition %s -> %s failed: %v", e.From, e.To, e.Cause)
}

func (e *StateTransitionError) Unwrap() error { return ErrStateTransitionFailed }

// NewStateTransitionError wraps cause as a StateTransitionFailed error.
func NewStateTransitionError(from, to string, cause error) error {
	return &StateTransitionError{From: from, To: to, Cause: cause}
}

// PropertyError reports a per-property failure (kind 5). Reported
// per-property; the pipeline keeps running and there is no rollback of
// other properties applied in the same batch.
type PropertyError struct {
	Element  string
	Property string
	Reason   error // ErrPropertyNotEditable or ErrIncompatibleValue
	Detail   string
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("property %s.%s: %v: %s", e.Element, e.Property, e.Reason, e.Detail)
}

func (e *PropertyError) Unwrap() error { return e.Reason }

// NewPropertyNotEditable reports a construct-only property written on a
// live pipeline.
func NewPropertyNotEditable(element, property string) error {
	return &PropertyError{Element: element, Property: property, Reason: ErrPropertyNotEditable,
		Detail: "property is construct-only and cannot be changed on a running pipeline"}
}

// NewIncompatibleValue reports a value that does not match the property's
// declared type.
func NewIncompatibleValue(element, property, detail string) error {
	return &PropertyError{Element: element, Property: property, Reason: ErrIncompatibleValue, Detail: detail}
}

// NotFoundError names the kind of id (flow/element/pad/block-def) that
// could not be resolved.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFound builds a NotFoundError for kind (e.g. "flow", "element").
func NewNotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// ValidationError reports a malformed request or an invariant violation.
// Surfaced to the caller; engine state is left untouched.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidation builds a ValidationError with the given human-readable reason.
func NewValidation(reason string) error {
	return &ValidationError{Reason: reason}
}

// HTTPStatus maps an error in this taxonomy to the HTTP status code spec
// §7 assigns it. Unrecognised errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return 400
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrIncompatibleValue):
		return 400
	case errors.Is(err, ErrPropertyNotEditable):
		return 409
	case errors.Is(err, ErrAlreadyRunning):
		return 409
	case errors.Is(err, ErrBuildFailed), errors.Is(err, ErrStateTransitionFailed):
		return 422
	case errors.Is(err, ErrFatalPipeline):
		return 500
	default:
		return 500
	}
}
