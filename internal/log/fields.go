// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity / correlation fields
	FieldRequestID       = "request_id"
	FieldClientRequestID = "client_request_id"
	FieldCorrelationID   = "correlation_id"
	FieldJobID           = "job_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Flow-graph fields
	FieldFlowID    = "flow_id"
	FieldBlockID   = "block_id"
	FieldElementID = "element_id"
	FieldStreamKey = "stream_key"

	// Network / discovery fields
	FieldInterface = "interface"
	FieldGroup     = "group"
	FieldFrom      = "from"
	FieldURL       = "url"
	FieldAddr      = "addr"

	// HTTP fields
	FieldPath   = "path"
	FieldStatus = "status"
	FieldType   = "type"

	// Bus message fields
	FieldText = "text"
)
