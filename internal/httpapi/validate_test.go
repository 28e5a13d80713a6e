// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestValidatorLoadsEmbeddedDocument(t *testing.T) {
	v := newRequestValidator()
	if v.router == nil {
		t.Fatalf("expected embedded openapi document to load and build a router")
	}
}

func TestCreateFlowRejectsNonObjectBody(t *testing.T) {
	s, _, _ := newTestServer(t)
	r := s.Routes()

	req := httptest.NewRequest(http.MethodPost, "/api/flows", bytes.NewBufferString(`["not", "an", "object"]`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGstLaunchParseRejectsMissingPipelineField(t *testing.T) {
	s, _, _ := newTestServer(t)
	r := s.Routes()

	req := httptest.NewRequest(http.MethodPost, "/api/gst-launch/parse", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing pipeline field, got %d: %s", rec.Code, rec.Body.String())
	}
}
