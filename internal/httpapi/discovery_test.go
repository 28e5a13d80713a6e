// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eyevinn/strom/internal/discovery"
)

func TestListDiscoveredStreamsEmptyWhenDiscoveryDisabled(t *testing.T) {
	s, _, _ := newTestServer(t)
	r := s.Routes()

	req := httptest.NewRequest(http.MethodGet, "/api/discovery/streams", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var streams []discovery.DiscoveredStream
	if err := json.Unmarshal(rec.Body.Bytes(), &streams); err != nil {
		t.Fatalf("decode streams: %v", err)
	}
	if len(streams) != 0 {
		t.Errorf("expected no streams, got %d", len(streams))
	}
}

func TestStreamSDPNotFoundWhenDiscoveryDisabled(t *testing.T) {
	s, _, _ := newTestServer(t)
	r := s.Routes()

	req := httptest.NewRequest(http.MethodGet, "/api/discovery/streams/some-stream/sdp", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("expected problem+json content type, got %q", ct)
	}
}
