// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eyevinn/strom/internal/flow"
)

func TestCreateListGetUpdateDeleteFlow(t *testing.T) {
	s, _, _ := newTestServer(t)
	r := s.Routes()

	createBody := `{"name":"cam-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/flows", bytes.NewBufferString(createBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created flow.Flow
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created flow: %v", err)
	}
	if created.Name != "cam-1" {
		t.Errorf("expected name cam-1, got %q", created.Name)
	}

	listReq := httptest.NewRequest(http.MethodGet, "/api/flows", nil)
	listRec := httptest.NewRecorder()
	r.ServeHTTP(listRec, listReq)
	var list []flow.Flow
	if err := json.Unmarshal(listRec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 flow listed, got %d", len(list))
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/flows/"+created.ID.String(), nil)
	getRec := httptest.NewRecorder()
	r.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", getRec.Code)
	}

	updateBody := `{"name":"cam-1-renamed"}`
	updateReq := httptest.NewRequest(http.MethodPut, "/api/flows/"+created.ID.String(), bytes.NewBufferString(updateBody))
	updateReq.Header.Set("Content-Type", "application/json")
	updateRec := httptest.NewRecorder()
	r.ServeHTTP(updateRec, updateReq)
	if updateRec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", updateRec.Code, updateRec.Body.String())
	}
	var updated flow.Flow
	if err := json.Unmarshal(updateRec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode updated flow: %v", err)
	}
	if updated.Name != "cam-1-renamed" {
		t.Errorf("expected renamed flow, got %q", updated.Name)
	}

	delReq := httptest.NewRequest(http.MethodDelete, "/api/flows/"+created.ID.String(), nil)
	delRec := httptest.NewRecorder()
	r.ServeHTTP(delRec, delReq)
	if delRec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", delRec.Code)
	}

	getAfterDelete := httptest.NewRequest(http.MethodGet, "/api/flows/"+created.ID.String(), nil)
	getAfterDeleteRec := httptest.NewRecorder()
	r.ServeHTTP(getAfterDeleteRec, getAfterDelete)
	if getAfterDeleteRec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", getAfterDeleteRec.Code)
	}
}

func TestCreateFlowRejectsMissingName(t *testing.T) {
	s, _, _ := newTestServer(t)
	r := s.Routes()

	req := httptest.NewRequest(http.MethodPost, "/api/flows", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name, got %d: %s", rec.Code, rec.Body.String())
	}
	var problem map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &problem); err != nil {
		t.Fatalf("decode problem response: %v", err)
	}
	if problem["code"] != "VALIDATION" {
		t.Errorf("expected VALIDATION code, got %v", problem["code"])
	}
}

func TestGetUnknownFlowReturnsNotFoundProblem(t *testing.T) {
	s, _, _ := newTestServer(t)
	r := s.Routes()

	req := httptest.NewRequest(http.MethodGet, "/api/flows/00000000-0000-0000-0000-000000000000", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("expected problem+json content type, got %q", ct)
	}
}

func TestStartStopRestartFlow(t *testing.T) {
	s, store, broadcaster := newTestServer(t)
	r := s.Routes()
	sub := broadcaster.Subscribe()
	defer broadcaster.Unsubscribe(sub)

	f := flow.New("playable")
	created, err := store.Create(context.Background(), f)
	if err != nil {
		t.Fatalf("seed flow: %v", err)
	}

	startReq := httptest.NewRequest(http.MethodPost, "/api/flows/"+created.ID.String()+"/start", nil)
	startRec := httptest.NewRecorder()
	r.ServeHTTP(startRec, startReq)
	if startRec.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", startRec.Code, startRec.Body.String())
	}

	restartReq := httptest.NewRequest(http.MethodPost, "/api/flows/"+created.ID.String()+"/restart", nil)
	restartRec := httptest.NewRecorder()
	r.ServeHTTP(restartRec, restartReq)
	if restartRec.Code != http.StatusOK {
		t.Fatalf("restart: expected 200, got %d: %s", restartRec.Code, restartRec.Body.String())
	}

	stopReq := httptest.NewRequest(http.MethodPost, "/api/flows/"+created.ID.String()+"/stop", nil)
	stopRec := httptest.NewRecorder()
	r.ServeHTTP(stopRec, stopReq)
	if stopRec.Code != http.StatusOK {
		t.Fatalf("stop: expected 200, got %d: %s", stopRec.Code, stopRec.Body.String())
	}
}
