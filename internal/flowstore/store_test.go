// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package flowstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/eyevinn/strom/internal/flow"
)

func TestStore_Pragmas(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test_pragmas.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil || mode != "wal" {
		t.Errorf("expected WAL mode, got %q (err: %v)", mode, err)
	}
}

func TestStore_CreateGetUpdateDelete(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "flows.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx := context.Background()
	f := flow.New("studio-a")

	created, err := s.Create(ctx, f)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Name != "studio-a" {
		t.Errorf("expected name studio-a, got %q", created.Name)
	}

	got, err := s.Get(ctx, f.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != f.ID {
		t.Errorf("round-tripped id mismatch: %s != %s", got.ID, f.ID)
	}

	got.Name = "studio-b"
	if _, err := s.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}

	reread, err := s.Get(ctx, f.ID)
	if err != nil {
		t.Fatalf("Get after update: %v", err)
	}
	if reread.Name != "studio-b" {
		t.Errorf("expected renamed flow, got %q", reread.Name)
	}

	if err := s.Delete(ctx, f.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, f.ID); err == nil {
		t.Error("expected NotFound after delete")
	}
}

func TestStore_CreateDuplicateNameFails(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "flows.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx := context.Background()
	if _, err := s.Create(ctx, flow.New("duplicate")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(ctx, flow.New("duplicate")); err == nil {
		t.Error("expected validation error for duplicate flow name")
	}
}

func TestStore_ListOrderedByName(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "flows.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx := context.Background()
	for _, name := range []string{"zeta", "alpha", "mu"} {
		if _, err := s.Create(ctx, flow.New(name)); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 flows, got %d", len(list))
	}
	want := []string{"alpha", "mu", "zeta"}
	for i, f := range list {
		if f.Name != want[i] {
			t.Errorf("index %d: expected %q, got %q", i, want[i], f.Name)
		}
	}
}
