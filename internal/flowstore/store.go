// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package flowstore is the durable, name-indexed repository of flow
// documents (spec §4.5): a mapping FlowId -> Flow, persisted to SQLite as
// one JSON blob per row. CRUD is synchronous and every mutation returns
// the post-state; updates are whole-document replace.
package flowstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eyevinn/strom/internal/flow"
	"github.com/eyevinn/strom/internal/flowerr"
	"github.com/eyevinn/strom/internal/sqlitedb"
)

const schemaVersion = 1

// Store persists flow documents in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the flow store database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sqlitedb.Open(dbPath, sqlitedb.DefaultConfig())
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("flowstore: migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	var current int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS flows (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		document TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_flows_name ON flows(name);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Create inserts a new flow and returns its post-state. Fails with
// flowerr.ErrValidation if a flow with the same name already exists.
func (s *Store) Create(ctx context.Context, f *flow.Flow) (*flow.Flow, error) {
	f.Touch()
	doc, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("flowstore: marshal flow: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO flows (id, name, document, updated_at) VALUES (?, ?, ?, ?)`,
		f.ID.String(), f.Name, doc, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, flowerr.NewValidation(fmt.Sprintf("a flow named %q already exists", f.Name))
		}
		return nil, fmt.Errorf("flowstore: insert: %w", err)
	}
	return f, nil
}

// Get loads a flow by id.
func (s *Store) Get(ctx context.Context, id flow.ID) (*flow.Flow, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT document FROM flows WHERE id = ?`, id.String()).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, flowerr.NewNotFound("flow", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("flowstore: get: %w", err)
	}
	var f flow.Flow
	if err := json.Unmarshal(doc, &f); err != nil {
		return nil, fmt.Errorf("flowstore: unmarshal flow %s: %w", id, err)
	}
	return &f, nil
}

// Update replaces the stored document for f.ID wholesale.
func (s *Store) Update(ctx context.Context, f *flow.Flow) (*flow.Flow, error) {
	f.Touch()
	doc, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("flowstore: marshal flow: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE flows SET name = ?, document = ?, updated_at = ? WHERE id = ?`,
		f.Name, doc, time.Now().UTC().Format(time.RFC3339Nano), f.ID.String(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, flowerr.NewValidation(fmt.Sprintf("a flow named %q already exists", f.Name))
		}
		return nil, fmt.Errorf("flowstore: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("flowstore: rows affected: %w", err)
	}
	if n == 0 {
		return nil, flowerr.NewNotFound("flow", f.ID.String())
	}
	return f, nil
}

// Delete removes a flow by id. Deleting an id that does not exist is a
// no-op, matching idempotent DELETE semantics.
func (s *Store) Delete(ctx context.Context, id flow.ID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM flows WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("flowstore: delete: %w", err)
	}
	return nil
}

// List returns every stored flow, ordered by name.
func (s *Store) List(ctx context.Context) ([]*flow.Flow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT document FROM flows ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("flowstore: list: %w", err)
	}
	defer rows.Close()

	var out []*flow.Flow
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("flowstore: scan: %w", err)
		}
		var f flow.Flow
		if err := json.Unmarshal(doc, &f); err != nil {
			return nil, fmt.Errorf("flowstore: unmarshal: %w", err)
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

// ParseID parses a flow id string, wrapping failures as a validation error.
func ParseID(s string) (flow.ID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, flowerr.NewValidation(fmt.Sprintf("invalid flow id %q", s))
	}
	return id, nil
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces constraint violations as a plain error
	// whose text names the SQLite result code; there is no typed
	// sentinel to errors.As against.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
