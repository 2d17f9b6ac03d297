/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	applog "sqldesigner/internal/log"
	"sqldesigner/internal/storage"
)

// language=SQL
// dialect=PostgreSQL
const selectDiagramForUpdateSQL = `SELECT content FROM diagrams WHERE name = $1 FOR UPDATE`

// language=SQL
// dialect=PostgreSQL
const insertDiagramSnapshotSQL = `INSERT INTO diagram_snapshots(name, content) VALUES ($1, $2)`

// language=SQL
// dialect=PostgreSQL
const upsertDiagramSQL = `INSERT INTO diagrams(name, content, updated_at) VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE SET content = excluded.content, updated_at = now()`

// PGStore keeps diagrams in Postgres. Replaced content is copied to diagram_snapshots
// in the same transaction.
type PGStore struct {
	DB *sql.DB
}

// NewPGStore applies the embedded migrations and returns a store on db.
func NewPGStore(ctx context.Context, db *sql.DB) (*PGStore, error) {
	if err := applyMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PGStore{DB: db}, nil
}

func (s *PGStore) Save(ctx context.Context, name string, content []byte) (changed bool, err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil || !changed {
			_ = tx.Rollback()
		}
	}()
	var old string
	switch err = tx.QueryRowContext(ctx, selectDiagramForUpdateSQL, name).Scan(&old); {
	case errors.Is(err, sql.ErrNoRows):
		err = nil
	case err != nil:
		return false, err
	case old == string(content):
		applog.WithComponent("backend").Info("diagram unchanged", slog.String("name", name))
		return false, nil
	default:
		if _, err = tx.ExecContext(ctx, insertDiagramSnapshotSQL, name, old); err != nil {
			return false, err
		}
	}
	if _, err = tx.ExecContext(ctx, upsertDiagramSQL, name, string(content)); err != nil {
		return false, err
	}
	if err = tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PGStore) Load(ctx context.Context, name string) ([]byte, error) {
	var content string
	err := s.DB.QueryRowContext(ctx, `SELECT content FROM diagrams WHERE name = $1`, name).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(content), nil
}

func (s *PGStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT name FROM diagrams ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// SnapshotCount reports how many snapshots exist for name.
func (s *PGStore) SnapshotCount(ctx context.Context, name string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT count(*) FROM diagram_snapshots WHERE name = $1`, name).Scan(&n)
	return n, err
}
