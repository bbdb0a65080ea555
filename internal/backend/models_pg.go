/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ModelCatalog reads the trainer's model table directly from Postgres. It is
// an optional fast path for deployments where the service shares its catalog
// database; the HTTP ListModels endpoint remains the portable route.
type ModelCatalog struct {
	db *sql.DB
}

// OpenModelCatalog connects to the catalog at the given DSN and verifies the
// connection.
func OpenModelCatalog(ctx context.Context, dsn string) (*ModelCatalog, error) {
	if dsn == "" {
		return nil, fmt.Errorf("catalog dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}
	return &ModelCatalog{db: db}, nil
}

// Close releases the database connection.
func (mc *ModelCatalog) Close() error { return mc.db.Close() }

// List returns all models, newest first.
func (mc *ModelCatalog) List(ctx context.Context) ([]Model, error) {
	rows, err := mc.db.QueryContext(ctx, `SELECT name, COALESCE(prompt, ''), created_at, COALESCE(size_bytes, 0) FROM models ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query models: %w", err)
	}
	defer rows.Close()

	var out []Model
	for rows.Next() {
		var m Model
		if err := rows.Scan(&m.Name, &m.Prompt, &m.CreatedAt, &m.SizeBytes); err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
