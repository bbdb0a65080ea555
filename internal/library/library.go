/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package library keeps a small local catalog of images the user has placed
// before: recently used files for quick re-adding, plus a size-capped
// thumbnail cache. It is ephemeral bookkeeping, not scene persistence; the
// scene itself is never written here.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	applog "sceneboard/internal/log"
	"sceneboard/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// DefaultThumbCapBytes bounds the thumbnail cache before LRU eviction.
	DefaultThumbCapBytes int64 = 32 << 20

	// schemaVersion tracks the catalog schema. Bump on breaking changes and
	// add a migration step.
	schemaVersion = 1

	// tsLayout is fixed-width so stored timestamps sort lexically.
	tsLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Entry is one recently used image file.
type Entry struct {
	Path     string
	Name     string
	LastUsed time.Time
	UseCount int
}

// Library is an open catalog database. Safe for use from a single process;
// the pool is capped at one connection, matching embedded usage.
type Library struct {
	db  *sql.DB
	log *slog.Logger
	// thumbCap is the eviction threshold in bytes; <= 0 disables eviction.
	thumbCap int64
}

// Open creates or opens the catalog at the given file path, enables WAL and
// ensures the schema. capBytes <= 0 selects DefaultThumbCapBytes.
func Open(path string, capBytes int64) (*Library, error) {
	l := applog.WithOperation(applog.WithComponent("library"), "open").With(
		slog.String("path", path),
	)
	if path == "" {
		return nil, errors.New("library path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create library dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create library dir: %w", err)
	}
	if capBytes <= 0 {
		capBytes = DefaultThumbCapBytes
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}

	l.Info("library ready")
	return &Library{db: db, log: applog.WithComponent("library"), thumbCap: capBytes}, nil
}

// Close releases the underlying database.
func (lb *Library) Close() error {
	return lb.db.Close()
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS images (
			path       TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			use_count  INTEGER NOT NULL DEFAULT 0,
			last_used  TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_images_last_used ON images(last_used);`,
		`CREATE TABLE IF NOT EXISTS thumbs (
			path        TEXT NOT NULL,
			w           INTEGER NOT NULL,
			h           INTEGER NOT NULL,
			blob        BLOB NOT NULL,
			size        INTEGER NOT NULL,
			updated_at  TEXT NOT NULL,
			last_access TEXT NOT NULL,
			PRIMARY KEY(path, w, h)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_thumbs_access ON thumbs(last_access);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	now := time.Now().UTC().Format(tsLayout)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// RecordUse notes that the file at path was placed into a scene. The entry is
// created on first use; later uses bump the count and timestamp.
func (lb *Library) RecordUse(ctx context.Context, path string) error {
	if path == "" {
		return errors.New("path is required")
	}
	now := time.Now().UTC().Format(tsLayout)
	_, err := lb.db.ExecContext(ctx, `INSERT INTO images(path, name, use_count, last_used)
		VALUES(?, ?, 1, ?)
		ON CONFLICT(path) DO UPDATE SET use_count = use_count + 1, last_used = excluded.last_used`,
		path, filepath.Base(path), now)
	if err != nil {
		return fmt.Errorf("record use: %w", err)
	}
	return nil
}

// Recent returns up to n entries, most recently used first.
func (lb *Library) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := lb.db.QueryContext(ctx, `SELECT path, name, use_count, last_used FROM images ORDER BY last_used DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&e.Path, &e.Name, &e.UseCount, &ts); err != nil {
			return nil, fmt.Errorf("scan recent: %w", err)
		}
		if t, perr := time.Parse(tsLayout, ts); perr == nil {
			e.LastUsed = t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Forget removes an entry and all its cached thumbnails.
func (lb *Library) Forget(ctx context.Context, path string) error {
	if _, err := lb.db.ExecContext(ctx, `DELETE FROM thumbs WHERE path=?`, path); err != nil {
		return fmt.Errorf("forget thumbs: %w", err)
	}
	if _, err := lb.db.ExecContext(ctx, `DELETE FROM images WHERE path=?`, path); err != nil {
		return fmt.Errorf("forget image: %w", err)
	}
	return nil
}

// PutThumb upserts a rendered thumbnail and evicts least-recently-used
// entries when the cache exceeds its byte cap.
func (lb *Library) PutThumb(ctx context.Context, path string, w, h int, blob []byte) error {
	if len(blob) == 0 {
		return errors.New("empty thumbnail")
	}
	now := time.Now().UTC().Format(tsLayout)
	_, err := lb.db.ExecContext(ctx, `INSERT INTO thumbs(path, w, h, blob, size, updated_at, last_access)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(path, w, h) DO UPDATE SET blob=excluded.blob, size=excluded.size, updated_at=excluded.updated_at, last_access=excluded.last_access`,
		path, w, h, blob, len(blob), now, now)
	if err != nil {
		return fmt.Errorf("upsert thumb: %w", err)
	}
	if lb.thumbCap > 0 {
		if err := lb.evictThumbsToFit(ctx, lb.thumbCap); err != nil {
			return err
		}
	}
	return nil
}

// GetThumb returns the cached thumbnail bytes, or nil when absent. A hit
// refreshes the entry's access time.
func (lb *Library) GetThumb(ctx context.Context, path string, w, h int) ([]byte, error) {
	var blob []byte
	err := lb.db.QueryRowContext(ctx, `SELECT blob FROM thumbs WHERE path=? AND w=? AND h=?`, path, w, h).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query thumb: %w", err)
	}
	now := time.Now().UTC().Format(tsLayout)
	_, _ = lb.db.ExecContext(ctx, `UPDATE thumbs SET last_access=? WHERE path=? AND w=? AND h=?`, now, path, w, h)
	return blob, nil
}

// GetOrCreateThumb fetches a thumbnail or generates and stores one via gen.
func (lb *Library) GetOrCreateThumb(ctx context.Context, path string, w, h int, gen func(context.Context) ([]byte, error)) ([]byte, error) {
	if b, err := lb.GetThumb(ctx, path, w, h); err != nil {
		return nil, err
	} else if b != nil {
		return b, nil
	}
	if gen == nil {
		return nil, nil
	}
	data, err := gen(ctx)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	if err := lb.PutThumb(ctx, path, w, h, data); err != nil {
		return nil, err
	}
	return data, nil
}

// ThumbBytes reports the total size of the thumbnail cache.
func (lb *Library) ThumbBytes(ctx context.Context) (int64, error) {
	var total int64
	if err := lb.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM thumbs`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum thumb size: %w", err)
	}
	return total, nil
}

// evictThumbsToFit deletes least-recently-used thumbnails until the total
// size fits under capBytes.
func (lb *Library) evictThumbsToFit(ctx context.Context, capBytes int64) error {
	total, err := lb.ThumbBytes(ctx)
	if err != nil {
		return err
	}
	if total <= capBytes {
		return nil
	}
	rows, err := lb.db.QueryContext(ctx, `SELECT path, w, h, size FROM thumbs ORDER BY last_access ASC`)
	if err != nil {
		return fmt.Errorf("query victims: %w", err)
	}
	defer rows.Close()

	type victim struct {
		path string
		w, h int
		size int64
	}
	var victims []victim
	for rows.Next() {
		var v victim
		if err := rows.Scan(&v.path, &v.w, &v.h, &v.size); err != nil {
			return fmt.Errorf("scan victim: %w", err)
		}
		victims = append(victims, v)
		total -= v.size
		if total <= capBytes {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, v := range victims {
		if _, err := lb.db.ExecContext(ctx, `DELETE FROM thumbs WHERE path=? AND w=? AND h=?`, v.path, v.w, v.h); err != nil {
			return fmt.Errorf("evict thumb: %w", err)
		}
		lb.log.Debug("thumb evicted", slog.String("path", v.path), slog.Int64("size", v.size))
	}
	return nil
}
