// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package datalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned by Catalog.Find for unknown run IDs.
var ErrRunNotFound = errors.New("datalog: run not found")

// Catalog indexes run directories in an SQLite database so that runs can be
// found by ID or listed by time.
type Catalog struct {
	db *sql.DB
}

// OpenCatalog opens or creates the catalog database at path. Use ":memory:"
// for a throwaway catalog.
func OpenCatalog(ctx context.Context, path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	// A memory database lives only as long as its connection.
	db.SetMaxOpenConns(1)

	const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		dir TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		info TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close closes the database.
func (c *Catalog) Close() error { return c.db.Close() }

// Add records run.
func (c *Catalog) Add(ctx context.Context, run *Run) error {
	var info sql.NullString
	if len(run.Info) > 0 {
		b, err := json.Marshal(run.Info)
		if err != nil {
			return fmt.Errorf("encode run information: %w", err)
		}
		info = sql.NullString{String: string(b), Valid: true}
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO runs (id, name, dir, started_at, info) VALUES (?, ?, ?, ?, ?)`,
		run.ID.String(), run.Name, run.Dir, run.Started.UnixNano(), info)
	if err != nil {
		return fmt.Errorf("add run %s: %w", run.ID, err)
	}
	return nil
}

// Find returns the run with the given ID.
func (c *Catalog) Find(ctx context.Context, id uuid.UUID) (*Run, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT id, name, dir, started_at, info FROM runs WHERE id = ?`, id.String())
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// Runs lists runs started at or after since, newest first. A zero since lists
// every run. If name is not empty only runs of that name are listed.
func (c *Catalog) Runs(ctx context.Context, name string, since time.Time) ([]*Run, error) {
	after := int64(math.MinInt64)
	if !since.IsZero() {
		after = since.UnixNano()
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, dir, started_at, info FROM runs
		WHERE started_at >= ? AND (? = '' OR name = ?)
		ORDER BY started_at DESC`,
		after, name, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run     Run
		id      string
		started int64
		info    sql.NullString
	)
	if err := s.Scan(&id, &run.Name, &run.Dir, &started, &info); err != nil {
		return nil, err
	}
	var err error
	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("run %q: %w", id, err)
	}
	run.Started = time.Unix(0, started)
	if info.Valid {
		if err := json.Unmarshal([]byte(info.String), &run.Info); err != nil {
			return nil, fmt.Errorf("run %s information: %w", id, err)
		}
	}
	return &run, nil
}
