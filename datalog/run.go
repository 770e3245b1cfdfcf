// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package datalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ErrRunExists is returned by CreateTestLog when the run directory already
// exists. Run directories are never reused.
var ErrRunExists = errors.New("datalog: run directory already exists")

// Timestamp layouts used in run directory names and metadata.
const (
	StampLayout   = "20060102150405"
	RunTimeLayout = "2006/01/02 15:04:05"
)

// DefaultTestName names run directories when WithName is not given.
const DefaultTestName = "test_data"

// Run describes a created run directory.
type Run struct {
	ID      uuid.UUID
	Name    string
	Dir     string
	Started time.Time
	// Meta is the metadata file, empty if no test information was given.
	Meta string
	Info map[string]any
}

// Images returns the images subdirectory of the run.
func (r *Run) Images() string { return filepath.Join(r.Dir, "images") }

// RawData returns the raw_data subdirectory of the run.
func (r *Run) RawData() string { return filepath.Join(r.Dir, "raw_data") }

// LogOption configures CreateTestLog.
type LogOption func(*logOptions)

type logOptions struct {
	name    string
	images  bool
	rawData bool
	info    map[string]any
	now     func() time.Time
}

// WithName sets the run name used as the directory prefix.
func WithName(name string) LogOption {
	return func(o *logOptions) { o.name = name }
}

// WithImages creates an images subdirectory.
func WithImages() LogOption {
	return func(o *logOptions) { o.images = true }
}

// WithRawData creates a raw_data subdirectory.
func WithRawData() LogOption {
	return func(o *logOptions) { o.rawData = true }
}

// WithInfo records key in the run's metadata file. The value must be
// encodable as JSON.
func WithInfo(key string, value any) LogOption {
	return func(o *logOptions) {
		if o.info == nil {
			o.info = make(map[string]any)
		}
		o.info[key] = value
	}
}

// WithClock replaces time.Now when stamping the run.
func WithClock(now func() time.Time) LogOption {
	return func(o *logOptions) { o.now = now }
}

// CreateTestLog creates the directory <base>/<name>_<YYYYMMDDHHMMSS> for a
// test run and writes log_<YYYYMMDDHHMMSS>.json in it holding the information
// supplied with WithInfo plus test_name, run_time and run_id. Two runs of the
// same name started in the same second collide; the second fails with
// ErrRunExists. On any other failure the directory is removed again.
func CreateTestLog(base string, opts ...LogOption) (run *Run, err error) {
	o := logOptions{name: DefaultTestName, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	started := o.now()
	stamp := started.Format(StampLayout)
	dir := filepath.Join(base, o.name+"_"+stamp)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrRunExists, dir)
		}
		return nil, err
	}
	defer func() {
		if err != nil {
			os.RemoveAll(dir)
		}
	}()
	run = &Run{
		ID:      uuid.New(),
		Name:    o.name,
		Dir:     dir,
		Started: started,
	}
	if o.images {
		if err := os.Mkdir(run.Images(), 0o755); err != nil {
			return nil, err
		}
	}
	if o.rawData {
		if err := os.Mkdir(run.RawData(), 0o755); err != nil {
			return nil, err
		}
	}

	run.Info = make(map[string]any, len(o.info)+3)
	for k, v := range o.info {
		run.Info[k] = v
	}
	run.Info["test_name"] = o.name
	run.Info["run_time"] = started.Format(RunTimeLayout)
	run.Info["run_id"] = run.ID.String()
	data, err := json.MarshalIndent(run.Info, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode run information: %w", err)
	}
	run.Meta = filepath.Join(run.Dir, "log_"+stamp+".json")
	if err := os.WriteFile(run.Meta, append(data, '\n'), 0o644); err != nil {
		return nil, err
	}
	return run, nil
}
