// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package labequip

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Args holds named arguments read from an equipment configuration, such as a
// driver's constructor options or the arguments of one initialization step.
type Args map[string]any

// Decode copies the arguments into the struct pointed to by v, matching JSON
// field tags. Unknown names and values of the wrong type are rejected with
// ErrArgumentMismatch.
func (a Args) Decode(v any) error {
	if len(a) == 0 {
		return nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrArgumentMismatch, err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrArgumentMismatch, err)
	}
	return nil
}

// StepFunc runs one named initialization step with its arguments.
type StepFunc func(args Args) error

// Initializer is implemented by drivers that declare the operations an
// equipment configuration may invoke during initialization.
type Initializer interface {
	InitSteps() map[string]StepFunc
}

// Validator is implemented by step argument structs with required fields.
type Validator interface {
	Validate() error
}

// Step adapts a typed driver operation into a StepFunc. The arguments are
// decoded into a fresh T, and validated if T is a Validator, before fn runs.
func Step[T any](fn func(T) error) StepFunc {
	return func(args Args) error {
		var v T
		if err := args.Decode(&v); err != nil {
			return err
		}
		if val, ok := any(v).(Validator); ok {
			if err := val.Validate(); err != nil {
				return fmt.Errorf("%w: %w", ErrArgumentMismatch, err)
			}
		}
		return fn(v)
	}
}

// NoArgs adapts an operation without arguments into a StepFunc. Any argument
// supplied is a mismatch.
func NoArgs(fn func() error) StepFunc {
	return func(args Args) error {
		if len(args) != 0 {
			return fmt.Errorf("%w: takes no arguments, got %d", ErrArgumentMismatch, len(args))
		}
		return fn()
	}
}

// SessionConfig holds the constructor arguments every driver accepts from an
// equipment configuration.
type SessionConfig struct {
	Timeout int  `json:"timeout"` // milliseconds
	Debug   bool `json:"debug"`
}

// Options converts the configuration into session options.
func (c SessionConfig) Options() []Option {
	var opts []Option
	if c.Timeout != 0 {
		opts = append(opts, WithTimeout(time.Duration(c.Timeout)*time.Millisecond))
	}
	if c.Debug {
		opts = append(opts, WithDebug())
	}
	return opts
}

// OpenWith decodes args into cfg, which must be a pointer to a struct
// embedding SessionConfig, and opens a session at address.
func OpenWith(ctx context.Context, rm *ResourceManager, address string, args Args, cfg interface{ Options() []Option }) (*Instrument, error) {
	if err := args.Decode(cfg); err != nil {
		return nil, err
	}
	return rm.Open(ctx, address, cfg.Options()...)
}

type writeArgs struct {
	Command string `json:"command"`
}

func (a writeArgs) Validate() error {
	if a.Command == "" {
		return fmt.Errorf("missing argument command")
	}
	return nil
}

// InitSteps lists the operations a configuration may run on a bare session:
// the IEEE 488.2 common commands and a raw write.
func (i *Instrument) InitSteps() map[string]StepFunc {
	return map[string]StepFunc{
		"reset":        NoArgs(i.Reset),
		"clear_status": NoArgs(i.ClearStatus),
		"write": Step(func(a writeArgs) error {
			return i.Write(a.Command)
		}),
	}
}
