// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package labequip

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds returned by sessions, drivers, and the equipment registry. Use
// errors.Is to test for them.
var (
	ErrConnection        = errors.New("labequip: connection failure")
	ErrUnsupportedDevice = errors.New("labequip: unsupported device")
	ErrInvalidArgument   = errors.New("labequip: invalid argument")
	ErrInvalidResponse   = errors.New("labequip: invalid response")
	ErrConfiguration     = errors.New("labequip: configuration error")
	ErrArgumentMismatch  = errors.New("labequip: argument mismatch")
	ErrClosed            = errors.New("labequip: instrument closed")
)

// ArgumentError reports a value rejected before it was sent to an instrument.
type ArgumentError struct {
	Op      string
	Arg     string
	Value   any
	Allowed []string
}

func (e *ArgumentError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("%s: invalid %s %v", e.Op, e.Arg, e.Value)
	}
	return fmt.Sprintf("%s: invalid %s %v (valid options are %s)",
		e.Op, e.Arg, e.Value, strings.Join(e.Allowed, "/"))
}

func (e *ArgumentError) Unwrap() error { return ErrInvalidArgument }

// MissingEquipmentError lists the required equipment names absent from a
// configuration.
type MissingEquipmentError struct {
	Names []string
}

func (e *MissingEquipmentError) Error() string {
	return fmt.Sprintf("required equipment missing: %s", strings.Join(e.Names, ", "))
}

func (e *MissingEquipmentError) Unwrap() error { return ErrConfiguration }

// DeviceError ties a failure to the configured equipment name that caused it.
type DeviceError struct {
	Name    string
	Address string
	Err     error
}

func (e *DeviceError) Error() string {
	if e.Address == "" {
		return fmt.Sprintf("%s: %s", e.Name, e.Err)
	}
	return fmt.Sprintf("%s (%s): %s", e.Name, e.Address, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// responseError marks err as a parse failure unless it already came from the
// transport.
func responseError(cmd string, err error) error {
	if errors.Is(err, ErrConnection) || errors.Is(err, ErrClosed) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrInvalidResponse, cmd, err)
}
