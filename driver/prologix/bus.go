// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package prologix serves GPIB resources through a Prologix GPIB-USB
// controller (or an Arduino AR488) attached to a serial port.
//
// All sessions on a board share one controller. The controller is opened when
// the first session opens and closed after the last one closes; before every
// message the controller is re-addressed to the session's instrument.
package prologix

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gotmc/labequip"
	"github.com/gotmc/labequip/driver/asrl"
	"go.bug.st/serial"
	"go.uber.org/multierr"
)

// Mode is the serial configuration of the USB virtual COM port.
var Mode = serial.Mode{BaudRate: 115200}

// Dialer opens the byte stream to the controller and returns a function that
// sets the stream's read timeout.
type Dialer func() (io.ReadWriteCloser, func(time.Duration) error, error)

// SerialDialer opens the named serial port.
func SerialDialer(port string) Dialer {
	return func() (io.ReadWriteCloser, func(time.Duration) error, error) {
		m := Mode
		p, err := serial.Open(port, &m)
		if err != nil {
			return nil, nil, err
		}
		return asrl.Wrap(p), p.SetReadTimeout, nil
	}
}

// Bus is one Prologix controller shared by the GPIB sessions of a board.
type Bus struct {
	Board int

	dial       Dialer
	opts       []ControllerOption
	conn       io.ReadWriteCloser
	setTimeout func(time.Duration) error
	ctrl       *Controller
	refs       int
	timeout    time.Duration // read timeout last applied, 0 if unknown
}

// NewBus returns a bus for GPIB board 0 that connects through dial when the
// first session opens.
func NewBus(dial Dialer, opts ...ControllerOption) *Bus {
	return &Bus{dial: dial, opts: opts}
}

// Register serves GPIB resources on rm through the controller on the named
// serial port.
func Register(rm *labequip.ResourceManager, port string, opts ...ControllerOption) *Bus {
	b := NewBus(SerialDialer(port), opts...)
	rm.Register(labequip.InterfaceGPIB, b.Open)
	return b
}

// Open is a labequip.Opener for GPIB resources on the bus's board.
func (b *Bus) Open(ctx context.Context, r labequip.Resource) (labequip.Transport, error) {
	if r.Interface != labequip.InterfaceGPIB || r.Board != b.Board {
		return nil, fmt.Errorf("%w: %s is not on GPIB board %d", labequip.ErrConnection, r, b.Board)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.acquire(); err != nil {
		return nil, err
	}
	t := &transport{bus: b, pad: r.Primary, sad: r.Secondary}
	if err := b.ctrl.Address(t.pad, t.sad); err != nil {
		b.release()
		return nil, err
	}
	return t, nil
}

// applyTimeout sets the serial and controller read timeouts shared by the
// sessions on the bus.
func (b *Bus) applyTimeout(d time.Duration) error {
	var err error
	if b.setTimeout != nil {
		err = b.setTimeout(d)
	}
	err = multierr.Append(err, b.ctrl.SetReadTimeout(d))
	if err != nil {
		b.timeout = 0
		return err
	}
	b.timeout = d
	return nil
}

// Controller returns the live controller, or nil if no session is open.
func (b *Bus) Controller() *Controller { return b.ctrl }

func (b *Bus) acquire() error {
	if b.refs > 0 {
		b.refs++
		return nil
	}
	conn, setTimeout, err := b.dial()
	if err != nil {
		return err
	}
	ctrl, err := NewController(conn, b.opts...)
	if err != nil {
		conn.Close()
		return err
	}
	b.conn, b.setTimeout, b.ctrl, b.refs = conn, setTimeout, ctrl, 1
	return nil
}

func (b *Bus) release() error {
	if b.refs == 0 {
		return nil
	}
	b.refs--
	if b.refs > 0 {
		return nil
	}
	// Return the last instrument to front panel control before letting go.
	err := b.ctrl.FrontPanel(true)
	err = multierr.Append(err, b.conn.Close())
	b.conn, b.setTimeout, b.ctrl, b.timeout = nil, nil, nil, 0
	return err
}

type transport struct {
	bus      *Bus
	pad, sad int
	timeout  time.Duration
	closed   bool
}

// selectDevice addresses the instrument and restores its read timeout if
// another session on the bus changed it.
func (t *transport) selectDevice() error {
	if t.timeout > 0 && t.timeout != t.bus.timeout {
		if err := t.bus.applyTimeout(t.timeout); err != nil {
			return err
		}
	}
	return t.bus.ctrl.Address(t.pad, t.sad)
}

func (t *transport) Command(cmd string) error {
	if err := t.selectDevice(); err != nil {
		return err
	}
	return t.bus.ctrl.Write(cmd)
}

func (t *transport) ReadLine() (string, error) {
	if err := t.selectDevice(); err != nil {
		return "", err
	}
	return t.bus.ctrl.Read()
}

func (t *transport) Clear() error {
	if err := t.selectDevice(); err != nil {
		return err
	}
	return t.bus.ctrl.ClearDevice()
}

func (t *transport) SetTimeout(d time.Duration) error {
	t.timeout = d
	return t.bus.applyTimeout(d)
}

func (t *transport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.bus.release()
}
