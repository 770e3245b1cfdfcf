// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package labequip

import (
	"fmt"
	"log"
	"reflect"
	"strings"
	"time"
)

// DefaultTimeout is the response timeout applied to new sessions.
const DefaultTimeout = 1000 * time.Millisecond

// Direction tells a Recorder which way a message travelled.
type Direction int

// Message directions.
const (
	DirectionWrite Direction = iota
	DirectionRead
)

func (d Direction) String() string {
	if d == DirectionRead {
		return "read"
	}
	return "write"
}

// Recorder receives a copy of every message exchanged with an instrument.
type Recorder interface {
	Record(address string, dir Direction, msg string)
}

// Device is implemented by every instrument driver.
type Device interface {
	Address() string
	Close() error
}

// Same reports whether a and b are the same logical instrument: the same
// concrete driver type talking to the same address.
func Same(a, b Device) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.TypeOf(a) == reflect.TypeOf(b) && a.Address() == b.Address()
}

// Instrument is a session with a single SCPI instrument. Drivers embed it to
// inherit the raw pass-through and IEEE 488.2 common commands.
type Instrument struct {
	address string
	t       Transport
	timeout time.Duration
	debug   bool
	rec     Recorder
	closed  bool
}

// Option applies an option to an instrument session.
type Option func(*Instrument)

// WithTimeout sets the response timeout.
func WithTimeout(d time.Duration) Option { return func(i *Instrument) { i.timeout = d } }

// WithDebug causes commands and responses to be logged.
func WithDebug() Option { return func(i *Instrument) { i.debug = true } }

// WithRecorder mirrors every message to r.
func WithRecorder(r Recorder) Option { return func(i *Instrument) { i.rec = r } }

// NewInstrument creates a session at address on an already open transport.
// The transport is owned by the session from here on.
func NewInstrument(address string, t Transport, opts ...Option) (*Instrument, error) {
	i := Instrument{
		address: address,
		t:       t,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&i)
	}
	if i.timeout <= 0 {
		return nil, &ArgumentError{Op: "open " + address, Arg: "timeout", Value: i.timeout}
	}
	if err := t.SetTimeout(i.timeout); err != nil {
		return nil, fmt.Errorf("%w: %s: set timeout: %w", ErrConnection, address, err)
	}
	return &i, nil
}

// Address returns the resource string the session was opened with.
func (i *Instrument) Address() string { return i.address }

// Timeout returns the response timeout.
func (i *Instrument) Timeout() time.Duration { return i.timeout }

// SetTimeout changes the response timeout.
func (i *Instrument) SetTimeout(d time.Duration) error {
	if d <= 0 {
		return &ArgumentError{Op: "set timeout", Arg: "timeout", Value: d}
	}
	if err := i.check(); err != nil {
		return err
	}
	if err := i.t.SetTimeout(d); err != nil {
		return fmt.Errorf("%w: %s: set timeout: %w", ErrConnection, i.address, err)
	}
	i.timeout = d
	return nil
}

// Write sends cmd to the instrument unchanged. It is the pass-through for
// commands the typed drivers do not cover.
func (i *Instrument) Write(cmd string) error {
	if err := i.check(); err != nil {
		return err
	}
	if i.debug {
		log.Printf("%s cmd %q", i.address, cmd)
	}
	if i.rec != nil {
		i.rec.Record(i.address, DirectionWrite, cmd)
	}
	if err := i.t.Command(cmd); err != nil {
		return fmt.Errorf("%w: %s: write %q: %w", ErrConnection, i.address, cmd, err)
	}
	return nil
}

// Command formats according to a format specifier if arguments are provided
// and sends the result to the instrument.
func (i *Instrument) Command(format string, a ...any) error {
	cmd := format
	if a != nil {
		cmd = fmt.Sprintf(format, a...)
	}
	return i.Write(cmd)
}

// Read reads one response message from the instrument.
func (i *Instrument) Read() (string, error) {
	if err := i.check(); err != nil {
		return "", err
	}
	s, err := i.t.ReadLine()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrConnection, i.address, err)
	}
	if i.debug {
		log.Printf("%s read %q", i.address, s)
	}
	if i.rec != nil {
		i.rec.Record(i.address, DirectionRead, s)
	}
	return s, nil
}

// ReadBlock reads one binary block reply, such as a waveform or a screen
// image.
func (i *Instrument) ReadBlock() ([]byte, error) {
	if err := i.check(); err != nil {
		return nil, err
	}
	br, ok := i.t.(BlockReader)
	if !ok {
		return nil, fmt.Errorf("%w: %s: transport cannot read binary data", ErrConnection, i.address)
	}
	data, err := br.ReadBlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, i.address, err)
	}
	if i.rec != nil {
		i.rec.Record(i.address, DirectionRead, fmt.Sprintf("<%d byte block>", len(data)))
	}
	return data, nil
}

// Query sends cmd and returns the unprocessed response. Callers parse it.
func (i *Instrument) Query(cmd string) (string, error) {
	if err := i.Write(cmd); err != nil {
		return "", err
	}
	return i.Read()
}

// Identify sends the IEEE 488.2 identification query.
func (i *Instrument) Identify() (string, error) {
	s, err := i.Query("*IDN?")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: %s: empty *IDN? reply", ErrInvalidResponse, i.address)
	}
	return s, nil
}

// Reset executes a device reset and cancels any pending *OPC.
func (i *Instrument) Reset() error { return i.Write("*RST") }

// ClearStatus empties the error queue and clears all event registers.
func (i *Instrument) ClearStatus() error { return i.Write("*CLS") }

// Clear sends the device clear message on transports that have one, such as
// GPIB. It does nothing on the others.
func (i *Instrument) Clear() error {
	if err := i.check(); err != nil {
		return err
	}
	c, ok := i.t.(Clearer)
	if !ok {
		return nil
	}
	if err := c.Clear(); err != nil {
		return fmt.Errorf("%w: %s: clear: %w", ErrConnection, i.address, err)
	}
	return nil
}

// Close releases the transport. Closing an already closed session is a no-op.
func (i *Instrument) Close() error {
	if i.closed {
		return nil
	}
	i.closed = true
	if err := i.t.Close(); err != nil {
		return fmt.Errorf("%s: close: %w", i.address, err)
	}
	return nil
}

// Closed reports whether Close has been called.
func (i *Instrument) Closed() bool { return i.closed }

// Equal reports whether two bare sessions talk to the same address.
func (i *Instrument) Equal(o *Instrument) bool {
	if i == nil || o == nil {
		return i == o
	}
	return i.address == o.address
}

func (i *Instrument) String() string {
	return fmt.Sprintf("Instrument(%s, timeout=%s)", i.address, i.timeout)
}

func (i *Instrument) check() error {
	if i.closed {
		return fmt.Errorf("%w: %s", ErrClosed, i.address)
	}
	return nil
}
