// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package labequip

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/gotmc/labequip/lib/block"
)

// Transport moves SCPI messages to and from a single instrument. Command
// appends the write terminator, ReadLine strips the read terminator.
// Transports are not safe for concurrent use.
type Transport interface {
	Command(cmd string) error
	ReadLine() (string, error)
	SetTimeout(d time.Duration) error
	Close() error
}

// BlockReader is implemented by transports that can read binary IEEE 488.2
// block replies.
type BlockReader interface {
	ReadBlock() ([]byte, error)
}

// Clearer is implemented by transports that can send the device clear
// message.
type Clearer interface {
	Clear() error
}

// Opener creates a transport for a parsed resource. The context bounds how
// long the opener may block while connecting.
type Opener func(ctx context.Context, r Resource) (Transport, error)

// Lister enumerates the resource strings reachable through one interface.
type Lister func(ctx context.Context) ([]string, error)

// Stream is a Transport over a byte stream such as a TCP socket or a serial
// port. Timeouts are applied through the deadline function supplied by the
// concrete driver.
type Stream struct {
	Debug bool // if true, log each message written and read

	rwc       io.ReadWriteCloser
	reader    *bufio.Reader
	writeTerm string
	readTerm  byte
	timeout   func(time.Duration) error
}

// NewStream wraps rwc. writeTerm is appended to every command, readTerm ends
// every response. setTimeout may be nil if the stream has no timeout.
func NewStream(rwc io.ReadWriteCloser, writeTerm string, readTerm byte,
	setTimeout func(time.Duration) error) *Stream {
	return &Stream{
		rwc:       rwc,
		reader:    bufio.NewReader(rwc),
		writeTerm: writeTerm,
		readTerm:  readTerm,
		timeout:   setTimeout,
	}
}

// Command writes cmd followed by the write terminator. Leading and trailing
// whitespace is removed first.
func (s *Stream) Command(cmd string) error {
	msg := strings.TrimSpace(cmd) + s.writeTerm
	if s.Debug {
		log.Printf("cmd %q", msg)
	}
	_, err := io.WriteString(s.rwc, msg)
	return err
}

// ReadLine reads up to and including the read terminator and returns the
// message without it. A trailing carriage return is removed as well.
func (s *Stream) ReadLine() (string, error) {
	line, err := s.reader.ReadString(s.readTerm)
	if err != nil {
		if err == io.EOF && line != "" {
			return trimTerm(line, s.readTerm), nil
		}
		return "", fmt.Errorf("read: %w", err)
	}
	if s.Debug {
		log.Printf("read data: %q", line)
	}
	return trimTerm(line, s.readTerm), nil
}

// ReadBlock reads a binary block reply. Any reply header before the block is
// discarded.
func (s *Stream) ReadBlock() ([]byte, error) {
	data, err := block.Read(s.reader)
	if s.Debug {
		log.Printf("read block: %d bytes", len(data))
	}
	return data, err
}

// SetTimeout forwards d to the underlying stream.
func (s *Stream) SetTimeout(d time.Duration) error {
	if s.timeout == nil {
		return nil
	}
	return s.timeout(d)
}

// Close closes the underlying stream.
func (s *Stream) Close() error {
	return s.rwc.Close()
}

func trimTerm(s string, term byte) string {
	s = strings.TrimSuffix(s, string(term))
	return strings.TrimSuffix(s, "\r")
}
