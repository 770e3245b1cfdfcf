// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package labequip

import (
	"fmt"
	"strconv"
	"strings"
)

// InterfaceType identifies the hardware interface named by a VISA resource
// string.
type InterfaceType string

// Supported interface types.
const (
	InterfaceTCPIP InterfaceType = "TCPIP"
	InterfaceASRL  InterfaceType = "ASRL"
	InterfaceGPIB  InterfaceType = "GPIB"
)

// Default ports and addresses used when a resource string leaves them out.
const (
	DefaultSocketPort = 5025
	NoSecondary       = -1
)

// Resource is a parsed VISA resource string.
type Resource struct {
	Interface InterfaceType
	Board     int
	Host      string // TCPIP
	Port      int    // TCPIP
	LANDevice string // TCPIP INSTR, e.g. inst0
	Device    string // ASRL device name or path
	Primary   int    // GPIB
	Secondary int    // GPIB 0-30, NoSecondary if absent
	Class     string // INSTR or SOCKET
	Raw       string
}

func (r Resource) String() string { return r.Raw }

// ParseResource parses a VISA resource string such as
// "TCPIP0::192.168.1.20::5025::SOCKET", "ASRL/dev/ttyUSB0::INSTR" or
// "GPIB0::6::INSTR". Matching of the interface and class is case-insensitive.
func ParseResource(address string) (Resource, error) {
	r := Resource{Raw: address, Secondary: NoSecondary}
	parts := strings.Split(strings.TrimSpace(address), "::")
	if len(parts) < 2 {
		return r, fmt.Errorf("%w: malformed resource %q", ErrConnection, address)
	}
	head := parts[0]
	last := strings.ToUpper(parts[len(parts)-1])
	if last == "INSTR" || last == "SOCKET" {
		r.Class = last
		parts = parts[:len(parts)-1]
	} else {
		r.Class = "INSTR"
	}
	upper := strings.ToUpper(head)

	switch {
	case strings.HasPrefix(upper, string(InterfaceTCPIP)):
		r.Interface = InterfaceTCPIP
		board, err := parseBoard(head[len(InterfaceTCPIP):])
		if err != nil {
			return r, fmt.Errorf("%w: resource %q: %w", ErrConnection, address, err)
		}
		r.Board = board
		return r, parseTCPIP(&r, parts[1:])
	case strings.HasPrefix(upper, string(InterfaceASRL)):
		r.Interface = InterfaceASRL
		r.Device = head[len(InterfaceASRL):]
		if r.Device == "" || len(parts) != 1 || r.Class != "INSTR" {
			return r, fmt.Errorf("%w: malformed serial resource %q", ErrConnection, address)
		}
		if n, err := strconv.Atoi(r.Device); err == nil {
			r.Board = n
		}
		return r, nil
	case strings.HasPrefix(upper, string(InterfaceGPIB)):
		r.Interface = InterfaceGPIB
		board, err := parseBoard(head[len(InterfaceGPIB):])
		if err != nil {
			return r, fmt.Errorf("%w: resource %q: %w", ErrConnection, address, err)
		}
		r.Board = board
		return r, parseGPIB(&r, parts[1:])
	}
	return r, fmt.Errorf("%w: unsupported interface in resource %q", ErrConnection, address)
}

func parseBoard(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid board number %q", s)
	}
	return n, nil
}

func parseTCPIP(r *Resource, fields []string) error {
	if len(fields) == 0 || fields[0] == "" {
		return fmt.Errorf("%w: resource %q has no host", ErrConnection, r.Raw)
	}
	r.Host = fields[0]
	r.Port = DefaultSocketPort
	switch r.Class {
	case "SOCKET":
		if len(fields) != 2 {
			return fmt.Errorf("%w: socket resource %q needs host and port", ErrConnection, r.Raw)
		}
		port, err := strconv.Atoi(fields[1])
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("%w: invalid port in %q", ErrConnection, r.Raw)
		}
		r.Port = port
	default:
		if len(fields) > 2 {
			return fmt.Errorf("%w: malformed resource %q", ErrConnection, r.Raw)
		}
		r.LANDevice = "inst0"
		if len(fields) == 2 {
			r.LANDevice = fields[1]
		}
	}
	return nil
}

func parseGPIB(r *Resource, fields []string) error {
	if len(fields) == 0 || len(fields) > 2 {
		return fmt.Errorf("%w: malformed GPIB resource %q", ErrConnection, r.Raw)
	}
	pad, err := strconv.Atoi(fields[0])
	if err != nil || pad < 0 || pad > 30 {
		return fmt.Errorf("%w: invalid primary address in %q (must be 0-30)", ErrConnection, r.Raw)
	}
	r.Primary = pad
	if len(fields) == 2 {
		sad, err := strconv.Atoi(fields[1])
		if err != nil || sad < 0 || sad > 30 {
			return fmt.Errorf("%w: invalid secondary address in %q (must be 0-30)", ErrConnection, r.Raw)
		}
		r.Secondary = sad
	}
	return nil
}
