// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package asrl provides the serial port transport for ASRL resources.
// Importing it registers the transport and a serial port lister with
// labequip.Default.
package asrl

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/gotmc/labequip"
	"github.com/gotmc/labequip/lib/find"
	"go.bug.st/serial"
)

func init() {
	labequip.Register(labequip.InterfaceASRL, Opener(DefaultMode))
	labequip.RegisterLister(List)
}

// DefaultMode is the serial configuration used by the registered opener.
var DefaultMode = serial.Mode{
	BaudRate: 9600,
	DataBits: 8,
	Parity:   serial.NoParity,
	StopBits: serial.OneStopBit,
}

// Terminators used on serial lines.
const (
	WriteTerm = "\n"
	ReadTerm  = '\n'
)

var errTimeout = errors.New("serial read timeout")

// Opener returns an opener using the given serial mode.
func Opener(mode serial.Mode) labequip.Opener {
	return func(ctx context.Context, r labequip.Resource) (labequip.Transport, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.Interface != labequip.InterfaceASRL {
			return nil, fmt.Errorf("%w: %s is not a serial resource", labequip.ErrConnection, r)
		}
		m := mode
		port, err := serial.Open(DevicePath(r.Device), &m)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", labequip.ErrConnection, err)
		}
		return labequip.NewStream(Wrap(port), WriteTerm, ReadTerm, port.SetReadTimeout), nil
	}
}

// DevicePath maps the device part of an ASRL resource to an operating system
// port name. Numbered ports follow the COMn convention, so ASRL1 is COM1 on
// Windows and /dev/ttyS0 elsewhere.
func DevicePath(device string) string {
	n, err := strconv.Atoi(device)
	if err != nil {
		return device
	}
	if runtime.GOOS == "windows" {
		return "COM" + device
	}
	return fmt.Sprintf("/dev/ttyS%d", n-1)
}

// Resource returns the ASRL resource string for a port name.
func Resource(port string) string {
	return "ASRL" + port + "::INSTR"
}

// Wrap turns the zero-length read go.bug.st/serial returns on timeout into an
// error, so a buffered reader does not spin.
func Wrap(port serial.Port) serial.Port { return &timeoutPort{Port: port} }

type timeoutPort struct {
	serial.Port
}

func (p *timeoutPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if n == 0 && err == nil {
		return 0, errTimeout
	}
	return n, err
}

// List reports every serial port on the system as an ASRL resource.
func List(ctx context.Context) ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	addrs := make([]string, 0, len(ports))
	for _, p := range ports {
		addrs = append(addrs, Resource(p))
	}
	return addrs, nil
}

// Port describes a serial port and, for USB adapters, the device behind it.
type Port struct {
	Resource string
	Name     string
	USB      *find.Usbtty
}

func (p Port) String() string {
	if p.USB == nil {
		return p.Resource
	}
	return fmt.Sprintf("%s (%s %s, serial %s)", p.Resource, p.USB.Mfg, p.USB.Prod, p.USB.Serial)
}

// Ports lists the serial ports and annotates the ones backed by USB devices.
func Ports(ctx context.Context) ([]Port, error) {
	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	usb, _ := find.AllUsbTtys()
	ports := make([]Port, 0, len(names))
	for _, name := range names {
		p := Port{Resource: Resource(name), Name: name}
		for i := range usb {
			if strings.HasSuffix(name, "/"+usb[i].Dev) {
				p.USB = &usb[i]
				break
			}
		}
		ports = append(ports, p)
	}
	return ports, nil
}
