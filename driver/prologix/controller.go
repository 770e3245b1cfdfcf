// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package prologix

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"
	"time"
)

// Controller models a Prologix GPIB-USB (or AR488) controller-in-charge.
// Instruments are selected with Address before each exchange.
type Controller struct {
	rw          io.ReadWriter
	reader      *bufio.Reader
	addressed   bool
	pad, sad    int
	auto        bool
	usbTerm     byte
	eotChar     byte
	gpibTerm    GpibTerm
	readTimeout time.Duration
	debug       bool // if true, print controller commands before sending. Set via WithDebug().
	ar488       bool // compatibility with Arduino AR488 - see WithAR488 documentation for details.
}

// ControllerOption applies an option to the controller.
type ControllerOption func(*Controller)

// NewController configures the Prologix controller reachable through rw as
// controller-in-charge. No instrument is addressed until Address is called.
func NewController(rw io.ReadWriter, opts ...ControllerOption) (*Controller, error) {
	c := Controller{
		rw:          rw,
		reader:      bufio.NewReader(rw),
		auto:        false,
		usbTerm:     '\n',
		eotChar:     '\n',
		gpibTerm:    AppendNothing,
		readTimeout: 500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(&c)
	}

	cmds := []string{}
	if !c.ar488 {
		cmds = append(cmds,
			"verbose 0", // turn off verbosity if on
			"savecfg 0", // Disable saving of configuration parameters in EPROM
		)
	}
	cmds = append(cmds,
		"mode 1",                              // Switch to controller mode.
		"auto 0",                              // Turn off read-after-write and address instrument to listen.
		"eoi 1",                               // Enable EOI assertion with last character.
		fmt.Sprintf("eos %d", c.gpibTerm),     // Set GPIB termination.
		readTimeoutCmd(c.readTimeout),         // Set the read timeout.
		fmt.Sprintf("eot_char %d", c.eotChar), // Set the EOT char
		"eot_enable 1",                        // Append character when EOI detected?
	)
	for _, cmd := range cmds {
		if err := c.CommandController(cmd); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

// WithDebug causes commands and responses to be logged.
func WithDebug() ControllerOption { return func(c *Controller) { c.debug = true } }

// WithAR488 slightly alters the init commands, for compatibility with the
// Arduino-based AR488. Specifically, we do not emit 'verbose 0', nor do
// we toggle savecfg.
func WithAR488() ControllerOption { return func(c *Controller) { c.ar488 = true } }

// WithGPIBTermination sets the terminator the controller appends to
// instrument commands on the GPIB side.
func WithGPIBTermination(term GpibTerm) ControllerOption {
	return func(c *Controller) { c.gpibTerm = term }
}

// Address addresses the instrument at the primary and optional secondary
// GPIB address. The secondary address is given as on the VISA resource
// string, 0-30, or labequip.NoSecondary. Nothing is sent if the instrument is
// already addressed.
func (c *Controller) Address(pad, sad int) error {
	if c.addressed && c.pad == pad && c.sad == sad {
		return nil
	}
	if !isPrimaryAddressValid(pad) {
		return fmt.Errorf("invalid primary address %d (must by 0-30)", pad)
	}
	cmd := fmt.Sprintf("addr %d", pad)
	if sad >= 0 {
		if !isSecondaryAddressValid(sad + 96) {
			return fmt.Errorf("invalid secondary address %d (must be 0-30)", sad)
		}
		cmd = fmt.Sprintf("addr %d %d", pad, sad+96)
	}
	if err := c.CommandController(cmd); err != nil {
		c.addressed = false
		return err
	}
	c.addressed, c.pad, c.sad = true, pad, sad
	return nil
}

// Command formats according to a format specifier if provided and sends a
// SCPI/ASCII command to the instrument at the currently assigned GPIB address.
// All leading and trailing whitespace is removed before appending the USB
// terminator to the command sent to the Prologix.
func (c *Controller) Command(format string, a ...any) error {
	cmd := format
	if a != nil {
		cmd = fmt.Sprintf(format, a...)
	}
	return c.Write(cmd)
}

// Write sends cmd unchanged, apart from escaping and trimming, to the
// instrument at the currently assigned GPIB address.
func (c *Controller) Write(cmd string) error {
	cmd = fmt.Sprintf("%s%c", escape(strings.TrimSpace(cmd)), c.usbTerm)
	if c.debug {
		log.Printf("cmd %q (%x)", cmd, cmd)
	}
	_, err := io.WriteString(c.rw, cmd)
	return err
}

// Read asks the addressed instrument to talk and reads until the EOT
// character. The EOT character is not returned.
func (c *Controller) Read() (string, error) {
	// If read-after-write is disabled, need to tell the Prologix controller to
	// read.
	if !c.auto {
		if err := c.CommandController("read eoi"); err != nil {
			return "", fmt.Errorf("error sending `read eoi` command: %w", err)
		}
	}
	s, err := c.reader.ReadString(c.eotChar)
	if err == io.EOF && s != "" {
		err = nil
	}
	if c.debug {
		log.Printf("read data: %q", s)
	}
	if err != nil {
		return "", err
	}
	s = strings.TrimSuffix(s, string(c.eotChar))
	return strings.TrimSuffix(s, "\r"), nil
}

// Query queries the instrument at the currently assigned GPIB address using
// the given SCPI/ASCII command.
func (c *Controller) Query(cmd string) (string, error) {
	if err := c.Write(cmd); err != nil {
		return "", fmt.Errorf("error writing command: %w", err)
	}
	return c.Read()
}

// QueryController sends the given command to the Prologix controller and
// returns its response as a string.
func (c *Controller) QueryController(cmd string) (string, error) {
	if err := c.CommandController(cmd); err != nil {
		return "", err
	}
	s, err := c.reader.ReadString(c.eotChar)
	if c.debug {
		log.Printf("read data: %q", s)
	}
	return strings.TrimSpace(s), err
}

// CommandController sends the given command to the Prologix controller. To
// indicate this is a command for the Prologix controller, thereby not
// transmitting to the instrument over GPIB, two plus signs `++` are prepended.
// Additionally, a new line is appended to act as the USB termination character.
func (c *Controller) CommandController(cmd string) error {
	cmd = fmt.Sprintf("++%s%c", strings.ToLower(strings.TrimSpace(cmd)), c.usbTerm)
	if c.debug {
		log.Printf("cmd %q (%2x)", cmd, cmd)
	}
	_, err := c.rw.Write([]byte(cmd))
	return err
}

// SetReadTimeout sets the controller's inter-character read timeout. The
// Prologix accepts 1-3000 ms; longer values are clamped.
func (c *Controller) SetReadTimeout(d time.Duration) error {
	if err := c.CommandController(readTimeoutCmd(d)); err != nil {
		return err
	}
	c.readTimeout = d
	return nil
}

// ClearDevice sends the Selected Device Clear (SDC) message to the addressed
// instrument.
func (c *Controller) ClearDevice() error { return c.CommandController("clr") }

// FrontPanel returns the addressed instrument to local (front panel) control
// if local is true.
func (c *Controller) FrontPanel(local bool) error {
	if !local {
		return nil
	}
	return c.CommandController("loc")
}

// Version queries the controller firmware version.
func (c *Controller) Version() (string, error) { return c.QueryController("ver") }

func readTimeoutCmd(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	if ms > 3000 {
		ms = 3000
	}
	return fmt.Sprintf("read_tmo_ms %d", ms)
}

// escape prefixes the characters the Prologix would otherwise strip from
// data (CR, LF, ESC and '+') with ESC.
func escape(s string) string {
	if !strings.ContainsAny(s, "\r\n\x1b+") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\r', '\n', 0x1b, '+':
			b.WriteByte(0x1b)
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// GpibTerm provides the type for the available GPIB terminators.
type GpibTerm int

// Available GPIB terminators for the Prologix Controller.
const (
	AppendCRLF GpibTerm = iota
	AppendCR
	AppendLF
	AppendNothing
)

var gpibTermDesc = map[GpibTerm]string{
	AppendCRLF:    `Append CR+LF (\r\n) to instrument commands`,
	AppendCR:      `Append CR (\r) to instrument commands`,
	AppendLF:      `Append LF (\n) to instrument commands`,
	AppendNothing: `Do not append anything to instrument commands`,
}

func (term GpibTerm) String() string {
	return gpibTermDesc[term]
}

// isPrimaryAddressValid checks that the primary GPIB address is between 0 and
// 30, inclusive.
func isPrimaryAddressValid(addr int) bool {
	return addr >= 0 && addr <= 30
}

// isSecondaryAddressValid checks that the secondary GPIB address is between 96
// and 126, inclusive.
func isSecondaryAddressValid(addr int) bool {
	return addr >= 96 && addr <= 126
}
