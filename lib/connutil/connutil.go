// Package connutil holds the command line plumbing shared by the labequip
// tools: the flags that pick a GPIB controller and session options, and the
// resource manager built from them.
package connutil

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gotmc/labequip"
	"github.com/gotmc/labequip/discovery"
	"github.com/gotmc/labequip/driver/asrl"
	"github.com/gotmc/labequip/driver/prologix"
	"github.com/gotmc/labequip/driver/tcpip"
	"github.com/gotmc/labequip/lib/cmdlog"
	"github.com/gotmc/labequip/lib/find"
	"go.uber.org/multierr"
)

// findPort locates a Prologix controller; replaced in tests.
var findPort = func() (string, error) { return find.Find(find.PrologixFilter) }

type Conn struct {
	SerialPort string
	Timeout    time.Duration
	Debug      bool
	AR488      bool
	Transcript string
	MDNS       bool
	Scan       string

	finderr error
}

// AddFlags is to be called before [flag.FlagSet.Parse]. The -port default is
// the Prologix controller found on the USB bus, if exactly one is plugged in.
func (c *Conn) AddFlags(fs *flag.FlagSet) {
	var tty string
	tty, c.finderr = findPort()
	if c.SerialPort == "" {
		c.SerialPort = tty
	}
	if c.Timeout == 0 {
		c.Timeout = labequip.DefaultTimeout
	}
	fs.StringVar(&c.SerialPort, "port", c.SerialPort, "serial port of the Prologix GPIB controller (empty disables GPIB)")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "instrument response timeout")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "log every message exchanged")
	fs.BoolVar(&c.AR488, "ar488", c.AR488, "the GPIB controller is an AR488 clone")
	fs.StringVar(&c.Transcript, "transcript", c.Transcript, "append a CBOR transcript of the session to this file")
	fs.BoolVar(&c.MDNS, "mdns", c.MDNS, "also list LXI instruments advertised over mDNS")
	fs.StringVar(&c.Scan, "scan", c.Scan, "also list raw socket instruments found by an nmap scan of these comma separated targets")
}

// Session is the resource manager and session options built by Setup.
type Session struct {
	Manager *labequip.ResourceManager
	Options []labequip.Option
	Bus     *prologix.Bus

	closers []io.Closer
}

// Close releases the transcript file, if any.
func (s *Session) Close() error {
	var err error
	for i := len(s.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, s.closers[i].Close())
	}
	s.closers = nil
	return err
}

// Setup is to be called after the flags are parsed.
func (c *Conn) Setup() (*Session, error) {
	if c.Timeout <= 0 {
		return nil, &labequip.ArgumentError{Op: "setup", Arg: "timeout", Value: c.Timeout}
	}
	s := &Session{Manager: labequip.NewResourceManager()}
	rm := s.Manager
	rm.Register(labequip.InterfaceTCPIP, tcpip.Open)
	rm.Register(labequip.InterfaceASRL, asrl.Opener(asrl.DefaultMode))
	rm.RegisterLister(asrl.List)

	if c.SerialPort != "" {
		var opts []prologix.ControllerOption
		if c.Debug {
			opts = append(opts, prologix.WithDebug())
		}
		if c.AR488 {
			opts = append(opts, prologix.WithAR488())
		}
		s.Bus = prologix.Register(rm, c.SerialPort, opts...)
		if c.Debug {
			log.Printf("GPIB controller on %s", c.SerialPort)
		}
	} else if c.finderr != nil && c.Debug {
		log.Printf("no GPIB controller: %s", c.finderr)
	}
	if c.MDNS {
		rm.RegisterLister(discovery.MDNSLister())
	}
	if c.Scan != "" {
		rm.RegisterLister(discovery.NmapLister(strings.Split(c.Scan, ",")))
	}

	s.Options = append(s.Options, labequip.WithTimeout(c.Timeout))
	var recs []labequip.Recorder
	if c.Debug {
		recs = append(recs, cmdlog.Printer{})
	}
	if c.Transcript != "" {
		t, err := cmdlog.Create(c.Transcript)
		if err != nil {
			return nil, fmt.Errorf("transcript: %w", err)
		}
		s.closers = append(s.closers, t)
		recs = append(recs, t)
	}
	switch len(recs) {
	case 0:
	case 1:
		s.Options = append(s.Options, labequip.WithRecorder(recs[0]))
	default:
		s.Options = append(s.Options, labequip.WithRecorder(cmdlog.Tee(recs...)))
	}
	return s, nil
}

// Fatal prints err and exits with status 1, or 2 for invalid arguments and
// configuration errors.
func Fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	if errors.Is(err, labequip.ErrInvalidArgument) || errors.Is(err, labequip.ErrConfiguration) {
		os.Exit(2)
	}
	os.Exit(1)
}
