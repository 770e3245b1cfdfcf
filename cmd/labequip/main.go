// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Command labequip finds, identifies and talks to bench instruments.
//
// Usage:
//
//	labequip list     [flags]             list reachable resources
//	labequip identify [flags]             ask every resource for *IDN?
//	labequip discover [-scan targets]     browse mDNS and scan for LAN instruments
//	labequip connect  [flags] config      open the equipment in a configuration file
//	labequip shell    [flags] [address]   interactive SCPI session
//	labequip runs     [-name n] catalog   list recorded test runs
//	labequip replay   transcript          print a recorded session
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gotmc/labequip"
	"github.com/gotmc/labequip/datalog"
	"github.com/gotmc/labequip/discovery"
	"github.com/gotmc/labequip/lib/cmdlog"
	"github.com/gotmc/labequip/lib/connutil"
	"github.com/gotmc/labequip/registry"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string) error
}

var commands = []command{
	{"list", "list reachable resources", cmdList},
	{"identify", "ask every reachable resource for *IDN?", cmdIdentify},
	{"discover", "browse mDNS and optionally scan the network for instruments", cmdDiscover},
	{"connect", "open the equipment named in a configuration file", cmdConnect},
	{"shell", "interactive SCPI session", cmdShell},
	{"runs", "list the test runs recorded in a catalog", cmdRuns},
	{"replay", "print a recorded session transcript", cmdReplay},
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: labequip <command> [flags]\n\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-9s %s\n", c.name, c.usage)
	}
}

func main() {
	log.SetFlags(log.Lmicroseconds)
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	name := os.Args[1]
	for _, c := range commands {
		if c.name == name {
			if err := c.run(ctx, os.Args[2:]); err != nil {
				if errors.Is(err, flag.ErrHelp) {
					os.Exit(2)
				}
				connutil.Fatal(err)
			}
			return
		}
	}
	usage()
	os.Exit(2)
}

// setup parses the connection flags plus any extra ones registered by the
// caller.
func setup(name string, args []string, extra func(*flag.FlagSet)) (*connutil.Session, *flag.FlagSet, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	var c connutil.Conn
	c.AddFlags(fs)
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	s, err := c.Setup()
	return s, fs, err
}

func cmdList(ctx context.Context, args []string) error {
	s, _, err := setup("list", args, nil)
	if err != nil {
		return err
	}
	defer s.Close()
	addrs, err := s.Manager.ListResources(ctx)
	for _, a := range addrs {
		fmt.Println(a)
	}
	if err != nil {
		log.Printf("list: %v", err)
	}
	return nil
}

func cmdIdentify(ctx context.Context, args []string) error {
	s, _, err := setup("identify", args, nil)
	if err != nil {
		return err
	}
	defer s.Close()
	found, err := s.Manager.IdentifyDevices(ctx, os.Stdout, s.Options...)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Println("no instruments answered")
	}
	return nil
}

func cmdDiscover(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	browse := fs.Duration("browse", discovery.DefaultBrowseTime, "how long to browse mDNS")
	scan := fs.String("scan", "", "comma separated nmap targets, such as 192.168.1.0/24")
	if err := fs.Parse(args); err != nil {
		return err
	}
	bctx, cancel := context.WithTimeout(ctx, *browse)
	defer cancel()
	found, err := discovery.BrowseLXI(bctx)
	if err != nil {
		return err
	}
	if *scan != "" {
		more, err := discovery.ScanSubnet(ctx, strings.Split(*scan, ","))
		if err != nil {
			return err
		}
		found = append(found, more...)
	}
	for _, f := range found {
		fmt.Println(f)
	}
	return nil
}

func cmdConnect(ctx context.Context, args []string) error {
	var (
		mask    string
		runInit bool
		verbose bool
	)
	s, fs, err := setup("connect", args, func(fs *flag.FlagSet) {
		fs.StringVar(&mask, "mask", "", "comma separated names of the equipment to open; all others are skipped")
		fs.BoolVar(&runInit, "init", false, "run each entry's initialization steps")
		fs.BoolVar(&verbose, "v", true, "print connection progress")
	})
	if err != nil {
		return err
	}
	defer s.Close()
	if fs.NArg() != 1 {
		return &labequip.ArgumentError{Op: "connect", Arg: "configuration file", Value: fs.Args()}
	}
	opts := []registry.Option{
		registry.WithResourceManager(s.Manager),
		registry.WithSessionOptions(s.Options...),
	}
	if mask != "" {
		opts = append(opts, registry.WithMask(strings.Split(mask, ",")...))
	}
	if runInit {
		opts = append(opts, registry.WithInit())
	}
	if verbose {
		opts = append(opts, registry.WithVerbose(os.Stdout))
	}
	reg, err := registry.Open(ctx, fs.Arg(0), opts...)
	if err != nil {
		return err
	}
	defer reg.Close()
	for _, name := range reg.Names() {
		dev, _ := reg.Device(name)
		fmt.Printf("%s\t%v\n", name, dev)
	}
	for _, err := range reg.Failures() {
		fmt.Printf("skipped: %v\n", err)
	}
	return nil
}

func cmdShell(ctx context.Context, args []string) error {
	s, fs, err := setup("shell", args, nil)
	if err != nil {
		return err
	}
	defer s.Close()
	sh, err := newShell(s.Manager, s.Options)
	if err != nil {
		return err
	}
	defer sh.close()
	if fs.NArg() > 0 {
		sh.open(ctx, fs.Arg(0))
	}
	sh.run(ctx)
	return nil
}

func cmdRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	name := fs.String("name", "", "only runs with this test name")
	since := fs.Duration("since", 0, "only runs started within this long")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return &labequip.ArgumentError{Op: "runs", Arg: "catalog", Value: fs.Args()}
	}
	cat, err := datalog.OpenCatalog(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	defer cat.Close()
	var from time.Time
	if *since > 0 {
		from = time.Now().Add(-*since)
	}
	runs, err := cat.Runs(ctx, *name, from)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  %-16s %s\n", r.ID, r.Started.Format(datalog.RunTimeLayout), r.Name, r.Dir)
	}
	return nil
}

func cmdReplay(_ context.Context, args []string) error {
	if len(args) != 1 {
		return &labequip.ArgumentError{Op: "replay", Arg: "transcript", Value: args}
	}
	return replay(os.Stdout, args[0])
}

func replay(w io.Writer, path string) error {
	entries, err := cmdlog.ReadFile(path)
	for _, e := range entries {
		fmt.Fprintln(w, e)
	}
	return err
}
