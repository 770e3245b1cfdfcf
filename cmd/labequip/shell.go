// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/gotmc/labequip"
)

// lineReader is the part of *readline.Instance the shell uses.
type lineReader interface {
	Readline() (string, error)
	Stdout() io.Writer
	Close() error
}

type shell struct {
	rm   *labequip.ResourceManager
	opts []labequip.Option
	rl   lineReader
	inst *labequip.Instrument
}

func newShell(rm *labequip.ResourceManager, opts []labequip.Option) (*shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("open"),
			readline.PcItem("close"),
			readline.PcItem("list"),
			readline.PcItem("idn"),
			readline.PcItem("read"),
			readline.PcItem("timeout"),
			readline.PcItem("help"),
			readline.PcItem("exit"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &shell{rm: rm, opts: opts, rl: rl}, nil
}

func (sh *shell) printf(format string, a ...any) {
	fmt.Fprintf(sh.rl.Stdout(), format, a...)
}

func (sh *shell) prompt() {
	if p, ok := sh.rl.(interface{ SetPrompt(string) }); ok {
		if sh.inst == nil {
			p.SetPrompt("> ")
		} else {
			p.SetPrompt(sh.inst.Address() + "> ")
		}
	}
}

func (sh *shell) close() {
	if sh.inst != nil {
		sh.inst.Close()
		sh.inst = nil
	}
	sh.rl.Close()
}

func (sh *shell) printHelp() {
	sh.printf(`Commands:
  open <address>    open a session, closing the current one
  close             close the current session
  list              list reachable resources
  idn               query *IDN?
  read              read one more response line
  timeout <dur>     set the response timeout, such as 2s
  help              show this help
  exit              leave the shell
Anything else is sent to the instrument. Commands whose header ends in '?'
print the response.
`)
}

// run reads commands until exit, end of input or cancellation.
func (sh *shell) run(ctx context.Context) {
	for ctx.Err() == nil {
		line, err := sh.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			return
		}
		if !sh.exec(ctx, strings.TrimSpace(line)) {
			return
		}
	}
}

// exec runs one command line and reports whether the shell should go on.
func (sh *shell) exec(ctx context.Context, line string) bool {
	if line == "" {
		return true
	}
	word, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(word) {
	case "exit", "quit":
		return false
	case "help":
		sh.printHelp()
	case "open":
		sh.open(ctx, rest)
	case "close":
		if sh.inst != nil {
			sh.report(sh.inst.Close())
			sh.inst = nil
			sh.prompt()
		}
	case "list":
		addrs, err := sh.rm.ListResources(ctx)
		for _, a := range addrs {
			sh.printf("%s\n", a)
		}
		sh.report(err)
	case "idn":
		if sh.session() {
			s, err := sh.inst.Identify()
			sh.reply(s, err)
		}
	case "read":
		if sh.session() {
			s, err := sh.inst.Read()
			sh.reply(s, err)
		}
	case "timeout":
		if sh.session() {
			d, err := time.ParseDuration(rest)
			if err == nil {
				err = sh.inst.SetTimeout(d)
			}
			sh.report(err)
		}
	default:
		if !sh.session() {
			break
		}
		if isQuery(line) {
			s, err := sh.inst.Query(line)
			sh.reply(s, err)
		} else {
			sh.report(sh.inst.Write(line))
		}
	}
	return true
}

func (sh *shell) open(ctx context.Context, address string) {
	if address == "" {
		sh.printf("usage: open <address>\n")
		return
	}
	inst, err := sh.rm.Open(ctx, address, sh.opts...)
	if err != nil {
		sh.report(err)
		return
	}
	if sh.inst != nil {
		sh.inst.Close()
	}
	sh.inst = inst
	sh.prompt()
}

func (sh *shell) session() bool {
	if sh.inst == nil {
		sh.printf("no open session, use: open <address>\n")
		return false
	}
	return true
}

func (sh *shell) reply(s string, err error) {
	if err != nil {
		sh.report(err)
		return
	}
	sh.printf("%s\n", s)
}

func (sh *shell) report(err error) {
	if err != nil {
		sh.printf("error: %v\n", err)
	}
}

// isQuery reports whether any header of a possibly compound command ends in
// '?'.
func isQuery(line string) bool {
	for _, cmd := range strings.Split(line, ";") {
		header, _, _ := strings.Cut(strings.TrimSpace(cmd), " ")
		if strings.HasSuffix(header, "?") {
			return true
		}
	}
	return false
}
