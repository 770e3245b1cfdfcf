// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/gotmc/labequip"
	"github.com/gotmc/labequip/labequiptest"
	"github.com/gotmc/labequip/lib/cmdlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type script struct {
	lines  []string
	out    bytes.Buffer
	prompt string
	closed bool
}

func (s *script) Readline() (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	l := s.lines[0]
	s.lines = s.lines[1:]
	return l, nil
}

func (s *script) Stdout() io.Writer { return &s.out }

func (s *script) Close() error {
	s.closed = true
	return nil
}

func (s *script) SetPrompt(p string) { s.prompt = p }

const fgAddr = "TCPIP0::10.0.0.5::5025::SOCKET"

func TestShellSession(t *testing.T) {
	bench := labequiptest.NewBench()
	fg := bench.Add(fgAddr, labequiptest.NewEcho().Reply("*IDN?", "Agilent Technologies,33522B,MY1,4.0"))
	in := &script{lines: []string{
		"idn",
		"open " + fgAddr,
		"idn",
		"SOUR1:FREQ 1000",
		"SOUR1:FREQ?",
		"timeout 2s",
		"timeout soon",
		"close",
		"exit",
		"never reached",
	}}
	sh := &shell{rm: bench.Manager(), rl: in}
	sh.run(context.Background())

	assert.Equal(t, []string{"never reached"}, in.lines)
	assert.Equal(t, []string{"*IDN?", "SOUR1:FREQ 1000", "SOUR1:FREQ?"}, fg.Written)
	assert.Equal(t, 1, fg.Closes)
	assert.Equal(t, "> ", in.prompt)
	out := in.out.String()
	assert.Contains(t, out, "no open session")
	assert.Contains(t, out, "Agilent Technologies,33522B,MY1,4.0\n")
	assert.Contains(t, out, "1000\n")
	assert.Contains(t, out, `error: time: invalid duration "soon"`)
}

func TestShellOpenFailureKeepsSession(t *testing.T) {
	bench := labequiptest.NewBench()
	fg := bench.Add(fgAddr, labequiptest.NewEcho())
	in := &script{}
	sh := &shell{rm: bench.Manager(), rl: in}
	ctx := context.Background()

	sh.open(ctx, fgAddr)
	require.NotNil(t, sh.inst)
	assert.Equal(t, fgAddr+"> ", in.prompt)

	sh.open(ctx, "TCPIP0::10.0.0.99::5025::SOCKET")
	assert.Equal(t, fgAddr, sh.inst.Address())
	assert.Contains(t, in.out.String(), "error: ")

	sh.close()
	assert.Equal(t, 1, fg.Closes)
	assert.True(t, in.closed)
}

func TestShellList(t *testing.T) {
	bench := labequiptest.NewBench()
	bench.Add(fgAddr, labequiptest.NewEcho())
	in := &script{lines: []string{"list"}}
	sh := &shell{rm: bench.Manager(), rl: in}
	sh.run(context.Background())
	assert.Equal(t, fgAddr+"\n", in.out.String())
}

func TestIsQuery(t *testing.T) {
	assert.True(t, isQuery("*IDN?"))
	assert.True(t, isQuery("OUTP ON;:SOUR1:VOLT?"))
	assert.False(t, isQuery("DISP:TEXT \"why?\""))
	assert.False(t, isQuery("*RST"))
}

func TestReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.cbor")
	tr, err := cmdlog.Create(path)
	require.NoError(t, err)
	inst := labequiptest.Open(fgAddr, labequiptest.NewEcho(), labequip.WithRecorder(tr))
	require.NoError(t, inst.Write("OUTP ON"))
	require.NoError(t, tr.Close())

	var buf bytes.Buffer
	require.NoError(t, replay(&buf, path))
	assert.Contains(t, buf.String(), fgAddr+` <- "OUTP ON"`)
}
