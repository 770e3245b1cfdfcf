// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package registry

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gotmc/labequip"
	"github.com/gotmc/labequip/functiongenerator"
	"github.com/gotmc/labequip/labequiptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	addr1 = "TCPIP0::10.0.0.1::5025::SOCKET"
	addr2 = "TCPIP0::10.0.0.2::5025::SOCKET"
	addr3 = "TCPIP0::10.0.0.3::5025::SOCKET"
)

// threeDevices returns a configuration of three generic instruments and a
// bench on which all three are reachable.
func threeDevices(t *testing.T) (*Config, *labequiptest.Bench) {
	t.Helper()
	cfg := &Config{}
	bench := labequiptest.NewBench()
	for i, a := range []string{addr1, addr2, addr3} {
		require.NoError(t, cfg.Add(Entry{
			Name:       []string{"one", "two", "three"}[i],
			Object:     "Instrument",
			Definition: "labequip",
			Address:    a,
		}))
		bench.Add(a, &labequiptest.Fake{})
	}
	return cfg, bench
}

func TestMaskMissingNames(t *testing.T) {
	cfg, bench := threeDevices(t)
	_, err := New(context.Background(), cfg,
		WithResourceManager(bench.Manager()),
		WithMask("two", "psu", "load", "psu"))
	require.ErrorIs(t, err, labequip.ErrConfiguration)

	var missing *labequip.MissingEquipmentError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"load", "psu"}, missing.Names)
	assert.Zero(t, bench.Opens)
}

func TestUnmaskedUnreachableSkipped(t *testing.T) {
	cfg, bench := threeDevices(t)
	bench.Unplug(addr2)
	var out bytes.Buffer

	r, err := New(context.Background(), cfg, WithResourceManager(bench.Manager()), WithVerbose(&out))
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "three"}, r.Names())
	assert.Equal(t, 2, r.Len())
	_, ok := r.Device("two")
	assert.False(t, ok)

	require.Len(t, r.Failures(), 1)
	var derr *labequip.DeviceError
	require.ErrorAs(t, r.Failures()[0], &derr)
	assert.Equal(t, "two", derr.Name)
	assert.ErrorIs(t, derr, labequip.ErrConnection)

	assert.Equal(t, "[CONNECTED] one\n[FAILED CONNECTION] two\n[CONNECTED] three\n", out.String())

	require.NoError(t, r.Close())
	assert.Equal(t, 1, bench.Devices[addr1].Closes)
	assert.Equal(t, 1, bench.Devices[addr3].Closes)
	assert.Zero(t, r.Len())
}

func TestMaskedUnreachableAborts(t *testing.T) {
	cfg, bench := threeDevices(t)
	bench.Unplug(addr2)

	r, err := New(context.Background(), cfg,
		WithResourceManager(bench.Manager()),
		WithMask("one", "two", "three"))
	assert.Nil(t, r)
	require.ErrorIs(t, err, labequip.ErrConnection)
	var derr *labequip.DeviceError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "two", derr.Name)

	// The device opened before the failure is released; the one after it is
	// never attempted.
	assert.Equal(t, 1, bench.Devices[addr1].Closes)
	assert.Equal(t, 2, bench.Opens)
}

func TestMaskDropsOtherEntries(t *testing.T) {
	cfg, bench := threeDevices(t)
	bench.Unplug(addr2)

	r, err := New(context.Background(), cfg,
		WithResourceManager(bench.Manager()),
		WithMask("three", "one"))
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "three"}, r.Names())
	assert.Empty(t, r.Failures())
}

func TestUnsupportedDevice(t *testing.T) {
	cfg, bench := threeDevices(t)
	cfg.Entries[1].Object = "Chroma_62012P"
	var out bytes.Buffer

	r, err := New(context.Background(), cfg, WithResourceManager(bench.Manager()), WithVerbose(&out))
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "three"}, r.Names())
	require.Len(t, r.Failures(), 1)
	assert.ErrorIs(t, r.Failures()[0], labequip.ErrUnsupportedDevice)
	assert.Contains(t, out.String(), "[UNSUPPORTED DEVICE] two\t")

	_, err = New(context.Background(), cfg, WithResourceManager(bench.Manager()), WithMask("two"))
	assert.ErrorIs(t, err, labequip.ErrUnsupportedDevice)
}

func TestConstructorMismatchIsFatal(t *testing.T) {
	cfg, bench := threeDevices(t)
	cfg.Entries[2].Kwargs = labequip.Args{"baud": 9600}

	r, err := New(context.Background(), cfg, WithResourceManager(bench.Manager()))
	assert.Nil(t, r)
	assert.ErrorIs(t, err, labequip.ErrArgumentMismatch)
	assert.Equal(t, 1, bench.Devices[addr1].Closes)
	assert.Equal(t, 1, bench.Devices[addr2].Closes)
}

func TestSessionOptions(t *testing.T) {
	cfg, bench := threeDevices(t)
	cfg.Entries[0].Kwargs = labequip.Args{"timeout": 2000}

	r, err := New(context.Background(), cfg,
		WithResourceManager(bench.Manager()),
		WithSessionOptions(labequip.WithTimeout(4*time.Second)))
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 2*time.Second, bench.Devices[addr1].Timeout)
	assert.Equal(t, 4*time.Second, bench.Devices[addr2].Timeout)
	assert.Equal(t, 4*time.Second, bench.Devices[addr3].Timeout)
}

func TestInitSequence(t *testing.T) {
	cfg, bench := threeDevices(t)
	cfg.Entries[0].Init = []InitStep{
		{Method: "reset"},
		{Method: "self_destruct"},
		{Method: "write", Args: labequip.Args{"cmd": "OUTP ON"}},
		{Method: "write", Args: labequip.Args{"command": "OUTP ON"}},
		{Method: "clear_status", Args: labequip.Args{"now": true}},
	}
	cfg.Entries[1].Init = []InitStep{{Method: "clear_status"}}
	var out bytes.Buffer

	_, err := New(context.Background(), cfg, WithResourceManager(bench.Manager()), WithVerbose(&out))
	require.NoError(t, err)
	assert.Empty(t, bench.Devices[addr1].Written, "init runs only when requested")

	out.Reset()
	r, err := New(context.Background(), cfg,
		WithResourceManager(bench.Manager()),
		WithVerbose(&out),
		WithInit())
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"*RST", "OUTP ON"}, bench.Devices[addr1].Written)
	assert.Equal(t, []string{"*CLS"}, bench.Devices[addr2].Written)
	assert.Empty(t, bench.Devices[addr3].Written)

	lines := out.String()
	assert.Contains(t, lines, "[CONNECTED] one\n")
	assert.Contains(t, lines, "\tUnknown initialization command self_destruct\n")
	assert.Contains(t, lines, "\tError with initialization command write:\t")
	assert.Contains(t, lines, "\tError with initialization command clear_status:\t")
	assert.Contains(t, lines, "[CONNECTED] two\n\tInitialized\n[CONNECTED] three\n")
}

func TestInitFailureAborts(t *testing.T) {
	cfg, bench := threeDevices(t)
	cfg.Entries[1].Init = []InitStep{{Method: "reset"}}
	bench.Devices[addr2].WriteErr = errors.New("broken pipe")

	r, err := New(context.Background(), cfg, WithResourceManager(bench.Manager()), WithInit())
	assert.Nil(t, r)
	assert.ErrorIs(t, err, labequip.ErrConnection)
	assert.ErrorContains(t, err, "init reset")
	assert.Equal(t, 1, bench.Devices[addr1].Closes)
	assert.Equal(t, 1, bench.Devices[addr2].Closes)
	assert.Zero(t, bench.Devices[addr3].Closes)
}

func TestDriversFromFile(t *testing.T) {
	cfg, err := ParseJSON([]byte(benchJSON))
	require.NoError(t, err)
	bench := labequiptest.NewBench()
	fg := bench.Add("TCPIP0::10.0.0.5::5025::SOCKET", labequiptest.NewEcho())
	scope := bench.Add("TCPIP0::10.0.0.8::INSTR", &labequiptest.Fake{})
	bench.Add("GPIB0::10::INSTR", &labequiptest.Fake{})

	r, err := New(context.Background(), cfg, WithResourceManager(bench.Manager()), WithInit())
	require.NoError(t, err)
	defer r.Close()

	gen, err := Get[*functiongenerator.Keysight33500B](r, "source_v_in")
	require.NoError(t, err)
	assert.Equal(t, "Keysight33500B(TCPIP0::10.0.0.5::5025::SOCKET, timeout=2s)", gen.String())
	assert.Equal(t, []string{"SOUR1:VOLT 0", "*RST"}, fg.Written)
	assert.Equal(t, []string{"CHDR SHORT"}, scope.Written)

	_, err = Get[*functiongenerator.Keysight33500B](r, "scope")
	assert.ErrorIs(t, err, labequip.ErrConfiguration)
	_, err = Get[*labequip.Instrument](r, "dmm")
	assert.ErrorIs(t, err, labequip.ErrConfiguration)
	aux, err := Get[*labequip.Instrument](r, "aux")
	require.NoError(t, err)
	assert.Equal(t, "GPIB0::10::INSTR", aux.Address())
}

func TestCancelledContext(t *testing.T) {
	cfg, bench := threeDevices(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(ctx, cfg, WithResourceManager(bench.Manager()))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, bench.Opens)
}

func TestCatalog(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, []string{
		"labequip.Instrument",
		"labequip.functiongenerator.Keysight_33500B",
		"labequip.oscilloscope.Lecroy_WR8xxx",
	}, c.Drivers())
	_, err := c.Lookup("labequip.source", "Chroma_62012P")
	assert.ErrorIs(t, err, labequip.ErrUnsupportedDevice)
}
