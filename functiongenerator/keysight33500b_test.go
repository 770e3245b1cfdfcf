// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package functiongenerator

import (
	"testing"

	"github.com/gotmc/labequip"
	"github.com/gotmc/labequip/labequiptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addr = "TCPIP0::10.0.0.5::5025::SOCKET"

func newFG(f *labequiptest.Fake) *Keysight33500B {
	return New(labequiptest.Open(addr, f))
}

func TestFrequencyRoundTrip(t *testing.T) {
	for _, hz := range []float64{0, 1e3, 2.5e6} {
		f := labequiptest.NewEcho()
		fg := newFG(f)
		require.NoError(t, fg.SetFrequency(1, hz))
		got, err := fg.Frequency(1)
		require.NoError(t, err)
		assert.Equal(t, hz, got)
	}
}

func TestCommands(t *testing.T) {
	f := labequiptest.NewEcho()
	fg := newFG(f)

	require.NoError(t, fg.SetVoltage(1, 2.5))
	require.NoError(t, fg.SetVoltageOffset(2, -0.5))
	require.NoError(t, fg.SetVoltageHigh(1, 3.3))
	require.NoError(t, fg.SetVoltageLow(1, 0))
	require.NoError(t, fg.SetWaveType(1, "sin"))
	require.NoError(t, fg.SetPulseDutyCycle(1, 25))
	require.NoError(t, fg.SetPulseWidth(1, 1e-6))
	require.NoError(t, fg.SetPulsePeriod(1, 1e-3))
	require.NoError(t, fg.SetPulseEdgeTime(1, "both", 1e-8))
	require.NoError(t, fg.SetPulseEdgeTime(1, "rising", 2e-8))
	require.NoError(t, fg.SetPulseEdgeTime(1, "F", 3e-8))
	require.NoError(t, fg.SetPulseHold(1, "widt"))
	require.NoError(t, fg.SetSquareDutyCycle(1, 50))
	require.NoError(t, fg.SetSquarePeriod(1, 0.01))
	require.NoError(t, fg.SetBurstMode(1, "gat"))
	require.NoError(t, fg.SetBurstGatePolarity(1, "INV"))
	require.NoError(t, fg.SetBurstState(1, true))
	require.NoError(t, fg.SetOutputState(2, false))
	require.NoError(t, fg.SetDisplayText("Test 4"))
	require.NoError(t, fg.ClearDisplayText())

	assert.Equal(t, []string{
		"SOUR1:VOLT 2.5",
		"SOUR2:VOLT:OFFS -0.5",
		"SOUR1:VOLT:HIGH 3.3",
		"SOUR1:VOLT:LOW 0",
		"SOUR1:FUNC SIN",
		"SOUR1:FUNC:PULSE:DCYC 25",
		"SOUR1:FUNC:PULSE:WIDT 1e-06",
		"SOUR1:FUNC:PULSE:PER 0.001",
		"SOUR1:FUNC:PULSE:TRAN 1e-08",
		"SOUR1:FUNC:PULSE:TRAN:LEAD 2e-08",
		"SOUR1:FUNC:PULSE:TRAN:TRA 3e-08",
		"SOUR1:FUNC:PULSE:HOLD WIDT",
		"SOUR1:FUNC:SQU:DCYC 50",
		"SOUR1:FUNC:SQU:PER 0.01",
		"SOUR1:BURS:MODE GAT",
		"SOUR1:BURS:GATE:POL INV",
		"SOUR1:BURS:STAT 1",
		"OUTP2 0",
		`DISP:TEXT "Test 4"`,
		`DISP:TEXT ""`,
	}, f.Written)
}

func TestEnumRejectedBeforeWrite(t *testing.T) {
	f := labequiptest.NewEcho()
	fg := newFG(f)

	bad := map[string]func() error{
		"wave type":    func() error { return fg.SetWaveType(1, "SAW") },
		"burst mode":   func() error { return fg.SetBurstMode(1, "EXT") },
		"polarity":     func() error { return fg.SetBurstGatePolarity(1, "POS") },
		"pulse hold":   func() error { return fg.SetPulseHold(1, "PER") },
		"edge":         func() error { return fg.SetPulseEdgeTime(1, "MIDDLE", 1e-8) },
		"ncycles kw":   func() error { return fg.SetBurstNCycles(1, labequip.Sentinel("LOTS")) },
		"ncycles frac": func() error { return fg.SetBurstNCycles(1, labequip.Num(2.5)) },
		"phase kw":     func() error { return fg.SetBurstPhase(1, labequip.Sentinel("INF")) },
		"impedance kw": func() error { return fg.SetOutputImpedance(1, labequip.Sentinel("HIGHZ")) },
		"waveform": func() error {
			wt := "saw"
			return fg.SetWaveformConfig(1, WaveformUpdate{WaveType: &wt})
		},
		"source":       func() error { return fg.SetFrequency(3, 1e3) },
		"display text": func() error { return fg.SetDisplayText(`say "hi"`) },
	}
	for name, fn := range bad {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, fn(), labequip.ErrInvalidArgument)
		})
	}
	assert.Zero(t, f.Writes())
}

func TestSentinels(t *testing.T) {
	f := labequiptest.NewEcho()
	fg := newFG(f)

	require.NoError(t, fg.SetBurstNCycles(1, labequip.Sentinel("inf")))
	require.NoError(t, fg.SetBurstNCycles(1, labequip.Num(100)))
	require.NoError(t, fg.SetBurstPhase(1, labequip.Sentinel("min")))
	require.NoError(t, fg.SetBurstPhase(1, labequip.Num(90)))
	require.NoError(t, fg.SetOutputImpedance(1, labequip.Sentinel("INF")))
	require.NoError(t, fg.SetOutputImpedance(1, labequip.Num(50)))
	assert.Equal(t, []string{
		"SOUR1:BURS:NCYC INF",
		"SOUR1:BURS:NCYC 100",
		"SOUR1:BURS:PHASE MIN",
		"SOUR1:BURS:PHASE 90",
		"OUTP1:LOAD INF",
		"OUTP1:LOAD 50",
	}, f.Written)
}

func TestGetters(t *testing.T) {
	f := (&labequiptest.Fake{}).
		Reply("SOUR1:APPL?", `"SQU +1.000000000000000E+03,+2.000000000000000E+00,-1.000000000000000E-01"`).
		Reply("SOUR1:FUNC?", "SQU").
		Reply("SOUR1:BURS:MODE?", "TRIG").
		Reply("SOUR1:BURS:NCYC?", "+1.000000000E+02").
		Reply("SOUR2:BURS:NCYC?", "+9.900000000E+37").
		Reply("SOUR1:BURS:STAT?", "0").
		Reply("SOUR1:FUNC:PULSE:TRAN:LEAD?", "+1.0E-08").
		Reply("SOUR1:FUNC:PULSE:TRAN:TRA?", "+2.0E-08").
		Reply("OUTP1?", "1").
		Reply("OUTP1:LOAD?", "+9.9E+37").
		Reply("UNIT:ANGL?", "DEG").
		Reply("DISP:TEXT?", `"Test 4"`)
	fg := newFG(f)

	cfg, err := fg.WaveformConfig(1)
	require.NoError(t, err)
	assert.Equal(t, WaveformConfig{WaveType: "squ", Frequency: 1e3, Amplitude: 2, Offset: -0.1}, cfg)

	wt, err := fg.WaveType(1)
	require.NoError(t, err)
	assert.Equal(t, "squ", wt)

	mode, err := fg.BurstMode(1)
	require.NoError(t, err)
	assert.Equal(t, "trig", mode)

	n, err := fg.BurstNCycles(1)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	n, err = fg.BurstNCycles(2)
	require.NoError(t, err)
	assert.Equal(t, InfiniteCycles, n)

	on, err := fg.BurstState(1)
	require.NoError(t, err)
	assert.False(t, on)

	lead, trail, err := fg.PulseEdgeTimes(1)
	require.NoError(t, err)
	assert.Equal(t, 1e-8, lead)
	assert.Equal(t, 2e-8, trail)

	_, err = fg.PulseEdgeTime(1, "BOTH")
	assert.ErrorIs(t, err, labequip.ErrInvalidArgument)

	on, err = fg.OutputState(1)
	require.NoError(t, err)
	assert.True(t, on)

	z, err := fg.OutputImpedance(1)
	require.NoError(t, err)
	assert.Equal(t, 9.9e37, z)

	unit, err := fg.AngleUnit()
	require.NoError(t, err)
	assert.Equal(t, "deg", unit)

	txt, err := fg.DisplayText()
	require.NoError(t, err)
	assert.Equal(t, "Test 4", txt)
}

func TestWaveformConfigBadReply(t *testing.T) {
	for _, reply := range []string{`"SIN"`, `"SIN 1,2"`, `"SIN 1,x,3"`} {
		fg := newFG((&labequiptest.Fake{}).Reply("SOUR1:APPL?", reply))
		_, err := fg.WaveformConfig(1)
		assert.ErrorIs(t, err, labequip.ErrInvalidResponse, reply)
	}
}

func TestSetWaveformConfigFillsUnset(t *testing.T) {
	f := (&labequiptest.Fake{}).
		Reply("SOUR1:FUNC?", "RAMP").
		Reply("SOUR1:VOLT?", "+1.0E+00").
		Reply("SOUR1:VOLT:OFFS?", "+0.0E+00")
	fg := newFG(f)

	freq := 5e3
	require.NoError(t, fg.SetWaveformConfig(1, WaveformUpdate{Frequency: &freq}))
	assert.Equal(t, []string{
		"SOUR1:FUNC?",
		"SOUR1:VOLT?",
		"SOUR1:VOLT:OFFS?",
		"SOUR1:APPL:RAMP 5000, 1, 0",
	}, f.Written)
}

func TestInitSteps(t *testing.T) {
	f := labequiptest.NewEcho()
	fg := newFG(f)
	steps := fg.InitSteps()

	require.NoError(t, steps["set_frequency"](labequip.Args{"frequency": 1e3}))
	require.NoError(t, steps["set_output_state"](labequip.Args{"state": 1, "source": 2}))
	require.NoError(t, steps["set_burst_ncycles"](labequip.Args{"ncycles": "INF"}))
	require.NoError(t, steps["set_pulse_edge_time"](labequip.Args{"time": 1e-8}))
	require.NoError(t, steps["reset"](nil))
	assert.Equal(t, []string{
		"SOUR1:FREQ 1000",
		"OUTP2 1",
		"SOUR1:BURS:NCYC INF",
		"SOUR1:FUNC:PULSE:TRAN 1e-08",
		"*RST",
	}, f.Written)

	err := steps["set_voltage"](labequip.Args{"volts": 1.0})
	assert.ErrorIs(t, err, labequip.ErrArgumentMismatch)
	err = steps["set_voltage"](labequip.Args{})
	assert.ErrorIs(t, err, labequip.ErrArgumentMismatch)
	_, ok := steps["Close"]
	assert.False(t, ok)
}
