// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package oscilloscope

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gotmc/labequip"
	"github.com/gotmc/labequip/labequiptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addr = "TCPIP0::10.0.0.8::INSTR"

func newScope(f *labequiptest.Fake) *LecroyWR8xxx {
	return New(labequiptest.Open(addr, f))
}

func TestOpenSelectsShortHeaders(t *testing.T) {
	bench := labequiptest.NewBench()
	f := bench.Add(addr, &labequiptest.Fake{})
	osc, err := Open(context.Background(), bench.Manager(), addr, labequip.Args{"timeout": 5000})
	require.NoError(t, err)
	assert.Equal(t, 1, f.Clears)
	assert.Equal(t, []string{"CHDR SHORT"}, f.Written)
	assert.Equal(t, "LecroyWR8xxx(TCPIP0::10.0.0.8::INSTR, timeout=5s)", osc.String())

	_, err = Open(context.Background(), bench.Manager(), addr, labequip.Args{"baud": 9600})
	assert.ErrorIs(t, err, labequip.ErrArgumentMismatch)
}

func TestChannelSettings(t *testing.T) {
	f := (&labequiptest.Fake{}).
		Reply("C2:VDIV?", "C2:VDIV 500E-3 V").
		Reply("C2:OFFSET?", "C2:OFST -1.2E+0 V").
		Reply("C1:COUPLING?", "C1:CPL D50").
		Reply("TIME_DIV?", "TDIV 1E-6 S")
	osc := newScope(f)

	require.NoError(t, osc.SelectChannel(3, true))
	require.NoError(t, osc.SetChannelScale(2, 0.1))
	require.NoError(t, osc.SetChannelOffset(2, 2, true))
	require.NoError(t, osc.SetChannelCoupling(1, "ac"))
	require.NoError(t, osc.SetChannelLabel(1, "VIN"))
	require.NoError(t, osc.SetChannelDisplay(4, false))
	require.NoError(t, osc.SetChannelDisplay(4, true))
	require.NoError(t, osc.SetHorizontalScale(2e-6))
	assert.Equal(t, []string{
		"C3:TRACE ON",
		"C2:VDIV 0.1",
		"C2:VDIV?",
		"C2:OFFSET 1",
		"C1:COUPLING A1M",
		`VBS 'app.acquisition.C1.LabelsText = "VIN"'`,
		"VBS 'app.acquisition.C4.View = False'",
		"VBS 'app.acquisition.C4.View = True'",
		"TIME_DIV 2e-06",
	}, f.Written)

	off, err := osc.ChannelOffset(2)
	require.NoError(t, err)
	assert.Equal(t, -1.2, off)

	cpl, err := osc.ChannelCoupling(1)
	require.NoError(t, err)
	assert.Equal(t, "dc_50", cpl)

	tdiv, err := osc.HorizontalScale()
	require.NoError(t, err)
	assert.Equal(t, 1e-6, tdiv)
}

func TestRejectedBeforeWrite(t *testing.T) {
	f := &labequiptest.Fake{}
	osc := newScope(f)

	assert.ErrorIs(t, osc.SetChannelCoupling(1, "dc_75"), labequip.ErrInvalidArgument)
	assert.ErrorIs(t, osc.SetTriggerMode("NORMAL"), labequip.ErrInvalidArgument)
	assert.ErrorIs(t, osc.SetTriggerSlope("EITHER", 1), labequip.ErrInvalidArgument)
	assert.ErrorIs(t, osc.SetCommHeader("MEDIUM"), labequip.ErrInvalidArgument)
	assert.ErrorIs(t, osc.SetPersistenceTime(labequip.Num(3)), labequip.ErrInvalidArgument)
	assert.ErrorIs(t, osc.SetPersistenceTime(labequip.Sentinel("MAX")), labequip.ErrInvalidArgument)
	assert.ErrorIs(t, osc.SetMeasureConfig(1, "FREQ", "memory", 1), labequip.ErrInvalidArgument)
	assert.ErrorIs(t, osc.SetChannelLabel(1, `"quoted"`), labequip.ErrInvalidArgument)
	_, err := osc.Image(ImageOptions{Format: "GIF"})
	assert.ErrorIs(t, err, labequip.ErrInvalidArgument)
	assert.Zero(t, f.Writes())
}

func TestTriggerSource(t *testing.T) {
	f := (&labequiptest.Fake{}).
		Reply("TRSE?", "TRSE EDGE,SR,C1,HT,OFF").
		Reply("C1:TRLV?", "C1:TRLV 150E-3 V").
		Reply("C1:TRSL?", "C1:TRSL POS")
	osc := newScope(f)

	src, err := osc.TriggerSource()
	require.NoError(t, err)
	assert.Equal(t, 1, src)

	require.NoError(t, osc.SetTriggerSource(4))
	assert.Equal(t, "TRSE EDGE,SR,C4,HT,OFF", f.Last())

	lvl, err := osc.TriggerLevel(0)
	require.NoError(t, err)
	assert.Equal(t, 0.15, lvl)

	slope, err := osc.TriggerSlope(0)
	require.NoError(t, err)
	assert.Equal(t, "pos", slope)

	require.NoError(t, osc.SetTriggerSlope("fall", 2))
	assert.Equal(t, "C2:TRSL NEG", f.Last())
	require.NoError(t, osc.SetTriggerLevel(0.5, 2))
	assert.Equal(t, "C2:TRLV 0.5", f.Last())
}

func TestTriggerModes(t *testing.T) {
	f := (&labequiptest.Fake{}).Reply("TRMD?", "TRMD SINGLE")
	osc := newScope(f)
	require.NoError(t, osc.TriggerRun())
	require.NoError(t, osc.TriggerSingle())
	require.NoError(t, osc.TriggerForce())
	require.NoError(t, osc.TriggerStop())
	require.NoError(t, osc.SetTriggerMode("auto"))
	assert.Equal(t, []string{
		"ARM", "TRMD NORM",
		"ARM", "TRMD SINGLE",
		"ARM", "FRTR",
		"STOP",
		"TRMD AUTO",
	}, f.Written)

	mode, err := osc.TriggerMode()
	require.NoError(t, err)
	assert.Equal(t, "single", mode)
}

func TestMeasurements(t *testing.T) {
	f := (&labequiptest.Fake{}).
		Reply("PACU? 1", "PACU 1,FREQ,C1,OK").
		Reply("VBS? 'return=app.Measure.P1.Out.Result.Value'", "VBS 1000.5").
		Reply("VBS? 'return=app.Measure.P2.Out.Result.Value'", "VBS No Data Available").
		Reply("PAST? CUST,,P1", "PAST CUST,P1,FREQ,C1,AVG,1.0E+3 Hz,HIGH,1.1E+3 Hz,LAST,1.05E+3 Hz,LOW,0.9E+3 Hz,SIGMA,UNDEF,SWEEPS,12 sweeps")
	osc := newScope(f)

	require.NoError(t, osc.SetMeasureConfig(1, "freq", "math", 1))
	assert.Equal(t, "PACU 1,FREQ,F1", f.Last())

	cfg, err := osc.MeasureConfig(1)
	require.NoError(t, err)
	assert.Equal(t, MeasureConfig{Index: "1", Type: "FREQ", Source: "C1", Status: "OK"}, cfg)

	vals, err := osc.MeasureData(1, 2)
	require.NoError(t, err)
	require.Len(t, vals, 2)
	assert.Equal(t, 1000.5, vals[0])
	assert.True(t, math.IsNaN(vals[1]))

	st, err := osc.MeasureStatistics(1)
	require.NoError(t, err)
	assert.Equal(t, 1e3, st.Mean)
	assert.Equal(t, 1.1e3, st.Max)
	assert.Equal(t, 0.9e3, st.Min)
	assert.Equal(t, 1.05e3, st.Last)
	assert.Equal(t, 12.0, st.N)
	assert.True(t, math.IsNaN(st.Stdev))
}

func TestPersistence(t *testing.T) {
	f := (&labequiptest.Fake{}).
		Reply("PERSIST?", "PERSIST ON").
		Reply("PESU?", "PESU INFINITE,ALL")
	osc := newScope(f)

	require.NoError(t, osc.SetPersistenceTime(labequip.Num(0.5)))
	require.NoError(t, osc.SetPersistenceTime(labequip.Sentinel("inf")))
	assert.Equal(t, []string{"PESU 0.5,ALL", "PESU INF,ALL"}, f.Written)

	on, err := osc.Persistence()
	require.NoError(t, err)
	assert.True(t, on)

	d, err := osc.PersistenceTime()
	require.NoError(t, err)
	assert.Equal(t, labequip.Sentinel(labequip.Infinity), d)

	f.Reply("PESU?", "PESU 2,ALL")
	d, err = osc.PersistenceTime()
	require.NoError(t, err)
	assert.Equal(t, labequip.Num(2), d)
}

func TestSaveImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")
	f := (&labequiptest.Fake{}).Block("SCREEN_DUMP", png)
	osc := newScope(f)

	base := filepath.Join(t.TempDir(), "startup")
	name, err := osc.SaveImage(base, ImageOptions{Format: "jpeg", Background: "white"})
	require.NoError(t, err)
	assert.Equal(t, base+".jpg", name)
	assert.Equal(t, []string{
		"HARDCOPY_SETUP DEV, JPEG, FORMAT, LANDSCAPE, BCKG, WHITE, AREA, DSOWINDOW, PORT, NET",
		"SCREEN_DUMP",
	}, f.Written)

	got, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, png, got)
}

func TestChannelData(t *testing.T) {
	f := (&labequiptest.Fake{}).Block("C1:WF? DAT1", []byte{0, 10, 0xf6})
	osc := newScope(f)
	for _, line := range []string{
		`C1:INSP "`,
		"DESCRIPTOR_NAME    : WAVEDESC",
		"VERTICAL_GAIN      : 0.01",
		"VERTICAL_OFFSET    : 0.5",
		"HORIZ_INTERVAL     : 1e-9",
		"HORIZ_OFFSET       : -1e-9",
		"TRIGGER_TIME       : Date = JAN  1, 2026, Time = 12:00:00.0",
		`"`,
	} {
		f.Queue(line)
	}

	w, err := osc.ChannelData(1, 1)
	require.NoError(t, err)
	assert.Equal(t, "WAVEFORM_SETUP SP,1,NP,0,FP,0,SN,0", f.Written[0])
	require.Len(t, w.Volts, 1)
	assert.InDeltaSlice(t, []float64{-0.5, -0.4, -0.6}, w.Volts[0], 1e-12)
	assert.InDeltaSlice(t, []float64{-1e-9, 0, 1e-9}, w.Time, 1e-18)
}

func TestParseDescriptor(t *testing.T) {
	d := parseDescriptor([]string{
		`C1:INSP "`,
		"",
		"COMM_TYPE          : byte",
		"VERTICAL_GAIN      : 3.1250e-03",
		"TRIGGER_TIME       : Date = JAN  1, 2026, Time = 12:00:00.0",
		`"`,
	})
	assert.Equal(t, "byte", d["comm_type"])
	assert.Equal(t, "date = jan  1, 2026, time = 12:00:00.0", d["trigger_time"])
	g, err := d.Float("vertical_gain")
	require.NoError(t, err)
	assert.Equal(t, 3.125e-3, g)
	_, err = d.Float("missing")
	assert.ErrorIs(t, err, labequip.ErrInvalidResponse)
}

func TestInitSteps(t *testing.T) {
	f := (&labequiptest.Fake{}).Reply("TRSE?", "TRSE EDGE,SR,C2,HT,OFF")
	osc := newScope(f)
	steps := osc.InitSteps()

	require.NoError(t, steps["set_channel_scale"](labequip.Args{"channel": 1, "scale": 0.2}))
	require.NoError(t, steps["set_trigger_level"](labequip.Args{"level": 1.5}))
	require.NoError(t, steps["set_persistence_time"](labequip.Args{"duration": "inf"}))
	require.NoError(t, steps["trigger_single"](nil))
	assert.Equal(t, []string{
		"C1:VDIV 0.2",
		"TRSE?",
		"C2:TRLV 1.5",
		"PESU INF,ALL",
		"ARM", "TRMD SINGLE",
	}, f.Written)

	assert.ErrorIs(t, steps["set_channel_scale"](labequip.Args{"scale": 0.2}), labequip.ErrArgumentMismatch)
	assert.ErrorIs(t, steps["trigger_stop"](labequip.Args{"now": true}), labequip.ErrArgumentMismatch)
}
