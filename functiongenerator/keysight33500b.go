// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package functiongenerator provides drivers for function and arbitrary
// waveform generators.
package functiongenerator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gotmc/labequip"
)

// Wave types accepted by the 33500B.
var WaveTypes = []string{"ARB", "DC", "NOIS", "PRBS", "PULSE", "RAMP", "SIN", "SQU", "TRI"}

// Burst and pulse keywords.
var (
	BurstModes     = []string{"TRIG", "GAT"}
	GatePolarities = []string{"NORM", "INV"}
	PulseHolds     = []string{"DCYC", "WIDT"}
)

// Pulse edge selectors. Each name maps to the command suffix it selects.
var edges = map[string]string{
	"BOTH": "",
	"RISE": ":LEAD", "RISING": ":LEAD", "R": ":LEAD", "LEAD": ":LEAD", "LEADING": ":LEAD",
	"FALL": ":TRA", "FALLING": ":TRA", "F": ":TRA", "TRAIL": ":TRA", "TRAILING": ":TRA",
}

var edgeNames = []string{"BOTH", "RISE", "RISING", "R", "LEAD", "LEADING",
	"FALL", "FALLING", "F", "TRAIL", "TRAILING"}

// InfiniteCycles is reported by BurstNCycles when the burst count is INF.
const InfiniteCycles = -1

// The instrument reports INF as 9.9E+37.
const infinity = 9.9e37

// Channels is the number of outputs on the two channel models.
const Channels = 2

// Keysight33500B drives the Keysight 33500B and 33600A series waveform
// generators. Channel numbers are 1-based.
//
// Programming reference: https://literature.cdn.keysight.com/litweb/pdf/33500-90901.pdf
type Keysight33500B struct {
	*labequip.Instrument
}

// New wraps an open session.
func New(inst *labequip.Instrument) *Keysight33500B {
	return &Keysight33500B{Instrument: inst}
}

// Config holds the constructor arguments accepted from an equipment
// configuration.
type Config struct {
	labequip.SessionConfig
}

// Open opens the generator at address through rm.
func Open(ctx context.Context, rm *labequip.ResourceManager, address string, args labequip.Args) (*Keysight33500B, error) {
	inst, err := labequip.OpenWith(ctx, rm, address, args, &Config{})
	if err != nil {
		return nil, err
	}
	return New(inst), nil
}

func (fg *Keysight33500B) String() string {
	return fmt.Sprintf("Keysight33500B(%s, timeout=%s)", fg.Address(), fg.Timeout())
}

// WaveformConfig is the setting reported by the APPLy query, in the order the
// instrument reports it.
type WaveformConfig struct {
	WaveType  string  `json:"wave_type"`
	Frequency float64 `json:"frequency"`
	Amplitude float64 `json:"amplitude"`
	Offset    float64 `json:"offset"`
}

// WaveformUpdate selects the settings SetWaveformConfig changes. Nil fields
// keep the instrument's current value.
type WaveformUpdate struct {
	WaveType  *string  `json:"wave_type"`
	Frequency *float64 `json:"frequency"`
	Amplitude *float64 `json:"amplitude"`
	Offset    *float64 `json:"offset"`
}

// SetWaveformConfig applies wave type, frequency, amplitude and offset in one
// APPLy command. Settings left nil in u are read back from the instrument
// first.
func (fg *Keysight33500B) SetWaveformConfig(source int, u WaveformUpdate) error {
	const op = "set waveform config"
	if err := checkSource(op, source); err != nil {
		return err
	}
	var (
		cfg WaveformConfig
		err error
	)
	if u.WaveType != nil {
		cfg.WaveType, err = labequip.Choice(op, "wave type", *u.WaveType, WaveTypes...)
		if err != nil {
			return err
		}
	}
	if cfg.WaveType == "" {
		wt, err := fg.WaveType(source)
		if err != nil {
			return err
		}
		cfg.WaveType = strings.ToUpper(wt)
	}
	fields := []struct {
		set *float64
		dst *float64
		get func(int) (float64, error)
	}{
		{u.Frequency, &cfg.Frequency, fg.Frequency},
		{u.Amplitude, &cfg.Amplitude, fg.Voltage},
		{u.Offset, &cfg.Offset, fg.VoltageOffset},
	}
	for _, f := range fields {
		if f.set != nil {
			*f.dst = *f.set
			continue
		}
		if *f.dst, err = f.get(source); err != nil {
			return err
		}
	}
	return fg.Command("SOUR%d:APPL:%s %s, %s, %s", source, cfg.WaveType,
		labequip.FormatFloat(cfg.Frequency),
		labequip.FormatFloat(cfg.Amplitude),
		labequip.FormatFloat(cfg.Offset))
}

// WaveformConfig queries the current wave type, frequency, amplitude and
// offset. The wave type is lower cased.
func (fg *Keysight33500B) WaveformConfig(source int) (WaveformConfig, error) {
	if err := checkSource("get waveform config", source); err != nil {
		return WaveformConfig{}, err
	}
	cmd := fmt.Sprintf("SOUR%d:APPL?", source)
	resp, err := fg.Query(cmd)
	if err != nil {
		return WaveformConfig{}, err
	}
	return parseApply(cmd, resp)
}

// parseApply parses replies such as
//
//	"SIN +1.000000000000000E+03,+1.000000000000000E+00,+0.000000000000000E+00"
func parseApply(cmd, resp string) (WaveformConfig, error) {
	fields := strings.Fields(labequip.Unquote(resp))
	if len(fields) != 2 {
		return WaveformConfig{}, fmt.Errorf("%w: %s: unexpected reply %q", labequip.ErrInvalidResponse, cmd, resp)
	}
	nums := strings.Split(fields[1], ",")
	if len(nums) != 3 {
		return WaveformConfig{}, fmt.Errorf("%w: %s: unexpected reply %q", labequip.ErrInvalidResponse, cmd, resp)
	}
	var vals [3]float64
	for i, n := range nums {
		v, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return WaveformConfig{}, fmt.Errorf("%w: %s: %w", labequip.ErrInvalidResponse, cmd, err)
		}
		vals[i] = v
	}
	return WaveformConfig{
		WaveType:  strings.ToLower(fields[0]),
		Frequency: vals[0],
		Amplitude: vals[1],
		Offset:    vals[2],
	}, nil
}

// SetVoltage sets the output amplitude.
func (fg *Keysight33500B) SetVoltage(source int, v float64) error {
	return fg.set("set voltage", source, "VOLT", labequip.FormatFloat(v))
}

// Voltage queries the output amplitude.
func (fg *Keysight33500B) Voltage(source int) (float64, error) {
	return fg.queryFloat("get voltage", source, "VOLT")
}

// SetVoltageOffset sets the DC offset.
func (fg *Keysight33500B) SetVoltageOffset(source int, v float64) error {
	return fg.set("set voltage offset", source, "VOLT:OFFS", labequip.FormatFloat(v))
}

// VoltageOffset queries the DC offset.
func (fg *Keysight33500B) VoltageOffset(source int) (float64, error) {
	return fg.queryFloat("get voltage offset", source, "VOLT:OFFS")
}

// SetVoltageHigh sets the high level of the waveform.
func (fg *Keysight33500B) SetVoltageHigh(source int, v float64) error {
	return fg.set("set voltage high", source, "VOLT:HIGH", labequip.FormatFloat(v))
}

// VoltageHigh queries the high level of the waveform.
func (fg *Keysight33500B) VoltageHigh(source int) (float64, error) {
	return fg.queryFloat("get voltage high", source, "VOLT:HIGH")
}

// SetVoltageLow sets the low level of the waveform.
func (fg *Keysight33500B) SetVoltageLow(source int, v float64) error {
	return fg.set("set voltage low", source, "VOLT:LOW", labequip.FormatFloat(v))
}

// VoltageLow queries the low level of the waveform.
func (fg *Keysight33500B) VoltageLow(source int) (float64, error) {
	return fg.queryFloat("get voltage low", source, "VOLT:LOW")
}

// SetFrequency sets the output frequency in Hz.
func (fg *Keysight33500B) SetFrequency(source int, hz float64) error {
	return fg.set("set frequency", source, "FREQ", labequip.FormatFloat(hz))
}

// Frequency queries the output frequency in Hz.
func (fg *Keysight33500B) Frequency(source int) (float64, error) {
	return fg.queryFloat("get frequency", source, "FREQ")
}

// SetWaveType selects the waveform, one of WaveTypes.
func (fg *Keysight33500B) SetWaveType(source int, waveType string) error {
	const op = "set wave type"
	wt, err := labequip.Choice(op, "wave type", waveType, WaveTypes...)
	if err != nil {
		return err
	}
	return fg.set(op, source, "FUNC", wt)
}

// WaveType queries the selected waveform, lower cased.
func (fg *Keysight33500B) WaveType(source int) (string, error) {
	return fg.queryString("get wave type", source, "FUNC")
}

// SetPulseDutyCycle sets the pulse duty cycle in percent.
func (fg *Keysight33500B) SetPulseDutyCycle(source int, pct float64) error {
	return fg.set("set pulse duty cycle", source, "FUNC:PULSE:DCYC", labequip.FormatFloat(pct))
}

// PulseDutyCycle queries the pulse duty cycle in percent.
func (fg *Keysight33500B) PulseDutyCycle(source int) (float64, error) {
	return fg.queryFloat("get pulse duty cycle", source, "FUNC:PULSE:DCYC")
}

// SetPulseWidth sets the pulse width in seconds.
func (fg *Keysight33500B) SetPulseWidth(source int, s float64) error {
	return fg.set("set pulse width", source, "FUNC:PULSE:WIDT", labequip.FormatFloat(s))
}

// PulseWidth queries the pulse width in seconds.
func (fg *Keysight33500B) PulseWidth(source int) (float64, error) {
	return fg.queryFloat("get pulse width", source, "FUNC:PULSE:WIDT")
}

// SetPulsePeriod sets the pulse period in seconds.
func (fg *Keysight33500B) SetPulsePeriod(source int, s float64) error {
	return fg.set("set pulse period", source, "FUNC:PULSE:PER", labequip.FormatFloat(s))
}

// PulsePeriod queries the pulse period in seconds.
func (fg *Keysight33500B) PulsePeriod(source int) (float64, error) {
	return fg.queryFloat("get pulse period", source, "FUNC:PULSE:PER")
}

// SetPulseEdgeTime sets the transition time of the leading edge, the trailing
// edge, or both. Accepted edge names are BOTH, RISE, RISING, R, LEAD, LEADING,
// FALL, FALLING, F, TRAIL and TRAILING.
func (fg *Keysight33500B) SetPulseEdgeTime(source int, edge string, s float64) error {
	const op = "set pulse edge time"
	suffix, err := edgeSuffix(op, edge)
	if err != nil {
		return err
	}
	return fg.set(op, source, "FUNC:PULSE:TRAN"+suffix, labequip.FormatFloat(s))
}

// PulseEdgeTime queries the transition time of the leading or trailing edge.
// Use PulseEdgeTimes for both.
func (fg *Keysight33500B) PulseEdgeTime(source int, edge string) (float64, error) {
	const op = "get pulse edge time"
	suffix, err := edgeSuffix(op, edge)
	if err != nil {
		return 0, err
	}
	if suffix == "" {
		return 0, &labequip.ArgumentError{Op: op, Arg: "edge", Value: edge,
			Allowed: edgeNames[1:]}
	}
	return fg.queryFloat(op, source, "FUNC:PULSE:TRAN"+suffix)
}

// PulseEdgeTimes queries the leading and trailing edge transition times.
func (fg *Keysight33500B) PulseEdgeTimes(source int) (lead, trail float64, err error) {
	if lead, err = fg.PulseEdgeTime(source, "LEAD"); err != nil {
		return 0, 0, err
	}
	if trail, err = fg.PulseEdgeTime(source, "TRAIL"); err != nil {
		return 0, 0, err
	}
	return lead, trail, nil
}

func edgeSuffix(op, edge string) (string, error) {
	name, err := labequip.Choice(op, "edge", edge, edgeNames...)
	if err != nil {
		return "", err
	}
	return edges[name], nil
}

// SetPulseHold selects whether the pulse duty cycle (DCYC) or width (WIDT) is
// held constant when the period changes.
func (fg *Keysight33500B) SetPulseHold(source int, param string) error {
	const op = "set pulse hold"
	p, err := labequip.Choice(op, "param", param, PulseHolds...)
	if err != nil {
		return err
	}
	return fg.set(op, source, "FUNC:PULSE:HOLD", p)
}

// PulseHold queries the held pulse parameter, lower cased.
func (fg *Keysight33500B) PulseHold(source int) (string, error) {
	return fg.queryString("get pulse hold", source, "FUNC:PULSE:HOLD")
}

// SetSquareDutyCycle sets the square wave duty cycle in percent.
func (fg *Keysight33500B) SetSquareDutyCycle(source int, pct float64) error {
	return fg.set("set square duty cycle", source, "FUNC:SQU:DCYC", labequip.FormatFloat(pct))
}

// SquareDutyCycle queries the square wave duty cycle in percent.
func (fg *Keysight33500B) SquareDutyCycle(source int) (float64, error) {
	return fg.queryFloat("get square duty cycle", source, "FUNC:SQU:DCYC")
}

// SetSquarePeriod sets the square wave period in seconds.
func (fg *Keysight33500B) SetSquarePeriod(source int, s float64) error {
	return fg.set("set square period", source, "FUNC:SQU:PER", labequip.FormatFloat(s))
}

// SquarePeriod queries the square wave period in seconds.
func (fg *Keysight33500B) SquarePeriod(source int) (float64, error) {
	return fg.queryFloat("get square period", source, "FUNC:SQU:PER")
}

// SetBurstMode selects triggered (TRIG) or gated (GAT) bursts.
func (fg *Keysight33500B) SetBurstMode(source int, mode string) error {
	const op = "set burst mode"
	m, err := labequip.Choice(op, "mode", mode, BurstModes...)
	if err != nil {
		return err
	}
	return fg.set(op, source, "BURS:MODE", m)
}

// BurstMode queries the burst mode, lower cased.
func (fg *Keysight33500B) BurstMode(source int) (string, error) {
	return fg.queryString("get burst mode", source, "BURS:MODE")
}

// SetBurstGatePolarity selects normal (NORM) or inverted (INV) gating.
func (fg *Keysight33500B) SetBurstGatePolarity(source int, polarity string) error {
	const op = "set burst gate polarity"
	p, err := labequip.Choice(op, "polarity", polarity, GatePolarities...)
	if err != nil {
		return err
	}
	return fg.set(op, source, "BURS:GATE:POL", p)
}

// BurstGatePolarity queries the gate polarity, lower cased.
func (fg *Keysight33500B) BurstGatePolarity(source int) (string, error) {
	return fg.queryString("get burst gate polarity", source, "BURS:GATE:POL")
}

// SetBurstNCycles sets the number of cycles per burst. n is a whole number of
// cycles or one of INF, MIN and MAX.
func (fg *Keysight33500B) SetBurstNCycles(source int, n labequip.Value) error {
	const op = "set burst ncycles"
	if !n.IsSentinel() && (n.Float() < 1 || n.Float() != float64(int64(n.Float()))) {
		return &labequip.ArgumentError{Op: op, Arg: "ncycles", Value: n}
	}
	s, err := n.Format(op, "ncycles", labequip.Infinity, labequip.Min, labequip.Max)
	if err != nil {
		return err
	}
	return fg.set(op, source, "BURS:NCYC", s)
}

// BurstNCycles queries the number of cycles per burst. An infinite burst is
// reported as InfiniteCycles.
func (fg *Keysight33500B) BurstNCycles(source int) (int, error) {
	v, err := fg.queryFloat("get burst ncycles", source, "BURS:NCYC")
	if err != nil {
		return 0, err
	}
	if v >= infinity {
		return InfiniteCycles, nil
	}
	return int(v), nil
}

// SetBurstPhase sets the starting phase of the burst in the current angle
// unit. phase is a number or one of MIN and MAX.
func (fg *Keysight33500B) SetBurstPhase(source int, phase labequip.Value) error {
	const op = "set burst phase"
	s, err := phase.Format(op, "phase", labequip.Min, labequip.Max)
	if err != nil {
		return err
	}
	return fg.set(op, source, "BURS:PHASE", s)
}

// BurstPhase queries the starting phase of the burst.
func (fg *Keysight33500B) BurstPhase(source int) (float64, error) {
	return fg.queryFloat("get burst phase", source, "BURS:PHASE")
}

// SetBurstState enables or disables burst mode.
func (fg *Keysight33500B) SetBurstState(source int, on bool) error {
	return fg.set("set burst state", source, "BURS:STAT", labequip.OnOff(on))
}

// BurstState reports whether burst mode is enabled.
func (fg *Keysight33500B) BurstState(source int) (bool, error) {
	if err := checkSource("get burst state", source); err != nil {
		return false, err
	}
	return labequip.QueryBool(fg, fmt.Sprintf("SOUR%d:BURS:STAT?", source))
}

// AngleUnit queries the unit used for phase values, lower cased.
func (fg *Keysight33500B) AngleUnit() (string, error) {
	return labequip.QueryString(fg, "UNIT:ANGL?")
}

// SetOutputState turns the output on or off.
func (fg *Keysight33500B) SetOutputState(source int, on bool) error {
	if err := checkSource("set output state", source); err != nil {
		return err
	}
	return fg.Command("OUTP%d %s", source, labequip.OnOff(on))
}

// OutputState reports whether the output is on.
func (fg *Keysight33500B) OutputState(source int) (bool, error) {
	if err := checkSource("get output state", source); err != nil {
		return false, err
	}
	return labequip.QueryBool(fg, fmt.Sprintf("OUTP%d?", source))
}

// SetOutputImpedance sets the expected load in ohms. impedance is a number or
// one of INF (high impedance), MIN and MAX.
func (fg *Keysight33500B) SetOutputImpedance(source int, impedance labequip.Value) error {
	const op = "set output impedance"
	if err := checkSource(op, source); err != nil {
		return err
	}
	s, err := impedance.Format(op, "impedance", labequip.Infinity, labequip.Min, labequip.Max)
	if err != nil {
		return err
	}
	return fg.Command("OUTP%d:LOAD %s", source, s)
}

// OutputImpedance queries the expected load in ohms. High impedance is
// reported as 9.9E+37.
func (fg *Keysight33500B) OutputImpedance(source int) (float64, error) {
	if err := checkSource("get output impedance", source); err != nil {
		return 0, err
	}
	return labequip.QueryFloat(fg, fmt.Sprintf("OUTP%d:LOAD?", source))
}

// SetDisplayText shows text on the front panel display.
func (fg *Keysight33500B) SetDisplayText(text string) error {
	if strings.ContainsAny(text, "\"\r\n") {
		return &labequip.ArgumentError{Op: "set display text", Arg: "text", Value: strconv.Quote(text)}
	}
	return fg.Command(`DISP:TEXT "%s"`, text)
}

// DisplayText queries the text shown on the front panel display.
func (fg *Keysight33500B) DisplayText() (string, error) {
	resp, err := fg.Query("DISP:TEXT?")
	if err != nil {
		return "", err
	}
	return labequip.Unquote(resp), nil
}

// ClearDisplayText removes any text from the front panel display.
func (fg *Keysight33500B) ClearDisplayText() error { return fg.SetDisplayText("") }

func (fg *Keysight33500B) set(op string, source int, header, value string) error {
	if err := checkSource(op, source); err != nil {
		return err
	}
	return fg.Command("SOUR%d:%s %s", source, header, value)
}

func (fg *Keysight33500B) queryFloat(op string, source int, header string) (float64, error) {
	if err := checkSource(op, source); err != nil {
		return 0, err
	}
	return labequip.QueryFloat(fg, fmt.Sprintf("SOUR%d:%s?", source, header))
}

func (fg *Keysight33500B) queryString(op string, source int, header string) (string, error) {
	if err := checkSource(op, source); err != nil {
		return "", err
	}
	return labequip.QueryString(fg, fmt.Sprintf("SOUR%d:%s?", source, header))
}

func checkSource(op string, source int) error {
	if source < 1 || source > Channels {
		return &labequip.ArgumentError{Op: op, Arg: "source", Value: source}
	}
	return nil
}
