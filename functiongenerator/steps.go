// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package functiongenerator

import (
	"fmt"

	"github.com/gotmc/labequip"
)

// channel is the optional source argument of a step. It defaults to 1.
type channel struct {
	Source int `json:"source"`
}

func (c channel) n() int {
	if c.Source == 0 {
		return 1
	}
	return c.Source
}

type voltageArgs struct {
	channel
	Voltage *float64 `json:"voltage"`
}

func (a voltageArgs) Validate() error { return required("voltage", a.Voltage) }

type offsetArgs struct {
	channel
	Offset *float64 `json:"offset"`
}

func (a offsetArgs) Validate() error { return required("offset", a.Offset) }

type frequencyArgs struct {
	channel
	Frequency *float64 `json:"frequency"`
}

func (a frequencyArgs) Validate() error { return required("frequency", a.Frequency) }

type waveTypeArgs struct {
	channel
	WaveType string `json:"wave_type"`
}

type dutyCycleArgs struct {
	channel
	DutyCycle *float64 `json:"duty_cycle"`
}

func (a dutyCycleArgs) Validate() error { return required("duty_cycle", a.DutyCycle) }

type widthArgs struct {
	channel
	Width *float64 `json:"width"`
}

func (a widthArgs) Validate() error { return required("width", a.Width) }

type periodArgs struct {
	channel
	Period *float64 `json:"period"`
}

func (a periodArgs) Validate() error { return required("period", a.Period) }

type edgeTimeArgs struct {
	channel
	Time  *float64 `json:"time"`
	Which string   `json:"which"`
}

func (a edgeTimeArgs) Validate() error { return required("time", a.Time) }

type holdArgs struct {
	channel
	Param string `json:"param"`
}

type modeArgs struct {
	channel
	Mode string `json:"mode"`
}

type polarityArgs struct {
	channel
	Polarity string `json:"polarity"`
}

type ncyclesArgs struct {
	channel
	NCycles *labequip.Value `json:"ncycles"`
}

func (a ncyclesArgs) Validate() error { return required("ncycles", a.NCycles) }

type phaseArgs struct {
	channel
	Phase *labequip.Value `json:"phase"`
}

func (a phaseArgs) Validate() error { return required("phase", a.Phase) }

type stateArgs struct {
	channel
	State *labequip.Flag `json:"state"`
}

func (a stateArgs) Validate() error { return required("state", a.State) }

type impedanceArgs struct {
	channel
	Impedance *labequip.Value `json:"impedance"`
}

func (a impedanceArgs) Validate() error { return required("impedance", a.Impedance) }

type waveformArgs struct {
	channel
	WaveformUpdate
}

type textArgs struct {
	Text string `json:"text"`
}

// InitSteps lists the operations an equipment configuration may run when
// the generator is initialized, under the names used in configuration files.
func (fg *Keysight33500B) InitSteps() map[string]labequip.StepFunc {
	return map[string]labequip.StepFunc{
		"reset":        labequip.NoArgs(fg.Reset),
		"clear_status": labequip.NoArgs(fg.ClearStatus),
		"set_waveform_config": labequip.Step(func(a waveformArgs) error {
			return fg.SetWaveformConfig(a.n(), a.WaveformUpdate)
		}),
		"set_voltage": labequip.Step(func(a voltageArgs) error {
			return fg.SetVoltage(a.n(), *a.Voltage)
		}),
		"set_voltage_offset": labequip.Step(func(a offsetArgs) error {
			return fg.SetVoltageOffset(a.n(), *a.Offset)
		}),
		"set_voltage_high": labequip.Step(func(a voltageArgs) error {
			return fg.SetVoltageHigh(a.n(), *a.Voltage)
		}),
		"set_voltage_low": labequip.Step(func(a voltageArgs) error {
			return fg.SetVoltageLow(a.n(), *a.Voltage)
		}),
		"set_frequency": labequip.Step(func(a frequencyArgs) error {
			return fg.SetFrequency(a.n(), *a.Frequency)
		}),
		"set_wave_type": labequip.Step(func(a waveTypeArgs) error {
			return fg.SetWaveType(a.n(), a.WaveType)
		}),
		"set_pulse_dc": labequip.Step(func(a dutyCycleArgs) error {
			return fg.SetPulseDutyCycle(a.n(), *a.DutyCycle)
		}),
		"set_pulse_width": labequip.Step(func(a widthArgs) error {
			return fg.SetPulseWidth(a.n(), *a.Width)
		}),
		"set_pulse_period": labequip.Step(func(a periodArgs) error {
			return fg.SetPulsePeriod(a.n(), *a.Period)
		}),
		"set_pulse_edge_time": labequip.Step(func(a edgeTimeArgs) error {
			which := a.Which
			if which == "" {
				which = "BOTH"
			}
			return fg.SetPulseEdgeTime(a.n(), which, *a.Time)
		}),
		"set_pulse_hold": labequip.Step(func(a holdArgs) error {
			return fg.SetPulseHold(a.n(), a.Param)
		}),
		"set_square_dc": labequip.Step(func(a dutyCycleArgs) error {
			return fg.SetSquareDutyCycle(a.n(), *a.DutyCycle)
		}),
		"set_square_period": labequip.Step(func(a periodArgs) error {
			return fg.SetSquarePeriod(a.n(), *a.Period)
		}),
		"set_burst_mode": labequip.Step(func(a modeArgs) error {
			return fg.SetBurstMode(a.n(), a.Mode)
		}),
		"set_burst_gate_polarity": labequip.Step(func(a polarityArgs) error {
			return fg.SetBurstGatePolarity(a.n(), a.Polarity)
		}),
		"set_burst_ncycles": labequip.Step(func(a ncyclesArgs) error {
			return fg.SetBurstNCycles(a.n(), *a.NCycles)
		}),
		"set_burst_phase": labequip.Step(func(a phaseArgs) error {
			return fg.SetBurstPhase(a.n(), *a.Phase)
		}),
		"set_burst_state": labequip.Step(func(a stateArgs) error {
			return fg.SetBurstState(a.n(), bool(*a.State))
		}),
		"set_output_state": labequip.Step(func(a stateArgs) error {
			return fg.SetOutputState(a.n(), bool(*a.State))
		}),
		"set_output_impedance": labequip.Step(func(a impedanceArgs) error {
			return fg.SetOutputImpedance(a.n(), *a.Impedance)
		}),
		"set_display_text": labequip.Step(func(a textArgs) error {
			return fg.SetDisplayText(a.Text)
		}),
		"clear_display_text": labequip.NoArgs(fg.ClearDisplayText),
	}
}

func required[T any](name string, v *T) error {
	if v == nil {
		return fmt.Errorf("missing argument %s", name)
	}
	return nil
}
