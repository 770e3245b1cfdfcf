// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package oscilloscope

import (
	"errors"
	"fmt"

	"github.com/gotmc/labequip"
)

var errChannel = errors.New("missing argument channel")

type channelArgs struct {
	Channel int `json:"channel"`
}

func (a channelArgs) Validate() error {
	if a.Channel < 1 {
		return errChannel
	}
	return nil
}

type selectArgs struct {
	channelArgs
	State labequip.Flag `json:"state"`
}

type scaleArgs struct {
	channelArgs
	Scale *float64 `json:"scale"`
}

func (a scaleArgs) Validate() error {
	return errors.Join(a.channelArgs.Validate(), required(a.Scale != nil, "scale"))
}

type offsetArgs struct {
	channelArgs
	Off          *float64 `json:"off"`
	UseDivisions bool     `json:"use_divisions"`
}

func (a offsetArgs) Validate() error {
	return errors.Join(a.channelArgs.Validate(), required(a.Off != nil, "off"))
}

type couplingArgs struct {
	channelArgs
	Coupling string `json:"coupling"`
}

type labelArgs struct {
	channelArgs
	Label string `json:"label"`
}

type horizontalArgs struct {
	Scale *float64 `json:"scale"`
}

func (a horizontalArgs) Validate() error { return required(a.Scale != nil, "scale") }

type measureArgs struct {
	channelArgs
	MeasType   string `json:"meas_type"`
	MeasIdx    int    `json:"meas_idx"`
	SourceType string `json:"source_type"`
}

type statisticsArgs struct {
	Histogram bool `json:"histogram"`
}

type modeArgs struct {
	State string `json:"state"`
}

type levelArgs struct {
	Level  *float64 `json:"level"`
	Source int      `json:"source"`
}

func (a levelArgs) Validate() error { return required(a.Level != nil, "level") }

type slopeArgs struct {
	Slope  string `json:"slope"`
	Source int    `json:"source"`
}

type positionArgs struct {
	Offset       *float64 `json:"offset"`
	UseDivisions bool     `json:"use_divisions"`
}

func (a positionArgs) Validate() error { return required(a.Offset != nil, "offset") }

type persistenceArgs struct {
	State labequip.Flag `json:"state"`
}

type durationArgs struct {
	Duration *labequip.Value `json:"duration"`
}

func (a durationArgs) Validate() error { return required(a.Duration != nil, "duration") }

type headerArgs struct {
	Header string `json:"header"`
}

func required(ok bool, name string) error {
	if !ok {
		return fmt.Errorf("missing argument %s", name)
	}
	return nil
}

// InitSteps lists the operations an equipment configuration may run when
// the oscilloscope is initialized.
func (o *LecroyWR8xxx) InitSteps() map[string]labequip.StepFunc {
	return map[string]labequip.StepFunc{
		"reset":        labequip.NoArgs(o.Reset),
		"clear_status": labequip.NoArgs(o.ClearStatus),
		"select_channel": labequip.Step(func(a selectArgs) error {
			return o.SelectChannel(a.Channel, bool(a.State))
		}),
		"set_channel_scale": labequip.Step(func(a scaleArgs) error {
			return o.SetChannelScale(a.Channel, *a.Scale)
		}),
		"set_channel_offset": labequip.Step(func(a offsetArgs) error {
			return o.SetChannelOffset(a.Channel, *a.Off, a.UseDivisions)
		}),
		"set_channel_coupling": labequip.Step(func(a couplingArgs) error {
			return o.SetChannelCoupling(a.Channel, a.Coupling)
		}),
		"set_channel_label": labequip.Step(func(a labelArgs) error {
			return o.SetChannelLabel(a.Channel, a.Label)
		}),
		"set_horizontal_scale": labequip.Step(func(a horizontalArgs) error {
			return o.SetHorizontalScale(*a.Scale)
		}),
		"set_measure_config": labequip.Step(func(a measureArgs) error {
			src := a.SourceType
			if src == "" {
				src = "channel"
			}
			return o.SetMeasureConfig(a.MeasIdx, a.MeasType, src, a.Channel)
		}),
		"enable_measure_statistics": labequip.Step(func(a statisticsArgs) error {
			return o.EnableMeasureStatistics(a.Histogram)
		}),
		"disable_measure_statistics": labequip.NoArgs(o.DisableMeasureStatistics),
		"reset_measure_statistics":   labequip.NoArgs(o.ResetMeasureStatistics),
		"clear_all_measure":          labequip.NoArgs(o.ClearAllMeasure),
		"trigger_run":                labequip.NoArgs(o.TriggerRun),
		"trigger_single":             labequip.NoArgs(o.TriggerSingle),
		"trigger_stop":               labequip.NoArgs(o.TriggerStop),
		"trigger_force":              labequip.NoArgs(o.TriggerForce),
		"trigger_auto":               labequip.NoArgs(o.TriggerAuto),
		"set_trigger_source": labequip.Step(func(a channelArgs) error {
			return o.SetTriggerSource(a.Channel)
		}),
		"set_trigger_acquire_state": labequip.Step(func(a modeArgs) error {
			return o.SetTriggerMode(a.State)
		}),
		"set_trigger_level": labequip.Step(func(a levelArgs) error {
			return o.SetTriggerLevel(*a.Level, a.Source)
		}),
		"set_trigger_slope": labequip.Step(func(a slopeArgs) error {
			return o.SetTriggerSlope(a.Slope, a.Source)
		}),
		"set_trigger_position": labequip.Step(func(a positionArgs) error {
			return o.SetTriggerPosition(*a.Offset, a.UseDivisions)
		}),
		"set_persistence_state": labequip.Step(func(a persistenceArgs) error {
			return o.SetPersistence(bool(a.State))
		}),
		"set_persistence_time": labequip.Step(func(a durationArgs) error {
			return o.SetPersistenceTime(*a.Duration)
		}),
		"set_comm_header": labequip.Step(func(a headerArgs) error {
			return o.SetCommHeader(a.Header)
		}),
	}
}
