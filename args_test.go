// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package labequip_test

import (
	"errors"
	"testing"

	"github.com/gotmc/labequip"
	"github.com/gotmc/labequip/labequiptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type voltageArgs struct {
	Voltage float64 `json:"voltage"`
	Source  int     `json:"source"`
}

func (a voltageArgs) Validate() error {
	if a.Source == 0 {
		return errors.New("source is required")
	}
	return nil
}

func TestStep(t *testing.T) {
	var got voltageArgs
	step := labequip.Step(func(a voltageArgs) error { got = a; return nil })

	require.NoError(t, step(labequip.Args{"voltage": 2.5, "source": 1}))
	assert.Equal(t, voltageArgs{Voltage: 2.5, Source: 1}, got)

	err := step(labequip.Args{"voltage": 2.5, "source": 1, "volts": 3})
	assert.ErrorIs(t, err, labequip.ErrArgumentMismatch)

	err = step(labequip.Args{"voltage": "high", "source": 1})
	assert.ErrorIs(t, err, labequip.ErrArgumentMismatch)

	err = step(labequip.Args{"voltage": 1})
	assert.ErrorIs(t, err, labequip.ErrArgumentMismatch)
	assert.ErrorContains(t, err, "source is required")
}

func TestNoArgs(t *testing.T) {
	calls := 0
	step := labequip.NoArgs(func() error { calls++; return nil })
	require.NoError(t, step(nil))
	assert.ErrorIs(t, step(labequip.Args{"x": 1}), labequip.ErrArgumentMismatch)
	assert.Equal(t, 1, calls)
}

func TestInstrumentInitSteps(t *testing.T) {
	f := &labequiptest.Fake{}
	inst := labequiptest.Open(fgAddr, f)
	steps := inst.InitSteps()
	require.NoError(t, steps["reset"](nil))
	require.NoError(t, steps["write"](labequip.Args{"command": "SYST:BEEP"}))
	assert.ErrorIs(t, steps["write"](labequip.Args{}), labequip.ErrArgumentMismatch)
	assert.Equal(t, []string{"*RST", "SYST:BEEP"}, f.Written)
}
