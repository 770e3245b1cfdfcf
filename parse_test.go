// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package labequip_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/gotmc/labequip"
	"github.com/gotmc/labequip/labequiptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryHelpers(t *testing.T) {
	f := (&labequiptest.Fake{}).
		Reply("FREQ?", "+2.500000000000000E+06").
		Reply("BURS:NCYC?", "+1.000000E+02").
		Reply("BURS:PHAS?", "+1.5E+01").
		Reply("OUTP1?", "1").
		Reply("OUTP2?", "OFF").
		Reply("FUNC?", "SQU").
		Reply("DISP:TEXT?", `"Hello"`).
		Reply("BAD?", "abc")
	inst := labequiptest.Open(fgAddr, f)

	freq, err := labequip.QueryFloat(inst, "FREQ?")
	require.NoError(t, err)
	assert.Equal(t, 2.5e6, freq)

	n, err := labequip.QueryInt(inst, "BURS:NCYC?")
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	_, err = labequip.QueryInt(inst, "BURS:PHAS?")
	assert.NoError(t, err)

	on, err := labequip.QueryBool(inst, "OUTP1?")
	require.NoError(t, err)
	assert.True(t, on)
	on, err = labequip.QueryBool(inst, "OUTP2?")
	require.NoError(t, err)
	assert.False(t, on)

	fn, err := labequip.QueryString(inst, "FUNC?")
	require.NoError(t, err)
	assert.Equal(t, "squ", fn)

	txt, err := labequip.QueryString(inst, "DISP:TEXT?")
	require.NoError(t, err)
	assert.Equal(t, "hello", txt)

	_, err = labequip.QueryFloat(inst, "BAD?")
	assert.ErrorIs(t, err, labequip.ErrInvalidResponse)
}

func TestQueryIntRejectsFraction(t *testing.T) {
	inst := labequiptest.Open(fgAddr, (&labequiptest.Fake{}).Reply("N?", "2.5"))
	_, err := labequip.QueryInt(inst, "N?")
	assert.ErrorIs(t, err, labequip.ErrInvalidResponse)
}

func TestQueryIntRange(t *testing.T) {
	f := (&labequiptest.Fake{}).
		Reply("BIG?", "9.9E+37").
		Reply("NEG?", "-9.3E+18").
		Reply("MAX?", "9.223372036854775807E+18").
		Reply("MIN?", "-9.223372036854775808E+18")
	inst := labequiptest.Open(fgAddr, f)
	for _, cmd := range []string{"BIG?", "NEG?", "MAX?"} {
		_, err := labequip.QueryInt(inst, cmd)
		assert.ErrorIs(t, err, labequip.ErrInvalidResponse, cmd)
	}
	n, err := labequip.QueryInt(inst, "MIN?")
	require.NoError(t, err)
	assert.Equal(t, math.MinInt64, n)
}

func TestQueryPropagatesConnectionErrors(t *testing.T) {
	inst := labequiptest.Open(fgAddr, &labequiptest.Fake{ReadErr: errors.New("i/o timeout")})
	_, err := labequip.QueryFloat(inst, "FREQ?")
	assert.ErrorIs(t, err, labequip.ErrConnection)
	assert.NotErrorIs(t, err, labequip.ErrInvalidResponse)
}

func TestChoice(t *testing.T) {
	v, err := labequip.Choice("set burst mode", "mode", " gat ", "TRIG", "GAT")
	require.NoError(t, err)
	assert.Equal(t, "GAT", v)

	_, err = labequip.Choice("set burst mode", "mode", "external", "TRIG", "GAT")
	var ae *labequip.ArgumentError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, []string{"TRIG", "GAT"}, ae.Allowed)
	assert.ErrorIs(t, err, labequip.ErrInvalidArgument)
	assert.EqualError(t, err, "set burst mode: invalid mode external (valid options are TRIG/GAT)")
}

func TestValueFormat(t *testing.T) {
	s, err := labequip.Num(1e-3).Format("op", "phase", labequip.Min, labequip.Max)
	require.NoError(t, err)
	assert.Equal(t, "0.001", s)

	s, err = labequip.Sentinel("max").Format("op", "phase", labequip.Min, labequip.Max)
	require.NoError(t, err)
	assert.Equal(t, "MAX", s)

	_, err = labequip.Sentinel("INF").Format("op", "phase", labequip.Min, labequip.Max)
	assert.ErrorIs(t, err, labequip.ErrInvalidArgument)
}

func TestValueJSON(t *testing.T) {
	var vals []labequip.Value
	require.NoError(t, json.Unmarshal([]byte(`[5, "INF", "12.5"]`), &vals))
	assert.Equal(t, []labequip.Value{labequip.Num(5), labequip.Sentinel("INF"), labequip.Num(12.5)}, vals)

	var v labequip.Value
	assert.Error(t, json.Unmarshal([]byte(`true`), &v))
}
