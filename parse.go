// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package labequip

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/gotmc/query"
)

// QueryFloat sends cmd and parses the reply as a float64.
func QueryFloat(q query.Querier, cmd string) (float64, error) {
	v, err := query.Float64(q, cmd)
	if err != nil {
		return 0, responseError(cmd, err)
	}
	return v, nil
}

// QueryInt sends cmd and parses the reply as an int. Replies in scientific
// notation, such as "+1.000000E+02", are accepted when they hold an integer.
func QueryInt(q query.Querier, cmd string) (int, error) {
	v, err := query.Float64(q, cmd)
	if err != nil {
		return 0, responseError(cmd, err)
	}
	if v != math.Trunc(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s: %v is not an integer", ErrInvalidResponse, cmd, v)
	}
	if v < math.MinInt || v >= -math.MinInt {
		return 0, fmt.Errorf("%w: %s: %v is out of range", ErrInvalidResponse, cmd, v)
	}
	return int(v), nil
}

// QueryBool sends cmd and parses a 0/1 or OFF/ON reply.
func QueryBool(q query.Querier, cmd string) (bool, error) {
	s, err := QueryString(q, cmd)
	if err != nil {
		return false, err
	}
	switch s {
	case "1", "on":
		return true, nil
	case "0", "off":
		return false, nil
	}
	return false, fmt.Errorf("%w: %s: %q is not a boolean", ErrInvalidResponse, cmd, s)
}

// QueryString sends cmd and returns the reply trimmed, unquoted and lower
// cased.
func QueryString(q query.Querier, cmd string) (string, error) {
	s, err := query.String(q, cmd)
	if err != nil {
		return "", responseError(cmd, err)
	}
	return strings.ToLower(Unquote(s)), nil
}

// Unquote trims whitespace and removes double quotes from a reply.
func Unquote(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), `"`, "")
}

// Choice upper-cases value and checks it against the allowed set. The
// returned string is safe to embed in a command.
func Choice(op, arg, value string, allowed ...string) (string, error) {
	v := strings.ToUpper(strings.TrimSpace(value))
	if !slices.Contains(allowed, v) {
		return "", &ArgumentError{Op: op, Arg: arg, Value: value, Allowed: allowed}
	}
	return v, nil
}

// Sentinel names accepted in place of a number by many SCPI parameters.
const (
	Min      = "MIN"
	Max      = "MAX"
	Infinity = "INF"
)

// Value is a numeric SCPI parameter that may instead hold a sentinel such as
// MIN, MAX or INF. The zero value is the number 0.
type Value struct {
	num      float64
	sentinel string
}

// Num returns a numeric Value.
func Num(f float64) Value { return Value{num: f} }

// Sentinel returns a Value holding a sentinel keyword. Validation happens when
// the value is formatted.
func Sentinel(s string) Value { return Value{sentinel: s} }

// IsSentinel reports whether v holds a keyword rather than a number.
func (v Value) IsSentinel() bool { return v.sentinel != "" }

// Float returns the numeric value; it is 0 for sentinels.
func (v Value) Float() float64 { return v.num }

func (v Value) String() string {
	if v.sentinel != "" {
		return v.sentinel
	}
	return FormatFloat(v.num)
}

// Format renders v for a command. Numbers are sent verbatim; sentinels are
// upper cased and must be one of allowed.
func (v Value) Format(op, arg string, allowed ...string) (string, error) {
	if v.sentinel == "" {
		return FormatFloat(v.num), nil
	}
	return Choice(op, arg, v.sentinel, allowed...)
}

// UnmarshalJSON accepts a JSON number or a string.
func (v *Value) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*v = Num(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("value must be a number or a keyword: %s", b)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*v = Num(f)
		return nil
	}
	*v = Sentinel(s)
	return nil
}

// MarshalJSON writes numbers as JSON numbers and sentinels as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.sentinel != "" {
		return json.Marshal(v.sentinel)
	}
	return json.Marshal(v.num)
}

// FormatFloat renders f the shortest way that round-trips.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Flag is an on/off setting read from an equipment configuration. It accepts
// true/false, 0/1 and the SCPI keywords ON/OFF.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case bool:
		*f = Flag(v)
		return nil
	case float64:
		if v == 0 || v == 1 {
			*f = v == 1
			return nil
		}
	case string:
		switch strings.ToUpper(strings.TrimSpace(v)) {
		case "ON", "1":
			*f = true
			return nil
		case "OFF", "0":
			*f = false
			return nil
		}
	}
	return fmt.Errorf("%s is not an on/off value", b)
}

// OnOff renders b as the SCPI boolean 1 or 0.
func OnOff(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
