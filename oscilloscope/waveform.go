// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package oscilloscope

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gotmc/labequip"
)

// Descriptor holds the WAVEDESC block of a trace, keyed by lower cased
// field name, for example "vertical_gain" or "horiz_interval".
type Descriptor map[string]string

// Float returns a numeric descriptor field.
func (d Descriptor) Float(key string) (float64, error) {
	s, ok := d[key]
	if !ok {
		return 0, fmt.Errorf("%w: waveform descriptor has no %s", labequip.ErrInvalidResponse, key)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: waveform descriptor %s: %w", labequip.ErrInvalidResponse, key, err)
	}
	return v, nil
}

// WaveformDescription queries the waveform descriptor of a channel.
func (o *LecroyWR8xxx) WaveformDescription(channel int) (Descriptor, error) {
	lines, err := o.quoted(fmt.Sprintf(`C%d:INSP? "WAVEDESC"`, channel))
	if err != nil {
		return nil, err
	}
	return parseDescriptor(lines), nil
}

// quoted sends cmd and reads a reply that spans lines inside double quotes,
// as INSPECT replies do.
func (o *LecroyWR8xxx) quoted(cmd string) ([]string, error) {
	first, err := o.Query(cmd)
	if err != nil {
		return nil, err
	}
	lines := []string{first}
	quotes := strings.Count(first, `"`)
	for quotes < 2 {
		line, err := o.Read()
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
		quotes += strings.Count(line, `"`)
	}
	return lines, nil
}

// parseDescriptor reads "NAME : value" lines, skipping the reply header on
// the first line.
func parseDescriptor(lines []string) Descriptor {
	d := make(Descriptor)
	for _, line := range lines[1:] {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		d[k] = strings.ToLower(strings.Trim(strings.TrimSpace(v), `"`))
	}
	return d
}

// Waveforms are traces read from the oscilloscope, in volts, sharing one
// time axis in seconds.
type Waveforms struct {
	Time  []float64
	Volts [][]float64
}

// ChannelData reads the displayed traces of channels. Every sparsing-th
// point is transferred; sparsing below 1 is treated as 1.
func (o *LecroyWR8xxx) ChannelData(sparsing int, channels ...int) (Waveforms, error) {
	if sparsing < 1 {
		sparsing = 1
	}
	var w Waveforms
	if len(channels) == 0 {
		return w, &labequip.ArgumentError{Op: "get channel data", Arg: "channels", Value: channels}
	}
	if err := o.Command("WAVEFORM_SETUP SP,%d,NP,0,FP,0,SN,0", sparsing); err != nil {
		return w, err
	}
	var desc Descriptor
	for _, ch := range channels {
		var err error
		if desc, err = o.WaveformDescription(ch); err != nil {
			return w, err
		}
		gain, err := desc.Float("vertical_gain")
		if err != nil {
			return w, err
		}
		offset, err := desc.Float("vertical_offset")
		if err != nil {
			return w, err
		}
		if err := o.Command("C%d:WF? DAT1", ch); err != nil {
			return w, err
		}
		raw, err := o.ReadBlock()
		if err != nil {
			return w, err
		}
		volts := make([]float64, len(raw))
		for i, b := range raw {
			volts[i] = float64(int8(b))*gain - offset
		}
		w.Volts = append(w.Volts, volts)
	}
	interval, err := desc.Float("horiz_interval")
	if err != nil {
		return w, err
	}
	start, err := desc.Float("horiz_offset")
	if err != nil {
		return w, err
	}
	n := len(w.Volts[len(w.Volts)-1])
	w.Time = make([]float64, n)
	for i := range w.Time {
		w.Time[i] = float64(i)*interval*float64(sparsing) + start
	}
	return w, nil
}
