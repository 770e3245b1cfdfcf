// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package datalog writes measurement data to CSV files and lays out the
// directories test runs store their results in.
package datalog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func csvPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return path
	}
	return path + ".csv"
}

func openCSV(path string, init bool) (*os.File, error) {
	flag := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if init {
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	return os.OpenFile(path, flag, 0o644)
}

func format(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func writeRows(path string, init bool, rows [][]string) (err error) {
	f, err := openCSV(path, init)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// LogData writes values as one row of <path>.csv. With init the file is
// created or truncated first; otherwise the row is appended, creating the
// file if needed. Path may omit the .csv extension.
//
//	datalog.LogData("efficiency", true, "v_in", "i_out", "eff")
//	datalog.LogData("efficiency", false, 48.0, 2.5, 0.93)
func LogData(path string, init bool, values ...any) error {
	return writeRows(csvPath(path), init, [][]string{format(values)})
}

// DumpData writes rows to <dir>/<name>.csv, replacing any existing file.
// Rows need not have the same length.
func DumpData(dir, name string, rows [][]any) error {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = format(r)
	}
	return writeRows(csvPath(filepath.Join(dir, name)), true, out)
}

// DumpArrayData writes columns side by side to <path>.csv, one element of
// each column per row. If fill is nil the output stops at the shortest
// column; otherwise shorter columns are padded with *fill up to the longest.
func DumpArrayData(path string, columns [][]any, init bool, fill *string) error {
	return writeRows(csvPath(path), init, transpose(columns, fill))
}

func transpose(columns [][]any, fill *string) [][]string {
	if len(columns) == 0 {
		return nil
	}
	n := len(columns[0])
	for _, c := range columns[1:] {
		if fill == nil {
			n = min(n, len(c))
		} else {
			n = max(n, len(c))
		}
	}
	rows := make([][]string, n)
	for i := range rows {
		row := make([]string, len(columns))
		for j, c := range columns {
			if i < len(c) {
				row[j] = fmt.Sprint(c[i])
			} else {
				row[j] = *fill
			}
		}
		rows[i] = row
	}
	return rows
}

// Columns converts typed slices into the columns DumpArrayData takes.
func Columns[T any](cols ...[]T) [][]any {
	out := make([][]any, len(cols))
	for i, c := range cols {
		out[i] = make([]any, len(c))
		for j, v := range c {
			out[i][j] = v
		}
	}
	return out
}
