// Package block decodes IEEE 488.2 arbitrary block data, the framing
// instruments use for binary replies such as waveforms and screen images.
//
// A definite length block is
//
//	'#' n d1..dn data
//
// where the n decimal digits d1..dn give the number of data bytes. An
// indefinite length block is "#0" followed by data up to the message
// terminator.
package block

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrHeader is returned for a malformed block header.
var ErrHeader = errors.New("block: invalid header")

// Read reads one block from r, skipping any reply header before the '#', and
// returns its data. For definite length blocks the message terminator that
// follows the data is consumed if present.
func Read(r *bufio.Reader) ([]byte, error) {
	if _, err := r.ReadBytes('#'); err != nil {
		return nil, fmt.Errorf("%w: no '#': %w", ErrHeader, err)
	}
	c, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if c < '0' || c > '9' {
		return nil, fmt.Errorf("%w: digit count %q", ErrHeader, c)
	}
	if c == '0' {
		data, err := r.ReadBytes('\n')
		if err != nil && !(err == io.EOF && len(data) > 0) {
			return nil, err
		}
		return bytes.TrimSuffix(bytes.TrimSuffix(data, []byte("\n")), []byte("\r")), nil
	}
	digits := make([]byte, c-'0')
	if _, err := io.ReadFull(r, digits); err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(string(digits))
	if err != nil {
		return nil, fmt.Errorf("%w: length %q", ErrHeader, digits)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("block: short data, want %d bytes: %w", n, err)
	}
	consumeTerm(r)
	return data, nil
}

// Parse decodes a block held in memory. Bytes before the '#' are ignored.
func Parse(b []byte) ([]byte, error) {
	return Read(bufio.NewReader(bytes.NewReader(b)))
}

// Encode frames data as a definite length block.
func Encode(data []byte) []byte {
	n := strconv.Itoa(len(data))
	out := make([]byte, 0, 2+len(n)+len(data))
	out = append(out, '#', byte('0'+len(n)))
	out = append(out, n...)
	return append(out, data...)
}

// consumeTerm drops a trailing "\n" or "\r\n" if it is already buffered, so
// the next reply starts cleanly.
func consumeTerm(r *bufio.Reader) {
	if r.Buffered() == 0 {
		return
	}
	b, _ := r.Peek(min(2, r.Buffered()))
	switch {
	case bytes.HasPrefix(b, []byte("\r\n")):
		r.Discard(2)
	case bytes.HasPrefix(b, []byte("\n")):
		r.Discard(1)
	}
}
