// Package cmdlog records the messages exchanged with instruments, either as
// readable log lines or as a CBOR transcript that can be replayed later.
package cmdlog

import (
	"log"
	"strings"
	"sync"

	"github.com/gotmc/labequip"
)

func isASCII(s string) bool {
	return !strings.ContainsFunc(s, func(r rune) bool {
		switch {
		case r < 7:
			return true
		case r > 6 && r < 14:
			return false
		case r > 13 && r < 32:
			return true
		case r > 127:
			return true
		}
		return false
	})
}

// Printer logs every message. Printable replies are quoted; binary replies
// are shown as hex.
type Printer struct {
	Logger *log.Logger
}

// Record implements labequip.Recorder.
func (p Printer) Record(address string, dir labequip.Direction, msg string) {
	l := p.Logger
	if l == nil {
		l = log.Default()
	}
	if dir == labequip.DirectionWrite {
		l.Printf("%s <- %q", address, msg)
		return
	}
	msg = strings.TrimSuffix(msg, "\n")
	switch {
	case len(msg) == 0:
		l.Printf("%s -> <no response>", address)
	case isASCII(msg):
		l.Printf("%s -> [%d] %q", address, len(msg), msg)
	case len(msg) < 32:
		l.Printf("%s -> [%d] %q (% 2x)", address, len(msg), msg, []byte(msg))
	default:
		l.Printf("%s -> [%d] % 2x", address, len(msg), []byte(msg))
	}
}

// Tee sends every message to each recorder in turn.
func Tee(recs ...labequip.Recorder) labequip.Recorder {
	return tee(recs)
}

type tee []labequip.Recorder

func (t tee) Record(address string, dir labequip.Direction, msg string) {
	for _, r := range t {
		r.Record(address, dir, msg)
	}
}

// Memory keeps messages in memory. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

// Record implements labequip.Recorder.
func (m *Memory) Record(address string, dir labequip.Direction, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, newEntry(address, dir, msg))
}

// Entries returns the messages recorded so far.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}
