package cmdlog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gotmc/labequip"
)

// Entry is one recorded message.
type Entry struct {
	Time    time.Time `cbor:"1,keyasint"`
	Address string    `cbor:"2,keyasint"`
	Read    bool      `cbor:"3,keyasint,omitempty"`
	Msg     string    `cbor:"4,keyasint"`
}

// Direction returns which way the message travelled.
func (e Entry) Direction() labequip.Direction {
	if e.Read {
		return labequip.DirectionRead
	}
	return labequip.DirectionWrite
}

func (e Entry) String() string {
	arrow := "<-"
	if e.Read {
		arrow = "->"
	}
	return fmt.Sprintf("%s %s %s %q", e.Time.Format("15:04:05.000000"), e.Address, arrow, e.Msg)
}

// now is replaced in tests.
var now = time.Now

func newEntry(address string, dir labequip.Direction, msg string) Entry {
	return Entry{Time: now(), Address: address, Read: dir == labequip.DirectionRead, Msg: msg}
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("cmdlog: encoder mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyQuiet,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("cmdlog: decoder mode: %v", err))
	}
}

// Transcript writes messages to a file as a stream of CBOR records. It is
// safe for concurrent use.
type Transcript struct {
	mu     sync.Mutex
	file   *os.File
	enc    *cbor.Encoder
	err    error
	closed bool
}

// Create opens path for appending, creating it if needed.
func Create(path string) (*Transcript, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Transcript{file: f, enc: encMode.NewEncoder(f)}, nil
}

// Record implements labequip.Recorder. The first write error is kept and
// returned by Close; later messages are dropped.
func (t *Transcript) Record(address string, dir labequip.Direction, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.err != nil {
		return
	}
	t.err = t.enc.Encode(newEntry(address, dir, msg))
}

// Close closes the file. Closing twice is a no-op.
func (t *Transcript) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return errors.Join(t.err, t.file.Close())
}

// Reader reads the entries of a transcript.
type Reader struct {
	dec *cbor.Decoder
}

// NewReader reads entries from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: decMode.NewDecoder(r)}
}

// Next returns the next entry, or io.EOF at the end of the transcript.
func (r *Reader) Next() (Entry, error) {
	var e Entry
	if err := r.dec.Decode(&e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// ReadFile returns every entry of the transcript at path.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := NewReader(f)
	var out []Entry
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("%s: entry %d: %w", path, len(out)+1, err)
		}
		out = append(out, e)
	}
}
