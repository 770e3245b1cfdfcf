// Package labequiptest provides in-memory transports for testing drivers and
// the equipment registry without hardware.
package labequiptest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gotmc/labequip"
)

// ErrNoReply is returned by ReadLine when nothing was queued for reading.
var ErrNoReply = errors.New("labequiptest: read timeout, no reply queued")

// Fake is a scripted Transport. Commands are recorded in Written. A query
// (a command whose header ends in '?') queues a reply: the scripted entry in
// Replies if there is one, otherwise, when Echo is set, the value last written
// with the same header.
type Fake struct {
	Replies  map[string]string
	Blocks   map[string][]byte
	Echo     bool
	WriteErr error
	ReadErr  error

	Written []string
	Timeout time.Duration
	Closes  int
	Clears  int

	values  map[string]string
	pending []string
	blocks  [][]byte
}

// NewEcho returns a Fake that answers queries with the last value written.
func NewEcho() *Fake {
	return &Fake{Echo: true, Replies: make(map[string]string)}
}

// Reply scripts the reply to a query.
func (f *Fake) Reply(query, reply string) *Fake {
	if f.Replies == nil {
		f.Replies = make(map[string]string)
	}
	f.Replies[query] = reply
	return f
}

// Block scripts a binary block reply to a query.
func (f *Fake) Block(query string, data []byte) *Fake {
	if f.Blocks == nil {
		f.Blocks = make(map[string][]byte)
	}
	f.Blocks[query] = data
	return f
}

// Queue adds a message to be returned by the next ReadLine.
func (f *Fake) Queue(msg string) { f.pending = append(f.pending, msg) }

func (f *Fake) Command(cmd string) error {
	if f.WriteErr != nil {
		return f.WriteErr
	}
	cmd = strings.TrimSpace(cmd)
	f.Written = append(f.Written, cmd)
	if b, ok := f.Blocks[cmd]; ok {
		f.blocks = append(f.blocks, b)
		return nil
	}
	header, value, _ := strings.Cut(cmd, " ")
	if strings.HasSuffix(header, "?") {
		if r, ok := f.Replies[cmd]; ok {
			f.pending = append(f.pending, r)
			return nil
		}
		if f.Echo {
			if v, ok := f.values[strings.ToUpper(strings.TrimSuffix(header, "?"))]; ok {
				f.pending = append(f.pending, v)
			}
		}
		return nil
	}
	if f.values == nil {
		f.values = make(map[string]string)
	}
	f.values[strings.ToUpper(header)] = strings.TrimSpace(value)
	return nil
}

func (f *Fake) ReadLine() (string, error) {
	if f.ReadErr != nil {
		return "", f.ReadErr
	}
	if len(f.pending) == 0 {
		return "", ErrNoReply
	}
	s := f.pending[0]
	f.pending = f.pending[1:]
	return s, nil
}

func (f *Fake) ReadBlock() ([]byte, error) {
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	if len(f.blocks) == 0 {
		return nil, ErrNoReply
	}
	b := f.blocks[0]
	f.blocks = f.blocks[1:]
	return b, nil
}

func (f *Fake) Clear() error {
	f.Clears++
	return nil
}

func (f *Fake) SetTimeout(d time.Duration) error {
	f.Timeout = d
	return nil
}

func (f *Fake) Close() error {
	f.Closes++
	return nil
}

// Writes returns the number of commands written so far.
func (f *Fake) Writes() int { return len(f.Written) }

// Last returns the last command written, or "" if none.
func (f *Fake) Last() string {
	if len(f.Written) == 0 {
		return ""
	}
	return f.Written[len(f.Written)-1]
}

// Bench is a set of fake instruments reachable by resource string.
type Bench struct {
	Devices     map[string]*Fake
	Unreachable map[string]bool
	Opens       int
}

// NewBench returns an empty bench.
func NewBench() *Bench {
	return &Bench{
		Devices:     make(map[string]*Fake),
		Unreachable: make(map[string]bool),
	}
}

// Add places a fake instrument at address and returns it.
func (b *Bench) Add(address string, f *Fake) *Fake {
	b.Devices[address] = f
	return f
}

// Unplug makes address unreachable.
func (b *Bench) Unplug(address string) { b.Unreachable[address] = true }

// Opener returns a labequip.Opener serving the bench. Addresses that were
// never added behave like unplugged ones.
func (b *Bench) Opener() labequip.Opener {
	return func(ctx context.Context, r labequip.Resource) (labequip.Transport, error) {
		b.Opens++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, ok := b.Devices[r.Raw]
		if !ok || b.Unreachable[r.Raw] {
			return nil, fmt.Errorf("dial %s: connection refused", r.Raw)
		}
		return f, nil
	}
}

// Lister returns a labequip.Lister reporting every reachable address.
func (b *Bench) Lister() labequip.Lister {
	return func(context.Context) ([]string, error) {
		var addrs []string
		for addr := range b.Devices {
			if !b.Unreachable[addr] {
				addrs = append(addrs, addr)
			}
		}
		return addrs, nil
	}
}

// Manager returns a resource manager serving the bench for every interface
// type.
func (b *Bench) Manager() *labequip.ResourceManager {
	rm := labequip.NewResourceManager()
	for _, it := range []labequip.InterfaceType{
		labequip.InterfaceTCPIP, labequip.InterfaceASRL, labequip.InterfaceGPIB,
	} {
		rm.Register(it, b.Opener())
	}
	rm.RegisterLister(b.Lister())
	return rm
}

// Open opens a session on f directly, bypassing resource lookup.
func Open(address string, f *Fake, opts ...labequip.Option) *labequip.Instrument {
	inst, err := labequip.NewInstrument(address, f, opts...)
	if err != nil {
		panic(err)
	}
	return inst
}
