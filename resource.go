// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package labequip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"go.uber.org/multierr"
)

// DefaultOpenTimeout bounds how long opening a resource may take.
const DefaultOpenTimeout = 1000 * time.Millisecond

// ResourceManager maps resource strings to transports and enumerates the
// resources that can be reached. Register openers and listers during setup;
// after that the manager is only read.
type ResourceManager struct {
	OpenTimeout time.Duration

	openers map[InterfaceType]Opener
	listers []Lister
	opts    []Option
}

// NewResourceManager returns an empty resource manager.
func NewResourceManager() *ResourceManager {
	return &ResourceManager{
		OpenTimeout: DefaultOpenTimeout,
		openers:     make(map[InterfaceType]Opener),
	}
}

// Default is the process-wide resource manager the transport drivers register
// themselves with.
var Default = NewResourceManager()

// Register installs the opener for an interface type on the Default manager.
func Register(it InterfaceType, o Opener) { Default.Register(it, o) }

// RegisterLister adds a lister to the Default manager.
func RegisterLister(l Lister) { Default.RegisterLister(l) }

// Register installs the opener for an interface type, replacing any previous
// one.
func (rm *ResourceManager) Register(it InterfaceType, o Opener) {
	rm.openers[it] = o
}

// RegisterLister adds a lister consulted by ListResources.
func (rm *ResourceManager) RegisterLister(l Lister) {
	rm.listers = append(rm.listers, l)
}

// WithOptions returns a manager sharing rm's openers and listers that applies
// opts to every session it opens, ahead of the options passed to Open.
func (rm *ResourceManager) WithOptions(opts ...Option) *ResourceManager {
	c := *rm
	c.listers = slices.Clip(rm.listers)
	c.opts = append(slices.Clip(rm.opts), opts...)
	return &c
}

// Open parses address, opens a transport for it and returns a session. All
// failures to reach the instrument wrap ErrConnection.
func (rm *ResourceManager) Open(ctx context.Context, address string, opts ...Option) (*Instrument, error) {
	r, err := ParseResource(address)
	if err != nil {
		return nil, err
	}
	open, ok := rm.openers[r.Interface]
	if !ok {
		return nil, fmt.Errorf("%w: no transport registered for %s (%s)", ErrConnection, r.Interface, address)
	}
	timeout := rm.OpenTimeout
	if timeout <= 0 {
		timeout = DefaultOpenTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	t, err := open(ctx, r)
	if err != nil {
		if errors.Is(err, ErrConnection) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, address, err)
	}
	if len(rm.opts) > 0 {
		opts = append(slices.Clip(rm.opts), opts...)
	}
	inst, err := NewInstrument(address, t, opts...)
	if err != nil {
		t.Close()
		return nil, err
	}
	return inst, nil
}

// ListResources returns the sorted, de-duplicated resource strings reported by
// every lister. Listers that fail do not hide the results of the others; their
// errors are combined and returned alongside.
func (rm *ResourceManager) ListResources(ctx context.Context) ([]string, error) {
	var (
		all  []string
		errs error
	)
	for _, l := range rm.listers {
		found, err := l(ctx)
		errs = multierr.Append(errs, err)
		all = append(all, found...)
	}
	slices.Sort(all)
	return slices.Compact(all), errs
}

// Identity pairs a resource string with its *IDN? reply.
type Identity struct {
	Address string
	IDN     string
}

// IdentifyDevices opens every listed resource and asks it to identify itself.
// Resources that cannot be opened or do not answer are skipped. If w is not
// nil, progress is written to it.
func (rm *ResourceManager) IdentifyDevices(ctx context.Context, w io.Writer, opts ...Option) ([]Identity, error) {
	addrs, err := rm.ListResources(ctx)
	if len(addrs) == 0 && err != nil {
		return nil, err
	}
	var found []Identity
	for _, addr := range addrs {
		idn, ierr := rm.identify(ctx, addr, opts...)
		if ierr != nil {
			if w != nil {
				fmt.Fprintf(w, "Invalid IDN query response from address %s\n\n", addr)
			}
			continue
		}
		found = append(found, Identity{Address: addr, IDN: idn})
		if w != nil {
			fmt.Fprintf(w, "address: %s\nresponse: %s\n\n", addr, idn)
		}
	}
	return found, nil
}

func (rm *ResourceManager) identify(ctx context.Context, addr string, opts ...Option) (string, error) {
	inst, err := rm.Open(ctx, addr, opts...)
	if err != nil {
		return "", err
	}
	defer inst.Close()
	return inst.Identify()
}
