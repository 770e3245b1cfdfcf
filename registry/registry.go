// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package registry connects to the equipment described in a configuration
// file and runs each device's initialization sequence.
//
// Without a mask every configured device is optional: devices that cannot be
// reached are reported and skipped. With a mask only the named devices are
// connected and every one of them is required; the first failure aborts and
// closes whatever was already opened.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/gotmc/labequip"
	"go.uber.org/multierr"
)

// Option configures New.
type Option func(*options)

type options struct {
	mask    []string
	init    bool
	verbose io.Writer
	rm      *labequip.ResourceManager
	catalog *Catalog
	session []labequip.Option
}

// WithMask restricts the registry to the named devices and makes each of them
// required.
func WithMask(names ...string) Option {
	return func(o *options) { o.mask = append(o.mask, names...) }
}

// WithInit runs the initialization sequence of every connected device.
func WithInit() Option {
	return func(o *options) { o.init = true }
}

// WithVerbose reports the outcome of every connection and initialization step
// to w.
func WithVerbose(w io.Writer) Option {
	return func(o *options) { o.verbose = w }
}

// WithResourceManager sets the resource manager used to open devices. It
// defaults to labequip.Default.
func WithResourceManager(rm *labequip.ResourceManager) Option {
	return func(o *options) { o.rm = rm }
}

// WithSessionOptions applies opts to every session the registry opens.
// Constructor arguments from the configuration, such as timeout, take
// precedence.
func WithSessionOptions(opts ...labequip.Option) Option {
	return func(o *options) { o.session = append(o.session, opts...) }
}

// WithCatalog sets the drivers that configuration entries may name. It
// defaults to DefaultCatalog.
func WithCatalog(c *Catalog) Option {
	return func(o *options) { o.catalog = c }
}

// Registry holds the devices connected from a configuration.
type Registry struct {
	names    []string
	devices  map[string]labequip.Device
	failures []error
	out      io.Writer
}

// Open loads the configuration file at path and connects to its devices.
func Open(ctx context.Context, path string, opts ...Option) (*Registry, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, opts...)
}

// New connects to the devices of cfg in configuration order.
//
// A device that cannot be reached (ErrConnection) or whose driver is unknown
// (ErrUnsupportedDevice) is recorded in Failures when no mask is set. With a
// mask, or for any other error, New closes every device it opened and returns
// the error wrapped in a *labequip.DeviceError.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Registry, error) {
	o := options{rm: labequip.Default}
	for _, opt := range opts {
		opt(&o)
	}
	if o.catalog == nil {
		o.catalog = DefaultCatalog()
	}
	if len(o.session) > 0 {
		o.rm = o.rm.WithOptions(o.session...)
	}

	entries, err := o.filter(cfg)
	if err != nil {
		return nil, err
	}

	r := &Registry{devices: make(map[string]labequip.Device), out: o.verbose}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, multierr.Append(err, r.Close())
		}
		dev, err := r.connect(ctx, &o, e)
		if err != nil {
			derr := &labequip.DeviceError{Name: e.Name, Address: e.Address, Err: err}
			if len(o.mask) > 0 || !optional(err) {
				return nil, multierr.Append(derr, r.Close())
			}
			r.failures = append(r.failures, derr)
			continue
		}
		r.names = append(r.names, e.Name)
		r.devices[e.Name] = dev
		r.printf("[CONNECTED] %s\n", e.Name)

		if o.init && len(e.Init) > 0 {
			if err := r.initialize(dev, e.Init); err != nil {
				derr := &labequip.DeviceError{Name: e.Name, Address: e.Address, Err: err}
				return nil, multierr.Append(derr, r.Close())
			}
			r.printf("\tInitialized\n")
		}
	}
	return r, nil
}

// filter checks the mask against cfg and returns the entries to connect.
func (o *options) filter(cfg *Config) ([]Entry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: no configuration", labequip.ErrConfiguration)
	}
	if len(o.mask) == 0 {
		return cfg.Entries, nil
	}
	var missing []string
	for _, name := range o.mask {
		if _, ok := cfg.Lookup(name); !ok && !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, &labequip.MissingEquipmentError{Names: missing}
	}
	var entries []Entry
	for _, e := range cfg.Entries {
		if slices.Contains(o.mask, e.Name) {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (r *Registry) connect(ctx context.Context, o *options, e Entry) (labequip.Device, error) {
	ctor, err := o.catalog.Lookup(e.Definition, e.Object)
	if err != nil {
		r.printf("[UNSUPPORTED DEVICE] %s\t%v\n", e.Name, err)
		return nil, err
	}
	dev, err := ctor(ctx, o.rm, e.Address, e.Kwargs)
	if err != nil {
		if errors.Is(err, labequip.ErrConnection) {
			r.printf("[FAILED CONNECTION] %s\n", e.Name)
		}
		return nil, err
	}
	return dev, nil
}

// optional reports whether an unmasked device failing with err may be
// skipped.
func optional(err error) bool {
	return errors.Is(err, labequip.ErrConnection) || errors.Is(err, labequip.ErrUnsupportedDevice)
}

// initialize runs steps in order. Steps the driver does not declare, and steps
// whose arguments do not match, are reported and skipped. Any other error
// stops the sequence.
func (r *Registry) initialize(dev labequip.Device, steps []InitStep) error {
	var allowed map[string]labequip.StepFunc
	if in, ok := dev.(labequip.Initializer); ok {
		allowed = in.InitSteps()
	}
	for _, s := range steps {
		fn, ok := allowed[s.Method]
		if !ok {
			r.printf("\tUnknown initialization command %s\n", s.Method)
			continue
		}
		if err := fn(s.Args); err != nil {
			if errors.Is(err, labequip.ErrArgumentMismatch) {
				r.printf("\tError with initialization command %s:\t%v\n", s.Method, err)
				continue
			}
			return fmt.Errorf("init %s: %w", s.Method, err)
		}
	}
	return nil
}

func (r *Registry) printf(format string, a ...any) {
	if r.out != nil {
		fmt.Fprintf(r.out, format, a...)
	}
}

// Device returns the connected device called name.
func (r *Registry) Device(name string) (labequip.Device, bool) {
	d, ok := r.devices[name]
	return d, ok
}

// Get returns the device called name as a T, for example
// *functiongenerator.Keysight33500B.
func Get[T labequip.Device](r *Registry, name string) (T, error) {
	var zero T
	d, ok := r.devices[name]
	if !ok {
		return zero, fmt.Errorf("%w: %s is not connected", labequip.ErrConfiguration, name)
	}
	t, ok := d.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is a %T, not a %T", labequip.ErrConfiguration, name, d, zero)
	}
	return t, nil
}

// Names returns the names of the connected devices in configuration order.
func (r *Registry) Names() []string { return slices.Clone(r.names) }

// Len returns the number of connected devices.
func (r *Registry) Len() int { return len(r.names) }

// Failures returns one *labequip.DeviceError for every optional device that
// could not be connected.
func (r *Registry) Failures() []error { return slices.Clone(r.failures) }

// Close closes every connected device, in reverse order, and combines their
// errors.
func (r *Registry) Close() error {
	var errs error
	for i := len(r.names) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, r.devices[r.names[i]].Close())
	}
	r.names = nil
	clear(r.devices)
	return errs
}
