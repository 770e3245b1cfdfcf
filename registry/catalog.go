// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/gotmc/labequip"
	"github.com/gotmc/labequip/functiongenerator"
	"github.com/gotmc/labequip/oscilloscope"
)

// Constructor opens a device at address with the constructor arguments of a
// configuration entry.
type Constructor func(ctx context.Context, rm *labequip.ResourceManager, address string, args labequip.Args) (labequip.Device, error)

type driverKey struct {
	definition, object string
}

// Catalog maps the (definition, object) identifiers used in configuration
// files to driver constructors.
type Catalog struct {
	ctors map[driverKey]Constructor
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{ctors: make(map[driverKey]Constructor)}
}

// Register adds a driver. Registering the same identifiers twice replaces the
// earlier constructor.
func (c *Catalog) Register(definition, object string, ctor Constructor) {
	c.ctors[driverKey{definition, object}] = ctor
}

// Lookup finds the constructor for definition and object.
func (c *Catalog) Lookup(definition, object string) (Constructor, error) {
	ctor, ok := c.ctors[driverKey{definition, object}]
	if !ok {
		return nil, fmt.Errorf("%w: no driver %s in %s", labequip.ErrUnsupportedDevice, object, definition)
	}
	return ctor, nil
}

// Drivers lists the registered identifiers as "definition.object", sorted.
func (c *Catalog) Drivers() []string {
	out := make([]string, 0, len(c.ctors))
	for k := range c.ctors {
		out = append(out, k.definition+"."+k.object)
	}
	sort.Strings(out)
	return out
}

// DefaultCatalog returns a catalog holding every driver in this module.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	c.Register("labequip", "Instrument", func(ctx context.Context, rm *labequip.ResourceManager, address string, args labequip.Args) (labequip.Device, error) {
		return device(labequip.OpenWith(ctx, rm, address, args, &labequip.SessionConfig{}))
	})
	c.Register("labequip.functiongenerator", "Keysight_33500B", func(ctx context.Context, rm *labequip.ResourceManager, address string, args labequip.Args) (labequip.Device, error) {
		return device(functiongenerator.Open(ctx, rm, address, args))
	})
	c.Register("labequip.oscilloscope", "Lecroy_WR8xxx", func(ctx context.Context, rm *labequip.ResourceManager, address string, args labequip.Args) (labequip.Device, error) {
		return device(oscilloscope.Open(ctx, rm, address, args))
	})
	return c
}

// device keeps a failed constructor from producing a non-nil Device holding a
// nil pointer.
func device[T labequip.Device](d T, err error) (labequip.Device, error) {
	if err != nil {
		return nil, err
	}
	return d, nil
}
