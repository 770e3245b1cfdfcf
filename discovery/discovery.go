// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package discovery finds LAN instruments, either by browsing the mDNS
// services LXI instruments advertise or by scanning a subnet for the raw SCPI
// port. Results are TCPIP resource strings that a labequip.ResourceManager
// can open.
package discovery

import (
	"cmp"
	"fmt"
	"slices"
)

// Found is an instrument found on the network.
type Found struct {
	Resource string
	Host     string
	Addr     string
	Port     int
	// Name is the advertised instance name or the scanned host name.
	Name string
	// Via is the mDNS service type, or "nmap".
	Via string
}

func (f Found) String() string {
	if f.Name == "" {
		return f.Resource
	}
	return fmt.Sprintf("%s (%s)", f.Resource, f.Name)
}

// socketResource returns the raw socket resource string for host and port.
// Resource strings use "::" as separator, so IPv6 hosts are not represented.
func socketResource(host string, port int) string {
	return fmt.Sprintf("TCPIP0::%s::%d::SOCKET", host, port)
}

// instrResource returns the INSTR resource string for host.
func instrResource(host string) string {
	return fmt.Sprintf("TCPIP0::%s::INSTR", host)
}

// merge sorts found by resource and drops duplicates, keeping the first.
func merge(found []Found) []Found {
	slices.SortStableFunc(found, func(a, b Found) int { return cmp.Compare(a.Resource, b.Resource) })
	return slices.CompactFunc(found, func(a, b Found) bool { return a.Resource == b.Resource })
}

// Resources returns the resource strings of found.
func Resources(found []Found) []string {
	out := make([]string, len(found))
	for i, f := range found {
		out[i] = f.Resource
	}
	return out
}
