// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package discovery

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/Ullaakut/nmap/v3"
	"github.com/gotmc/labequip"
)

// ScanPorts are the TCP ports probed by ScanSubnet: raw SCPI and the Keysight
// and Rigol socket ports.
var ScanPorts = []int{labequip.DefaultSocketPort, 5024, 5555}

// ScanSubnet runs an nmap TCP scan of targets, such as "192.168.1.0/24", and
// returns a raw socket resource for every open port in ports. If ports is
// empty ScanPorts is used. The nmap binary must be installed.
func ScanSubnet(ctx context.Context, targets []string, ports ...int) ([]Found, error) {
	if len(targets) == 0 {
		return nil, &labequip.ArgumentError{Op: "scan subnet", Arg: "targets", Value: "none"}
	}
	if len(ports) == 0 {
		ports = ScanPorts
	}
	list := make([]string, len(ports))
	for i, p := range ports {
		list[i] = strconv.Itoa(p)
	}
	scanner, err := nmap.NewScanner(ctx,
		nmap.WithTargets(targets...),
		nmap.WithPorts(strings.Join(list, ",")),
	)
	if err != nil {
		return nil, fmt.Errorf("create scanner: %w", err)
	}
	result, warnings, err := scanner.Run()
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", strings.Join(targets, " "), err)
	}
	if warnings != nil && len(*warnings) > 0 {
		log.Printf("nmap: warnings for %s: %v", strings.Join(targets, " "), *warnings)
	}
	return fromScan(result), nil
}

// fromScan collects the open ports of the hosts that are up.
func fromScan(result *nmap.Run) []Found {
	if result == nil {
		return nil
	}
	var found []Found
	for _, host := range result.Hosts {
		if host.Status.State != "up" || len(host.Addresses) == 0 {
			continue
		}
		ip := ""
		for _, a := range host.Addresses {
			if a.AddrType == "ipv4" {
				ip = a.Addr
				break
			}
		}
		if ip == "" {
			continue
		}
		name := ""
		if len(host.Hostnames) > 0 {
			name = host.Hostnames[0].Name
		}
		for _, p := range host.Ports {
			if p.State.State != "open" {
				continue
			}
			found = append(found, Found{
				Resource: socketResource(ip, int(p.ID)),
				Host:     name,
				Addr:     ip,
				Port:     int(p.ID),
				Name:     name,
				Via:      "nmap",
			})
		}
	}
	return merge(found)
}

// NmapLister returns a labequip.Lister that scans targets for open ports.
func NmapLister(targets []string, ports ...int) labequip.Lister {
	return func(ctx context.Context) ([]string, error) {
		found, err := ScanSubnet(ctx, targets, ports...)
		return Resources(found), err
	}
}
