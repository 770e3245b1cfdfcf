// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package discovery

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
	"github.com/gotmc/labequip"
)

// mDNS service types advertised by LAN instruments.
const (
	ServiceLXI     = "_lxi._tcp"
	ServiceVXI11   = "_vxi-11._tcp"
	ServiceSCPIRaw = "_scpi-raw._tcp"
	ServiceHiSLIP  = "_hislip._tcp"
)

// Services lists the service types browsed by default. HiSLIP is left out as
// no transport in this module speaks it.
var Services = []string{ServiceLXI, ServiceVXI11, ServiceSCPIRaw}

// DefaultBrowseTime bounds a browse when the context has no deadline.
const DefaultBrowseTime = 3 * time.Second

const domain = "local."

// entry is the part of an mDNS service entry that names an instrument.
type entry struct {
	Instance string
	Service  string
	Host     string
	Port     int
	IPv4     []net.IP
}

func fromZeroconf(service string, e *zeroconf.ServiceEntry) entry {
	return entry{
		Instance: e.Instance,
		Service:  service,
		Host:     e.HostName,
		Port:     e.Port,
		IPv4:     e.AddrIPv4,
	}
}

// found converts e. Entries without a usable address, or for a service that
// has no transport, are dropped.
func (e entry) found() (Found, bool) {
	f := Found{
		Host: strings.TrimSuffix(e.Host, "."),
		Port: e.Port,
		Name: unescapeInstance(e.Instance),
		Via:  e.Service,
	}
	if len(e.IPv4) > 0 {
		f.Addr = e.IPv4[0].String()
	}
	target := f.Addr
	if target == "" {
		target = f.Host
	}
	if target == "" {
		return Found{}, false
	}
	switch e.Service {
	case ServiceSCPIRaw:
		port := e.Port
		if port == 0 {
			port = labequip.DefaultSocketPort
		}
		f.Port = port
		f.Resource = socketResource(target, port)
	case ServiceLXI, ServiceVXI11:
		f.Resource = instrResource(target)
	default:
		return Found{}, false
	}
	return f, true
}

// unescapeInstance undoes DNS-SD escaping of spaces and punctuation in an
// instance name.
func unescapeInstance(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// BrowseLXI browses the given mDNS service types, or Services if none are
// given, until ctx is done and returns the instruments seen, sorted by
// resource string. Without a deadline on ctx browsing stops after
// DefaultBrowseTime.
func BrowseLXI(ctx context.Context, services ...string) ([]Found, error) {
	if len(services) == 0 {
		services = Services
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultBrowseTime)
		defer cancel()
	}

	var (
		mu    sync.Mutex
		found []Found
		errs  []error
		wg    sync.WaitGroup
	)
	for _, svc := range services {
		entries := make(chan *zeroconf.ServiceEntry)
		removed := make(chan *zeroconf.ServiceEntry)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for {
				select {
				case e, ok := <-entries:
					if !ok {
						return
					}
					if f, ok := fromZeroconf(svc, e).found(); ok {
						mu.Lock()
						found = append(found, f)
						mu.Unlock()
					}
				case <-removed:
				case <-ctx.Done():
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			if err := zeroconf.Browse(ctx, svc, domain, entries, removed); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(found) == 0 && len(errs) > 0 {
		return nil, errs[0]
	}
	return merge(found), nil
}

// MDNSLister returns a labequip.Lister that browses for LAN instruments.
func MDNSLister(services ...string) labequip.Lister {
	return func(ctx context.Context) ([]string, error) {
		found, err := BrowseLXI(ctx, services...)
		return Resources(found), err
	}
}
