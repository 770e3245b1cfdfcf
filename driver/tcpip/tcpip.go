// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package tcpip provides the raw socket transport for TCPIP resources.
// Importing it registers the transport with labequip.Default.
//
// TCPIP::host::port::SOCKET resources connect to the given port. INSTR
// resources are served over the SCPI raw socket on port 5025; VXI-11 and
// HiSLIP are not spoken.
package tcpip

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gotmc/labequip"
)

func init() {
	labequip.Register(labequip.InterfaceTCPIP, Open)
}

// Terminators used on raw sockets.
const (
	WriteTerm = "\n"
	ReadTerm  = '\n'
)

// Open dials the resource and returns a stream transport.
func Open(ctx context.Context, r labequip.Resource) (labequip.Transport, error) {
	if r.Interface != labequip.InterfaceTCPIP {
		return nil, fmt.Errorf("%w: %s is not a TCPIP resource", labequip.ErrConnection, r)
	}
	if strings.HasPrefix(strings.ToLower(r.LANDevice), "hislip") {
		return nil, fmt.Errorf("%w: %s: HiSLIP is not supported, use ::%d::SOCKET",
			labequip.ErrConnection, r, labequip.DefaultSocketPort)
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(r.Host, strconv.Itoa(r.Port)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", labequip.ErrConnection, err)
	}
	dc := &deadlineConn{Conn: conn}
	return labequip.NewStream(dc, WriteTerm, ReadTerm, dc.setTimeout), nil
}

// deadlineConn refreshes the connection deadline before every read and write
// so the session timeout bounds each operation rather than the connection.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) setTimeout(d time.Duration) error {
	c.timeout = d
	return nil
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(p)
}
