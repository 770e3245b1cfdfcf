// Copyright (c) 2020–2026 The labequip developers. All rights reserved.
// Project site: https://github.com/gotmc/labequip
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

/*
Package labequip talks SCPI to bench instruments over VISA style resource
strings.

A ResourceManager maps a resource string to a Transport registered for its
interface type. The driver packages register themselves with Default when
imported:

	import (
		_ "github.com/gotmc/labequip/driver/asrl"
		_ "github.com/gotmc/labequip/driver/tcpip"
	)

	inst, err := labequip.Default.Open(ctx, "TCPIP0::192.168.1.20::5025::SOCKET")
	if err != nil {
		log.Fatal(err)
	}
	defer inst.Close()
	idn, err := inst.Identify()

Instrument sessions are synchronous. Every query is one write followed by one
read, bounded only by the session timeout. A session must not be shared
between goroutines without external locking.
*/
package labequip
