/*
Copyright 2025 the Unikorn Authors.
Copyright 2026 Nscale.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package ping implements ICMP echo from the harness host.  It uses
// unprivileged datagram sockets so tests don't need CAP_NET_RAW, which
// does require net.ipv4.ping_group_range to cover the running user.
package ping

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// ErrUnreachable means no echo reply arrived within the deadline.
var ErrUnreachable = errors.New("no ICMP echo reply")

const protocolICMP = 1

// Echo sends a single ICMP echo request and waits up to the timeout for
// the matching reply.
func Echo(ctx context.Context, address string, timeout time.Duration) error {
	ip, err := net.ResolveIPAddr("ip4", address)
	if err != nil {
		return err
	}

	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err != nil {
		return err
	}

	defer conn.Close()

	message := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Body: &icmp.Echo{
			ID:   os.Getpid() & 0xffff,
			Seq:  1,
			Data: []byte("conformance"),
		},
	}

	payload, err := message.Marshal(nil)
	if err != nil {
		return err
	}

	if _, err := conn.WriteTo(payload, &net.UDPAddr{IP: ip.IP}); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)

	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	if err := conn.SetReadDeadline(deadline); err != nil {
		return err
	}

	buffer := make([]byte, 1500)

	for {
		n, _, err := conn.ReadFrom(buffer)
		if err != nil {
			var netErr net.Error

			if errors.As(err, &netErr) && netErr.Timeout() {
				return fmt.Errorf("%w from %s", ErrUnreachable, address)
			}

			return err
		}

		reply, err := icmp.ParseMessage(protocolICMP, buffer[:n])
		if err != nil {
			continue
		}

		if reply.Type == ipv4.ICMPTypeEchoReply {
			return nil
		}
	}
}
