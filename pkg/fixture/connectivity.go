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

package fixture

import (
	"context"
	"fmt"
	"time"

	"github.com/unikorn-cloud/conformance/pkg/poll"
	"github.com/unikorn-cloud/conformance/pkg/remote"
)

// PingFunc sends a single ICMP echo and reports reachability.
type PingFunc func(ctx context.Context, address string, timeout time.Duration) error

// SSHValidateFunc proves an SSH login works.
type SSHValidateFunc func(host, user string, privateKey []byte, timeout time.Duration) error

func defaultSSHValidate(host, user string, privateKey []byte, timeout time.Duration) error {
	client, err := remote.NewClient(host, user, privateKey, timeout)
	if err != nil {
		return err
	}

	return client.ValidateAuthentication()
}

// GuestShell is the slice of the SSH client east-west checks consume.
type GuestShell interface {
	PingHost(address string, count int) error
}

// DialFunc opens a shell on a guest.
type DialFunc func(host, user string, privateKey []byte, timeout time.Duration) (GuestShell, error)

func defaultDial(host, user string, privateKey []byte, timeout time.Duration) (GuestShell, error) {
	return remote.NewClient(host, user, privateKey, timeout)
}

// ConnectivityCheck describes an expectation about a guest address.
type ConnectivityCheck struct {
	// Address is the IP to probe, usually a floating IP.
	Address string
	// ShouldConnect inverts the check when false: the address must
	// become unreachable, and SSH is never attempted.
	ShouldConnect bool
	// Keypair supplies the SSH identity, required when ShouldConnect.
	Keypair *Keypair
	// Server, when set, scopes failure diagnostics to this guest.
	Server *Server
}

// CheckVMConnectivity polls ICMP reachability until it matches the
// expectation, then proves SSH login for positive checks.  Failures are
// decorated with console and network diagnostics, captured such that a
// diagnostic error can never mask the connectivity error.
func (s *Scenario) CheckVMConnectivity(ctx context.Context, check *ConnectivityCheck) error {
	if err := s.checkReachability(ctx, check); err != nil {
		s.captureDiagnostics(ctx, check.Server)
		return err
	}

	if !check.ShouldConnect {
		return nil
	}

	if err := s.sshValidate(check.Address, s.Config.SSH.User, check.Keypair.PrivateKey, s.Config.Timeouts.SSH); err != nil {
		s.captureDiagnostics(ctx, check.Server)
		return fmt.Errorf("ssh to %s: %w", check.Address, err)
	}

	return nil
}

// CheckGuestConnectivity SSHes into a guest and pings a target address
// from inside it, proving east-west reachability rather than just
// harness to guest.  As with CheckVMConnectivity the expectation can be
// negative, in which case a ping that keeps succeeding is the failure.
func (s *Scenario) CheckGuestConnectivity(ctx context.Context, check *ConnectivityCheck, target string) error {
	shell, err := s.dial(check.Address, s.Config.SSH.User, check.Keypair.PrivateKey, s.Config.Timeouts.SSH)
	if err != nil {
		return fmt.Errorf("ssh to %s: %w", check.Address, err)
	}

	matched := poll.Until(ctx, s.Config.Timeouts.Ping, s.Config.Timeouts.PingInterval, func() bool {
		return (shell.PingHost(target, 1) == nil) == check.ShouldConnect
	})

	if !matched {
		s.captureDiagnostics(ctx, check.Server)

		if check.ShouldConnect {
			return fmt.Errorf("guest %s cannot reach %s after %v", check.Address, target, s.Config.Timeouts.Ping)
		}

		return fmt.Errorf("guest %s can still reach %s after %v", check.Address, target, s.Config.Timeouts.Ping)
	}

	return nil
}

func (s *Scenario) checkReachability(ctx context.Context, check *ConnectivityCheck) error {
	reachable := poll.Until(ctx, s.Config.Timeouts.Ping, s.Config.Timeouts.PingInterval, func() bool {
		err := s.ping(ctx, check.Address, s.Config.Timeouts.PingInterval)

		return (err == nil) == check.ShouldConnect
	})

	if !reachable {
		if check.ShouldConnect {
			return fmt.Errorf("%s unreachable after %v", check.Address, s.Config.Timeouts.Ping)
		}

		return fmt.Errorf("%s still reachable after %v", check.Address, s.Config.Timeouts.Ping)
	}

	return nil
}

// captureDiagnostics logs everything useful for a post mortem.  It is
// strictly best effort: API errors are logged and swallowed, and a panic
// in here must not replace the error that got us here.
func (s *Scenario) captureDiagnostics(ctx context.Context, server *Server) {
	defer func() {
		if r := recover(); r != nil {
			s.Log.Info("panic during diagnostics capture", "panic", fmt.Sprint(r))
		}
	}()

	if server != nil {
		output, err := s.Clients.Compute.ShowConsoleOutput(ctx, server.ID, 100)
		if err != nil {
			s.Log.Info("unable to capture console output", "server", server.ID, "error", err.Error())
		} else {
			s.Log.Info("guest console output", "server", server.ID, "console", output)
		}
	}

	if s.Clients.Network == nil {
		return
	}

	if networks, err := s.Clients.Network.ListNetworks(ctx); err == nil {
		for i := range networks {
			s.Log.Info("network state", "id", networks[i].ID, "name", networks[i].Name, "status", networks[i].Status)
		}
	}

	if subnets, err := s.Clients.Network.ListSubnets(ctx); err == nil {
		for i := range subnets {
			s.Log.Info("subnet state", "id", subnets[i].ID, "name", subnets[i].Name, "cidr", subnets[i].CIDR)
		}
	}

	if routers, err := s.Clients.Network.ListRouters(ctx); err == nil {
		for i := range routers {
			s.Log.Info("router state", "id", routers[i].ID, "name", routers[i].Name, "status", routers[i].Status)
		}
	}
}
