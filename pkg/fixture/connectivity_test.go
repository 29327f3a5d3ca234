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

package fixture_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unikorn-cloud/conformance/pkg/fixture"
)

var errNoReply = errors.New("no reply")

func reachablePing(_ context.Context, _ string, _ time.Duration) error {
	return nil
}

func unreachablePing(_ context.Context, _ string, _ time.Duration) error {
	return errNoReply
}

func TestConnectivityPingAndSSH(t *testing.T) {
	t.Parallel()

	sshCalls := 0

	sshValidate := func(host, user string, _ []byte, _ time.Duration) error {
		sshCalls++

		assert.Equal(t, "203.0.113.10", host)
		assert.Equal(t, "ubuntu", user)

		return nil
	}

	s := fixture.NewTestScenario("unit", testConfig(), &fixture.Clients{}, logr.Discard(), reachablePing, sshValidate, nil)

	check := &fixture.ConnectivityCheck{
		Address:       "203.0.113.10",
		ShouldConnect: true,
		Keypair:       &fixture.Keypair{PrivateKey: []byte("key")},
	}

	require.NoError(t, s.CheckVMConnectivity(context.Background(), check))
	assert.Equal(t, 1, sshCalls)
}

func TestConnectivityNoSSHWhenDisconnectedExpected(t *testing.T) {
	t.Parallel()

	sshValidate := func(_, _ string, _ []byte, _ time.Duration) error {
		t.Fatal("ssh attempted for a negative connectivity check")
		return nil
	}

	s := fixture.NewTestScenario("unit", testConfig(), &fixture.Clients{}, logr.Discard(), unreachablePing, sshValidate, nil)

	check := &fixture.ConnectivityCheck{
		Address:       "203.0.113.10",
		ShouldConnect: false,
	}

	// Unreachable is exactly what we want here.
	require.NoError(t, s.CheckVMConnectivity(context.Background(), check))
}

func TestConnectivityUnexpectedReachability(t *testing.T) {
	t.Parallel()

	sshValidate := func(_, _ string, _ []byte, _ time.Duration) error {
		t.Fatal("ssh attempted for a negative connectivity check")
		return nil
	}

	s := fixture.NewTestScenario("unit", testConfig(), &fixture.Clients{}, logr.Discard(), reachablePing, sshValidate, nil)

	check := &fixture.ConnectivityCheck{
		Address:       "203.0.113.10",
		ShouldConnect: false,
	}

	err := s.CheckVMConnectivity(context.Background(), check)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still reachable")
}

func TestConnectivityUnreachableReportsPingFailure(t *testing.T) {
	t.Parallel()

	s := fixture.NewTestScenario("unit", testConfig(), &fixture.Clients{}, logr.Discard(), unreachablePing, nil, nil)

	check := &fixture.ConnectivityCheck{
		Address:       "203.0.113.10",
		ShouldConnect: true,
		Keypair:       &fixture.Keypair{PrivateKey: []byte("key")},
	}

	err := s.CheckVMConnectivity(context.Background(), check)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}

// panickyCompute blows up on console capture, the diagnostics path must
// swallow it.
type panickyCompute struct {
	fixture.ComputeAPI
}

func (f *panickyCompute) ShowConsoleOutput(_ context.Context, _ string, _ int) (string, error) {
	panic("console capture exploded")
}

func TestConnectivityDiagnosticsNeverMaskTheError(t *testing.T) {
	t.Parallel()

	clients := &fixture.Clients{Compute: &panickyCompute{}}

	s := fixture.NewTestScenario("unit", testConfig(), clients, logr.Discard(), unreachablePing, nil, nil)

	check := &fixture.ConnectivityCheck{
		Address:       "203.0.113.10",
		ShouldConnect: true,
		Keypair:       &fixture.Keypair{PrivateKey: []byte("key")},
		Server:        &fixture.Server{},
	}

	err := s.CheckVMConnectivity(context.Background(), check)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}

// fakeShell stands in for an SSH session on a guest.
type fakeShell struct {
	err    error
	pinged []string
}

func (f *fakeShell) PingHost(address string, _ int) error {
	f.pinged = append(f.pinged, address)
	return f.err
}

func TestGuestConnectivityReachable(t *testing.T) {
	t.Parallel()

	shell := &fakeShell{}

	dial := func(host, user string, _ []byte, _ time.Duration) (fixture.GuestShell, error) {
		assert.Equal(t, "203.0.113.10", host)
		assert.Equal(t, "ubuntu", user)

		return shell, nil
	}

	s := fixture.NewTestScenario("unit", testConfig(), &fixture.Clients{}, logr.Discard(), nil, nil, dial)

	check := &fixture.ConnectivityCheck{
		Address:       "203.0.113.10",
		ShouldConnect: true,
		Keypair:       &fixture.Keypair{PrivateKey: []byte("key")},
	}

	require.NoError(t, s.CheckGuestConnectivity(context.Background(), check, "10.0.0.20"))
	assert.Equal(t, []string{"10.0.0.20"}, shell.pinged)
}

func TestGuestConnectivityBlockedAsExpected(t *testing.T) {
	t.Parallel()

	shell := &fakeShell{err: errNoReply}

	dial := func(_, _ string, _ []byte, _ time.Duration) (fixture.GuestShell, error) {
		return shell, nil
	}

	s := fixture.NewTestScenario("unit", testConfig(), &fixture.Clients{}, logr.Discard(), nil, nil, dial)

	check := &fixture.ConnectivityCheck{
		Address:       "203.0.113.10",
		ShouldConnect: false,
		Keypair:       &fixture.Keypair{PrivateKey: []byte("key")},
	}

	// The guest failing to reach the target is the expected outcome.
	require.NoError(t, s.CheckGuestConnectivity(context.Background(), check, "10.0.0.20"))
}

func TestGuestConnectivityUnreachable(t *testing.T) {
	t.Parallel()

	shell := &fakeShell{err: errNoReply}

	dial := func(_, _ string, _ []byte, _ time.Duration) (fixture.GuestShell, error) {
		return shell, nil
	}

	s := fixture.NewTestScenario("unit", testConfig(), &fixture.Clients{}, logr.Discard(), nil, nil, dial)

	check := &fixture.ConnectivityCheck{
		Address:       "203.0.113.10",
		ShouldConnect: true,
		Keypair:       &fixture.Keypair{PrivateKey: []byte("key")},
	}

	err := s.CheckGuestConnectivity(context.Background(), check, "10.0.0.20")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot reach")
}

func TestGuestConnectivityDialFailureSurfaces(t *testing.T) {
	t.Parallel()

	errRefused := errors.New("connection refused")

	dial := func(_, _ string, _ []byte, _ time.Duration) (fixture.GuestShell, error) {
		return nil, errRefused
	}

	s := fixture.NewTestScenario("unit", testConfig(), &fixture.Clients{}, logr.Discard(), nil, nil, dial)

	check := &fixture.ConnectivityCheck{
		Address:       "203.0.113.10",
		ShouldConnect: true,
		Keypair:       &fixture.Keypair{PrivateKey: []byte("key")},
	}

	err := s.CheckGuestConnectivity(context.Background(), check, "10.0.0.20")
	require.ErrorIs(t, err, errRefused)
}

func TestSSHFailureSurfaces(t *testing.T) {
	t.Parallel()

	errAuth := errors.New("permission denied")

	sshValidate := func(_, _ string, _ []byte, _ time.Duration) error {
		return errAuth
	}

	s := fixture.NewTestScenario("unit", testConfig(), &fixture.Clients{}, logr.Discard(), reachablePing, sshValidate, nil)

	check := &fixture.ConnectivityCheck{
		Address:       "203.0.113.10",
		ShouldConnect: true,
		Keypair:       &fixture.Keypair{PrivateKey: []byte("key")},
	}

	err := s.CheckVMConnectivity(context.Background(), check)
	require.ErrorIs(t, err, errAuth)
}
