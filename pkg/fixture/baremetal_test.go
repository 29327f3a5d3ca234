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
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/gophercloud/gophercloud/v2/openstack/baremetal/v1/nodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unikorn-cloud/conformance/pkg/fixture"
	"github.com/unikorn-cloud/conformance/pkg/openstack"
)

// fakeBaremetal records the deploy stages as they are waited on, and can
// stall at a named stage to simulate a hung deployment.
type fakeBaremetal struct {
	fixture.BaremetalAPI

	stall  string
	stages []string
}

func (f *fakeBaremetal) WaitForNodeAssociated(_ context.Context, instanceID string, timeout, _ time.Duration) (*nodes.Node, error) {
	f.stages = append(f.stages, "associated")

	if f.stall == "associated" {
		return nil, openstack.NewTimeoutError("node", instanceID, "instance association", timeout, "associated")
	}

	return &nodes.Node{UUID: "node-id"}, nil
}

func (f *fakeBaremetal) WaitForNodePowerState(_ context.Context, id, state string, timeout, _ time.Duration) error {
	f.stages = append(f.stages, "power "+state)

	if f.stall == "power" {
		return openstack.NewTimeoutError("node", id, "power state", timeout, state)
	}

	return nil
}

func (f *fakeBaremetal) WaitForNodeProvisionState(_ context.Context, id string, timeout, _ time.Duration, targets ...string) error {
	f.stages = append(f.stages, "provision "+strings.Join(targets, "|"))

	if f.stall == "provision" {
		return openstack.NewTimeoutError("node", id, "provision state", timeout, targets...)
	}

	return nil
}

func (f *fakeBaremetal) GetNode(_ context.Context, id string) (*nodes.Node, error) {
	node := &nodes.Node{
		UUID:           id,
		PowerState:     fixture.PowerOn,
		ProvisionState: fixture.Active,
	}

	return node, nil
}

func TestBootInstanceStageOrder(t *testing.T) {
	t.Parallel()

	baremetal := &fakeBaremetal{}
	compute := &fakeCompute{buildStatus: "ACTIVE"}
	clients := &fixture.Clients{Compute: compute, Image: &fakeImage{}, Baremetal: baremetal}

	s := fixture.NewScenario("unit", testConfig(), clients, logr.Discard())

	instance, err := s.BootInstance(context.Background(), nil)
	require.NoError(t, err)

	// Association, power, the quick ramp to wait call-back, then the
	// full deploy, in that order.
	expected := []string{
		"associated",
		"power " + fixture.PowerOn,
		"provision " + fixture.WaitCallback + "|" + fixture.Active,
		"provision " + fixture.Active,
	}
	assert.Equal(t, expected, baremetal.stages)

	assert.Equal(t, "node-id", instance.Node.UUID)
	assert.Equal(t, fixture.Active, instance.Node.ProvisionState)
	assert.Equal(t, "server-id", instance.Server.ID)
}

func TestBootInstanceStallNamesStage(t *testing.T) {
	t.Parallel()

	baremetal := &fakeBaremetal{stall: "power"}
	compute := &fakeCompute{buildStatus: "ACTIVE"}
	clients := &fixture.Clients{Compute: compute, Image: &fakeImage{}, Baremetal: baremetal}

	s := fixture.NewScenario("unit", testConfig(), clients, logr.Discard())

	_, err := s.BootInstance(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, openstack.IsTimeout(err))

	// The error names the stage that stalled, not a generic deadline.
	assert.Contains(t, err.Error(), "power state")

	// Later stages were never waited on.
	assert.Equal(t, []string{"associated", "power " + fixture.PowerOn}, baremetal.stages)

	// The server was registered for cleanup before any waiting began.
	require.NoError(t, s.Teardown(context.Background()))
	assert.Equal(t, []string{"server-id"}, compute.deleted)
}

func TestTerminateInstance(t *testing.T) {
	t.Parallel()

	baremetal := &fakeBaremetal{}
	compute := &fakeCompute{buildStatus: "ACTIVE"}
	clients := &fixture.Clients{Compute: compute, Image: &fakeImage{}, Baremetal: baremetal}

	s := fixture.NewScenario("unit", testConfig(), clients, logr.Discard())

	instance, err := s.BootInstance(context.Background(), nil)
	require.NoError(t, err)

	require.NoError(t, s.TerminateInstance(context.Background(), instance))

	// The delete was issued, then ironic unwound the node back into the
	// idle pool and powered it off.
	assert.Equal(t, []string{"server-id"}, compute.deleted)

	terminateStages := baremetal.stages[len(baremetal.stages)-2:]
	expected := []string{
		"provision " + fixture.NoState + "|" + fixture.Available,
		"power " + fixture.PowerOff,
	}
	assert.Equal(t, expected, terminateStages)
}
