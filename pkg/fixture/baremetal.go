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

	"github.com/gophercloud/gophercloud/v2/openstack/baremetal/v1/nodes"
)

// Ironic power states.
const (
	PowerOn   = "power on"
	PowerOff  = "power off"
	Rebooting = "rebooting"
	Suspended = "suspended"
)

// Ironic provision states.  NoState is the pre-Kilo idle value, modern
// deployments report Available instead.
const (
	NoState        = ""
	Initializing   = "initializing"
	Available      = "available"
	Active         = "active"
	Building       = "building"
	WaitCallback   = "wait call-back"
	Deploying      = "deploying"
	DeployFailed   = "deploy failed"
	DeployComplete = "deploy complete"
	Deleting       = "deleting"
	Deleted        = "deleted"
	ProvisionError = "error"
)

// BaremetalInstance pairs the nova server with the ironic node backing
// it.
type BaremetalInstance struct {
	Server *Server
	Node   *nodes.Node
}

// BootInstance provisions a bare metal server, walking the deploy state
// machine stage by stage so a hang is attributed to the stage that
// stalled rather than one opaque timeout.  Server teardown is already on
// the ledger before the first wait.
func (s *Scenario) BootInstance(ctx context.Context, opts *ServerOpts) (*BaremetalInstance, error) {
	if opts == nil {
		opts = &ServerOpts{}
	}

	// Readiness is staged below, the generic ACTIVE wait is way too
	// coarse for bare metal.
	opts.NoWait = true

	server, err := s.CreateServer(ctx, opts)
	if err != nil {
		return nil, err
	}

	timeouts := s.Config.Timeouts

	node, err := s.Clients.Baremetal.WaitForNodeAssociated(ctx, server.ID, timeouts.Association, timeouts.BuildInterval)
	if err != nil {
		return nil, err
	}

	if err := s.Clients.Baremetal.WaitForNodePowerState(ctx, node.UUID, PowerOn, timeouts.Power, timeouts.BuildInterval); err != nil {
		return nil, err
	}

	// The ramp to wait call-back is quick, a node still queued here is
	// a scheduling or BMC problem, so this stage gets a short deadline.
	if err := s.Clients.Baremetal.WaitForNodeProvisionState(ctx, node.UUID, timeouts.Callback, timeouts.BuildInterval, WaitCallback, Active); err != nil {
		return nil, err
	}

	// The deploy itself writes a whole image to disk, give it the full
	// build budget.
	if err := s.Clients.Baremetal.WaitForNodeProvisionState(ctx, node.UUID, timeouts.Build, timeouts.BuildInterval, Active); err != nil {
		return nil, err
	}

	if err := s.Clients.Compute.WaitForServerStatus(ctx, server.ID, timeouts.Build, timeouts.BuildInterval, "ACTIVE"); err != nil {
		return nil, err
	}

	if err := server.Refresh(ctx); err != nil {
		return nil, err
	}

	node, err = s.Clients.Baremetal.GetNode(ctx, node.UUID)
	if err != nil {
		return nil, err
	}

	instance := &BaremetalInstance{
		Server: server,
		Node:   node,
	}

	return instance, nil
}

// TerminateInstance deletes the server and waits for ironic to finish
// unprovisioning the node, powering it back off into the idle pool.
func (s *Scenario) TerminateInstance(ctx context.Context, instance *BaremetalInstance) error {
	if err := instance.Server.Delete(ctx); err != nil {
		return err
	}

	timeouts := s.Config.Timeouts

	if err := s.Clients.Baremetal.WaitForNodeProvisionState(ctx, instance.Node.UUID, timeouts.Unprovision, timeouts.BuildInterval, NoState, Available); err != nil {
		return err
	}

	return s.Clients.Baremetal.WaitForNodePowerState(ctx, instance.Node.UUID, PowerOff, timeouts.Power, timeouts.BuildInterval)
}
