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

package openstack

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
	"github.com/gophercloud/gophercloud/v2/openstack/baremetal/v1/nodes"

	coreerrors "github.com/unikorn-cloud/core/pkg/errors"

	"github.com/unikorn-cloud/conformance/pkg/poll"
)

// BaremetalClient wraps the generic client because gophercloud is unsafe.
type BaremetalClient struct {
	client *gophercloud.ServiceClient
}

// NewBaremetalClient provides a simple one-liner to start bare metal.
func NewBaremetalClient(ctx context.Context, provider CredentialProvider) (*BaremetalClient, error) {
	providerClient, err := provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	client, err := openstack.NewBareMetalV1(providerClient, gophercloud.EndpointOpts{})
	if err != nil {
		return nil, err
	}

	// Need at least 1.50 for sane provision state reporting.
	client.Microversion = "1.50"

	c := &BaremetalClient{
		client: client,
	}

	return c, nil
}

func (c *BaremetalClient) GetNode(ctx context.Context, id string) (*nodes.Node, error) {
	_, span := traceStart(ctx, fmt.Sprintf("GET /baremetal/v1/nodes/%s", id))
	defer span.End()

	return nodes.Get(ctx, c.client, id).Extract()
}

func (c *BaremetalClient) ListNodes(ctx context.Context) ([]nodes.Node, error) {
	_, span := traceStart(ctx, "GET /baremetal/v1/nodes/detail")
	defer span.End()

	page, err := nodes.ListDetail(c.client, nodes.ListOpts{}).AllPages(ctx)
	if err != nil {
		return nil, err
	}

	return nodes.ExtractNodes(page)
}

// GetNodeByInstance finds the node backing a nova instance.  Before the
// scheduler has placed the instance no node is associated and this
// returns not-found, callers poll for the association to appear.
func (c *BaremetalClient) GetNodeByInstance(ctx context.Context, instanceID string) (*nodes.Node, error) {
	_, span := traceStart(ctx, "GET /baremetal/v1/nodes/detail")
	defer span.End()

	page, err := nodes.ListDetail(c.client, nodes.ListOpts{InstanceUUID: instanceID}).AllPages(ctx)
	if err != nil {
		return nil, err
	}

	result, err := nodes.ExtractNodes(page)
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("%w: no node for instance %s", coreerrors.ErrResourceNotFound, instanceID)
	}

	if len(result) > 1 {
		return nil, fmt.Errorf("%w: instance %s on multiple nodes", coreerrors.ErrConsistency, instanceID)
	}

	return &result[0], nil
}

// WaitForNodeAssociated polls until ironic reports a node bound to the
// instance, returning that node.
func (c *BaremetalClient) WaitForNodeAssociated(ctx context.Context, instanceID string, timeout, interval time.Duration) (*nodes.Node, error) {
	var node *nodes.Node

	done := poll.Until(ctx, timeout, interval, func() bool {
		result, err := c.GetNodeByInstance(ctx, instanceID)
		if err != nil {
			return false
		}

		node = result

		return true
	})

	if !done {
		return nil, NewTimeoutError("node", instanceID, "instance association", timeout, "associated")
	}

	return node, nil
}

// WaitForNodePowerState polls until the node reports the target power
// state.
func (c *BaremetalClient) WaitForNodePowerState(ctx context.Context, id, state string, timeout, interval time.Duration) error {
	done := poll.Until(ctx, timeout, interval, func() bool {
		node, err := c.GetNode(ctx, id)
		if err != nil {
			return false
		}

		return node.PowerState == state
	})

	if !done {
		return NewTimeoutError("node", id, "power state", timeout, state)
	}

	return nil
}

// WaitForNodeProvisionState polls until the node reaches one of the
// target provision states.
func (c *BaremetalClient) WaitForNodeProvisionState(ctx context.Context, id string, timeout, interval time.Duration, targets ...string) error {
	done := poll.Until(ctx, timeout, interval, func() bool {
		node, err := c.GetNode(ctx, id)
		if err != nil {
			return false
		}

		return slices.Contains(targets, node.ProvisionState)
	})

	if !done {
		return NewTimeoutError("node", id, "provision state", timeout, targets...)
	}

	return nil
}
