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
	"time"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
	"github.com/gophercloud/gophercloud/v2/openstack/loadbalancer/v2/listeners"
	"github.com/gophercloud/gophercloud/v2/openstack/loadbalancer/v2/loadbalancers"
	"github.com/gophercloud/gophercloud/v2/openstack/loadbalancer/v2/pools"

	"github.com/unikorn-cloud/conformance/pkg/poll"
)

// LoadBalancerClient wraps the generic client because gophercloud is unsafe.
type LoadBalancerClient struct {
	client *gophercloud.ServiceClient
}

// NewLoadBalancerClient provides a simple one-liner to start load balancing.
func NewLoadBalancerClient(ctx context.Context, provider CredentialProvider) (*LoadBalancerClient, error) {
	providerClient, err := provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	client, err := openstack.NewLoadBalancerV2(providerClient, gophercloud.EndpointOpts{})
	if err != nil {
		return nil, err
	}

	c := &LoadBalancerClient{
		client: client,
	}

	return c, nil
}

func (c *LoadBalancerClient) CreateLoadBalancer(ctx context.Context, name, vipSubnetID string) (*loadbalancers.LoadBalancer, error) {
	_, span := traceStart(ctx, "POST /load-balancer/v2/lbaas/loadbalancers")
	defer span.End()

	opts := loadbalancers.CreateOpts{
		Name:        name,
		VipSubnetID: vipSubnetID,
	}

	return loadbalancers.Create(ctx, c.client, opts).Extract()
}

func (c *LoadBalancerClient) GetLoadBalancer(ctx context.Context, id string) (*loadbalancers.LoadBalancer, error) {
	_, span := traceStart(ctx, fmt.Sprintf("GET /load-balancer/v2/lbaas/loadbalancers/%s", id))
	defer span.End()

	return loadbalancers.Get(ctx, c.client, id).Extract()
}

// DeleteLoadBalancer cascades, taking listeners, pools and members with
// it, which is the only deletion mode that works reliably across clouds.
func (c *LoadBalancerClient) DeleteLoadBalancer(ctx context.Context, id string) error {
	_, span := traceStart(ctx, fmt.Sprintf("DELETE /load-balancer/v2/lbaas/loadbalancers/%s", id))
	defer span.End()

	opts := loadbalancers.DeleteOpts{
		Cascade: true,
	}

	return loadbalancers.Delete(ctx, c.client, id, opts).ExtractErr()
}

func (c *LoadBalancerClient) CreateListener(ctx context.Context, name, loadbalancerID string, port int) (*listeners.Listener, error) {
	_, span := traceStart(ctx, "POST /load-balancer/v2/lbaas/listeners")
	defer span.End()

	opts := listeners.CreateOpts{
		Name:           name,
		LoadbalancerID: loadbalancerID,
		Protocol:       listeners.ProtocolTCP,
		ProtocolPort:   port,
	}

	return listeners.Create(ctx, c.client, opts).Extract()
}

func (c *LoadBalancerClient) CreatePool(ctx context.Context, name, listenerID string) (*pools.Pool, error) {
	_, span := traceStart(ctx, "POST /load-balancer/v2/lbaas/pools")
	defer span.End()

	opts := pools.CreateOpts{
		Name:       name,
		ListenerID: listenerID,
		Protocol:   pools.ProtocolTCP,
		LBMethod:   pools.LBMethodRoundRobin,
	}

	return pools.Create(ctx, c.client, opts).Extract()
}

func (c *LoadBalancerClient) CreatePoolMember(ctx context.Context, poolID, address, subnetID string, port int) (*pools.Member, error) {
	_, span := traceStart(ctx, fmt.Sprintf("POST /load-balancer/v2/lbaas/pools/%s/members", poolID))
	defer span.End()

	opts := pools.CreateMemberOpts{
		Address:      address,
		ProtocolPort: port,
		SubnetID:     subnetID,
	}

	return pools.CreateMember(ctx, c.client, poolID, opts).Extract()
}

// WaitForLoadBalancerActive polls the provisioning status.  Octavia
// serializes operations per load balancer, so every mutation needs a
// round trip through ACTIVE before the next one is legal.
func (c *LoadBalancerClient) WaitForLoadBalancerActive(ctx context.Context, id string, timeout, interval time.Duration) error {
	done := poll.Until(ctx, timeout, interval, func() bool {
		lb, err := c.GetLoadBalancer(ctx, id)
		if err != nil {
			return false
		}

		return lb.ProvisioningStatus == "ACTIVE"
	})

	if !done {
		return NewTimeoutError("load balancer", id, "provisioning status", timeout, "ACTIVE")
	}

	return nil
}

// WaitForLoadBalancerDeleted polls until the load balancer is gone.
func (c *LoadBalancerClient) WaitForLoadBalancerDeleted(ctx context.Context, id string, timeout, interval time.Duration) error {
	done := poll.Until(ctx, timeout, interval, func() bool {
		lb, err := c.GetLoadBalancer(ctx, id)
		if err != nil {
			return IsNotFound(err)
		}

		return lb.ProvisioningStatus == "DELETED"
	})

	if !done {
		return NewTimeoutError("load balancer", id, "presence", timeout, "deleted")
	}

	return nil
}
