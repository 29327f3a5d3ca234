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
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/external"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/layer3/floatingips"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/layer3/routers"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/provider"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/security/groups"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/security/rules"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/networks"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/ports"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/subnets"

	coreerrors "github.com/unikorn-cloud/core/pkg/errors"
	"github.com/unikorn-cloud/core/pkg/util/cache"

	"k8s.io/utils/ptr"

	"github.com/unikorn-cloud/conformance/pkg/poll"
)

// NetworkClient wraps the generic client because gophercloud is unsafe.
type NetworkClient struct {
	client *gophercloud.ServiceClient

	// externalNetworkCache provides caching to avoid having to talk to
	// OpenStack, external networks don't come and go.
	externalNetworkCache *cache.TimeoutCache[[]networks.Network]
}

// NewNetworkClient provides a simple one-liner to start networking.
func NewNetworkClient(ctx context.Context, provider CredentialProvider) (*NetworkClient, error) {
	providerClient, err := provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	client, err := openstack.NewNetworkV2(providerClient, gophercloud.EndpointOpts{})
	if err != nil {
		return nil, err
	}

	c := &NetworkClient{
		client:               client,
		externalNetworkCache: cache.New[[]networks.Network](time.Hour),
	}

	return c, nil
}

// NetworkExt carries the provider attributes neutron tacks onto network
// responses when the extension is enabled.
type NetworkExt struct {
	networks.Network
	provider.NetworkProviderExt
}

// ExternalNetworks does a memoized lookup of external networks.
func (c *NetworkClient) ExternalNetworks(ctx context.Context) ([]networks.Network, error) {
	if result, ok := c.externalNetworkCache.Get(); ok {
		return result, nil
	}

	_, span := traceStart(ctx, "GET /network/v2.0/networks")
	defer span.End()

	affirmative := true

	page, err := networks.List(c.client, &external.ListOptsExt{ListOptsBuilder: &networks.ListOpts{}, External: &affirmative}).AllPages(ctx)
	if err != nil {
		return nil, err
	}

	var result []networks.Network

	if err := networks.ExtractNetworksInto(page, &result); err != nil {
		return nil, err
	}

	c.externalNetworkCache.Set(result)

	return result, nil
}

// FindExternalNetwork resolves a reference that may be a name or an ID,
// defaulting to the first external network when the reference is empty.
func (c *NetworkClient) FindExternalNetwork(ctx context.Context, ref string) (*networks.Network, error) {
	result, err := c.ExternalNetworks(ctx)
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("%w: no external networks visible", coreerrors.ErrResourceNotFound)
	}

	if ref == "" {
		return &result[0], nil
	}

	for i := range result {
		if result[i].ID == ref || result[i].Name == ref {
			return &result[i], nil
		}
	}

	return nil, fmt.Errorf("%w: external network %s", coreerrors.ErrResourceNotFound, ref)
}

func (c *NetworkClient) CreateNetwork(ctx context.Context, name string) (*NetworkExt, error) {
	_, span := traceStart(ctx, "POST /network/v2.0/networks")
	defer span.End()

	opts := &networks.CreateOpts{
		Name:         name,
		AdminStateUp: ptr.To(true),
	}

	var result NetworkExt

	if err := networks.Create(ctx, c.client, opts).ExtractInto(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *NetworkClient) GetNetwork(ctx context.Context, id string) (*NetworkExt, error) {
	_, span := traceStart(ctx, fmt.Sprintf("GET /network/v2.0/networks/%s", id))
	defer span.End()

	var result NetworkExt

	if err := networks.Get(ctx, c.client, id).ExtractInto(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *NetworkClient) ListNetworks(ctx context.Context) ([]NetworkExt, error) {
	_, span := traceStart(ctx, "GET /network/v2.0/networks")
	defer span.End()

	page, err := networks.List(c.client, &networks.ListOpts{}).AllPages(ctx)
	if err != nil {
		return nil, err
	}

	var result []NetworkExt

	if err := networks.ExtractNetworksInto(page, &result); err != nil {
		return nil, err
	}

	return result, nil
}

func (c *NetworkClient) UpdateNetwork(ctx context.Context, id string, opts networks.UpdateOpts) (*NetworkExt, error) {
	_, span := traceStart(ctx, fmt.Sprintf("PUT /network/v2.0/networks/%s", id))
	defer span.End()

	var result NetworkExt

	if err := networks.Update(ctx, c.client, id, opts).ExtractInto(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *NetworkClient) DeleteNetwork(ctx context.Context, id string) error {
	_, span := traceStart(ctx, fmt.Sprintf("DELETE /network/v2.0/networks/%s", id))
	defer span.End()

	return networks.Delete(ctx, c.client, id).ExtractErr()
}

// SubnetCreateOpts is the subset of subnet creation the harness drives.
type SubnetCreateOpts struct {
	Name           string
	NetworkID      string
	CIDR           string
	DNSNameservers []string
}

func (c *NetworkClient) CreateSubnet(ctx context.Context, opts *SubnetCreateOpts) (*subnets.Subnet, error) {
	_, span := traceStart(ctx, "POST /network/v2.0/subnets")
	defer span.End()

	createOpts := &subnets.CreateOpts{
		Name:           opts.Name,
		NetworkID:      opts.NetworkID,
		IPVersion:      gophercloud.IPv4,
		CIDR:           opts.CIDR,
		DNSNameservers: opts.DNSNameservers,
	}

	return subnets.Create(ctx, c.client, createOpts).Extract()
}

func (c *NetworkClient) GetSubnet(ctx context.Context, id string) (*subnets.Subnet, error) {
	_, span := traceStart(ctx, fmt.Sprintf("GET /network/v2.0/subnets/%s", id))
	defer span.End()

	return subnets.Get(ctx, c.client, id).Extract()
}

func (c *NetworkClient) ListSubnets(ctx context.Context) ([]subnets.Subnet, error) {
	_, span := traceStart(ctx, "GET /network/v2.0/subnets")
	defer span.End()

	page, err := subnets.List(c.client, &subnets.ListOpts{}).AllPages(ctx)
	if err != nil {
		return nil, err
	}

	return subnets.ExtractSubnets(page)
}

func (c *NetworkClient) DeleteSubnet(ctx context.Context, id string) error {
	_, span := traceStart(ctx, fmt.Sprintf("DELETE /network/v2.0/subnets/%s", id))
	defer span.End()

	return subnets.Delete(ctx, c.client, id).ExtractErr()
}

func (c *NetworkClient) CreateRouter(ctx context.Context, name, externalNetworkID string) (*routers.Router, error) {
	_, span := traceStart(ctx, "POST /network/v2.0/routers")
	defer span.End()

	opts := &routers.CreateOpts{
		Name:         name,
		AdminStateUp: ptr.To(true),
		GatewayInfo: &routers.GatewayInfo{
			NetworkID: externalNetworkID,
		},
	}

	return routers.Create(ctx, c.client, opts).Extract()
}

func (c *NetworkClient) GetRouter(ctx context.Context, id string) (*routers.Router, error) {
	_, span := traceStart(ctx, fmt.Sprintf("GET /network/v2.0/routers/%s", id))
	defer span.End()

	return routers.Get(ctx, c.client, id).Extract()
}

func (c *NetworkClient) ListRouters(ctx context.Context) ([]routers.Router, error) {
	_, span := traceStart(ctx, "GET /network/v2.0/routers")
	defer span.End()

	page, err := routers.List(c.client, routers.ListOpts{}).AllPages(ctx)
	if err != nil {
		return nil, err
	}

	return routers.ExtractRouters(page)
}

func (c *NetworkClient) DeleteRouter(ctx context.Context, id string) error {
	_, span := traceStart(ctx, fmt.Sprintf("DELETE /network/v2.0/routers/%s", id))
	defer span.End()

	return routers.Delete(ctx, c.client, id).ExtractErr()
}

func (c *NetworkClient) AddRouterInterface(ctx context.Context, routerID, subnetID string) error {
	_, span := traceStart(ctx, fmt.Sprintf("PUT /network/v2.0/routers/%s/add_router_interface", routerID))
	defer span.End()

	opts := &routers.AddInterfaceOpts{
		SubnetID: subnetID,
	}

	_, err := routers.AddInterface(ctx, c.client, routerID, opts).Extract()

	return err
}

func (c *NetworkClient) RemoveRouterInterface(ctx context.Context, routerID, subnetID string) error {
	_, span := traceStart(ctx, fmt.Sprintf("PUT /network/v2.0/routers/%s/remove_router_interface", routerID))
	defer span.End()

	opts := &routers.RemoveInterfaceOpts{
		SubnetID: subnetID,
	}

	_, err := routers.RemoveInterface(ctx, c.client, routerID, opts).Extract()

	return err
}

// PortCreateOpts is the subset of port creation the harness drives.
type PortCreateOpts struct {
	Name           string
	NetworkID      string
	SecurityGroups *[]string
}

func (c *NetworkClient) CreatePort(ctx context.Context, opts *PortCreateOpts) (*ports.Port, error) {
	_, span := traceStart(ctx, "POST /network/v2.0/ports")
	defer span.End()

	createOpts := &ports.CreateOpts{
		Name:           opts.Name,
		NetworkID:      opts.NetworkID,
		SecurityGroups: opts.SecurityGroups,
	}

	return ports.Create(ctx, c.client, createOpts).Extract()
}

func (c *NetworkClient) GetPort(ctx context.Context, id string) (*ports.Port, error) {
	_, span := traceStart(ctx, fmt.Sprintf("GET /network/v2.0/ports/%s", id))
	defer span.End()

	return ports.Get(ctx, c.client, id).Extract()
}

// ListPorts returns ports filtered by device, e.g. everything attached to
// a server.
func (c *NetworkClient) ListPorts(ctx context.Context, opts ports.ListOpts) ([]ports.Port, error) {
	_, span := traceStart(ctx, "GET /network/v2.0/ports")
	defer span.End()

	page, err := ports.List(c.client, opts).AllPages(ctx)
	if err != nil {
		return nil, err
	}

	return ports.ExtractPorts(page)
}

func (c *NetworkClient) UpdatePort(ctx context.Context, id string, opts ports.UpdateOpts) (*ports.Port, error) {
	_, span := traceStart(ctx, fmt.Sprintf("PUT /network/v2.0/ports/%s", id))
	defer span.End()

	return ports.Update(ctx, c.client, id, opts).Extract()
}

func (c *NetworkClient) DeletePort(ctx context.Context, id string) error {
	_, span := traceStart(ctx, fmt.Sprintf("DELETE /network/v2.0/ports/%s", id))
	defer span.End()

	return ports.Delete(ctx, c.client, id).ExtractErr()
}

func (c *NetworkClient) CreateSecurityGroup(ctx context.Context, name string) (*groups.SecGroup, error) {
	_, span := traceStart(ctx, "POST /network/v2.0/security-groups")
	defer span.End()

	opts := &groups.CreateOpts{
		Name:        name,
		Description: "managed by the conformance harness",
	}

	return groups.Create(ctx, c.client, opts).Extract()
}

func (c *NetworkClient) GetSecurityGroup(ctx context.Context, id string) (*groups.SecGroup, error) {
	_, span := traceStart(ctx, fmt.Sprintf("GET /network/v2.0/security-groups/%s", id))
	defer span.End()

	return groups.Get(ctx, c.client, id).Extract()
}

func (c *NetworkClient) DeleteSecurityGroup(ctx context.Context, id string) error {
	_, span := traceStart(ctx, fmt.Sprintf("DELETE /network/v2.0/security-groups/%s", id))
	defer span.End()

	return groups.Delete(ctx, c.client, id).ExtractErr()
}

func (c *NetworkClient) CreateSecurityGroupRule(ctx context.Context, opts rules.CreateOpts) (*rules.SecGroupRule, error) {
	_, span := traceStart(ctx, "POST /network/v2.0/security-group-rules")
	defer span.End()

	return rules.Create(ctx, c.client, opts).Extract()
}

func (c *NetworkClient) DeleteSecurityGroupRule(ctx context.Context, id string) error {
	_, span := traceStart(ctx, fmt.Sprintf("DELETE /network/v2.0/security-group-rules/%s", id))
	defer span.End()

	return rules.Delete(ctx, c.client, id).ExtractErr()
}

func (c *NetworkClient) CreateFloatingIP(ctx context.Context, externalNetworkID, portID string) (*floatingips.FloatingIP, error) {
	_, span := traceStart(ctx, "POST /network/v2.0/floatingips")
	defer span.End()

	opts := &floatingips.CreateOpts{
		FloatingNetworkID: externalNetworkID,
		PortID:            portID,
	}

	return floatingips.Create(ctx, c.client, opts).Extract()
}

func (c *NetworkClient) GetFloatingIP(ctx context.Context, id string) (*floatingips.FloatingIP, error) {
	_, span := traceStart(ctx, fmt.Sprintf("GET /network/v2.0/floatingips/%s", id))
	defer span.End()

	return floatingips.Get(ctx, c.client, id).Extract()
}

// AssociateFloatingIP points the floating IP at a port, or clears the
// association when the port ID is nil.
func (c *NetworkClient) AssociateFloatingIP(ctx context.Context, id string, portID *string) (*floatingips.FloatingIP, error) {
	_, span := traceStart(ctx, fmt.Sprintf("PUT /network/v2.0/floatingips/%s", id))
	defer span.End()

	opts := floatingips.UpdateOpts{
		PortID: portID,
	}

	return floatingips.Update(ctx, c.client, id, opts).Extract()
}

func (c *NetworkClient) DeleteFloatingIP(ctx context.Context, id string) error {
	_, span := traceStart(ctx, fmt.Sprintf("DELETE /network/v2.0/floatingips/%s", id))
	defer span.End()

	return floatingips.Delete(ctx, c.client, id).ExtractErr()
}

// WaitForFloatingIPStatus polls until the floating IP reaches the target
// status, typically ACTIVE after association.
func (c *NetworkClient) WaitForFloatingIPStatus(ctx context.Context, id, status string, timeout, interval time.Duration) error {
	done := poll.Until(ctx, timeout, interval, func() bool {
		fip, err := c.GetFloatingIP(ctx, id)
		if err != nil {
			return false
		}

		return fip.Status == status
	})

	if !done {
		return NewTimeoutError("floating IP", id, "status", timeout, status)
	}

	return nil
}
