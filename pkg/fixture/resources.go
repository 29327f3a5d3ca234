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

	"github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/volumes"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/servers"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/layer3/floatingips"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/layer3/routers"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/security/groups"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/networks"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/ports"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/subnets"

	"github.com/unikorn-cloud/conformance/pkg/openstack"
)

// The wrappers below embed the raw API record so attribute access is a
// plain field read of the last observed state.  Refresh re-fetches on
// demand, nothing refreshes implicitly.  Delete is idempotent, a 404
// counts as success so cascading deletes don't poison teardown.

// Server proxies a nova server.
type Server struct {
	servers.Server

	compute ComputeAPI
}

func (r *Server) Refresh(ctx context.Context) error {
	result, err := r.compute.GetServer(ctx, r.ID)
	if err != nil {
		return err
	}

	r.Server = *result

	return nil
}

func (r *Server) Delete(ctx context.Context) error {
	return openstack.IgnoreNotFound(r.compute.DeleteServer(ctx, r.ID))
}

// Volume proxies a cinder volume.
type Volume struct {
	volumes.Volume

	blockstorage BlockStorageAPI
}

func (r *Volume) Refresh(ctx context.Context) error {
	result, err := r.blockstorage.GetVolume(ctx, r.ID)
	if err != nil {
		return err
	}

	r.Volume = *result

	return nil
}

func (r *Volume) Delete(ctx context.Context) error {
	return openstack.IgnoreNotFound(r.blockstorage.DeleteVolume(ctx, r.ID))
}

// Network proxies a neutron network, provider attributes included.
type Network struct {
	openstack.NetworkExt

	network NetworkAPI
}

func (r *Network) Refresh(ctx context.Context) error {
	result, err := r.network.GetNetwork(ctx, r.ID)
	if err != nil {
		return err
	}

	r.NetworkExt = *result

	return nil
}

// Update pushes partial state and replaces the record with the response.
func (r *Network) Update(ctx context.Context, opts networks.UpdateOpts) error {
	result, err := r.network.UpdateNetwork(ctx, r.ID, opts)
	if err != nil {
		return err
	}

	r.NetworkExt = *result

	return nil
}

func (r *Network) Delete(ctx context.Context) error {
	return openstack.IgnoreNotFound(r.network.DeleteNetwork(ctx, r.ID))
}

// ServerNetworks renders the network as nova boot options.
func (r *Network) ServerNetworks() []servers.Network {
	return []servers.Network{
		{
			UUID: r.ID,
		},
	}
}

// Subnet proxies a neutron subnet.
type Subnet struct {
	subnets.Subnet

	network NetworkAPI
}

func (r *Subnet) Refresh(ctx context.Context) error {
	result, err := r.network.GetSubnet(ctx, r.ID)
	if err != nil {
		return err
	}

	r.Subnet = *result

	return nil
}

func (r *Subnet) Delete(ctx context.Context) error {
	return openstack.IgnoreNotFound(r.network.DeleteSubnet(ctx, r.ID))
}

// Router proxies a neutron router.
type Router struct {
	routers.Router

	network NetworkAPI
}

func (r *Router) Refresh(ctx context.Context) error {
	result, err := r.network.GetRouter(ctx, r.ID)
	if err != nil {
		return err
	}

	r.Router = *result

	return nil
}

func (r *Router) Delete(ctx context.Context) error {
	return openstack.IgnoreNotFound(r.network.DeleteRouter(ctx, r.ID))
}

// Port proxies a neutron port.
type Port struct {
	ports.Port

	network NetworkAPI
}

func (r *Port) Refresh(ctx context.Context) error {
	result, err := r.network.GetPort(ctx, r.ID)
	if err != nil {
		return err
	}

	r.Port = *result

	return nil
}

func (r *Port) Update(ctx context.Context, opts ports.UpdateOpts) error {
	result, err := r.network.UpdatePort(ctx, r.ID, opts)
	if err != nil {
		return err
	}

	r.Port = *result

	return nil
}

func (r *Port) Delete(ctx context.Context) error {
	return openstack.IgnoreNotFound(r.network.DeletePort(ctx, r.ID))
}

// SecurityGroup proxies a neutron security group.
type SecurityGroup struct {
	groups.SecGroup

	network NetworkAPI
}

func (r *SecurityGroup) Refresh(ctx context.Context) error {
	result, err := r.network.GetSecurityGroup(ctx, r.ID)
	if err != nil {
		return err
	}

	r.SecGroup = *result

	return nil
}

func (r *SecurityGroup) Delete(ctx context.Context) error {
	return openstack.IgnoreNotFound(r.network.DeleteSecurityGroup(ctx, r.ID))
}

// FloatingIP proxies a neutron floating IP.
type FloatingIP struct {
	floatingips.FloatingIP

	network NetworkAPI
}

func (r *FloatingIP) Refresh(ctx context.Context) error {
	result, err := r.network.GetFloatingIP(ctx, r.ID)
	if err != nil {
		return err
	}

	r.FloatingIP = *result

	return nil
}

// Associate points the floating IP at a port.
func (r *FloatingIP) Associate(ctx context.Context, portID string) error {
	result, err := r.network.AssociateFloatingIP(ctx, r.ID, &portID)
	if err != nil {
		return err
	}

	r.FloatingIP = *result

	return nil
}

// Disassociate detaches the floating IP from whatever port holds it.
func (r *FloatingIP) Disassociate(ctx context.Context) error {
	result, err := r.network.AssociateFloatingIP(ctx, r.ID, nil)
	if err != nil {
		return err
	}

	r.FloatingIP = *result

	return nil
}

func (r *FloatingIP) Delete(ctx context.Context) error {
	return openstack.IgnoreNotFound(r.network.DeleteFloatingIP(ctx, r.ID))
}
