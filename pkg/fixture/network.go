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

	"github.com/gophercloud/gophercloud/v2/openstack/loadbalancer/v2/loadbalancers"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/security/rules"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/ports"

	coreerrors "github.com/unikorn-cloud/core/pkg/errors"

	"github.com/unikorn-cloud/conformance/pkg/openstack"
)

// CreateNetwork creates a tenant network with teardown queued.
func (s *Scenario) CreateNetwork(ctx context.Context) (*Network, error) {
	name := s.RandomName("network")

	result, err := s.Clients.Network.CreateNetwork(ctx, name)
	if err != nil {
		return nil, err
	}

	network := &Network{
		NetworkExt: *result,
		network:    s.Clients.Network,
	}

	s.Ledger.Register("network "+name, network.Delete)

	// The create response echoing a different name means every later
	// assertion would be against somebody else's network.  Cleanup is
	// already queued so the stray network still goes.
	if result.Name != name {
		return nil, fmt.Errorf("%w: requested network name %s, got %s", coreerrors.ErrConsistency, name, result.Name)
	}

	return network, nil
}

// CreateSubnet carves the next free block out of the tenant pool.  We
// don't know what other tenants have allocated, so create optimistically
// and walk the pool on overlap conflicts.  An exhausted pool is a hard
// failure naming the pool, not a generic conflict.
func (s *Scenario) CreateSubnet(ctx context.Context, network *Network) (*Subnet, error) {
	name := s.RandomName("subnet")

	allocator, err := NewBlockAllocator(s.Config.Network.TenantCIDR, s.Config.Network.SubnetMaskBits)
	if err != nil {
		return nil, err
	}

	for {
		block, err := allocator.Next()
		if err != nil {
			return nil, err
		}

		opts := &openstack.SubnetCreateOpts{
			Name:           name,
			NetworkID:      network.ID,
			CIDR:           block.String(),
			DNSNameservers: s.Config.Network.DNSNameservers,
		}

		result, err := s.Clients.Network.CreateSubnet(ctx, opts)
		if err != nil {
			if openstack.ClassifyConflict(err) == openstack.ConflictCIDROverlap {
				s.Log.V(1).Info("subnet block in use, trying next", "cidr", block.String())
				continue
			}

			return nil, err
		}

		subnet := &Subnet{
			Subnet:  *result,
			network: s.Clients.Network,
		}

		s.Ledger.Register("subnet "+name, subnet.Delete)

		if result.Name != name || result.CIDR != block.String() {
			return nil, fmt.Errorf("%w: requested subnet %s %s, got %s %s", coreerrors.ErrConsistency, name, block.String(), result.Name, result.CIDR)
		}

		return subnet, nil
	}
}

// CreateRouter creates a router uplinked to the external network.
func (s *Scenario) CreateRouter(ctx context.Context) (*Router, error) {
	name := s.RandomName("router")

	external, err := s.Clients.Network.FindExternalNetwork(ctx, s.Config.Network.ExternalNetworkRef)
	if err != nil {
		return nil, err
	}

	result, err := s.Clients.Network.CreateRouter(ctx, name, external.ID)
	if err != nil {
		return nil, err
	}

	router := &Router{
		Router:  *result,
		network: s.Clients.Network,
	}

	s.Ledger.Register("router "+name, router.Delete)

	if result.Name != name {
		return nil, fmt.Errorf("%w: requested router name %s, got %s", coreerrors.ErrConsistency, name, result.Name)
	}

	return router, nil
}

// AttachRouterInterface plumbs a subnet into a router.  The detach queued
// for teardown tolerates either side having been cascade-deleted already.
func (s *Scenario) AttachRouterInterface(ctx context.Context, router *Router, subnet *Subnet) error {
	if err := s.Clients.Network.AddRouterInterface(ctx, router.ID, subnet.ID); err != nil {
		return err
	}

	s.Ledger.Register(fmt.Sprintf("router interface %s/%s", router.ID, subnet.ID), func(ctx context.Context) error {
		return openstack.IgnoreNotFound(s.Clients.Network.RemoveRouterInterface(ctx, router.ID, subnet.ID))
	})

	return nil
}

// TenantNetwork is the network/subnet/router trio every connectivity
// scenario starts from.
type TenantNetwork struct {
	Network *Network
	Subnet  *Subnet
	Router  *Router
}

// CreateTenantNetwork builds a routable tenant network in one call.
func (s *Scenario) CreateTenantNetwork(ctx context.Context) (*TenantNetwork, error) {
	network, err := s.CreateNetwork(ctx)
	if err != nil {
		return nil, err
	}

	subnet, err := s.CreateSubnet(ctx, network)
	if err != nil {
		return nil, err
	}

	router, err := s.CreateRouter(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.AttachRouterInterface(ctx, router, subnet); err != nil {
		return nil, err
	}

	result := &TenantNetwork{
		Network: network,
		Subnet:  subnet,
		Router:  router,
	}

	return result, nil
}

// loginableRules describes SSH and ICMP in both directions.  Egress
// matters on clouds with default-deny egress policies.
func loginableRules(groupID string) []rules.CreateOpts {
	directions := []rules.RuleDirection{rules.DirIngress, rules.DirEgress}

	var result []rules.CreateOpts

	for _, direction := range directions {
		result = append(result,
			rules.CreateOpts{
				Direction:    direction,
				EtherType:    rules.EtherType4,
				SecGroupID:   groupID,
				Protocol:     rules.ProtocolTCP,
				PortRangeMin: 22,
				PortRangeMax: 22,
			},
			rules.CreateOpts{
				Direction:  direction,
				EtherType:  rules.EtherType4,
				SecGroupID: groupID,
				Protocol:   rules.ProtocolICMP,
			},
		)
	}

	return result
}

// CreateLoginableSecurityGroup creates a security group that admits SSH
// and ICMP.  A duplicate rule conflict means the rule is already in
// place, typically one of the defaults, and counts as success.
func (s *Scenario) CreateLoginableSecurityGroup(ctx context.Context) (*SecurityGroup, error) {
	name := s.RandomName("secgroup")

	result, err := s.Clients.Network.CreateSecurityGroup(ctx, name)
	if err != nil {
		return nil, err
	}

	group := &SecurityGroup{
		SecGroup: *result,
		network:  s.Clients.Network,
	}

	s.Ledger.Register("security group "+name, group.Delete)

	if result.Name != name {
		return nil, fmt.Errorf("%w: requested security group name %s, got %s", coreerrors.ErrConsistency, name, result.Name)
	}

	for _, opts := range loginableRules(group.ID) {
		if _, err := s.Clients.Network.CreateSecurityGroupRule(ctx, opts); err != nil {
			if openstack.ClassifyConflict(err) == openstack.ConflictDuplicate {
				continue
			}

			return nil, err
		}
	}

	return group, nil
}

// CreatePort creates a port on the network, optionally bound to security
// groups.
func (s *Scenario) CreatePort(ctx context.Context, network *Network, securityGroups []string) (*Port, error) {
	name := s.RandomName("port")

	opts := &openstack.PortCreateOpts{
		Name:      name,
		NetworkID: network.ID,
	}

	if securityGroups != nil {
		opts.SecurityGroups = &securityGroups
	}

	result, err := s.Clients.Network.CreatePort(ctx, opts)
	if err != nil {
		return nil, err
	}

	port := &Port{
		Port:    *result,
		network: s.Clients.Network,
	}

	s.Ledger.Register("port "+name, port.Delete)

	if result.Name != name {
		return nil, fmt.Errorf("%w: requested port name %s, got %s", coreerrors.ErrConsistency, name, result.Name)
	}

	return port, nil
}

func portListByDevice(deviceID, networkID string) ports.ListOpts {
	return ports.ListOpts{
		DeviceID:  deviceID,
		NetworkID: networkID,
	}
}

// ServerPort finds the server's port on a network, the thing floating
// IPs attach to.
func (s *Scenario) ServerPort(ctx context.Context, server *Server, network *Network) (*Port, error) {
	result, err := s.Clients.Network.ListPorts(ctx, portListByDevice(server.ID, network.ID))
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("no port for server %s on network %s", server.ID, network.ID)
	}

	port := &Port{
		Port:    result[0],
		network: s.Clients.Network,
	}

	return port, nil
}

// CreateFloatingIP allocates a floating IP on the external network,
// optionally pre-associated with a port, and waits for it to go ACTIVE
// when associated.
func (s *Scenario) CreateFloatingIP(ctx context.Context, portID string) (*FloatingIP, error) {
	external, err := s.Clients.Network.FindExternalNetwork(ctx, s.Config.Network.ExternalNetworkRef)
	if err != nil {
		return nil, err
	}

	result, err := s.Clients.Network.CreateFloatingIP(ctx, external.ID, portID)
	if err != nil {
		return nil, err
	}

	fip := &FloatingIP{
		FloatingIP: *result,
		network:    s.Clients.Network,
	}

	s.Ledger.Register("floating IP "+fip.FloatingIP.FloatingIP, fip.Delete)

	if portID != "" {
		if err := s.Clients.Network.WaitForFloatingIPStatus(ctx, fip.ID, "ACTIVE", s.Config.Timeouts.Build, s.Config.Timeouts.BuildInterval); err != nil {
			return nil, err
		}

		if err := fip.Refresh(ctx); err != nil {
			return nil, err
		}
	}

	return fip, nil
}

// CreateLoadBalancedService stands up an octavia load balancer with a
// TCP listener, pool and a single member.  Octavia serializes mutations
// per load balancer so each step waits for ACTIVE before the next.
func (s *Scenario) CreateLoadBalancedService(ctx context.Context, subnet *Subnet, memberAddress string, port int) (*loadbalancers.LoadBalancer, error) {
	name := s.RandomName("lb")

	lb, err := s.Clients.LoadBalancer.CreateLoadBalancer(ctx, name, subnet.ID)
	if err != nil {
		return nil, err
	}

	s.Ledger.RegisterWait("load balancer "+name,
		func(ctx context.Context) error {
			return openstack.IgnoreNotFound(s.Clients.LoadBalancer.DeleteLoadBalancer(ctx, lb.ID))
		},
		func(ctx context.Context) error {
			return s.Clients.LoadBalancer.WaitForLoadBalancerDeleted(ctx, lb.ID, s.Config.Timeouts.Build, s.Config.Timeouts.BuildInterval)
		})

	if err := s.Clients.LoadBalancer.WaitForLoadBalancerActive(ctx, lb.ID, s.Config.Timeouts.Build, s.Config.Timeouts.BuildInterval); err != nil {
		return nil, err
	}

	listener, err := s.Clients.LoadBalancer.CreateListener(ctx, name, lb.ID, port)
	if err != nil {
		return nil, err
	}

	if err := s.Clients.LoadBalancer.WaitForLoadBalancerActive(ctx, lb.ID, s.Config.Timeouts.Build, s.Config.Timeouts.BuildInterval); err != nil {
		return nil, err
	}

	pool, err := s.Clients.LoadBalancer.CreatePool(ctx, name, listener.ID)
	if err != nil {
		return nil, err
	}

	if err := s.Clients.LoadBalancer.WaitForLoadBalancerActive(ctx, lb.ID, s.Config.Timeouts.Build, s.Config.Timeouts.BuildInterval); err != nil {
		return nil, err
	}

	if _, err := s.Clients.LoadBalancer.CreatePoolMember(ctx, pool.ID, memberAddress, subnet.ID, port); err != nil {
		return nil, err
	}

	if err := s.Clients.LoadBalancer.WaitForLoadBalancerActive(ctx, lb.ID, s.Config.Timeouts.Build, s.Config.Timeouts.BuildInterval); err != nil {
		return nil, err
	}

	return s.Clients.LoadBalancer.GetLoadBalancer(ctx, lb.ID)
}
