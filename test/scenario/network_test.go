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

//nolint:revive,testpackage // dot imports standard for Ginkgo
package scenario

import (
	"net/netip"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/unikorn-cloud/conformance/pkg/fixture"
)

var _ = Describe("Tenant networking", func() {
	var s *fixture.Scenario

	BeforeEach(func() {
		s = newScenario("network")
		s.RequireNetwork(skipper{})
	})

	It("builds a routable tenant network", func(ctx SpecContext) {
		tenant, err := s.CreateTenantNetwork(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(tenant.Network.Status).To(Equal("ACTIVE"))

		// The subnet must come out of the configured pool.
		pool, err := netip.ParsePrefix(s.Config.Network.TenantCIDR)
		Expect(err).NotTo(HaveOccurred())

		block, err := netip.ParsePrefix(tenant.Subnet.CIDR)
		Expect(err).NotTo(HaveOccurred())
		Expect(pool.Contains(block.Addr())).To(BeTrue())
		Expect(block.Bits()).To(Equal(s.Config.Network.SubnetMaskBits))

		// The router is uplinked to an external network.
		Expect(tenant.Router.GatewayInfo.NetworkID).NotTo(BeEmpty())
	})

	It("allocates distinct subnets on a shared network", func(ctx SpecContext) {
		network, err := s.CreateNetwork(ctx)
		Expect(err).NotTo(HaveOccurred())

		first, err := s.CreateSubnet(ctx, network)
		Expect(err).NotTo(HaveOccurred())

		// Neutron rejects overlapping subnets on the same network, so
		// this exercises the overlap-retry path.
		second, err := s.CreateSubnet(ctx, network)
		Expect(err).NotTo(HaveOccurred())

		Expect(second.CIDR).NotTo(Equal(first.CIDR))
	})

	It("admits SSH and ICMP through a loginable security group", func(ctx SpecContext) {
		group, err := s.CreateLoginableSecurityGroup(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(group.Refresh(ctx)).To(Succeed())

		protocols := map[string]bool{}

		for _, rule := range group.Rules {
			protocols[rule.Protocol] = true
		}

		Expect(protocols).To(HaveKey("tcp"))
		Expect(protocols).To(HaveKey("icmp"))

		// Creating the same rules again must be a no-op, not a failure.
		_, err = s.CreateLoginableSecurityGroup(ctx)
		Expect(err).NotTo(HaveOccurred())
	})

	It("boots a reachable guest with a floating IP", func(ctx SpecContext) {
		keypair, err := s.CreateKeypair(ctx)
		Expect(err).NotTo(HaveOccurred())

		tenant, err := s.CreateTenantNetwork(ctx)
		Expect(err).NotTo(HaveOccurred())

		group, err := s.CreateLoginableSecurityGroup(ctx)
		Expect(err).NotTo(HaveOccurred())

		server, err := s.CreateServer(ctx, &fixture.ServerOpts{
			KeyName:        keypair.Name,
			Networks:       tenant.Network.ServerNetworks(),
			SecurityGroups: []string{group.Name},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(server.Status).To(Equal("ACTIVE"))

		port, err := s.ServerPort(ctx, server, tenant.Network)
		Expect(err).NotTo(HaveOccurred())

		fip, err := s.CreateFloatingIP(ctx, port.ID)
		Expect(err).NotTo(HaveOccurred())

		check := &fixture.ConnectivityCheck{
			Address:       fip.FloatingIP.FloatingIP,
			ShouldConnect: true,
			Keypair:       keypair,
			Server:        server,
		}

		Expect(s.CheckVMConnectivity(ctx, check)).To(Succeed())

		// Connectivity must survive a reboot.
		Expect(s.RebootServer(ctx, server, false)).To(Succeed())
		Expect(s.CheckVMConnectivity(ctx, check)).To(Succeed())

		// Disassociating the floating IP severs reachability.
		Expect(fip.Disassociate(ctx)).To(Succeed())

		check.ShouldConnect = false
		Expect(s.CheckVMConnectivity(ctx, check)).To(Succeed())
	})

	It("routes east-west between guests on a tenant network", func(ctx SpecContext) {
		keypair, err := s.CreateKeypair(ctx)
		Expect(err).NotTo(HaveOccurred())

		tenant, err := s.CreateTenantNetwork(ctx)
		Expect(err).NotTo(HaveOccurred())

		group, err := s.CreateLoginableSecurityGroup(ctx)
		Expect(err).NotTo(HaveOccurred())

		opts := &fixture.ServerOpts{
			KeyName:        keypair.Name,
			Networks:       tenant.Network.ServerNetworks(),
			SecurityGroups: []string{group.Name},
		}

		first, err := s.CreateServer(ctx, opts)
		Expect(err).NotTo(HaveOccurred())

		second, err := s.CreateServer(ctx, opts)
		Expect(err).NotTo(HaveOccurred())

		// Only the first guest gets a floating IP, the second is reached
		// over its fixed address from inside the first.
		port, err := s.ServerPort(ctx, first, tenant.Network)
		Expect(err).NotTo(HaveOccurred())

		fip, err := s.CreateFloatingIP(ctx, port.ID)
		Expect(err).NotTo(HaveOccurred())

		peer, err := s.ServerPort(ctx, second, tenant.Network)
		Expect(err).NotTo(HaveOccurred())
		Expect(peer.FixedIPs).NotTo(BeEmpty())

		check := &fixture.ConnectivityCheck{
			Address:       fip.FloatingIP.FloatingIP,
			ShouldConnect: true,
			Keypair:       keypair,
			Server:        first,
		}

		Expect(s.CheckVMConnectivity(ctx, check)).To(Succeed())
		Expect(s.CheckGuestConnectivity(ctx, check, peer.FixedIPs[0].IPAddress)).To(Succeed())
	})
})
