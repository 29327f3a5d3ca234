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

// Package fixture contains the scenario building blocks: typed resource
// wrappers, factories that create resources with cleanup pre-registered,
// and the connectivity checks that tie them together.
package fixture

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/unikorn-cloud/conformance/pkg/cleanup"
	"github.com/unikorn-cloud/conformance/pkg/config"
	"github.com/unikorn-cloud/conformance/pkg/openstack"
	"github.com/unikorn-cloud/conformance/pkg/ping"
)

// Skipper signals that a scenario's preconditions aren't met.  Both
// testing.T and a thin ginkgo adapter satisfy it.
type Skipper interface {
	Skipf(format string, args ...any)
}

// Clients bundles the per-service API clients a scenario may use.  Only
// the services enabled in configuration are populated.
type Clients struct {
	Identity      *openstack.IdentityClient
	Compute       ComputeAPI
	Network       NetworkAPI
	BlockStorage  BlockStorageAPI
	Image         ImageAPI
	ObjectStorage ObjectStorageAPI
	Baremetal     BaremetalAPI
	Orchestration OrchestrationAPI
	LoadBalancer  LoadBalancerAPI
}

// NewClients authenticates once and builds clients for every enabled
// service.
//
//nolint:cyclop
func NewClients(ctx context.Context, provider openstack.CredentialProvider, cfg *config.Config) (*Clients, error) {
	identity, err := openstack.NewIdentityClient(ctx, provider)
	if err != nil {
		return nil, err
	}

	compute, err := openstack.NewComputeClient(ctx, provider)
	if err != nil {
		return nil, err
	}

	image, err := openstack.NewImageClient(ctx, provider)
	if err != nil {
		return nil, err
	}

	clients := &Clients{
		Identity: identity,
		Compute:  compute,
		Image:    image,
	}

	if cfg.Services.Network {
		network, err := openstack.NewNetworkClient(ctx, provider)
		if err != nil {
			return nil, err
		}

		clients.Network = network
	}

	if cfg.Services.Volume {
		blockstorage, err := openstack.NewBlockStorageClient(ctx, provider)
		if err != nil {
			return nil, err
		}

		clients.BlockStorage = blockstorage
	}

	if cfg.Services.ObjectStorage {
		objectstorage, err := openstack.NewObjectStorageClient(ctx, provider)
		if err != nil {
			return nil, err
		}

		clients.ObjectStorage = objectstorage
	}

	if cfg.Services.Baremetal {
		baremetal, err := openstack.NewBaremetalClient(ctx, provider)
		if err != nil {
			return nil, err
		}

		clients.Baremetal = baremetal
	}

	if cfg.Services.Orchestration {
		orchestration, err := openstack.NewOrchestrationClient(ctx, provider)
		if err != nil {
			return nil, err
		}

		clients.Orchestration = orchestration
	}

	if cfg.Services.LoadBalancer {
		loadbalancer, err := openstack.NewLoadBalancerClient(ctx, provider)
		if err != nil {
			return nil, err
		}

		clients.LoadBalancer = loadbalancer
	}

	return clients, nil
}

// Scenario is the base every concrete scenario composes: configuration,
// clients, a teardown ledger and a logger.  One instance per test, they
// are not shared.
type Scenario struct {
	// Name prefixes resource names so leaked resources are traceable to
	// their scenario.
	Name string

	Config  *config.Config
	Clients *Clients
	Ledger  *cleanup.Ledger
	Log     logr.Logger

	// ping, sshValidate and dial are swappable so connectivity logic is
	// testable without a live guest.
	ping        PingFunc
	sshValidate SSHValidateFunc
	dial        DialFunc
}

// NewScenario creates a scenario with an empty ledger.
func NewScenario(name string, cfg *config.Config, clients *Clients, log logr.Logger) *Scenario {
	return &Scenario{
		Name:        name,
		Config:      cfg,
		Clients:     clients,
		Ledger:      cleanup.New(log),
		Log:         log.WithValues("scenario", name),
		ping:        ping.Echo,
		sshValidate: defaultSSHValidate,
		dial:        defaultDial,
	}
}

// NewTestScenario builds a scenario with fake connectivity probes, for
// unit testing scenario logic against fake clients.
func NewTestScenario(name string, cfg *config.Config, clients *Clients, log logr.Logger, pingFn PingFunc, sshValidateFn SSHValidateFunc, dialFn DialFunc) *Scenario {
	s := NewScenario(name, cfg, clients, log)

	if pingFn != nil {
		s.ping = pingFn
	}

	if sshValidateFn != nil {
		s.sshValidate = sshValidateFn
	}

	if dialFn != nil {
		s.dial = dialFn
	}

	return s
}

// RandomName generates a unique resource name so parallel runs against
// the same cloud never collide.
func (s *Scenario) RandomName(kind string) string {
	return fmt.Sprintf("conformance-%s-%s-%s", s.Name, kind, uuid.NewString()[:8])
}

// Teardown drains the cleanup ledger.  Call it exactly once, deferred,
// per scenario.
func (s *Scenario) Teardown(ctx context.Context) error {
	s.Log.V(1).Info("tearing down", "resources", s.Ledger.Len())

	return s.Ledger.Drain(ctx)
}

// RequireNetwork skips the scenario when the network service is disabled.
func (s *Scenario) RequireNetwork(skipper Skipper) {
	if s.Clients.Network == nil {
		skipper.Skipf("network service not enabled")
	}
}

// RequireVolume skips the scenario when block storage is disabled.
func (s *Scenario) RequireVolume(skipper Skipper) {
	if s.Clients.BlockStorage == nil {
		skipper.Skipf("volume service not enabled")
	}
}

// RequireObjectStorage skips the scenario when object storage is disabled.
func (s *Scenario) RequireObjectStorage(skipper Skipper) {
	if s.Clients.ObjectStorage == nil {
		skipper.Skipf("object storage service not enabled")
	}
}

// RequireBaremetal skips the scenario when bare metal is disabled.
func (s *Scenario) RequireBaremetal(skipper Skipper) {
	if s.Clients.Baremetal == nil {
		skipper.Skipf("baremetal service not enabled")
	}
}

// RequireOrchestration skips the scenario when orchestration is disabled.
func (s *Scenario) RequireOrchestration(skipper Skipper) {
	if s.Clients.Orchestration == nil {
		skipper.Skipf("orchestration service not enabled")
	}
}

// RequireLoadBalancer skips the scenario when load balancing is disabled.
func (s *Scenario) RequireLoadBalancer(skipper Skipper) {
	if s.Clients.LoadBalancer == nil {
		skipper.Skipf("load balancer service not enabled")
	}
}
