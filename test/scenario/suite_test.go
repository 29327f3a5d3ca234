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

//nolint:gochecknoglobals,revive,paralleltest,testpackage // global vars and dot imports standard for Ginkgo
package scenario

import (
	"context"
	"fmt"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/unikorn-cloud/conformance/pkg/config"
	"github.com/unikorn-cloud/conformance/pkg/fixture"
	"github.com/unikorn-cloud/conformance/pkg/openstack"
)

var (
	ctx     context.Context
	cfg     *config.Config
	clients *fixture.Clients
)

// skipper adapts ginkgo's Skip to the fixture Skipper interface.
type skipper struct{}

func (skipper) Skipf(format string, args ...any) {
	Skip(fmt.Sprintf(format, args...))
}

// newScenario builds a scenario whose teardown is hooked into ginkgo's
// cleanup, running even when the spec fails.
func newScenario(name string) *fixture.Scenario {
	s := fixture.NewScenario(name, cfg, clients, GinkgoLogr)

	DeferCleanup(func(ctx context.Context) {
		Expect(s.Teardown(ctx)).To(Succeed())
	})

	return s
}

var _ = BeforeSuite(func() {
	// Live tests only run when explicitly pointed at a cloud.
	path := os.Getenv("CONFORMANCE_CONFIG")
	if path == "" {
		Skip("CONFORMANCE_CONFIG not set, skipping live scenarios")
	}

	var err error

	cfg, err = config.Load(path)
	Expect(err).NotTo(HaveOccurred(), "failed to load harness configuration")

	ctx = context.Background()

	clients, err = fixture.NewClients(ctx, openstack.NewCloudProvider(cfg.Cloud), cfg)
	Expect(err).NotTo(HaveOccurred(), "failed to authenticate against the cloud")

	// Everything the suites create lands in the token's project, so make
	// sure the credentials are scoped to a usable one.
	scope, err := clients.Identity.TokenProject(ctx)
	Expect(err).NotTo(HaveOccurred(), "credentials are not project scoped")

	project, err := clients.Identity.GetProject(ctx, scope.ID)
	Expect(err).NotTo(HaveOccurred())
	Expect(project.Enabled).To(BeTrue(), "scoped project is disabled")
})

func TestScenarios(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Conformance Scenario Suites")
}
