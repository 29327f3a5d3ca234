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
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/unikorn-cloud/conformance/pkg/fixture"
)

var _ = Describe("Object storage", func() {
	var s *fixture.Scenario

	BeforeEach(func() {
		s = newScenario("objectstorage")
		s.RequireObjectStorage(skipper{})
	})

	It("round-trips object data through a container", func(ctx SpecContext) {
		container, err := s.CreateContainer(ctx)
		Expect(err).NotTo(HaveOccurred())

		name, payload, err := s.UploadObject(ctx, container, 4096)
		Expect(err).NotTo(HaveOccurred())

		Expect(s.VerifyObject(ctx, container, name, payload)).To(Succeed())
		Expect(s.VerifyObjectListed(ctx, container, name, true)).To(Succeed())
	})

	It("stops listing an object once deleted", func(ctx SpecContext) {
		container, err := s.CreateContainer(ctx)
		Expect(err).NotTo(HaveOccurred())

		name, _, err := s.UploadObject(ctx, container, 1024)
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Clients.ObjectStorage.DeleteObject(ctx, container, name)).To(Succeed())
		Expect(s.VerifyObjectListed(ctx, container, name, false)).To(Succeed())
	})

	It("exposes a container publicly through its ACL", func(ctx SpecContext) {
		container, err := s.CreateContainer(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(s.SetContainerPublic(ctx, container)).To(Succeed())
	})
})
