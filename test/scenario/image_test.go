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
	"bytes"
	"crypto/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gophercloud/gophercloud/v2/openstack/image/v2/images"

	"github.com/unikorn-cloud/conformance/pkg/fixture"
)

var _ = Describe("Image service", func() {
	var s *fixture.Scenario

	BeforeEach(func() {
		s = newScenario("image")
	})

	It("uploads an image from data", func(ctx SpecContext) {
		// Glance accepts arbitrary bytes for a raw image, it only cares
		// about the payload at boot time.
		payload := make([]byte, 1024)
		_, err := rand.Read(payload)
		Expect(err).NotTo(HaveOccurred())

		image, err := s.CreateImageFromData(ctx, &fixture.ImageOpts{DiskFormat: "raw"}, bytes.NewReader(payload))
		Expect(err).NotTo(HaveOccurred())

		Expect(image.Status).To(Equal(images.ImageStatusActive))
		Expect(image.SizeBytes).To(Equal(int64(len(payload))))
	})
})
