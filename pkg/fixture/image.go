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
	"io"

	"github.com/gophercloud/gophercloud/v2/openstack/image/v2/images"

	coreerrors "github.com/unikorn-cloud/core/pkg/errors"

	"github.com/unikorn-cloud/conformance/pkg/openstack"
)

// ImageOpts parameterizes CreateImageFromData.  Zero values give a
// random name and the qcow2/bare formats virtually every cloud accepts.
type ImageOpts struct {
	Name            string
	DiskFormat      string
	ContainerFormat string
}

// CreateImageFromData registers an image with glance, streams the data
// into it and waits for it to become active.  Deletion is queued before
// the upload so a failed or stuck upload still gets cleaned up.
func (s *Scenario) CreateImageFromData(ctx context.Context, opts *ImageOpts, data io.Reader) (*images.Image, error) {
	if opts == nil {
		opts = &ImageOpts{}
	}

	name := opts.Name
	if name == "" {
		name = s.RandomName("image")
	}

	diskFormat := opts.DiskFormat
	if diskFormat == "" {
		diskFormat = "qcow2"
	}

	containerFormat := opts.ContainerFormat
	if containerFormat == "" {
		containerFormat = "bare"
	}

	createOpts := &images.CreateOpts{
		Name:            name,
		DiskFormat:      diskFormat,
		ContainerFormat: containerFormat,
	}

	result, err := s.Clients.Image.CreateImage(ctx, createOpts)
	if err != nil {
		return nil, err
	}

	s.Ledger.Register("image "+name, func(ctx context.Context) error {
		return openstack.IgnoreNotFound(s.Clients.Image.DeleteImage(ctx, result.ID))
	})

	if result.Name != name {
		return nil, fmt.Errorf("%w: requested image name %s, got %s", coreerrors.ErrConsistency, name, result.Name)
	}

	if err := s.Clients.Image.UploadImageData(ctx, result.ID, data); err != nil {
		return nil, err
	}

	if err := s.Clients.Image.WaitForImageStatus(ctx, result.ID, images.ImageStatusActive, s.Config.Timeouts.Build, s.Config.Timeouts.BuildInterval); err != nil {
		return nil, err
	}

	return s.Clients.Image.GetImage(ctx, result.ID)
}
