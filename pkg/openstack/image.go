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
	"io"
	"slices"
	"time"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
	"github.com/gophercloud/gophercloud/v2/openstack/image/v2/imagedata"
	"github.com/gophercloud/gophercloud/v2/openstack/image/v2/images"

	coreerrors "github.com/unikorn-cloud/core/pkg/errors"

	"github.com/unikorn-cloud/conformance/pkg/poll"
)

// ImageClient wraps the generic client because gophercloud is unsafe.
type ImageClient struct {
	client *gophercloud.ServiceClient
}

// NewImageClient provides a simple one-liner to start imaging.
func NewImageClient(ctx context.Context, provider CredentialProvider) (*ImageClient, error) {
	providerClient, err := provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	client, err := openstack.NewImageV2(providerClient, gophercloud.EndpointOpts{})
	if err != nil {
		return nil, err
	}

	c := &ImageClient{
		client: client,
	}

	return c, nil
}

// CreateImage registers image metadata, the data comes later via
// UploadImageData.
func (c *ImageClient) CreateImage(ctx context.Context, opts *images.CreateOpts) (*images.Image, error) {
	_, span := traceStart(ctx, "POST /image/v2/images")
	defer span.End()

	return images.Create(ctx, c.client, opts).Extract()
}

// UploadImageData streams raw image data into glance.
func (c *ImageClient) UploadImageData(ctx context.Context, id string, data io.Reader) error {
	_, span := traceStart(ctx, fmt.Sprintf("PUT /image/v2/images/%s/file", id))
	defer span.End()

	return imagedata.Upload(ctx, c.client, id, data).ExtractErr()
}

func (c *ImageClient) GetImage(ctx context.Context, id string) (*images.Image, error) {
	_, span := traceStart(ctx, fmt.Sprintf("GET /image/v2/images/%s", id))
	defer span.End()

	return images.Get(ctx, c.client, id).Extract()
}

func (c *ImageClient) ListImages(ctx context.Context, opts *images.ListOpts) ([]images.Image, error) {
	_, span := traceStart(ctx, "GET /image/v2/images")
	defer span.End()

	page, err := images.List(c.client, opts).AllPages(ctx)
	if err != nil {
		return nil, err
	}

	return images.ExtractImages(page)
}

// FindImage resolves an image reference that may be a name or an ID.
func (c *ImageClient) FindImage(ctx context.Context, ref string) (*images.Image, error) {
	if image, err := c.GetImage(ctx, ref); err == nil {
		return image, nil
	}

	result, err := c.ListImages(ctx, &images.ListOpts{Name: ref})
	if err != nil {
		return nil, err
	}

	index := slices.IndexFunc(result, func(image images.Image) bool {
		return image.Name == ref
	})

	if index < 0 {
		return nil, fmt.Errorf("%w: image %s", coreerrors.ErrResourceNotFound, ref)
	}

	return &result[index], nil
}

func (c *ImageClient) DeleteImage(ctx context.Context, id string) error {
	_, span := traceStart(ctx, fmt.Sprintf("DELETE /image/v2/images/%s", id))
	defer span.End()

	return images.Delete(ctx, c.client, id).ExtractErr()
}

// WaitForImageStatus polls until the image reaches the target status,
// usually active once an upload or server snapshot completes.
func (c *ImageClient) WaitForImageStatus(ctx context.Context, id string, status images.ImageStatus, timeout, interval time.Duration) error {
	done := poll.Until(ctx, timeout, interval, func() bool {
		image, err := c.GetImage(ctx, id)
		if err != nil {
			return false
		}

		return image.Status == status
	})

	if !done {
		return NewTimeoutError("image", id, "status", timeout, string(status))
	}

	return nil
}
