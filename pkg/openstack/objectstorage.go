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

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
	"github.com/gophercloud/gophercloud/v2/openstack/objectstorage/v1/containers"
	"github.com/gophercloud/gophercloud/v2/openstack/objectstorage/v1/objects"
)

// ObjectStorageClient wraps the generic client because gophercloud is unsafe.
type ObjectStorageClient struct {
	client *gophercloud.ServiceClient
}

// NewObjectStorageClient provides a simple one-liner to start object storage.
func NewObjectStorageClient(ctx context.Context, provider CredentialProvider) (*ObjectStorageClient, error) {
	providerClient, err := provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	client, err := openstack.NewObjectStorageV1(providerClient, gophercloud.EndpointOpts{})
	if err != nil {
		return nil, err
	}

	c := &ObjectStorageClient{
		client: client,
	}

	return c, nil
}

func (c *ObjectStorageClient) CreateContainer(ctx context.Context, name string) error {
	_, span := traceStart(ctx, "PUT /object-store/v1/"+name)
	defer span.End()

	_, err := containers.Create(ctx, c.client, name, nil).Extract()

	return err
}

func (c *ObjectStorageClient) DeleteContainer(ctx context.Context, name string) error {
	_, span := traceStart(ctx, "DELETE /object-store/v1/"+name)
	defer span.End()

	_, err := containers.Delete(ctx, c.client, name).Extract()

	return err
}

func (c *ObjectStorageClient) ListContainers(ctx context.Context) ([]string, error) {
	_, span := traceStart(ctx, "GET /object-store/v1")
	defer span.End()

	page, err := containers.List(c.client, &containers.ListOpts{}).AllPages(ctx)
	if err != nil {
		return nil, err
	}

	return containers.ExtractNames(page)
}

// UpdateContainerACL sets the read ACL, e.g. ".r:*,.rlistings" to make the
// container world readable.
func (c *ObjectStorageClient) UpdateContainerACL(ctx context.Context, name string, readACL *string) error {
	_, span := traceStart(ctx, "POST /object-store/v1/"+name)
	defer span.End()

	opts := containers.UpdateOpts{
		ContainerRead: readACL,
	}

	_, err := containers.Update(ctx, c.client, name, opts).Extract()

	return err
}

// GetContainerACL reads back the container's read ACL.
func (c *ObjectStorageClient) GetContainerACL(ctx context.Context, name string) (string, error) {
	_, span := traceStart(ctx, "HEAD /object-store/v1/"+name)
	defer span.End()

	result := containers.Get(ctx, c.client, name, nil)

	if _, err := result.Extract(); err != nil {
		return "", err
	}

	return result.Header.Get("X-Container-Read"), nil
}

func (c *ObjectStorageClient) CreateObject(ctx context.Context, container, name string, content io.Reader) error {
	_, span := traceStart(ctx, fmt.Sprintf("PUT /object-store/v1/%s/%s", container, name))
	defer span.End()

	opts := objects.CreateOpts{
		Content: content,
	}

	_, err := objects.Create(ctx, c.client, container, name, opts).Extract()

	return err
}

func (c *ObjectStorageClient) GetObject(ctx context.Context, container, name string) ([]byte, error) {
	_, span := traceStart(ctx, fmt.Sprintf("GET /object-store/v1/%s/%s", container, name))
	defer span.End()

	result := objects.Download(ctx, c.client, container, name, nil)

	return result.ExtractContent()
}

func (c *ObjectStorageClient) DeleteObject(ctx context.Context, container, name string) error {
	_, span := traceStart(ctx, fmt.Sprintf("DELETE /object-store/v1/%s/%s", container, name))
	defer span.End()

	_, err := objects.Delete(ctx, c.client, container, name, nil).Extract()

	return err
}

func (c *ObjectStorageClient) ListObjects(ctx context.Context, container string) ([]string, error) {
	_, span := traceStart(ctx, "GET /object-store/v1/"+container)
	defer span.End()

	page, err := objects.List(c.client, container, &objects.ListOpts{}).AllPages(ctx)
	if err != nil {
		return nil, err
	}

	return objects.ExtractNames(page)
}
