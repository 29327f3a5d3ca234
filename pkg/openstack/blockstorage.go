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
	"slices"
	"time"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
	"github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/snapshots"
	"github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/volumes"
	"github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/volumetypes"

	coreerrors "github.com/unikorn-cloud/core/pkg/errors"

	"github.com/unikorn-cloud/conformance/pkg/poll"
)

// BlockStorageClient wraps the generic client because gophercloud is unsafe.
type BlockStorageClient struct {
	client *gophercloud.ServiceClient
}

// NewBlockStorageClient provides a simple one-liner to start block storage.
func NewBlockStorageClient(ctx context.Context, provider CredentialProvider) (*BlockStorageClient, error) {
	providerClient, err := provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	client, err := openstack.NewBlockStorageV3(providerClient, gophercloud.EndpointOpts{})
	if err != nil {
		return nil, err
	}

	c := &BlockStorageClient{
		client: client,
	}

	return c, nil
}

// VolumeCreateOpts is the subset of volume creation the harness drives.
// ImageID and SnapshotID are mutually exclusive sources.
type VolumeCreateOpts struct {
	Name       string
	Size       int
	ImageID    string
	SnapshotID string
	VolumeType string
}

func (c *BlockStorageClient) CreateVolume(ctx context.Context, opts *VolumeCreateOpts) (*volumes.Volume, error) {
	_, span := traceStart(ctx, "POST /blockstorage/v3/volumes")
	defer span.End()

	createOpts := volumes.CreateOpts{
		Name:       opts.Name,
		Size:       opts.Size,
		ImageID:    opts.ImageID,
		SnapshotID: opts.SnapshotID,
		VolumeType: opts.VolumeType,
	}

	return volumes.Create(ctx, c.client, createOpts, nil).Extract()
}

func (c *BlockStorageClient) GetVolume(ctx context.Context, id string) (*volumes.Volume, error) {
	_, span := traceStart(ctx, fmt.Sprintf("GET /blockstorage/v3/volumes/%s", id))
	defer span.End()

	return volumes.Get(ctx, c.client, id).Extract()
}

func (c *BlockStorageClient) DeleteVolume(ctx context.Context, id string) error {
	_, span := traceStart(ctx, fmt.Sprintf("DELETE /blockstorage/v3/volumes/%s", id))
	defer span.End()

	return volumes.Delete(ctx, c.client, id, volumes.DeleteOpts{}).ExtractErr()
}

func (c *BlockStorageClient) CreateSnapshot(ctx context.Context, volumeID, name string) (*snapshots.Snapshot, error) {
	_, span := traceStart(ctx, "POST /blockstorage/v3/snapshots")
	defer span.End()

	opts := snapshots.CreateOpts{
		VolumeID: volumeID,
		Name:     name,
		// The volume may be attached, that is rather the point of
		// snapshotting it.
		Force: true,
	}

	return snapshots.Create(ctx, c.client, opts).Extract()
}

func (c *BlockStorageClient) GetSnapshot(ctx context.Context, id string) (*snapshots.Snapshot, error) {
	_, span := traceStart(ctx, fmt.Sprintf("GET /blockstorage/v3/snapshots/%s", id))
	defer span.End()

	return snapshots.Get(ctx, c.client, id).Extract()
}

func (c *BlockStorageClient) DeleteSnapshot(ctx context.Context, id string) error {
	_, span := traceStart(ctx, fmt.Sprintf("DELETE /blockstorage/v3/snapshots/%s", id))
	defer span.End()

	return snapshots.Delete(ctx, c.client, id).ExtractErr()
}

func (c *BlockStorageClient) CreateVolumeType(ctx context.Context, name string) (*volumetypes.VolumeType, error) {
	_, span := traceStart(ctx, "POST /blockstorage/v3/types")
	defer span.End()

	opts := volumetypes.CreateOpts{
		Name: name,
	}

	return volumetypes.Create(ctx, c.client, opts).Extract()
}

func (c *BlockStorageClient) DeleteVolumeType(ctx context.Context, id string) error {
	_, span := traceStart(ctx, fmt.Sprintf("DELETE /blockstorage/v3/types/%s", id))
	defer span.End()

	return volumetypes.Delete(ctx, c.client, id).ExtractErr()
}

// EncryptionCreateOpts mirrors cinder's encryption type parameters.
type EncryptionCreateOpts struct {
	Provider string
	Cipher   string
	KeySize  int
}

func (c *BlockStorageClient) CreateEncryptionType(ctx context.Context, volumeTypeID string, opts *EncryptionCreateOpts) (*volumetypes.EncryptionType, error) {
	_, span := traceStart(ctx, fmt.Sprintf("POST /blockstorage/v3/types/%s/encryption", volumeTypeID))
	defer span.End()

	createOpts := volumetypes.CreateEncryptionOpts{
		Provider:        opts.Provider,
		Cipher:          opts.Cipher,
		KeySize:         opts.KeySize,
		ControlLocation: "front-end",
	}

	return volumetypes.CreateEncryption(ctx, c.client, volumeTypeID, createOpts).Extract()
}

// WaitForVolumeStatus polls until the volume reaches one of the target
// statuses, failing fast when cinder reports the volume errored.
func (c *BlockStorageClient) WaitForVolumeStatus(ctx context.Context, id string, timeout, interval time.Duration, targets ...string) error {
	var failed error

	done := poll.Until(ctx, timeout, interval, func() bool {
		volume, err := c.GetVolume(ctx, id)
		if err != nil {
			return false
		}

		if volume.Status == "error" && !slices.Contains(targets, "error") {
			failed = fmt.Errorf("%w: volume %s entered error state", coreerrors.ErrConsistency, id)
			return true
		}

		return slices.Contains(targets, volume.Status)
	})

	if failed != nil {
		return failed
	}

	if !done {
		return NewTimeoutError("volume", id, "status", timeout, targets...)
	}

	return nil
}

// WaitForVolumeDeleted polls until the volume returns 404.
func (c *BlockStorageClient) WaitForVolumeDeleted(ctx context.Context, id string, timeout, interval time.Duration) error {
	done := poll.Until(ctx, timeout, interval, func() bool {
		_, err := c.GetVolume(ctx, id)

		return IsNotFound(err)
	})

	if !done {
		return NewTimeoutError("volume", id, "presence", timeout, "deleted")
	}

	return nil
}

// WaitForSnapshotStatus polls until the snapshot reaches the target status.
func (c *BlockStorageClient) WaitForSnapshotStatus(ctx context.Context, id, status string, timeout, interval time.Duration) error {
	done := poll.Until(ctx, timeout, interval, func() bool {
		snapshot, err := c.GetSnapshot(ctx, id)
		if err != nil {
			return false
		}

		return snapshot.Status == status
	})

	if !done {
		return NewTimeoutError("snapshot", id, "status", timeout, status)
	}

	return nil
}
