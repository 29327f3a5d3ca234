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

	"github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/snapshots"
	"github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/volumetypes"

	coreerrors "github.com/unikorn-cloud/core/pkg/errors"

	"github.com/unikorn-cloud/conformance/pkg/openstack"
)

// VolumeOpts parameterizes CreateVolume.  ImageRef and SnapshotID are
// mutually exclusive sources, both empty gives a blank volume.
type VolumeOpts struct {
	Name       string
	Size       int
	ImageRef   string
	SnapshotID string
	VolumeType string
}

// CreateVolume creates a volume, queues its removal and waits for cinder
// to report it available.  As with servers the cleanup is queued before
// the wait so a stuck volume still gets deleted.
func (s *Scenario) CreateVolume(ctx context.Context, opts *VolumeOpts) (*Volume, error) {
	if opts == nil {
		opts = &VolumeOpts{}
	}

	name := opts.Name
	if name == "" {
		name = s.RandomName("volume")
	}

	size := opts.Size
	if size == 0 {
		size = s.Config.Compute.VolumeSize
	}

	createOpts := &openstack.VolumeCreateOpts{
		Name:       name,
		Size:       size,
		SnapshotID: opts.SnapshotID,
		VolumeType: opts.VolumeType,
	}

	if opts.ImageRef != "" {
		image, err := s.Clients.Image.FindImage(ctx, opts.ImageRef)
		if err != nil {
			return nil, err
		}

		createOpts.ImageID = image.ID
	}

	result, err := s.Clients.BlockStorage.CreateVolume(ctx, createOpts)
	if err != nil {
		return nil, err
	}

	volume := &Volume{
		Volume:       *result,
		blockstorage: s.Clients.BlockStorage,
	}

	s.Ledger.RegisterWait("volume "+name,
		func(ctx context.Context) error {
			return volume.Delete(ctx)
		},
		func(ctx context.Context) error {
			return s.Clients.BlockStorage.WaitForVolumeDeleted(ctx, volume.ID, s.Config.Timeouts.Build, s.Config.Timeouts.BuildInterval)
		})

	if result.Name != name || result.Size != size {
		return nil, fmt.Errorf("%w: requested volume %s size %d, got %s size %d", coreerrors.ErrConsistency, name, size, result.Name, result.Size)
	}

	if err := s.Clients.BlockStorage.WaitForVolumeStatus(ctx, volume.ID, s.Config.Timeouts.Build, s.Config.Timeouts.BuildInterval, "available"); err != nil {
		return nil, err
	}

	if err := volume.Refresh(ctx); err != nil {
		return nil, err
	}

	return volume, nil
}

// CreateVolumeSnapshot snapshots a volume and waits for it to become
// available.
func (s *Scenario) CreateVolumeSnapshot(ctx context.Context, volume *Volume) (*snapshots.Snapshot, error) {
	name := s.RandomName("volsnap")

	result, err := s.Clients.BlockStorage.CreateSnapshot(ctx, volume.ID, name)
	if err != nil {
		return nil, err
	}

	s.Ledger.Register("volume snapshot "+name, func(ctx context.Context) error {
		return openstack.IgnoreNotFound(s.Clients.BlockStorage.DeleteSnapshot(ctx, result.ID))
	})

	if err := s.Clients.BlockStorage.WaitForSnapshotStatus(ctx, result.ID, "available", s.Config.Timeouts.Build, s.Config.Timeouts.BuildInterval); err != nil {
		return nil, err
	}

	return s.Clients.BlockStorage.GetSnapshot(ctx, result.ID)
}

// CreateVolumeType creates a volume type, the substrate for encryption
// types.  Requires admin credentials on most clouds.
func (s *Scenario) CreateVolumeType(ctx context.Context) (*volumetypes.VolumeType, error) {
	name := s.RandomName("voltype")

	result, err := s.Clients.BlockStorage.CreateVolumeType(ctx, name)
	if err != nil {
		return nil, err
	}

	s.Ledger.Register("volume type "+name, func(ctx context.Context) error {
		return openstack.IgnoreNotFound(s.Clients.BlockStorage.DeleteVolumeType(ctx, result.ID))
	})

	return result, nil
}

// CreateEncryptionType attaches LUKS encryption to a volume type.  The
// encryption specification dies with the type so no separate cleanup.
func (s *Scenario) CreateEncryptionType(ctx context.Context, volumeType *volumetypes.VolumeType, provider string) (*volumetypes.EncryptionType, error) {
	opts := &openstack.EncryptionCreateOpts{
		Provider: provider,
		Cipher:   "aes-xts-plain64",
		KeySize:  256,
	}

	return s.Clients.BlockStorage.CreateEncryptionType(ctx, volumeType.ID, opts)
}
