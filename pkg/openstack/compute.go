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
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/flavors"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/keypairs"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/servers"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/volumeattach"

	coreerrors "github.com/unikorn-cloud/core/pkg/errors"
	"github.com/unikorn-cloud/core/pkg/util/cache"

	"github.com/unikorn-cloud/conformance/pkg/poll"
)

// ComputeClient wraps the generic client because gophercloud is unsafe.
type ComputeClient struct {
	client *gophercloud.ServiceClient

	flavorCache *cache.TimeoutCache[[]flavors.Flavor]
}

// NewComputeClient provides a simple one-liner to start computing.
func NewComputeClient(ctx context.Context, provider CredentialProvider) (*ComputeClient, error) {
	providerClient, err := provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	client, err := openstack.NewComputeV2(providerClient, gophercloud.EndpointOpts{})
	if err != nil {
		return nil, err
	}

	// Need at least 2.37 for "none" networking, 2.67 for volume types on
	// boot volumes.
	client.Microversion = "2.90"

	c := &ComputeClient{
		client:      client,
		flavorCache: cache.New[[]flavors.Flavor](time.Hour),
	}

	return c, nil
}

// CreateKeypair registers a public key with nova.  The key material is
// generated locally, we never ask the cloud to mint one.
func (c *ComputeClient) CreateKeypair(ctx context.Context, name, publicKey string) (*keypairs.KeyPair, error) {
	_, span := traceStart(ctx, "POST /compute/v2/os-keypairs")
	defer span.End()

	opts := &keypairs.CreateOpts{
		Name:      name,
		Type:      "ssh",
		PublicKey: publicKey,
	}

	return keypairs.Create(ctx, c.client, opts).Extract()
}

func (c *ComputeClient) DeleteKeypair(ctx context.Context, name string) error {
	_, span := traceStart(ctx, fmt.Sprintf("DELETE /compute/v2/os-keypairs/%s", name))
	defer span.End()

	return keypairs.Delete(ctx, c.client, name, nil).ExtractErr()
}

// GetFlavors returns a memoized list of public flavors.
func (c *ComputeClient) GetFlavors(ctx context.Context) ([]flavors.Flavor, error) {
	if result, ok := c.flavorCache.Get(); ok {
		return result, nil
	}

	_, span := traceStart(ctx, "GET /compute/v2/flavors")
	defer span.End()

	page, err := flavors.ListDetail(c.client, &flavors.ListOpts{SortKey: "name"}).AllPages(ctx)
	if err != nil {
		return nil, err
	}

	result, err := flavors.ExtractFlavors(page)
	if err != nil {
		return nil, err
	}

	c.flavorCache.Set(result)

	return result, nil
}

// FindFlavor resolves a flavor reference that may be a name or an ID.
func (c *ComputeClient) FindFlavor(ctx context.Context, ref string) (*flavors.Flavor, error) {
	result, err := c.GetFlavors(ctx)
	if err != nil {
		return nil, err
	}

	index := slices.IndexFunc(result, func(flavor flavors.Flavor) bool {
		return flavor.ID == ref || flavor.Name == ref
	})

	if index < 0 {
		return nil, fmt.Errorf("%w: flavor %s", coreerrors.ErrResourceNotFound, ref)
	}

	return &result[index], nil
}

// ServerCreateOpts names the things a scenario actually varies when
// booting, everything else takes the nova default.
type ServerCreateOpts struct {
	Name             string
	ImageID          string
	FlavorID         string
	KeyName          string
	Networks         []servers.Network
	SecurityGroups   []string
	AvailabilityZone string
	UserData         []byte
	Metadata         map[string]string
}

func (c *ComputeClient) CreateServer(ctx context.Context, opts *ServerCreateOpts) (*servers.Server, error) {
	_, span := traceStart(ctx, "POST /compute/v2/servers")
	defer span.End()

	serverCreateOpts := servers.CreateOpts{
		Name:             opts.Name,
		ImageRef:         opts.ImageID,
		FlavorRef:        opts.FlavorID,
		Networks:         opts.Networks,
		SecurityGroups:   opts.SecurityGroups,
		AvailabilityZone: opts.AvailabilityZone,
		UserData:         opts.UserData,
		Metadata:         opts.Metadata,
	}

	createOpts := keypairs.CreateOptsExt{
		CreateOptsBuilder: serverCreateOpts,
		KeyName:           opts.KeyName,
	}

	return servers.Create(ctx, c.client, createOpts, servers.SchedulerHintOpts{}).Extract()
}

func (c *ComputeClient) GetServer(ctx context.Context, id string) (*servers.Server, error) {
	_, span := traceStart(ctx, fmt.Sprintf("GET /compute/v2/servers/%s", id))
	defer span.End()

	return servers.Get(ctx, c.client, id).Extract()
}

func (c *ComputeClient) DeleteServer(ctx context.Context, id string) error {
	_, span := traceStart(ctx, fmt.Sprintf("DELETE /compute/v2/servers/%s", id))
	defer span.End()

	return servers.Delete(ctx, c.client, id).ExtractErr()
}

// RebuildServer reimages the server in place, keeping its identity and
// addresses.
func (c *ComputeClient) RebuildServer(ctx context.Context, id, imageID string) (*servers.Server, error) {
	_, span := traceStart(ctx, fmt.Sprintf("POST /compute/v2/servers/%s/action (rebuild)", id))
	defer span.End()

	opts := servers.RebuildOpts{
		ImageRef: imageID,
	}

	return servers.Rebuild(ctx, c.client, id, opts).Extract()
}

func (c *ComputeClient) RebootServer(ctx context.Context, id string, hard bool) error {
	rebootMethod := servers.SoftReboot
	if hard {
		rebootMethod = servers.HardReboot
	}

	_, span := traceStart(ctx, fmt.Sprintf("POST /compute/v2/servers/%s/action (reboot)", id))
	defer span.End()

	opts := servers.RebootOpts{
		Type: rebootMethod,
	}

	return servers.Reboot(ctx, c.client, id, opts).ExtractErr()
}

func (c *ComputeClient) StartServer(ctx context.Context, id string) error {
	_, span := traceStart(ctx, fmt.Sprintf("POST /compute/v2/servers/%s/action (start)", id))
	defer span.End()

	return servers.Start(ctx, c.client, id).ExtractErr()
}

func (c *ComputeClient) StopServer(ctx context.Context, id string) error {
	_, span := traceStart(ctx, fmt.Sprintf("POST /compute/v2/servers/%s/action (stop)", id))
	defer span.End()

	return servers.Stop(ctx, c.client, id).ExtractErr()
}

// CreateServerImage snapshots a server into a glance image and returns the
// new image ID.
func (c *ComputeClient) CreateServerImage(ctx context.Context, id, name string) (string, error) {
	_, span := traceStart(ctx, fmt.Sprintf("POST /compute/v2/servers/%s/action (createImage)", id))
	defer span.End()

	opts := servers.CreateImageOpts{
		Name: name,
	}

	return servers.CreateImage(ctx, c.client, id, opts).ExtractImageID()
}

func (c *ComputeClient) ShowConsoleOutput(ctx context.Context, id string, length int) (string, error) {
	_, span := traceStart(ctx, fmt.Sprintf("GET /compute/v2/servers/%s/console-output", id))
	defer span.End()

	opts := &servers.ShowConsoleOutputOpts{
		Length: length,
	}

	return servers.ShowConsoleOutput(ctx, c.client, id, opts).Extract()
}

func (c *ComputeClient) AttachVolume(ctx context.Context, serverID, volumeID string) (*volumeattach.VolumeAttachment, error) {
	_, span := traceStart(ctx, fmt.Sprintf("POST /compute/v2/servers/%s/os-volume_attachments", serverID))
	defer span.End()

	opts := &volumeattach.CreateOpts{
		VolumeID: volumeID,
	}

	return volumeattach.Create(ctx, c.client, serverID, opts).Extract()
}

func (c *ComputeClient) DetachVolume(ctx context.Context, serverID, attachmentID string) error {
	_, span := traceStart(ctx, fmt.Sprintf("DELETE /compute/v2/servers/%s/os-volume_attachments/%s", serverID, attachmentID))
	defer span.End()

	return volumeattach.Delete(ctx, c.client, serverID, attachmentID).ExtractErr()
}

// WaitForServerStatus polls until the server reports one of the target
// statuses.  A server that drops into ERROR while we wait for something
// else is reported immediately rather than letting the deadline expire.
func (c *ComputeClient) WaitForServerStatus(ctx context.Context, id string, timeout, interval time.Duration, targets ...string) error {
	var failed error

	done := poll.Until(ctx, timeout, interval, func() bool {
		server, err := c.GetServer(ctx, id)
		if err != nil {
			return false
		}

		if server.Status == "ERROR" && !slices.Contains(targets, "ERROR") {
			failed = fmt.Errorf("%w: server %s entered ERROR: %s", coreerrors.ErrConsistency, id, server.Fault.Message)
			return true
		}

		return slices.Contains(targets, server.Status)
	})

	if failed != nil {
		return failed
	}

	if !done {
		return NewTimeoutError("server", id, "status", timeout, targets...)
	}

	return nil
}

// WaitForServerDeleted polls until the server returns 404.
func (c *ComputeClient) WaitForServerDeleted(ctx context.Context, id string, timeout, interval time.Duration) error {
	done := poll.Until(ctx, timeout, interval, func() bool {
		_, err := c.GetServer(ctx, id)

		return IsNotFound(err)
	})

	if !done {
		return NewTimeoutError("server", id, "presence", timeout, "deleted")
	}

	return nil
}
