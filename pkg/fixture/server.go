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

	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/servers"
	"github.com/gophercloud/gophercloud/v2/openstack/image/v2/images"

	coreerrors "github.com/unikorn-cloud/core/pkg/errors"

	"github.com/unikorn-cloud/conformance/pkg/openstack"
	"github.com/unikorn-cloud/conformance/pkg/util"
)

// Keypair is an ephemeral SSH keypair registered with the cloud.  The
// private key only ever lives in harness memory.
type Keypair struct {
	Name       string
	PublicKey  []byte
	PrivateKey []byte
}

// CreateKeypair generates key material locally, registers the public half
// with nova and queues its removal.
func (s *Scenario) CreateKeypair(ctx context.Context) (*Keypair, error) {
	name := s.RandomName("keypair")

	publicKey, privateKey, err := util.GenerateSSHKeyPair()
	if err != nil {
		return nil, err
	}

	if _, err := s.Clients.Compute.CreateKeypair(ctx, name, string(publicKey)); err != nil {
		return nil, err
	}

	s.Ledger.Register("keypair "+name, func(ctx context.Context) error {
		return openstack.IgnoreNotFound(s.Clients.Compute.DeleteKeypair(ctx, name))
	})

	keypair := &Keypair{
		Name:       name,
		PublicKey:  publicKey,
		PrivateKey: privateKey,
	}

	return keypair, nil
}

// ServerOpts parameterizes CreateServer.  Zero values take scenario
// defaults: a random name, the configured image and flavor, and a
// blocking wait for ACTIVE.
type ServerOpts struct {
	Name           string
	ImageRef       string
	FlavorRef      string
	KeyName        string
	Networks       []servers.Network
	SecurityGroups []string
	UserData       []byte
	// NoWait skips the readiness wait, for scenarios that stage their
	// own waits, bare metal provisioning being the prime example.
	NoWait bool
}

// CreateServer boots a server with teardown pre-registered.  Cleanup
// registration happens before the readiness wait on purpose: a server
// stuck in BUILD still gets deleted.  Deletion is asynchronous so the
// ledger gets both the delete and a deletion waiter.
func (s *Scenario) CreateServer(ctx context.Context, opts *ServerOpts) (*Server, error) {
	if opts == nil {
		opts = &ServerOpts{}
	}

	name := opts.Name
	if name == "" {
		name = s.RandomName("server")
	}

	imageRef := opts.ImageRef
	if imageRef == "" {
		imageRef = s.Config.Compute.ImageRef
	}

	image, err := s.Clients.Image.FindImage(ctx, imageRef)
	if err != nil {
		return nil, err
	}

	flavorRef := opts.FlavorRef
	if flavorRef == "" {
		flavorRef = s.Config.Compute.FlavorRef
	}

	flavor, err := s.Clients.Compute.FindFlavor(ctx, flavorRef)
	if err != nil {
		return nil, err
	}

	createOpts := &openstack.ServerCreateOpts{
		Name:             name,
		ImageID:          image.ID,
		FlavorID:         flavor.ID,
		KeyName:          opts.KeyName,
		Networks:         opts.Networks,
		SecurityGroups:   opts.SecurityGroups,
		AvailabilityZone: s.Config.Compute.AvailabilityZone,
		UserData:         opts.UserData,
	}

	result, err := s.Clients.Compute.CreateServer(ctx, createOpts)
	if err != nil {
		return nil, err
	}

	server := &Server{
		Server:  *result,
		compute: s.Clients.Compute,
	}

	s.Ledger.RegisterWait("server "+name,
		func(ctx context.Context) error {
			return server.Delete(ctx)
		},
		func(ctx context.Context) error {
			return s.Clients.Compute.WaitForServerDeleted(ctx, server.ID, s.Config.Timeouts.Build, s.Config.Timeouts.BuildInterval)
		})

	// The create response echoing back a different name means we'd be
	// asserting against somebody else's server, bail before any waiting.
	if result.Name != name {
		return nil, fmt.Errorf("%w: requested server name %s, got %s", coreerrors.ErrConsistency, name, result.Name)
	}

	if !opts.NoWait {
		if err := s.Clients.Compute.WaitForServerStatus(ctx, server.ID, s.Config.Timeouts.Build, s.Config.Timeouts.BuildInterval, "ACTIVE"); err != nil {
			return nil, err
		}

		if err := server.Refresh(ctx); err != nil {
			return nil, err
		}
	}

	return server, nil
}

// CreateServerSnapshot snapshots a server to a glance image, waits for it
// to become active and queues its removal.
func (s *Scenario) CreateServerSnapshot(ctx context.Context, server *Server) (*images.Image, error) {
	name := s.RandomName("snapshot")

	imageID, err := s.Clients.Compute.CreateServerImage(ctx, server.ID, name)
	if err != nil {
		return nil, err
	}

	s.Ledger.Register("server snapshot "+name, func(ctx context.Context) error {
		return openstack.IgnoreNotFound(s.Clients.Image.DeleteImage(ctx, imageID))
	})

	if err := s.Clients.Image.WaitForImageStatus(ctx, imageID, images.ImageStatusActive, s.Config.Timeouts.Build, s.Config.Timeouts.BuildInterval); err != nil {
		return nil, err
	}

	return s.Clients.Image.GetImage(ctx, imageID)
}

// AttachVolume attaches a volume and waits for cinder to report in-use.
// The detach is queued on the ledger so teardown can delete the volume.
func (s *Scenario) AttachVolume(ctx context.Context, server *Server, volume *Volume) error {
	attachment, err := s.Clients.Compute.AttachVolume(ctx, server.ID, volume.ID)
	if err != nil {
		return err
	}

	s.Ledger.Register(fmt.Sprintf("volume attachment %s/%s", server.ID, volume.ID), func(ctx context.Context) error {
		if err := openstack.IgnoreNotFound(s.Clients.Compute.DetachVolume(ctx, server.ID, attachment.ID)); err != nil {
			return err
		}

		return s.Clients.BlockStorage.WaitForVolumeStatus(ctx, volume.ID, s.Config.Timeouts.Build, s.Config.Timeouts.BuildInterval, "available")
	})

	if err := s.Clients.BlockStorage.WaitForVolumeStatus(ctx, volume.ID, s.Config.Timeouts.Build, s.Config.Timeouts.BuildInterval, "in-use"); err != nil {
		return err
	}

	return volume.Refresh(ctx)
}

// DetachVolume detaches outside of teardown, e.g. to verify data survives
// reattachment.  The queued ledger detach later no-ops on the 404.
func (s *Scenario) DetachVolume(ctx context.Context, server *Server, volume *Volume) error {
	if err := volume.Refresh(ctx); err != nil {
		return err
	}

	for _, attachment := range volume.Attachments {
		if attachment.ServerID != server.ID {
			continue
		}

		if err := s.Clients.Compute.DetachVolume(ctx, server.ID, attachment.AttachmentID); err != nil {
			return err
		}
	}

	return s.Clients.BlockStorage.WaitForVolumeStatus(ctx, volume.ID, s.Config.Timeouts.Build, s.Config.Timeouts.BuildInterval, "available")
}

// RebootServer reboots a server and waits for it to come back ACTIVE.
// Soft asks the guest nicely, hard pulls the virtual power cord.
func (s *Scenario) RebootServer(ctx context.Context, server *Server, hard bool) error {
	if err := s.Clients.Compute.RebootServer(ctx, server.ID, hard); err != nil {
		return err
	}

	if err := s.Clients.Compute.WaitForServerStatus(ctx, server.ID, s.Config.Timeouts.Build, s.Config.Timeouts.BuildInterval, "ACTIVE"); err != nil {
		return err
	}

	return server.Refresh(ctx)
}

// StopServer powers a server down and waits for SHUTOFF.
func (s *Scenario) StopServer(ctx context.Context, server *Server) error {
	if err := s.Clients.Compute.StopServer(ctx, server.ID); err != nil {
		return err
	}

	if err := s.Clients.Compute.WaitForServerStatus(ctx, server.ID, s.Config.Timeouts.Build, s.Config.Timeouts.BuildInterval, "SHUTOFF"); err != nil {
		return err
	}

	return server.Refresh(ctx)
}

// StartServer powers a stopped server back up and waits for ACTIVE.
func (s *Scenario) StartServer(ctx context.Context, server *Server) error {
	if err := s.Clients.Compute.StartServer(ctx, server.ID); err != nil {
		return err
	}

	if err := s.Clients.Compute.WaitForServerStatus(ctx, server.ID, s.Config.Timeouts.Build, s.Config.Timeouts.BuildInterval, "ACTIVE"); err != nil {
		return err
	}

	return server.Refresh(ctx)
}

// RebuildServer reimages a server and waits for it to return to ACTIVE.
func (s *Scenario) RebuildServer(ctx context.Context, server *Server, imageRef string) error {
	image, err := s.Clients.Image.FindImage(ctx, imageRef)
	if err != nil {
		return err
	}

	if _, err := s.Clients.Compute.RebuildServer(ctx, server.ID, image.ID); err != nil {
		return err
	}

	if err := s.Clients.Compute.WaitForServerStatus(ctx, server.ID, s.Config.Timeouts.Build, s.Config.Timeouts.BuildInterval, "ACTIVE"); err != nil {
		return err
	}

	return server.Refresh(ctx)
}
