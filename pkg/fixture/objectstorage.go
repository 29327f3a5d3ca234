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
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"slices"

	coreerrors "github.com/unikorn-cloud/core/pkg/errors"

	"github.com/unikorn-cloud/conformance/pkg/openstack"
)

// CreateContainer creates a swift container with teardown queued.
func (s *Scenario) CreateContainer(ctx context.Context) (string, error) {
	name := s.RandomName("container")

	if err := s.Clients.ObjectStorage.CreateContainer(ctx, name); err != nil {
		return "", err
	}

	s.Ledger.Register("container "+name, func(ctx context.Context) error {
		return openstack.IgnoreNotFound(s.Clients.ObjectStorage.DeleteContainer(ctx, name))
	})

	return name, nil
}

// UploadObject writes a random payload into the container and returns the
// object name and the payload for later verification.
func (s *Scenario) UploadObject(ctx context.Context, container string, size int) (string, []byte, error) {
	name := s.RandomName("object")

	payload := make([]byte, size)

	if _, err := rand.Read(payload); err != nil {
		return "", nil, err
	}

	if err := s.Clients.ObjectStorage.CreateObject(ctx, container, name, bytes.NewReader(payload)); err != nil {
		return "", nil, err
	}

	s.Ledger.Register(fmt.Sprintf("object %s/%s", container, name), func(ctx context.Context) error {
		return openstack.IgnoreNotFound(s.Clients.ObjectStorage.DeleteObject(ctx, container, name))
	})

	return name, payload, nil
}

// VerifyObject downloads the object and compares it to the expected
// payload byte for byte.
func (s *Scenario) VerifyObject(ctx context.Context, container, name string, expected []byte) error {
	content, err := s.Clients.ObjectStorage.GetObject(ctx, container, name)
	if err != nil {
		return err
	}

	if !bytes.Equal(content, expected) {
		return fmt.Errorf("%w: object %s/%s content mismatch", coreerrors.ErrConsistency, container, name)
	}

	return nil
}

// VerifyObjectListed checks object presence or absence in the container
// listing.
func (s *Scenario) VerifyObjectListed(ctx context.Context, container, name string, present bool) error {
	listing, err := s.Clients.ObjectStorage.ListObjects(ctx, container)
	if err != nil {
		return err
	}

	if slices.Contains(listing, name) != present {
		return fmt.Errorf("%w: object %s/%s listed=%t, want %t", coreerrors.ErrConsistency, container, name, !present, present)
	}

	return nil
}

// SetContainerPublic flips the container's read ACL to world readable
// and verifies the ACL stuck.
func (s *Scenario) SetContainerPublic(ctx context.Context, container string) error {
	acl := ".r:*,.rlistings"

	if err := s.Clients.ObjectStorage.UpdateContainerACL(ctx, container, &acl); err != nil {
		return err
	}

	applied, err := s.Clients.ObjectStorage.GetContainerACL(ctx, container)
	if err != nil {
		return err
	}

	if applied != acl {
		return fmt.Errorf("%w: container %s ACL %q, want %q", coreerrors.ErrConsistency, container, applied, acl)
	}

	return nil
}
