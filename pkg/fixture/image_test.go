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

package fixture_test

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/gophercloud/gophercloud/v2/openstack/image/v2/images"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/unikorn-cloud/core/pkg/errors"

	"github.com/unikorn-cloud/conformance/pkg/fixture"
)

// fakeImageService fakes glance's create/upload/activate cycle.
type fakeImageService struct {
	fixture.ImageAPI

	// respondName overrides the echoed image name when set.
	respondName string

	uploaded []byte
	deleted  []string
}

func (f *fakeImageService) CreateImage(_ context.Context, opts *images.CreateOpts) (*images.Image, error) {
	name := opts.Name
	if f.respondName != "" {
		name = f.respondName
	}

	image := &images.Image{
		ID:              "image-id",
		Name:            name,
		DiskFormat:      opts.DiskFormat,
		ContainerFormat: opts.ContainerFormat,
		Status:          images.ImageStatusQueued,
	}

	return image, nil
}

func (f *fakeImageService) UploadImageData(_ context.Context, _ string, data io.Reader) error {
	payload, err := io.ReadAll(data)
	if err != nil {
		return err
	}

	f.uploaded = payload

	return nil
}

func (f *fakeImageService) WaitForImageStatus(_ context.Context, _ string, _ images.ImageStatus, _, _ time.Duration) error {
	return nil
}

func (f *fakeImageService) GetImage(_ context.Context, id string) (*images.Image, error) {
	return &images.Image{ID: id, Status: images.ImageStatusActive}, nil
}

func (f *fakeImageService) DeleteImage(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func TestCreateImageFromData(t *testing.T) {
	t.Parallel()

	image := &fakeImageService{}
	clients := &fixture.Clients{Image: image}

	s := fixture.NewScenario("unit", testConfig(), clients, logr.Discard())

	payload := []byte("not really a qcow2")

	result, err := s.CreateImageFromData(context.Background(), nil, bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "image-id", result.ID)
	assert.Equal(t, images.ImageStatusActive, result.Status)
	assert.Equal(t, payload, image.uploaded)

	require.NoError(t, s.Teardown(context.Background()))
	assert.Equal(t, []string{"image-id"}, image.deleted)
}

func TestCreateImageFromDataNameMismatch(t *testing.T) {
	t.Parallel()

	image := &fakeImageService{respondName: "somebody-elses-image"}
	clients := &fixture.Clients{Image: image}

	s := fixture.NewScenario("unit", testConfig(), clients, logr.Discard())

	_, err := s.CreateImageFromData(context.Background(), nil, bytes.NewReader([]byte("data")))
	require.ErrorIs(t, err, coreerrors.ErrConsistency)

	// Nothing was uploaded into the stray image, but it is torn down.
	assert.Empty(t, image.uploaded)

	require.NoError(t, s.Teardown(context.Background()))
	assert.Equal(t, []string{"image-id"}, image.deleted)
}
