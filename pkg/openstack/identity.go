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

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
	"github.com/gophercloud/gophercloud/v2/openstack/identity/v3/projects"
	"github.com/gophercloud/gophercloud/v2/openstack/identity/v3/tokens"

	coreerrors "github.com/unikorn-cloud/core/pkg/errors"
)

// IdentityClient wraps the generic client because gophercloud is unsafe.
type IdentityClient struct {
	client   *gophercloud.ServiceClient
	provider CredentialProvider
}

// NewIdentityClient provides a simple one-liner to start identity.
func NewIdentityClient(ctx context.Context, provider CredentialProvider) (*IdentityClient, error) {
	providerClient, err := provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	client, err := openstack.NewIdentityV3(providerClient, gophercloud.EndpointOpts{})
	if err != nil {
		return nil, err
	}

	c := &IdentityClient{
		client:   client,
		provider: provider,
	}

	return c, nil
}

// TokenProject extracts the project the current token is scoped to.  The
// harness uses this to tag resources and scope quota lookups without
// requiring admin access to the projects API.
func (c *IdentityClient) TokenProject(ctx context.Context) (*tokens.Project, error) {
	providerClient, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	result, ok := providerClient.GetAuthResult().(tokens.CreateResult)
	if !ok {
		return nil, fmt.Errorf("%w: auth result of unexpected type", coreerrors.ErrConsistency)
	}

	project, err := result.ExtractProject()
	if err != nil {
		return nil, err
	}

	if project == nil {
		return nil, fmt.Errorf("%w: token is not project scoped", coreerrors.ErrConsistency)
	}

	return project, nil
}

// GetProject looks up a project by ID.
func (c *IdentityClient) GetProject(ctx context.Context, id string) (*projects.Project, error) {
	_, span := traceStart(ctx, "GET /identity/v3/projects/"+id)
	defer span.End()

	return projects.Get(ctx, c.client, id).Extract()
}
