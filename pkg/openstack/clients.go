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

// Package openstack wraps gophercloud's per-service APIs in clients that
// carry tracing, caching and a consistent error taxonomy.  Nothing above
// this package issues a raw gophercloud call.
package openstack

import (
	"context"
	"time"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
	"github.com/gophercloud/utils/v2/openstack/clientconfig"

	"github.com/unikorn-cloud/core/pkg/util/cache"

	"github.com/unikorn-cloud/conformance/pkg/constants"
)

// CredentialProvider abstracts how we acquire an authenticated provider
// client, password and clouds.yaml being the two implementations.
type CredentialProvider interface {
	// Client returns a new provider client.
	Client(ctx context.Context) (*gophercloud.ProviderClient, error)
}

// PasswordProvider authenticates with a user ID and password, scoped to
// a project.
type PasswordProvider struct {
	endpoint string
	userID   string
	password string
	// projectID scopes the token to a project, that being the only
	// scope regular API access works with.
	projectID string
	// providerCache memoizes authentication, tokens are valid for hours
	// and re-authenticating per client is pure waste.
	providerCache *cache.TimeoutCache[*gophercloud.ProviderClient]
}

// NewPasswordProvider creates a client that consumes passwords for authentication.
func NewPasswordProvider(endpoint, userID, password, projectID string) *PasswordProvider {
	return &PasswordProvider{
		endpoint:      endpoint,
		userID:        userID,
		password:      password,
		projectID:     projectID,
		providerCache: cache.New[*gophercloud.ProviderClient](time.Hour),
	}
}

// Client implements the CredentialProvider interface.
func (p *PasswordProvider) Client(ctx context.Context) (*gophercloud.ProviderClient, error) {
	if client, ok := p.providerCache.Get(); ok {
		return client, nil
	}

	options := gophercloud.AuthOptions{
		IdentityEndpoint: p.endpoint,
		UserID:           p.userID,
		Password:         p.password,
		Scope: &gophercloud.AuthScope{
			ProjectID: p.projectID,
		},
	}

	client, err := openstack.AuthenticatedClient(ctx, options)
	if err != nil {
		return nil, err
	}

	client.UserAgent.Prepend(constants.VersionString())

	p.providerCache.Set(client)

	return client, nil
}

// CloudProvider authenticates as a named cloud from a standard
// clouds.yaml, which is how humans and CI hand the harness credentials.
type CloudProvider struct {
	cloud         string
	providerCache *cache.TimeoutCache[*gophercloud.ProviderClient]
}

// NewCloudProvider creates a client that uses clouds.yaml for authentication.
func NewCloudProvider(cloud string) *CloudProvider {
	return &CloudProvider{
		cloud:         cloud,
		providerCache: cache.New[*gophercloud.ProviderClient](time.Hour),
	}
}

// Client implements the CredentialProvider interface.
func (p *CloudProvider) Client(ctx context.Context) (*gophercloud.ProviderClient, error) {
	if client, ok := p.providerCache.Get(); ok {
		return client, nil
	}

	options, err := clientconfig.AuthOptions(&clientconfig.ClientOpts{
		Cloud: p.cloud,
	})
	if err != nil {
		return nil, err
	}

	client, err := openstack.AuthenticatedClient(ctx, *options)
	if err != nil {
		return nil, err
	}

	client.UserAgent.Prepend(constants.VersionString())

	p.providerCache.Set(client)

	return client, nil
}
