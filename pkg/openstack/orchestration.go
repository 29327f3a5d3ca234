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
	"strings"
	"time"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
	"github.com/gophercloud/gophercloud/v2/openstack/orchestration/v1/stacks"

	coreerrors "github.com/unikorn-cloud/core/pkg/errors"

	"github.com/unikorn-cloud/conformance/pkg/poll"
)

// OrchestrationClient wraps the generic client because gophercloud is unsafe.
type OrchestrationClient struct {
	client *gophercloud.ServiceClient
}

// NewOrchestrationClient provides a simple one-liner to start orchestration.
func NewOrchestrationClient(ctx context.Context, provider CredentialProvider) (*OrchestrationClient, error) {
	providerClient, err := provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	client, err := openstack.NewOrchestrationV1(providerClient, gophercloud.EndpointOpts{})
	if err != nil {
		return nil, err
	}

	c := &OrchestrationClient{
		client: client,
	}

	return c, nil
}

// CreateStack launches a stack from a raw HOT template and returns its ID.
func (c *OrchestrationClient) CreateStack(ctx context.Context, name string, template []byte, parameters map[string]string) (string, error) {
	_, span := traceStart(ctx, "POST /orchestration/v1/stacks")
	defer span.End()

	params := make(map[string]any, len(parameters))

	for k, v := range parameters {
		params[k] = v
	}

	opts := &stacks.CreateOpts{
		Name: name,
		TemplateOpts: &stacks.Template{
			TE: stacks.TE{
				Bin: template,
			},
		},
		Parameters: params,
	}

	result, err := stacks.Create(ctx, c.client, opts).Extract()
	if err != nil {
		return "", err
	}

	return result.ID, nil
}

func (c *OrchestrationClient) GetStack(ctx context.Context, name, id string) (*stacks.RetrievedStack, error) {
	_, span := traceStart(ctx, fmt.Sprintf("GET /orchestration/v1/stacks/%s/%s", name, id))
	defer span.End()

	return stacks.Get(ctx, c.client, name, id).Extract()
}

func (c *OrchestrationClient) DeleteStack(ctx context.Context, name, id string) error {
	_, span := traceStart(ctx, fmt.Sprintf("DELETE /orchestration/v1/stacks/%s/%s", name, id))
	defer span.End()

	return stacks.Delete(ctx, c.client, name, id).ExtractErr()
}

// StackOutput extracts a named output value from a retrieved stack.
func StackOutput(stack *stacks.RetrievedStack, key string) (string, error) {
	for _, output := range stack.Outputs {
		if output["output_key"] == key {
			value, ok := output["output_value"].(string)
			if !ok {
				return "", fmt.Errorf("%w: stack output %s is not a string", coreerrors.ErrConsistency, key)
			}

			return value, nil
		}
	}

	return "", fmt.Errorf("%w: stack output %s", coreerrors.ErrResourceNotFound, key)
}

// WaitForStackStatus polls until the stack reaches the target status.  A
// FAILED variant of the same action fails fast with heat's reason rather
// than burning the deadline.
func (c *OrchestrationClient) WaitForStackStatus(ctx context.Context, name, id, status string, timeout, interval time.Duration) error {
	var failed error

	done := poll.Until(ctx, timeout, interval, func() bool {
		stack, err := c.GetStack(ctx, name, id)
		if err != nil {
			return false
		}

		if strings.HasSuffix(stack.Status, "_FAILED") && stack.Status != status {
			failed = fmt.Errorf("%w: stack %s %s: %s", coreerrors.ErrConsistency, id, stack.Status, stack.StatusReason)
			return true
		}

		return stack.Status == status
	})

	if failed != nil {
		return failed
	}

	if !done {
		return NewTimeoutError("stack", id, "status", timeout, status)
	}

	return nil
}

// WaitForStackDeleted polls until the stack is gone, tolerating clouds
// that return the tombstone DELETE_COMPLETE state instead of a 404.
func (c *OrchestrationClient) WaitForStackDeleted(ctx context.Context, name, id string, timeout, interval time.Duration) error {
	done := poll.Until(ctx, timeout, interval, func() bool {
		stack, err := c.GetStack(ctx, name, id)
		if err != nil {
			return IsNotFound(err)
		}

		return stack.Status == "DELETE_COMPLETE"
	})

	if !done {
		return NewTimeoutError("stack", id, "presence", timeout, "deleted")
	}

	return nil
}
