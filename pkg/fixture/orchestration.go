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

	"github.com/gophercloud/gophercloud/v2/openstack/orchestration/v1/stacks"

	"github.com/unikorn-cloud/conformance/pkg/openstack"
)

// Stack identifies a heat stack, which the API addresses by name and ID
// together.
type Stack struct {
	Name string
	ID   string
}

// CreateStack launches a stack from a template and waits for the create
// to complete.  Stack deletion is asynchronous, heat unwinds nested
// resources, so the ledger gets a delete plus a waiter.
func (s *Scenario) CreateStack(ctx context.Context, template []byte, parameters map[string]string) (*Stack, error) {
	name := s.RandomName("stack")

	id, err := s.Clients.Orchestration.CreateStack(ctx, name, template, parameters)
	if err != nil {
		return nil, err
	}

	stack := &Stack{
		Name: name,
		ID:   id,
	}

	s.Ledger.RegisterWait("stack "+name,
		func(ctx context.Context) error {
			return openstack.IgnoreNotFound(s.Clients.Orchestration.DeleteStack(ctx, name, id))
		},
		func(ctx context.Context) error {
			return s.Clients.Orchestration.WaitForStackDeleted(ctx, name, id, s.Config.Timeouts.Build, s.Config.Timeouts.BuildInterval)
		})

	if err := s.Clients.Orchestration.WaitForStackStatus(ctx, name, id, "CREATE_COMPLETE", s.Config.Timeouts.Build, s.Config.Timeouts.BuildInterval); err != nil {
		return nil, err
	}

	return stack, nil
}

// StackOutput reads a named output from the stack.
func (s *Scenario) StackOutput(ctx context.Context, stack *Stack, key string) (string, error) {
	retrieved, err := s.Clients.Orchestration.GetStack(ctx, stack.Name, stack.ID)
	if err != nil {
		return "", err
	}

	return openstack.StackOutput(retrieved, key)
}

// GetStack fetches the current stack record.
func (s *Scenario) GetStack(ctx context.Context, stack *Stack) (*stacks.RetrievedStack, error) {
	return s.Clients.Orchestration.GetStack(ctx, stack.Name, stack.ID)
}
