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
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/gophercloud/gophercloud/v2/openstack/orchestration/v1/stacks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/unikorn-cloud/core/pkg/errors"

	"github.com/unikorn-cloud/conformance/pkg/fixture"
)

type fakeOrchestration struct {
	fixture.OrchestrationAPI

	outputs []map[string]any

	waited   []string
	deleted  []string
	waitGone []string
}

func (f *fakeOrchestration) CreateStack(_ context.Context, _ string, _ []byte, _ map[string]string) (string, error) {
	return "stack-id", nil
}

func (f *fakeOrchestration) GetStack(_ context.Context, name, id string) (*stacks.RetrievedStack, error) {
	stack := &stacks.RetrievedStack{
		Name:    name,
		ID:      id,
		Status:  "CREATE_COMPLETE",
		Outputs: f.outputs,
	}

	return stack, nil
}

func (f *fakeOrchestration) DeleteStack(_ context.Context, _, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeOrchestration) WaitForStackStatus(_ context.Context, _, _, status string, _, _ time.Duration) error {
	f.waited = append(f.waited, status)
	return nil
}

func (f *fakeOrchestration) WaitForStackDeleted(_ context.Context, _, id string, _, _ time.Duration) error {
	f.waitGone = append(f.waitGone, id)
	return nil
}

func TestCreateStack(t *testing.T) {
	t.Parallel()

	orchestration := &fakeOrchestration{
		outputs: []map[string]any{
			{"output_key": "address", "output_value": "10.0.0.5"},
		},
	}
	clients := &fixture.Clients{Orchestration: orchestration}

	s := fixture.NewScenario("unit", testConfig(), clients, logr.Discard())

	stack, err := s.CreateStack(context.Background(), []byte("heat_template_version: 2016-10-14"), nil)
	require.NoError(t, err)
	assert.Equal(t, "stack-id", stack.ID)
	assert.Equal(t, []string{"CREATE_COMPLETE"}, orchestration.waited)

	value, err := s.StackOutput(context.Background(), stack, "address")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", value)

	_, err = s.StackOutput(context.Background(), stack, "missing")
	require.ErrorIs(t, err, coreerrors.ErrResourceNotFound)

	// Stack deletion is asynchronous, so teardown both issues the delete
	// and waits for heat to finish unwinding it.
	require.NoError(t, s.Teardown(context.Background()))
	assert.Equal(t, []string{"stack-id"}, orchestration.deleted)
	assert.Equal(t, []string{"stack-id"}, orchestration.waitGone)
}
