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

package openstack_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/stretchr/testify/assert"

	"github.com/unikorn-cloud/conformance/pkg/openstack"
)

func responseError(status int, body string) error {
	return gophercloud.ErrUnexpectedResponseCode{
		Method:   http.MethodPost,
		Expected: []int{http.StatusCreated},
		Actual:   status,
		Body:     []byte(body),
	}
}

func TestIgnoreNotFound(t *testing.T) {
	t.Parallel()

	assert.NoError(t, openstack.IgnoreNotFound(responseError(http.StatusNotFound, "")))
	assert.NoError(t, openstack.IgnoreNotFound(nil))

	err := responseError(http.StatusForbidden, "")
	assert.Equal(t, err, openstack.IgnoreNotFound(err))
}

func TestClassifyConflict(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		err      error
		expected openstack.ConflictKind
	}{
		{
			name:     "duplicateSecurityGroupRule",
			err:      responseError(http.StatusConflict, `{"NeutronError": {"message": "Security group rule already exists."}}`),
			expected: openstack.ConflictDuplicate,
		},
		{
			name:     "subnetOverlap",
			err:      responseError(http.StatusConflict, `{"NeutronError": {"message": "Requested subnet with cidr: 10.100.0.0/28 overlaps with another subnet."}}`),
			expected: openstack.ConflictCIDROverlap,
		},
		{
			name:     "quotaConflict",
			err:      responseError(http.StatusConflict, `{"NeutronError": {"message": "Quota exceeded for resources."}}`),
			expected: openstack.ConflictUnknown,
		},
		{
			name:     "notAConflict",
			err:      responseError(http.StatusNotFound, "already exists"),
			expected: openstack.ConflictUnknown,
		},
		{
			name:     "plainError",
			err:      errors.New("already exists"),
			expected: openstack.ConflictUnknown,
		},
		{
			name:     "wrappedConflict",
			err:      fmt.Errorf("creating rule: %w", responseError(http.StatusConflict, "already exists")),
			expected: openstack.ConflictDuplicate,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, c.expected, openstack.ClassifyConflict(c.err))
		})
	}
}

func TestTimeoutError(t *testing.T) {
	t.Parallel()

	err := openstack.NewTimeoutError("server", "f1d2", "status", 30*time.Second, "ACTIVE")

	assert.True(t, openstack.IsTimeout(err))
	assert.True(t, openstack.IsTimeout(fmt.Errorf("boot: %w", err)))
	assert.False(t, openstack.IsTimeout(errors.New("timed out")))

	assert.Contains(t, err.Error(), "server f1d2")
	assert.Contains(t, err.Error(), "ACTIVE")
}
