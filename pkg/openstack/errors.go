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
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gophercloud/gophercloud/v2"
)

// IsNotFound tells you the resource has gone, which during teardown is
// the outcome we wanted in the first place.
func IsNotFound(err error) bool {
	return gophercloud.ResponseCodeIs(err, http.StatusNotFound)
}

// IsConflict catches 409s, which OpenStack uses for everything from
// duplicate rules to quota violations, hence ClassifyConflict below.
func IsConflict(err error) bool {
	return gophercloud.ResponseCodeIs(err, http.StatusConflict)
}

// IsForbidden catches policy denials so preconditions can skip rather
// than fail.
func IsForbidden(err error) bool {
	return gophercloud.ResponseCodeIs(err, http.StatusForbidden)
}

// IgnoreNotFound maps a not-found error to success.  Deletes are
// idempotent from the caller's point of view.
func IgnoreNotFound(err error) error {
	if IsNotFound(err) {
		return nil
	}

	return err
}

// ConflictKind discriminates the 409 variants the harness has to handle
// differently.
type ConflictKind int

const (
	// ConflictUnknown means the conflict is none of our business and
	// must propagate.
	ConflictUnknown ConflictKind = iota
	// ConflictDuplicate means the thing we tried to create already
	// exists, e.g. a security group rule, and the create is a no-op.
	ConflictDuplicate
	// ConflictCIDROverlap means the requested subnet block clashes with
	// an existing allocation and the caller should try the next one.
	ConflictCIDROverlap
)

// Neutron doesn't give conflicts machine readable error codes, so we are
// stuck matching detail strings.  Keep every such match here so an API
// wording change breaks exactly one table.
var conflictDetails = []struct {
	substring string
	kind      ConflictKind
}{
	{"already exists", ConflictDuplicate},
	{"overlaps with", ConflictCIDROverlap},
}

// ClassifyConflict inspects a 409's response body and maps it onto a
// ConflictKind.  Non-conflict errors classify as unknown.
func ClassifyConflict(err error) ConflictKind {
	if !IsConflict(err) {
		return ConflictUnknown
	}

	var unexpected gophercloud.ErrUnexpectedResponseCode

	if !errors.As(err, &unexpected) {
		return ConflictUnknown
	}

	body := string(unexpected.Body)

	for _, detail := range conflictDetails {
		if strings.Contains(body, detail.substring) {
			return detail.kind
		}
	}

	return ConflictUnknown
}

// TimeoutError is returned when a resource fails to reach a target state
// within its deadline.  It names everything a human needs to triage the
// failure from the error string alone.
type TimeoutError struct {
	// Resource is the kind, e.g. "server".
	Resource string
	// ID identifies the instance being waited on.
	ID string
	// Attribute is the field being polled, e.g. "status".
	Attribute string
	// Targets are the acceptable terminal values.
	Targets []string
	// Timeout is the deadline that elapsed.
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s: %s did not reach %s within %v", e.Resource, e.ID, e.Attribute, strings.Join(e.Targets, "|"), e.Timeout)
}

// IsTimeout reports whether the error chain contains a wait deadline.
func IsTimeout(err error) bool {
	var timeout *TimeoutError

	return errors.As(err, &timeout)
}

// NewTimeoutError is a convenience for the common single-target case.
func NewTimeoutError(resource, id, attribute string, timeout time.Duration, targets ...string) error {
	return &TimeoutError{
		Resource:  resource,
		ID:        id,
		Attribute: attribute,
		Targets:   targets,
		Timeout:   timeout,
	}
}
