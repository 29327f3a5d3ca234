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

// Package cleanup implements the teardown ledger for scenario tests.
//
// Every remote resource a scenario creates registers its deletion here.
// Deletions run in reverse registration order, so children created after
// their parents are removed first, standing in for transactional rollback.
// Resources with asynchronous deletion semantics additionally register a
// waiter; all deletes are issued during the stack drain before any waiter
// blocks, so total teardown time is bounded by the slowest single resource
// rather than the sum.
package cleanup

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
)

// ErrTeardown wraps any failure during ledger drain so callers can
// attribute it to teardown rather than the test body.
var ErrTeardown = errors.New("teardown failed")

// Action is a deferred teardown call, typically a resource delete.
// Implementations are expected to treat not-found as success, see
// openstack.IgnoreNotFound.
type Action func(ctx context.Context) error

// Waiter blocks until a resource reports terminal absence or a bounded
// timeout elapses, in which case it returns a timeout error.
type Waiter func(ctx context.Context) error

type action struct {
	name string
	call Action
}

type waiter struct {
	name string
	call Waiter
}

// Ledger accumulates teardown work for a single scenario instance.  It is
// owned by that instance and is not safe for concurrent use; scenarios are
// single threaded by design.
type Ledger struct {
	log logr.Logger

	// actions run last-registered first.
	actions []action

	// waiters run in registration order, after all actions.
	waiters []waiter
}

// New returns an empty ledger.
func New(log logr.Logger) *Ledger {
	return &Ledger{
		log: log,
	}
}

// Register pushes a synchronous teardown action onto the stack.
func (l *Ledger) Register(name string, call Action) {
	l.actions = append(l.actions, action{name: name, call: call})
}

// RegisterWait pushes a teardown action onto the stack and appends a
// deletion waiter to the wait queue.  The action fires during the normal
// stack drain; the waiter only blocks once every registered delete has been
// issued.
func (l *Ledger) RegisterWait(name string, call Action, wait Waiter) {
	l.Register(name, call)
	l.waiters = append(l.waiters, waiter{name: name, call: wait})
}

// Len returns the number of registered actions, for reporting.
func (l *Ledger) Len() int {
	return len(l.actions)
}

// Drain executes all registered actions in LIFO order, then blocks on the
// wait queue in registration order.  Each entry executes exactly once; the
// ledger is empty afterwards regardless of errors.  A failed delete does
// not stop the drain and a timed-out waiter does not stop the remaining
// waiters; all failures are aggregated into the returned error.
func (l *Ledger) Drain(ctx context.Context) error {
	actions := l.actions
	waiters := l.waiters

	l.actions = nil
	l.waiters = nil

	var errs []error

	for i := len(actions) - 1; i >= 0; i-- {
		l.log.V(1).Info("running cleanup", "resource", actions[i].name)

		if err := actions[i].call(ctx); err != nil {
			errs = append(errs, fmt.Errorf("cleanup of %s: %w", actions[i].name, err))
		}
	}

	for _, w := range waiters {
		l.log.V(1).Info("waiting for deletion", "resource", w.name)

		if err := w.call(ctx); err != nil {
			errs = append(errs, fmt.Errorf("deletion wait for %s: %w", w.name, err))
		}
	}

	if len(errs) != 0 {
		return fmt.Errorf("%w: %w", ErrTeardown, errors.Join(errs...))
	}

	return nil
}
