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

// Package poll provides the bounded-retry primitive every wait in the
// harness is built on.  Remote resources converge eventually, so the only
// sane interface is "keep asking until it's true or we give up".
package poll

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// Condition reports whether the state we are waiting for has been reached.
// Implementations must be safe to call repeatedly.
type Condition func() bool

// Until invokes the condition immediately, then once per interval, until it
// returns true or the timeout elapses.  The return value says whether the
// condition became true in time; a timeout is not an error, callers decide
// whether the absence of success is fatal.
func Until(ctx context.Context, timeout, interval time.Duration, condition Condition) bool {
	callback := func(ctx context.Context) (bool, error) {
		return condition(), nil
	}

	return wait.PollUntilContextTimeout(ctx, interval, timeout, true, callback) == nil
}
