/*
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

// Package power defines the capability set both scheduling policies
// implement. pkg/power/badeco and pkg/power/pmapper each provide a
// Controller; pkg/scheduler selects one at construction time and never
// branches on policy itself.
package power

import (
	"context"
)

// Controller is the policy-specific capability set: placement and power
// decisions, keyed off the shared callback surface in pkg/scheduler.
type Controller interface {
	// Init enumerates machines and establishes whatever ordering/tiering
	// the policy needs. Called once, before any other method.
	Init(ctx context.Context)

	// DriveQueue attempts to make progress on the head of the queue: place
	// it, or take a scale-up/reactivation action and leave it queued.
	// Returns true if the queue's size strictly decreased.
	DriveQueue(ctx context.Context) bool

	// AfterTaskComplete runs whatever rescale hook a policy ties to task
	// completion. Policy P has none.
	AfterTaskComplete(ctx context.Context)

	// PeriodicMaintenance runs the policy's tick-driven bookkeeping
	// (cooldowns, invariant restoration, SLA panic, reverse walk) before
	// the queue is drained.
	PeriodicMaintenance(ctx context.Context)
}
