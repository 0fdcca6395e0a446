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

// Package pmapper implements Policy P — "p-mapper": machines are ranked
// once by descending energy efficiency and packed greedily from the most
// efficient end; the least-efficient tail is walked in reverse and put to
// progressively deeper sleep as the run makes progress, with an SLA-panic
// override that snaps everything back to full power.
package pmapper

import (
	"context"
	"strconv"

	"github.com/go-logr/logr"

	"github.com/cloudsim/ecosched/pkg/efficiency"
	"github.com/cloudsim/ecosched/pkg/events"
	"github.com/cloudsim/ecosched/pkg/host"
	"github.com/cloudsim/ecosched/pkg/placement"
	"github.com/cloudsim/ecosched/pkg/registry"
	"github.com/cloudsim/ecosched/pkg/taskqueue"
)

// Controller implements power.Controller for Policy P.
type Controller struct {
	host          host.Host
	queue         *taskqueue.Queue
	onVMCreated   func(host.VMID)
	log           logr.Logger
	recorder      events.Recorder
	slaViolations func() uint64
	tasksDone     func() uint64

	registry     *registry.Registry
	pending      *registry.PendingStates
	ranked       []host.MachineID
	vmOverhead   uint64
	reverseLimit int
}

// New builds a Policy P controller. slaViolations and tasksDone let the
// controller read the scheduler's shared counters without owning them —
// both policies tick off the same counters, incremented by the event
// handler. vmOverhead is the per-VM bookkeeping memory reservation applied
// during fit checks (scheduler.WithVMOverhead); reverseLimitSeed seeds the
// reverse-walk limit counter (scheduler.WithReverseLimitSeed).
func New(h host.Host, q *taskqueue.Queue, onVMCreated func(host.VMID), slaViolations, tasksDone func() uint64, log logr.Logger, rec events.Recorder, vmOverhead uint64, reverseLimitSeed int) *Controller {
	return &Controller{
		host:          h,
		queue:         q,
		onVMCreated:   onVMCreated,
		slaViolations: slaViolations,
		tasksDone:     tasksDone,
		log:           log.WithName("pmapper"),
		recorder:      rec,
		vmOverhead:    vmOverhead,
		reverseLimit:  reverseLimitSeed,
	}
}

// Ranked returns the efficiency ordering computed at Init, for inspection
// in tests.
func (c *Controller) Ranked() []host.MachineID { return append([]host.MachineID(nil), c.ranked...) }

// ReverseLimit returns the current reverse-walk limit, for inspection in
// tests.
func (c *Controller) ReverseLimit() int { return c.reverseLimit }

// Pending returns the pending S-state recorded for a machine.
func (c *Controller) Pending(m host.MachineID) host.SState { return c.pending.Get(m) }

func (c *Controller) Init(ctx context.Context) {
	n := c.host.MachineCount(ctx)
	machines := make([]host.MachineID, n)
	for i := range machines {
		machines[i] = host.MachineID(i)
	}
	c.registry = registry.New(machines)
	c.pending = registry.NewPendingStates(machines)
	c.ranked = efficiency.Rank(ctx, c.host, c.registry.Machines)

	for _, m := range c.ranked {
		c.log.V(3).Info("efficiency", "machine", m, "score", efficiency.Score(c.host.MachineInfo(ctx, m)))
	}
}

func (c *Controller) DriveQueue(ctx context.Context) bool {
	before := c.queue.Size()
	c.handleQueue(ctx)
	return c.queue.Size() < before
}

func (c *Controller) handleQueue(ctx context.Context) {
	taskID, ok := c.queue.Peek()
	if !ok {
		return
	}

	reqVM := c.host.RequiredVMType(ctx, taskID)
	reqCPU := c.host.RequiredCPUType(ctx, taskID)
	reqMemory := c.host.TaskMemory(ctx, taskID)
	priority := placement.PriorityFor(c.host.RequiredSLA(ctx, taskID))

	for _, m := range c.ranked {
		info := c.host.MachineInfo(ctx, m)
		if !placement.Fits(info, reqCPU, reqMemory, c.vmOverhead) {
			continue
		}

		// Sleeping-machine reactivation rule: an otherwise-eligible
		// machine that is asleep is woken instead of used. The task stays
		// queued and is retried on the next drive.
		if c.pending.Get(m) > host.S0 || info.SState > host.S0 {
			c.requestState(ctx, m, host.S0)
			c.reverseLimit -= 10
			return
		}

		vm := c.host.CreateVM(ctx, reqVM, reqCPU)
		c.onVMCreated(vm)
		_ = c.host.AttachVM(ctx, vm, m)
		_ = c.host.AddTask(ctx, vm, taskID, priority)
		c.queue.Pop(ctx)
		return
	}

	// No fit anywhere: force every machine back to full power so the next
	// pass has the best possible shot, and leave the task queued.
	c.wakeAll(ctx)
}

func (c *Controller) wakeAll(ctx context.Context) {
	for _, m := range c.ranked {
		info := c.host.MachineInfo(ctx, m)
		if c.pending.Get(m) > host.S0 || info.SState > host.S0 {
			c.requestState(ctx, m, host.S0)
		}
		if info.PState > host.P0 {
			_ = c.host.SetCorePerformance(ctx, m, 0, host.P0)
		}
	}
}

func (c *Controller) AfterTaskComplete(context.Context) {
	// Policy P ties no rescale action to task completion; the reverse walk
	// only runs from PeriodicMaintenance.
}

func (c *Controller) PeriodicMaintenance(ctx context.Context) {
	taskPercentage := float64(0)
	if total := c.host.NumTasks(ctx); total > 0 {
		taskPercentage = float64(c.tasksDone()) / float64(total) * 100
	}
	if c.reverseLimit+1 < len(c.ranked) && taskPercentage >= 10 {
		c.reverseLimit++
	}

	c.restoreInvariant(ctx)

	if c.slaViolations() > 0 {
		c.wakeAll(ctx)
	}

	c.reverseWalk(ctx)
}

// restoreInvariant forces any machine reported as sleeping-with-tasks back
// to S0 and slams the reverse limit to suppress further power-downs.
func (c *Controller) restoreInvariant(ctx context.Context) {
	for _, m := range c.ranked {
		info := c.host.MachineInfo(ctx, m)
		if info.ActiveTasks > 0 && (info.SState > host.S0 || c.pending.Get(m) > host.S0) {
			c.recorder.Publish(ctx, events.Event{
				Reason:       "InvariantViolation",
				Message:      "machine reported sleeping with active tasks",
				DedupeValues: []string{"invariant", machineKey(m)},
			})
			c.requestState(ctx, m, host.S0)
			c.reverseLimit = -1000
		}
	}
}

// reverseWalk iterates the efficiency-tail backward, putting idle machines
// to progressively deeper sleep, gated by reverseLimit and SLA pressure.
func (c *Controller) reverseWalk(ctx context.Context) {
	totalTasks := float64(c.host.NumTasks(ctx))
	countBackwards := 0
	for i := len(c.ranked) - 1; i >= 0; i-- {
		countBackwards++
		if countBackwards >= c.reverseLimit || float64(c.slaViolations()) > 0.05*totalTasks {
			break
		}

		m := c.ranked[i]
		info := c.host.MachineInfo(ctx, m)
		next := nextState(info.SState)
		if info.ActiveTasks == 0 && c.queue.Size() == 0 && next != c.pending.Get(m) {
			c.requestState(ctx, m, next)
		}
	}
}

// nextState deepens sleep by one step, clamped at S5.
func nextState(s host.SState) host.SState {
	if s < host.S5 {
		return s + 1
	}
	return host.S5
}

func machineKey(m host.MachineID) string {
	return strconv.FormatUint(uint64(m), 10)
}

// requestState elides the host call only when both the scheduler's own
// pending record and the host's last-reported state already agree with s;
// a pending record that predates a host-reported divergence must still be
// corrected.
func (c *Controller) requestState(ctx context.Context, m host.MachineID, s host.SState) {
	if c.pending.Get(m) == s && c.host.MachineInfo(ctx, m).SState == s {
		return
	}
	_ = c.host.SetState(ctx, m, s)
	c.pending.Set(m, s)
}
