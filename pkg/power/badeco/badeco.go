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

// Package badeco implements Policy A — "bad-eco": a tiered running /
// intermediate / off partition, scaled up by draining intermediate into
// running whenever the last running machine is considered, and scaled down
// by a cooldown-gated shrink path that is never actually reached.
package badeco

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/cloudsim/ecosched/pkg/events"
	"github.com/cloudsim/ecosched/pkg/host"
	"github.com/cloudsim/ecosched/pkg/placement"
	"github.com/cloudsim/ecosched/pkg/registry"
	"github.com/cloudsim/ecosched/pkg/taskqueue"
)

// scaleDownCooldown is the number of PeriodicMaintenance ticks that must
// elapse before a shrink pass is even considered.
const scaleDownCooldown = 10

// Controller implements power.Controller for Policy A.
type Controller struct {
	host        host.Host
	queue       *taskqueue.Queue
	onVMCreated func(host.VMID)
	log         logr.Logger
	recorder    events.Recorder

	registry *registry.Registry
	pending  *registry.PendingStates

	running      []host.MachineID
	intermediate []host.MachineID
	off          []host.MachineID

	vmOverhead uint64
	cooldown   int
}

// New builds a Policy A controller. onVMCreated is invoked for every VM the
// controller creates, so the owning scheduler can track it for cleanup.
// vmOverhead is the per-VM bookkeeping memory reservation applied during fit
// checks (scheduler.WithVMOverhead); cooldownSeed seeds the scale-down
// cooldown counter (scheduler.WithCooldownSeed).
func New(h host.Host, q *taskqueue.Queue, onVMCreated func(host.VMID), log logr.Logger, rec events.Recorder, vmOverhead uint64, cooldownSeed int) *Controller {
	return &Controller{
		host:        h,
		queue:       q,
		onVMCreated: onVMCreated,
		log:         log.WithName("badeco"),
		recorder:    rec,
		vmOverhead:  vmOverhead,
		cooldown:    cooldownSeed,
	}
}

// Running returns the current running tier, for inspection in tests.
func (c *Controller) Running() []host.MachineID { return append([]host.MachineID(nil), c.running...) }

// Intermediate returns the current intermediate tier, for inspection in tests.
func (c *Controller) Intermediate() []host.MachineID {
	return append([]host.MachineID(nil), c.intermediate...)
}

// Off returns the current off tier, for inspection in tests.
func (c *Controller) Off() []host.MachineID { return append([]host.MachineID(nil), c.off...) }

// Pending returns the pending S-state recorded for a machine.
func (c *Controller) Pending(m host.MachineID) host.SState { return c.pending.Get(m) }

// Cooldown returns the current scale-down cooldown counter.
func (c *Controller) Cooldown() int { return c.cooldown }

func (c *Controller) Init(ctx context.Context) {
	n := c.host.MachineCount(ctx)
	machines := make([]host.MachineID, n)
	for i := range machines {
		machines[i] = host.MachineID(i)
	}
	c.registry = registry.New(machines)
	c.pending = registry.NewPendingStates(machines)

	// Round-robin mod-3 partition: counter==1 -> running, counter==2 ->
	// intermediate, counter==3 (wraps to 0) -> off. Preserved exactly as
	// observed; see the open question on whether this was intentional.
	counter := 0
	for _, m := range c.registry.Machines {
		counter++
		switch counter {
		case 1:
			c.running = append(c.running, m)
		case 2:
			c.intermediate = append(c.intermediate, m)
		default:
			c.off = append(c.off, m)
			counter = 0
		}
	}
	c.log.V(3).Info("initialized", "machines", n, "running", len(c.running), "intermediate", len(c.intermediate), "off", len(c.off))
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

	if len(c.running) == 0 {
		c.scaleUpRunning(ctx)
		return
	}

	lastMachine := c.running[len(c.running)-1]
	for _, m := range c.running {
		info := c.host.MachineInfo(ctx, m)
		if !placement.Fits(info, reqCPU, reqMemory, c.vmOverhead) {
			continue
		}

		if m == lastMachine {
			c.scaleUpRunning(ctx)
		}

		vm := c.host.CreateVM(ctx, reqVM, reqCPU)
		c.onVMCreated(vm)
		_ = c.host.AttachVM(ctx, vm, m)
		_ = c.host.AddTask(ctx, vm, taskID, priority)
		c.queue.Pop(ctx)
		return
	}

	// No running machine fit; ask for more headroom and leave the task
	// queued for the next drive.
	c.scaleUpRunning(ctx)
}

// scaleUpRunning drains up to max(|intermediate|/2, |intermediate|) ==
// |intermediate| machines from intermediate into running — this always
// empties intermediate entirely, a known artifact of the source's
// computation rather than an intentional half-drain. Preserved as-is.
func (c *Controller) scaleUpRunning(ctx context.Context) {
	n := len(c.intermediate)
	toMove := n
	if half := n / 2; half > toMove {
		toMove = half
	}

	moved := c.intermediate[:toMove]
	for _, m := range moved {
		c.requestState(ctx, m, host.S0)
		c.running = append(c.running, m)
	}
	c.intermediate = c.intermediate[toMove:]

	c.cooldown = -100
}

// AutoRescale is Policy A's scale-down path. It begins with an
// unconditional return in the source it was ported from, making the shrink
// logic below unreachable; this is preserved rather than "fixed" per the
// documented non-goal.
func (c *Controller) AutoRescale(ctx context.Context) {
	return

	numRunning := len(c.running)
	if numRunning <= 2 || c.cooldown < scaleDownCooldown {
		return
	}
	penultimate := c.host.MachineInfo(ctx, c.running[numRunning-2])
	if penultimate.ActiveTasks != 0 {
		return
	}

	numToShrink := numRunning / 10
	shrunk := 0
	var kept []host.MachineID
	for _, m := range c.running {
		if shrunk == numToShrink {
			kept = append(kept, m)
			continue
		}
		info := c.host.MachineInfo(ctx, m)
		if info.ActiveTasks > 0 {
			kept = append(kept, m)
			continue
		}
		c.requestState(ctx, m, host.S3)
		c.intermediate = append(c.intermediate, m)
		shrunk++
	}
	c.running = kept
	c.cooldown = 0
}

func (c *Controller) AfterTaskComplete(ctx context.Context) {
	c.AutoRescale(ctx)
}

func (c *Controller) PeriodicMaintenance(ctx context.Context) {
	c.cooldown++
	c.AutoRescale(ctx)
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
