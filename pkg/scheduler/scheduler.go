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

// Package scheduler is the event handler: it owns the callback surface the
// host drives, the shared VM list and counters, and delegates every
// policy-specific decision to the power.Controller selected at
// construction time.
package scheduler

import (
	"context"
	"fmt"
	"os"

	"github.com/awslabs/operatorpkg/option"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"k8s.io/klog/v2"

	"github.com/cloudsim/ecosched/pkg/events"
	"github.com/cloudsim/ecosched/pkg/host"
	"github.com/cloudsim/ecosched/pkg/placement"
	"github.com/cloudsim/ecosched/pkg/power"
	"github.com/cloudsim/ecosched/pkg/power/badeco"
	"github.com/cloudsim/ecosched/pkg/power/pmapper"
	"github.com/cloudsim/ecosched/pkg/taskqueue"
)

// Policy selects which power.Controller a Scheduler is built with. No
// dynamic swap mid-run.
type Policy string

const (
	PolicyBadEco  Policy = "bad-eco"
	PolicyPMapper Policy = "p-mapper"
)

type options struct {
	logger           logr.Logger
	vmOverhead       uint64
	cooldownSeed     int
	reverseLimitSeed int
}

// Option configures a Scheduler at construction time.
type Option = option.Function[options]

// WithLogger overrides the logger a Scheduler and its controller log
// through. Defaults to klog.Background().
func WithLogger(l logr.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithVMOverhead overrides the per-VM bookkeeping memory reservation
// applied during placement fit checks. Defaults to placement.VMOverhead
// (8, the source-observed value); passing 0 also selects that default.
func WithVMOverhead(overhead uint64) Option {
	return func(o *options) { o.vmOverhead = overhead }
}

// WithCooldownSeed overrides the initial value of Policy A's
// run_shrink_cooldown counter. Defaults to 0, the source-observed initial
// state. Has no effect under Policy P.
func WithCooldownSeed(seed int) Option {
	return func(o *options) { o.cooldownSeed = seed }
}

// WithReverseLimitSeed overrides the initial value of Policy P's
// reverse_limit counter. Defaults to 0, the source-observed initial state.
// Has no effect under Policy A.
func WithReverseLimitSeed(seed int) Option {
	return func(o *options) { o.reverseLimitSeed = seed }
}

// Scheduler is the event handler driven by the host's callback surface. It
// is not safe for concurrent use; the host is expected to serialize calls
// into it, per the single-threaded event-loop contract it implements.
type Scheduler struct {
	host       host.Host
	policy     Policy
	controller power.Controller
	queue      *taskqueue.Queue
	recorder   events.Recorder
	log        logr.Logger

	vms           []host.VMID
	tasksDone     uint64
	slaViolations uint64
	migrating     bool
}

// New builds a Scheduler for the given policy against h.
func New(h host.Host, policy Policy, opts ...Option) *Scheduler {
	defaults := func(o *options) { o.logger = klog.Background() }
	o := option.Resolve(append([]Option{defaults}, opts...)...)
	log := o.logger.WithName("scheduler").WithValues("policy", string(policy))

	vmOverhead := o.vmOverhead
	if vmOverhead == 0 {
		vmOverhead = placement.VMOverhead
	}

	rec := events.NewRecorder(log)
	q := taskqueue.New(h)

	s := &Scheduler{
		host:     h,
		policy:   policy,
		queue:    q,
		recorder: rec,
		log:      log,
	}

	onVMCreated := func(vm host.VMID) { s.vms = append(s.vms, vm) }

	switch policy {
	case PolicyBadEco:
		s.controller = badeco.New(h, q, onVMCreated, log, rec, vmOverhead, o.cooldownSeed)
	case PolicyPMapper:
		s.controller = pmapper.New(h, q, onVMCreated, s.SLAViolations, s.TasksDone, log, rec, vmOverhead, o.reverseLimitSeed)
	default:
		panic(fmt.Sprintf("scheduler: unknown policy %q", policy))
	}
	return s
}

// TasksDone returns the number of tasks completed so far.
func (s *Scheduler) TasksDone() uint64 { return s.tasksDone }

// SLAViolations returns the number of SLA warnings observed so far.
func (s *Scheduler) SLAViolations() uint64 { return s.slaViolations }

// QueueSize returns the number of tasks currently queued.
func (s *Scheduler) QueueSize() int { return s.queue.Size() }

// VMCount returns the number of VMs the scheduler currently tracks as live.
func (s *Scheduler) VMCount() int { return len(s.vms) }

// Init enumerates machines and initializes the selected policy.
func (s *Scheduler) Init(ctx context.Context) {
	s.controller.Init(ctx)
	s.log.V(1).Info("initialized", "machines", s.host.MachineCount(ctx))
}

// NewTask enqueues t and attempts one placement drive.
func (s *Scheduler) NewTask(ctx context.Context, now host.SimTime, t host.TaskID) {
	s.log.V(4).Info("new task", "time", now, "task", t)
	s.queue.Push(ctx, t)
	s.controller.DriveQueue(ctx)
}

// TaskComplete accounts for a finished task, sweeps idle VMs, and runs the
// policy's completion hook.
func (s *Scheduler) TaskComplete(ctx context.Context, now host.SimTime, t host.TaskID) {
	s.log.V(4).Info("task complete", "time", now, "task", t)
	s.tasksDone++
	s.sweepIdleVMs(ctx)
	s.controller.AfterTaskComplete(ctx)
}

// sweepIdleVMs shuts down and forgets every tracked VM with no remaining
// active tasks. Errors from individual shutdowns are aggregated rather than
// aborting the sweep, consistent with "no fatal errors." Partitioning the
// candidate list ahead of the mutating pass avoids erasing from a slice
// being ranged over.
func (s *Scheduler) sweepIdleVMs(ctx context.Context) {
	idle, busy := lo.FilterReject(s.vms, func(vm host.VMID, _ int) bool {
		return len(s.host.VMInfo(ctx, vm).ActiveTasks) == 0
	})

	var errs error
	for _, vm := range idle {
		if err := s.host.ShutdownVM(ctx, vm); err != nil {
			errs = multierr.Append(errs, err)
			busy = append(busy, vm)
		}
	}
	s.vms = busy
	if errs != nil {
		s.log.Error(errs, "errors shutting down idle VMs")
	}
}

// PeriodicCheck runs the policy's tick maintenance, then drains the queue
// until a full pass makes no progress.
func (s *Scheduler) PeriodicCheck(ctx context.Context, now host.SimTime) {
	passID := uuid.New()
	log := s.log.WithValues("pass", passID.String())

	s.controller.PeriodicMaintenance(ctx)

	for {
		before := s.queue.Size()
		s.controller.DriveQueue(ctx)
		if s.queue.Size() >= before {
			break
		}
	}

	var percentComplete float64
	if total := s.host.NumTasks(ctx); total > 0 {
		percentComplete = float64(s.tasksDone) / float64(total) * 100
	}
	log.V(1).Info("periodic check", "time", now, "percent_complete", percentComplete, "queued", s.queue.Size(), "sla_violations", s.slaViolations)
}

// MigrationDone clears the migration gate. Migration is otherwise a no-op:
// the policy never issues one.
func (s *Scheduler) MigrationDone(ctx context.Context, vm host.VMID) {
	s.migrating = false
	s.log.V(4).Info("migration done", "vm", vm)
}

// MemoryWarning records a memory-overcommit warning. Dedupe prevents a
// flapping machine from flooding the log.
func (s *Scheduler) MemoryWarning(ctx context.Context, m host.MachineID) {
	s.recorder.Publish(ctx, events.Event{
		Reason:        "MemoryWarning",
		Message:       fmt.Sprintf("machine %d overcommitted", m),
		KeysAndValues: []interface{}{"machine", m},
		DedupeValues:  []string{"memory", fmt.Sprint(m)},
	})
}

// SLAWarning increments the SLA violation counter.
func (s *Scheduler) SLAWarning(ctx context.Context, t host.TaskID) {
	s.slaViolations++
}

// StateChangeComplete is a no-op: the pending-state map already reflects
// the intended target.
func (s *Scheduler) StateChangeComplete(ctx context.Context, m host.MachineID) {}

// Shutdown tears down every remaining VM and emits the final report.
func (s *Scheduler) Shutdown(ctx context.Context, now host.SimTime) {
	var errs error
	for _, vm := range s.vms {
		if err := s.host.ShutdownVM(ctx, vm); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	s.vms = nil
	if errs != nil {
		s.log.Error(errs, "errors during final VM shutdown")
	}
	s.report(ctx, now)
}

func (s *Scheduler) report(ctx context.Context, now host.SimTime) {
	for _, class := range []host.SLA{host.SLA0, host.SLA1, host.SLA2} {
		fmt.Fprintf(os.Stdout, "SLA%d: %.2f%%\n", class, s.host.SLAReport(ctx, class))
	}
	fmt.Fprintf(os.Stdout, "Total Energy %.4fKW-Hour\n", s.host.ClusterEnergy(ctx))
	fmt.Fprintf(os.Stdout, "Simulation run finished in %.6f seconds\n", float64(now)/1_000_000)
}
