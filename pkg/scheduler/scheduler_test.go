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

package scheduler_test

import (
	"context"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cloudsim/ecosched/pkg/host"
	"github.com/cloudsim/ecosched/pkg/host/fake"
	"github.com/cloudsim/ecosched/pkg/scheduler"
)

var _ = Describe("Scheduler", func() {
	var (
		ctx context.Context
		h   *fake.Host
	)

	BeforeEach(func() {
		ctx = context.Background()
		h = fake.NewHost()
	})

	It("panics on an unrecognized policy", func() {
		Expect(func() {
			scheduler.New(h, scheduler.Policy("bogus"), scheduler.WithLogger(logr.Discard()))
		}).To(Panic())
	})

	DescribeTable("places a single exact-fit task and clears the queue",
		func(policy scheduler.Policy) {
			h.AddMachine(host.MachineInfo{
				CPU: 1, MemorySize: 100, NumCPUs: 4,
				PStates: []uint64{100}, Performance: []uint64{500},
			})
			s := scheduler.New(h, policy, scheduler.WithLogger(logr.Discard()))
			s.Init(ctx)

			t0 := h.SeedTask(fake.Task{SLA: host.SLA1, CPU: 1, Memory: 50})
			s.NewTask(ctx, 0, t0)

			Expect(s.QueueSize()).To(Equal(0))
			Expect(s.VMCount()).To(Equal(1))
		},
		Entry("bad-eco", scheduler.PolicyBadEco),
		Entry("p-mapper", scheduler.PolicyPMapper),
	)

	DescribeTable("shuts down a VM once its last task completes",
		func(policy scheduler.Policy) {
			h.AddMachine(host.MachineInfo{
				CPU: 1, MemorySize: 100, NumCPUs: 4,
				PStates: []uint64{100}, Performance: []uint64{500},
			})
			s := scheduler.New(h, policy, scheduler.WithLogger(logr.Discard()))
			s.Init(ctx)

			t0 := h.SeedTask(fake.Task{SLA: host.SLA1, CPU: 1, Memory: 50})
			s.NewTask(ctx, 0, t0)
			Expect(s.VMCount()).To(Equal(1))

			vm := h.CreateVMCalls // sanity: one VM created
			Expect(vm).To(HaveLen(1))
			h.CompleteTask(0, t0)

			s.TaskComplete(ctx, 1, t0)

			Expect(s.VMCount()).To(Equal(0))
			Expect(s.TasksDone()).To(Equal(uint64(1)))
			Expect(h.ShutdownVMCalls).To(ConsistOf(host.VMID(0)))
		},
		Entry("bad-eco", scheduler.PolicyBadEco),
		Entry("p-mapper", scheduler.PolicyPMapper),
	)

	It("counts SLA warnings independently per call", func() {
		s := scheduler.New(h, scheduler.PolicyBadEco, scheduler.WithLogger(logr.Discard()))
		s.Init(ctx)

		t0 := h.SeedTask(fake.Task{SLA: host.SLA0, CPU: 1, Memory: 10})
		s.SLAWarning(ctx, t0)
		s.SLAWarning(ctx, t0)

		Expect(s.SLAViolations()).To(Equal(uint64(2)))
	})

	It("keeps an unplaceable task queued across a periodic check without looping", func() {
		h.AddMachine(host.MachineInfo{
			CPU: 1, MemorySize: 100, NumCPUs: 4,
			PStates: []uint64{100}, Performance: []uint64{500},
		})
		s := scheduler.New(h, scheduler.PolicyPMapper, scheduler.WithLogger(logr.Discard()))
		s.Init(ctx)

		t0 := h.SeedTask(fake.Task{SLA: host.SLA1, CPU: 2, Memory: 10}) // wrong CPU, stays queued
		s.NewTask(ctx, 0, t0)
		Expect(s.QueueSize()).To(Equal(1))

		s.PeriodicCheck(ctx, 1)
		Expect(s.QueueSize()).To(Equal(1))
		Expect(s.VMCount()).To(Equal(0))
	})

	DescribeTable("WithVMOverhead narrows the fit check below the source-observed default",
		func(policy scheduler.Policy) {
			h.AddMachine(host.MachineInfo{
				CPU: 1, MemorySize: 100, NumCPUs: 4,
				PStates: []uint64{100}, Performance: []uint64{500},
			})
			s := scheduler.New(h, policy, scheduler.WithLogger(logr.Discard()), scheduler.WithVMOverhead(20))
			s.Init(ctx)

			t0 := h.SeedTask(fake.Task{SLA: host.SLA1, CPU: 1, Memory: 90})
			s.NewTask(ctx, 0, t0)

			Expect(s.QueueSize()).To(Equal(1))
			Expect(s.VMCount()).To(Equal(0))
		},
		Entry("bad-eco", scheduler.PolicyBadEco),
		Entry("p-mapper", scheduler.PolicyPMapper),
	)

	It("shuts down every remaining VM and clears tracking at shutdown", func() {
		h.AddMachine(host.MachineInfo{
			CPU: 1, MemorySize: 100, NumCPUs: 4,
			PStates: []uint64{100}, Performance: []uint64{500},
		})
		s := scheduler.New(h, scheduler.PolicyBadEco, scheduler.WithLogger(logr.Discard()))
		s.Init(ctx)

		t0 := h.SeedTask(fake.Task{SLA: host.SLA1, CPU: 1, Memory: 50})
		s.NewTask(ctx, 0, t0)
		Expect(s.VMCount()).To(Equal(1))

		s.Shutdown(ctx, 100)

		Expect(s.VMCount()).To(Equal(0))
		Expect(h.ShutdownVMCalls).To(ConsistOf(host.VMID(0)))
	})
})
