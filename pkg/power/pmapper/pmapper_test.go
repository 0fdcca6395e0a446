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

package pmapper_test

import (
	"context"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cloudsim/ecosched/pkg/events"
	"github.com/cloudsim/ecosched/pkg/host"
	"github.com/cloudsim/ecosched/pkg/host/fake"
	"github.com/cloudsim/ecosched/pkg/placement"
	"github.com/cloudsim/ecosched/pkg/power/pmapper"
	"github.com/cloudsim/ecosched/pkg/taskqueue"
)

func newController(h *fake.Host, q *taskqueue.Queue, sla, done *uint64) *pmapper.Controller {
	return pmapper.New(h, q, func(host.VMID) {},
		func() uint64 { return *sla },
		func() uint64 { return *done },
		logr.Discard(), events.NewRecorder(logr.Discard()), placement.VMOverhead, 0)
}

func machineInfo(sstate host.SState, performance uint64) host.MachineInfo {
	return host.MachineInfo{
		CPU:         1,
		MemorySize:  100,
		NumCPUs:     4,
		SState:      sstate,
		PStates:     []uint64{100},
		Performance: []uint64{performance},
	}
}

var _ = Describe("Controller", func() {
	var (
		ctx       context.Context
		h         *fake.Host
		q         *taskqueue.Queue
		sla, done uint64
	)

	BeforeEach(func() {
		ctx = context.Background()
		h = fake.NewHost()
		sla, done = 0, 0
	})

	It("S1: places a single exact-fit task with MID priority", func() {
		h.AddMachine(machineInfo(host.S0, 500))
		q = taskqueue.New(h)
		c := newController(h, q, &sla, &done)
		c.Init(ctx)

		t0 := h.SeedTask(fake.Task{SLA: host.SLA1, CPU: 1, Memory: 50})
		q.Push(ctx, t0)
		c.DriveQueue(ctx)

		Expect(q.Size()).To(Equal(0))
		Expect(h.CreateVMCalls).To(HaveLen(1))
		Expect(h.AddTaskCalls[0].Priority).To(Equal(host.PriorityMid))
	})

	It("S2: a wrong-CPU task stays queued and issues no S-state requests", func() {
		h.AddMachine(machineInfo(host.S0, 500))
		q = taskqueue.New(h)
		c := newController(h, q, &sla, &done)
		c.Init(ctx)

		t0 := h.SeedTask(fake.Task{SLA: host.SLA1, CPU: 2, Memory: 10})
		q.Push(ctx, t0)
		c.DriveQueue(ctx)

		Expect(q.Size()).To(Equal(1))
		Expect(h.SetStateCalls).To(BeEmpty())
	})

	It("S3: reactivates a sleeping machine instead of placing, and leaves the task queued", func() {
		m0 := h.AddMachine(machineInfo(host.S3, 500))
		q = taskqueue.New(h)
		c := newController(h, q, &sla, &done)
		c.Init(ctx)

		t0 := h.SeedTask(fake.Task{SLA: host.SLA1, CPU: 1, Memory: 50})
		q.Push(ctx, t0)
		c.DriveQueue(ctx)

		Expect(q.Size()).To(Equal(1))
		Expect(h.SetStateCalls).To(ConsistOf(fake.SetStateCall{Machine: m0, State: host.S0}))
		Expect(c.Pending(m0)).To(Equal(host.S0))
		Expect(c.ReverseLimit()).To(Equal(-10))
	})

	It("considers machines in descending efficiency order regardless of which was added first", func() {
		weak := h.AddMachine(machineInfo(host.S0, 50))
		strong := h.AddMachine(machineInfo(host.S0, 500))

		q = taskqueue.New(h)
		c := newController(h, q, &sla, &done)
		c.Init(ctx)

		Expect(c.Ranked()).To(Equal([]host.MachineID{strong, weak}))
	})

	It("S6: forces a machine reported sleeping-with-tasks back to S0 and panics the reverse limit", func() {
		m3 := h.AddMachine(machineInfo(host.S2, 500))
		q = taskqueue.New(h)
		c := newController(h, q, &sla, &done)
		c.Init(ctx)

		vm := h.CreateVM(ctx, 0, 1)
		Expect(h.AttachVM(ctx, vm, m3)).To(Succeed())
		t0 := h.SeedTask(fake.Task{SLA: host.SLA1, CPU: 1, Memory: 10})
		Expect(h.AddTask(ctx, vm, t0, host.PriorityMid)).To(Succeed())

		c.PeriodicMaintenance(ctx)

		Expect(h.SetStateCalls).To(ContainElement(fake.SetStateCall{Machine: m3, State: host.S0}))
		Expect(c.Pending(m3)).To(Equal(host.S0))
		Expect(c.ReverseLimit()).To(Equal(-1000))
	})

	Describe("PeriodicMaintenance SLA panic", func() {
		It("forces every sleeping machine back to S0 when SLA violations are present", func() {
			m0 := h.AddMachine(machineInfo(host.S3, 500))
			q = taskqueue.New(h)
			c := newController(h, q, &sla, &done)
			c.Init(ctx)

			sla = 1
			c.PeriodicMaintenance(ctx)

			Expect(h.SetStateCalls).To(ContainElement(fake.SetStateCall{Machine: m0, State: host.S0}))
		})
	})

	Describe("reverse walk", func() {
		It("puts the least-efficient idle machine one step deeper once the reverse limit climbs enough to reach it", func() {
			h.AddMachine(machineInfo(host.S0, 500))
			h.AddMachine(machineInfo(host.S0, 300))
			weak := h.AddMachine(machineInfo(host.S0, 50))
			h.SeedTask(fake.Task{SLA: host.SLA1, CPU: 1, Memory: 10})
			q = taskqueue.New(h)
			c := newController(h, q, &sla, &done)
			c.Init(ctx)
			done = 1

			for i := 0; i < 5; i++ {
				c.PeriodicMaintenance(ctx)
			}

			Expect(h.SetStateCalls).To(ContainElement(fake.SetStateCall{Machine: weak, State: host.S1}))
		})
	})

	Describe("seeded reverse limit", func() {
		It("starts the reverse-walk limit from the seeded value instead of zero", func() {
			h.AddMachine(machineInfo(host.S0, 500))
			q = taskqueue.New(h)
			c := pmapper.New(h, q, func(host.VMID) {},
				func() uint64 { return sla }, func() uint64 { return done },
				logr.Discard(), events.NewRecorder(logr.Discard()), placement.VMOverhead, 3)
			c.Init(ctx)

			Expect(c.ReverseLimit()).To(Equal(3))
		})
	})

	Describe("VM overhead override", func() {
		It("rejects a task that only fits under the narrower default overhead", func() {
			h.AddMachine(machineInfo(host.S0, 500))
			q = taskqueue.New(h)
			c := pmapper.New(h, q, func(host.VMID) {},
				func() uint64 { return sla }, func() uint64 { return done },
				logr.Discard(), events.NewRecorder(logr.Discard()), 20, 0)
			c.Init(ctx)

			t0 := h.SeedTask(fake.Task{SLA: host.SLA1, CPU: 1, Memory: 100 - placement.VMOverhead})
			q.Push(ctx, t0)

			Expect(c.DriveQueue(ctx)).To(BeFalse())
			Expect(q.Size()).To(Equal(1))
		})
	})
})
