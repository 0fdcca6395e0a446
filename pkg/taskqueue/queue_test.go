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

package taskqueue_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cloudsim/ecosched/pkg/host"
	"github.com/cloudsim/ecosched/pkg/host/fake"
	"github.com/cloudsim/ecosched/pkg/taskqueue"
)

var _ = Describe("Queue", func() {
	var (
		ctx context.Context
		h   *fake.Host
		q   *taskqueue.Queue
	)

	BeforeEach(func() {
		ctx = context.Background()
		h = fake.NewHost()
		q = taskqueue.New(h)
	})

	It("orders by SLA class ascending ahead of target completion", func() {
		// S4: t_a(SLA2, target=100), t_b(SLA0, target=200), t_c(SLA1, target=50)
		ta := h.SeedTask(fake.Task{SLA: host.SLA2, TargetCompletion: 100})
		tb := h.SeedTask(fake.Task{SLA: host.SLA0, TargetCompletion: 200})
		tc := h.SeedTask(fake.Task{SLA: host.SLA1, TargetCompletion: 50})

		q.Push(ctx, ta)
		q.Push(ctx, tb)
		q.Push(ctx, tc)

		Expect(q.Size()).To(Equal(3))

		head, ok := q.Peek()
		Expect(ok).To(BeTrue())
		Expect(head).To(Equal(tb))

		first, _ := q.Pop(ctx)
		Expect(first).To(Equal(tb))
		second, _ := q.Pop(ctx)
		Expect(second).To(Equal(tc))
		third, _ := q.Pop(ctx)
		Expect(third).To(Equal(ta))

		Expect(q.Size()).To(Equal(0))
	})

	It("breaks same-SLA ties by earlier target completion first", func() {
		late := h.SeedTask(fake.Task{SLA: host.SLA1, TargetCompletion: 500})
		early := h.SeedTask(fake.Task{SLA: host.SLA1, TargetCompletion: 10})

		q.Push(ctx, late)
		q.Push(ctx, early)

		head, _ := q.Peek()
		Expect(head).To(Equal(early))
	})

	It("reports empty Peek/Pop without panicking", func() {
		_, ok := q.Peek()
		Expect(ok).To(BeFalse())
		_, ok = q.Pop(ctx)
		Expect(ok).To(BeFalse())
	})

	It("never re-surfaces a popped task", func() {
		t0 := h.SeedTask(fake.Task{SLA: host.SLA1, TargetCompletion: 1})
		q.Push(ctx, t0)
		popped, ok := q.Pop(ctx)
		Expect(ok).To(BeTrue())
		Expect(popped).To(Equal(t0))
		Expect(q.Size()).To(Equal(0))
		_, ok = q.Peek()
		Expect(ok).To(BeFalse())
	})
})
