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

// Package taskqueue orders pending tasks by SLA class, then target
// completion time. Priority is derived by querying the host on every
// comparison rather than snapshotted at push time, so the queue stays
// correct even if a host were to report different values for the same task
// over its lifetime (the scheduler itself assumes these are immutable).
package taskqueue

import (
	"container/heap"
	"context"

	"github.com/cloudsim/ecosched/pkg/host"
)

// Queue is a priority queue of task IDs ordered by (SLA class ascending,
// target completion ascending), ties broken by task ID. Not safe for
// concurrent use; the scheduler that owns it is itself single-threaded.
type Queue struct {
	h     host.Host
	items taskHeap
}

// New returns an empty Queue that resolves priority via h.
func New(h host.Host) *Queue {
	return &Queue{h: h}
}

// Push adds a task to the queue.
func (q *Queue) Push(ctx context.Context, t host.TaskID) {
	q.items.ctx = ctx
	q.items.h = q.h
	heap.Push(&q.items, t)
}

// Peek returns the head of the queue without removing it.
func (q *Queue) Peek() (host.TaskID, bool) {
	if len(q.items.tasks) == 0 {
		return 0, false
	}
	return q.items.tasks[0], true
}

// Pop removes and returns the head of the queue.
func (q *Queue) Pop(ctx context.Context) (host.TaskID, bool) {
	if len(q.items.tasks) == 0 {
		return 0, false
	}
	q.items.ctx = ctx
	q.items.h = q.h
	return heap.Pop(&q.items).(host.TaskID), true
}

// Size returns the number of tasks currently queued.
func (q *Queue) Size() int {
	return len(q.items.tasks)
}

// taskHeap implements heap.Interface. Less re-queries the host on every
// comparison per package doc.
type taskHeap struct {
	tasks []host.TaskID
	h     host.Host
	ctx   context.Context
}

func (th *taskHeap) Len() int { return len(th.tasks) }

func (th *taskHeap) Less(i, j int) bool {
	a, b := th.tasks[i], th.tasks[j]
	aSLA, bSLA := th.h.RequiredSLA(th.ctx, a), th.h.RequiredSLA(th.ctx, b)
	if aSLA != bSLA {
		return aSLA < bSLA
	}
	aTC := th.h.TaskInfo(th.ctx, a).TargetCompletion
	bTC := th.h.TaskInfo(th.ctx, b).TargetCompletion
	if aTC != bTC {
		return aTC < bTC
	}
	return a < b
}

func (th *taskHeap) Swap(i, j int) { th.tasks[i], th.tasks[j] = th.tasks[j], th.tasks[i] }

func (th *taskHeap) Push(x interface{}) { th.tasks = append(th.tasks, x.(host.TaskID)) }

func (th *taskHeap) Pop() interface{} {
	old := th.tasks
	n := len(old)
	t := old[n-1]
	th.tasks = old[:n-1]
	return t
}
