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

// Package host defines the contract between the scheduler plug-in and the
// simulator that drives it. Everything here is consumed, never produced, by
// the scheduler: machine and VM primitives, task attributes, and the
// reporting surface queried at shutdown.
package host

import "context"

// MachineID is an opaque handle to a physical machine, assigned by the host.
type MachineID uint64

// VMID is an opaque handle to a virtual machine created by the scheduler.
type VMID uint64

// TaskID is an opaque handle to a task, assigned by the host.
type TaskID uint64

// CPUType distinguishes machine/task CPU architectures. Opaque beyond
// equality; the host assigns the concrete values.
type CPUType uint32

// VMType selects a VM flavor understood by the host. Opaque beyond identity.
type VMType uint32

// SState is a machine sleep depth. S0 is fully on; higher values are deeper
// sleep, S5 is the deepest.
type SState int

const (
	S0 SState = iota
	S1
	S2
	S3
	S4
	S5
)

// String renders the S-state the way SimOutput-style diagnostics expect.
func (s SState) String() string {
	if s < S0 || s > S5 {
		return "Sinvalid"
	}
	return [...]string{"S0", "S1", "S2", "S3", "S4", "S5"}[s]
}

// PState is a CPU performance level. P0 is the highest clock/power point;
// higher indices trade performance for power.
type PState int

const (
	P0 PState = iota
)

// SLA is a service-level tier. SLA0 is strictest, SLA3 loosest.
type SLA int

const (
	SLA0 SLA = iota
	SLA1
	SLA2
	SLA3
)

// Priority is the VM-level priority a task is attached with.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityMid
	PriorityLow
)

// SimTime is a simulated timestamp, in the host's native time unit
// (microseconds in the reference simulator).
type SimTime int64

// MachineInfo is a snapshot of a machine's current attributes. The scheduler
// never caches this; it is re-queried from the host on every decision.
type MachineInfo struct {
	CPU         CPUType
	MemorySize  uint64
	MemoryUsed  uint64
	NumCPUs     uint
	ActiveVMs   uint
	ActiveTasks uint
	SState      SState
	PState      PState
	// PStates[i] is the power draw at PState(i); Performance[i] is the
	// corresponding performance figure. Both are indexed in parallel.
	PStates     []uint64
	Performance []uint64
}

// TaskInfo is a snapshot of a task's scheduling-relevant attributes.
type TaskInfo struct {
	TargetCompletion SimTime
}

// VMInfo is a snapshot of a VM's attachment state.
type VMInfo struct {
	ActiveTasks []TaskID
}

// Host is the simulator-facing surface the scheduler drives. A real
// implementation bridges these calls to the simulator; pkg/host/fake
// provides an in-memory implementation for tests.
type Host interface {
	MachineCount(ctx context.Context) uint
	MachineInfo(ctx context.Context, m MachineID) MachineInfo
	SetState(ctx context.Context, m MachineID, s SState) error
	SetCorePerformance(ctx context.Context, m MachineID, core uint, p PState) error
	ClusterEnergy(ctx context.Context) float64

	CreateVM(ctx context.Context, vmType VMType, cpu CPUType) VMID
	AttachVM(ctx context.Context, vm VMID, m MachineID) error
	AddTask(ctx context.Context, vm VMID, task TaskID, priority Priority) error
	ShutdownVM(ctx context.Context, vm VMID) error
	VMInfo(ctx context.Context, vm VMID) VMInfo
	MigrateVM(ctx context.Context, vm VMID, m MachineID) error

	TaskInfo(ctx context.Context, t TaskID) TaskInfo
	RequiredSLA(ctx context.Context, t TaskID) SLA
	RequiredVMType(ctx context.Context, t TaskID) VMType
	RequiredCPUType(ctx context.Context, t TaskID) CPUType
	TaskMemory(ctx context.Context, t TaskID) uint64
	IsTaskGPUCapable(ctx context.Context, t TaskID) bool
	NumTasks(ctx context.Context) uint

	SLAReport(ctx context.Context, class SLA) float64
}
