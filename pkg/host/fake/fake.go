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

// Package fake is an in-memory implementation of host.Host for tests. It
// tracks every call made against it so specs can assert on scheduler
// behavior without a real simulator.
package fake

import (
	"context"
	"sync"

	"github.com/samber/lo"

	"github.com/cloudsim/ecosched/pkg/host"
)

// Task is the fixture shape used to seed tasks into a Host.
type Task struct {
	SLA              host.SLA
	VMType           host.VMType
	CPU              host.CPUType
	Memory           uint64
	TargetCompletion host.SimTime
	GPUCapable       bool
}

type vmRecord struct {
	machine host.MachineID
	cpu     host.CPUType
	vmType  host.VMType
	tasks   []host.TaskID
}

// SetStateCall records one SetState invocation.
type SetStateCall struct {
	Machine host.MachineID
	State   host.SState
}

// SetCorePerformanceCall records one SetCorePerformance invocation.
type SetCorePerformanceCall struct {
	Machine host.MachineID
	Core    uint
	PState  host.PState
}

// CreateVMCall records one CreateVM invocation.
type CreateVMCall struct {
	VMType host.VMType
	CPU    host.CPUType
}

// AttachVMCall records one AttachVM invocation.
type AttachVMCall struct {
	VM      host.VMID
	Machine host.MachineID
}

// AddTaskCall records one AddTask invocation.
type AddTaskCall struct {
	VM       host.VMID
	Task     host.TaskID
	Priority host.Priority
}

// MigrateVMCall records one MigrateVM invocation.
type MigrateVMCall struct {
	VM      host.VMID
	Machine host.MachineID
}

// Host is a mutex-guarded, in-memory host.Host. Zero value is not usable;
// construct with NewHost.
type Host struct {
	mu sync.Mutex

	machines     []host.MachineID
	machineInfos map[host.MachineID]host.MachineInfo
	tasks        map[host.TaskID]Task
	vms          map[host.VMID]*vmRecord
	nextVMID     host.VMID

	clusterEnergy float64
	slaReports    map[host.SLA]float64

	SetStateCalls           []SetStateCall
	SetCorePerformanceCalls []SetCorePerformanceCall
	CreateVMCalls           []CreateVMCall
	AttachVMCalls           []AttachVMCall
	AddTaskCalls            []AddTaskCall
	ShutdownVMCalls         []host.VMID
	MigrateVMCalls          []MigrateVMCall

	// NextXErr, when non-nil, is returned (and cleared) by the next call to
	// the matching method, the same injectable-error convention the
	// teacher's fake cloud provider uses.
	NextSetStateErr           error
	NextSetCorePerformanceErr error
	NextAttachErr             error
	NextAddTaskErr            error
	NextShutdownErr           error
	NextMigrateErr            error
}

// NewHost returns an empty Host ready to be seeded via AddMachine/AddTask.
func NewHost() *Host {
	h := &Host{}
	h.Reset()
	return h
}

// Reset clears all fixtures, calls, and injected errors. Intended for
// BeforeEach.
func (h *Host) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.machines = nil
	h.machineInfos = map[host.MachineID]host.MachineInfo{}
	h.tasks = map[host.TaskID]Task{}
	h.vms = map[host.VMID]*vmRecord{}
	h.nextVMID = 0
	h.clusterEnergy = 0
	h.slaReports = map[host.SLA]float64{}

	h.SetStateCalls = nil
	h.SetCorePerformanceCalls = nil
	h.CreateVMCalls = nil
	h.AttachVMCalls = nil
	h.AddTaskCalls = nil
	h.ShutdownVMCalls = nil
	h.MigrateVMCalls = nil

	h.NextSetStateErr = nil
	h.NextSetCorePerformanceErr = nil
	h.NextAttachErr = nil
	h.NextAddTaskErr = nil
	h.NextShutdownErr = nil
	h.NextMigrateErr = nil
}

// AddMachine seeds a machine with the given static attributes and returns
// its assigned ID. ActiveVMs/ActiveTasks in info are ignored; they are
// always derived live from attached VMs.
func (h *Host) AddMachine(info host.MachineInfo) host.MachineID {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := host.MachineID(len(h.machines))
	h.machines = append(h.machines, id)
	h.machineInfos[id] = info
	return id
}

// SeedTask seeds a task fixture and returns its assigned ID.
func (h *Host) SeedTask(t Task) host.TaskID {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := host.TaskID(len(h.tasks))
	h.tasks[id] = t
	return id
}

// SetClusterEnergy sets the value ClusterEnergy will report.
func (h *Host) SetClusterEnergy(kwh float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clusterEnergy = kwh
}

// SetSLAReport sets the compliance percentage SLAReport will report for a
// class.
func (h *Host) SetSLAReport(class host.SLA, percentage float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.slaReports[class] = percentage
}

// CompleteTask simulates a task finishing: it is removed from the VM's
// active-task list so the next VMInfo call reflects completion.
func (h *Host) CompleteTask(vm host.VMID, task host.TaskID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.vms[vm]
	if !ok {
		return
	}
	v.tasks = lo.Reject(v.tasks, func(t host.TaskID, _ int) bool { return t == task })
}

// VMsOn returns the VM IDs currently attached to a machine, for assertions.
func (h *Host) VMsOn(m host.MachineID) []host.VMID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return lo.FilterMap(lo.Keys(h.vms), func(id host.VMID, _ int) (host.VMID, bool) {
		return id, h.vms[id].machine == m
	})
}

func (h *Host) countLocked(m host.MachineID) (vms uint, tasks uint) {
	for _, v := range h.vms {
		if v.machine == m {
			vms++
			tasks += uint(len(v.tasks))
		}
	}
	return
}

func (h *Host) MachineCount(context.Context) uint {
	h.mu.Lock()
	defer h.mu.Unlock()
	return uint(len(h.machines))
}

func (h *Host) MachineInfo(_ context.Context, m host.MachineID) host.MachineInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	info := h.machineInfos[m]
	info.ActiveVMs, info.ActiveTasks = h.countLocked(m)
	return info
}

func (h *Host) SetState(_ context.Context, m host.MachineID, s host.SState) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.SetStateCalls = append(h.SetStateCalls, SetStateCall{Machine: m, State: s})
	if h.NextSetStateErr != nil {
		err := h.NextSetStateErr
		h.NextSetStateErr = nil
		return err
	}
	info := h.machineInfos[m]
	info.SState = s
	h.machineInfos[m] = info
	return nil
}

func (h *Host) SetCorePerformance(_ context.Context, m host.MachineID, core uint, p host.PState) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.SetCorePerformanceCalls = append(h.SetCorePerformanceCalls, SetCorePerformanceCall{Machine: m, Core: core, PState: p})
	if h.NextSetCorePerformanceErr != nil {
		err := h.NextSetCorePerformanceErr
		h.NextSetCorePerformanceErr = nil
		return err
	}
	info := h.machineInfos[m]
	info.PState = p
	h.machineInfos[m] = info
	return nil
}

func (h *Host) ClusterEnergy(context.Context) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clusterEnergy
}

func (h *Host) CreateVM(_ context.Context, vmType host.VMType, cpu host.CPUType) host.VMID {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.CreateVMCalls = append(h.CreateVMCalls, CreateVMCall{VMType: vmType, CPU: cpu})
	id := h.nextVMID
	h.nextVMID++
	h.vms[id] = &vmRecord{cpu: cpu, vmType: vmType}
	return id
}

func (h *Host) AttachVM(_ context.Context, vm host.VMID, m host.MachineID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.AttachVMCalls = append(h.AttachVMCalls, AttachVMCall{VM: vm, Machine: m})
	if h.NextAttachErr != nil {
		err := h.NextAttachErr
		h.NextAttachErr = nil
		return err
	}
	h.vms[vm].machine = m
	return nil
}

func (h *Host) AddTask(_ context.Context, vm host.VMID, task host.TaskID, priority host.Priority) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.AddTaskCalls = append(h.AddTaskCalls, AddTaskCall{VM: vm, Task: task, Priority: priority})
	if h.NextAddTaskErr != nil {
		err := h.NextAddTaskErr
		h.NextAddTaskErr = nil
		return err
	}
	h.vms[vm].tasks = append(h.vms[vm].tasks, task)
	return nil
}

func (h *Host) ShutdownVM(_ context.Context, vm host.VMID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ShutdownVMCalls = append(h.ShutdownVMCalls, vm)
	if h.NextShutdownErr != nil {
		err := h.NextShutdownErr
		h.NextShutdownErr = nil
		return err
	}
	delete(h.vms, vm)
	return nil
}

func (h *Host) VMInfo(_ context.Context, vm host.VMID) host.VMInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.vms[vm]
	if !ok {
		return host.VMInfo{}
	}
	return host.VMInfo{ActiveTasks: append([]host.TaskID(nil), v.tasks...)}
}

func (h *Host) MigrateVM(_ context.Context, vm host.VMID, m host.MachineID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.MigrateVMCalls = append(h.MigrateVMCalls, MigrateVMCall{VM: vm, Machine: m})
	if h.NextMigrateErr != nil {
		err := h.NextMigrateErr
		h.NextMigrateErr = nil
		return err
	}
	h.vms[vm].machine = m
	return nil
}

func (h *Host) TaskInfo(_ context.Context, t host.TaskID) host.TaskInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return host.TaskInfo{TargetCompletion: h.tasks[t].TargetCompletion}
}

func (h *Host) RequiredSLA(_ context.Context, t host.TaskID) host.SLA {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tasks[t].SLA
}

func (h *Host) RequiredVMType(_ context.Context, t host.TaskID) host.VMType {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tasks[t].VMType
}

func (h *Host) RequiredCPUType(_ context.Context, t host.TaskID) host.CPUType {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tasks[t].CPU
}

func (h *Host) TaskMemory(_ context.Context, t host.TaskID) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tasks[t].Memory
}

func (h *Host) IsTaskGPUCapable(_ context.Context, t host.TaskID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tasks[t].GPUCapable
}

func (h *Host) NumTasks(context.Context) uint {
	h.mu.Lock()
	defer h.mu.Unlock()
	return uint(len(h.tasks))
}

func (h *Host) SLAReport(_ context.Context, class host.SLA) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.slaReports[class]
}

var _ host.Host = (*Host)(nil)
