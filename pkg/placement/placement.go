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

// Package placement holds the machine-eligibility test and priority mapping
// shared by both scheduling policies. The iteration order over eligible
// machines, and what happens when none fit, is policy-specific and lives in
// pkg/power/badeco and pkg/power/pmapper.
package placement

import "github.com/cloudsim/ecosched/pkg/host"

// VMOverhead is the default fixed per-VM bookkeeping memory reservation
// applied during fit checks, overridable via scheduler.WithVMOverhead.
const VMOverhead uint64 = 8

// Fits reports whether a machine with the given snapshot can host a task
// requiring reqCPU and reqMemory, reserving overhead bytes of bookkeeping
// memory per VM (pass placement.VMOverhead for the source-observed
// default). The VM-density cap is strict: a machine already at exactly
// NumCPUs active VMs is still eligible; only exceeding it disqualifies the
// machine.
func Fits(info host.MachineInfo, reqCPU host.CPUType, reqMemory, overhead uint64) bool {
	if info.CPU != reqCPU {
		return false
	}
	memRemaining := int64(info.MemorySize) - int64(info.MemoryUsed)
	if memRemaining-int64(reqMemory)-int64(overhead) < 0 {
		return false
	}
	if info.ActiveVMs > info.NumCPUs {
		return false
	}
	return true
}

// PriorityFor maps a task's SLA class to the VM priority it is attached
// with: SLA0 gets HIGH, SLA3 gets LOW, everything else is MID.
func PriorityFor(sla host.SLA) host.Priority {
	switch sla {
	case host.SLA0:
		return host.PriorityHigh
	case host.SLA3:
		return host.PriorityLow
	default:
		return host.PriorityMid
	}
}
