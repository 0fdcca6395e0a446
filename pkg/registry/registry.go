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

// Package registry holds the scheduler's own view of the machine fleet: the
// full machine list and the pending-state map, shared by both policies.
package registry

import "github.com/cloudsim/ecosched/pkg/host"

// PendingStates tracks the last S-state requested for each machine. It is
// the scheduler's authoritative view of a machine's target state, which may
// lead what the host has actually confirmed.
type PendingStates struct {
	states map[host.MachineID]host.SState
}

// NewPendingStates returns a PendingStates with every machine initialized
// to S0, per Init's contract.
func NewPendingStates(machines []host.MachineID) *PendingStates {
	states := make(map[host.MachineID]host.SState, len(machines))
	for _, m := range machines {
		states[m] = host.S0
	}
	return &PendingStates{states: states}
}

// Get returns the pending state for m, or S0 if none has been requested.
func (p *PendingStates) Get(m host.MachineID) host.SState {
	return p.states[m]
}

// Set records that s was just requested for m.
func (p *PendingStates) Set(m host.MachineID, s host.SState) {
	p.states[m] = s
}

// Registry is the ordered list of every machine handle the host reported at
// Init.
type Registry struct {
	Machines []host.MachineID
}

// New returns a Registry holding a copy of machines, the handles the host
// reported at Init.
func New(machines []host.MachineID) *Registry {
	return &Registry{Machines: append([]host.MachineID(nil), machines...)}
}
