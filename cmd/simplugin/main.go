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

// Command simplugin is a runnable anchor showing how a host binary wires
// the scheduler up; its only setting of its own is the -policy flag, which
// selects the policy to demo (klog's flags are registered as well). The real
// entrypoint, the simulator's time loop, and the bridge from C-style host
// callbacks into host.Host live in the hosting binary, out of scope here.
package main

import (
	"context"
	"flag"
	"os"

	"k8s.io/klog/v2"

	"github.com/cloudsim/ecosched/pkg/host"
	"github.com/cloudsim/ecosched/pkg/host/fake"
	"github.com/cloudsim/ecosched/pkg/scheduler"
)

func main() {
	klog.InitFlags(nil)
	policyFlag := flag.String("policy", string(scheduler.PolicyPMapper), "bad-eco or p-mapper")
	flag.Parse()

	ctx := context.Background()
	log := klog.Background()

	h := fake.NewHost()
	h.AddMachine(demoMachine())

	sched := scheduler.New(h, scheduler.Policy(*policyFlag), scheduler.WithLogger(log))
	sched.Init(ctx)

	log.Info("scheduler ready", "policy", *policyFlag, "queued", sched.QueueSize())
	os.Exit(0)
}

func demoMachine() host.MachineInfo {
	return host.MachineInfo{
		MemorySize:  16384,
		MemoryUsed:  0,
		NumCPUs:     8,
		PStates:     []uint64{200, 150, 100, 50},
		Performance: []uint64{1000, 800, 500, 200},
	}
}
