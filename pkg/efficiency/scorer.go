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

// Package efficiency scores machines by steady-state performance-per-power
// at P0, for Policy P's greedy-pack-most-efficient-first ordering.
package efficiency

import (
	"context"
	"sort"

	"github.com/cloudsim/ecosched/pkg/host"
)

// Score returns performance[P0] / power[P0] for a machine's info snapshot.
// Higher is more efficient.
func Score(info host.MachineInfo) float64 {
	return float64(info.Performance[host.P0]) / float64(info.PStates[host.P0])
}

// Rank returns machines sorted by descending Score, ties broken by
// ascending machine ID for determinism. Computed once; callers own keeping
// the result static, per the assumption that host machine characteristics
// do not change over a run.
func Rank(ctx context.Context, h host.Host, machines []host.MachineID) []host.MachineID {
	ranked := append([]host.MachineID(nil), machines...)
	scores := make(map[host.MachineID]float64, len(machines))
	for _, m := range machines {
		scores[m] = Score(h.MachineInfo(ctx, m))
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := scores[ranked[i]], scores[ranked[j]]
		if si != sj {
			return si > sj
		}
		return ranked[i] < ranked[j]
	})
	return ranked
}
