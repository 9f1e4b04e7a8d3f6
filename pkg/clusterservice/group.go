// Copyright 2024 BitSort Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package clusterservice

import (
	"github.com/bitsort/bitsort/pkg/common/bserr"
	"github.com/bitsort/bitsort/pkg/sort/bitonic"
)

// ShrinkStrategy controls what happens to ranks that fall out of the active
// group as merge rounds double the block size.
type ShrinkStrategy string

const (
	// ShrinkTerminate shuts idle ranks down as soon as they leave the
	// active group. The group shrinks with the round structure.
	ShrinkTerminate = ShrinkStrategy("terminate")
	// ShrinkWait keeps all ranks up for the whole job. Idle ranks receive a
	// wait request each round and acknowledge it, and every rank is
	// terminated after the final round.
	ShrinkWait = ShrinkStrategy("wait")
)

// ParseShrinkStrategy validates a strategy name from configuration.
func ParseShrinkStrategy(value string) (ShrinkStrategy, error) {
	switch ShrinkStrategy(value) {
	case ShrinkTerminate:
		return ShrinkTerminate, nil
	case ShrinkWait:
		return ShrinkWait, nil
	default:
		return "", bserr.NewBadConfig("unknown shrink strategy %q", value)
	}
}

// roundPlan describes one round of the distributed sort: which ranks
// participate, the block each one owns and the direction it works in.
type roundPlan struct {
	method Method
	count  int
	blocks []blockAssignment
}

type blockAssignment struct {
	rank      int
	low       int
	ascending bool
}

// planRounds lays out the whole job for an array of n elements over the
// given number of ranks: one sort round over blocks of n/ranks elements,
// then merge rounds doubling the block size until a single block spans the
// array. The active group of a merge round with block size count is the
// lowest n/count ranks.
func planRounds(n, ranks int, ascending bool) []roundPlan {
	count := n / ranks
	plans := make([]roundPlan, 0, 1+bitonicRounds(ranks))

	sortPlan := roundPlan{method: MethodSort, count: count}
	for i := 0; i < ranks; i++ {
		sortPlan.blocks = append(sortPlan.blocks, blockAssignment{
			rank:      i,
			low:       i * count,
			ascending: bitonic.SubDirection(i, ascending),
		})
	}
	plans = append(plans, sortPlan)

	for count *= 2; count <= n; count *= 2 {
		plan := roundPlan{method: MethodMerge, count: count}
		for i := 0; i < n/count; i++ {
			plan.blocks = append(plan.blocks, blockAssignment{
				rank:      i,
				low:       i * count,
				ascending: bitonic.SubDirection(i, ascending),
			})
		}
		plans = append(plans, plan)
	}
	return plans
}

func bitonicRounds(ranks int) int {
	rounds := 0
	for ranks > 1 {
		ranks /= 2
		rounds++
	}
	return rounds
}
