// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package decompose

import "github.com/clblast-go/clblast/kflags"

// Decompose runs sharding and compound decomposition end to end: split
// args across queues by their compute-unit counts, then compound-decompose
// each
// non-null shard into its own Chain. Chains are independent of one
// another;
// compound decomposition only adds edges within a Chain.
func Decompose(funcID kflags.FuncID, args Args, cuShares []int) []Chain {
	shards := ShardQueues(funcID, args, cuShares)
	counter := 0
	chains := make([]Chain, 0, len(shards))
	for i, shard := range shards {
		if shard == nil {
			continue
		}
		chains = append(chains, Compound(funcID, *shard, i, &counter))
	}
	return chains
}
