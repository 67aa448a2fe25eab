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

package pattern

import (
	"os"
	"strconv"

	"github.com/clblast-go/clblast/kflags"
	"github.com/samber/lo"
)

// NonePattern is the "no override" sentinel for a registry's defaultPattern.
const NonePattern = -1

// solvers holds one entry per kflags.FuncID: the registered pattern list, in
// priority order, plus an optional forced default.
type solvers struct {
	patterns       []Pattern
	defaultPattern int
}

// Registry is the process-wide table populated once at library init and
// read-only afterwards. The zero value is ready to use.
type Registry struct {
	byFunc map[kflags.FuncID]*solvers
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byFunc: make(map[kflags.FuncID]*solvers)}
}

// Register appends p to funcID's pattern list, in priority (registration)
// order. Registering TRSM pattern 3 is deliberately never done by this
// repository's builtin set; Register itself places no such restriction on
// callers.
func (r *Registry) Register(funcID kflags.FuncID, p Pattern) {
	if r.byFunc == nil {
		r.byFunc = make(map[kflags.FuncID]*solvers)
	}
	s, ok := r.byFunc[funcID]
	if !ok {
		s = &solvers{defaultPattern: NonePattern}
		r.byFunc[funcID] = s
	}
	s.patterns = append(s.patterns, p)
}

// SetDefaultPattern forces all selection for funcID to return the pattern at
// index idx, bypassing scoring. Also the mechanism behind the
// AMD_CLBLAS_{GEMM,TRMM,TRSM}_IMPLEMENTATION environment variables.
func (r *Registry) SetDefaultPattern(funcID kflags.FuncID, idx int) {
	if s, ok := r.byFunc[funcID]; ok {
		s.defaultPattern = idx
	}
}

// NumPatterns returns the number of patterns registered for funcID. The
// builtin TRSM registration stops at 2 patterns (the historically deprecated
// third one is never ported), so NumPatterns(TRSM) == 2 without any
// special-case here.
func (r *Registry) NumPatterns(funcID kflags.FuncID) int {
	if s, ok := r.byFunc[funcID]; ok {
		return len(s.patterns)
	}
	return 0
}

// Patterns returns funcID's registered patterns in priority order.
func (r *Registry) Patterns(funcID kflags.FuncID) []Pattern {
	if s, ok := r.byFunc[funcID]; ok {
		return s.patterns
	}
	return nil
}

// envOverrides maps each pattern-forcing environment variable onto the
// function family it pins.
var envOverrides = map[string]kflags.FuncID{
	"AMD_CLBLAS_GEMM_IMPLEMENTATION": kflags.FuncGEMM,
	"AMD_CLBLAS_TRMM_IMPLEMENTATION": kflags.FuncTRMM,
	"AMD_CLBLAS_TRSM_IMPLEMENTATION": kflags.FuncTRSM,
}

// ApplyEnvOverrides pins a function's default pattern from the environment:
// AMD_CLBLAS_GEMM_IMPLEMENTATION=1 forces every GEMM selection to pattern
// index 1, and analogously for TRMM and TRSM. Non-numeric or out-of-range
// values are ignored.
func (r *Registry) ApplyEnvOverrides() {
	for name, fn := range envOverrides {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		idx, err := strconv.Atoi(v)
		if err != nil || idx < 0 || idx >= r.NumPatterns(fn) {
			continue
		}
		r.SetDefaultPattern(fn, idx)
	}
}

// SelectArgs is the subset of a call's flags/shape the selector needs to
// score candidate patterns and evaluate image-budget fit.
type SelectArgs struct {
	Flags             kflags.Flags
	M, N, K           int
	MaxImages         int
	ImagesUnsupported bool
	QueueOutOfOrder   bool
}

// legacyCacheScore is the legacy scorer's per-operand contribution:
// "not-cached:0, cached-in-image:2, cached-not-in-image:3".
func legacyCacheScore(tier MemTier) int {
	switch tier {
	case TierImage:
		return 2
	case TierLDS, TierL1, TierL2:
		return 3
	default:
		return 0
	}
}

// imageDemand is the number of scratch images a pattern's extra tiers
// require (one per operand cached in an image).
func imageDemand(e Extra) int {
	n := 0
	if e.MobjA == TierImage {
		n++
	}
	if e.MobjB == TierImage {
		n++
	}
	return n
}

// Select picks funcID's pattern for a problem: forced default first;
// else, if every registered pattern for funcID supplies GetPatternPerf,
// highest scorer wins; else the legacy image-budget-aware cache scorer,
// ties broken by lowest index. Returns (NonePattern, false) if funcID has no
// registered patterns or every candidate is disqualified.
func (r *Registry) Select(funcID kflags.FuncID, args SelectArgs) (int, bool) {
	s, ok := r.byFunc[funcID]
	if !ok || len(s.patterns) == 0 {
		return NonePattern, false
	}
	if s.defaultPattern != NonePattern {
		return s.defaultPattern, true
	}

	allScored := lo.EveryBy(s.patterns, func(p Pattern) bool { return p.Ops.GetPatternPerf != nil })
	if allScored {
		type scored struct {
			idx   int
			score int
		}
		candidates := lo.FilterMap(s.patterns, func(p Pattern, idx int) (scored, bool) {
			sc := p.Ops.GetPatternPerf(args.Flags, args.M, args.N, args.K)
			return scored{idx: idx, score: sc}, sc >= 0
		})
		if len(candidates) == 0 {
			return NonePattern, false
		}
		best := candidates[0]
		for _, c := range candidates[1:] {
			if c.score > best.score {
				best = c
			}
		}
		return best.idx, true
	}

	imageBudget := args.MaxImages
	if args.ImagesUnsupported || args.QueueOutOfOrder {
		imageBudget = 0
	}
	type scored struct {
		idx   int
		score int
	}
	candidates := lo.FilterMap(s.patterns, func(p Pattern, idx int) (scored, bool) {
		if imageDemand(p.Extra) > imageBudget {
			return scored{}, false
		}
		sc := legacyCacheScore(p.Extra.MobjA) + legacyCacheScore(p.Extra.MobjB)
		return scored{idx: idx, score: sc}, true
	})
	if len(candidates) == 0 {
		return NonePattern, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.score > best.score {
			best = c
		}
	}
	return best.idx, true
}
