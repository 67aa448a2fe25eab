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

// Package autotune implements C8, the offline autotuner: candidate grid
// enumeration, a generic or pattern-supplied validator, a weighted-group
// estimator that prunes the search under a candidate budget, and winner
// writeback to the persistent store. It drives the real
// device runtime through a caller-supplied Runner, the same external
// collaborator boundary package solve's kernel generation crosses.
package autotune

import (
	"github.com/clblast-go/clblast/kflags"
	"github.com/clblast-go/clblast/subdim"
)

// Candidate is one point in the (l0.x, l0.y, l0.bwidth, l1.x, l1.y,
// l1.bwidth) search grid: an outer (work-group)
// tile and an inner (per-thread) tile.
type Candidate struct {
	Outer subdim.SubproblemDim // Y, X, Bwidth populated; ItemX/ItemY unused
	Inner subdim.SubproblemDim // ItemX, ItemY, Bwidth populated; Y/X unused
}

// Decomposition adapts a Candidate into the subdim.Decomposition shape
// GenKernel/CheckCalcDecomp/IsFitToLDS expect, deriving the work-group
// shape from outer-tile-size / per-thread-item-size.
func (c Candidate) Decomposition(wavefront, maxWGSize int) subdim.Decomposition {
	wgX := divOrOne(c.Outer.X, c.Inner.ItemX)
	wgY := divOrOne(c.Outer.Y, c.Inner.ItemY)
	return subdim.Decomposition{
		NrLevels: 2,
		Subdims:  [subdim.MaxSubdims]subdim.SubproblemDim{c.Outer, c.Inner},
		PGran: subdim.PGranularity{
			WgDim: 2, WgSize: [2]int{wgX, wgY},
			WavefrontSize: wavefront, MaxWorkGroupSize: maxWGSize,
		},
	}
}

func divOrOne(total, item int) int {
	if item <= 0 {
		return 1
	}
	return total / item
}

// Result is one completed, timed candidate.
type Result struct {
	Candidate Candidate
	BestTime  float64 // seconds, lowest of the repeated runs
}

// Runner drives the out-of-scope device runtime: compiling and running one
// candidate's kernel on a problem of the given dimension bucket, returning
// its wall-clock time. Tests and the clblast-tune CLI's compile-check runner
// supply a synthetic Runner; a real build would wire this to an actual
// NDRange dispatch.
type Runner func(funcID kflags.FuncID, patternName string, dec subdim.Decomposition, dtype kflags.DataType, flags kflags.Flags, bucket int) (seconds float64, err error)

// CompileFn produces a winning candidate's compiled kernel binary so
// Options.StoreKernels can persist it alongside the granulation. A nil
// CompileFn disables binary storage even when requested.
type CompileFn func(funcID kflags.FuncID, patternName string, dec subdim.Decomposition, dtype kflags.DataType, flags kflags.Flags) ([]byte, error)

// RepeatsFor returns how many timed repeats a candidate gets; bandwidth-
// bound level-2 runs are noisier and get more.
func RepeatsFor(funcID kflags.FuncID) int {
	if funcID == kflags.FuncGEMV || funcID == kflags.FuncSYMV {
		return 5
	}
	return 3
}
