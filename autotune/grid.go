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

package autotune

import (
	"github.com/clblast-go/clblast/kflags"
	"github.com/clblast-go/clblast/subdim"
)

// xyValues and bwidthValues are the fixed powers-of-two grid
// candidate enumeration draws from.
var (
	xyValues     = []int{8, 16, 32, 64, 128}
	narrowValues = []int{1, 2, 4, 8} // level-2 functions' x-axis is narrower
	bwidthValues = []int{4, 8, 16, 32}
)

// EnumerateCandidates builds the full (l0.x, l0.y, l0.bwidth, l1.x, l1.y,
// l1.bwidth) grid for funcID, narrowing the outer X axis for level-2
// (vector-output) functions, whose per-row work is a dot product rather
// than a square tile.
func EnumerateCandidates(funcID kflags.FuncID) []Candidate {
	outerX := xyValues
	if !funcID.IsLevel3() {
		outerX = narrowValues
	}

	var out []Candidate
	for _, ox := range outerX {
		for _, oy := range xyValues {
			for _, obw := range bwidthValues {
				for _, ix := range itemDivisors(ox) {
					for _, iy := range itemDivisors(oy) {
						for _, ibw := range bwidthValues {
							if ibw > obw {
								continue
							}
							out = append(out, Candidate{
								Outer: subdim.SubproblemDim{X: ox, Y: oy, Bwidth: obw},
								Inner: subdim.SubproblemDim{ItemX: ix, ItemY: iy, Bwidth: ibw},
							})
						}
					}
				}
			}
		}
	}
	return out
}

// itemDivisors lists the per-thread item sizes worth trying for an outer
// tile of size outer: its own power-of-two divisors up to outer itself.
func itemDivisors(outer int) []int {
	var out []int
	for item := 1; item <= outer; item *= 2 {
		out = append(out, item)
	}
	return out
}
