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

// Vectorization is the per-operand vector width plus the NO_COPY_VEC bits
// the vectorization-selection step produces.
type Vectorization struct {
	VecLenA, VecLenB, VecLenC int
	VecLen                    int
	Flags                     kflags.Flags
}

// float4Lanes is sizeof(float4)/sizeof(F32) — the starting vector width
// before it is halved down to one that divides the relevant dimensions.
const float4Lanes = 4

// SelectVectorization picks one operand's vector width. If usesLDS, a
// fixed float4-equivalent width applies. Otherwise the width starts at
// sizeof(float4)/sizeof(dtype) elements, doubled for level-3 functions,
// and is halved until it divides the operand's element offset and the tile
// edge it spans. A leading dimension the chosen width doesn't divide
// reports noCopy, which the caller turns into the operand's NO_COPY_VEC
// bit: the generated kernel then loads that operand element-wise instead
// of with vector loads.
func SelectVectorization(dtype kflags.DataType, isLevel3, usesLDS bool, ld, off, tileEdge int) (vecLen int, noCopy bool) {
	start := float4Lanes / dtype.NrFloats()
	if start < 1 {
		start = 1
	}
	if usesLDS {
		return start, false
	}
	if isLevel3 {
		start *= 2
	}
	w := start
	for w > 1 {
		offOK := off == 0 || off%w == 0
		edgeOK := tileEdge == 0 || tileEdge%w == 0
		if offOK && edgeOK {
			break
		}
		w /= 2
	}
	noCopy = w > 1 && ld != 0 && ld%w != 0
	return w, noCopy
}

// SelectStepVectorization derives vecLenA/B/C (and the matching
// NO_COPY_VEC_{A,B,C} flags) for one step, then takes the overall vecLen as
// their minimum.
func SelectStepVectorization(a Args, funcID kflags.FuncID, usesLDS bool, tileEdgeA, tileEdgeB, tileEdgeC int) Vectorization {
	isLevel3 := funcID.IsLevel3()
	vecA, noA := SelectVectorization(a.Dtype, isLevel3, usesLDS, a.LDA, a.OffA, tileEdgeA)
	vecB, noB := SelectVectorization(a.Dtype, isLevel3, usesLDS, a.LDB, a.OffBX, tileEdgeB)
	vecC, noC := SelectVectorization(a.Dtype, isLevel3, usesLDS, a.LDC, a.OffCY, tileEdgeC)

	v := Vectorization{VecLenA: vecA, VecLenB: vecB, VecLenC: vecC}
	v.VecLen = vecA
	if vecB < v.VecLen {
		v.VecLen = vecB
	}
	if vecC < v.VecLen {
		v.VecLen = vecC
	}
	if noA {
		v.Flags = v.Flags.Set(kflags.NoCopyVecA)
	}
	if noB {
		v.Flags = v.Flags.Set(kflags.NoCopyVecB)
	}
	if noC {
		v.Flags = v.Flags.Set(kflags.NoCopyVecC)
	}
	return v
}
