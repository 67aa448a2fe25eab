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

import (
	"github.com/clblast-go/clblast/kflags"
	"github.com/clblast-go/clblast/subdim"
)

// DetectOffsetFlags derives the OFFSET_NOT_ZERO half of a step's
// post-decomposition flags: it reads the
// step's final offsets, which are only meaningful once queue sharding and
// compound decomposition (including GEMM's offset fold) have both run.
func DetectOffsetFlags(a Args) kflags.Flags {
	var f kflags.Flags
	if a.OffsetM != 0 {
		f = f.Set(kflags.StartMNotZero)
	}
	if a.OffsetN != 0 {
		f = f.Set(kflags.StartNNotZero)
	}
	if a.OffA != 0 {
		f = f.Set(kflags.AOffNotZero)
	}
	if a.OffBX != 0 {
		f = f.Set(kflags.BXOffNotZero)
	}
	if a.OffCY != 0 {
		f = f.Set(kflags.CYOffNotZero)
	}
	return f
}

// DetectFlags combines subdim.TailFlags (the TAILS_* bits, which need the
// granulation chooser's output) with DetectOffsetFlags into the complete
// post-decomposition flag set for a step.
func DetectFlags(dec subdim.Decomposition, a Args) kflags.Flags {
	return subdim.TailFlags(dec, a.M, a.N, a.K) | DetectOffsetFlags(a)
}
