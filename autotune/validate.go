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
	"github.com/clblast-go/clblast/pattern"
	"github.com/clblast-go/clblast/subdim"
)

// Valid decides whether a candidate is worth timing: if the pattern
// supplies CheckCalcDecomp, run it in Check mode; otherwise apply the
// generic validator.
func Valid(p pattern.Pattern, c Candidate, dtype kflags.DataType, wavefront, ldsBudget int) bool {
	dec := c.Decomposition(wavefront, wavefront*wavefront)
	if p.Ops.CheckCalcDecomp != nil {
		pgran := dec.PGran
		subdims := dec.Subdims
		return p.Ops.CheckCalcDecomp(&pgran, &subdims, dec.NrLevels, dtype, pattern.Check)
	}
	return genericValid(c, dtype, wavefront, ldsBudget)
}

// genericValid is the fallback validator:
// - bwidth >= 4*sizeof(F32)/sizeof(dtype)
// - wgX*wgY == wavefront
// - outer tile divides evenly by the inner per-thread tile
// - register pressure (l1.x*l1.bwidth + l1.y*l1.bwidth + l1.x*l1.y) *
// sizeof(dtype)/16 <= 64
// - LDS budget: twice the footprint of the 2 staged tiles (A and B) of
// outer.Y/X by outer.Bwidth, i.e. 2*Bwidth*(X+Y)*sizeof(dtype), fits in
// ldsBudget.
func genericValid(c Candidate, dtype kflags.DataType, wavefront, ldsBudget int) bool {
	elemSize := 4 * dtype.NrFloats()

	minBwidth := 4 * 4 / elemSize
	if minBwidth < 1 {
		minBwidth = 1
	}
	if c.Inner.Bwidth < minBwidth {
		return false
	}

	wgX := divOrOne(c.Outer.X, c.Inner.ItemX)
	wgY := divOrOne(c.Outer.Y, c.Inner.ItemY)
	if wgX*wgY != wavefront {
		return false
	}

	if c.Inner.ItemX > 0 && c.Outer.X%c.Inner.ItemX != 0 {
		return false
	}
	if c.Inner.ItemY > 0 && c.Outer.Y%c.Inner.ItemY != 0 {
		return false
	}

	pressure := (c.Inner.ItemX*c.Inner.Bwidth + c.Inner.ItemY*c.Inner.Bwidth + c.Inner.ItemX*c.Inner.ItemY) * elemSize / 16
	if pressure > 64 {
		return false
	}

	ldsBytes := 2 * c.Outer.Bwidth * (c.Outer.X + c.Outer.Y) * elemSize
	return ldsBytes <= ldsBudget
}

// IsFitToLDSFallback adapts Valid's LDS check into the subdim.PatternHooks
// shape, for patterns that want the generic estimate instead of their own.
func IsFitToLDSFallback(dtype kflags.DataType, ldsBudget int) func(subdim.Decomposition, kflags.DataType, int) bool {
	return func(dec subdim.Decomposition, _ kflags.DataType, budget int) bool {
		elemSize := 4 * dtype.NrFloats()
		ldsBytes := 2 * dec.Subdims[0].Bwidth * (dec.Subdims[0].X + dec.Subdims[0].Y) * elemSize
		return ldsBytes <= budget
	}
}
