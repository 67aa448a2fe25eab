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

package subdim

import "github.com/clblast-go/clblast/kflags"

// BuiltinDefault is the built-in default granulation policy: the
// fallback used when neither the persistent store nor the pattern's
// GetDefaultDecomp supply a decomposition.
func BuiltinDefault(funcID kflags.FuncID, dtype kflags.DataType, hooks PatternHooks, limits DeviceLimits, m, n, k int) Decomposition {
	nrFloats := dtype.NrFloats()

	var outer SubproblemDim
	var wgX, wgY int

	if hooks.WantsSquareBlocks {
		side := 32
		if dtype == kflags.C64 {
			side = 16
		}
		outer = SubproblemDim{Y: side, X: side, Bwidth: side}
		wgX, wgY = 8, 8
	} else {
		outerX, outerY := 32, 32
		if hooks.ImageOrColMajorA || hooks.ImageOrColMajorB {
			scale := 64 / nrFloats
			if scale < 1 {
				scale = 1
			}
			outerX = scale
			outerY = scale
		}
		bcoeff := 1
		if dtype == kflags.C64 {
			bcoeff = 2
		}
		bwidth := 16 / bcoeff
		if bwidth < 1 {
			bwidth = 1
		}
		outer = SubproblemDim{Y: outerY, X: outerX, Bwidth: bwidth}
		wgX, wgY = 8, 8
	}

	// Round-robin halving over {X, Y, BWIDTH} against half the device's LDS
	// budget, with a floor keeping bwidth*dtype_size >= 16 bytes.
	ldsBudget := limits.LDSSize / 2
	elemSize := elementSizeBytes(dtype)
	axis := 0
	for iterations := 0; iterations < 64; iterations++ {
		dec := Decomposition{
			NrLevels: 2,
			Subdims:  [MaxSubdims]SubproblemDim{outer},
			PGran: PGranularity{
				WgDim:            2,
				WgSize:           [2]int{wgX, wgY},
				WavefrontSize:    limits.WavefrontSize,
				MaxWorkGroupSize: limits.MaxWorkGroupSize,
			},
		}
		if hooks.IsFitToLDS == nil || hooks.IsFitToLDS(dec, dtype, ldsBudget) {
			break
		}
		switch axis % 3 {
		case 0:
			if outer.X > 1 {
				outer.X /= 2
			}
		case 1:
			if outer.Y > 1 {
				outer.Y /= 2
			}
		case 2:
			if outer.Bwidth*elemSize > 16 {
				outer.Bwidth /= 2
			}
		}
		axis++
	}

	dec := Decomposition{
		NrLevels: 2,
		Subdims:  [MaxSubdims]SubproblemDim{outer},
		PGran: PGranularity{
			WgDim:            2,
			WgSize:           [2]int{wgX, wgY},
			WavefrontSize:    limits.WavefrontSize,
			MaxWorkGroupSize: limits.MaxWorkGroupSize,
		},
	}

	inner := SubproblemDim{}
	if wgX > 0 {
		inner.ItemX = outer.X / wgX
	}
	if wgY > 0 {
		inner.ItemY = outer.Y / wgY
	}
	// subdims[1].bwidth = min(fixedBw ? 4 : 8/nrFloats, subdims[0].bwidth),
	// where fixedBw is true exactly when the outer tile's X/Y came from the
	// 64/nrFloats image/col-major branch above, not from a dtype check.
	imageOrColMajor := hooks.ImageOrColMajorA || hooks.ImageOrColMajorB
	innerBw := 8 / nrFloats
	if imageOrColMajor {
		innerBw = 4
	}
	if innerBw > outer.Bwidth {
		innerBw = outer.Bwidth
	}
	if innerBw < 1 {
		innerBw = 1
	}
	inner.Bwidth = innerBw
	dec.Subdims[1] = inner

	// Triangular-matrix routines dispatched in 1-D: mark Y-item axes unused.
	if funcID == kflags.FuncTRMM || funcID == kflags.FuncTRSM {
		dec.Subdims[1].ItemY = Unused
		dec.Subdims[0].Y = Unused
	}

	// Level-2 (vector-output) routines: collapse X to 1, fold its count
	// into bwidth.
	if funcID == kflags.FuncGEMV || funcID == kflags.FuncSYMV {
		dec.Subdims[0].Bwidth *= max1(dec.Subdims[0].X, 1)
		dec.Subdims[0].X = 1
		dec.Subdims[1].ItemX = 1
	}

	return dec
}

// elementSizeBytes returns sizeof(dtype) in bytes, assuming float32 is 4 bytes.
func elementSizeBytes(dtype kflags.DataType) int {
	return 4 * dtype.NrFloats()
}
