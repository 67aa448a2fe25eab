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

// Package builtin registers this repository's concrete memory patterns for
// every supported BLAS function family into a pattern.Registry.
package builtin

import (
	"github.com/clblast-go/clblast/kflags"
	"github.com/clblast-go/clblast/pattern"
	"github.com/clblast-go/clblast/subdim"
)

// Register populates r with the builtin pattern set. TRSM deliberately
// registers only two patterns ("buffers", "images-lds"): the third,
// historically deprecated pattern is not ported,
// so NumPatterns(TRSM) reports 2.
func Register(r *pattern.Registry) {
	registerGEMM(r)
	registerTRMM(r)
	registerTRSM(r)
	registerSYRK(r)
	registerSYR2K(r)
	registerGEMV(r)
	registerSYMV(r)
}

// fitsHalfLDS is the generic isFitToLDS every builtin level-3 pattern uses:
// the outer tile's footprint for both staged operands must not exceed the
// budget the caller passes (already halved to ldsBudget/2 by the chooser).
func fitsHalfLDS(d subdim.Decomposition, dtype kflags.DataType, ldsBudget int) bool {
	elemSize := 4 * dtype.NrFloats()
	outer := d.Subdims[0]
	bytes := (outer.X*outer.Bwidth + outer.Y*outer.Bwidth) * elemSize
	return bytes <= ldsBudget
}

func squareBlocks() pattern.StaticFlags { return pattern.SquareBlocks | pattern.WorkspacePrefers2D }

func registerGEMM(r *pattern.Registry) {
	r.Register(kflags.FuncGEMM, pattern.Pattern{
		Name:     "gemm-buffers",
		NrLevels: 2,
		Extra:    pattern.Extra{MobjA: pattern.TierGlobal, MobjB: pattern.TierGlobal},
		Ops: pattern.Ops{
			GetFlags:    squareBlocks,
			IsFitToLDS:  fitsHalfLDS,
			GenKernel:   genKernelFor(kernelShape{name: "gemmBuffers"}),
			AssignKargs: assignKargsFor(false),
		},
	})
	r.Register(kflags.FuncGEMM, pattern.Pattern{
		Name:     "gemm-images",
		NrLevels: 2,
		Extra:    pattern.Extra{MobjA: pattern.TierImage, MobjB: pattern.TierImage},
		Ops: pattern.Ops{
			GetFlags:    squareBlocks,
			IsFitToLDS:  fitsHalfLDS,
			GenKernel:   genKernelFor(kernelShape{name: "gemmImages"}),
			AssignKargs: assignKargsFor(false),
			ImgPackMode: imgPackModeFor(),
		},
	})
}

func registerTRMM(r *pattern.Registry) {
	r.Register(kflags.FuncTRMM, pattern.Pattern{
		Name:     "trmm-buffers",
		NrLevels: 2,
		Extra:    pattern.Extra{MobjA: pattern.TierGlobal, MobjB: pattern.TierGlobal},
		Ops: pattern.Ops{
			IsFitToLDS:  fitsHalfLDS,
			GenKernel:   genKernelFor(kernelShape{name: "trmmBuffers", triangle: true}),
			AssignKargs: assignKargsFor(false),
		},
	})
	r.Register(kflags.FuncTRMM, pattern.Pattern{
		Name:     "trmm-images",
		NrLevels: 2,
		Extra:    pattern.Extra{MobjA: pattern.TierImage, MobjB: pattern.TierGlobal},
		Ops: pattern.Ops{
			IsFitToLDS:  fitsHalfLDS,
			GenKernel:   genKernelFor(kernelShape{name: "trmmImages", triangle: true}),
			AssignKargs: assignKargsFor(false),
			ImgPackMode: imgPackModeFor(),
		},
	})
}

// registerTRSM registers only two patterns. The third, historically
// deprecated pattern is intentionally not ported; see DESIGN.md.
func registerTRSM(r *pattern.Registry) {
	r.Register(kflags.FuncTRSM, pattern.Pattern{
		Name:     "trsm-buffers",
		NrLevels: 2,
		Extra:    pattern.Extra{MobjA: pattern.TierGlobal, MobjB: pattern.TierGlobal},
		Ops: pattern.Ops{
			IsFitToLDS:  fitsHalfLDS,
			GenKernel:   genKernelFor(kernelShape{name: "trsmBuffers", triangle: true}),
			AssignKargs: assignKargsFor(false),
		},
	})
	r.Register(kflags.FuncTRSM, pattern.Pattern{
		Name:     "trsm-images-lds",
		NrLevels: 2,
		Extra:    pattern.Extra{MobjA: pattern.TierImage, MobjB: pattern.TierLDS},
		Ops: pattern.Ops{
			IsFitToLDS:  fitsHalfLDS,
			GenKernel:   genKernelFor(kernelShape{name: "trsmImagesLDS", triangle: true}),
			AssignKargs: assignKargsFor(false),
			ImgPackMode: imgPackModeFor(),
		},
	})
}

func registerSYRK(r *pattern.Registry) {
	r.Register(kflags.FuncSYRK, pattern.Pattern{
		Name:     "syrk-buffers",
		NrLevels: 2,
		Extra:    pattern.Extra{MobjA: pattern.TierGlobal, MobjB: pattern.TierGlobal},
		Ops: pattern.Ops{
			GetFlags:    squareBlocks,
			IsFitToLDS:  fitsHalfLDS,
			GenKernel:   genKernelFor(kernelShape{name: "syrkBuffers", triangle: true}),
			AssignKargs: assignKargsFor(false),
		},
	})
}

func registerSYR2K(r *pattern.Registry) {
	r.Register(kflags.FuncSYR2K, pattern.Pattern{
		Name:     "syr2k-buffers",
		NrLevels: 2,
		Extra:    pattern.Extra{MobjA: pattern.TierGlobal, MobjB: pattern.TierGlobal},
		Ops: pattern.Ops{
			GetFlags:    squareBlocks,
			IsFitToLDS:  fitsHalfLDS,
			GenKernel:   genKernelFor(kernelShape{name: "syr2kBuffers", triangle: true, rankTwo: true}),
			AssignKargs: assignKargsFor(false),
		},
	})
}

func registerGEMV(r *pattern.Registry) {
	r.Register(kflags.FuncGEMV, pattern.Pattern{
		Name:     "gemv-buffers",
		NrLevels: 2,
		Extra:    pattern.Extra{MobjA: pattern.TierGlobal, MobjB: pattern.TierGlobal},
		Ops: pattern.Ops{
			IsFitToLDS:             fitsHalfLDS,
			InnerDecompositionAxis: func() pattern.Axis { return pattern.AxisY },
			GenKernel:              genKernelFor(kernelShape{name: "gemvBuffers", level2: true}),
			AssignKargs:            assignKargsFor(true),
		},
	})
	r.Register(kflags.FuncGEMV, pattern.Pattern{
		Name:     "gemv-images",
		NrLevels: 2,
		Extra:    pattern.Extra{MobjA: pattern.TierImage, MobjB: pattern.TierGlobal},
		Ops: pattern.Ops{
			IsFitToLDS:             fitsHalfLDS,
			InnerDecompositionAxis: func() pattern.Axis { return pattern.AxisY },
			GenKernel:              genKernelFor(kernelShape{name: "gemvImages", level2: true}),
			AssignKargs:            assignKargsFor(true),
			ImgPackMode:            imgPackModeFor(),
		},
	})
}

func registerSYMV(r *pattern.Registry) {
	r.Register(kflags.FuncSYMV, pattern.Pattern{
		Name:     "symv-buffers",
		NrLevels: 2,
		Extra:    pattern.Extra{MobjA: pattern.TierGlobal, MobjB: pattern.TierGlobal},
		Ops: pattern.Ops{
			IsFitToLDS:             fitsHalfLDS,
			InnerDecompositionAxis: func() pattern.Axis { return pattern.AxisY },
			GenKernel:              genKernelFor(kernelShape{name: "symvBuffers", level2: true}),
			AssignKargs:            assignKargsFor(true),
		},
	})
}
