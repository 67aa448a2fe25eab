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

// Package pattern implements C2, the memory-pattern registry: a process-wide
// table mapping each BLAS function family to its ordered list of registered
// memory patterns, each carrying a small vtable of solver operations, plus
// the selection algorithm that picks one for a given problem.
package pattern

import (
	"github.com/clblast-go/clblast/kflags"
	"github.com/clblast-go/clblast/subdim"
)

// StaticFlags are a pattern's getFlags() result: properties that
// never change across calls, as opposed to per-call scoring.
type StaticFlags uint32

const (
	// WorkspacePrefers2D is SF_WSPACE_2D: the pattern prefers 2-D dispatch.
	WorkspacePrefers2D StaticFlags = 1 << iota
	// SquareBlocks is SF_TOP_INPUT_SQUARE_BLOCKS: the top-level outer tile
	// must be square. Feeds subdim.PatternHooks.WantsSquareBlocks.
	SquareBlocks
)

// MemTier is where an operand's data is staged while a kernel runs.
type MemTier int

const (
	TierGlobal MemTier = iota
	TierLDS
	TierImage
	TierL1
	TierL2
)

// Extra is the {mobjA, mobjB} pair from MemoryPattern: which tier
// each of the two matrix operands most relevant to caching lives in.
type Extra struct {
	MobjA, MobjB MemTier
}

// CheckCalcMode selects checkCalcDecomp's behavior.
type CheckCalcMode int

const (
	Check CheckCalcMode = iota
	Calc
)

// Axis is the fastest-varying work-group enumeration axis a pattern reports
// via innerDecompositionAxis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
)

// PackOrder/PackRate describe imgPackMode's output for image-backed patterns.
type PackOrder int

const (
	PackRowMajor PackOrder = iota
	PackColMajor
)

// Ops is the sops vtable from MemoryPattern. Every field is a
// plain function, not a method set on an interface the pattern must
// implement in full: Go's nil-is-a-valid-value for func fields lets a
// pattern supply only the operations it overrides, with nil meaning "use the
// generic fallback".
type Ops struct {
	GenKernel func(subdims [subdim.MaxSubdims]subdim.SubproblemDim, pgran subdim.PGranularity, extras kflags.Flags, buildOpts string) (string, error)

	AssignKargs func(args any, extras kflags.Flags) ([]any, error)

	CalcThreads func(subdims [subdim.MaxSubdims]subdim.SubproblemDim, pgran subdim.PGranularity) (globalWS [2]int, ok bool)

	GetFlags func() StaticFlags

	IsFitToLDS func(dims subdim.Decomposition, dtype kflags.DataType, ldsBudget int) bool

	FixupArgs func(args any, sd subdim.SubproblemDim, extras kflags.Flags) any

	SetBuildOptions func(device any) string

	// GetPatternPerf returns a signed score; negative means "cannot handle
	// this problem". A nil GetPatternPerf marks the pattern legacy.
	GetPatternPerf func(flags kflags.Flags, m, n, k int) int

	SelectVectorization func(extras kflags.Flags) kflags.Flags

	InnerDecompositionAxis func() Axis

	ImgPackMode func(extras kflags.Flags, sd subdim.SubproblemDim, role int) (packRate int, order PackOrder)

	GetDefaultDecomp func(dtype kflags.DataType, flags kflags.Flags, m, n, k int) (subdim.Decomposition, bool)

	CheckCalcDecomp func(pgran *subdim.PGranularity, subdims *[subdim.MaxSubdims]subdim.SubproblemDim, nrLevels int, dtype kflags.DataType, mode CheckCalcMode) bool
}

// Pattern is a single registered memory strategy for a function family.
type Pattern struct {
	Name     string
	NrLevels int
	Extra    Extra
	Ops      Ops
}

// Hooks adapts Pattern into the plain-function vtable subdim.Choose expects,
// so subdim never needs to import this package.
func (p Pattern) Hooks() subdim.PatternHooks {
	var flags StaticFlags
	if p.Ops.GetFlags != nil {
		flags = p.Ops.GetFlags()
	}
	hooks := subdim.PatternHooks{
		WantsSquareBlocks: flags&SquareBlocks != 0,
		ImageOrColMajorA:  p.Extra.MobjA == TierImage,
		ImageOrColMajorB:  p.Extra.MobjB == TierImage,
	}
	if p.Ops.IsFitToLDS != nil {
		hooks.IsFitToLDS = p.Ops.IsFitToLDS
	}
	if p.Ops.GetDefaultDecomp != nil {
		hooks.GetDefaultDecomp = p.Ops.GetDefaultDecomp
	}
	if p.Ops.InnerDecompositionAxis != nil {
		hooks.InnerDecompositionAxis = func() bool { return p.Ops.InnerDecompositionAxis() == AxisX }
	}
	return hooks
}
