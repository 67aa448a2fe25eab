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

// Package subdim implements C4, the granulation chooser: given a device,
// pattern, flags, data type and problem size, it produces the tile
// dimensions (SubproblemDim, at up to three nesting levels) and work-group
// shape (PGranularity) the generated kernel will use.
package subdim

import "github.com/clblast-go/clblast/kflags"

// MaxSubdims is the number of nesting levels a solution step carries
// (outer/work-group, inner/thread, optional third level).
const MaxSubdims = 3

// Unused is the sentinel marking an axis not used by a given dispatch shape
// (needed for triangular routines dispatched in 1-D). Persisted to storage
// as the literal 10000.
const Unused = 10000

// SubproblemDim is a rectangular tile: y,x are the outer block height/width,
// bwidth is the inner (K-axis) block, and itemY/itemX are the per-thread
// sub-tile.
type SubproblemDim struct {
	Y, X   int
	Bwidth int
	ItemY  int
	ItemX  int
}

// PGranularity is the work-group shape. Invariants:
// WgSize[0]*WgSize[1] <= MaxWorkGroupSize; when WgDim == 1, WgSize[1] == 1.
type PGranularity struct {
	WgDim            int
	WgSize           [2]int
	WavefrontSize    int
	MaxWorkGroupSize int
}

// Valid checks PGranularity's two invariants.
func (g PGranularity) Valid() bool {
	if g.WgSize[0]*g.WgSize[1] > g.MaxWorkGroupSize {
		return false
	}
	if g.WgDim == 1 && g.WgSize[1] != 1 {
		return false
	}
	return true
}

// Decomposition is the full output of the granulation chooser: up to three
// nesting levels of SubproblemDim plus the work-group shape.
type Decomposition struct {
	NrLevels int
	Subdims  [MaxSubdims]SubproblemDim
	PGran    PGranularity
}

// Record is the subset of a persistent-store ParamInfo the chooser needs:
// the tile dims, work-group shape, and the timing used to decide whether
// a record is "no data".
type Record struct {
	Decomposition
	Time float64
}

// NoData reports whether the record should be treated as absent: a
// persisted time above 10000 marks a slot that was allocated but never
// successfully tuned.
func (r Record) NoData() bool { return r.Time > 10000 }

// DeviceLimits is the subset of a device.Descriptor the chooser needs
// (kept narrow and duplicated here, rather than importing package device,
// so subdim has no dependency beyond kflags).
type DeviceLimits struct {
	LDSSize          int
	WavefrontSize    int
	MaxWorkGroupSize int
}

// PatternHooks is the small vtable of pattern-supplied operations the
// granulation chooser consults:
// IsFitToLDS, GetDefaultDecomp and InnerDecompositionAxis, plus the static
// square-block and image/col-major bits. Each field is optional;
// a nil field means "this pattern does not override the default policy for
// this hook." Passed as a plain struct of funcs (not an interface satisfied
// by package pattern) so subdim never imports pattern.
type PatternHooks struct {
	// WantsSquareBlocks mirrors MemoryPattern.getFlags()'s
	// SF_TOP_INPUT_SQUARE_BLOCKS bit.
	WantsSquareBlocks bool

	// ImageOrColMajorA and ImageOrColMajorB report, for operand A or B, whether the pattern's memory
	// tier for that operand forces the "scaled by 64/nrFloats" outer-tile
	// branch of the built-in default policy.
	ImageOrColMajorA, ImageOrColMajorB bool

	IsFitToLDS func(d Decomposition, dtype kflags.DataType, ldsBudget int) bool

	GetDefaultDecomp func(dtype kflags.DataType, flags kflags.Flags, m, n, k int) (Decomposition, bool)

	InnerDecompositionAxis func() (axisIsX bool)
}
