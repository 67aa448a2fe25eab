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

import (
	"testing"

	"github.com/clblast-go/clblast/kflags"
	"github.com/stretchr/testify/require"
)

var testLimits = DeviceLimits{LDSSize: 32 * 1024, WavefrontSize: 64, MaxWorkGroupSize: 256}

func fitsHalfBudget(d Decomposition, dtype kflags.DataType, ldsBudget int) bool {
	elem := 4 * dtype.NrFloats()
	bytes := (d.Subdims[0].X + d.Subdims[0].Y) * d.Subdims[0].Bwidth * elem * 2
	return bytes <= ldsBudget
}

// TestGranulationValid: every Decomposition the
// chooser produces has a PGranularity satisfying its invariants.
func TestGranulationValid(t *testing.T) {
	hooks := PatternHooks{IsFitToLDS: fitsHalfBudget}
	for _, fn := range []kflags.FuncID{kflags.FuncGEMM, kflags.FuncTRMM, kflags.FuncTRSM, kflags.FuncSYRK, kflags.FuncSYR2K, kflags.FuncGEMV, kflags.FuncSYMV} {
		for _, dt := range []kflags.DataType{kflags.F32, kflags.F64, kflags.C32, kflags.C64} {
			dec := Choose(fn, dt, 0, "default", hooks, testLimits, 512, 512, 512, 0, nil)
			require.True(t, dec.PGran.Valid(), "func=%v dtype=%v gran=%+v", fn, dt, dec.PGran)
		}
	}
}

// TestBuiltinDefaultSquareBlocksUsesPatternSide: a pattern
// requesting square blocks gets 32x32x32 tiles for single precision.
func TestBuiltinDefaultSquareBlocksUsesPatternSide(t *testing.T) {
	hooks := PatternHooks{WantsSquareBlocks: true, IsFitToLDS: fitsHalfBudget}
	dec := BuiltinDefault(kflags.FuncGEMM, kflags.F32, hooks, testLimits, 1024, 1024, 1024)
	require.Equal(t, 32, dec.Subdims[0].X)
	require.Equal(t, 32, dec.Subdims[0].Y)
	require.Equal(t, 32, dec.Subdims[0].Bwidth)
}

func TestBuiltinDefaultSquareBlocksShrinksForComplexDouble(t *testing.T) {
	hooks := PatternHooks{WantsSquareBlocks: true, IsFitToLDS: fitsHalfBudget}
	dec := BuiltinDefault(kflags.FuncGEMM, kflags.C64, hooks, testLimits, 1024, 1024, 1024)
	require.Equal(t, 16, dec.Subdims[0].X)
	require.Equal(t, 16, dec.Subdims[0].Y)
	require.Equal(t, 16, dec.Subdims[0].Bwidth)
}

// TestBuiltinDefaultTriangularMarksYUnused: TRMM/TRSM dispatch
// collapses the Y-item axis to the Unused sentinel.
func TestBuiltinDefaultTriangularMarksYUnused(t *testing.T) {
	hooks := PatternHooks{IsFitToLDS: fitsHalfBudget}
	dec := BuiltinDefault(kflags.FuncTRSM, kflags.F32, hooks, testLimits, 512, 512, 512)
	require.Equal(t, Unused, dec.Subdims[0].Y)
	require.Equal(t, Unused, dec.Subdims[1].ItemY)
}

func TestBuiltinDefaultLevel2CollapsesX(t *testing.T) {
	hooks := PatternHooks{IsFitToLDS: fitsHalfBudget}
	dec := BuiltinDefault(kflags.FuncGEMV, kflags.F32, hooks, testLimits, 512, 512, 512)
	require.Equal(t, 1, dec.Subdims[0].X)
	require.Equal(t, 1, dec.Subdims[1].ItemX)
}

func TestChooseUsesStorageRecordWhenPresent(t *testing.T) {
	stored := Decomposition{
		NrLevels: 2,
		Subdims: [MaxSubdims]SubproblemDim{
			{Y: 64, X: 64, Bwidth: 8, ItemY: 8, ItemX: 8},
		},
		PGran: PGranularity{WgDim: 2, WgSize: [2]int{8, 8}, WavefrontSize: 64, MaxWorkGroupSize: 256},
	}
	lookup := func(pattern string, dtype kflags.DataType, flags kflags.Flags, bucket int) (Record, bool) {
		return Record{Decomposition: stored, Time: 1.5}, true
	}
	hooks := PatternHooks{IsFitToLDS: fitsHalfBudget}
	dec := Choose(kflags.FuncGEMM, kflags.F32, 0, "default", hooks, testLimits, 128, 128, 128, 0, lookup)
	require.Equal(t, 64, dec.Subdims[0].X)
}

func TestChooseSkipsNoDataRecord(t *testing.T) {
	lookup := func(pattern string, dtype kflags.DataType, flags kflags.Flags, bucket int) (Record, bool) {
		return Record{Time: 20000}, true
	}
	hooks := PatternHooks{IsFitToLDS: fitsHalfBudget}
	dec := Choose(kflags.FuncGEMM, kflags.F32, 0, "default", hooks, testLimits, 64, 64, 64, 0, lookup)
	require.NotZero(t, dec.Subdims[0].X)
}

func TestChooseSkipsKnownBadGemm(t *testing.T) {
	called := false
	lookup := func(pattern string, dtype kflags.DataType, flags kflags.Flags, bucket int) (Record, bool) {
		called = true
		return Record{}, true
	}
	hooks := PatternHooks{IsFitToLDS: fitsHalfBudget}
	// M not divisible by 64 => known-bad, storage lookup must be skipped.
	Choose(kflags.FuncGEMM, kflags.F32, 0, "default", hooks, testLimits, 100, 128, 128, 0, lookup)
	require.False(t, called)
}

func TestDimensionBucketForcedToZeroWhenBankAligned(t *testing.T) {
	var seenBucket int
	lookup := func(pattern string, dtype kflags.DataType, flags kflags.Flags, bucket int) (Record, bool) {
		seenBucket = bucket
		return Record{}, false
	}
	hooks := PatternHooks{IsFitToLDS: fitsHalfBudget}
	Choose(kflags.FuncGEMM, kflags.F32, 0, "default", hooks, testLimits, 128, 128, 128, BankAlignedBytes*3, lookup)
	require.Equal(t, 0, seenBucket)
}

func TestShrinkToProblemSizeOnlyAppliesToNamedFunctions(t *testing.T) {
	big := Decomposition{
		NrLevels: 2,
		Subdims: [MaxSubdims]SubproblemDim{
			{Y: 256, X: 256, Bwidth: 64, ItemY: 32, ItemX: 32},
		},
	}
	shrunk := shrinkToProblemSize(kflags.FuncGEMM, big, 16, 16, 16)
	require.LessOrEqual(t, shrunk.Subdims[0].X, 16)

	untouched := shrinkToProblemSize(kflags.FuncGEMM2, big, 16, 16, 16)
	require.Equal(t, big, untouched)
}

func TestTailFlagsDetectsNonDivisibleDims(t *testing.T) {
	dec := Decomposition{
		NrLevels: 2,
		Subdims: [MaxSubdims]SubproblemDim{
			{Y: 32, X: 32, Bwidth: 8, ItemY: 4, ItemX: 4},
			{ItemY: 4, ItemX: 4, Bwidth: 4},
		},
	}
	f := TailFlags(dec, 100, 100, 100)
	require.True(t, f.Has(kflags.TailsM))
	require.True(t, f.Has(kflags.TailsN))
	require.True(t, f.Has(kflags.TailsK))
}

func TestPGranularityValidRejectsOversizedWorkgroup(t *testing.T) {
	g := PGranularity{WgDim: 2, WgSize: [2]int{32, 32}, MaxWorkGroupSize: 256}
	require.False(t, g.Valid())
}

func TestPGranularityValidRejects1DWithNonUnitSecondAxis(t *testing.T) {
	g := PGranularity{WgDim: 1, WgSize: [2]int{16, 2}, MaxWorkGroupSize: 256}
	require.False(t, g.Valid())
}
