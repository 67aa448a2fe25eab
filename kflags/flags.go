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

package kflags

// Flags is the KernelExtraFlags bitset. Any bit combination respecting the
// two invariants below is valid; Canonicalize enforces them.
type Flags uint64

const (
	TransA Flags = 1 << iota
	TransB
	ConjA
	ConjB
	FlagColMajor
	UpperTri
	FlagSideRight
	UnitDiag
	BetaZero
	TailsM
	TailsN
	TailsK
	TailsMLower
	TailsNLower
	TailsKLower
	NoCopyVecA
	NoCopyVecB
	NoCopyVecC
	IncxOne
	IncyOne
	StartMNotZero
	StartNNotZero
	AOffNotZero
	BXOffNotZero
	CYOffNotZero
	VendorAMD
	EnableMAD
	Syrk2KRank
	SyrkSeparateDiagonal
	SyrkEvaluateDiagonal
)

// Has reports whether all bits in mask are set in f.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

// Any reports whether any bit in mask is set in f.
func (f Flags) Any(mask Flags) bool { return f&mask != 0 }

// Set returns f with mask's bits forced on.
func (f Flags) Set(mask Flags) Flags { return f | mask }

// Clear returns f with mask's bits forced off.
func (f Flags) Clear(mask Flags) Flags { return f &^ mask }

// Canonicalize strips bits the invariants forbid for a
// non-complex problem: CONJ_A/CONJ_B only make sense alongside TRANS_A/
// TRANS_B on a complex-typed problem, and TAILS_*_LOWER never survives
// without its corresponding non-lower bit.
func Canonicalize(f Flags, dtype DataType) Flags {
	if !dtype.IsComplex() {
		f = f.Clear(ConjA | ConjB)
	} else {
		if !f.Has(TransA) {
			f = f.Clear(ConjA)
		}
		if !f.Has(TransB) {
			f = f.Clear(ConjB)
		}
	}
	if !f.Has(TailsM) {
		f = f.Clear(TailsMLower)
	}
	if !f.Has(TailsN) {
		f = f.Clear(TailsNLower)
	}
	if !f.Has(TailsK) {
		f = f.Clear(TailsKLower)
	}
	return f
}

// ArgFlags is the subset of a problem description that EncodeFlags/DecodeFlags
// round-trip through Flags; it deliberately carries only the fields flags are
// derived from, not the full BlasKargs bundle (avoiding an import on solve).
type ArgFlags struct {
	Dtype            DataType
	Order            Order
	Side             Side
	Uplo             Uplo
	TransA, TransB   Transpose
	Diag             Diag
	BetaIsZero       bool
	IncXOne, IncYOne bool
}

// EncodeFlags derives the static, problem-shape portion of KernelExtraFlags
// from args. Tail and
// offset bits are derived later by the decomposer once final subdims and
// offsets are known, so they are not set here.
func EncodeFlags(a ArgFlags) Flags {
	var f Flags
	if a.TransA == Trans || a.TransA == ConjTrans {
		f = f.Set(TransA)
	}
	if a.TransB == Trans || a.TransB == ConjTrans {
		f = f.Set(TransB)
	}
	if a.TransA == ConjTrans {
		f = f.Set(ConjA)
	}
	if a.TransB == ConjTrans {
		f = f.Set(ConjB)
	}
	if a.Order == ColMajor {
		f = f.Set(FlagColMajor)
	}
	if a.Uplo == Upper {
		f = f.Set(UpperTri)
	}
	if a.Side == SideRight {
		f = f.Set(FlagSideRight)
	}
	if a.Diag == Unit {
		f = f.Set(UnitDiag)
	}
	if a.BetaIsZero {
		f = f.Set(BetaZero)
	}
	if a.IncXOne {
		f = f.Set(IncxOne)
	}
	if a.IncYOne {
		f = f.Set(IncyOne)
	}
	return Canonicalize(f, a.Dtype)
}

// DecodeFlags recovers the ArgFlags subset encoded into f for a given dtype.
// The round-trip guarantee is
// DecodeFlags(EncodeFlags(args, func)) == Canonicalize(args) modulo CONJ
// normalization on non-complex types, which holds here because Canonicalize
// is applied on encode and Decode only reads bits Encode could have set.
func DecodeFlags(f Flags, dtype DataType) ArgFlags {
	a := ArgFlags{Dtype: dtype}
	switch {
	case f.Has(TransA) && f.Has(ConjA):
		a.TransA = ConjTrans
	case f.Has(TransA):
		a.TransA = Trans
	default:
		a.TransA = NoTrans
	}
	switch {
	case f.Has(TransB) && f.Has(ConjB):
		a.TransB = ConjTrans
	case f.Has(TransB):
		a.TransB = Trans
	default:
		a.TransB = NoTrans
	}
	if f.Has(FlagColMajor) {
		a.Order = ColMajor
	} else {
		a.Order = RowMajor
	}
	if f.Has(UpperTri) {
		a.Uplo = Upper
	} else {
		a.Uplo = Lower
	}
	if f.Has(FlagSideRight) {
		a.Side = SideRight
	} else {
		a.Side = SideLeft
	}
	if f.Has(UnitDiag) {
		a.Diag = Unit
	} else {
		a.Diag = NonUnit
	}
	a.BetaIsZero = f.Has(BetaZero)
	a.IncXOne = f.Has(IncxOne)
	a.IncYOne = f.Has(IncyOne)
	return a
}

// TuningMask returns the subset of flag bits that matter for tuning-record
// lookup/sharing for a given function: transpose,
// triangle/side/diag, order and beta-zero bits participate; tail/offset/
// vendor/vectorization bits do not.
func (f FuncID) TuningMask() Flags {
	base := TransA | TransB | ConjA | ConjB | FlagColMajor | UpperTri | FlagSideRight | UnitDiag | BetaZero
	switch f {
	case FuncSYRK, FuncSYR2K:
		return base | Syrk2KRank
	default:
		return base
	}
}

// flagNames pairs every KernelExtraFlags bit with its identifier, in
// declaration order, so callers (the code generator's %IF guards) can derive
// named boolean conditions without duplicating the bit list.
var flagNames = []struct {
	bit  Flags
	name string
}{
	{TransA, "TRANS_A"}, {TransB, "TRANS_B"}, {ConjA, "CONJ_A"}, {ConjB, "CONJ_B"},
	{FlagColMajor, "COL_MAJOR"}, {UpperTri, "UPPER_TRI"}, {FlagSideRight, "SIDE_RIGHT"},
	{UnitDiag, "UNIT_DIAG"}, {BetaZero, "BETA_ZERO"},
	{TailsM, "TAILS_M"}, {TailsN, "TAILS_N"}, {TailsK, "TAILS_K"},
	{TailsMLower, "TAILS_M_LOWER"}, {TailsNLower, "TAILS_N_LOWER"}, {TailsKLower, "TAILS_K_LOWER"},
	{NoCopyVecA, "NO_COPY_VEC_A"}, {NoCopyVecB, "NO_COPY_VEC_B"}, {NoCopyVecC, "NO_COPY_VEC_C"},
	{IncxOne, "INCX_ONE"}, {IncyOne, "INCY_ONE"},
	{StartMNotZero, "STARTM_NOT_ZERO"}, {StartNNotZero, "STARTN_NOT_ZERO"},
	{AOffNotZero, "A_OFF_NOT_ZERO"}, {BXOffNotZero, "BX_OFF_NOT_ZERO"}, {CYOffNotZero, "CY_OFF_NOT_ZERO"},
	{VendorAMD, "VENDOR_AMD"}, {EnableMAD, "ENABLE_MAD"},
	{Syrk2KRank, "SYRK_2K_RANK"}, {SyrkSeparateDiagonal, "SYRK_SEPARATE_DIAGONAL"},
	{SyrkEvaluateDiagonal, "SYRK_EVALUATE_DIAGONAL"},
}

// CondNames expands f into the named boolean conditions a codegen.Expander's
// %IF(key) line guards consult, one per bit plus the synthetic
// "BETA_NONZERO" complement genKernel templates use to select the alternate
// beta-scaling branch.
func CondNames(f Flags) map[string]bool {
	out := make(map[string]bool, len(flagNames)+1)
	for _, fn := range flagNames {
		out[fn.name] = f.Has(fn.bit)
	}
	out["BETA_NONZERO"] = !f.Has(BetaZero)
	return out
}
