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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFlagBijection: for all args,
// DecodeFlags(EncodeFlags(args, func)) == Canonicalize(args) modulo CONJ
// normalization on non-complex types.
func TestFlagBijection(t *testing.T) {
	cases := []ArgFlags{
		{Dtype: F32, Order: RowMajor, Side: SideLeft, Uplo: Lower, TransA: NoTrans, TransB: NoTrans, Diag: NonUnit},
		{Dtype: F64, Order: ColMajor, Side: SideRight, Uplo: Upper, TransA: Trans, TransB: Trans, Diag: Unit, BetaIsZero: true},
		{Dtype: C32, Order: ColMajor, Side: SideLeft, Uplo: Upper, TransA: ConjTrans, TransB: NoTrans, Diag: NonUnit},
		{Dtype: C64, Order: RowMajor, Side: SideLeft, Uplo: Lower, TransA: ConjTrans, TransB: ConjTrans, Diag: NonUnit, IncXOne: true, IncYOne: true},
		// Non-complex input that requests conj-trans: must be stripped on encode.
		{Dtype: F32, Order: RowMajor, Side: SideLeft, Uplo: Lower, TransA: ConjTrans, TransB: NoTrans, Diag: NonUnit},
	}

	for _, a := range cases {
		encoded := EncodeFlags(a)
		decoded := DecodeFlags(encoded, a.Dtype)

		want := a
		if !a.Dtype.IsComplex() {
			if want.TransA == ConjTrans {
				want.TransA = Trans
			}
			if want.TransB == ConjTrans {
				want.TransB = Trans
			}
		}
		require.Equal(t, want, decoded)
	}
}

func TestCanonicalizeStripsTailsLowerWithoutTails(t *testing.T) {
	f := TailsMLower | TailsNLower | TailsKLower
	got := Canonicalize(f, F32)
	require.Zero(t, got&(TailsMLower|TailsNLower|TailsKLower))
}

func TestCanonicalizeKeepsTailsLowerWithTails(t *testing.T) {
	f := TailsM | TailsMLower
	got := Canonicalize(f, F32)
	require.True(t, got.Has(TailsM))
	require.True(t, got.Has(TailsMLower))
}

func TestTuningMaskSharedAcrossTailVariants(t *testing.T) {
	base := EncodeFlags(ArgFlags{Dtype: F32, TransA: Trans})
	withTail := base.Set(TailsM).Set(AOffNotZero)

	mask := FuncGEMM.TuningMask()
	require.Equal(t, base&mask, withTail&mask)
}
