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

// BankAlignedBytes is 8 memory channels x 256 bytes: when a
// pattern's inner-decomposition-axis leading dimension (in bytes) is a
// multiple of this size, the dimension bucket is forced to the dedicated
// bank-aligned record (bucket 0).
const BankAlignedBytes = 8 * 256

// StorageLookup is the callback the chooser uses to consult the persistent
// tuning store (C7); package solve wires storage.Get into this signature so
// subdim never imports storage (and storage, which needs subdim's types for
// its on-disk records, never imports subdim back).
type StorageLookup func(pattern string, dtype kflags.DataType, flags kflags.Flags, bucket int) (Record, bool)

// isKnownBad hard-codes the combinations that must skip the storage
// lookup: GEMM with M, N, K not all divisible by 64, and every GEMM2
// sub-function.
func isKnownBad(funcID kflags.FuncID, m, n, k int) bool {
	if funcID == kflags.FuncGEMM {
		return m%64 != 0 || n%64 != 0 || k%64 != 0
	}
	if funcID == kflags.FuncGEMM2 {
		return true
	}
	return false
}

// DimensionBucket derives the dimension bucket used to key a storage
// lookup: (M+N+K)/3.
func DimensionBucket(m, n, k int) int {
	return (m + n + k) / 3
}

// bankAligned reports whether ldBytes, the relevant leading dimension in
// bytes for the pattern's declared inner-decomposition axis, is a multiple
// of the bank-aligned size — forcing bucket 0.
func bankAligned(ldBytes int) bool {
	return ldBytes > 0 && ldBytes%BankAlignedBytes == 0
}

// Choose applies the granulation source order:
// storage lookup (skipped for known-bad combinations, and made against
// bucket 0 when the inner-axis leading dimension is bank-aligned),
// pattern-supplied GetDefaultDecomp, the built-in default policy,
// then post-hoc shrink-to-problem-size for the seven functions that request it.
func Choose(
	funcID kflags.FuncID,
	dtype kflags.DataType,
	flags kflags.Flags,
	patternName string,
	hooks PatternHooks,
	limits DeviceLimits,
	m, n, k int,
	ldBytesForInnerAxis int,
	lookup StorageLookup,
) Decomposition {
	masked := flags & funcID.TuningMask()

	if lookup != nil && !isKnownBad(funcID, m, n, k) {
		bucket := DimensionBucket(m, n, k)
		if bankAligned(ldBytesForInnerAxis) {
			bucket = 0
		}
		if rec, ok := lookup(patternName, dtype, masked, bucket); ok && !rec.NoData() {
			return shrinkToProblemSize(funcID, rec.Decomposition, m, n, k)
		}
	}

	if hooks.GetDefaultDecomp != nil {
		if dec, ok := hooks.GetDefaultDecomp(dtype, flags, m, n, k); ok {
			return shrinkToProblemSize(funcID, dec, m, n, k)
		}
	}

	dec := BuiltinDefault(funcID, dtype, hooks, limits, m, n, k)
	return shrinkToProblemSize(funcID, dec, m, n, k)
}

// shrinkToProblemSize caps an oversized choice: if the chosen dimensions
// exceed the problem size in any axis and the function is one of the seven
// named, shrink by halving itemX/itemY/bwidth toward 1 until within bounds.
func shrinkToProblemSize(funcID kflags.FuncID, dec Decomposition, m, n, k int) Decomposition {
	if !funcID.ShrinksToProblemSize() {
		return dec
	}
	out := dec
	for level := 0; level < out.NrLevels; level++ {
		sd := &out.Subdims[level]
		for sd.X != Unused && sd.X > max1(m, n) && sd.ItemX > 1 {
			sd.ItemX /= 2
			sd.X /= 2
		}
		for sd.Y != Unused && sd.Y > max1(m, n) && sd.ItemY > 1 {
			sd.ItemY /= 2
			sd.Y /= 2
		}
		for sd.Bwidth > k && sd.Bwidth > 1 {
			sd.Bwidth /= 2
		}
	}
	return out
}

func max1(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// TailFlags derives TAILS_{M,N,K} and, for a two-level decomposition,
// TAILS_{M,N,K}_LOWER from the final subdims vs. the problem size.
func TailFlags(dec Decomposition, m, n, k int) kflags.Flags {
	var f kflags.Flags
	outer := dec.Subdims[0]
	if outer.X != Unused && outer.X != 0 && m%outer.X != 0 {
		f = f.Set(kflags.TailsM)
	}
	if outer.Y != Unused && outer.Y != 0 && n%outer.Y != 0 {
		f = f.Set(kflags.TailsN)
	}
	if outer.Bwidth != 0 && k%outer.Bwidth != 0 {
		f = f.Set(kflags.TailsK)
	}

	if dec.NrLevels >= 2 {
		inner := dec.Subdims[1]
		if f.Has(kflags.TailsM) && inner.ItemX != Unused && inner.ItemX != 0 && m%inner.ItemX != 0 {
			f = f.Set(kflags.TailsMLower)
		}
		if f.Has(kflags.TailsN) && inner.ItemY != Unused && inner.ItemY != 0 && n%inner.ItemY != 0 {
			f = f.Set(kflags.TailsNLower)
		}
		if f.Has(kflags.TailsK) && inner.Bwidth != 0 && k%inner.Bwidth != 0 {
			f = f.Set(kflags.TailsKLower)
		}
	}
	return f
}
