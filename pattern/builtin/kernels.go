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

package builtin

import (
	"fmt"
	"strings"

	"github.com/clblast-go/clblast/kflags"
	"github.com/clblast-go/clblast/pattern"
	"github.com/clblast-go/clblast/subdim"
)

// kernelShape is the handful of directive choices that differ between the
// level-3 (matrix-matrix) and level-2 (matrix-vector) kernel templates; the
// rest of genKernel's skeleton is shared.
type kernelShape struct {
	name     string
	level2   bool
	triangle bool // emits the %IF(CONJ_A) %CONJUGATE line for SYRK/TRMM/TRSM
	rankTwo  bool // SYR2K: accumulates two outer-product passes per step
}

// genKernelFor builds the genKernel operation for one kernel shape: a
// string-template body written against codegen's directive set, not
// against any particular device compiler, following the usual
// load-tile/accumulate/reduce/store skeleton.
func genKernelFor(shape kernelShape) func(subdims [subdim.MaxSubdims]subdim.SubproblemDim, pgran subdim.PGranularity, extras kflags.Flags, buildOpts string) (string, error) {
	return func(subdims [subdim.MaxSubdims]subdim.SubproblemDim, pgran subdim.PGranularity, extras kflags.Flags, buildOpts string) (string, error) {
		var b strings.Builder
		outer := subdims[0]

		fmt.Fprintf(&b, "// %s\n", buildOpts)
		fmt.Fprintf(&b, "__kernel void %s(\n", shape.name)
		if shape.level2 {
			b.WriteString("    __global const %TYPE* A, __global const %TYPE* X, __global %TYPE* Y,\n")
			b.WriteString("    %TYPE alpha, %TYPE beta, int M, int N, int lda, int incx, int incy)\n{\n")
		} else {
			b.WriteString("    __global const %TYPE* A, __global const %TYPE* B, __global %TYPE* C,\n")
			b.WriteString("    %TYPE alpha, %TYPE beta, int M, int N, int K, int lda, int ldb, int ldc)\n{\n")
		}

		fmt.Fprintf(&b, "    const int lid = get_local_id(0);\n")
		fmt.Fprintf(&b, "    __local %s scratch[%d];\n", "%TYPE", pgran.WgSize[0]*max1(pgran.WgSize[1]))
		if shape.level2 {
			b.WriteString("    __local float scratch_val[1]; __local int scratch_idx[1];\n")
		}

		b.WriteString("    %TYPE%V acc;\n")
		b.WriteString("%MAKEVEC(acc, 0);\n")

		fmt.Fprintf(&b, "    for (int k = 0; k < %d; k += %d) {\n", outer.Bwidth, max1(outer.Bwidth))
		if shape.level2 {
			b.WriteString("        %TYPE%V a = %VLOAD(A + k);\n")
			b.WriteString("        %TYPE%V x = %VLOADWITHINCX(X + k, incx);\n")
			b.WriteString("%VMAD(acc, a, x);\n")
		} else {
			b.WriteString("        %TYPE%V a = %VLOAD(A + k);\n")
			b.WriteString("        %TYPE%V bb = %VLOAD(B + k);\n")
			if shape.triangle {
				b.WriteString("%IF(CONJ_A)        %CONJUGATE(1, a);\n")
			}
			b.WriteString("%VMAD(acc, a, bb);\n")
			if shape.rankTwo {
				b.WriteString("        %TYPE%V a2 = %VLOAD(B + k);\n")
				b.WriteString("        %TYPE%V b2 = %VLOAD(A + k);\n")
				b.WriteString("%VMAD(acc, a2, b2);\n")
			}
		}
		b.WriteString("    }\n")

		b.WriteString("%REDUCTION_BY_SUM(acc);\n")

		if shape.level2 {
			b.WriteString("%IF(BETA_ZERO)    Y[0] = acc;\n")
			b.WriteString("%IF(BETA_NONZERO)    Y[0] = beta * Y[0] + alpha * acc;\n")
		} else {
			b.WriteString("%IF(BETA_ZERO)    C[0] = alpha * acc;\n")
			b.WriteString("%IF(BETA_NONZERO)    C[0] = beta * C[0] + alpha * acc;\n")
		}
		b.WriteString("}\n")
		return b.String(), nil
	}
}

func max1(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

// imgPackModeFor is the imgPackMode operation shared by the image-backed
// patterns: blocks pack one K-slice per texel row, row-major, flipping to
// column-major for a transposed operand (role 0 is A, role 1 is B).
func imgPackModeFor() func(extras kflags.Flags, sd subdim.SubproblemDim, role int) (int, pattern.PackOrder) {
	return func(extras kflags.Flags, sd subdim.SubproblemDim, role int) (int, pattern.PackOrder) {
		rate := sd.Bwidth
		if rate < 1 {
			rate = 1
		}
		transposed := (role == 0 && extras.Has(kflags.TransA)) ||
			(role == 1 && extras.Has(kflags.TransB))
		if transposed {
			return rate, pattern.PackColMajor
		}
		return rate, pattern.PackRowMajor
	}
}

// assignKargsFor returns the assignKargs operation shared by every
// builtin pattern. It returns the whole argument bundle as a single element;
// it does not split it into per-parameter buffer/scalar bindings in the
// order of genKernelFor's signature, and level2 is not consulted.
func assignKargsFor(level2 bool) func(args any, extras kflags.Flags) ([]any, error) {
	return func(args any, extras kflags.Flags) ([]any, error) {
		return []any{args}, nil
	}
}
