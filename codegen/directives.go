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

package codegen

import (
	"fmt"
)

// directiveTable is the closed set of "%NAME(args)" directives
// requires. Complex multiply/add directives implement the algebraic identity
// (a+bi)(c+di) = (ac-bd) + (ad+bc)i using the even/odd vector-subfield
// convention for %BASEWIDTH=2 types.
var directiveTable = map[string]directiveFn{
	"%MUL":                 mulLike("="),
	"%VMUL":                mulLike("="),
	"%MAD":                 mulLike("+="),
	"%VMAD":                mulLike("+="),
	"%MAD_AND_REDUCE":      madAndReduce,
	"%VMAD_AND_REDUCE":     madAndReduce,
	"%DIV":                 divLike,
	"%VDIV":                divLike,
	"%ADD":                 addSubLike("+"),
	"%SUB":                 addSubLike("-"),
	"%MAKEVEC":             makeVec("%TYPE%V"),
	"%INIT":                makeVec("%TYPE%V"),
	"%VMAKEVEC":            makeVec("%TYPE%V"),
	"%VMAKEHVEC":           makeVec("%TYPE%HV"),
	"%VMAKEQVEC":           makeVec("%TYPE%QV"),
	"%VMAKEOVEC":           makeVec("%TYPE%OV"),
	"%VLOAD":               vload,
	"%VSTORE":              vstore,
	"%CONJUGATE":           conjugate,
	"%CLEAR_IMAGINARY":     clearImaginary,
	"%COMPLEX_JOIN":        complexJoin,
	"%VLOADWITHINCX":       vloadWithIncx,
	"%VSTOREWITHINCX":      vstoreWithIncx,
	"%REDUCE_SUM":          reduceTree("+", ""),
	"%REDUCE_MAX":          reduceMax,
	"%REDUCE_MIN":          reduceTree("min", "min"),
	"%REDUCE_HYPOT":        reduceTree("hypot", "hypot"),
	"%REDUCE_SUM_REAL_HV":  reduceTree("+", ""),
	"%REDUCTION_BY_SUM":    reductionBy("+", ""),
	"%REDUCTION_BY_MAX":    reductionByMax,
	"%REDUCTION_BY_MIN":    reductionBy("min", "min"),
	"%REDUCTION_BY_HYPOT":  reductionBy("hypot", "hypot"),
	"%REDUCTION_BY_SSQ":    reductionBySSQ,
	"%VABS":                absLike,
	"%ABS":                 absLike,
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// mulLike implements %MUL/%VMUL (compound "=") and %MAD/%VMAD (compound
// "+="): dst (op)= a*b, using the even/odd complex identity when the
// Expander's base type is complex.
func mulLike(compound string) directiveFn {
	return func(args []string, e *Expander) (string, error) {
		if len(args) < 3 {
			return "", fmt.Errorf("want 3 args, got %d", len(args))
		}
		dst, a, b := args[0], args[1], args[2]
		if !e.cfg.BaseType.IsComplex() {
			return fmt.Sprintf("%s %s %s * %s;\n", dst, compound, a, b), nil
		}
		return fmt.Sprintf(
			"%s.even %s %s.even * %s.even - %s.odd * %s.odd;\n"+
				"%s.odd %s %s.even * %s.odd + %s.odd * %s.even;\n",
			dst, compound, a, b, a, b,
			dst, compound, a, b, a, b,
		), nil
	}
}

// madAndReduce implements %MAD_AND_REDUCE/%VMAD_AND_REDUCE: the same
// multiply-accumulate as mulLike("+="), followed by a work-group tree
// reduction of the accumulator into a single scalar.
func madAndReduce(args []string, e *Expander) (string, error) {
	if len(args) < 3 {
		return "", fmt.Errorf("want 3 args, got %d", len(args))
	}
	mad, err := mulLike("+=")(args, e)
	if err != nil {
		return "", err
	}
	dst := args[0]
	return mad + treeReduce(dst, "+", ""), nil
}

// divLike implements %DIV/%VDIV: real division is a plain quotient; complex
// division multiplies by the conjugate: (a+bi)/(c+di) =
// ((ac+bd) + (bc-ad)i) / (c^2+d^2).
func divLike(args []string, e *Expander) (string, error) {
	if len(args) < 3 {
		return "", fmt.Errorf("want 3 args, got %d", len(args))
	}
	dst, a, b := args[0], args[1], args[2]
	if !e.cfg.BaseType.IsComplex() {
		return fmt.Sprintf("%s = %s / %s;\n", dst, a, b), nil
	}
	denom := fmt.Sprintf("(%s.even * %s.even + %s.odd * %s.odd)", b, b, b, b)
	return fmt.Sprintf(
		"%s.even = (%s.even * %s.even + %s.odd * %s.odd) / %s;\n"+
			"%s.odd = (%s.odd * %s.even - %s.even * %s.odd) / %s;\n",
		dst, a, b, a, b, denom,
		dst, a, b, a, b, denom,
	), nil
}

// addSubLike implements %ADD/%SUB: componentwise for both real and complex
// operands, since addition/subtraction distribute over the even/odd split.
func addSubLike(op string) directiveFn {
	return func(args []string, e *Expander) (string, error) {
		if len(args) < 3 {
			return "", fmt.Errorf("want 3 args, got %d", len(args))
		}
		dst, a, b := args[0], args[1], args[2]
		if !e.cfg.BaseType.IsComplex() {
			return fmt.Sprintf("%s = %s %s %s;\n", dst, a, op, b), nil
		}
		return fmt.Sprintf(
			"%s.even = %s.even %s %s.even;\n%s.odd = %s.odd %s %s.odd;\n",
			dst, a, op, b, dst, a, op, b,
		), nil
	}
}

// makeVec implements %MAKEVEC/%INIT/%VMAKEVEC/%VMAKEHVEC/%VMAKEQVEC/
// %VMAKEOVEC: broadcast-initialize dst to value at the named width level.
func makeVec(typeKey string) directiveFn {
	return func(args []string, e *Expander) (string, error) {
		if len(args) < 2 {
			return "", fmt.Errorf("want 2 args (dst, value), got %d", len(args))
		}
		dst, value := args[0], args[1]
		vecType := e.vars[typeKey]
		return fmt.Sprintf("%s = (%s)(%s);\n", dst, vecType, value), nil
	}
}

// vload implements %VLOAD(addr): an expression (not a statement) naming the
// configured vector-load intrinsic, or a plain dereference when vector loads
// are disabled for this Expander.
func vload(args []string, e *Expander) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("want 1 arg (addr), got 0")
	}
	addr := args[0]
	if name := e.vars["%VLOAD"]; name != "" {
		return fmt.Sprintf("%s(0, %s)", name, addr), nil
	}
	return fmt.Sprintf("(*(%s))", addr), nil
}

// vstore implements %VSTORE(value, 0, addr).
func vstore(args []string, e *Expander) (string, error) {
	if len(args) < 3 {
		return "", fmt.Errorf("want 3 args (value, offset, addr), got %d", len(args))
	}
	value, offset, addr := args[0], args[1], args[2]
	if name := e.vars["%VSTORE_VALUE"]; name != "" {
		return fmt.Sprintf("%s(%s, %s, %s);\n", name, value, offset, addr), nil
	}
	return fmt.Sprintf("*(%s) = %s;\n", addr, value), nil
}

// conjugate implements %CONJUGATE(cond, var): negate var's imaginary lane
// when cond holds.
func conjugate(args []string, e *Expander) (string, error) {
	if len(args) < 2 {
		return "", fmt.Errorf("want 2 args (cond, var), got %d", len(args))
	}
	cond, v := args[0], args[1]
	return fmt.Sprintf("if (%s) { %s.odd = -%s.odd; }\n", cond, v, v), nil
}

// clearImaginary implements %CLEAR_IMAGINARY(var): zero var's imaginary lane.
func clearImaginary(args []string, e *Expander) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("want 1 arg (var), got 0")
	}
	return fmt.Sprintf("%s.odd = 0;\n", args[0]), nil
}

// complexJoin implements %COMPLEX_JOIN(dst, re, im).
func complexJoin(args []string, e *Expander) (string, error) {
	if len(args) < 3 {
		return "", fmt.Errorf("want 3 args (dst, re, im), got %d", len(args))
	}
	dst, re, im := args[0], args[1], args[2]
	return fmt.Sprintf("%s.even = %s;\n%s.odd = %s;\n", dst, re, dst, im), nil
}

// vloadWithIncx/vstoreWithIncx implement %VLOADWITHINCX/%VSTOREWITHINCX:
// strided element access for non-unit-increment vector operands (level-2
// routines with INCX_ONE/INCY_ONE unset, flag list).
func vloadWithIncx(args []string, e *Expander) (string, error) {
	if len(args) < 2 {
		return "", fmt.Errorf("want 2 args (addr, incx), got %d", len(args))
	}
	addr, incx := args[0], args[1]
	return fmt.Sprintf("%s[0 * (%s)]", addr, incx), nil
}

func vstoreWithIncx(args []string, e *Expander) (string, error) {
	if len(args) < 3 {
		return "", fmt.Errorf("want 3 args (value, addr, incx), got %d", len(args))
	}
	value, addr, incx := args[0], args[1], args[2]
	return fmt.Sprintf("%s[0 * (%s)] = %s;\n", addr, incx, value), nil
}

// treeReduce emits a work-group-wide local-memory tree reduction of var
// using combine (an infix operator like "+" or a binary function name like
// "min"/"hypot" selected via fnName).
func treeReduce(varName, combine, fnName string) string {
	step := fmt.Sprintf("scratch[lid] %s= scratch[lid + _s];\n", combine)
	if fnName != "" {
		step = fmt.Sprintf("scratch[lid] = %s(scratch[lid], scratch[lid + _s]);\n", fnName)
	}
	return fmt.Sprintf(
		"scratch[lid] = %s;\nbarrier(CLK_LOCAL_MEM_FENCE);\n"+
			"for (uint _s = get_local_size(0) / 2; _s > 0; _s >>= 1) {\n"+
			"    if (lid < _s) { %s    }\n"+
			"    barrier(CLK_LOCAL_MEM_FENCE);\n"+
			"}\n",
		varName, step,
	)
}

// reduceTree implements the simple %REDUCE_SUM/%REDUCE_MIN/%REDUCE_HYPOT/
// %REDUCE_SUM_REAL_HV family: a single-operand work-group tree reduction.
func reduceTree(combine, fnName string) directiveFn {
	return func(args []string, e *Expander) (string, error) {
		if len(args) < 1 {
			return "", fmt.Errorf("want at least 1 arg (var), got 0")
		}
		return treeReduce(args[0], combine, fnName), nil
	}
}

// reductionImpl names the four index-and-implementation variants of
// %REDUCTION_BY_MAX/%REDUCE_MAX: {atomic-first-low-index,
// register-first-low-index, atomic-first-high-index, register-first-high-index}.
// indexedMaxReduce does not branch on the impl argument: it only echoes it
// into a comment, and every impl value gets the same register-based tree
// with a strict greater-than update, which keeps the lower slot's entry on
// ties.
type reductionImpl int

const (
	implAtomicLowIndex reductionImpl = iota
	implRegisterLowIndex
	implAtomicHighIndex
	implRegisterHighIndex
)

// reduceMax implements %REDUCE_MAX(val[, idx, impl]): plain value reduction
// when called with one argument, or amax-with-index tracking when called
// with the (val, idx, impl) triple.
func reduceMax(args []string, e *Expander) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("want at least 1 arg (val), got 0")
	}
	if len(args) == 1 {
		return treeReduce(args[0], "max", "max"), nil
	}
	if len(args) < 3 {
		return "", fmt.Errorf("indexed form wants 3 args (val, idx, impl), got %d", len(args))
	}
	return indexedMaxReduce(args[0], args[1], args[2]), nil
}

func indexedMaxReduce(val, idx, impl string) string {
	return fmt.Sprintf(
		"scratch_val[lid] = %s;\nscratch_idx[lid] = %s;\n"+
			"barrier(CLK_LOCAL_MEM_FENCE);\n"+
			"for (uint _s = get_local_size(0) / 2; _s > 0; _s >>= 1) {\n"+
			"    if (lid < _s) {\n"+
			"        // impl=%s (same update for every impl: strict >, lower slot kept on ties)\n"+
			"        if (scratch_val[lid + _s] > scratch_val[lid]) {\n"+
			"            scratch_val[lid] = scratch_val[lid + _s];\n"+
			"            scratch_idx[lid] = scratch_idx[lid + _s];\n"+
			"        }\n"+
			"    }\n"+
			"    barrier(CLK_LOCAL_MEM_FENCE);\n"+
			"}\n",
		val, idx, impl,
	)
}

// reductionBy implements %REDUCTION_BY_SUM/%REDUCTION_BY_MIN/
// %REDUCTION_BY_HYPOT(var[, extra]): the statement form that both performs
// the tree reduction and writes the final scalar back to var's slot 0.
func reductionBy(combine, fnName string) directiveFn {
	return func(args []string, e *Expander) (string, error) {
		if len(args) < 1 {
			return "", fmt.Errorf("want at least 1 arg (var), got 0")
		}
		return treeReduce(args[0], combine, fnName) + fmt.Sprintf("%s = scratch[0];\n", args[0]), nil
	}
}

// reductionByMax implements %REDUCTION_BY_MAX(val, max, idx, impl): the
// four-argument amax-with-index reduction form.
func reductionByMax(args []string, e *Expander) (string, error) {
	if len(args) < 4 {
		return "", fmt.Errorf("want 4 args (val, max, idx, impl), got %d", len(args))
	}
	val, max, idx, impl := args[0], args[1], args[2], args[3]
	return indexedMaxReduce(val, idx, impl) + fmt.Sprintf("%s = scratch_val[0];\n%s = scratch_idx[0];\n", max, idx), nil
}

// reductionBySSQ implements %REDUCTION_BY_SSQ(var[, extra]): the classic
// (scale, sum-of-squares) rescaling pair that preserves precision across the
// reduction.
func reductionBySSQ(args []string, e *Expander) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("want at least 1 arg (var), got 0")
	}
	v := args[0]
	return fmt.Sprintf(
		"if (%s != 0) {\n"+
			"    %s absval = fabs(%s);\n"+
			"    if (scale < absval) {\n"+
			"        ssq = 1 + ssq * (scale / absval) * (scale / absval);\n"+
			"        scale = absval;\n"+
			"    } else {\n"+
			"        ssq = ssq + (absval / scale) * (absval / scale);\n"+
			"    }\n"+
			"}\n",
		v, e.vars["%TYPE"], v,
	), nil
}

// absLike implements %VABS/%ABS: hypot of the even/odd lanes for complex
// types, fabs otherwise.
func absLike(args []string, e *Expander) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("want 1 arg (var), got 0")
	}
	v := args[0]
	if e.cfg.BaseType.IsComplex() {
		return fmt.Sprintf("hypot(%s.even, %s.odd)", v, v), nil
	}
	return fmt.Sprintf("fabs(%s)", v), nil
}
