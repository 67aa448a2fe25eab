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

package cmd

import (
	"fmt"

	"github.com/clblast-go/clblast/autotune"
	"github.com/clblast-go/clblast/codegen"
	"github.com/clblast-go/clblast/kflags"
	"github.com/clblast-go/clblast/pattern"
	"github.com/clblast-go/clblast/subdim"
)

// baseTypeFor mirrors solve.baseTypeFor; duplicated here rather than
// exported from solve to keep the CLI's only dependency on that package's
// internals at zero.
func baseTypeFor(dtype kflags.DataType) codegen.BaseType {
	switch dtype {
	case kflags.F64:
		return codegen.Double
	case kflags.C32:
		return codegen.Complex
	case kflags.C64:
		return codegen.DoubleComplex
	default:
		return codegen.Single
	}
}

// findPattern locates the registered pattern funcID/patternName name; the
// autotune.Runner signature carries the name rather than the pattern value
// itself, so every Runner implementation must do this lookup.
func findPattern(registry *pattern.Registry, funcID kflags.FuncID, patternName string) (pattern.Pattern, bool) {
	for _, p := range registry.Patterns(funcID) {
		if p.Name == patternName {
			return p, true
		}
	}
	return pattern.Pattern{}, false
}

// dryRunCost is a deterministic stand-in for the real device runtime's
// wall-clock measurement. Lower is "faster": the cost is the outer tile's
// volume (X*Y*Bwidth) per work-item, so smaller tiles and larger work-groups
// cost less, and it is raised by 25% when the outer bandwidth does not
// divide evenly by the inner bandwidth. It does not claim to predict any
// actual hardware number.
func dryRunCost(dec subdim.Decomposition) float64 {
	outer, inner := dec.Subdims[0], dec.Subdims[1]
	threads := float64(dec.PGran.WgSize[0] * dec.PGran.WgSize[1])
	if threads < 1 {
		threads = 1
	}
	work := float64(outer.X*outer.Y) * float64(max1(outer.Bwidth))
	cost := work / threads
	if inner.Bwidth > 0 && outer.Bwidth%inner.Bwidth != 0 {
		cost *= 1.25 // uneven bandwidth split costs an extra partial-tile pass
	}
	return cost / 1e6
}

func max1(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

// expandKernelSource generates and expands a candidate's kernel source,
// the same path the library's solver takes on a kernel-cache miss.
func expandKernelSource(registry *pattern.Registry, funcID kflags.FuncID, patternName string, dec subdim.Decomposition, dtype kflags.DataType, flags kflags.Flags) (string, error) {
	p, ok := findPattern(registry, funcID, patternName)
	if !ok {
		return "", fmt.Errorf("clblast-tune: unknown pattern %s for %s", patternName, funcID)
	}
	if p.Ops.GenKernel == nil {
		return "", fmt.Errorf("clblast-tune: pattern %s has no GenKernel", patternName)
	}
	buildOpts := ""
	if p.Ops.SetBuildOptions != nil {
		buildOpts = p.Ops.SetBuildOptions(nil)
	}
	src, err := p.Ops.GenKernel(dec.Subdims, dec.PGran, flags, buildOpts)
	if err != nil {
		return "", err
	}
	exp := codegen.NewExpander(codegen.Config{
		BaseType:          baseTypeFor(dtype),
		VectorWidth:       1,
		EnableVectorLoad:  true,
		EnableVectorStore: true,
		WorkgroupSize:     dec.PGran.WgSize[0] * dec.PGran.WgSize[1],
	})
	for name, val := range kflags.CondNames(flags) {
		exp.SetCond(name, val)
	}
	return exp.Expand(src)
}

// newCompileCheckRunner returns an autotune.Runner that exercises C2's
// GenKernel and C5's Expander for every candidate instead of dispatching to
// a real device: a candidate "runs" by generating and expanding its kernel
// source, failing the run if that fails, and otherwise reporting
// dryRunCost's synthetic time. This keeps the CLI's tuning runs meaningful (it
// still catches a pattern/flags combination whose generated source the
// expander rejects) without fabricating a hardware timing model.
func newCompileCheckRunner(registry *pattern.Registry) autotune.Runner {
	return func(funcID kflags.FuncID, patternName string, dec subdim.Decomposition, dtype kflags.DataType, flags kflags.Flags, bucket int) (float64, error) {
		if _, err := expandKernelSource(registry, funcID, patternName, dec, dtype, flags); err != nil {
			return 0, err
		}
		return dryRunCost(dec), nil
	}
}

// newKernelCompiler returns the autotune.CompileFn --store-kernels uses:
// the persisted "binary" is the expanded device source, which is what a
// runtime without an attached device can faithfully produce.
func newKernelCompiler(registry *pattern.Registry) autotune.CompileFn {
	return func(funcID kflags.FuncID, patternName string, dec subdim.Decomposition, dtype kflags.DataType, flags kflags.Flags) ([]byte, error) {
		src, err := expandKernelSource(registry, funcID, patternName, dec, dtype, flags)
		if err != nil {
			return nil, err
		}
		return []byte(src), nil
	}
}
