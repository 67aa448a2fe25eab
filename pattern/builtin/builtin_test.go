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
	"testing"

	"github.com/clblast-go/clblast/codegen"
	"github.com/clblast-go/clblast/kflags"
	"github.com/clblast-go/clblast/pattern"
	"github.com/clblast-go/clblast/subdim"
	"github.com/stretchr/testify/require"
)

func TestRegisterPopulatesAllFunctions(t *testing.T) {
	r := pattern.NewRegistry()
	Register(r)

	for _, fn := range []kflags.FuncID{
		kflags.FuncGEMM, kflags.FuncTRMM, kflags.FuncTRSM,
		kflags.FuncSYRK, kflags.FuncSYR2K, kflags.FuncGEMV, kflags.FuncSYMV,
	} {
		require.Greater(t, r.NumPatterns(fn), 0, "func=%v", fn)
	}
}

// TestTRSMRegistersExactlyTwoPatterns documents that the deprecated third
// TRSM pattern is never ported.
func TestTRSMRegistersExactlyTwoPatterns(t *testing.T) {
	r := pattern.NewRegistry()
	Register(r)
	require.Equal(t, 2, r.NumPatterns(kflags.FuncTRSM))
}

func TestGEMMPatternsSelectableUnderLegacyScorer(t *testing.T) {
	r := pattern.NewRegistry()
	Register(r)
	idx, ok := r.Select(kflags.FuncGEMM, pattern.SelectArgs{MaxImages: 2})
	require.True(t, ok)
	require.Equal(t, 1, idx) // images pattern scores higher and fits the budget
}

func TestGEMMFallsBackToBuffersWhenNoImageBudget(t *testing.T) {
	r := pattern.NewRegistry()
	Register(r)
	idx, ok := r.Select(kflags.FuncGEMM, pattern.SelectArgs{MaxImages: 0})
	require.True(t, ok)
	require.Equal(t, 0, idx)
}

// TestEveryBuiltinPatternGeneratesExpandableKernel exercises C2+C5 end to
// end: every registered pattern's genKernel operation must produce source
// that codegen.Expand accepts without error, for both a plain and a
// beta-nonzero/conjugated flag combination.
func TestEveryBuiltinPatternGeneratesExpandableKernel(t *testing.T) {
	r := pattern.NewRegistry()
	Register(r)

	dec := [subdim.MaxSubdims]subdim.SubproblemDim{
		{Y: 32, X: 32, Bwidth: 16, ItemY: 4, ItemX: 4},
		{Y: 8, X: 8, Bwidth: 8, ItemY: 1, ItemX: 1},
	}
	pgran := subdim.PGranularity{WgDim: 2, WgSize: [2]int{8, 8}, WavefrontSize: 64, MaxWorkGroupSize: 256}

	for _, fn := range []kflags.FuncID{
		kflags.FuncGEMM, kflags.FuncTRMM, kflags.FuncTRSM,
		kflags.FuncSYRK, kflags.FuncSYR2K, kflags.FuncGEMV, kflags.FuncSYMV,
	} {
		for _, p := range r.Patterns(fn) {
			require.NotNil(t, p.Ops.GenKernel, "func=%v pattern=%s", fn, p.Name)

			for _, flags := range []kflags.Flags{0, kflags.BetaZero | kflags.ConjA | kflags.TransA} {
				src, err := p.Ops.GenKernel(dec, pgran, flags, "-DTEST=1")
				require.NoError(t, err, "func=%v pattern=%s", fn, p.Name)

				exp := codegen.NewExpander(codegen.Config{BaseType: codegen.Single, VectorWidth: 1, EnableVectorLoad: true, EnableVectorStore: true})
				for name, val := range kflags.CondNames(flags) {
					exp.SetCond(name, val)
				}
				out, err := exp.Expand(src)
				require.NoError(t, err, "func=%v pattern=%s", fn, p.Name)
				require.NotContains(t, out, "%", "func=%v pattern=%s leaked an unexpanded directive: %s", fn, p.Name, out)
			}
		}
	}
}
