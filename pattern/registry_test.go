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

package pattern

import (
	"testing"

	"github.com/clblast-go/clblast/kflags"
	"github.com/stretchr/testify/require"
)

func TestSelectForcedDefaultOverridesScoring(t *testing.T) {
	r := NewRegistry()
	r.Register(kflags.FuncGEMM, Pattern{Name: "a"})
	r.Register(kflags.FuncGEMM, Pattern{Name: "b"})
	r.SetDefaultPattern(kflags.FuncGEMM, 1)
	idx, ok := r.Select(kflags.FuncGEMM, SelectArgs{})
	require.True(t, ok)
	require.Equal(t, 1, idx)
}

func TestSelectScoredPatternsPicksHighest(t *testing.T) {
	r := NewRegistry()
	r.Register(kflags.FuncGEMM, Pattern{Name: "low", Ops: Ops{GetPatternPerf: func(kflags.Flags, int, int, int) int { return 1 }}})
	r.Register(kflags.FuncGEMM, Pattern{Name: "high", Ops: Ops{GetPatternPerf: func(kflags.Flags, int, int, int) int { return 5 }}})
	idx, ok := r.Select(kflags.FuncGEMM, SelectArgs{})
	require.True(t, ok)
	require.Equal(t, 1, idx)
}

func TestSelectScoredPatternsExcludesNegative(t *testing.T) {
	r := NewRegistry()
	r.Register(kflags.FuncGEMM, Pattern{Name: "cannot", Ops: Ops{GetPatternPerf: func(kflags.Flags, int, int, int) int { return -1 }}})
	r.Register(kflags.FuncGEMM, Pattern{Name: "ok", Ops: Ops{GetPatternPerf: func(kflags.Flags, int, int, int) int { return 0 }}})
	idx, ok := r.Select(kflags.FuncGEMM, SelectArgs{})
	require.True(t, ok)
	require.Equal(t, 1, idx)
}

func TestSelectLegacyFallbackWhenAnyPatternLacksPerf(t *testing.T) {
	r := NewRegistry()
	r.Register(kflags.FuncTRMM, Pattern{Name: "buffers", Extra: Extra{MobjA: TierGlobal, MobjB: TierGlobal}})
	r.Register(kflags.FuncTRMM, Pattern{Name: "images", Extra: Extra{MobjA: TierImage, MobjB: TierGlobal}})
	idx, ok := r.Select(kflags.FuncTRMM, SelectArgs{MaxImages: 2})
	require.True(t, ok)
	require.Equal(t, 1, idx)
}

func TestSelectLegacySkipsPatternsOverImageBudget(t *testing.T) {
	r := NewRegistry()
	r.Register(kflags.FuncTRMM, Pattern{Name: "buffers", Extra: Extra{MobjA: TierGlobal, MobjB: TierGlobal}})
	r.Register(kflags.FuncTRMM, Pattern{Name: "images", Extra: Extra{MobjA: TierImage, MobjB: TierImage}})
	idx, ok := r.Select(kflags.FuncTRMM, SelectArgs{MaxImages: 1})
	require.True(t, ok)
	require.Equal(t, 0, idx)
}

// TestSelectLegacyMonotonicity: repeated calls with
// the same (func, maxImages) agree, and increasing maxImages never worsens
// the result (never drops to a lower-scoring candidate).
func TestSelectLegacyMonotonicity(t *testing.T) {
	r := NewRegistry()
	r.Register(kflags.FuncSYRK, Pattern{Name: "buffers", Extra: Extra{MobjA: TierGlobal, MobjB: TierGlobal}})
	r.Register(kflags.FuncSYRK, Pattern{Name: "images", Extra: Extra{MobjA: TierImage, MobjB: TierImage}})

	idx1, ok1 := r.Select(kflags.FuncSYRK, SelectArgs{MaxImages: 0})
	idx2, ok2 := r.Select(kflags.FuncSYRK, SelectArgs{MaxImages: 0})
	require.True(t, ok1)
	require.True(t, ok2)
	require.Equal(t, idx1, idx2)

	idxMore, okMore := r.Select(kflags.FuncSYRK, SelectArgs{MaxImages: 2})
	require.True(t, okMore)
	require.GreaterOrEqual(t, legacyScoreOf(r, kflags.FuncSYRK, idxMore), legacyScoreOf(r, kflags.FuncSYRK, idx1))
}

func legacyScoreOf(r *Registry, funcID kflags.FuncID, idx int) int {
	p := r.Patterns(funcID)[idx]
	return legacyCacheScore(p.Extra.MobjA) + legacyCacheScore(p.Extra.MobjB)
}

func TestNumPatternsReflectsDeprecatedTRSMException(t *testing.T) {
	r := NewRegistry()
	r.Register(kflags.FuncTRSM, Pattern{Name: "buffers"})
	r.Register(kflags.FuncTRSM, Pattern{Name: "images"})
	require.Equal(t, 2, r.NumPatterns(kflags.FuncTRSM))
}

func TestApplyEnvOverridesPinsDefaultPattern(t *testing.T) {
	r := NewRegistry()
	r.Register(kflags.FuncGEMM, Pattern{Name: "buffers"})
	r.Register(kflags.FuncGEMM, Pattern{Name: "images"})

	t.Setenv("AMD_CLBLAS_GEMM_IMPLEMENTATION", "1")
	r.ApplyEnvOverrides()

	idx, ok := r.Select(kflags.FuncGEMM, SelectArgs{})
	require.True(t, ok)
	require.Equal(t, 1, idx)
}

func TestApplyEnvOverridesIgnoresBadValues(t *testing.T) {
	r := NewRegistry()
	r.Register(kflags.FuncTRSM, Pattern{Name: "buffers"})

	t.Setenv("AMD_CLBLAS_TRSM_IMPLEMENTATION", "7")
	r.ApplyEnvOverrides()
	idx, ok := r.Select(kflags.FuncTRSM, SelectArgs{})
	require.True(t, ok)
	require.Equal(t, 0, idx)

	t.Setenv("AMD_CLBLAS_TRSM_IMPLEMENTATION", "not-a-number")
	r.ApplyEnvOverrides()
	_, ok = r.Select(kflags.FuncTRSM, SelectArgs{})
	require.True(t, ok)
}

func TestSelectUnregisteredFunctionFails(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Select(kflags.FuncGEMV, SelectArgs{})
	require.False(t, ok)
}

func TestPatternHooksTranslatesStaticFlags(t *testing.T) {
	p := Pattern{
		Ops: Ops{GetFlags: func() StaticFlags { return SquareBlocks }},
	}
	hooks := p.Hooks()
	require.True(t, hooks.WantsSquareBlocks)
}
