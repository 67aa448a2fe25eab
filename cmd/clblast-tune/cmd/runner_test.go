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
	"testing"

	"github.com/clblast-go/clblast/kflags"
	"github.com/clblast-go/clblast/pattern"
	"github.com/clblast-go/clblast/pattern/builtin"
	"github.com/clblast-go/clblast/subdim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDecomposition() subdim.Decomposition {
	return subdim.Decomposition{
		NrLevels: 2,
		Subdims: [subdim.MaxSubdims]subdim.SubproblemDim{
			{Y: 32, X: 32, Bwidth: 16},
			{ItemY: 4, ItemX: 4, Bwidth: 8},
		},
		PGran: subdim.PGranularity{WgDim: 2, WgSize: [2]int{8, 8}, WavefrontSize: 64, MaxWorkGroupSize: 256},
	}
}

func TestNewCompileCheckRunnerSucceedsForARegisteredPattern(t *testing.T) {
	r := pattern.NewRegistry()
	builtin.Register(r)
	run := newCompileCheckRunner(r)

	seconds, err := run(kflags.FuncGEMM, "gemm-buffers", testDecomposition(), kflags.F32, kflags.BetaZero, 0)
	require.NoError(t, err)
	assert.Greater(t, seconds, 0.0)
}

func TestNewCompileCheckRunnerRejectsAnUnknownPattern(t *testing.T) {
	r := pattern.NewRegistry()
	builtin.Register(r)
	run := newCompileCheckRunner(r)

	_, err := run(kflags.FuncGEMM, "does-not-exist", testDecomposition(), kflags.F32, 0, 0)
	assert.Error(t, err)
}

func TestNewKernelCompilerProducesExpandedSource(t *testing.T) {
	r := pattern.NewRegistry()
	builtin.Register(r)
	compile := newKernelCompiler(r)

	b, err := compile(kflags.FuncGEMM, "gemm-buffers", testDecomposition(), kflags.F32, 0)
	require.NoError(t, err)
	assert.Contains(t, string(b), "__kernel void gemmBuffers")
	assert.NotContains(t, string(b), "%", "every directive must be expanded")
}

func TestDryRunCostPenalizesUnevenBandwidthSplit(t *testing.T) {
	even := testDecomposition()
	even.Subdims[1].Bwidth = 8 // divides outer Bwidth (16) evenly

	uneven := testDecomposition()
	uneven.Subdims[1].Bwidth = 5 // does not divide 16 evenly

	assert.Less(t, dryRunCost(even), dryRunCost(uneven))
}
