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

package solve

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clblast-go/clblast/decompose"
	"github.com/clblast-go/clblast/kflags"
	"github.com/clblast-go/clblast/pattern"
	"github.com/clblast-go/clblast/pattern/builtin"
)

// builtinSolver wires the full builtin pattern set, so these tests exercise
// the same path a library caller gets: registered patterns, default
// granulation policy, kernel generation through the template expander.
func builtinSolver() *Solver {
	r := pattern.NewRegistry()
	builtin.Register(r)
	return NewSolver(r)
}

// TestGEMMSingleQueueAlignedProducesSquareTiles drives a square,
// tile-aligned single-precision GEMM end to end: one step, square 32-wide
// outer tiles, an 8x8 work-group, BETA_ZERO set, and no tail flags.
func TestGEMMSingleQueueAlignedProducesSquareTiles(t *testing.T) {
	s := builtinSolver()
	qc := newQueueContext()
	defer qc.Queue.Close()

	k := BlasKargs{
		FuncID: kflags.FuncGEMM,
		Args: decompose.Args{
			Dtype: kflags.F32, Order: kflags.ColMajor,
			TransA: kflags.NoTrans, TransB: kflags.NoTrans,
			M: 1024, N: 1024, K: 1024,
			Alpha: 1, Beta: 0,
			LDA: 1024, LDB: 1024, LDC: 1024,
		},
		Queues: []QueueContext{qc},
	}

	steps, err := s.MakeSolutionSeq(k)
	require.NoError(t, err)
	require.Len(t, steps, 1)

	st := steps[0]
	require.Equal(t, 32, st.Decomposition.Subdims[0].X)
	require.Equal(t, 32, st.Decomposition.Subdims[0].Y)
	require.Equal(t, 32, st.Decomposition.Subdims[0].Bwidth)
	require.Equal(t, 2, st.Decomposition.PGran.WgDim)
	require.Equal(t, [2]int{8, 8}, st.Decomposition.PGran.WgSize)

	require.True(t, st.Flags.Has(kflags.BetaZero))
	require.False(t, st.Flags.Any(kflags.TailsM|kflags.TailsN|kflags.TailsK))

	// 1024/32 = 32 blocks per axis, 8 threads each.
	require.Equal(t, [2]int{256, 256}, st.GlobalWS)

	require.NotNil(t, st.Kernel)
	require.NoError(t, st.Event.Wait())

	s.FreeSolutionSeq(steps)
	require.Equal(t, 1, st.Kernel.Refcount(), "only the cache's own reference remains")
}

// TestGEMMWithRaggedDimensionsSetsTailFlags drives the same GEMM with
// dimensions one off the tile size: both outer and per-thread tail bits
// must come back set for M and N, while the evenly-divided K stays clean.
func TestGEMMWithRaggedDimensionsSetsTailFlags(t *testing.T) {
	s := builtinSolver()
	qc := newQueueContext()
	defer qc.Queue.Close()

	k := BlasKargs{
		FuncID: kflags.FuncGEMM,
		Args: decompose.Args{
			Dtype: kflags.F32, Order: kflags.ColMajor,
			M: 1025, N: 1023, K: 1024,
			Alpha: 1, Beta: 1,
			LDA: 1025, LDB: 1023, LDC: 1025,
		},
		Queues: []QueueContext{qc},
	}

	steps, err := s.MakeSolutionSeq(k)
	require.NoError(t, err)
	require.Len(t, steps, 1)

	st := steps[0]
	require.True(t, st.Flags.Has(kflags.TailsM))
	require.True(t, st.Flags.Has(kflags.TailsN))
	require.False(t, st.Flags.Has(kflags.TailsK))
	require.True(t, st.Flags.Has(kflags.TailsMLower))
	require.True(t, st.Flags.Has(kflags.TailsNLower))
	require.False(t, st.Flags.Has(kflags.BetaZero))
}

// TestTRSMDecomposesIntoEventChainedTriple drives a large left-side TRSM
// through the whole pipeline: the three resolved steps (TRSM, GEMM, TRSM)
// come back in order, each with its own compiled kernel, and the events
// complete in chain order.
func TestTRSMDecomposesIntoEventChainedTriple(t *testing.T) {
	s := builtinSolver()
	qc := newQueueContext()
	defer qc.Queue.Close()

	k := BlasKargs{
		FuncID: kflags.FuncTRSM,
		Args: decompose.Args{
			Dtype: kflags.F32, Side: kflags.SideLeft, Uplo: kflags.Lower,
			M: 4096, N: 512, Alpha: 2,
			LDA: 4096, LDB: 4096, LDC: 4096,
		},
		Queues: []QueueContext{qc},
	}

	steps, err := s.MakeSolutionSeq(k)
	require.NoError(t, err)
	require.Len(t, steps, 3)

	require.Equal(t, kflags.FuncTRSM, steps[0].Step.FuncID)
	require.Equal(t, kflags.FuncGEMM, steps[1].Step.FuncID)
	require.Equal(t, kflags.FuncTRSM, steps[2].Step.FuncID)

	// The first TRSM step checks out one of the device's two scratch images;
	// the GEMM's image pattern then cannot get its two, so selection retries
	// under a reduced budget and lands on the buffers pattern.
	require.Equal(t, "trsm-images-lds", steps[0].PatternName)
	require.Len(t, steps[0].Scratch, 1)
	require.Equal(t, "gemm-buffers", steps[1].PatternName)
	require.Empty(t, steps[1].Scratch)

	for _, st := range steps {
		require.NotNil(t, st.Kernel)
		require.NotNil(t, st.Event)
	}
	require.NoError(t, steps[2].Event.Wait())
	require.True(t, steps[0].Event.Signaled())
	require.True(t, steps[1].Event.Signaled())
}

// TestGEMVStripesAcrossUnevenQueues shards a tall GEMV across two queues
// whose compute-unit shares are 24 and 8: the first queue takes the
// block-aligned 24/32 share of the rows, the second takes the remainder.
func TestGEMVStripesAcrossUnevenQueues(t *testing.T) {
	s := builtinSolver()
	big := newQueueContext()
	big.Device.ComputeUnits = 24
	small := newQueueContext()
	small.Device.ComputeUnits = 8
	defer big.Queue.Close()
	defer small.Queue.Close()

	k := BlasKargs{
		FuncID: kflags.FuncGEMV,
		Args: decompose.Args{
			Dtype: kflags.F32,
			M:     10000, N: 500,
			Alpha: 1, LDA: 10000, IncX: 1, IncY: 1,
		},
		Queues: []QueueContext{big, small},
	}

	steps, err := s.MakeSolutionSeq(k)
	require.NoError(t, err)
	require.Len(t, steps, 2)

	require.Equal(t, 7680, steps[0].Step.Args.M)
	require.Equal(t, 0, steps[0].Step.Args.OffsetM)
	require.Equal(t, 10000-7680, steps[1].Step.Args.M)
	require.Equal(t, 7680, steps[1].Step.Args.OffsetM)

	// Sharded steps are independent: neither waits on the other's event.
	require.Empty(t, steps[0].Step.WaitList)
	require.Empty(t, steps[1].Step.WaitList)
	require.NoError(t, steps[0].Event.Wait())
	require.NoError(t, steps[1].Event.Wait())
}

// TestOutOfOrderQueueAvoidsImagePatterns pins the image budget to zero: the
// selector must fall back to the buffers pattern instead of failing.
func TestOutOfOrderQueueAvoidsImagePatterns(t *testing.T) {
	s := builtinSolver()
	qc := newQueueContext()
	qc.Device.QueueOutOfOrder = true
	defer qc.Queue.Close()

	k := BlasKargs{
		FuncID: kflags.FuncGEMM,
		Args: decompose.Args{
			Dtype: kflags.F32, M: 512, N: 512, K: 512,
			Alpha: 1, LDA: 512, LDB: 512, LDC: 512,
		},
		Queues: []QueueContext{qc},
	}

	steps, err := s.MakeSolutionSeq(k)
	require.NoError(t, err)
	require.Equal(t, "gemm-buffers", steps[0].PatternName)
}
