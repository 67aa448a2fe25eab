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

// Package decompose implements C9: splitting a BLAS problem across command
// queues (queue sharding) and splitting compound operations (TRMM/TRSM,
// SYRK, SYR2K) into chains of simpler steps with event dependencies between
// them. Chain edges are recorded as lightweight StepEvents rather than real
// queue events, so this package depends only on kflags (and on subdim for
// tail detection); pattern, codegen, kernelcache, storage and queue are
// consulted per-step by package solve, one layer up.
package decompose

import "github.com/clblast-go/clblast/kflags"

// DivisionAlignment is the queue-sharding alignment: shares are
// rounded to whole multiples of this many elements.
const DivisionAlignment = 128

// Args is the subset of a BLAS call's argument bundle the decomposer reads
// or rewrites. Alpha/Beta are carried as complex128 regardless of dtype so
// a single set of arithmetic helpers covers real and complex problems; for
// a real dtype only the real part is meaningful.
type Args struct {
	Dtype  kflags.DataType
	Order  kflags.Order
	Side   kflags.Side
	Uplo   kflags.Uplo
	TransA kflags.Transpose
	TransB kflags.Transpose
	Diag   kflags.Diag

	M, N, K     int
	Alpha, Beta complex128

	LDA, LDB, LDC int

	// OffA, OffBX, OffCY are the element offsets into A, B/X and C/Y that
	// the GEMM offset fold writes into, replacing OffsetM/OffsetN/OffsetK.
	OffA, OffBX, OffCY int
	// OffsetM, OffsetN, OffsetK are the sub-block start offsets GEMM
	// folding consumes and clears to zero.
	OffsetM, OffsetN, OffsetK int

	IncX, IncY int
}

// sizeofDtype returns sizeof(dtype) in bytes, derived from NrFloats since
// kflags does not otherwise carry byte sizes.
func sizeofDtype(d kflags.DataType) int { return 4 * d.NrFloats() }

// DecompositionThreshold is DECOMPOSITION_THRESHOLD(dtype) =
// 2560*4/sizeof(dtype).
func DecompositionThreshold(dtype kflags.DataType) int {
	return 2560 * 4 / sizeofDtype(dtype)
}

// Step is one kernel-launch-producing unit of work: a function, its
// argument bundle and derived flags, targeted at a specific queue, with
// the event wait-list/completion-event pair chain ordering requires. Event is allocated up front (by the decomposer) so a successor
// step's WaitList can reference it before the predecessor's kernel is
// actually submitted to its queue by package solve.
type Step struct {
	FuncID kflags.FuncID
	Args   Args
	Flags  kflags.Flags

	QueueIndex int // index into the caller's queues slice

	WaitList []*StepEvent
	Event    *StepEvent
}

// StepEvent is the decomposer's own lightweight placeholder for a
// queue.Event: decomposition happens before any kernel is actually
// submitted, so chain edges are recorded here and package solve threads
// them onto real queue.Event objects returned by queue.CommandQueue.Submit
// as it enqueues each step's kernels.
type StepEvent struct {
	id int
}

// Chain is a sequential list of Steps produced either directly (one queue,
// one step) or by compound decomposition (TRMM/TRSM -> 3 steps, SYRK -> 1
// or 2, SYR2K -> its two SYRK halves of 1 or 2 steps each, joined into one
// Chain). Chains produced by queue sharding are mutually
// independent: no step in one Chain waits on an event from another.
type Chain []*Step

func newEvent(counter *int) *StepEvent {
	*counter++
	return &StepEvent{id: *counter}
}
