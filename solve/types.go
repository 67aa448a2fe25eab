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

// Package solve implements C10, the solution-sequence builder: the
// top-level orchestration that turns a BLAS call into a sequence of
// SolutionSteps, consulting every other component (device, kflags,
// pattern, subdim, codegen, kernelcache, storage, decompose, queue) along
// the way.
package solve

import (
	"github.com/clblast-go/clblast/decompose"
	"github.com/clblast-go/clblast/device"
	"github.com/clblast-go/clblast/kernelcache"
	"github.com/clblast-go/clblast/kflags"
	"github.com/clblast-go/clblast/pattern"
	"github.com/clblast-go/clblast/queue"
	"github.com/clblast-go/clblast/storage"
	"github.com/clblast-go/clblast/subdim"
)

// QueueContext pairs a command queue with the device it targets and that
// device's persistent tuning store, mirroring how C7/C1/C9 are consulted
// together once per queue.
type QueueContext struct {
	Queue  *queue.CommandQueue
	Device device.Descriptor
	Store  *storage.Store // nil means "no store opened for this device"
}

// BlasKargs is the public argument bundle a caller passes to MakeSolutionSeq.
type BlasKargs struct {
	FuncID   kflags.FuncID
	Args     decompose.Args
	Queues   []QueueContext
	WaitList []*queue.Event
}

// Solver bundles the process-wide, read-only-after-init state: the pattern
// registry and the in-memory kernel cache. It also holds the scratch-image
// pool.
type Solver struct {
	Registry *pattern.Registry
	Cache    *kernelcache.Cache
	Scratch  *ScratchPool
}

// NewSolver wires a ready-to-use Solver around a pattern registry.
func NewSolver(registry *pattern.Registry) *Solver {
	return &Solver{
		Registry: registry,
		Cache:    kernelcache.New(),
		Scratch:  NewScratchPool(),
	}
}

// ResolvedStep is one fully-resolved kernel launch: the decomposed Args and
// flags, the chosen pattern/granulation/vectorization, the NDRange, any
// scratch images acquired for image-backed operands, and the event this
// step's kernel was (or will be) submitted under.
type ResolvedStep struct {
	Step          *decompose.Step
	PatternName   string
	Decomposition subdim.Decomposition
	Flags         kflags.Flags
	Vectorization decompose.Vectorization
	GlobalWS      [2]int
	Kernel        *kernelcache.Entry
	Scratch       []*ScratchImage
	Event         *queue.Event

	deviceIdentity string
}
