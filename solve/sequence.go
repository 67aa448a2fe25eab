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
	"fmt"

	"github.com/clblast-go/clblast/codegen"
	"github.com/clblast-go/clblast/decompose"
	"github.com/clblast-go/clblast/device"
	"github.com/clblast-go/clblast/kernelcache"
	"github.com/clblast-go/clblast/kflags"
	"github.com/clblast-go/clblast/pattern"
	"github.com/clblast-go/clblast/queue"
	"github.com/clblast-go/clblast/subdim"
)

// deriveArgFlags adapts decompose.Args into the narrow ArgFlags shape
// kflags.EncodeFlags reads.
func deriveArgFlags(a decompose.Args) kflags.ArgFlags {
	return kflags.ArgFlags{
		Dtype:      a.Dtype,
		Order:      a.Order,
		Side:       a.Side,
		Uplo:       a.Uplo,
		TransA:     a.TransA,
		TransB:     a.TransB,
		Diag:       a.Diag,
		BetaIsZero: a.Beta == 0,
		IncXOne:    a.IncX == 1,
		IncYOne:    a.IncY == 1,
	}
}

// baseTypeFor maps kflags.DataType onto the codegen.BaseType the generator
// is configured with.
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

// ldBytes approximates a leading dimension's byte span for the bank-aligned
// bucket check, using sizeof(dtype) = 4*NrFloats(dtype).
func ldBytes(ld int, dtype kflags.DataType) int { return ld * 4 * dtype.NrFloats() }

// MakeSolutionSeq is the top-level orchestration: it validates queues,
// derives flags, shards and compound-decomposes the
// problem (C9), then resolves each resulting step's pattern, granulation,
// tails/offsets, vectorization and kernel (C2/C4/C5/C6/C7), returning the
// full sequence or the first error encountered (with partial kernel
// references released).
func (s *Solver) MakeSolutionSeq(k BlasKargs) ([]*ResolvedStep, error) {
	if len(k.Queues) == 0 {
		return nil, ErrInvalidArgument
	}

	working := make([]QueueContext, 0, len(k.Queues))
	for _, qc := range k.Queues {
		if k.Args.Dtype.IsDouble() && !qc.Device.NativeDouble {
			continue // a device without native double cannot run this dtype
		}
		working = append(working, qc)
	}
	if len(working) == 0 {
		return nil, ErrInvalidArgument
	}

	baseFlags := kflags.EncodeFlags(deriveArgFlags(k.Args))

	cuShares := make([]int, len(working))
	for i, qc := range working {
		cuShares[i] = qc.Device.ComputeUnits
	}
	chains := decompose.Decompose(k.FuncID, k.Args, cuShares)

	var resolved []*ResolvedStep
	for _, chain := range chains {
		events := make(map[*decompose.StepEvent]*queue.Event)
		for _, step := range chain {
			qc := working[step.QueueIndex]
			flags := baseFlags | step.Flags

			rs, err := s.resolveStep(qc, step.FuncID, step.Args, flags)
			if err != nil {
				s.releaseAll(resolved)
				return nil, err
			}

			waits := resolveWaitList(step.WaitList, events, k.WaitList)
			launch := queue.KernelLaunch{
				Name:     fmt.Sprintf("%s/%s", step.FuncID, rs.PatternName),
				WaitList: waits,
				Run:      func() error { return nil },
			}
			rs.Event = qc.Queue.Submit(launch)
			if step.Event != nil {
				events[step.Event] = rs.Event
			}
			rs.Step = step
			resolved = append(resolved, rs)
		}
	}
	return resolved, nil
}

func resolveWaitList(stepWaits []*decompose.StepEvent, events map[*decompose.StepEvent]*queue.Event, userWaits []*queue.Event) []*queue.Event {
	if len(stepWaits) == 0 {
		return userWaits
	}
	out := make([]*queue.Event, 0, len(stepWaits)+len(userWaits))
	for _, w := range stepWaits {
		if ev, ok := events[w]; ok {
			out = append(out, ev)
		}
	}
	return append(out, userWaits...)
}

// releaseAll returns every kernel reference and scratch image acquired so
// far, freeing a partially built sequence after an error.
func (s *Solver) releaseAll(steps []*ResolvedStep) {
	for _, rs := range steps {
		if rs.Kernel != nil {
			s.Cache.PutKernel(rs.PatternName, rs.Kernel)
		}
		for _, img := range rs.Scratch {
			s.Scratch.Release(rs.deviceIdentity, img)
		}
	}
}

// FreeSolutionSeq releases a sequence built by MakeSolutionSeq: kernel
// references go back to the cache (destroyed at refcount zero) and scratch
// images back to the pool. Ownership of the sequence passes back to the
// Solver; the steps must not be used afterwards.
func (s *Solver) FreeSolutionSeq(steps []*ResolvedStep) {
	s.releaseAll(steps)
}

// errScratchBusy signals that the selected pattern's scratch images are all
// checked out; resolveStep retries selection with a smaller image budget.
var errScratchBusy = fmt.Errorf("solve: scratch images busy")

// imageTierCount is the number of scratch images a pattern's operand tiers
// demand.
func imageTierCount(e pattern.Extra) int {
	n := 0
	if e.MobjA == pattern.TierImage {
		n++
	}
	if e.MobjB == pattern.TierImage {
		n++
	}
	return n
}

// resolveStep resolves a single step, retrying pattern selection with a
// decreasing image budget when scratch images cannot be acquired and
// releasing this attempt's images between attempts.
func (s *Solver) resolveStep(qc QueueContext, funcID kflags.FuncID, args decompose.Args, flags kflags.Flags) (*ResolvedStep, error) {
	for budget := MaxImages(qc.Device.QueueOutOfOrder); budget >= 0; budget-- {
		rs, err := s.resolveStepWithBudget(qc, funcID, args, flags, budget)
		if err == errScratchBusy {
			continue
		}
		return rs, err
	}
	return nil, ErrOutOfDeviceResources
}

// resolveStepWithBudget is one selection attempt: pick pattern under the
// given image budget, pick granulation, fix up the arguments, detect
// tails/offsets, select vectorization, compute the NDRange, acquire scratch
// images, and fetch-or-build the compute kernel.
func (s *Solver) resolveStepWithBudget(qc QueueContext, funcID kflags.FuncID, args decompose.Args, flags kflags.Flags, maxImages int) (*ResolvedStep, error) {
	if qc.Device.Vendor == device.VendorAMD {
		flags = flags.Set(kflags.VendorAMD | kflags.EnableMAD)
	}
	selectArgs := pattern.SelectArgs{
		Flags: flags, M: args.M, N: args.N, K: args.K,
		MaxImages: maxImages, ImagesUnsupported: !qc.Device.ImageSupport,
		QueueOutOfOrder: qc.Device.QueueOutOfOrder,
	}
	idx, ok := s.Registry.Select(funcID, selectArgs)
	if !ok {
		return nil, ErrOutOfDeviceResources
	}
	p := s.Registry.Patterns(funcID)[idx]

	var lookup subdim.StorageLookup
	if qc.Store != nil {
		if qc.Store.Corrupt() {
			logStorageCorruptionOnce(qc.Device.Identity())
		} else if qc.Store.Exists() {
			lookup = qc.Store.Lookup(funcID)
		}
	}

	innerLD := args.LDA
	if hooks := p.Hooks(); hooks.InnerDecompositionAxis != nil && !hooks.InnerDecompositionAxis() {
		innerLD = args.LDB
	}

	dec := subdim.Choose(
		funcID, args.Dtype, flags, p.Name, p.Hooks(), qc.Device.Limits(),
		args.M, args.N, args.K, ldBytes(innerLD, args.Dtype), lookup,
	)

	if p.Ops.FixupArgs != nil {
		if fixed, ok := p.Ops.FixupArgs(args, dec.Subdims[0], flags).(decompose.Args); ok {
			args = fixed
		}
	}

	flags |= decompose.DetectFlags(dec, args)

	vec := decompose.SelectStepVectorization(args, funcID,
		p.Extra.MobjA == pattern.TierLDS || p.Extra.MobjB == pattern.TierLDS,
		dec.Subdims[0].X, dec.Subdims[0].Y, dec.Subdims[0].X)
	flags |= vec.Flags
	if p.Ops.SelectVectorization != nil {
		flags |= p.Ops.SelectVectorization(flags)
	}

	identity := qc.Device.Identity()
	scratch, err := s.acquireScratch(identity, p, flags, dec, vec)
	if err != nil {
		return nil, err
	}

	key := kernelcache.Key{
		Device: identity, Context: identity,
		NrDims: dec.NrLevels, Subdims: [2]subdim.SubproblemDim{dec.Subdims[0], dec.Subdims[1]},
	}
	extras := kernelcache.Extras{Pattern: p.Name, Dtype: int(args.Dtype), Flags: uint64(flags)}

	entry, err := s.Cache.GetOrBuild(p.Name, key, extras, nil, func() (any, error) {
		// A compiled binary persisted by the autotuner beats regenerating
		// and recompiling the source.
		if qc.Store != nil && qc.Store.Exists() && !qc.Store.Corrupt() {
			bucket := subdim.DimensionBucket(args.M, args.N, args.K)
			masked := flags & funcID.TuningMask()
			if info, ok := qc.Store.GetKernelInfo(funcID, p.Name, args.Dtype, masked, bucket); ok && len(info.Binaries[0]) > 0 {
				return info.Binaries[0], nil
			}
		}
		return s.generateKernel(p, dec, flags, args.Dtype)
	})
	if err != nil {
		for _, img := range scratch {
			s.Scratch.Release(identity, img)
		}
		return nil, fmt.Errorf("%w: %v", ErrCompilationFailure, err)
	}

	return &ResolvedStep{
		PatternName:    p.Name,
		Decomposition:  dec,
		Flags:          flags,
		Vectorization:  vec,
		GlobalWS:       calcThreads(p, dec, args),
		Kernel:         entry,
		Scratch:        scratch,
		deviceIdentity: identity,
	}, nil
}

// acquireScratch checks out one scratch image per image-backed operand,
// sized by the outer tile's pitch and height divided by the vector length
// and the pattern's image pack rate. Returns errScratchBusy when the pool
// cannot satisfy the demand, so the caller can retry selection with a
// smaller image budget.
func (s *Solver) acquireScratch(identity string, p pattern.Pattern, flags kflags.Flags, dec subdim.Decomposition, vec decompose.Vectorization) ([]*ScratchImage, error) {
	demand := imageTierCount(p.Extra)
	if demand == 0 {
		return nil, nil
	}
	outer := dec.Subdims[0]
	vecLen := vec.VecLen
	if vecLen < 1 {
		vecLen = 1
	}
	width := outer.Bwidth / vecLen
	if width < 1 {
		width = 1
	}
	height := outer.Y
	if height < 1 || height == subdim.Unused {
		height = outer.X
	}

	var acquired []*ScratchImage
	for role := 0; role < demand; role++ {
		w := width
		if p.Ops.ImgPackMode != nil {
			if rate, _ := p.Ops.ImgPackMode(flags, outer, role); rate > 1 {
				w = (w + rate - 1) / rate
			}
		}
		img, ok := s.Scratch.Acquire(identity, w, height)
		if !ok {
			for _, a := range acquired {
				s.Scratch.Release(identity, a)
			}
			return nil, errScratchBusy
		}
		acquired = append(acquired, img)
	}
	return acquired, nil
}

// calcThreads computes the step's NDRange via the pattern's CalcThreads
// operation, falling back to a generic block-count computation with an
// optional axis swap when the pattern reports a Y-major inner decomposition.
func calcThreads(p pattern.Pattern, dec subdim.Decomposition, args decompose.Args) [2]int {
	if p.Ops.CalcThreads != nil {
		if ws, ok := p.Ops.CalcThreads(dec.Subdims, dec.PGran); ok {
			return ws
		}
	}
	outer := dec.Subdims[0]
	blocks := func(problem, tile int) int {
		if tile <= 0 || tile == subdim.Unused || problem <= 0 {
			return 1
		}
		return (problem + tile - 1) / tile
	}
	ws := [2]int{
		blocks(args.M, outer.X) * dec.PGran.WgSize[0],
		blocks(args.N, outer.Y) * dec.PGran.WgSize[1],
	}
	if p.Ops.InnerDecompositionAxis != nil && p.Ops.InnerDecompositionAxis() == pattern.AxisY {
		ws[0], ws[1] = ws[1], ws[0]
	}
	return ws
}

// generateKernel is the final fallback of the cache-miss path, reached when
// the persistent store has no compiled binary either: emit the pattern's
// source and run it through the template expander.
func (s *Solver) generateKernel(p pattern.Pattern, dec subdim.Decomposition, flags kflags.Flags, dtype kflags.DataType) (string, error) {
	if p.Ops.GenKernel == nil {
		return "", fmt.Errorf("pattern %s has no GenKernel", p.Name)
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
