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

package autotune

import (
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/clblast-go/clblast/device"
	"github.com/clblast-go/clblast/kflags"
	"github.com/clblast-go/clblast/pattern"
	"github.com/clblast-go/clblast/storage"
)

// DefaultMaxCandidates is the CLI's `--max` default.
const DefaultMaxCandidates = 5000

// Options configures one Tune run.
type Options struct {
	Functions     []kflags.FuncID
	Dtypes        []kflags.DataType
	PatternIndex  int // -1 means "all registered patterns"; --buffers/--images/--caches pin 0/1/2
	Fast          bool
	Rebuild       bool
	StoreKernels  bool
	MaxCandidates int
	Buckets       []int
}

// knownBuggyCombo hard-codes the function/dtype combinations excluded from
// tuning: GEMM2's SYMM/HEMM-as-GEMM2 path is never independently tuned,
// mirroring the granulation chooser's storage-lookup skip for the same
// function.
func knownBuggyCombo(funcID kflags.FuncID, dtype kflags.DataType) bool {
	return funcID == kflags.FuncGEMM2
}

// TuningKey is one (dtype, tuning-masked flags) combination worth tuning
// independently; every key gets its own grid search and storage record.
type TuningKey struct {
	Dtype kflags.DataType
	Flags kflags.Flags
}

// usefulFlagSets returns the TuningKeys worth tuning for funcID: dtypes
// filtered by device support, flags masked to the function's tuning mask and
// deduplicated, known-buggy combinations skipped.
func usefulFlagSets(funcID kflags.FuncID, dtypes []kflags.DataType, dev device.Descriptor, allFlags []kflags.Flags) []TuningKey {
	mask := funcID.TuningMask()
	var out []TuningKey
	for _, dt := range dtypes {
		if dt.IsDouble() && !dev.NativeDouble {
			continue
		}
		if knownBuggyCombo(funcID, dt) {
			continue
		}
		masked := lo.Uniq(lo.Map(allFlags, func(f kflags.Flags, _ int) kflags.Flags {
			return kflags.Canonicalize(f&mask, dt)
		}))
		for _, f := range masked {
			out = append(out, TuningKey{Dtype: dt, Flags: f})
		}
	}
	return out
}

// TuneOne enumerates, validates, times and ranks candidates for a single
// (funcID, pattern, dtype, flags, bucket) combination and returns the
// winning candidate's best time, or false if no candidate validated.
func TuneOne(funcID kflags.FuncID, p pattern.Pattern, dtype kflags.DataType, flags kflags.Flags, bucket int, dev device.Descriptor, opts Options, run Runner) (Result, bool) {
	candidates := lo.Filter(EnumerateCandidates(funcID), func(c Candidate, _ int) bool {
		return Valid(p, c, dtype, dev.WavefrontSize, dev.LDSSize/2)
	})
	if len(candidates) == 0 {
		return Result{}, false
	}

	maxCandidates := opts.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}

	repeats := RepeatsFor(funcID)
	est := NewEstimator()
	var best Result
	haveBest := false
	budget := len(candidates)
	if budget > maxCandidates {
		budget = maxCandidates
	}

	remaining := append([]Candidate(nil), candidates...)
	for i := 0; i < budget && len(remaining) > 0; i++ {
		var c Candidate
		var idx int
		var ok bool
		if opts.Fast {
			c, idx, ok = est.NextCandidate(remaining)
		} else {
			c, idx, ok = remaining[0], 0, true
		}
		if !ok {
			break
		}
		remaining = append(remaining[:idx], remaining[idx+1:]...)

		dec := c.Decomposition(dev.WavefrontSize, dev.MaxWorkGroupSize)
		bestTime := -1.0
		for r := 0; r < repeats; r++ {
			t, err := run(funcID, p.Name, dec, dtype, flags, bucket)
			if err != nil {
				bestTime = -1
				break
			}
			if bestTime < 0 || t < bestTime {
				bestTime = t
			}
		}
		if bestTime < 0 {
			continue
		}
		est.Record(c, bestTime)
		if !haveBest || bestTime < best.BestTime {
			best = Result{Candidate: c, BestTime: bestTime}
			haveBest = true
		}
	}
	return best, haveBest
}

// WriteWinner persists the winning candidate to store (with its compiled
// binary, when one is supplied) and shares the record across every other
// registered extras key whose tuning-masked flags are identical.
func WriteWinner(s *storage.Store, funcID kflags.FuncID, patternName string, dtype kflags.DataType, flags kflags.Flags, bucket int, res Result, dev device.Descriptor, siblingFlags []kflags.Flags, binary []byte) error {
	dec := res.Candidate.Decomposition(dev.WavefrontSize, dev.MaxWorkGroupSize)
	rec := storage.ParamRecord{
		Bucket:  bucket,
		Subdims: dec.Subdims,
		PGran:   dec.PGran,
		Time:    res.BestTime,
	}
	if err := s.Put(funcID, patternName, dtype, flags, bucket, rec); err != nil {
		return err
	}
	if len(binary) > 0 {
		off, size, err := s.AppendKernelBlob(binary)
		if err != nil {
			return err
		}
		rec.BinaryOffsets[0] = off
		rec.BinarySizes[0] = size
		if err := s.Put(funcID, patternName, dtype, flags, bucket, rec); err != nil {
			return err
		}
	}

	mask := funcID.TuningMask()
	for _, sibling := range siblingFlags {
		if sibling == flags {
			continue
		}
		if kflags.Canonicalize(sibling&mask, dtype) != kflags.Canonicalize(flags&mask, dtype) {
			continue
		}
		if err := s.Put(funcID, patternName, dtype, sibling, bucket, rec); err != nil {
			return err
		}
	}
	return nil
}

// Run drives the tuner across every function/pattern/dtype/flags/bucket
// combination opts and the registry select, logging one progress line per
// tuned combination and a warning for combinations with no valid candidate.
// compile may be nil; it is only consulted when opts.StoreKernels is set.
func Run(registry *pattern.Registry, s *storage.Store, dev device.Descriptor, opts Options, allFlags []kflags.Flags, run Runner, compile CompileFn) error {
	for _, funcID := range opts.Functions {
		patterns := registry.Patterns(funcID)
		for pIdx, p := range patterns {
			if opts.PatternIndex >= 0 && pIdx != opts.PatternIndex {
				continue
			}
			pairs := usefulFlagSets(funcID, opts.Dtypes, dev, allFlags)
			for _, pr := range pairs {
				for _, bucket := range opts.Buckets {
					if !opts.Rebuild {
						if _, ok := s.Get(funcID, p.Name, pr.Dtype, pr.Flags, bucket); ok {
							continue
						}
					}
					res, ok := TuneOne(funcID, p, pr.Dtype, pr.Flags, bucket, dev, opts, run)
					if !ok {
						logrus.WithFields(logrus.Fields{
							"func": funcID, "pattern": p.Name, "dtype": pr.Dtype, "bucket": bucket,
						}).Warn("no candidate validated")
						continue
					}
					siblings := lo.Map(pairs, func(other TuningKey, _ int) kflags.Flags {
						return other.Flags
					})
					var binary []byte
					if opts.StoreKernels && compile != nil {
						dec := res.Candidate.Decomposition(dev.WavefrontSize, dev.MaxWorkGroupSize)
						b, err := compile(funcID, p.Name, dec, pr.Dtype, pr.Flags)
						if err != nil {
							logrus.WithFields(logrus.Fields{
								"func": funcID, "pattern": p.Name, "dtype": pr.Dtype,
							}).WithError(err).Warn("winner recompilation failed; storing granulation only")
						} else {
							binary = b
						}
					}
					if err := WriteWinner(s, funcID, p.Name, pr.Dtype, pr.Flags, bucket, res, dev, siblings, binary); err != nil {
						return err
					}
					logrus.WithFields(logrus.Fields{
						"func": funcID, "pattern": p.Name, "dtype": pr.Dtype, "bucket": bucket,
						"time": res.BestTime,
					}).Info("tuned")
				}
			}
		}
	}
	return nil
}
