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

// Package cmd implements clblast-tune, the offline autotuner CLI. It walks
// the builtin pattern registry, drives autotune.Run against a local
// compile-check Runner (the real on-device profiler is an out-of-scope
// external collaborator), and writes winners into the host's persistent
// tuning store.
package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/clblast-go/clblast/autotune"
	"github.com/clblast-go/clblast/device"
	"github.com/clblast-go/clblast/kflags"
	"github.com/clblast-go/clblast/pattern"
	"github.com/clblast-go/clblast/pattern/builtin"
	"github.com/clblast-go/clblast/storage"
)

var (
	flagGEMM, flagTRMM, flagTRSM             bool
	flagSYRK, flagSYR2K, flagGEMV, flagSYMV  bool
	flagFloat, flagDouble                    bool
	flagComplex, flagDoubleComplex           bool
	flagBuffers, flagImages, flagCaches      bool
	flagFast, flagRebuild, flagStoreKernels  bool
	flagMax                                  int
	flagE                                    int
	logLevel                                 string
)

var rootCmd = &cobra.Command{
	Use:   "clblast-tune",
	Short: "Offline autotuner for the clBLAS-go kernel solution pipeline",
}

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Search the candidate grid and write winning granulations to the persistent store",
	Run:   runTune,
}

// Execute runs the root command, exiting 1 on a cobra-level (flag parsing)
// failure. runTune itself exits 2 on I/O failures
// (missing CLBLAS_STORAGE_PATH, corrupt/unwritable store).
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	tuneCmd.Flags().BoolVar(&flagGEMM, "gemm", false, "Tune GEMM")
	tuneCmd.Flags().BoolVar(&flagTRMM, "trmm", false, "Tune TRMM")
	tuneCmd.Flags().BoolVar(&flagTRSM, "trsm", false, "Tune TRSM")
	tuneCmd.Flags().BoolVar(&flagSYRK, "syrk", false, "Tune SYRK")
	tuneCmd.Flags().BoolVar(&flagSYR2K, "syr2k", false, "Tune SYR2K")
	tuneCmd.Flags().BoolVar(&flagGEMV, "gemv", false, "Tune GEMV")
	tuneCmd.Flags().BoolVar(&flagSYMV, "symv", false, "Tune SYMV")

	tuneCmd.Flags().BoolVar(&flagFloat, "float", false, "Tune single precision")
	tuneCmd.Flags().BoolVar(&flagDouble, "double", false, "Tune double precision")
	tuneCmd.Flags().BoolVar(&flagComplex, "complex", false, "Tune single-precision complex")
	tuneCmd.Flags().BoolVar(&flagDoubleComplex, "double-complex", false, "Tune double-precision complex")

	tuneCmd.Flags().BoolVar(&flagBuffers, "buffers", false, "Pin pattern index 0 (buffers)")
	tuneCmd.Flags().BoolVar(&flagImages, "images", false, "Pin pattern index 1 (images)")
	tuneCmd.Flags().BoolVar(&flagCaches, "caches", false, "Pin pattern index 2 (LDS/image caches)")

	tuneCmd.Flags().BoolVar(&flagFast, "fast", false, "Use the weighted-group estimator to prune the search")
	tuneCmd.Flags().BoolVar(&flagRebuild, "rebuild", false, "Re-tune combinations already present in the store")
	tuneCmd.Flags().BoolVar(&flagStoreKernels, "store-kernels", false, "Append compiled kernel binaries to the store")
	tuneCmd.Flags().IntVar(&flagMax, "max", autotune.DefaultMaxCandidates, "Maximum candidates tried per combination")
	tuneCmd.Flags().IntVar(&flagE, "e", -1, "Tune only the Nth representative flag set (-1 means all)")
	tuneCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(tuneCmd)
}

// selectedFunctions maps the --gemm/--trmm/... switches onto kflags.FuncID
// values, defaulting to every tunable function when none are given.
func selectedFunctions() []kflags.FuncID {
	var out []kflags.FuncID
	add := func(on bool, id kflags.FuncID) {
		if on {
			out = append(out, id)
		}
	}
	add(flagGEMM, kflags.FuncGEMM)
	add(flagTRMM, kflags.FuncTRMM)
	add(flagTRSM, kflags.FuncTRSM)
	add(flagSYRK, kflags.FuncSYRK)
	add(flagSYR2K, kflags.FuncSYR2K)
	add(flagGEMV, kflags.FuncGEMV)
	add(flagSYMV, kflags.FuncSYMV)
	if len(out) == 0 {
		return []kflags.FuncID{
			kflags.FuncGEMM, kflags.FuncTRMM, kflags.FuncTRSM,
			kflags.FuncSYRK, kflags.FuncSYR2K, kflags.FuncGEMV, kflags.FuncSYMV,
		}
	}
	return out
}

// selectedDtypes maps the --float/--double/... switches onto kflags.DataType
// values, defaulting to every data type when none are given.
func selectedDtypes() []kflags.DataType {
	var out []kflags.DataType
	add := func(on bool, dt kflags.DataType) {
		if on {
			out = append(out, dt)
		}
	}
	add(flagFloat, kflags.F32)
	add(flagDouble, kflags.F64)
	add(flagComplex, kflags.C32)
	add(flagDoubleComplex, kflags.C64)
	if len(out) == 0 {
		return []kflags.DataType{kflags.F32, kflags.F64, kflags.C32, kflags.C64}
	}
	return out
}

// patternIndex turns the --buffers/--images/--caches pin switches into
// autotune.Options.PatternIndex (NonePattern, a negative index, means "tune
// every registered pattern").
func patternIndex() int {
	switch {
	case flagBuffers:
		return 0
	case flagImages:
		return 1
	case flagCaches:
		return 2
	default:
		return pattern.NonePattern
	}
}

// representativeFlags is the fixed set of transpose/order/triangle/side/
// diag combinations worth exercising for every function. --e pins a single
// entry; the default tunes all of them.
func representativeFlags() []kflags.Flags {
	all := []kflags.Flags{
		0,
		kflags.TransA,
		kflags.TransB,
		kflags.TransA | kflags.TransB,
		kflags.FlagColMajor,
		kflags.UpperTri,
		kflags.FlagSideRight,
		kflags.UnitDiag,
		kflags.BetaZero,
	}
	if flagE < 0 || flagE >= len(all) {
		return all
	}
	return all[flagE : flagE+1]
}

// defaultBuckets is a fixed set of representative (M+N+K)/3 dimension
// buckets spanning small to large problems, plus bucket 0 (the dedicated
// bank-aligned record).
var defaultBuckets = []int{0, 96, 256, 512, 1024, 2048}

func buildSchema(registry *pattern.Registry, functions []kflags.FuncID) storage.Schema {
	schema := storage.Schema{}
	for _, fn := range functions {
		var names []string
		for _, p := range registry.Patterns(fn) {
			names = append(names, p.Name)
		}
		schema.Functions = append(schema.Functions, storage.FunctionSchema{FuncID: fn, PatternNames: names})
	}
	return schema
}

func runTune(cmd *cobra.Command, args []string) {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)

	// The autotuner, unlike the library, must fail loudly when the storage
	// directory isn't explicitly configured rather than silently falling
	// back to a per-user cache directory.
	storagePath := os.Getenv(storage.EnvStoragePath)
	if storagePath == "" {
		logrus.Errorf("%s is not set; clblast-tune refuses to guess a storage location", storage.EnvStoragePath)
		os.Exit(2)
	}

	registry := pattern.NewRegistry()
	builtin.Register(registry)
	registry.ApplyEnvOverrides()

	functions := selectedFunctions()
	schema := buildSchema(registry, functions)

	dev := device.ProbeHost()
	path, err := storage.Path(dev.Identity())
	if err != nil {
		logrus.Errorf("resolving storage path: %v", err)
		os.Exit(2)
	}

	store, err := storage.Open(path, schema)
	if err != nil {
		logrus.Errorf("opening storage at %s: %v", path, err)
		os.Exit(2)
	}
	if store.Corrupt() {
		logrus.Errorf("storage file %s is corrupt; remove it and re-run to regenerate", path)
		os.Exit(2)
	}

	opts := autotune.Options{
		Functions:     functions,
		Dtypes:        selectedDtypes(),
		PatternIndex:  patternIndex(),
		Fast:          flagFast,
		Rebuild:       flagRebuild,
		StoreKernels:  flagStoreKernels,
		MaxCandidates: flagMax,
		Buckets:       defaultBuckets,
	}

	logrus.WithFields(logrus.Fields{
		"device": dev.Identity(), "functions": functions, "dtypes": opts.Dtypes,
	}).Info("starting autotuning run")

	runner := newCompileCheckRunner(registry)
	if err := autotune.Run(registry, store, dev, opts, representativeFlags(), runner, newKernelCompiler(registry)); err != nil {
		logrus.Errorf("autotuning run failed: %v", err)
		os.Exit(2)
	}

	logrus.Info("autotuning run complete")
}
