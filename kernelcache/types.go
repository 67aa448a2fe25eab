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

// Package kernelcache implements C6, the process-wide in-memory kernel
// cache: a reference-counted store from (solver id, KernelKey, KernelExtras)
// to a compiled kernel handle, protected by a single mutex.
package kernelcache

import "github.com/clblast-go/clblast/subdim"

// Key is the structural identity of a compiled kernel variant, independent
// of where the pointer to it lives. Device/Context are opaque identity
// strings; the real device/context objects belong to the device runtime.
type Key struct {
	Device  string
	Context string
	NrDims  int
	Subdims [2]subdim.SubproblemDim
}

// Extras is the immutable copy of the extras used to compile a cached
// kernel.
type Extras struct {
	Pattern string
	Dtype   int
	Flags   uint64
}

// EqualFn is a pattern-supplied kernelExtraCmp predicate:
// declares which Extras bits are semantically significant for a cache hit. A
// nil EqualFn falls back to exact equality.
type EqualFn func(have, want Extras) bool

// Entry is one cached kernel: a compiled program handle plus the
// extras it was compiled with, reference-counted across concurrent
// solution sequences that share it.
type Entry struct {
	Key      Key
	Extras   Extras
	Program  any
	refcount int
}

// Refcount returns e's current reference count, for tests and diagnostics.
func (e *Entry) Refcount() int { return e.refcount }
