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

package device

import "github.com/clblast-go/clblast/hwy"

// ProbeHost builds a Descriptor for the in-process pseudo-device used by
// this repository's own tests and by the autotuner's local dry-run mode.
// The wavefront size comes from hwy.MaxLanes[float32](), the alignment from
// hwy.CurrentWidth() and the vendor from hwy.CurrentLevel(), the only place
// in this repository
// where the inherited SIMD dispatch package is load-bearing rather than
// inert reference material.
func ProbeHost() Descriptor {
	width := hwy.CurrentWidth()
	lanesF32 := hwy.MaxLanes[float32]()
	wavefront := lanesF32
	if wavefront < 1 {
		wavefront = 1
	}
	// A CPU "wavefront" has no hardware meaning; scale lanes up to a
	// plausible SIMT width so granulation defaults sized for GPU wavefronts
	// (64) still exercise the halving logic on a CPU host.
	for wavefront < 64 {
		wavefront *= 2
	}

	vendor := VendorIntel
	switch {
	case hwy.CurrentLevel() == hwy.DispatchNEON || hwy.CurrentLevel() == hwy.DispatchSVE || hwy.CurrentLevel() == hwy.DispatchSME:
		vendor = VendorARM
	}

	return Descriptor{
		Vendor:           vendor,
		Family:           FamilyUnknown,
		Chip:             ChipUnknown,
		ComputeUnits:     32,
		LDSSize:          32 * 1024,
		MaxWorkGroupSize: 256,
		AddressBits:      64,
		WavefrontSize:    wavefront,
		NativeDouble:     true,
		ImageSupport:     true,
		Alignment:        width,
		MaxMemAllocSize:  1 << 30,
		GlobalMemSize:    1 << 32,
		MaxImage2DWidth:  8192,
		MaxImage2DHeight: 8192,
	}
}
