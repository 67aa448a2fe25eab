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

// Package hwy is the host-side SIMD capability probe this repository's
// device package uses to describe the in-process pseudo-device: it detects
// the CPU's current dispatch level (scalar/SSE2/AVX2/AVX-512/NEON/SVE/SME)
// and vector register width, the same way a real device runtime reports a
// GPU's wavefront size and preferred vector width. See device.ProbeHost.
package hwy

// FloatsNative is a constraint for Go-native floating-point types.
type FloatsNative interface {
	~float32 | ~float64
}

// SignedInts is a constraint for signed integer types.
type SignedInts interface {
	~int8 | ~int16 | ~int32 | ~int64
}

// UnsignedInts is a constraint for unsigned integer types.
type UnsignedInts interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Integers is a constraint for all integer types.
type Integers interface {
	SignedInts | UnsignedInts
}

// Lanes is a constraint for all types MaxLanes can size a SIMD width by.
type Lanes interface {
	FloatsNative | Integers
}
