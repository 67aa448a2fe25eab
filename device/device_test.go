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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentifyKnownVendorAndChip(t *testing.T) {
	vendor, family, chip := Identify("Advanced Micro Devices, Inc.", "Vega 10 [Radeon RX Vega]")
	require.Equal(t, VendorAMD, vendor)
	require.Equal(t, FamilyGCN, family)
	require.Equal(t, ChipVega10, chip)
}

func TestIdentifyUnknownDegradesGracefully(t *testing.T) {
	vendor, family, chip := Identify("Totally Unknown Corp", "Mystery Device 9000")
	require.Equal(t, VendorUnknown, vendor)
	require.Equal(t, FamilyUnknown, family)
	require.Equal(t, ChipUnknown, chip)
}

func TestNewSetsNativeDoubleFromPreferredVectorWidth(t *testing.T) {
	caps := Descriptor{ComputeUnits: 4}
	d := New("NVIDIA Corporation", "GeForce GTX 580", 0, caps)
	require.False(t, d.NativeDouble)

	d2 := New("NVIDIA Corporation", "GeForce GTX 580", 1, caps)
	require.True(t, d2.NativeDouble)
}

func TestProbeHostProducesUsableDescriptor(t *testing.T) {
	d := ProbeHost()
	require.Greater(t, d.ComputeUnits, 0)
	require.Greater(t, d.LDSSize, 0)
	require.GreaterOrEqual(t, d.WavefrontSize, 1)
}
