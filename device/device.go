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

// Package device implements C1, the device descriptor: stable vendor/
// family/chip identity plus measured hardware facts (compute units, LDS
// size, max work-group size, address bits, native-double, image support,
// alignment) that every downstream decision (pattern selection, granulation,
// vectorization) consults.
package device

import (
	"strings"

	"github.com/clblast-go/clblast/subdim"
)

// Vendor is the device manufacturer, identified by a substring match on the
// runtime's vendor string.
type Vendor int

const (
	VendorUnknown Vendor = iota
	VendorAMD
	VendorNVIDIA
	VendorIntel
	VendorARM
	VendorApple
)

func (v Vendor) String() string {
	switch v {
	case VendorAMD:
		return "AMD"
	case VendorNVIDIA:
		return "NVIDIA"
	case VendorIntel:
		return "Intel"
	case VendorARM:
		return "ARM"
	case VendorApple:
		return "Apple"
	default:
		return "Unknown"
	}
}

// Family is a coarse device generation, derived from Chip.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyEvergreen
	FamilyFermi
	FamilyGCN
	FamilyAmpere
)

func (f Family) String() string {
	switch f {
	case FamilyEvergreen:
		return "Evergreen"
	case FamilyFermi:
		return "Fermi"
	case FamilyGCN:
		return "GCN"
	case FamilyAmpere:
		return "Ampere"
	default:
		return "Unknown"
	}
}

// Chip is a specific device model.
type Chip int

const (
	ChipUnknown Chip = iota
	ChipTahiti
	ChipHawaii
	ChipVega10
	ChipGP100
	ChipGA100
	ChipAppleM
)

func (c Chip) String() string {
	switch c {
	case ChipTahiti:
		return "Tahiti"
	case ChipHawaii:
		return "Hawaii"
	case ChipVega10:
		return "Vega10"
	case ChipGP100:
		return "GP100"
	case ChipGA100:
		return "GA100"
	case ChipAppleM:
		return "Apple M-series"
	default:
		return "Unknown"
	}
}

// Descriptor is the device descriptor: a stable identity triple plus the
// measured capabilities the rest of the pipeline reads.
// A Descriptor is created once per runtime device and is immutable thereafter.
type Descriptor struct {
	Vendor Vendor
	Family Family
	Chip   Chip

	ComputeUnits     int
	LDSSize          int // bytes
	MaxWorkGroupSize int
	AddressBits      int
	WavefrontSize    int
	NativeDouble     bool
	ImageSupport     bool
	Alignment        int // bytes, CL_DEVICE_MIN_DATA_TYPE_ALIGN_SIZE analogue
	MaxMemAllocSize  int64
	GlobalMemSize    int64
	MaxImage2DWidth  int
	MaxImage2DHeight int

	// QueueOutOfOrder marks a command queue as out-of-order, which forces
	// the image budget for pattern selection to zero.
	QueueOutOfOrder bool
}

// chipTable maps a device-name substring to its chip, in the order the
// identification table is consulted (first match wins).
var chipTable = []struct {
	substr string
	chip   Chip
	family Family
}{
	{"tahiti", ChipTahiti, FamilyGCN},
	{"hawaii", ChipHawaii, FamilyGCN},
	{"vega", ChipVega10, FamilyGCN},
	{"gp100", ChipGP100, FamilyFermi},
	{"a100", ChipGA100, FamilyAmpere},
	{"apple m", ChipAppleM, FamilyUnknown},
}

var vendorTable = []struct {
	substr string
	vendor Vendor
}{
	{"advanced micro devices", VendorAMD},
	{"amd", VendorAMD},
	{"nvidia", VendorNVIDIA},
	{"intel", VendorIntel},
	{"arm", VendorARM},
	{"apple", VendorApple},
}

// Identify performs the table-driven vendor/chip/family lookup. A failure
// to match must leave every field at its Unknown zero value
// but still succeed — callers must never branch on a specific chip identity
// downstream, only on measured capabilities.
func Identify(vendorString, deviceNameString string) (vendor Vendor, family Family, chip Chip) {
	lowerVendor := strings.ToLower(vendorString)
	for _, row := range vendorTable {
		if strings.Contains(lowerVendor, row.substr) {
			vendor = row.vendor
			break
		}
	}

	lowerName := strings.ToLower(deviceNameString)
	for _, row := range chipTable {
		if strings.Contains(lowerName, row.substr) {
			chip = row.chip
			family = row.family
			break
		}
	}
	return vendor, family, chip
}

// New builds a Descriptor from identity strings plus measured capabilities.
// preferredVectorWidthDouble is the runtime's reported preferred vector
// width for the double type; zero means the device has no native double
// support.
func New(vendorString, deviceNameString string, preferredVectorWidthDouble int, caps Descriptor) Descriptor {
	vendor, family, chip := Identify(vendorString, deviceNameString)
	d := caps
	d.Vendor = vendor
	d.Family = family
	d.Chip = chip
	d.NativeDouble = preferredVectorWidthDouble != 0
	return d
}

// Identity returns the stable (vendor, family, chip) identity string the
// persistent storage cache is keyed on. Device pointers vary across
// runtime reinit; identities do not.
func (d Descriptor) Identity() string {
	return d.Vendor.String() + "-" + d.Family.String() + "-" + d.Chip.String()
}

// Limits adapts Descriptor into the narrow subset subdim.Choose needs,
// without subdim importing this package (mirrors pattern.Pattern.Hooks).
func (d Descriptor) Limits() subdim.DeviceLimits {
	return subdim.DeviceLimits{
		LDSSize:          d.LDSSize,
		WavefrontSize:    d.WavefrontSize,
		MaxWorkGroupSize: d.MaxWorkGroupSize,
	}
}
