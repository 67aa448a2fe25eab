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

package storage

import (
	"github.com/clblast-go/clblast/kflags"
	"github.com/clblast-go/clblast/subdim"
)

// KernelInfo is up to three compiled kernel binaries read back from a
// persistent-store record: index 0 is the compute kernel, 1 and 2 are the
// optional pack kernels for image-backed A/B operands.
type KernelInfo struct {
	Binaries [3][]byte
	Sizes    [3]uint32
}

// GetKernelInfo is the read-only compiled-binary lookup: it finds the
// tuned record for (patternName, dtype, flags,
// dimBucket) and reads each non-empty binary slot back from the file via
// ReadKernelBlob.
func (s *Store) GetKernelInfo(funcID kflags.FuncID, patternName string, dtype kflags.DataType, flags kflags.Flags, dimBucket int) (KernelInfo, bool) {
	rec, ok := s.Get(funcID, patternName, dtype, flags, dimBucket)
	if !ok {
		return KernelInfo{}, false
	}
	var info KernelInfo
	for i := 0; i < 3; i++ {
		if rec.BinarySizes[i] == 0 {
			continue
		}
		data, err := s.ReadKernelBlob(rec.BinaryOffsets[i], rec.BinarySizes[i])
		if err != nil {
			continue
		}
		info.Binaries[i] = data
		info.Sizes[i] = rec.BinarySizes[i]
	}
	return info, true
}

// GetGranularityInfo returns the persisted decomposition (tile dims and
// work-group shape) for a tuned record, without the kernel binaries.
func (s *Store) GetGranularityInfo(funcID kflags.FuncID, patternName string, dtype kflags.DataType, flags kflags.Flags, dimBucket int) (subdim.Decomposition, bool) {
	rec, ok := s.Get(funcID, patternName, dtype, flags, dimBucket)
	if !ok {
		return subdim.Decomposition{}, false
	}
	return rec.Decomposition(), true
}
