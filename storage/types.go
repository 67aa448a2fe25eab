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

// Package storage implements C7, the persistent tuning store: a per-device
// binary file holding the hierarchical
// Header -> FunctionInfo -> PatternInfo -> ExtraInfo -> ParamInfo tree of
// best-known granulations, plus optional compiled kernel binaries appended
// at the file tail. Magic "CBS", version 3, little-endian, CRC-32 (IEEE
// polynomial 0xEDB88320) per record.
package storage

import (
	"github.com/clblast-go/clblast/kflags"
	"github.com/clblast-go/clblast/subdim"
)

// Magic is the 3-byte file magic, not NUL-terminated on disk.
const Magic = "CBS"

// Version is the current on-disk format version. A mismatch is treated as
// no-data.
const Version = 3

// NoDataTimeThreshold is the "time > 10000 means no data" sentinel.
const NoDataTimeThreshold = 10000.0

// EnvStoragePath is the environment variable naming the directory holding
// per-device ".kdb" files.
const EnvStoragePath = "CLBLAS_STORAGE_PATH"

// ParamRecord is one ParamInfo node: the decomposition and kernel binaries
// tuned for one dimension bucket of one (pattern, dtype, masked-flags) key.
type ParamRecord struct {
	// Bucket is the dimension bucket this record was tuned for:
	// (M+N+K)/3, with 0 reserved for the bank-aligned record. Persisted
	// explicitly in each ParamInfo record so a lookup can find the closest bucket
	// without relying on on-disk write order.
	Bucket        int
	Subdims       [subdim.MaxSubdims]subdim.SubproblemDim
	PGran         subdim.PGranularity
	BinaryOffsets [3]int64
	BinarySizes   [3]uint32
	Time          float64

	// offset is this record's byte position in the file, or -1 if it has
	// never been written (new in memory). Known once Open has parsed the
	// file or a full rewrite has placed it, enabling the single-record
	// seek-and-rewrite writeback path.
	offset int64
}

// NoData reports whether r should be treated as absent on read.
func (r *ParamRecord) NoData() bool { return r.Time > NoDataTimeThreshold }

// Decomposition adapts r into the subdim package's result shape.
func (r *ParamRecord) Decomposition() subdim.Decomposition {
	return subdim.Decomposition{
		NrLevels: levelsFromSubdims(r.Subdims),
		Subdims:  r.Subdims,
		PGran:    r.PGran,
	}
}

func levelsFromSubdims(s [subdim.MaxSubdims]subdim.SubproblemDim) int {
	n := 0
	for _, d := range s {
		if d != (subdim.SubproblemDim{}) {
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return n
}

// extraRecord is one ExtraInfo node: a (dtype, tuning-masked-flags) key
// holding its dimension-bucket-keyed ParamRecords.
type extraRecord struct {
	dtype  kflags.DataType
	flags  kflags.Flags
	params map[int]*ParamRecord
	offset int64
}

// patternRecord is one PatternInfo node: a pattern name holding its
// ExtraRecords.
type patternRecord struct {
	name   string
	extras []*extraRecord
	offset int64
}

// functionRecord is one (implicit, order-indexed) FunctionInfo node.
type functionRecord struct {
	funcID   kflags.FuncID
	patterns []*patternRecord
}
