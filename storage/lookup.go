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

// Lookup adapts Store.Get into subdim.StorageLookup, so package subdim never
// imports storage (subdim.StorageLookup's doc comment explains why). funcID
// is bound once by the caller (one Lookup closure per function being
// solved); patternName/dtype/flags/bucket vary per call.
func (s *Store) Lookup(funcID kflags.FuncID) subdim.StorageLookup {
	return func(patternName string, dtype kflags.DataType, flags kflags.Flags, bucket int) (subdim.Record, bool) {
		rec, ok := s.Get(funcID, patternName, dtype, flags, bucket)
		if !ok {
			return subdim.Record{}, false
		}
		return subdim.Record{Decomposition: rec.Decomposition(), Time: rec.Time}, true
	}
}
