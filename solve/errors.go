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

package solve

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// The core never raises control-flow exceptions; these are returned, not
// panicked.
var (
	ErrInvalidArgument      = errors.New("solve: invalid argument")
	ErrOutOfHostMemory      = errors.New("solve: out of host memory")
	ErrOutOfDeviceResources = errors.New("solve: out of device resources")
	ErrCompilationFailure   = errors.New("solve: kernel generator produced uncompilable source")
	ErrStorageCorruption    = errors.New("solve: persistent store corrupt")
	ErrStorageMissing       = errors.New("solve: no persistent store for device")
)

var corruptionLogOnce sync.Once

// logStorageCorruptionOnce reports a corrupt tuning store: the data is
// treated as absent and downstream computes default granulations. The
// process logs the first occurrence across the whole run, not once per
// device or per call.
func logStorageCorruptionOnce(deviceIdentity string) {
	corruptionLogOnce.Do(func() {
		logrus.WithField("device", deviceIdentity).
			Warn("persistent tuning store is corrupt or version-mismatched; falling back to default granulation")
	})
}
