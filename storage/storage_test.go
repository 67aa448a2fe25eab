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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clblast-go/clblast/kflags"
	"github.com/clblast-go/clblast/subdim"
)

func testSchema() Schema {
	return Schema{Functions: []FunctionSchema{
		{FuncID: kflags.FuncGEMM, PatternNames: []string{"Gemm1", "Gemm2"}},
		{FuncID: kflags.FuncGEMV, PatternNames: []string{"Gemv1"}},
	}}
}

func testRecord(bucket int) ParamRecord {
	var r ParamRecord
	r.Bucket = bucket
	r.Subdims[0] = subdim.SubproblemDim{X: bucket, Y: 64, Bwidth: 16, ItemX: 4, ItemY: 4}
	r.PGran = subdim.PGranularity{WgDim: 2, WgSize: [2]int{8, 8}, WavefrontSize: 64, MaxWorkGroupSize: 256}
	r.Time = 1.25
	return r
}

func TestOpenMissingFileIsNotError(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "nope.kdb"), testSchema())
	require.NoError(t, err)
	require.False(t, s.Exists())
	require.False(t, s.Corrupt())
	_, ok := s.Get(kflags.FuncGEMM, "Gemm1", kflags.F32, 0, 64)
	require.False(t, ok)
}

func TestPutThenReopenRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dev.kdb")

	s, err := Open(path, testSchema())
	require.NoError(t, err)
	require.NoError(t, s.Put(kflags.FuncGEMM, "Gemm1", kflags.F32, 0, 64, testRecord(64)))

	got, ok := s.Get(kflags.FuncGEMM, "Gemm1", kflags.F32, 0, 64)
	require.True(t, ok)
	require.Equal(t, 64, got.Subdims[0].X)

	s2, err := Open(path, testSchema())
	require.NoError(t, err)
	require.True(t, s2.Exists())
	require.False(t, s2.Corrupt())
	got2, ok := s2.Get(kflags.FuncGEMM, "Gemm1", kflags.F32, 0, 64)
	require.True(t, ok)
	require.Equal(t, got.Subdims, got2.Subdims)
	require.Equal(t, got.Time, got2.Time)
}

func TestSingleParamWritebackPreservesSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dev.kdb")
	s, err := Open(path, testSchema())
	require.NoError(t, err)

	require.NoError(t, s.Put(kflags.FuncGEMM, "Gemm1", kflags.F32, 0, 64, testRecord(64)))
	require.NoError(t, s.Put(kflags.FuncGEMM, "Gemm1", kflags.F32, 0, 128, testRecord(128)))

	updated := testRecord(64)
	updated.Time = 9.5
	require.NoError(t, s.Put(kflags.FuncGEMM, "Gemm1", kflags.F32, 0, 64, updated))

	got64, ok := s.Get(kflags.FuncGEMM, "Gemm1", kflags.F32, 0, 64)
	require.True(t, ok)
	require.Equal(t, 9.5, got64.Time)

	got128, ok := s.Get(kflags.FuncGEMM, "Gemm1", kflags.F32, 0, 128)
	require.True(t, ok)
	require.Equal(t, 128, got128.Subdims[0].X)
}

func TestCorruptedCRCTreatedAsNoData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dev.kdb")
	s, err := Open(path, testSchema())
	require.NoError(t, err)
	require.NoError(t, s.Put(kflags.FuncGEMM, "Gemm1", kflags.F32, 0, 64, testRecord(64)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	flipped := append([]byte(nil), data...)
	flipped[len(flipped)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, flipped, 0o644))

	s2, err := Open(path, testSchema())
	require.NoError(t, err)
	require.True(t, s2.Corrupt())
	_, ok := s2.Get(kflags.FuncGEMM, "Gemm1", kflags.F32, 0, 64)
	require.False(t, ok)
}

func TestVersionMismatchTreatedAsNoData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dev.kdb")
	s, err := Open(path, testSchema())
	require.NoError(t, err)
	require.NoError(t, s.Put(kflags.FuncGEMM, "Gemm1", kflags.F32, 0, 64, testRecord(64)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	mutated := append([]byte(nil), data...)
	hdrBody := mutated[:headerSize-4]
	byteOrder.PutUint32(mutated[3:7], uint32(Version+1))
	crc := crcOf(hdrBody)
	byteOrder.PutUint32(mutated[headerSize-4:headerSize], crc)
	require.NoError(t, os.WriteFile(path, mutated, 0o644))

	s2, err := Open(path, testSchema())
	require.NoError(t, err)
	require.True(t, s2.Corrupt() || s2.versionMismatch)
}

func TestKernelBlobRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dev.kdb")
	s, err := Open(path, testSchema())
	require.NoError(t, err)
	require.NoError(t, s.Put(kflags.FuncGEMM, "Gemm1", kflags.F32, 0, 64, testRecord(64)))

	payload := []byte("a compiled kernel binary, pretend this is SPIR-V or PTX")
	off, size, err := s.AppendKernelBlob(payload)
	require.NoError(t, err)

	back, err := s.ReadKernelBlob(off, size)
	require.NoError(t, err)
	require.Equal(t, payload, back)
}

// TestKernelBlobSurvivesFullRewrite: writing a record under a brand-new
// extras key forces a full rewrite that grows the tree; the blob area must
// be carried over and every stored blob offset shifted to match.
func TestKernelBlobSurvivesFullRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dev.kdb")
	s, err := Open(path, testSchema())
	require.NoError(t, err)
	require.NoError(t, s.Put(kflags.FuncGEMM, "Gemm1", kflags.F32, 0, 64, testRecord(64)))

	payload := []byte("kernel blob that must survive")
	off, size, err := s.AppendKernelBlob(payload)
	require.NoError(t, err)

	withBlob := testRecord(64)
	withBlob.BinaryOffsets[0] = off
	withBlob.BinarySizes[0] = size
	require.NoError(t, s.Put(kflags.FuncGEMM, "Gemm1", kflags.F32, 0, 64, withBlob))

	// A different flags key adds an ExtraInfo node, growing the tree.
	require.NoError(t, s.Put(kflags.FuncGEMM, "Gemm1", kflags.F32, kflags.TransA, 64, testRecord(64)))

	rec, ok := s.Get(kflags.FuncGEMM, "Gemm1", kflags.F32, 0, 64)
	require.True(t, ok)
	require.NotZero(t, rec.BinarySizes[0])
	back, err := s.ReadKernelBlob(rec.BinaryOffsets[0], rec.BinarySizes[0])
	require.NoError(t, err)
	require.Equal(t, payload, back)

	// The shifted layout must also survive a reopen.
	s2, err := Open(path, testSchema())
	require.NoError(t, err)
	require.False(t, s2.Corrupt())
	rec2, ok := s2.Get(kflags.FuncGEMM, "Gemm1", kflags.F32, 0, 64)
	require.True(t, ok)
	back2, err := s2.ReadKernelBlob(rec2.BinaryOffsets[0], rec2.BinarySizes[0])
	require.NoError(t, err)
	require.Equal(t, payload, back2)
}

func TestLookupAdapterMatchesSubdimStorageLookup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dev.kdb")
	s, err := Open(path, testSchema())
	require.NoError(t, err)
	require.NoError(t, s.Put(kflags.FuncGEMM, "Gemm1", kflags.F32, 0, 64, testRecord(64)))

	var lookup subdim.StorageLookup = s.Lookup(kflags.FuncGEMM)
	rec, ok := lookup("Gemm1", kflags.F32, 0, 64)
	require.True(t, ok)
	require.False(t, rec.NoData())
	require.Equal(t, 64, rec.Subdims[0].X)
}
