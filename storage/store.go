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
	"bytes"
	"errors"
	"os"
	"sync"

	"github.com/clblast-go/clblast/kflags"
)

// FunctionSchema names one function's registered pattern list, in the exact
// priority order package pattern's Registry holds them. The on-disk tree's
// static shape (which functions exist, how many patterns each has) is driven
// by this schema rather than self-described in the file, mirroring how the
// real pattern registry is process-wide and read-only after init.
type FunctionSchema struct {
	FuncID       kflags.FuncID
	PatternNames []string
}

// Schema is the full static shape Open needs to walk an existing file.
type Schema struct {
	Functions []FunctionSchema
}

// Store is a single device's persistent tuning store. The zero
// value is not usable; use Open.
type Store struct {
	path string
	mu   sync.Mutex

	order     []kflags.FuncID
	functions map[kflags.FuncID]*functionRecord

	exists          bool
	corrupt         bool
	versionMismatch bool

	// binDataStart is the file offset where appended kernel blobs begin;
	// grows as new blobs are appended.
	binDataStart int64
}

// Exists reports whether a file was found for this device.
func (s *Store) Exists() bool { return s.exists }

// Corrupt reports whether the file existed but failed a CRC or version
// check.
func (s *Store) Corrupt() bool { return s.corrupt || s.versionMismatch }

// Open parses path according to schema. A missing file is not an error
// (Exists() reports false, defaults apply); a corrupt or version-mismatched
// file is also not an error (Corrupt() reports true, defaults apply):
// corruption means "no data", and the caller decides whether and how to
// log it.
func Open(path string, schema Schema) (*Store, error) {
	s := &Store{path: path, functions: make(map[kflags.FuncID]*functionRecord)}
	for _, fs := range schema.Functions {
		fr := &functionRecord{funcID: fs.FuncID}
		for _, name := range fs.PatternNames {
			fr.patterns = append(fr.patterns, &patternRecord{name: name, offset: -1})
		}
		s.order = append(s.order, fs.FuncID)
		s.functions[fs.FuncID] = fr
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	s.exists = true

	if len(data) < headerSize {
		s.corrupt = true
		return s, nil
	}
	hdr, err := decodeHeader(data[:headerSize])
	if err != nil {
		if errors.Is(err, ErrVersionMismatch) {
			s.versionMismatch = true
		} else {
			s.corrupt = true
		}
		return s, nil
	}
	if int(hdr.nFunctions) != len(schema.Functions) {
		s.corrupt = true
		return s, nil
	}
	s.binDataStart = int64(hdr.binDataStart)

	pos := headerSize
	for _, fid := range s.order {
		fr := s.functions[fid]
		for _, pr := range fr.patterns {
			name, nExtras, size, err := decodePatternAt(data, pos)
			if err != nil || name != pr.name {
				s.corrupt = true
				return freshSchemaOnly(schema), nil
			}
			pr.offset = int64(pos)
			pos += size
			for e := uint32(0); e < nExtras; e++ {
				dtype, flags, nParams, err := decodeExtraAt(data, pos)
				if err != nil {
					s.corrupt = true
					return freshSchemaOnly(schema), nil
				}
				er := &extraRecord{dtype: dtype, flags: flags, params: make(map[int]*ParamRecord), offset: int64(pos)}
				pos += extraInfoSize
				for p := uint32(0); p < nParams; p++ {
					rec, err := decodeParamAt(data, pos)
					if err != nil {
						s.corrupt = true
						return freshSchemaOnly(schema), nil
					}
					er.params[rec.Bucket] = rec
					pos += paramInfoSize
				}
				pr.extras = append(pr.extras, er)
			}
		}
	}
	return s, nil
}

// freshSchemaOnly returns an empty, schema-shaped Store marked corrupt, used
// when a structural mismatch is found partway through parsing: any data
// already read is discarded rather than left half-populated.
func freshSchemaOnly(schema Schema) *Store {
	s := &Store{functions: make(map[kflags.FuncID]*functionRecord), corrupt: true}
	for _, fs := range schema.Functions {
		fr := &functionRecord{funcID: fs.FuncID}
		for _, name := range fs.PatternNames {
			fr.patterns = append(fr.patterns, &patternRecord{name: name, offset: -1})
		}
		s.order = append(s.order, fs.FuncID)
		s.functions[fs.FuncID] = fr
	}
	return s
}

// lookupPattern finds the in-memory patternRecord for (funcID, patternName),
// or nil if the schema never registered it.
func (s *Store) lookupPattern(funcID kflags.FuncID, patternName string) *patternRecord {
	fr, ok := s.functions[funcID]
	if !ok {
		return nil
	}
	for _, pr := range fr.patterns {
		if pr.name == patternName {
			return pr
		}
	}
	return nil
}

func (s *Store) lookupExtra(pr *patternRecord, dtype kflags.DataType, flags kflags.Flags) *extraRecord {
	for _, er := range pr.extras {
		if er.dtype == dtype && er.flags == flags {
			return er
		}
	}
	return nil
}

// Get walks the granulation lookup chain: FunctionInfo -> PatternInfo
// -> ExtraInfo (keyed on dtype and tuning-masked flags) -> the ParamInfo
// whose bucket is closest to the requested dimension, with the bank-aligned
// bucket (0) returned only when the caller asks for dimension 0.
func (s *Store) Get(funcID kflags.FuncID, patternName string, dtype kflags.DataType, flags kflags.Flags, bucket int) (*ParamRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pr := s.lookupPattern(funcID, patternName)
	if pr == nil {
		return nil, false
	}
	er := s.lookupExtra(pr, dtype, flags)
	if er == nil || len(er.params) == 0 {
		return nil, false
	}
	if bucket == 0 {
		if rec, ok := er.params[0]; ok {
			return rec, true
		}
		return nil, false
	}
	var best *ParamRecord
	bestDist := -1
	for b, rec := range er.params {
		if b == 0 {
			continue // bank-aligned record only returned for bucket==0
		}
		dist := b - bucket
		if dist < 0 {
			dist = -dist
		}
		if bestDist == -1 || dist < bestDist {
			bestDist = dist
			best = rec
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// Put records (or updates) a ParamRecord for the given key. If an on-disk
// record already exists for this exact (pattern, dtype, flags, bucket) key,
// Put rewrites just that fixed-size record in place; otherwise it updates
// the in-memory tree and performs a full rewrite to a ".tmp" file followed
// by an atomic rename, which also assigns the new record its on-disk
// offset for future single-record writebacks.
func (s *Store) Put(funcID kflags.FuncID, patternName string, dtype kflags.DataType, flags kflags.Flags, bucket int, rec ParamRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pr := s.lookupPattern(funcID, patternName)
	if pr == nil {
		return errors.New("storage: pattern not in schema: " + patternName)
	}
	er := s.lookupExtra(pr, dtype, flags)
	if er == nil {
		er = &extraRecord{dtype: dtype, flags: flags, params: make(map[int]*ParamRecord), offset: -1}
		pr.extras = append(pr.extras, er)
	}

	rec.Bucket = bucket
	existing, hadExisting := er.params[bucket]
	newRec := rec
	if hadExisting && existing.offset >= 0 {
		newRec.offset = existing.offset
		er.params[bucket] = &newRec
		return s.writeParamInPlace(&newRec)
	}
	er.params[bucket] = &newRec
	return s.fullRewrite()
}

// writeParamInPlace seeks to rec.offset and overwrites just that fixed-size
// ParamInfo record.
func (s *Store) writeParamInPlace(rec *ParamRecord) error {
	f, err := os.OpenFile(s.path, os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteAt(encodeParam(rec), rec.offset); err != nil {
		return err
	}
	return f.Sync()
}

// fullRewrite serializes the entire in-memory tree to a ".tmp" file,
// assigning fresh offsets to every record as it goes, then atomically
// renames it over the live file. The accumulated kernel-blob area is carried
// over verbatim; when the tree's size changed, every record's blob offsets
// are shifted by the same delta before encoding.
func (s *Store) fullRewrite() error {
	var blobs []byte
	if s.binDataStart > 0 {
		if data, err := os.ReadFile(s.path); err == nil && int64(len(data)) > s.binDataStart {
			blobs = data[s.binDataStart:]
		}
	}

	treeSize := headerSize
	for _, fid := range s.order {
		for _, pr := range s.functions[fid].patterns {
			treeSize += 4 + len(pr.name) + 4 + 4
			for _, er := range pr.extras {
				treeSize += extraInfoSize + len(er.params)*paramInfoSize
			}
		}
	}
	binDataStart := int64(treeSize)
	if len(blobs) > 0 && binDataStart != s.binDataStart {
		delta := binDataStart - s.binDataStart
		for _, fid := range s.order {
			for _, pr := range s.functions[fid].patterns {
				for _, er := range pr.extras {
					for _, rec := range er.params {
						for i := range rec.BinaryOffsets {
							if rec.BinarySizes[i] > 0 {
								rec.BinaryOffsets[i] += delta
							}
						}
					}
				}
			}
		}
	}

	var buf bytes.Buffer
	buf.Write(make([]byte, headerSize)) // placeholder, patched below

	for _, fid := range s.order {
		fr := s.functions[fid]
		for _, pr := range fr.patterns {
			pr.offset = int64(buf.Len())
			buf.Write(encodePattern(pr.name, uint32(len(pr.extras))))
			for _, er := range pr.extras {
				er.offset = int64(buf.Len())
				buf.Write(encodeExtra(er.dtype, er.flags, uint32(len(er.params))))
				for _, rec := range orderedParams(er.params) {
					rec.offset = int64(buf.Len())
					buf.Write(encodeParam(rec))
				}
			}
		}
	}
	s.binDataStart = binDataStart

	buf.Write(blobs)
	out := buf.Bytes()
	hdr := encodeHeader(header{nFunctions: uint32(len(s.order)), binDataStart: uint64(binDataStart)})
	copy(out[:headerSize], hdr)

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, out, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return err
	}
	s.exists = true
	return nil
}

// orderedParams returns params in a stable, deterministic order (ascending
// bucket) so repeated full rewrites of unchanged data are byte-identical.
func orderedParams(params map[int]*ParamRecord) []*ParamRecord {
	out := make([]*ParamRecord, 0, len(params))
	for _, r := range params {
		out = append(out, r)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Bucket < out[j-1].Bucket; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// AppendKernelBlob appends data to the file tail and returns its offset and
// size. Must be called after at least one fullRewrite has established
// binDataStart.
func (s *Store) AppendKernelBlob(data []byte) (offset int64, size uint32, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_WRONLY, 0o644)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, 0, err
	}
	at := info.Size()
	blob := encodeBlob(data)
	if _, err := f.WriteAt(blob, at); err != nil {
		return 0, 0, err
	}
	if err := f.Sync(); err != nil {
		return 0, 0, err
	}
	return at, uint32(len(data)), nil
}

// ReadKernelBlob reads back a blob previously written by AppendKernelBlob.
func (s *Store) ReadKernelBlob(offset int64, size uint32) ([]byte, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	blob := make([]byte, blobHeaderSize+int(size)+4)
	if _, err := f.ReadAt(blob, offset); err != nil {
		return nil, err
	}
	return decodeBlob(blob)
}
