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
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/clblast-go/clblast/kflags"
	"github.com/clblast-go/clblast/subdim"
)

var byteOrder = binary.LittleEndian

// crcOf computes CRC-32 (IEEE polynomial 0xEDB88320) over b.
func crcOf(b []byte) uint32 { return crc32.ChecksumIEEE(b) }

// headerSize is Header's fixed on-disk size: magic(3) + version(4) +
// nFunctions(4) + binDataStart(8) + CRC(4).
const headerSize = 3 + 4 + 4 + 8 + 4

type header struct {
	nFunctions   uint32
	binDataStart uint64
}

func encodeHeader(h header) []byte {
	var buf bytes.Buffer
	buf.WriteString(Magic)
	binary.Write(&buf, byteOrder, int32(Version))
	binary.Write(&buf, byteOrder, h.nFunctions)
	binary.Write(&buf, byteOrder, h.binDataStart)
	crc := crcOf(buf.Bytes())
	binary.Write(&buf, byteOrder, crc)
	return buf.Bytes()
}

// decodeHeader parses b (exactly headerSize bytes). It returns
// (header{}, ErrVersionMismatch) on a version other than Version, and
// (header{}, ErrCorrupt) on a magic or CRC mismatch.
func decodeHeader(b []byte) (header, error) {
	if len(b) != headerSize {
		return header{}, ErrCorrupt
	}
	if string(b[0:3]) != Magic {
		return header{}, ErrCorrupt
	}
	body := b[:len(b)-4]
	wantCRC := byteOrder.Uint32(b[len(b)-4:])
	if crcOf(body) != wantCRC {
		return header{}, ErrCorrupt
	}
	version := int32(byteOrder.Uint32(b[3:7]))
	if int(version) != Version {
		return header{}, ErrVersionMismatch
	}
	var h header
	h.nFunctions = byteOrder.Uint32(b[7:11])
	h.binDataStart = byteOrder.Uint64(b[11:19])
	return h, nil
}

// encodePattern serializes a PatternInfo node: nameLen | name | nExtras | CRC.
func encodePattern(name string, nExtras uint32) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, byteOrder, uint32(len(name)))
	buf.WriteString(name)
	binary.Write(&buf, byteOrder, nExtras)
	crc := crcOf(buf.Bytes())
	binary.Write(&buf, byteOrder, crc)
	return buf.Bytes()
}

func decodePatternAt(b []byte, offset int) (name string, nExtras uint32, size int, err error) {
	if offset+4 > len(b) {
		return "", 0, 0, ErrCorrupt
	}
	nameLen := int(byteOrder.Uint32(b[offset : offset+4]))
	end := offset + 4 + nameLen + 4 + 4
	if end > len(b) || nameLen < 0 {
		return "", 0, 0, ErrCorrupt
	}
	body := b[offset : end-4]
	wantCRC := byteOrder.Uint32(b[end-4 : end])
	if crcOf(body) != wantCRC {
		return "", 0, 0, ErrCorrupt
	}
	name = string(b[offset+4 : offset+4+nameLen])
	nExtras = byteOrder.Uint32(b[offset+4+nameLen : offset+4+nameLen+4])
	return name, nExtras, end - offset, nil
}

// extraInfoSize is ExtraInfo's fixed on-disk size: dtype(4) + flags(8) +
// nParams(4) + CRC(4).
const extraInfoSize = 4 + 8 + 4 + 4

func encodeExtra(dtype kflags.DataType, flags kflags.Flags, nParams uint32) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, byteOrder, uint32(dtype))
	binary.Write(&buf, byteOrder, uint64(flags))
	binary.Write(&buf, byteOrder, nParams)
	crc := crcOf(buf.Bytes())
	binary.Write(&buf, byteOrder, crc)
	return buf.Bytes()
}

func decodeExtraAt(b []byte, offset int) (dtype kflags.DataType, flags kflags.Flags, nParams uint32, err error) {
	if offset+extraInfoSize > len(b) {
		return 0, 0, 0, ErrCorrupt
	}
	body := b[offset : offset+extraInfoSize-4]
	wantCRC := byteOrder.Uint32(b[offset+extraInfoSize-4 : offset+extraInfoSize])
	if crcOf(body) != wantCRC {
		return 0, 0, 0, ErrCorrupt
	}
	dtype = kflags.DataType(byteOrder.Uint32(b[offset : offset+4]))
	flags = kflags.Flags(byteOrder.Uint64(b[offset+4 : offset+12]))
	nParams = byteOrder.Uint32(b[offset+12 : offset+16])
	return dtype, flags, nParams, nil
}

// paramInfoSize is ParamInfo's fixed on-disk size: bucket(4) + 3 subdims * 5
// uint32 fields (60) + PGranularity (20) + 3 binary offsets as uint64 (24) +
// 3 binary sizes as uint32 (12) + time float64 (8) + CRC (4).
const paramInfoSize = 4 + subdim.MaxSubdims*5*4 + (4 + 2*4 + 4 + 4) + 3*8 + 3*4 + 8 + 4

func encodeParam(r *ParamRecord) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, byteOrder, int32(r.Bucket))
	for _, sd := range r.Subdims {
		binary.Write(&buf, byteOrder, int32(sd.X))
		binary.Write(&buf, byteOrder, int32(sd.Y))
		binary.Write(&buf, byteOrder, int32(sd.ItemX))
		binary.Write(&buf, byteOrder, int32(sd.ItemY))
		binary.Write(&buf, byteOrder, int32(sd.Bwidth))
	}
	binary.Write(&buf, byteOrder, int32(r.PGran.WgDim))
	binary.Write(&buf, byteOrder, int32(r.PGran.WgSize[0]))
	binary.Write(&buf, byteOrder, int32(r.PGran.WgSize[1]))
	binary.Write(&buf, byteOrder, int32(r.PGran.WavefrontSize))
	binary.Write(&buf, byteOrder, int32(r.PGran.MaxWorkGroupSize))
	for _, off := range r.BinaryOffsets {
		binary.Write(&buf, byteOrder, uint64(off))
	}
	for _, sz := range r.BinarySizes {
		binary.Write(&buf, byteOrder, sz)
	}
	binary.Write(&buf, byteOrder, r.Time)
	crc := crcOf(buf.Bytes())
	binary.Write(&buf, byteOrder, crc)
	return buf.Bytes()
}

// decodeParamAt parses a fixed-size ParamInfo record at b[offset:]. A CRC
// mismatch is reported as ErrCorrupt, which callers treat as "no data".
func decodeParamAt(b []byte, offset int) (*ParamRecord, error) {
	if offset+paramInfoSize > len(b) {
		return nil, ErrCorrupt
	}
	body := b[offset : offset+paramInfoSize-4]
	wantCRC := byteOrder.Uint32(b[offset+paramInfoSize-4 : offset+paramInfoSize])
	if crcOf(body) != wantCRC {
		return nil, ErrCorrupt
	}
	r := &ParamRecord{offset: int64(offset)}
	p := offset
	r.Bucket = int(int32(byteOrder.Uint32(b[p : p+4])))
	p += 4
	for i := range r.Subdims {
		r.Subdims[i] = subdim.SubproblemDim{
			X:      int(int32(byteOrder.Uint32(b[p : p+4]))),
			Y:      int(int32(byteOrder.Uint32(b[p+4 : p+8]))),
			ItemX:  int(int32(byteOrder.Uint32(b[p+8 : p+12]))),
			ItemY:  int(int32(byteOrder.Uint32(b[p+12 : p+16]))),
			Bwidth: int(int32(byteOrder.Uint32(b[p+16 : p+20]))),
		}
		p += 20
	}
	r.PGran.WgDim = int(int32(byteOrder.Uint32(b[p : p+4])))
	r.PGran.WgSize[0] = int(int32(byteOrder.Uint32(b[p+4 : p+8])))
	r.PGran.WgSize[1] = int(int32(byteOrder.Uint32(b[p+8 : p+12])))
	r.PGran.WavefrontSize = int(int32(byteOrder.Uint32(b[p+12 : p+16])))
	r.PGran.MaxWorkGroupSize = int(int32(byteOrder.Uint32(b[p+16 : p+20])))
	p += 20
	for i := range r.BinaryOffsets {
		r.BinaryOffsets[i] = int64(byteOrder.Uint64(b[p : p+8]))
		p += 8
	}
	for i := range r.BinarySizes {
		r.BinarySizes[i] = byteOrder.Uint32(b[p : p+4])
		p += 4
	}
	r.Time = math.Float64frombits(byteOrder.Uint64(b[p : p+8]))
	return r, nil
}

// blobHeaderSize is a kernel blob's fixed preamble: size(4) + CRC-covered
// length prefix only; the payload and trailing CRC(4) are variable-length.
const blobHeaderSize = 4

// encodeBlob serializes a compiled kernel binary as size | payload | CRC,
// appended at the file tail.
func encodeBlob(data []byte) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, byteOrder, uint32(len(data)))
	buf.Write(data)
	crc := crcOf(buf.Bytes())
	binary.Write(&buf, byteOrder, crc)
	return buf.Bytes()
}

// decodeBlob parses a blob previously written by encodeBlob out of b, which
// must contain at least the full record (size prefix + payload + CRC).
func decodeBlob(b []byte) ([]byte, error) {
	if len(b) < blobHeaderSize+4 {
		return nil, ErrCorrupt
	}
	size := byteOrder.Uint32(b[:4])
	end := blobHeaderSize + int(size) + 4
	if end > len(b) {
		return nil, ErrCorrupt
	}
	body := b[:end-4]
	wantCRC := byteOrder.Uint32(b[end-4 : end])
	if crcOf(body) != wantCRC {
		return nil, ErrCorrupt
	}
	return b[blobHeaderSize : blobHeaderSize+int(size)], nil
}

var (
	// ErrCorrupt reports a CRC mismatch, truncated record, or bad magic.
	// Callers treat it as "no data" and fall back to default granulations.
	ErrCorrupt = fmt.Errorf("storage: corrupt record")
	// ErrVersionMismatch reports a format version the reader doesn't
	// recognize.
	ErrVersionMismatch = fmt.Errorf("storage: version mismatch")
	// ErrMissing reports that no .kdb file exists for this device yet.
	ErrMissing = fmt.Errorf("storage: no file for device")
)
