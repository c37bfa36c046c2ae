// Copyright 2025 Google LLC
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

package tvmdbg

import (
	"strconv"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// markerOpcode is the 12-bit instruction value that tags a DebugInfoIndex
// marker embedded in the bytecode.
const markerOpcode = 0xFEF

// markerPrefix is the mandatory first two bytes of a marker's payload.
const markerPrefix = "DI"

// maxMarkerPayloadBytes is the largest payload a 4-bit length field can
// describe: len_minus1 in [0, 15] means 1..16 bytes follow.
const maxMarkerPayloadBytes = 16

// DebugInfoIndex is a non-negative key into a SourceMap, embedded in the
// bytecode as a marker instruction.
type DebugInfoIndex int64

// decodeMarker attempts to decode a DebugInfoIndex at the given CodePos.
// Every failure mode here — missing cell, short read, bad UTF-8, non-"DI"
// prefix, malformed decimal — is reported as "no marker" (ok == false)
// rather than as an error; markers are a best-effort signal and their
// absence only delays a stepping stop, never causes one.
func decodeMarker(idx *CellIndex, pos CodePos) (DebugInfoIndex, bool) {
	cell, ok := idx.Get(pos.Hash)
	if !ok {
		return 0, false
	}

	r := newBitReader(cell)
	r.seek(pos.Offset)

	opcode, err := r.readUint(12)
	if err != nil || opcode != markerOpcode {
		return 0, false
	}

	lenMinus1, err := r.readUint(4)
	if err != nil {
		return 0, false
	}
	payloadLen := uint(lenMinus1) + 1

	payload, err := r.readUnalignedBytes(payloadLen)
	if err != nil {
		return 0, false
	}
	if !utf8.Valid(payload) {
		return 0, false
	}

	s := string(payload)
	if len(s) < len(markerPrefix) || s[:len(markerPrefix)] != markerPrefix {
		return 0, false
	}

	n, err := strconv.ParseInt(s[len(markerPrefix):], 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}

	return DebugInfoIndex(n), true
}

// EncodeMarker returns the bit pattern for embedding index in the
// bytecode: a 12-bit opcode, a 4-bit length, and the UTF-8 payload
// "DI<index>", packed into whole bytes here for convenience. The
// encoding itself carries no alignment requirement — decodeMarker reads
// every field, payload included, bit by bit, so a fixture is free to
// concatenate these bytes at any bit offset in a cell, matching real
// bytecode where a marker can appear at any instruction boundary. It is
// exported for fixture builders — real bytecode containing these markers
// is produced by the compiler toolchain, out of scope here, but tests
// and examples need some way to construct cells that decode to a chosen
// DebugInfoIndex.
func EncodeMarker(index DebugInfoIndex) ([]byte, error) {
	if index < 0 {
		return nil, errors.New("tvmdbg: DebugInfoIndex must be non-negative")
	}

	payload := markerPrefix + strconv.FormatInt(int64(index), 10)
	if len(payload) > maxMarkerPayloadBytes {
		return nil, errors.Errorf(
			"tvmdbg: encoded index %d needs %d payload bytes, exceeding the %d-byte budget",
			index, len(payload), maxMarkerPayloadBytes,
		)
	}

	lenMinus1 := byte(len(payload) - 1)
	out := make([]byte, 0, 2+len(payload))
	// 12-bit opcode followed by 4-bit length, packed MSB-first into two
	// bytes: byte0 = opcode[11:4], byte1 = opcode[3:0] << 4 | lenMinus1.
	out = append(out, byte(markerOpcode>>4))
	out = append(out, byte(markerOpcode&0xF)<<4|lenMinus1)
	out = append(out, payload...)
	return out, nil
}
