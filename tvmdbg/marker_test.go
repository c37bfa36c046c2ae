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

import "testing"

func cellFromMarker(t *testing.T, hash string, index DebugInfoIndex) *CodeCell {
	t.Helper()
	bits, err := EncodeMarker(index)
	if err != nil {
		t.Fatalf("EncodeMarker(%d): %v", index, err)
	}
	return &CodeCell{Hash: hash, Bits: bits, BitLen: uint(len(bits)) * 8}
}

func TestMarkerRoundTrip(t *testing.T) {
	// 14 decimal digits is the largest value that still fits "DI" plus
	// the digits inside the 16-byte payload budget.
	cases := []DebugInfoIndex{0, 1, 42, 999999999, 99999999999999}
	for _, idx := range cases {
		cell := cellFromMarker(t, "ROOT", idx)
		pool := map[string]*CodeCell{"ROOT": cell}
		index, err := BuildCellIndex("ROOT", pool)
		if err != nil {
			t.Fatalf("BuildCellIndex: %v", err)
		}

		got, ok := decodeMarker(index, CodePos{Hash: "ROOT", Offset: 0})
		if !ok {
			t.Fatalf("decodeMarker(%d): no marker found, want %d", idx, idx)
		}
		if got != idx {
			t.Errorf("decodeMarker round-trip: got %d, want %d", got, idx)
		}
	}
}

func TestEncodeMarkerRejectsOversizedPayload(t *testing.T) {
	// 10^15 needs 16 decimal digits; "DI" + 16 digits is 18 bytes, past
	// the 16-byte budget.
	_, err := EncodeMarker(1_000_000_000_000_000)
	if err == nil {
		t.Fatal("EncodeMarker(10^15): want error, got nil")
	}
}

func TestEncodeMarkerRejectsNegative(t *testing.T) {
	if _, err := EncodeMarker(-1); err == nil {
		t.Fatal("EncodeMarker(-1): want error, got nil")
	}
}

func TestDecodeMarkerMissingCellIsNoMarker(t *testing.T) {
	idx := &CellIndex{cells: map[string]*CodeCell{}}
	_, ok := decodeMarker(idx, CodePos{Hash: "NOPE", Offset: 0})
	if ok {
		t.Fatal("decodeMarker on missing cell: want ok=false")
	}
}

func TestDecodeMarkerWrongOpcodeIsNoMarker(t *testing.T) {
	cell := &CodeCell{Hash: "ROOT", Bits: []byte{0x00, 0x00, 0x00}, BitLen: 24}
	idx := &CellIndex{cells: map[string]*CodeCell{"ROOT": cell}}
	_, ok := decodeMarker(idx, CodePos{Hash: "ROOT", Offset: 0})
	if ok {
		t.Fatal("decodeMarker on all-zero bits: want ok=false")
	}
}

func TestDecodeMarkerShortCellIsNoMarker(t *testing.T) {
	cell := &CodeCell{Hash: "ROOT", Bits: []byte{0xFE}, BitLen: 4}
	idx := &CellIndex{cells: map[string]*CodeCell{"ROOT": cell}}
	_, ok := decodeMarker(idx, CodePos{Hash: "ROOT", Offset: 0})
	if ok {
		t.Fatal("decodeMarker on truncated cell: want ok=false")
	}
}

// packBitStream concatenates prefixZeroBits zero bits with the first
// payloadBitLen bits of payload (MSB-first, same convention as
// bitReader), returning the packed bytes and the total bit length. It
// lets a test place a marker's encoded bytes at an arbitrary, non-byte-
// aligned starting offset, the way a compiler's dense bit-packed
// bytecode actually would.
func packBitStream(prefixZeroBits uint, payload []byte, payloadBitLen uint) ([]byte, uint) {
	total := prefixZeroBits + payloadBitLen
	out := make([]byte, (total+7)/8)
	pos := prefixZeroBits
	for i := uint(0); i < payloadBitLen; i++ {
		byteIndex := i / 8
		bitInByte := 7 - i%8
		bit := (payload[byteIndex] >> bitInByte) & 1
		if bit != 0 {
			outByte := pos / 8
			outBit := 7 - pos%8
			out[outByte] |= 1 << outBit
		}
		pos++
	}
	return out, total
}

func TestDecodeMarkerAtUnalignedOffset(t *testing.T) {
	bits, err := EncodeMarker(42)
	if err != nil {
		t.Fatalf("EncodeMarker(42): %v", err)
	}

	const filler = 5 // a non-multiple of 8, so the marker starts mid-byte
	packed, total := packBitStream(filler, bits, uint(len(bits))*8)
	cell := &CodeCell{Hash: "ROOT", Bits: packed, BitLen: total}
	idx := &CellIndex{cells: map[string]*CodeCell{"ROOT": cell}}

	got, ok := decodeMarker(idx, CodePos{Hash: "ROOT", Offset: filler})
	if !ok {
		t.Fatal("decodeMarker at a non-byte-aligned offset: no marker found, want 42")
	}
	if got != 42 {
		t.Errorf("decodeMarker at a non-byte-aligned offset: got %d, want 42", got)
	}
}

func TestDecodeMarkerNonDIPrefixIsNoMarker(t *testing.T) {
	// Valid opcode/length framing but a payload that isn't "DI<digits>".
	bits := []byte{
		byte(markerOpcode >> 4),
		byte(markerOpcode&0xF) << 4 | 1, // lenMinus1 = 1 -> 2-byte payload
		'X', 'X',
	}
	cell := &CodeCell{Hash: "ROOT", Bits: bits, BitLen: uint(len(bits)) * 8}
	idx := &CellIndex{cells: map[string]*CodeCell{"ROOT": cell}}
	_, ok := decodeMarker(idx, CodePos{Hash: "ROOT", Offset: 0})
	if ok {
		t.Fatal("decodeMarker on non-DI payload: want ok=false")
	}
}
