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
	"io"

	"github.com/pkg/errors"
)

// maxCellRefs is the maximum number of child references a CodeCell may
// carry.
const maxCellRefs = 4

// CodeCell is an immutable node in a Merkle-like DAG of bit-strings.
// Cells are identified by their content hash and are never mutated once
// built; the engine only ever reads from them.
type CodeCell struct {
	// Hash is the cell's content hash, uppercase hex, used as the
	// CellIndex lookup key and as CodePos.Hash.
	Hash string

	// Bits holds the cell's payload, MSB-first, padded with zero bits in
	// the final byte past BitLen.
	Bits []byte

	// BitLen is the number of valid bits in Bits.
	BitLen uint

	// Refs are the content hashes of this cell's children, at most
	// maxCellRefs of them.
	Refs []string
}

// bitReader is a seekable bit-stream over a single CodeCell. It is the
// marker decoder's only way to read cell contents.
type bitReader struct {
	cell *CodeCell
	pos  uint
}

func newBitReader(cell *CodeCell) *bitReader {
	return &bitReader{cell: cell}
}

// seek moves the read position to an absolute bit offset. Seeking past
// the end of the cell is allowed; the next read simply fails with
// io.EOF, which the marker decoder swallows upstream.
func (r *bitReader) seek(offset uint) {
	r.pos = offset
}

// readUint reads the next n bits (n <= 64) as an MSB-first unsigned
// integer and advances the position.
func (r *bitReader) readUint(n uint) (uint64, error) {
	if n > 64 {
		return 0, errors.New("bitReader: read width exceeds 64 bits")
	}
	if r.pos+n > r.cell.BitLen {
		return 0, io.EOF
	}

	var result uint64
	for i := uint(0); i < n; i++ {
		bitIndex := r.pos + i
		byteIndex := bitIndex / 8
		bitInByte := 7 - bitIndex%8
		bit := (r.cell.Bits[byteIndex] >> bitInByte) & 1
		result = (result << 1) | uint64(bit)
	}
	r.pos += n
	return result, nil
}

// readBytes reads n whole bytes (8n bits) starting at the current,
// byte-aligned position.
func (r *bitReader) readBytes(n uint) ([]byte, error) {
	if r.pos%8 != 0 {
		return nil, errors.New("bitReader: readBytes requires byte alignment")
	}
	if r.pos+n*8 > r.cell.BitLen {
		return nil, io.EOF
	}
	start := r.pos / 8
	out := make([]byte, n)
	copy(out, r.cell.Bits[start:start+n])
	r.pos += n * 8
	return out, nil
}

// readUnalignedBytes reads n bytes starting at the current position,
// which need not be byte-aligned: a marker can appear at any instruction
// boundary in densely bit-packed bytecode, not just at a byte boundary.
// Each byte is assembled a bit at a time via readUint, the same MSB-first
// bit path readUint already uses for the opcode and length fields, so the
// decoded bytes are identical regardless of where the payload happens to
// fall relative to the cell's byte grid.
func (r *bitReader) readUnalignedBytes(n uint) ([]byte, error) {
	out := make([]byte, n)
	for i := range out {
		b, err := r.readUint(8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(b)
	}
	return out, nil
}

// CellIndex maps a cell's content hash to the CodeCell itself. It is
// built once per session and never mutated afterward.
type CellIndex struct {
	cells map[string]*CodeCell
}

// Get looks up a cell by hash. Every CodePos hash observed during
// stepping is expected to be present here; a caller that sees ok ==
// false should treat the position as carrying no marker rather than
// treat it as an error.
func (idx *CellIndex) Get(hash string) (*CodeCell, bool) {
	c, ok := idx.cells[hash]
	return c, ok
}

// Len reports how many distinct cells the index holds.
func (idx *CellIndex) Len() int {
	return len(idx.cells)
}

// BuildCellIndex walks the code graph starting at rootHash, visiting each
// distinct referenced cell exactly once, and returns the resulting index.
// pool supplies every cell reachable from the root, keyed by hash; cells
// are content-addressed, so a hash collision in pool would mean two
// different byte-strings hashed the same, which BuildCellIndex does not
// attempt to detect (that is the hash function's job, not the indexer's).
//
// Traversal order is immaterial; this implementation uses an explicit
// stack rather than recursion so that deeply nested code graphs (long
// sequences of continuations) don't blow the Go call stack.
func BuildCellIndex(rootHash string, pool map[string]*CodeCell) (*CellIndex, error) {
	idx := &CellIndex{cells: make(map[string]*CodeCell)}

	root, ok := pool[rootHash]
	if !ok {
		return nil, errors.Errorf("tvmdbg: root cell %s not found in pool", rootHash)
	}

	stack := []*CodeCell{root}
	idx.cells[root.Hash] = root

	for len(stack) > 0 {
		n := len(stack) - 1
		cell := stack[n]
		stack = stack[:n]

		if len(cell.Refs) > maxCellRefs {
			return nil, errors.Errorf(
				"tvmdbg: cell %s has %d refs, exceeding the maximum of %d",
				cell.Hash, len(cell.Refs), maxCellRefs,
			)
		}

		for _, refHash := range cell.Refs {
			if _, seen := idx.cells[refHash]; seen {
				continue
			}
			child, ok := pool[refHash]
			if !ok {
				return nil, errors.Errorf(
					"tvmdbg: cell %s references unknown child %s", cell.Hash, refHash,
				)
			}
			idx.cells[refHash] = child
			stack = append(stack, child)
		}
	}

	return idx, nil
}
