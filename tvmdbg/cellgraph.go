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
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// cellGraphMagic tags the small binary container this package reads and
// writes for code-graph fixtures. It is deliberately not a real bag-of-
// cells container format: building and parsing those is a job for the
// compiler toolchain this engine consumes, not for the engine itself.
// This format exists to give tests, the example program, and the REPL's
// LOAD command a compact, deterministic way to describe a code graph on
// disk.
var cellGraphMagic = [4]byte{'T', 'V', 'M', 'C'}

const cellGraphVersion = 2

// WriteCellGraph serializes every cell in pool reachable from rootHash
// into w. Cells reference each other by table position, not by hash,
// since ReadCellGraph recomputes hashes from content rather than
// trusting whatever Hash field the in-memory CodeCell happened to
// carry.
func WriteCellGraph(w io.Writer, rootHash string, pool map[string]*CodeCell) error {
	idx, err := BuildCellIndex(rootHash, pool)
	if err != nil {
		return errors.Wrap(err, "tvmdbg: validating code graph before write")
	}

	order := make([]string, 0, idx.Len())
	position := make(map[string]uint32, idx.Len())
	for hash := range idx.cells {
		position[hash] = uint32(len(order))
		order = append(order, hash)
	}

	rootIndex, ok := position[rootHash]
	if !ok {
		return errors.Errorf("tvmdbg: root cell %s missing from its own index", rootHash)
	}

	if _, err := w.Write(cellGraphMagic[:]); err != nil {
		return err
	}
	if err := writeUint32(w, cellGraphVersion); err != nil {
		return err
	}
	if err := writeUint32(w, rootIndex); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(order))); err != nil {
		return err
	}

	for _, hash := range order {
		if err := writeRawCell(w, idx.cells[hash], position); err != nil {
			return err
		}
	}
	return nil
}

func writeRawCell(w io.Writer, cell *CodeCell, position map[string]uint32) error {
	if err := writeUint32(w, uint32(cell.BitLen)); err != nil {
		return err
	}
	byteLen := (cell.BitLen + 7) / 8
	if err := writeUint32(w, uint32(byteLen)); err != nil {
		return err
	}
	if _, err := w.Write(cell.Bits[:byteLen]); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(cell.Refs))); err != nil {
		return err
	}
	for _, ref := range cell.Refs {
		refIndex, ok := position[ref]
		if !ok {
			return errors.Errorf("tvmdbg: ref %s missing from its own index", ref)
		}
		if err := writeUint32(w, refIndex); err != nil {
			return err
		}
	}
	return nil
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// rawCell is a cell exactly as it appears on disk: its refs are table
// indices, since the content hash that will eventually identify it, and
// that its parent needs to reference it by, doesn't exist until
// resolveCellHash computes it.
type rawCell struct {
	bitLen uint
	bits   []byte
	refIdx []uint32
}

// ReadCellGraph parses a container written by WriteCellGraph, computing
// each cell's content hash from its bits and its already-resolved
// children's hashes, depth-first, and returns the root hash alongside a
// pool keyed by those computed hashes, suitable for BuildCellIndex.
func ReadCellGraph(r io.Reader) (rootHash string, pool map[string]*CodeCell, err error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return "", nil, errors.Wrap(err, "tvmdbg: reading cell graph magic")
	}
	if magic != cellGraphMagic {
		return "", nil, errors.New("tvmdbg: not a cell graph container")
	}

	version, err := readUint32(r)
	if err != nil {
		return "", nil, err
	}
	if version != cellGraphVersion {
		return "", nil, errors.Errorf("tvmdbg: unsupported cell graph version %d", version)
	}

	rootIndex, err := readUint32(r)
	if err != nil {
		return "", nil, err
	}

	count, err := readUint32(r)
	if err != nil {
		return "", nil, err
	}

	raw := make([]rawCell, count)
	for i := range raw {
		raw[i], err = readRawCell(r)
		if err != nil {
			return "", nil, errors.Wrapf(err, "tvmdbg: reading cell %d", i)
		}
	}
	if rootIndex >= count {
		return "", nil, errors.Errorf("tvmdbg: root index %d out of range for %d cells", rootIndex, count)
	}

	pool = make(map[string]*CodeCell, count)
	hashes := make([]string, count)
	state := make([]uint8, count) // 0 unvisited, 1 visiting, 2 resolved

	var resolve func(i uint32) (string, error)
	resolve = func(i uint32) (string, error) {
		if i >= count {
			return "", errors.Errorf("tvmdbg: cell ref index %d out of range", i)
		}
		switch state[i] {
		case 2:
			return hashes[i], nil
		case 1:
			return "", errors.Errorf("tvmdbg: cell graph contains a reference cycle at index %d", i)
		}
		state[i] = 1

		c := raw[i]
		if len(c.refIdx) > maxCellRefs {
			return "", errors.Errorf(
				"tvmdbg: cell %d has %d refs, exceeding the maximum of %d", i, len(c.refIdx), maxCellRefs,
			)
		}

		childHashes := make([]string, len(c.refIdx))
		for j, ref := range c.refIdx {
			childHash, err := resolve(ref)
			if err != nil {
				return "", err
			}
			childHashes[j] = childHash
		}

		hash := resolveCellHash(c.bitLen, c.bits, childHashes)
		hashes[i] = hash
		state[i] = 2
		pool[hash] = &CodeCell{
			Hash:   hash,
			Bits:   c.bits,
			BitLen: c.bitLen,
			Refs:   childHashes,
		}
		return hash, nil
	}

	for i := uint32(0); i < count; i++ {
		if _, err := resolve(i); err != nil {
			return "", nil, err
		}
	}

	rootHash, err = resolve(rootIndex)
	if err != nil {
		return "", nil, err
	}
	return rootHash, pool, nil
}

// resolveCellHash computes a cell's content hash as SHA-256 over its
// bit length, its bit data truncated to that length, and its already-
// resolved children's hashes in ref order. This is the format's own
// hash scheme, not TVM's real cell-hashing algorithm (which also folds
// in cell type and level information this fixture format has no use
// for); it only has to be deterministic and collision-free enough to
// content-address fixtures built and read by this package.
func resolveCellHash(bitLen uint, bits []byte, childHashes []string) string {
	h := sha256.New()

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(bitLen))
	h.Write(lenBuf[:])

	byteLen := (bitLen + 7) / 8
	h.Write(bits[:byteLen])

	for _, child := range childHashes {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(child)))
		h.Write(lenBuf[:])
		h.Write([]byte(child))
	}

	return strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
}

func readRawCell(r io.Reader) (rawCell, error) {
	bitLen, err := readUint32(r)
	if err != nil {
		return rawCell{}, err
	}
	byteLen, err := readUint32(r)
	if err != nil {
		return rawCell{}, err
	}
	bits := make([]byte, byteLen)
	if _, err := io.ReadFull(r, bits); err != nil {
		return rawCell{}, err
	}
	refCount, err := readUint32(r)
	if err != nil {
		return rawCell{}, err
	}
	refIdx := make([]uint32, refCount)
	for i := range refIdx {
		refIdx[i], err = readUint32(r)
		if err != nil {
			return rawCell{}, err
		}
	}
	return rawCell{bitLen: uint(bitLen), bits: bits, refIdx: refIdx}, nil
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}
