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
	"fmt"
	"math/big"
)

// TupleItem is the engine-local representation of a single value read off
// the VM operand stack or out of the C7 context register. It is a closed
// sum type; callers should type-switch on it exhaustively.
type TupleItem interface {
	isTupleItem()
	String() string
}

// NullItem is TVM's Null value. It is also what Globals reports for any
// global whose slot is absent from C7.
type NullItem struct{}

func (NullItem) isTupleItem()  {}
func (NullItem) String() string { return "null" }

// NullValue is the canonical NullItem instance.
var NullValue TupleItem = NullItem{}

// IntItem is a TVM integer. TVM integers are 257-bit signed values, so a
// plain int64 would silently truncate; big.Int is the only representation
// that cannot lose precision.
type IntItem struct {
	Value *big.Int
}

func (IntItem) isTupleItem() {}
func (i IntItem) String() string {
	if i.Value == nil {
		return "0"
	}
	return i.Value.String()
}

// NewIntItem wraps an int64 as an IntItem.
func NewIntItem(v int64) IntItem {
	return IntItem{Value: big.NewInt(v)}
}

// CellItem is a reference to a CodeCell by content hash. The debugger
// never looks inside a referenced cell's contents beyond decoding markers
// from cells that are themselves part of the executing code graph.
type CellItem struct {
	Hash string
}

func (CellItem) isTupleItem()  {}
func (c CellItem) String() string { return fmt.Sprintf("cell(%s)", c.Hash) }

// SliceItem is a cell slice: a cell reference plus the bit range of it
// still unconsumed, as produced by TVM's CTOS-family opcodes.
type SliceItem struct {
	Hash      string
	BitOffset uint
	BitLen    uint
}

func (SliceItem) isTupleItem() {}
func (s SliceItem) String() string {
	return fmt.Sprintf("slice(%s, %d..%d)", s.Hash, s.BitOffset, s.BitOffset+s.BitLen)
}

// TupleValue is a nested tuple of other TupleItems, as produced by the
// TUPLE family of opcodes and as the shape of C7 itself.
type TupleValue struct {
	Items []TupleItem
}

func (TupleValue) isTupleItem() {}
func (t TupleValue) String() string {
	return fmt.Sprintf("tuple(len=%d)", len(t.Items))
}

// UnknownItem is a catch-all for a value the emulator reports in a shape
// this engine doesn't recognize. An unrecognized shape is never an
// error; it is reported, not swallowed, so a host can still show the raw
// form to the user.
type UnknownItem struct {
	Raw string
}

func (UnknownItem) isTupleItem()  {}
func (u UnknownItem) String() string { return u.Raw }
