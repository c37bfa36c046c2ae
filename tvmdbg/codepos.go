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

import "fmt"

// CodePos is the emulator's current instruction pointer: a content hash
// identifying a CodeCell plus a bit offset into that cell's bit-stream.
type CodePos struct {
	Hash   string // uppercase hex, the CellIndex lookup key
	Offset uint
}

func (p CodePos) String() string {
	return fmt.Sprintf("%s+%d", p.Hash, p.Offset)
}
