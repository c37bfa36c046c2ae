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

// Breakpoint is a single breakpoint record. Verified is frozen at set
// time: if a SourceMap is ever reloaded, existing breakpoints keep their
// original Verified flag (the host is expected to clear and re-set).
type Breakpoint struct {
	ID       uint32
	Line     uint32
	Verified bool
}

// BreakpointStore holds the per-path breakpoint lists for a session.
type BreakpointStore struct {
	byPath  map[string][]Breakpoint
	avail   *AvailableLines
	nextID  uint32
}

// NewBreakpointStore creates an empty store that verifies new breakpoints
// against avail.
func NewBreakpointStore(avail *AvailableLines) *BreakpointStore {
	return &BreakpointStore{
		byPath: make(map[string][]Breakpoint),
		avail:  avail,
	}
}

// Clear replaces path's breakpoint list with an empty one. Other paths
// are untouched. Calling Clear twice in a row for the same path is
// equivalent to calling it once.
func (s *BreakpointStore) Clear(path string) {
	s.byPath[path] = nil
}

// Set allocates a fresh, session-unique, monotonically increasing id,
// determines Verified from the store's AvailableLines snapshot, appends
// the breakpoint to path's list, and returns the new record. Setting two
// breakpoints at the same (path, line) is allowed and yields two records
// with distinct ids, both listed.
func (s *BreakpointStore) Set(path string, line uint32) Breakpoint {
	bp := Breakpoint{
		ID:       s.nextID,
		Line:     line,
		Verified: s.avail.IsLineAvailable(path, int(line)),
	}
	s.nextID++
	s.byPath[path] = append(s.byPath[path], bp)
	return bp
}

// HasBreakpoint reports whether any breakpoint in path's list matches
// line; duplicates count as one.
func (s *BreakpointStore) HasBreakpoint(path string, line uint32) bool {
	for _, bp := range s.byPath[path] {
		if bp.Line == line {
			return true
		}
	}
	return false
}

// List returns path's breakpoints in insertion order. The returned slice
// must not be mutated by the caller.
func (s *BreakpointStore) List(path string) []Breakpoint {
	return s.byPath[path]
}
