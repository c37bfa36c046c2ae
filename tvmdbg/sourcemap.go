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
	"encoding/json"
	"io"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// SourceMapEntry is a closed sum type over the three marker kinds the
// compiler toolchain emits.
type SourceMapEntry interface {
	isSourceMapEntry()
	location() (path string, line int)
}

// StatementEntry marks a source statement boundary. Variables names the
// operand-stack-resident locals in scope at this point, positionally.
type StatementEntry struct {
	Path           string
	Line           int
	Function       string
	Variables      []string
	FirstStatement bool
}

func (StatementEntry) isSourceMapEntry() {}
func (e StatementEntry) location() (string, int) { return e.Path, e.Line }

// ReturnEntry marks a function return point.
type ReturnEntry struct {
	Path     string
	Line     int
	Function string
}

func (ReturnEntry) isSourceMapEntry() {}
func (e ReturnEntry) location() (string, int) { return e.Path, e.Line }

// CatchEntry marks a catch-unwind point.
type CatchEntry struct {
	Path     string
	Line     int
	Function string
}

func (CatchEntry) isSourceMapEntry() {}
func (e CatchEntry) location() (string, int) { return e.Path, e.Line }

// SourceMap maps a DebugInfoIndex to its SourceMapEntry. It is immutable
// after LoadDebugInfo.
type SourceMap struct {
	entries map[DebugInfoIndex]SourceMapEntry
}

// EntryAt returns the entry for index, if any.
func (m *SourceMap) EntryAt(index DebugInfoIndex) (SourceMapEntry, bool) {
	e, ok := m.entries[index]
	return e, ok
}

// AvailableLines answers "is this a valid breakpoint line?" in O(1), and
// enumerates the paths and lines that actually appear in the map.
type AvailableLines struct {
	lines map[string]map[int]struct{}
}

// IsLineAvailable reports whether path has any entry at line.
func (a *AvailableLines) IsLineAvailable(path string, line int) bool {
	lines, ok := a.lines[path]
	if !ok {
		return false
	}
	_, ok = lines[line]
	return ok
}

// AvailablePaths returns every path that has at least one entry.
func (a *AvailableLines) AvailablePaths() []string {
	paths := make([]string, 0, len(a.lines))
	for p := range a.lines {
		paths = append(paths, p)
	}
	return paths
}

// AvailableLinesFor returns the sorted-unspecified set of lines with an
// entry for path, or nil if path is unknown.
func (a *AvailableLines) AvailableLinesFor(path string) []int {
	lines, ok := a.lines[path]
	if !ok {
		return nil
	}
	out := make([]int, 0, len(lines))
	for l := range lines {
		out = append(out, l)
	}
	return out
}

func (a *AvailableLines) add(path string, line int) {
	if a.lines == nil {
		a.lines = make(map[string]map[int]struct{})
	}
	if a.lines[path] == nil {
		a.lines[path] = make(map[int]struct{})
	}
	a.lines[path][line] = struct{}{}
}

// GlobalEntry names one positional slot of the VM's C7 context register.
// Index i in the GlobalEntry list corresponds to c7.items[i+1]; see
// DESIGN.md on why items[0] is skipped by convention.
type GlobalEntry struct {
	Name string

	// Synthetic marks a GlobalEntry manufactured for exposing
	// c7.items[0] under a synthetic name rather than one that came from
	// the debug-info input. Nothing in this package sets it:
	// LoadDebugInfo only produces entries from the input, and Globals
	// never exposes c7.items[0]. See DESIGN.md.
	Synthetic bool
}

// debugInfoLocation mirrors one element of the "locations" array in the
// JSON debug-info input produced by the compiler toolchain.
type debugInfoLocation struct {
	File         string   `json:"file"`
	Line         int      `json:"line"`
	Func         string   `json:"func"`
	Ret          bool     `json:"ret,omitempty"`
	IsCatch      bool     `json:"is_catch,omitempty"`
	Vars         []string `json:"vars,omitempty"`
	FirstStmt    bool     `json:"first_stmt,omitempty"`
}

type debugInfoGlobal struct {
	Name string `json:"name"`
}

// debugInfoTable is the full JSON debug-info document.
type debugInfoTable struct {
	Locations []debugInfoLocation `json:"locations"`
	Globals   []debugInfoGlobal   `json:"globals"`
}

// LoadDebugInfo parses the compiler toolchain's debug-info JSON into a
// SourceMap, its derived AvailableLines index, and the ordered list of
// global names.
//
// This targets the richer Statement/Return/Catch schema with a
// first_stmt hint rather than an older ret==false&&vars!=nil convention;
// classification below implements exactly that schema.
//
// A single malformed location record is logged and skipped rather than
// failing the whole load: the debug-info table is produced by a separate
// compiler pass this engine does not control, and partial information is
// strictly better than none — the same best-effort posture markers
// themselves get when they fail to decode.
func LoadDebugInfo(r io.Reader) (*SourceMap, *AvailableLines, []GlobalEntry, error) {
	var table debugInfoTable
	if err := json.NewDecoder(r).Decode(&table); err != nil {
		return nil, nil, nil, err
	}

	sm := &SourceMap{entries: make(map[DebugInfoIndex]SourceMapEntry, len(table.Locations))}
	avail := &AvailableLines{}

	for i, loc := range table.Locations {
		entry, ok := classifyLocation(loc)
		if !ok {
			log.Warn().
				Int("debugInfoIndex", i).
				Str("file", loc.File).
				Int("line", loc.Line).
				Msg("tvmdbg: skipping malformed debug-info location")
			continue
		}

		index := DebugInfoIndex(i)
		sm.entries[index] = entry
		path, line := entry.location()
		avail.add(path, line)
	}

	globals := make([]GlobalEntry, 0, len(table.Globals))
	for _, g := range table.Globals {
		globals = append(globals, GlobalEntry{Name: g.Name})
	}

	return sm, avail, globals, nil
}

func classifyLocation(loc debugInfoLocation) (SourceMapEntry, bool) {
	if loc.File == "" {
		return nil, false
	}
	absPath, err := filepath.Abs(loc.File)
	if err != nil {
		return nil, false
	}

	switch {
	case loc.IsCatch:
		return CatchEntry{Path: absPath, Line: loc.Line, Function: loc.Func}, true
	case loc.Ret:
		return ReturnEntry{Path: absPath, Line: loc.Line, Function: loc.Func}, true
	default:
		return StatementEntry{
			Path:           absPath,
			Line:           loc.Line,
			Function:       loc.Func,
			Variables:      loc.Vars,
			FirstStatement: loc.FirstStmt,
		}, true
	}
}
