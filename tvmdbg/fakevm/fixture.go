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

package fakevm

import (
	"bytes"
	"encoding/json"

	"github.com/tvmdbg/tvmdbg"
)

// debugInfoDoc mirrors the JSON shape tvmdbg.LoadDebugInfo expects; it is
// redeclared here rather than imported because the production type is
// unexported, leaving the wire shape as the only stable contract between
// the two packages.
type debugInfoDoc struct {
	Locations []debugInfoLoc  `json:"locations"`
	Globals   []debugInfoName `json:"globals"`
}

type debugInfoLoc struct {
	File      string   `json:"file"`
	Line      int      `json:"line"`
	Func      string   `json:"func"`
	Ret       bool     `json:"ret,omitempty"`
	IsCatch   bool     `json:"is_catch,omitempty"`
	Vars      []string `json:"vars,omitempty"`
	FirstStmt bool     `json:"first_stmt,omitempty"`
}

type debugInfoName struct {
	Name string `json:"name"`
}

// BuildFixture turns trace into everything tvmdbg.Prepare needs: a code
// graph with one cell per trace index (each containing exactly one
// encoded marker, or none for a NoMarker event), a debug-info document
// matching it one-for-one, and a Driver wired to drive the same trace.
//
// The fake code graph is a flat chain, not a tree: cell i has cell i+1 as
// its only ref, except the last, which has none. Real code graphs branch
// on conditionals and loops; this one doesn't need to, since the driver
// decides the next position itself rather than letting the engine
// discover it by decoding refs.
func BuildFixture(kind tvmdbg.SessionKind, trace []MarkerEvent, globalNames []string, setupResult tvmdbg.SetupResult, finalResult any) (rootHash string, pool map[string]*tvmdbg.CodeCell, debugInfoJSON []byte, driver *Driver, err error) {
	pool = make(map[string]*tvmdbg.CodeCell, len(trace))
	var doc debugInfoDoc
	for _, name := range globalNames {
		doc.Globals = append(doc.Globals, debugInfoName{Name: name})
	}

	for i, ev := range trace {
		hash := syntheticHash(i)
		var bits []byte

		switch ev.Kind {
		case Statement, Return, Catch:
			encoded, encErr := tvmdbg.EncodeMarker(tvmdbg.DebugInfoIndex(i))
			if encErr != nil {
				return "", nil, nil, nil, encErr
			}
			bits = encoded
		}

		var refs []string
		if i+1 < len(trace) {
			refs = []string{syntheticHash(i + 1)}
		}

		pool[hash] = &tvmdbg.CodeCell{
			Hash:   hash,
			Bits:   bits,
			BitLen: uint(len(bits)) * 8,
			Refs:   refs,
		}

		loc := debugInfoLoc{
			File:      ev.Path,
			Line:      ev.Line,
			Func:      ev.Function,
			Vars:      ev.Variables,
			FirstStmt: ev.FirstStatement,
		}
		switch ev.Kind {
		case Return:
			loc.Ret = true
		case Catch:
			loc.IsCatch = true
		}
		if ev.Kind == NoMarker {
			// No source-map entry is emitted for this index; the engine
			// will fail to decode a marker here and simply continue.
			doc.Locations = append(doc.Locations, debugInfoLoc{})
			continue
		}
		doc.Locations = append(doc.Locations, loc)
	}

	debugInfoJSON, err = json.Marshal(doc)
	if err != nil {
		return "", nil, nil, nil, err
	}

	if len(trace) == 0 {
		return "", pool, debugInfoJSON, NewDriver(kind, trace, setupResult, finalResult), nil
	}

	return syntheticHash(0), pool, debugInfoJSON, NewDriver(kind, trace, setupResult, finalResult), nil
}

// NewReader is a small convenience for handing BuildFixture's JSON bytes
// to tvmdbg.LoadDebugInfo / tvmdbg.Prepare, which take an io.Reader.
func NewReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}
