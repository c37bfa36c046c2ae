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
	"encoding/json"
	"fmt"
	"io"

	"github.com/tvmdbg/tvmdbg"
)

// traceScriptEvent is the on-disk shape of one MarkerEvent. Locals and
// Globals are plain int64 lists here, since a TupleItem is a Go
// interface and has no single natural JSON encoding; scripts that need
// cell/slice/tuple values have to be built in Go, not loaded from a
// file.
type traceScriptEvent struct {
	Kind           string  `json:"kind"`
	Path           string  `json:"path,omitempty"`
	Line           int     `json:"line,omitempty"`
	Function       string  `json:"function,omitempty"`
	Variables      []string `json:"variables,omitempty"`
	FirstStatement bool    `json:"first_statement,omitempty"`
	SavedDepth     int     `json:"saved_depth,omitempty"`
	Locals         []int64 `json:"locals,omitempty"`
	Globals        []int64 `json:"globals,omitempty"`
}

// LoadTraceScript parses a JSON array of trace events into a []MarkerEvent
// usable with BuildFixture. It is meant for the REPL and example programs,
// where a trace is authored as a small fixture file rather than built up
// in Go.
func LoadTraceScript(r io.Reader) ([]MarkerEvent, error) {
	var raw []traceScriptEvent
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("fakevm: decoding trace script: %w", err)
	}

	events := make([]MarkerEvent, 0, len(raw))
	for i, e := range raw {
		kind, err := parseMarkerKind(e.Kind)
		if err != nil {
			return nil, fmt.Errorf("fakevm: trace event %d: %w", i, err)
		}
		events = append(events, MarkerEvent{
			Kind:           kind,
			Path:           e.Path,
			Line:           e.Line,
			Function:       e.Function,
			Variables:      e.Variables,
			FirstStatement: e.FirstStatement,
			SavedDepth:     e.SavedDepth,
			Locals:         intsToItems(e.Locals),
			Globals:        intsToItems(e.Globals),
		})
	}
	return events, nil
}

func parseMarkerKind(s string) (MarkerKind, error) {
	switch s {
	case "", "statement":
		return Statement, nil
	case "return":
		return Return, nil
	case "catch":
		return Catch, nil
	case "none":
		return NoMarker, nil
	default:
		return 0, fmt.Errorf("unknown marker kind %q", s)
	}
}

func intsToItems(vals []int64) []tvmdbg.TupleItem {
	if vals == nil {
		return nil
	}
	items := make([]tvmdbg.TupleItem, len(vals))
	for i, v := range vals {
		items[i] = tvmdbg.NewIntItem(v)
	}
	return items
}
