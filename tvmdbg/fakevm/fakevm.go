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

// Package fakevm is a scripted stand-in for the native VM emulator. It
// replays a fixed sequence of marker events instead of actually
// executing bytecode, which is what every end-to-end test and example in
// this repository drives the stepping engine with; a binding to the real
// emulator is a native-library integration this repository does not
// attempt to fabricate.
package fakevm

import (
	"fmt"

	"github.com/tvmdbg/tvmdbg"
)

// MarkerEvent is one scripted step of a fake run. Exactly one of the
// Statement/Return/Catch/NoMarker shapes is meaningful per event; which
// one is selected by Kind.
type MarkerEvent struct {
	Kind MarkerKind

	// Statement fields.
	Path           string
	Line           int
	Function       string
	Variables      []string
	FirstStatement bool

	// SavedDepth overrides what GetContParam reports while this event is
	// the current position, letting a Catch event recover the exact
	// depth a real emulator would have checkpointed at the protected
	// frame's entry, without this driver having to simulate per-
	// continuation storage.
	SavedDepth int

	// Locals supplies the operand-stack values visible while this event
	// is current, positionally matching Variables.
	Locals []tvmdbg.TupleItem

	// Globals supplies the fake C7 tuple's items (including the
	// conventionally-skipped items[0]) visible while this event is
	// current.
	Globals []tvmdbg.TupleItem
}

// MarkerKind selects which shape of source-map entry, if any, a
// MarkerEvent corresponds to.
type MarkerKind int

const (
	// NoMarker is a VM step that decodes to no marker at all — the
	// stepping loop should simply continue past it.
	NoMarker MarkerKind = iota
	Statement
	Return
	Catch
)

// Driver is a scripted tvmdbg.Emulator. Each call to Step advances to the
// next MarkerEvent in Trace; CodePos reports a synthetic position
// derived from the current index, which the paired CellIndex/SourceMap
// built from BuildFixture's output resolve back to exactly that event's
// entry.
type Driver struct {
	kind  tvmdbg.SessionKind
	trace []MarkerEvent
	pos   int

	setupResult tvmdbg.SetupResult
	finalResult any

	contParam int
	logFn     func(string)

	// stepErr, setContParamErr, getContParamErr let a test simulate the
	// real emulator failing mid-session, so the stepping engine's
	// cleanup-on-every-exit-path guarantee has something to exercise.
	// Once injected, the error is returned on every subsequent call
	// rather than just once, since a session that has errored is
	// expected to be aborted and never driven again.
	stepErr         error
	setContParamErr error
	getContParamErr error

	destroyed bool
}

// InjectStepError makes every future Step call return err instead of
// advancing the trace.
func (d *Driver) InjectStepError(err error) {
	d.stepErr = err
}

// InjectSetContParamError makes every future SetContParam call return
// err instead of recording the value.
func (d *Driver) InjectSetContParamError(err error) {
	d.setContParamErr = err
}

// InjectGetContParamError makes every future GetContParam call return
// err instead of reporting a depth.
func (d *Driver) InjectGetContParamError(err error) {
	d.getContParamErr = err
}

// Destroyed reports whether Destroy has been called, so a test can
// assert the emulator handle was released on a given exit path.
func (d *Driver) Destroyed() bool {
	return d.destroyed
}

// NewDriver builds a Driver over trace. setupResult is returned verbatim
// from Setup; pass a Code of 1 for a Transaction session that should
// succeed. finalResult is returned from Result once the trace is
// exhausted.
func NewDriver(kind tvmdbg.SessionKind, trace []MarkerEvent, setupResult tvmdbg.SetupResult, finalResult any) *Driver {
	return &Driver{
		kind:        kind,
		trace:       trace,
		pos:         -1,
		setupResult: setupResult,
		finalResult: finalResult,
	}
}

func (d *Driver) Setup(any) (tvmdbg.SetupResult, error) {
	return d.setupResult, nil
}

// Step advances to the next scripted event. finished is true once the
// trace is exhausted.
func (d *Driver) Step() (bool, error) {
	if d.stepErr != nil {
		return false, d.stepErr
	}
	d.pos++
	return d.pos >= len(d.trace), nil
}

// syntheticHash is the cell hash of the fake position at trace index
// index; the code graph built by BuildFixture has exactly one cell per
// trace index, so the hash alone is enough to disambiguate.
func syntheticHash(index int) string {
	return fmt.Sprintf("FAKE%08d", index)
}

func (d *Driver) CodePos() (tvmdbg.CodePos, error) {
	if d.pos < 0 || d.pos >= len(d.trace) {
		return tvmdbg.CodePos{}, fmt.Errorf("fakevm: CodePos called out of trace bounds at %d", d.pos)
	}
	return tvmdbg.CodePos{Hash: syntheticHash(d.pos), Offset: 0}, nil
}

func (d *Driver) Stack() ([]tvmdbg.TupleItem, error) {
	if d.pos < 0 || d.pos >= len(d.trace) {
		return nil, nil
	}
	return d.trace[d.pos].Locals, nil
}

func (d *Driver) C7() (tvmdbg.TupleValue, bool, error) {
	if d.pos < 0 || d.pos >= len(d.trace) {
		return tvmdbg.TupleValue{}, false, nil
	}
	globals := d.trace[d.pos].Globals
	if globals == nil {
		return tvmdbg.TupleValue{}, false, nil
	}
	return tvmdbg.TupleValue{Items: globals}, true, nil
}

func (d *Driver) GetContParam() (int, error) {
	if d.getContParamErr != nil {
		return 0, d.getContParamErr
	}
	if d.pos >= 0 && d.pos < len(d.trace) && d.trace[d.pos].Kind == Catch {
		return d.trace[d.pos].SavedDepth, nil
	}
	return d.contParam, nil
}

func (d *Driver) SetContParam(value int) error {
	if d.setContParamErr != nil {
		return d.setContParamErr
	}
	d.contParam = value
	return nil
}

func (d *Driver) Result() (any, error) {
	return d.finalResult, nil
}

func (d *Driver) Destroy() {
	d.destroyed = true
}

func (d *Driver) SetDebugLogFunc(fn func(string)) {
	d.logFn = fn
}

// Log lets a test simulate the emulator emitting a log line; it calls
// whatever sink Session wired via SetDebugLogFunc.
func (d *Driver) Log(line string) {
	if d.logFn != nil {
		d.logFn(line)
	}
}
