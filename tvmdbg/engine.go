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
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// stopCondition decides, given the frame depth measured at the moment a
// Statement marker is reached, whether the current step should stop
// there. It closes over whatever depth the invoking verb captured at
// call time.
type stopCondition struct {
	kind EventKind
	met  func(entry StatementEntry, depth int) bool
}

// Continue runs until a Statement marker whose (path, line) matches a
// breakpoint in the store, or until the VM terminates.
func (s *Session) Continue() error {
	return s.stepUntil(stopCondition{
		kind: StopOnBreakpoint,
		met: func(entry StatementEntry, _ int) bool {
			return s.bps.HasBreakpoint(entry.Path, uint32(entry.Line))
		},
	})
}

// StopOnEntry runs to the very next Statement marker and reports it with
// a StopOnEntry event rather than StopOnStep. It exists for hosts whose
// launch configuration asks to pause before any user code runs; it is
// meant to be the first verb called on a freshly prepared Session and
// must not be called again afterward.
func (s *Session) StopOnEntry() error {
	if s.enteredOnce {
		return errors.New("tvmdbg: StopOnEntry called more than once")
	}
	s.enteredOnce = true
	return s.stepUntil(stopCondition{
		kind: StopOnEntry,
		met:  func(StatementEntry, int) bool { return true },
	})
}

// StepIn stops on the very next Statement marker, regardless of depth.
func (s *Session) StepIn() error {
	return s.stepUntil(stopCondition{
		kind: StopOnStep,
		met:  func(StatementEntry, int) bool { return true },
	})
}

// StepOver stops at the next Statement marker whose frame depth does not
// exceed the depth measured when StepOver was invoked — i.e. it steps
// across, not into, any call made from the current frame.
func (s *Session) StepOver() error {
	d0 := s.frames.depth()
	return s.stepUntil(stopCondition{
		kind: StopOnStep,
		met:  func(_ StatementEntry, depth int) bool { return depth <= d0 },
	})
}

// StepOut stops at the next Statement marker whose frame depth is
// strictly less than the depth measured when StepOut was invoked.
func (s *Session) StepOut() error {
	d0 := s.frames.depth()
	return s.stepUntil(stopCondition{
		kind: StopOnStep,
		met:  func(_ StatementEntry, depth int) bool { return depth < d0 },
	})
}

// stepUntil is the one routine all four stepping verbs reduce to. It
// drives the emulator one instruction at a time, decoding a marker at
// each new position and dispatching on its kind, until cond.met reports
// true at a Statement marker or the VM terminates.
//
// It runs synchronously to completion — there is no suspension point
// inside this loop. eventBus.send only places each event in the channel
// buffer, so the goroutine that called the verb observes them once this
// call returns; a host draining Events() from another goroutine, as the
// REPL does, can receive them while the loop is still running.
//
// Every exit path releases the emulator handle, not just normal
// termination: a mid-session error (a failed Step/CodePos call, a
// frame-depth overrun, a failed continuation-parameter get/set) still
// leaves the emulator holding resources the host has no other way to
// free, and leaves the Session able to be driven again into an
// emulator that already errored once. The deferred abort below catches
// every such return and finalizes the session exactly once; it is a
// no-op on the success paths, which already finalize themselves
// (finalize() on VM termination, nil on an ordinary stop).
func (s *Session) stepUntil(cond stopCondition) (err error) {
	if s.finalized {
		return ErrAlreadyFinalized
	}
	defer func() {
		if err != nil && err != ErrAlreadyFinalized {
			s.abort(err)
		}
	}()

	for {
		finished, err := s.emu.Step()
		if err != nil {
			return errors.Wrap(err, "tvmdbg: emulator step")
		}
		if finished {
			return s.finalize()
		}

		pos, err := s.emu.CodePos()
		if err != nil {
			return errors.Wrap(err, "tvmdbg: reading code position")
		}

		index, ok := decodeMarker(s.cells, pos)
		if !ok {
			continue
		}

		entry, ok := s.source.EntryAt(index)
		if !ok {
			continue
		}

		switch e := entry.(type) {
		case StatementEntry:
			if e.FirstStatement {
				if s.cfg.MaxFrameDepth > 0 && s.frames.depth() >= s.cfg.MaxFrameDepth {
					return errors.Wrapf(ErrFrameDepthExceeded, "limit is %d", s.cfg.MaxFrameDepth)
				}
				s.frames.push(StackFrame{Function: e.Function, Path: e.Path, Line: e.Line})
				if err := s.emu.SetContParam(s.frames.depth()); err != nil {
					return errors.Wrap(err, "tvmdbg: saving frame-depth checkpoint")
				}
			}
			if top := s.frames.top(); top != nil {
				top.Line = e.Line
			}

			if cond.met(e, s.frames.depth()) {
				s.bus.send(Event{Kind: cond.kind, Frames: s.frames.snapshot()})
				return nil
			}

		case ReturnEntry:
			s.frames.pop()

		case CatchEntry:
			savedDepth, err := s.emu.GetContParam()
			if err != nil {
				return errors.Wrap(err, "tvmdbg: reading frame-depth checkpoint")
			}
			s.frames.truncate(savedDepth)
		}
	}
}

// finalize runs exactly once per session: it queries the emulator's final
// result, emits an End event, and releases the emulator handle on every
// exit path, successful or not.
func (s *Session) finalize() error {
	if s.finalized {
		return nil
	}
	s.finalized = true
	defer s.emu.Destroy()

	result, err := s.emu.Result()
	if err != nil {
		log.Warn().Err(err).Msg("tvmdbg: reading final result")
	}
	s.result = result

	s.bus.send(Event{Kind: End, Result: result})
	s.bus.close()
	return nil
}

// abort releases the emulator handle and marks the session finalized
// after a mid-session error, the error-path counterpart to finalize.
// It does not emit an End event: an End event reports a VM result, and
// a mid-session error never produced one. Closing the event channel
// still matters so a host ranging over Events() in its own goroutine
// (the REPL does this) observes the channel close and stops rather
// than blocking forever on a Session nothing will ever step again.
func (s *Session) abort(err error) {
	if s.finalized {
		return
	}
	s.finalized = true
	log.Error().Err(err).Msg("tvmdbg: aborting session after mid-session error")
	s.emu.Destroy()
	s.bus.close()
}

// currentStatement returns the StatementEntry the engine most recently
// stopped on, if any, by re-deriving it from the emulator's current
// position. Locals and Globals are only meaningful
// immediately after a stop, so both inspection calls below require a
// fresh decode rather than caching a stale entry across steps.
func (s *Session) currentStatement() (StatementEntry, bool, error) {
	pos, err := s.emu.CodePos()
	if err != nil {
		return StatementEntry{}, false, errors.Wrap(err, "tvmdbg: reading code position")
	}
	index, ok := decodeMarker(s.cells, pos)
	if !ok {
		return StatementEntry{}, false, nil
	}
	entry, ok := s.source.EntryAt(index)
	if !ok {
		return StatementEntry{}, false, nil
	}
	stmt, ok := entry.(StatementEntry)
	return stmt, ok, nil
}

// Locals pairs the names declared on the current Statement marker with
// their values on the VM operand stack, positionally. Returns ok == false
// if the engine is not currently stopped on a Statement marker.
func (s *Session) Locals() (map[string]TupleItem, bool, error) {
	stmt, ok, err := s.currentStatement()
	if err != nil || !ok {
		return nil, false, err
	}

	stack, err := s.emu.Stack()
	if err != nil {
		return nil, false, errors.Wrap(err, "tvmdbg: reading operand stack")
	}

	out := make(map[string]TupleItem, len(stmt.Variables))
	for i, name := range stmt.Variables {
		if i >= len(stack) {
			break
		}
		out[name] = stack[i]
	}
	return out, true, nil
}

// Globals pairs every known global name with c7.items[i+1], or with
// NullValue if that slot is absent. Returns ok == false if C7 is not
// shaped like a tuple.
func (s *Session) Globals() (map[string]TupleItem, bool, error) {
	c7, ok, err := s.emu.C7()
	if err != nil {
		return nil, false, errors.Wrap(err, "tvmdbg: reading C7")
	}
	if !ok {
		return nil, false, nil
	}

	out := make(map[string]TupleItem, len(s.globals))
	for i, g := range s.globals {
		slot := i + 1
		if slot < len(c7.Items) {
			out[g.Name] = c7.Items[slot]
		} else {
			out[g.Name] = NullValue
		}
	}
	return out, true, nil
}
