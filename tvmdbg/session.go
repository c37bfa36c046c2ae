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
	"github.com/rs/zerolog/log"
)

// Session ties one emulator handle, its code graph and source map, and the
// mutable state the stepping engine owns (frame stack, breakpoints) into
// a single object. A Session is exclusively owned by whatever goroutine
// drives its stepping verbs; nothing here is safe for concurrent use.
type Session struct {
	kind   SessionKind
	emu    Emulator
	cfg    Config
	cells  *CellIndex
	source *SourceMap
	avail  *AvailableLines
	globals []GlobalEntry
	bps    *BreakpointStore
	frames frameStack
	bus    *eventBus

	finalized bool
	result    any

	enteredOnce bool
}

// PrepareArgs bundles everything a Session needs to start, mirroring the
// inputs a host gathers before it can step anything: a code graph, a
// debug-info table, and whatever the emulator itself needs to set up.
type PrepareArgs struct {
	Kind SessionKind

	// RootHash is the content hash of the code graph's root cell.
	RootHash string

	// CellPool supplies every cell reachable from RootHash, keyed by
	// hash.
	CellPool map[string]*CodeCell

	// DebugInfo is the compiler toolchain's debug-info JSON document.
	DebugInfo io.Reader

	// EmulatorSetupArgs is passed through to Emulator.Setup unexamined.
	EmulatorSetupArgs any
}

// Prepare builds the code-cell index and source map, sets up emu, and
// returns a ready-to-step Session. If cfg.ForwardEmulatorLog is set, the
// session wires emu's debug-log sink to emit Output events.
//
// Transaction sessions whose setup reports a result other than 1 fail
// before any stepping occurs, wrapped in ErrSetupFailed; the emulator
// handle from a failed setup is still destroyed here, since the caller
// never gets a Session to do it through.
func Prepare(emu Emulator, args PrepareArgs, cfg Config) (*Session, error) {
	cells, err := BuildCellIndex(args.RootHash, args.CellPool)
	if err != nil {
		return nil, errors.Wrap(err, "tvmdbg: building code-cell index")
	}

	source, avail, globals, err := LoadDebugInfo(args.DebugInfo)
	if err != nil {
		return nil, errors.Wrap(err, "tvmdbg: loading debug info")
	}

	setupResult, err := emu.Setup(args.EmulatorSetupArgs)
	if err != nil {
		return nil, errors.Wrap(err, "tvmdbg: emulator setup")
	}
	if args.Kind == Transaction && !setupResult.Ok() {
		emu.Destroy()
		return nil, errors.Wrapf(ErrSetupFailed, "transaction setup returned code %d", setupResult.Code)
	}

	s := &Session{
		kind:    args.Kind,
		emu:     emu,
		cfg:     cfg,
		cells:   cells,
		source:  source,
		avail:   avail,
		globals: globals,
		bps:     NewBreakpointStore(avail),
		bus:     newEventBus(cfg.EventQueueCapacity),
	}

	if cfg.ForwardEmulatorLog {
		emu.SetDebugLogFunc(func(line string) {
			s.bus.send(Event{Kind: Output, Line: line})
		})
	}

	log.Info().
		Str("kind", args.Kind.String()).
		Int("cells", cells.Len()).
		Msg("tvmdbg: session prepared")

	return s, nil
}

// Events returns the channel a host drains for stop/output/end
// notifications.
func (s *Session) Events() <-chan Event {
	return s.bus.Events()
}

// SetBreakpoint delegates to the session's breakpoint store.
func (s *Session) SetBreakpoint(path string, line uint32) Breakpoint {
	return s.bps.Set(path, line)
}

// ClearBreakpoints delegates to the session's breakpoint store.
func (s *Session) ClearBreakpoints(path string) {
	s.bps.Clear(path)
}

// Breakpoints delegates to the session's breakpoint store.
func (s *Session) Breakpoints(path string) []Breakpoint {
	return s.bps.List(path)
}

// AvailableLines exposes the loaded breakpoint-validity index.
func (s *Session) AvailableLines() *AvailableLines {
	return s.avail
}

// StackTrace returns a snapshot of the current call stack, outermost
// frame first.
func (s *Session) StackTrace() []StackFrame {
	return s.frames.snapshot()
}

// IsFinalized reports whether the session has been finalized, either
// because the VM terminated or because a mid-session error aborted it.
func (s *Session) IsFinalized() bool {
	return s.finalized
}

// Result returns the final VM result. Valid only after IsFinalized.
func (s *Session) Result() any {
	return s.result
}
